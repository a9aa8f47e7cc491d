package router

import "testing"

func TestDispatchMatchesExactRoute(t *testing.T) {
	r := New()
	_ = r.Register("GET", "/hello", func(method, path string) (int, []byte) {
		return 200, []byte("hi")
	})
	status, body := r.Dispatch("GET", "/hello")
	if status != 200 || string(body) != "hi" {
		t.Fatalf("got status=%d body=%q", status, body)
	}
}

func TestDispatchFallsBackTo404(t *testing.T) {
	r := New()
	status, body := r.Dispatch("GET", "/missing")
	if status != 404 || string(body) != "Not Found\n" {
		t.Fatalf("got status=%d body=%q", status, body)
	}
}

func TestDispatchFirstRegisteredWinsOnDuplicate(t *testing.T) {
	r := New()
	_ = r.Register("GET", "/dup", func(method, path string) (int, []byte) { return 200, []byte("first") })
	_ = r.Register("GET", "/dup", func(method, path string) (int, []byte) { return 200, []byte("second") })
	_, body := r.Dispatch("GET", "/dup")
	if string(body) != "first" {
		t.Fatalf("got %q, want first registration to win", body)
	}
}

func TestRegisterRejectsBeyondCapacity(t *testing.T) {
	r := New()
	for i := 0; i < MaxRoutes; i++ {
		if err := r.Register("GET", "/x", func(string, string) (int, []byte) { return 200, nil }); err != nil {
			t.Fatalf("unexpected error at route %d: %v", i, err)
		}
	}
	if err := r.Register("GET", "/overflow", func(string, string) (int, []byte) { return 200, nil }); err != ErrRouteTableFull {
		t.Fatalf("got %v, want ErrRouteTableFull", err)
	}
}

func TestDispatchNormalizesUnicodeBeforeMatching(t *testing.T) {
	r := New()
	// Registered in precomposed NFC form (e-acute as a single rune).
	precomposed := "/café"
	_ = r.Register("GET", precomposed, func(method, path string) (int, []byte) { return 200, []byte("ok") })
	// Requested in decomposed form: plain "e" plus a combining acute accent.
	decomposed := "/café"
	status, body := r.Dispatch("GET", decomposed)
	if status != 200 || string(body) != "ok" {
		t.Fatalf("expected NFC-normalized path to match registered route, got status=%d body=%q", status, body)
	}
}
