package conn

import "testing"

func TestRefCountStartsAtOne(t *testing.T) {
	c := New(3, 42)
	if c.Unref() {
		t.Fatal("a freshly created connection should not hit zero on first Unref")
	}
}

func TestRefAndUnrefBalance(t *testing.T) {
	c := New(3, 42)
	c.Ref() // simulate a reactor batch acquiring a reference
	if c.Unref() {
		t.Fatal("should not be last reference yet")
	}
	if !c.Unref() {
		t.Fatal("expected the second Unref to reach zero")
	}
}

func TestMarkClosingIsOneShot(t *testing.T) {
	c := New(3, 42)
	if !c.MarkClosing() {
		t.Fatal("first MarkClosing call should report the transition")
	}
	if c.MarkClosing() {
		t.Fatal("second MarkClosing call must not report a transition")
	}
	if !c.Closing() {
		t.Fatal("Closing() should report true after MarkClosing")
	}
}

func TestAppendReadAccumulatesAndReportsOverflow(t *testing.T) {
	c := New(3, 42)
	if c.AppendRead([]byte("GET / HTTP/1.1\r\n")) {
		t.Fatal("did not expect overflow for a small read")
	}
	if string(c.ReadBuffer()) != "GET / HTTP/1.1\r\n" {
		t.Fatalf("got %q", c.ReadBuffer())
	}

	c2 := New(4, 43)
	big := make([]byte, MaxReadBuffer+10)
	if !c2.AppendRead(big) {
		t.Fatal("expected overflow for a read larger than MaxReadBuffer")
	}
}

func TestConsumeReadShiftsRemainder(t *testing.T) {
	c := New(3, 42)
	c.AppendRead([]byte("HELLOWORLD"))
	c.ConsumeRead(5)
	if string(c.ReadBuffer()) != "WORLD" {
		t.Fatalf("got %q, want WORLD", c.ReadBuffer())
	}
}
