package h2frame

import (
	"testing"

	"github.com/zeushttp/zeushttp/internal/zerr"
	"github.com/zeushttp/zeushttp/pkg/constants"
)

func echoHandler(req Request) (byte, []byte) {
	return 8, []byte("hello") // static index 8 == :status 200
}

func TestEnginePingEcho(t *testing.T) {
	e := NewEngine(echoHandler)
	w := Writer{}

	out, err := e.Feed([]byte(Preface))
	if err != nil {
		t.Fatalf("preface feed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("expected initial SETTINGS/WINDOW_UPDATE frames after preface")
	}

	ping := w.PingFrame([8]byte{9, 9, 9, 9, 9, 9, 9, 9}, false)
	out, err = e.Feed(ping)
	if err != nil {
		t.Fatalf("ping feed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected exactly one PING ack frame, got %d", len(out))
	}
	hdr := ParseHeader(out[0])
	if hdr.Type != FramePing || hdr.Flags&FlagAck == 0 {
		t.Fatalf("expected a PING ack frame, got %+v", hdr)
	}
	payload := out[0][FrameHeaderLen:]
	want := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	for i := range want {
		if payload[i] != want[i] {
			t.Fatalf("ping payload not echoed verbatim: got %v want %v", payload, want)
		}
	}
}

func TestEngineSettingsAck(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}

	settings := (&Writer{}).SettingsFrame([][2]uint32{{0x1, 8192}}, false)
	out, err := e.Feed(settings)
	if err != nil {
		t.Fatalf("settings feed: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected a single SETTINGS ack, got %d frames", len(out))
	}
	hdr := ParseHeader(out[0])
	if hdr.Type != FrameSettings || hdr.Flags&FlagAck == 0 || hdr.Length != 0 {
		t.Fatalf("expected bodyless SETTINGS ack, got %+v", hdr)
	}
}

func TestEngineHeadersWithEndStreamProducesResponse(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}

	w := Writer{}
	// Indexed field 0x82 = :method GET (static index 2).
	headers := w.Build(FrameHeaders, FlagEndHeaders|FlagEndStream, 1, []byte{0x82})
	out, err := e.Feed(headers)
	if err != nil {
		t.Fatalf("headers feed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected HEADERS+DATA response, got %d frames", len(out))
	}
	if ParseHeader(out[0]).Type != FrameHeaders {
		t.Fatalf("expected first response frame to be HEADERS")
	}
	dataHdr := ParseHeader(out[1])
	if dataHdr.Type != FrameData || dataHdr.Flags&FlagEndStream == 0 {
		t.Fatalf("expected DATA frame with END_STREAM, got %+v", dataHdr)
	}
	if string(out[1][FrameHeaderLen:]) != "hello" {
		t.Fatalf("got body %q, want hello", out[1][FrameHeaderLen:])
	}
}

func TestEngineContinuationReassemblesAcrossFrames(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}

	w := Writer{}
	headers := w.Build(FrameHeaders, FlagEndStream, 1, []byte{0x82}) // no END_HEADERS yet
	if _, err := e.Feed(headers); err != nil {
		t.Fatalf("headers feed: %v", err)
	}
	cont := w.Build(FrameContinuation, FlagEndHeaders, 1, []byte{0x86}) // :scheme http
	out, err := e.Feed(cont)
	if err != nil {
		t.Fatalf("continuation feed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected response after CONTINUATION completes headers, got %d", len(out))
	}
}

func TestEngineRejectsStreamBeyondMaxConcurrent(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}
	w := Writer{}
	for i := 0; i < constants.MaxConcurrentStreams; i++ {
		streamID := uint32(2*i + 1)
		headers := w.Build(FrameHeaders, FlagEndHeaders, streamID, []byte{0x82})
		if _, err := e.Feed(headers); err != nil {
			t.Fatalf("stream %d: unexpected error: %v", streamID, err)
		}
	}

	overflow := w.Build(FrameHeaders, FlagEndHeaders, uint32(2*constants.MaxConcurrentStreams+1), []byte{0x82})
	if _, err := e.Feed(overflow); err == nil {
		t.Fatal("expected an error once MaxConcurrentStreams is exceeded")
	}
}

func TestEngineRejectsHeadersOnStreamZero(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}
	w := Writer{}
	headers := w.Build(FrameHeaders, FlagEndHeaders|FlagEndStream, 0, []byte{0x82})
	if _, err := e.Feed(headers); err == nil {
		t.Fatal("expected an error for HEADERS on stream 0")
	}
}

func TestEngineRejectsOversizedReassembly(t *testing.T) {
	e := NewEngine(echoHandler)
	if _, err := e.Feed([]byte(Preface)); err != nil {
		t.Fatalf("preface feed: %v", err)
	}
	w := Writer{}
	// Every frame stays within MaxFrameSize; only the accumulated field
	// block (HEADERS without END_HEADERS, then CONTINUATIONs) passes the bound.
	chunk := make([]byte, MaxFrameSize)
	if _, err := e.Feed(w.Build(FrameHeaders, 0, 1, chunk)); err != nil {
		t.Fatalf("headers feed: %v", err)
	}
	var err error
	for sent := len(chunk); sent <= MaxReassembly && err == nil; sent += len(chunk) {
		_, err = e.Feed(w.Build(FrameContinuation, 0, 1, chunk))
	}
	if !zerr.Is(err, zerr.KindSecurityLimit) {
		t.Fatalf("expected a security-limit error once reassembly exceeds MaxReassembly, got %v", err)
	}
}
