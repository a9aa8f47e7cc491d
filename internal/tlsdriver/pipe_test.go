package tlsdriver

import (
	"io"
	"testing"
)

func TestPipeReadReturnsWouldBlockWhenEmpty(t *testing.T) {
	p := newPipeNetConn()
	_, err := p.Read(make([]byte, 16))
	if err != errWouldBlockRead {
		t.Fatalf("got %v, want errWouldBlockRead", err)
	}
}

func TestPipeFeedThenReadDrainsInOrder(t *testing.T) {
	p := newPipeNetConn()
	p.feedInbound([]byte("hello"))
	buf := make([]byte, 5)
	n, err := p.Read(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("got n=%d err=%v buf=%q", n, err, buf)
	}
	_, err = p.Read(buf)
	if err != errWouldBlockRead {
		t.Fatalf("expected errWouldBlockRead once drained, got %v", err)
	}
}

func TestPipeReadAfterCloseReturnsEOFOnceEmpty(t *testing.T) {
	p := newPipeNetConn()
	p.closeLocal()
	_, err := p.Read(make([]byte, 4))
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestPipeWriteThenDrainOutbound(t *testing.T) {
	p := newPipeNetConn()
	n, err := p.Write([]byte("ciphertext"))
	if err != nil || n != len("ciphertext") {
		t.Fatalf("got n=%d err=%v", n, err)
	}
	out := p.drainOutbound()
	if string(out) != "ciphertext" {
		t.Fatalf("got %q", out)
	}
	if p.drainOutbound() != nil {
		t.Fatal("expected drainOutbound to return nil once empty")
	}
}

func TestPipeWriteBlocksWhenQueueFull(t *testing.T) {
	p := newPipeNetConn()
	big := make([]byte, maxPipeQueue+1)
	_, err := p.Write(big)
	if err != errWouldBlockWrite {
		t.Fatalf("got %v, want errWouldBlockWrite", err)
	}
}
