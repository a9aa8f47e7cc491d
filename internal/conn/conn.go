// Package conn implements the per-connection object described in spec.md
// section 4.2: a socket fd, fixed read buffer, the HTTP/1 or HTTP/2 engine
// bound to it, and an atomic refcount + one-shot closing flag protecting
// against use-after-free across reentrant reactor callbacks.
//
// Grounded on zeus_conn_t and conn_ref/conn_unref/close_connection in the
// original's src/core/event_loop.c: a read callback can synchronously
// trigger a close (e.g. on a parse error) while a write callback for the
// same readiness batch is still pending; the refcount keeps the
// connection's memory alive until every callback invoked for the current
// batch has returned, and the closing flag makes close idempotent.
package conn

import (
	"sync/atomic"

	"github.com/zeushttp/zeushttp/internal/h1parse"
	"github.com/zeushttp/zeushttp/internal/h2frame"
	"github.com/zeushttp/zeushttp/internal/reactor"
	"github.com/zeushttp/zeushttp/internal/response"
	"github.com/zeushttp/zeushttp/pkg/timing"
)

// MaxReadBuffer bounds the accumulated unparsed-request buffer, matching
// the original's read_buffer security limit.
const MaxReadBuffer = 8192 + 4096

// Protocol identifies which engine is driving a connection's bytes.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolHTTP1
	ProtocolHTTP2
)

// Conn is one accepted connection. Owned by exactly one worker goroutine;
// the refcount exists to make close-during-callback safe, not to allow
// cross-goroutine sharing.
type Conn struct {
	FD       int
	Cookie   uint64
	Protocol Protocol

	TLS   *TLSState // nil for plaintext connections
	Timer *timing.Timer

	readBuf     [MaxReadBuffer]byte
	readUsed    int
	h1          h1parse.Parser
	h2          *h2frame.Engine
	respWriter  response.Writer
	respPending bool

	refcount int32
	closing  int32
}

// New wraps an accepted, already-nonblocking file descriptor.
func New(fd int, cookie uint64) *Conn {
	return &Conn{FD: fd, Cookie: cookie, refcount: 1, Timer: timing.NewTimer()}
}

// Ref increments the reference count; call once per reactor callback
// batch before dispatching to read/write handlers.
func (c *Conn) Ref() {
	atomic.AddInt32(&c.refcount, 1)
}

// Unref decrements the reference count, returning true if this was the
// last reference (the caller must then release the connection).
func (c *Conn) Unref() (last bool) {
	return atomic.AddInt32(&c.refcount, -1) == 0
}

// Closing reports whether CloseConnection has already been invoked for
// this connection (idempotency guard, e.g. to skip dispatching a read
// event that raced with a close).
func (c *Conn) Closing() bool {
	return atomic.LoadInt32(&c.closing) != 0
}

// MarkClosing atomically transitions the connection into the closing
// state, returning true only for the caller that performed the
// transition (mirrors __atomic_exchange_n(&conn->closing, 1, ...)).
func (c *Conn) MarkClosing() (transitioned bool) {
	return atomic.SwapInt32(&c.closing, 1) == 0
}

// InitHTTP1 selects the HTTP/1.1 request parser for this connection (the
// default before ALPN negotiation, or immediately for plaintext).
func (c *Conn) InitHTTP1() {
	c.Protocol = ProtocolHTTP1
}

// InitHTTP2 selects the HTTP/2 engine, driven by handler for each
// completed request.
func (c *Conn) InitHTTP2(handler h2frame.RequestHandler) {
	c.Protocol = ProtocolHTTP2
	c.h2 = h2frame.NewEngine(handler)
}

// H1 returns the HTTP/1 parser (valid only when Protocol == ProtocolHTTP1).
func (c *Conn) H1() *h1parse.Parser { return &c.h1 }

// H2 returns the HTTP/2 engine (valid only when Protocol == ProtocolHTTP2).
func (c *Conn) H2() *h2frame.Engine { return c.h2 }

// Response returns the response writer used to compose and drain an
// HTTP/1.1 reply.
func (c *Conn) Response() *response.Writer { return &c.respWriter }

// AppendRead accumulates bytes read from the socket into the connection's
// fixed buffer, reporting overflow=true once the buffer is full or b did not
// fit (spec.md section 4.5's header-size enforcement backstop).
func (c *Conn) AppendRead(b []byte) (overflow bool) {
	n := copy(c.readBuf[c.readUsed:], b)
	c.readUsed += n
	return n < len(b) || c.readUsed >= len(c.readBuf)
}

// ReadBuffer returns the unconsumed bytes accumulated so far.
func (c *Conn) ReadBuffer() []byte {
	return c.readBuf[:c.readUsed]
}

// ConsumeRead drops the first n bytes of the read buffer once the parser
// has consumed them.
func (c *Conn) ConsumeRead(n int) {
	remaining := copy(c.readBuf[:], c.readBuf[n:c.readUsed])
	c.readUsed = remaining
}

// RegisterInterest is a convenience wrapper for changing this connection's
// reactor registration.
func (c *Conn) RegisterInterest(r *reactor.Reactor, interest reactor.Interest) error {
	return r.Modify(c.FD, interest, c.Cookie)
}
