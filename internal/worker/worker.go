// Package worker implements one prefork worker process's event loop:
// spec.md section 5's single-threaded, cooperative connection engine,
// grounded on zeus_worker_loop and accept_connection_cb/handle_read_cb in
// the original's src/core/event_loop.c.
package worker

import (
	"crypto/tls"

	"golang.org/x/sys/unix"

	"github.com/zeushttp/zeushttp/internal/conn"
	"github.com/zeushttp/zeushttp/internal/h2frame"
	"github.com/zeushttp/zeushttp/internal/netutil"
	"github.com/zeushttp/zeushttp/internal/reactor"
	"github.com/zeushttp/zeushttp/internal/response"
	"github.com/zeushttp/zeushttp/internal/router"
	"github.com/zeushttp/zeushttp/internal/tlsdriver"
	"github.com/zeushttp/zeushttp/internal/zlog"
)

// listenCookie is the reserved reactor cookie identifying the shared
// listening socket, distinguishing it from any real connection (whose
// cookies are assigned starting at 1).
const listenCookie = 0

// Worker drives one worker process's single reactor loop. Every field
// here is touched only from the goroutine running Run — no locking, by
// design, matching the original's single-threaded-per-worker model.
type Worker struct {
	listenFD  int
	reactor   *reactor.Reactor
	tlsConfig *tls.Config
	router    *router.Router
	log       *zlog.Logger

	conns           map[uint64]*conn.Conn
	nextCookie      uint64
	shutdownPending bool
}

// New creates a Worker that will accept connections off listenFD. A nil
// tlsConfig selects plaintext HTTP/1.1-only operation.
func New(listenFD int, tlsConfig *tls.Config, rt *router.Router, log *zlog.Logger) (*Worker, error) {
	r, err := reactor.New(0)
	if err != nil {
		return nil, err
	}
	return &Worker{
		listenFD:   listenFD,
		reactor:    r,
		tlsConfig:  tlsConfig,
		router:     rt,
		log:        log,
		conns:      make(map[uint64]*conn.Conn),
		nextCookie: 1,
	}, nil
}

// RequestShutdown marks the loop to exit after the current readiness
// batch, mirroring the original's shutdown_requested check after every
// epoll_wait iteration.
func (w *Worker) RequestShutdown() {
	w.shutdownPending = true
}

// Run drives the reactor loop until RequestShutdown is called or a fatal
// reactor error occurs. The 100ms wait timeout lets the loop notice a
// pending shutdown even with no connection traffic, matching the
// supervisor's ~100ms non-blocking reap cadence.
func (w *Worker) Run() error {
	if err := w.reactor.Add(w.listenFD, reactor.Readable, listenCookie); err != nil {
		return err
	}

	var events []reactor.Event
	for !w.shutdownPending {
		batch, err := w.reactor.Wait(100, events[:0])
		if err != nil {
			return err
		}
		events = batch
		for _, ev := range events {
			w.dispatch(ev)
			if w.shutdownPending {
				break
			}
		}
	}
	return nil
}

func (w *Worker) dispatch(ev reactor.Event) {
	if ev.Cookie == listenCookie {
		if ev.Readable {
			w.acceptLoop()
		}
		return
	}

	c, ok := w.conns[ev.Cookie]
	if !ok {
		return
	}

	// conn_ref/conn_unref equivalent: keep c alive across this batch even
	// if a handler below decides to close it (e.g. a parse error on
	// read triggers close, but a write event for the same batch must
	// not operate on freed state).
	c.Ref()
	if !c.Closing() && ev.Readable {
		w.handleReadable(c)
	}
	if !c.Closing() && ev.Writable {
		w.handleWritable(c)
	}
	if c.Unref() {
		delete(w.conns, c.Cookie)
	}
}

// acceptLoop drains the listening socket until EAGAIN, the same
// accept-until-EWOULDBLOCK pattern accept_connection_cb uses under
// edge-triggered readiness.
func (w *Worker) acceptLoop() {
	for {
		fd, err := netutil.Accept4(w.listenFD)
		if err != nil {
			w.log.Warn("accept error: %v", err)
			return
		}
		if fd < 0 {
			return // EAGAIN: drained
		}
		w.acceptOne(fd)
	}
}

func (w *Worker) acceptOne(fd int) {
	cookie := w.nextCookie
	w.nextCookie++

	c := conn.New(fd, cookie)
	if w.tlsConfig != nil {
		c.TLS = conn.NewTLSState(w.tlsConfig)
	} else {
		c.InitHTTP1()
	}

	if err := w.reactor.Add(fd, reactor.Readable, cookie); err != nil {
		unix.Close(fd)
		return
	}
	w.conns[cookie] = c
}

func (w *Worker) handleReadable(c *conn.Conn) {
	var buf [4096]byte
	for {
		n, err := unix.Read(c.FD, buf[:])
		if n > 0 {
			w.onBytes(c, buf[:n])
			if c.Closing() {
				return
			}
			continue
		}
		if n == 0 {
			w.closeConn(c)
			return
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		w.closeConn(c)
		return
	}
}

func (w *Worker) onBytes(c *conn.Conn, b []byte) {
	if c.TLS == nil {
		w.onPlaintext(c, b)
		return
	}

	c.TLS.Session.FeedCiphertext(b)

	if !c.TLS.Session.HandshakeDone() {
		w.pumpHandshake(c)
		return
	}

	var plain [4096]byte
	for {
		n, result := c.TLS.Session.Read(plain[:])
		w.flushTLS(c)
		if n > 0 {
			w.onPlaintext(c, plain[:n])
			if c.Closing() {
				return
			}
			continue
		}
		if result == tlsdriver.ResultFatal {
			w.closeConn(c)
		}
		return
	}
}

// pumpHandshake drives the TLS state machine forward and flushes any
// resulting handshake ciphertext to the socket. WantRead/WantWrite both
// resolve to "wait for the next readiness event" in an edge-triggered
// reactor, since the pipe's outbound queue has already been flushed.
func (w *Worker) pumpHandshake(c *conn.Conn) {
	if c.Timer != nil {
		c.Timer.StartTLS()
	}
	result := c.TLS.Session.Handshake()
	w.flushTLS(c)
	if result == tlsdriver.ResultFatal {
		w.closeConn(c)
		return
	}
	if result == tlsdriver.ResultDone {
		if c.Timer != nil {
			c.Timer.EndTLS()
		}
		switch c.TLS.SelectProtocol() {
		case conn.ProtocolHTTP2:
			c.InitHTTP2(w.h2Handler())
		default:
			c.InitHTTP1()
		}
	}
}

func (w *Worker) flushTLS(c *conn.Conn) {
	out := c.TLS.Session.DrainCiphertext()
	if len(out) == 0 {
		return
	}
	if _, err := unix.Write(c.FD, out); err != nil {
		w.closeConn(c)
	}
}

func (w *Worker) onPlaintext(c *conn.Conn, b []byte) {
	if c.Protocol == conn.ProtocolUnknown {
		c.InitHTTP1()
	}

	switch c.Protocol {
	case conn.ProtocolHTTP1:
		w.feedHTTP1(c, b)
	case conn.ProtocolHTTP2:
		w.feedHTTP2(c, b)
	}
}

func (w *Worker) feedHTTP1(c *conn.Conn, b []byte) {
	if c.Timer != nil {
		c.Timer.StartParse()
	}
	done, err := c.H1().Feed(b)
	if err != nil {
		w.closeConn(c)
		return
	}
	if !done {
		return
	}
	if c.Timer != nil {
		c.Timer.EndParse()
		c.Timer.StartDispatch()
	}

	req := c.H1().Request()
	status, body := w.router.Dispatch(req.Method, req.Path)
	if c.Timer != nil {
		c.Timer.EndDispatch()
	}
	w.logAccess(c, req.Method, req.Path, status, len(body), "HTTP/1.1")

	if err := c.Response().SendData(status, nil, body); err != nil {
		w.closeConn(c)
		return
	}
	w.drainResponse(c)
}

// logAccess emits the per-request access log line SPEC_FULL.md section 7
// adds: method, path, status, protocol, response body size, and the
// per-phase timing breakdown, matching the original's ZLOG_INFO
// "Router: Matched route" texture with more structured fields.
func (w *Worker) logAccess(c *conn.Conn, method, path string, status, bodyBytes int, protocol string) {
	if c.Timer == nil {
		w.log.Info("%s %s -> %d (%s, %d bytes)", method, path, status, protocol, bodyBytes)
		return
	}
	w.log.Info("%s %s -> %d (%s, %d bytes, %s)", method, path, status, protocol, bodyBytes, c.Timer.Metrics())
}

// h2Handler binds this worker's router into an h2frame.RequestHandler,
// mapping the decoded :method/:path pseudo-headers to a Dispatch call the
// same way an HTTP/1 request line does.
func (w *Worker) h2Handler() h2frame.RequestHandler {
	return func(req h2frame.Request) (byte, []byte) {
		var method, path string
		for _, h := range req.Headers {
			switch h.Name {
			case ":method":
				method = h.Value
			case ":path":
				path = h.Value
			}
		}
		status, body := w.router.Dispatch(method, path)
		w.log.Info("%s %s -> %d (HTTP/2, %d bytes)", method, path, status, len(body))
		return h2StatusIndex(status), body
	}
}

// h2StatusIndex maps a status code to its HPACK static-table index for
// the minimal single-field :status HEADERS this server emits (spec.md
// section 4.8); anything not in the static table falls back to 200.
func h2StatusIndex(status int) byte {
	switch status {
	case 200:
		return 8
	case 204:
		return 9
	case 206:
		return 10
	case 304:
		return 11
	case 400:
		return 12
	case 404:
		return 13
	case 500:
		return 14
	default:
		return 8
	}
}

func (w *Worker) feedHTTP2(c *conn.Conn, b []byte) {
	if c.H2() == nil {
		c.InitHTTP2(w.h2Handler())
	}
	out, err := c.H2().Feed(b)
	if err != nil {
		w.closeConn(c)
		return
	}
	for _, frame := range out {
		if _, werr := unix.Write(c.FD, frame); werr != nil {
			w.closeConn(c)
			return
		}
	}
}

func (w *Worker) drainResponse(c *conn.Conn) {
	progress := c.Response().Advance(func(b []byte) (int, error) {
		n, err := unix.Write(c.FD, b)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return 0, nil
			}
			return 0, err
		}
		return n, nil
	})
	switch progress {
	case response.ProgressDone:
		w.closeConn(c)
	case response.ProgressWouldBlock:
		_ = c.RegisterInterest(w.reactor, reactor.Readable|reactor.Writable)
	case response.ProgressFailed:
		w.closeConn(c)
	}
}

func (w *Worker) handleWritable(c *conn.Conn) {
	if c.TLS != nil && !c.TLS.Session.HandshakeDone() {
		w.pumpHandshake(c)
		return
	}
	w.drainResponse(c)
}

// closeConn is the Go analogue of close_connection: idempotent (guarded
// by MarkClosing), it deregisters the fd from the reactor and closes the
// socket immediately, exactly when the original does. What outlives the
// fd close is the *conn.Conn value itself: dispatch only drops it from
// w.conns once every reactor callback still iterating the current
// readiness batch has released its reference, so a write callback that
// runs after a read callback closed the same connection still finds a
// live (if now-closing) Conn rather than a freed one.
func (w *Worker) closeConn(c *conn.Conn) {
	if !c.MarkClosing() {
		return
	}
	if c.TLS != nil {
		c.TLS.Session.Close()
	}
	_ = w.reactor.Delete(c.FD)
	unix.Shutdown(c.FD, unix.SHUT_RDWR)
	unix.Close(c.FD)
	// Release the reference taken at accept; the batch reference held by
	// dispatch then drops the last one.
	if c.Unref() {
		delete(w.conns, c.Cookie)
	}
}
