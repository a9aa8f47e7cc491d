// Package timing measures how long a connection spends in each phase of
// its lifecycle on the server side: TLS handshake, request parsing, and
// handler dispatch. It backs the per-request access log line
// SPEC_FULL.md section 7 adds (method, path, status, protocol, bytes
// written, and now duration), the server-side counterpart of the
// client-request timing this package's teacher shape measured.
package timing

import (
	"fmt"
	"time"
)

// Metrics captures the duration of each phase of handling one request.
type Metrics struct {
	TLSHandshake time.Duration
	Parse        time.Duration
	Dispatch     time.Duration
	TotalTime    time.Duration
}

// Timer marks phase boundaries for a single connection/request as the
// worker loop drives it through the reactor; a zero Timer has every start
// time unset, so a phase never entered contributes zero duration.
type Timer struct {
	start time.Time

	tlsStart, tlsEnd           time.Time
	parseStart, parseEnd       time.Time
	dispatchStart, dispatchEnd time.Time
}

// NewTimer starts a timing session at the moment a connection is accepted.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// StartTLS marks the beginning of the handshake the first time it is
// called; a partially-fed handshake resumes across several reactor
// callbacks, and only the first call should set the start point.
func (t *Timer) StartTLS() {
	if t.tlsStart.IsZero() {
		t.tlsStart = time.Now()
	}
}
func (t *Timer) EndTLS() { t.tlsEnd = time.Now() }

func (t *Timer) StartParse() { t.parseStart = time.Now() }
func (t *Timer) EndParse()   { t.parseEnd = time.Now() }

func (t *Timer) StartDispatch() { t.dispatchStart = time.Now() }
func (t *Timer) EndDispatch()   { t.dispatchEnd = time.Now() }

// Metrics returns the elapsed durations measured so far, with TotalTime
// covering the whole session from NewTimer to this call.
func (t *Timer) Metrics() Metrics {
	m := Metrics{TotalTime: time.Since(t.start)}
	if !t.tlsStart.IsZero() && !t.tlsEnd.IsZero() {
		m.TLSHandshake = t.tlsEnd.Sub(t.tlsStart)
	}
	if !t.parseStart.IsZero() && !t.parseEnd.IsZero() {
		m.Parse = t.parseEnd.Sub(t.parseStart)
	}
	if !t.dispatchStart.IsZero() && !t.dispatchEnd.IsZero() {
		m.Dispatch = t.dispatchEnd.Sub(t.dispatchStart)
	}
	return m
}

// String renders the metrics for the access log line.
func (m Metrics) String() string {
	return fmt.Sprintf("tls=%v parse=%v dispatch=%v total=%v",
		m.TLSHandshake, m.Parse, m.Dispatch, m.TotalTime)
}
