// Package reactor is a thin, single-threaded-per-instance abstraction over
// Linux epoll in edge-triggered mode: spec.md section 4.1's "Readiness
// Reactor". Every worker owns exactly one Reactor and never shares it.
//
// This intentionally bypasses net.Listener/net.Conn and the Go runtime's own
// netpoller: the whole point of the connection engine this spec describes is
// driving non-blocking I/O explicitly off an edge-triggered readiness
// facility, the same shape as the original's epoll_wait loop in
// core/event_loop.c. golang.org/x/sys/unix gives direct epoll_create1/
// epoll_ctl/epoll_wait access, grounded on nabbar-golib's dependency on
// golang.org/x/sys for comparable low-level primitives.
package reactor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Interest is the set of readiness conditions a descriptor is registered
// for.
type Interest uint32

const (
	Readable Interest = 1 << iota
	Writable
)

func (i Interest) toEpollMask() uint32 {
	var mask uint32 = unix.EPOLLET
	if i&Readable != 0 {
		mask |= unix.EPOLLIN
	}
	if i&Writable != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Event is one readiness notification delivered by Wait.
type Event struct {
	Cookie   uint64
	Readable bool
	Writable bool
}

// Reactor wraps one epoll instance. Not safe for concurrent use — a worker
// drives it from a single goroutine, matching spec.md section 5's
// "single-threaded cooperative" scheduling model.
type Reactor struct {
	epfd   int
	events []unix.EpollEvent
}

// New creates a fresh epoll instance.
func New(maxEvents int) (*Reactor, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}
	if maxEvents <= 0 {
		maxEvents = 128
	}
	return &Reactor{epfd: epfd, events: make([]unix.EpollEvent, maxEvents)}, nil
}

// Add registers fd for the given interest set; cookie is returned verbatim
// in every Event for this fd (the worker passes its connection-map key,
// never a raw pointer).
func (r *Reactor) Add(fd int, interest Interest, cookie uint64) error {
	ev := unix.EpollEvent{Events: interest.toEpollMask()}
	setEventData(&ev, cookie)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl add fd=%d: %w", fd, err)
	}
	return nil
}

// Modify changes the interest set for fd; the cookie is unchanged per
// spec.md section 4.1.
func (r *Reactor) Modify(fd int, interest Interest, cookie uint64) error {
	ev := unix.EpollEvent{Events: interest.toEpollMask()}
	setEventData(&ev, cookie)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("reactor: epoll_ctl mod fd=%d: %w", fd, err)
	}
	return nil
}

// Delete unregisters fd. Idempotent against an fd the kernel has already
// dropped (e.g. because it was closed) — spec.md requires delete to be
// safe against already-closed descriptors.
func (r *Reactor) Delete(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return fmt.Errorf("reactor: epoll_ctl del fd=%d: %w", fd, err)
}

// Wait blocks until at least one descriptor is ready, or timeoutMS elapses
// (-1 blocks indefinitely), and stores the ready events in dst, reusing its
// backing array; earlier contents of dst are discarded. Returns dst
// (possibly reallocated) so callers can reuse a slice across calls.
func (r *Reactor) Wait(timeoutMS int, dst []Event) ([]Event, error) {
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return dst[:0], nil
		}
		return dst, fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	dst = dst[:0]
	for i := 0; i < n; i++ {
		raw := r.events[i]
		dst = append(dst, Event{
			Cookie:   getEventData(&raw),
			Readable: raw.Events&unix.EPOLLIN != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
		})
	}
	return dst, nil
}

// Close releases the epoll instance.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
