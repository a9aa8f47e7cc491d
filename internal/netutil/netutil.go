// Package netutil provides the raw, non-blocking socket primitives the
// reactor and the supervisor need: bind+listen without going through
// net.Listener (so the resulting fd is never owned by the Go runtime's
// netpoller), non-blocking accept, and privilege drop.
//
// Grounded on the original's zeus_server_init (socket/setsockopt/bind/listen
// ordering) and worker.c's privilege-drop gate, using golang.org/x/sys/unix
// the way nabbar-golib depends on golang.org/x/sys for low-level primitives.
package netutil

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"
)

// Listen creates a non-blocking, SO_REUSEADDR TCP listening socket bound to
// host:port and returns its raw file descriptor. Callers own the fd and
// must eventually unix.Close it.
func Listen(host string, port int) (int, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return -1, fmt.Errorf("netutil: invalid bind host %q", host)
	}
	ip4 := ip.To4()

	var fd int
	var err error
	if ip4 != nil {
		fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	} else {
		fd, err = unix.Socket(unix.AF_INET6, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	}
	if err != nil {
		return -1, fmt.Errorf("netutil: socket: %w", err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: setsockopt SO_REUSEADDR: %w", err)
	}

	if ip4 != nil {
		var addr unix.SockaddrInet4
		addr.Port = port
		copy(addr.Addr[:], ip4)
		if err := unix.Bind(fd, &addr); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("netutil: bind %s:%d: %w", host, port, err)
		}
	} else {
		var addr unix.SockaddrInet6
		addr.Port = port
		copy(addr.Addr[:], ip.To16())
		if err := unix.Bind(fd, &addr); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("netutil: bind [%s]:%d: %w", host, port, err)
		}
	}

	const backlog = 4096
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("netutil: listen: %w", err)
	}

	return fd, nil
}

// SetNonblocking is used on freshly-accepted descriptors; unlike the
// listening socket (created with SOCK_NONBLOCK already set), accept(2) does
// not propagate the flag to the new fd on every kernel.
func SetNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

// Accept4 performs a single non-blocking accept, returning (-1, nil) on
// EAGAIN/EWOULDBLOCK to tell the caller's drain loop to stop.
func Accept4(listenFD int) (int, error) {
	connFD, _, err := unix.Accept4(listenFD, unix.SOCK_NONBLOCK)
	if err == nil {
		return connFD, nil
	}
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return -1, nil
	}
	return -1, err
}

// DropPrivileges switches the calling process to the named unprivileged
// user, in the order the original source requires: supplementary groups,
// then gid, then uid. Must be called after listen() and before accepting
// traffic; failure here is fatal per spec.md section 4.10.
func DropPrivileges(username string) error {
	if username == "" {
		return nil
	}

	uidStr, gidStr, err := lookupUser(username)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return fmt.Errorf("netutil: bad uid for %q: %w", username, err)
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return fmt.Errorf("netutil: bad gid for %q: %w", username, err)
	}

	if err := unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("netutil: setgroups: %w", err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("netutil: setgid: %w", err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("netutil: setuid: %w", err)
	}
	return nil
}
