package reactor

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setEventData/getEventData pack the reactor's opaque 64-bit cookie into the
// kernel's epoll_data union (Fd+Pad on linux/amd64 form one contiguous
// 8-byte field), the same way the original stores a pointer in
// epoll_event.data.ptr. We store an opaque uint64 key into the worker's
// connection map instead of a raw pointer.
func setEventData(ev *unix.EpollEvent, cookie uint64) {
	*(*uint64)(unsafe.Pointer(&ev.Fd)) = cookie
}

func getEventData(ev *unix.EpollEvent) uint64 {
	return *(*uint64)(unsafe.Pointer(&ev.Fd))
}
