//go:build linux

package socket

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// sendBytes writes p to fd with MSG_NOSIGNAL, the mechanism spec.md §9
// prefers over masking SIGPIPE around the whole write pass: it
// suppresses the signal for this syscall alone, with no restore step
// and no OS-thread pinning requirement. A Channel on Linux does not
// implement transfer.SignalGuard; it doesn't need to.
//
// unix.Send discards the sendto(2) return value, so the raw syscall is
// used directly here: callers (socket/channel.go, transfer/writer.go)
// depend on the actual number of bytes sent to drive partial-write
// retries.
func sendBytes(fd int, p []byte) (int, error) {
	var base unsafe.Pointer
	if len(p) > 0 {
		base = unsafe.Pointer(&p[0])
	}
	n, _, errno := unix.Syscall6(unix.SYS_SENDTO, uintptr(fd), uintptr(base), uintptr(len(p)), uintptr(unix.MSG_NOSIGNAL), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}
