//go:build !linux

package socket

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// sendBytes writes p to fd with a plain write(2). MSG_NOSIGNAL has no
// portable equivalent outside Linux, so SIGPIPE is suppressed by
// masking it around the write pass instead, via MaskSIGPIPE.
func sendBytes(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}

// MaskSIGPIPE blocks SIGPIPE on the calling thread for the duration of a
// write pass, the same guard the original transfer code applies around
// its write callback (spec.md §4.2), per the portable unix.Sigset_t
// layout (a plain bitmask rather than Linux's Val array).
//
// PthreadSigmask operates on the calling OS thread, and a goroutine
// isn't pinned to one unless asked: without runtime.LockOSThread, the
// scheduler could migrate the goroutine between this call and restore,
// masking one thread and unmasking another. LockOSThread here and
// UnlockOSThread in restore keep both ends of the pair on the same
// thread.
func (c *Channel) MaskSIGPIPE() (restore func()) {
	runtime.LockOSThread()
	var set, old unix.Sigset_t
	set = 1 << (uint(unix.SIGPIPE) - 1)
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, &old); err != nil {
		runtime.UnlockOSThread()
		return func() {}
	}
	return func() {
		unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil)
		runtime.UnlockOSThread()
	}
}
