package socket

import (
	"golang.org/x/sys/unix"

	"github.com/yourusername/asynctransfer/transfer"
)

// Channel is a non-blocking TCP connection: the concrete
// transfer.Channel a Reader or Writer actually runs against once an
// ioreactor.Reactor is wired in. It also implements ioreactor.Fder
// (via Fd); on platforms without MSG_NOSIGNAL it additionally
// implements transfer.SignalGuard (via MaskSIGPIPE, see signal_other.go).
type Channel struct {
	fd     int
	closed bool
}

// newChannel wraps fd, which must already be a connected, non-blocking
// TCP socket.
func newChannel(fd int) *Channel {
	return &Channel{fd: fd}
}

// Fd returns the underlying file descriptor, for ioreactor.Fder.
func (c *Channel) Fd() int {
	return c.fd
}

// Read implements transfer.Channel.
func (c *Channel) Read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err == nil && n == 0 {
		return 0, transfer.ErrChannelClosed
	}
	if err != nil {
		return 0, translateErrno(err)
	}
	return n, nil
}

// Write implements transfer.Channel. The actual syscall is platform-
// specific: Linux suppresses SIGPIPE per-call via MSG_NOSIGNAL
// (signal_linux.go); elsewhere it's a plain write(2), and SIGPIPE is
// masked around the write pass instead (signal_other.go).
func (c *Channel) Write(p []byte) (int, error) {
	n, err := sendBytes(c.fd, p)
	if err != nil {
		return 0, translateErrno(err)
	}
	return n, nil
}

func translateErrno(err error) error {
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return transfer.ErrWouldBlock
	}
	if err == unix.EPIPE || err == unix.ECONNRESET {
		return transfer.ErrChannelClosed
	}
	return err
}

// Close releases the underlying file descriptor. The transfer package
// never calls this itself (spec.md §5 "Shared resources", it borrows
// the Channel); the owner of the connection calls it once both the
// Reader and Writer for this exchange have finished.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return unix.Close(c.fd)
}
