package socket

import (
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking TCP listener whose Accept hands back a
// ready-to-use Channel rather than blocking the calling goroutine.
// Accept itself is polled for readiness the same way a Channel is, via
// Fd() and an ioreactor.Reactor's WatchRead.
type Listener struct {
	fd  int
	cfg *Config
}

// Listen opens a non-blocking TCP listener on addr ("host:port" or
// ":port") and applies cfg (DefaultConfig if nil) to the listening
// socket.
func Listen(addr string, cfg *Config) (*Listener, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	sa, err := resolveTCPAddr(addr)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Listen(fd, cfg.Backlog()); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := applyListenerOptions(fd, cfg); err != nil {
		// Non-critical: TCP_DEFER_ACCEPT/TCP_FASTOPEN may be unsupported.
		_ = err
	}
	return &Listener{fd: fd, cfg: cfg}, nil
}

// Fd implements ioreactor.Fder so a Reactor can watch this listener for
// incoming-connection readiness.
func (l *Listener) Fd() int {
	return l.fd
}

// Read and Write exist only so a Listener satisfies transfer.Channel
// and can be registered with a Reactor via WatchRead; a listening
// socket is never read from or written to directly.
func (l *Listener) Read(p []byte) (int, error)  { return 0, unix.EINVAL }
func (l *Listener) Write(p []byte) (int, error) { return 0, unix.EINVAL }

// Accept returns the next pending connection as a tuned, non-blocking
// Channel, or transfer.ErrWouldBlock if none is pending (the caller
// retries after the Reactor reports this listener readable again).
func (l *Listener) Accept() (*Channel, error) {
	nfd, _, err := unix.Accept(l.fd)
	if err != nil {
		return nil, translateErrno(err)
	}
	if err := unix.SetNonblock(nfd, true); err != nil {
		unix.Close(nfd)
		return nil, err
	}
	if err := Apply(nfd, l.cfg); err != nil {
		unix.Close(nfd)
		return nil, err
	}
	return newChannel(nfd), nil
}

// Close stops accepting and releases the listening socket.
func (l *Listener) Close() error {
	return unix.Close(l.fd)
}
