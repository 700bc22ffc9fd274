package transfer

import "errors"

// ErrWouldBlock is returned by a Channel's Read or Write when the
// operation cannot make progress right now. It must be distinguishable
// from a fatal error (spec.md §5/§6): the transfer core treats it as
// "wait for the next readiness callback", never as a transport failure.
var ErrWouldBlock = errors.New("transfer: would block")

// Channel is the non-blocking byte channel the transfer core reads from
// and writes to. Implementations never block; Read and Write return
// ErrWouldBlock instead. The transfer core borrows the channel, it
// never closes it (spec.md §5 "Shared resources").
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// Watcher is the registration returned by a Scheduler for one Channel.
// Cancel deregisters the interest this Watcher was registered for (the
// readable/error side for WatchRead, the writable/error side for
// WatchWrite); it must be safe to call more than once.
type Watcher interface {
	// EnableWrite arms writable-readiness callbacks (the Writer only
	// needs these while it has undrained bytes or an active producer).
	EnableWrite() error
	// DisableWrite disarms writable-readiness callbacks.
	DisableWrite() error
	// Cancel deregisters the watcher from its Scheduler.
	Cancel() error
}

// Scheduler is the external event scheduler of spec.md §5/§6: it invokes
// onReadable/onWritable/onError serially, on one thread, whenever ch
// becomes ready. WatchRead registers only readable+error interest
// (matching Reader's construction, which never needs writable
// callbacks); writable interest is toggled later via Watcher.
type Scheduler interface {
	WatchRead(ch Channel, onReadable, onError func()) (Watcher, error)
	WatchWrite(ch Channel, onWritable, onError func()) (Watcher, error)
}

// SignalGuard is an optional Channel capability for masking the
// broken-pipe signal around a write pass (spec.md §4.2 "SIGPIPE").
// socket.Channel implements this on platforms without MSG_NOSIGNAL (on
// Linux it suppresses the signal per send instead and does not), and
// the in-memory fake used by the transfer package's own tests
// implements it so the bracketing can be checked. Writer treats a
// Channel without it as never needing the mask. The returned
// restore func must be called exactly once, after the write pass ends
// (including on the error path), to put the prior disposition back.
type SignalGuard interface {
	MaskSIGPIPE() (restore func())
}
