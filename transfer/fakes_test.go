package transfer

import "errors"

// fakeChannel is an in-memory, non-blocking Channel used by the transfer
// package's own tests: Read drains a byte queue fed by the test and
// returns ErrWouldBlock once it is empty (or a terminal error, once one
// has been armed with CloseWith); Write appends to a record the test can
// inspect, subject to an optional per-call byte limit that exercises
// partial-write handling.
type fakeChannel struct {
	pending []byte
	closeErr error

	written    []byte
	writeErr   error
	writeLimit int

	sigpipeMasked int
}

func (c *fakeChannel) Feed(p []byte) {
	c.pending = append(c.pending, p...)
}

func (c *fakeChannel) CloseWith(err error) {
	c.closeErr = err
}

func (c *fakeChannel) Read(p []byte) (int, error) {
	if len(c.pending) == 0 {
		if c.closeErr != nil {
			return 0, c.closeErr
		}
		return 0, ErrWouldBlock
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

func (c *fakeChannel) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.written = append(c.written, p[:n]...)
	return n, nil
}

// MaskSIGPIPE satisfies SignalGuard so writer tests exercise the mask/
// restore bracketing without needing a real file descriptor.
func (c *fakeChannel) MaskSIGPIPE() (restore func()) {
	c.sigpipeMasked++
	return func() { c.sigpipeMasked-- }
}

var errFakeClosed = errors.New("fakeChannel: closed")

// fakeWatcher records EnableWrite/DisableWrite/Cancel calls.
type fakeWatcher struct {
	writeEnabled bool
	cancelled    bool
}

func (w *fakeWatcher) EnableWrite() error  { w.writeEnabled = true; return nil }
func (w *fakeWatcher) DisableWrite() error { w.writeEnabled = false; return nil }
func (w *fakeWatcher) Cancel() error       { w.cancelled = true; return nil }

// fakeScheduler captures the callbacks registered by ReadStart/WriteStart
// so a test can fire them synchronously, standing in for the external
// event scheduler of spec.md §5.
type fakeScheduler struct {
	onReadable, onReadError   func()
	onWritable, onWriteError  func()
	readWatcher, writeWatcher *fakeWatcher
}

func (s *fakeScheduler) WatchRead(ch Channel, onReadable, onError func()) (Watcher, error) {
	s.onReadable, s.onReadError = onReadable, onError
	s.readWatcher = &fakeWatcher{}
	return s.readWatcher, nil
}

func (s *fakeScheduler) WatchWrite(ch Channel, onWritable, onError func()) (Watcher, error) {
	s.onWritable, s.onWriteError = onWritable, onError
	s.writeWatcher = &fakeWatcher{}
	return s.writeWatcher, nil
}

func (s *fakeScheduler) fireReadable() { s.onReadable() }
func (s *fakeScheduler) fireReadError() { s.onReadError() }
func (s *fakeScheduler) fireWritable() { s.onWritable() }
