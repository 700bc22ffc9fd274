package ioreactor

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/asynctransfer/transfer"
)

// Fder is implemented by a transfer.Channel backed by a real file
// descriptor. The socket package's Channel satisfies it; Reactor cannot
// watch anything that doesn't.
type Fder interface {
	Fd() int
}

// ErrNotFder is returned by WatchRead/WatchWrite when ch does not
// implement Fder.
var ErrNotFder = errors.New("ioreactor: channel does not expose a file descriptor")

// callback pairs one readiness callback with the error callback that
// accompanies it, per the WatchRead/WatchWrite signature.
type callback struct {
	ready func()
	err   func()
}

// interest tracks the read and write registrations sharing one fd. A
// Reader and a Writer operating on the same connection, sequentially,
// request then response, register independently but end up sharing
// this one entry, since epoll only lets a fd be added once.
type interest struct {
	fd           int
	read         *callback
	write        *callback
	writeEnabled bool
}

// Reactor is a transfer.Scheduler backed by the host's native
// readiness-notification facility.
type Reactor struct {
	mu   sync.Mutex
	byFD map[int]*interest
	impl pollerImpl
	log  *zap.Logger
}

// pollerImpl is the platform-specific half: the raw syscalls to
// register, modify, deregister and wait for fd events. epoll_linux.go
// and reactor_other.go each provide one.
type pollerImpl interface {
	add(fd int, wantWrite bool) error
	modify(fd int, wantWrite bool) error
	remove(fd int) error
	wait(dispatch func(fd int, readable, writable, hangup bool)) error
	wake() error
	close() error
}

// Option configures optional Reactor behavior at construction time.
type Option func(*Reactor)

// WithLogger attaches a structured logger to a Reactor. A nil logger
// leaves the default no-op logger in place.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reactor) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Reactor. On Linux this opens an epoll instance; on other
// platforms it falls back to a portable, readiness-polling
// implementation (see reactor_other.go).
func New(opts ...Option) (*Reactor, error) {
	impl, err := newPollerImpl()
	if err != nil {
		return nil, err
	}
	r := &Reactor{byFD: make(map[int]*interest), impl: impl, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run drives the dispatch loop until Close is called. It blocks the
// calling goroutine; every registered Channel is only ever touched from
// here, so callers must register everything from this same goroutine if
// they mutate shared state inside a readiness callback.
func (r *Reactor) Run() error {
	for {
		err := r.impl.wait(r.dispatch)
		if err == errReactorClosed {
			return nil
		}
		if err != nil {
			r.log.Error("poll wait failed", zap.Error(err))
			return err
		}
	}
}

// Close stops Run and releases the polling descriptor.
func (r *Reactor) Close() error {
	return r.impl.close()
}

func (r *Reactor) dispatch(fd int, readable, writable, hangup bool) {
	r.mu.Lock()
	it, ok := r.byFD[fd]
	r.mu.Unlock()
	if !ok {
		return
	}
	if hangup {
		r.log.Warn("fd hangup", zap.Int("fd", fd))
		if it.read != nil {
			it.read.err()
		}
		if it.write != nil {
			it.write.err()
		}
		return
	}
	if readable && it.read != nil {
		r.log.Debug("fd readable", zap.Int("fd", fd))
		it.read.ready()
	}
	if writable && it.write != nil {
		r.log.Debug("fd writable", zap.Int("fd", fd))
		it.write.ready()
	}
}

func (r *Reactor) fder(ch transfer.Channel) (Fder, error) {
	f, ok := ch.(Fder)
	if !ok {
		return nil, ErrNotFder
	}
	return f, nil
}

// WatchRead registers readable+error interest for ch, per
// transfer.Scheduler.
func (r *Reactor) WatchRead(ch transfer.Channel, onReadable, onError func()) (transfer.Watcher, error) {
	return r.watch(ch, onReadable, onError, false)
}

// WatchWrite registers writable+error interest for ch.
func (r *Reactor) WatchWrite(ch transfer.Channel, onWritable, onError func()) (transfer.Watcher, error) {
	return r.watch(ch, onWritable, onError, true)
}

func (r *Reactor) watch(ch transfer.Channel, onReady, onError func(), forWrite bool) (transfer.Watcher, error) {
	f, err := r.fder(ch)
	if err != nil {
		return nil, err
	}
	fd := f.Fd()
	cb := &callback{ready: onReady, err: onError}

	r.mu.Lock()
	defer r.mu.Unlock()

	it, existed := r.byFD[fd]
	if !existed {
		it = &interest{fd: fd}
		r.byFD[fd] = it
	}
	if forWrite {
		it.write = cb
		it.writeEnabled = true
	} else {
		it.read = cb
	}

	if !existed {
		if err := r.impl.add(fd, it.writeEnabled); err != nil {
			delete(r.byFD, fd)
			return nil, err
		}
	} else if forWrite {
		if err := r.impl.modify(fd, it.writeEnabled); err != nil {
			return nil, err
		}
	}
	return &fdWatcher{reactor: r, fd: fd, forWrite: forWrite}, nil
}

// fdWatcher is the transfer.Watcher handed back to a Reader or Writer.
type fdWatcher struct {
	reactor  *Reactor
	fd       int
	forWrite bool
}

func (w *fdWatcher) EnableWrite() error {
	r := w.reactor
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byFD[w.fd]
	if !ok || it.writeEnabled {
		return nil
	}
	it.writeEnabled = true
	return r.impl.modify(w.fd, true)
}

func (w *fdWatcher) DisableWrite() error {
	r := w.reactor
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byFD[w.fd]
	if !ok || !it.writeEnabled {
		return nil
	}
	it.writeEnabled = false
	return r.impl.modify(w.fd, false)
}

// Cancel removes this watcher's side of the registration (read-side for
// a Watcher returned by WatchRead, write-side for WatchWrite). Once both
// sides are gone the fd is deregistered from the poller entirely.
func (w *fdWatcher) Cancel() error {
	r := w.reactor
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.byFD[w.fd]
	if !ok {
		return nil
	}
	if w.forWrite {
		it.write = nil
		it.writeEnabled = false
	} else {
		it.read = nil
	}
	if it.read == nil && it.write == nil {
		delete(r.byFD, w.fd)
		return r.impl.remove(w.fd)
	}
	return r.impl.modify(w.fd, it.writeEnabled)
}

var errReactorClosed = errors.New("ioreactor: reactor closed")
