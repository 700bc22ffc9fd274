package transfer

import "go.uber.org/zap"

// WriterCallbacks are the callbacks a Writer drives, per spec.md §6.
type WriterCallbacks struct {
	// HeadersDone fires once, after the header bytes passed to WriteStart
	// have been fully flushed to the channel.
	HeadersDone func()
	// ProduceBody is polled for the next body chunk whenever the write
	// buffer has drained. It returns the next chunk (may be empty) and a
	// Disposition: Continue with data queues it and polls again once it
	// has drained; Continue with an empty buffer means "no data ready
	// yet" and parks write interest until WriterHandle.Notify is called;
	// End means this is the last chunk (it may still carry data).
	ProduceBody func() (Buffer, Disposition)
	// Done fires exactly once, after every produced byte, and for
	// Chunked encoding the terminating zero-length chunk, has been
	// flushed.
	Done func()
	// Error fires exactly once on a failed write, after headers_done has
	// been reported if it was ever reached.
	Error func(err error)
}

// writer is the state machine behind a WriterHandle, backing write_buf
// with a byteQueue exactly as reader backs recv_buf, per spec.md §3.
type writer struct {
	ch      Channel
	watcher Watcher
	self    handle

	encoding Encoding
	cb       WriterCallbacks

	buf           *byteQueue
	headerLen     int
	headerWritten int
	headersDone   bool
	chunkCount    int

	producerDone  bool // ProduceBody has returned End; no more polling
	awaitingInput bool // ProduceBody returned Continue with no data; write interest parked

	state readerState
	done  bool

	log *zap.Logger
}

var writerArena = newArena[*writer]()

// WriterHandle is an opaque, generation-checked reference to a running
// Writer, mirroring ReaderHandle (spec.md §9 design note).
type WriterHandle struct {
	h handle
}

// WriterOption configures optional Writer behavior at construction time.
type WriterOption func(*writer)

// WithWriterLogger attaches a structured logger to a Writer. A nil
// logger leaves the default no-op logger in place.
func WithWriterLogger(log *zap.Logger) WriterOption {
	return func(w *writer) {
		if log != nil {
			w.log = log
		}
	}
}

// WriteStart begins an asynchronous write of one HTTP/1.x message over
// ch, per spec.md §6. header is the literal header block (including its
// terminating blank line); body, if non-empty, is queued immediately
// behind it, before ProduceBody is ever polled.
func WriteStart(sched Scheduler, ch Channel, header []byte, body []byte, encoding Encoding, cb WriterCallbacks, opts ...WriterOption) (WriterHandle, error) {
	w := &writer{
		ch:       ch,
		encoding: encoding,
		cb:       cb,
		buf:      newByteQueue(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if len(header) > 0 {
		w.buf.Append(header)
		w.headerLen = len(header)
	}
	if len(body) > 0 {
		w.appendChunk(body)
	}
	w.self = writerArena.insert(w)

	// Mirror the original's eager first poll of write_chunk_cb at
	// construction time, so a producer with data ready doesn't have to
	// wait for a spurious writable callback to start flowing.
	w.pullUntilBlocked()

	watcher, err := sched.WatchWrite(ch, func() { w.onWritable() }, func() { w.onChannelError() })
	if err != nil {
		writerArena.remove(w.self)
		w.buf.Release()
		w.log.Error("watch write failed", zap.Error(err))
		return WriterHandle{}, err
	}
	w.watcher = watcher
	if w.awaitingInput && w.buf.Len() == 0 {
		// pullUntilBlocked ran before registration, so the DisableWrite
		// call it wanted to make had no watcher yet to act on; apply it
		// now, but only once write_buf is actually drained. If header
		// bytes are still queued, write interest must stay armed so
		// onWritable can flush them; it disables write itself once the
		// drain empties the buffer with the producer still not ready.
		w.watcher.DisableWrite()
	}
	return WriterHandle{h: w.self}, nil
}

// SetCallbacks replaces the callback set, mirroring ReaderHandle.SetCallbacks.
func (wh WriterHandle) SetCallbacks(cb WriterCallbacks) error {
	w, ok := writerArena.get(wh.h)
	if !ok {
		return ErrHandleNotFound
	}
	w.cb = cb
	return nil
}

// Notify re-arms writable interest after ProduceBody has returned
// Continue with no data. A producer that later becomes ready calls this
// to resume the flow, instead of the Writer busy-polling on every
// writable readiness in the meantime.
func (wh WriterHandle) Notify() {
	if w, ok := writerArena.get(wh.h); ok {
		w.notify()
	}
}

// Cancel stops the Writer, honoring the same reentrancy no-op rule as
// ReaderHandle.Cancel.
func (wh WriterHandle) Cancel() {
	if w, ok := writerArena.get(wh.h); ok {
		w.cancel()
	}
}

func (w *writer) notify() {
	if w.done || !w.awaitingInput {
		return
	}
	w.awaitingInput = false
	if w.watcher != nil {
		w.watcher.EnableWrite()
	}
}

func (w *writer) cancel() {
	if w.done {
		return
	}
	if w.state != stateIdle {
		w.state = statePendingCancel
		return
	}
	w.done = true
	if w.watcher != nil {
		w.watcher.Cancel()
	}
	writerArena.remove(w.self)
	w.buf.Release()
}

func (w *writer) runCallback(fn func()) {
	w.state = stateInCallback
	fn()
	pending := w.state == statePendingCancel
	w.state = stateIdle
	if pending {
		w.cancel()
	}
}

func (w *writer) appendChunk(data []byte) {
	if w.encoding.Kind == Chunked {
		w.buf.Append(appendChunkHeader(nil, len(data), w.chunkCount))
		w.chunkCount++
	}
	w.buf.Append(data)
}

// pullUntilBlocked polls ProduceBody and appends whatever it hands back,
// until the producer either runs dry (Continue, no data, park write
// interest) or signals End (append the chunked terminator, if any, and
// stop polling for good).
func (w *writer) pullUntilBlocked() {
	if w.producerDone || w.cb.ProduceBody == nil {
		if !w.producerDone {
			w.finishProducer()
		}
		return
	}
	for {
		var buf Buffer
		disp := End
		w.runCallback(func() {
			buf, disp = w.cb.ProduceBody()
		})
		if w.done {
			return
		}
		if buf.Len() > 0 {
			w.appendChunk(buf.Data)
		}
		if disp == Continue {
			if buf.Len() == 0 {
				w.awaitingInput = true
				if w.watcher != nil {
					w.watcher.DisableWrite()
				}
			}
			return
		}
		w.finishProducer()
		return
	}
}

func (w *writer) finishProducer() {
	w.producerDone = true
	w.cb.ProduceBody = nil
	if w.encoding.Kind == Chunked {
		w.buf.Append(appendChunkTerminator(nil, w.chunkCount))
	}
}

func (w *writer) onWritable() {
	if w.done {
		return
	}
	w.log.Debug("channel writable")
	if guard, ok := w.ch.(SignalGuard); ok {
		restore := guard.MaskSIGPIPE()
		defer restore()
	}
	for {
		for w.buf.Len() > 0 {
			n, err := w.ch.Write(w.buf.Bytes())
			if err != nil {
				if err == ErrWouldBlock {
					return
				}
				w.fail(err)
				return
			}
			if n == 0 {
				return
			}
			if !w.headersDone {
				w.headerWritten += n
				if w.headerWritten >= w.headerLen {
					w.headersDone = true
					w.runCallback(func() {
						if w.cb.HeadersDone != nil {
							w.cb.HeadersDone()
						}
					})
					if w.done {
						return
					}
				}
			}
			w.buf.RemoveFront(n)
		}

		if w.producerDone {
			w.finishDone()
			return
		}
		if w.awaitingInput {
			// Carried over from construction's eager poll, which ran
			// before a watcher existed to disable write on; write_buf is
			// drained now, so it's safe to park here.
			w.watcher.DisableWrite()
			return
		}

		before := w.buf.Len()
		w.pullUntilBlocked()
		if w.done {
			return
		}
		if w.buf.Len() == before {
			// Nothing new queued: either parked awaiting input, or the
			// producer finished without adding a terminator.
			continue
		}
	}
}

func (w *writer) onChannelError() {
	if w.done {
		return
	}
	w.log.Warn("channel error callback fired")
	w.fail(ErrChannelClosed)
}

func (w *writer) finishDone() {
	if w.done {
		return
	}
	w.runCallback(func() {
		if w.cb.Done != nil {
			w.cb.Done()
		}
	})
	w.cancel()
}

func (w *writer) fail(err error) {
	if w.done {
		return
	}
	w.log.Error("write failed", zap.Error(err))
	w.runCallback(func() {
		if w.cb.Error != nil {
			w.cb.Error(err)
		}
	})
	w.cancel()
}
