package transfer

import (
	"testing"
)

// Scenario 5 of spec.md §8: chunked writer.
func TestWriter_ChunkedProducer(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}

	bodies := [][]byte{[]byte("abc"), []byte("de")}
	idx := 0
	var headersDoneFired, done bool

	cb := WriterCallbacks{
		HeadersDone: func() { headersDoneFired = true },
		ProduceBody: func() (Buffer, Disposition) {
			if idx >= len(bodies) {
				return Buffer{}, End
			}
			b := bodies[idx]
			idx++
			return Buffer{Data: b}, Continue
		},
		Done: func() { done = true },
	}

	header := []byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n")
	_, err := WriteStart(sched, ch, header, nil, Encoding{Kind: Chunked}, cb)
	if err != nil {
		t.Fatal(err)
	}

	sched.fireWritable()

	if !headersDoneFired {
		t.Fatal("expected HeadersDone to fire")
	}
	if !done {
		t.Fatal("expected Done to fire")
	}

	wantHeader := string(header)
	wantBody := "3\r\nabc\r\n2\r\nde\r\n0\r\n"
	got := string(ch.written)
	if got != wantHeader+wantBody {
		t.Fatalf("written = %q\nwant    = %q", got, wantHeader+wantBody)
	}
	if !sched.writeWatcher.cancelled {
		t.Fatal("writer should have cancelled itself after done")
	}
}

// Content-Length framing writes the body verbatim with no chunk framing.
func TestWriter_ContentLength(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}

	sent := false
	cb := WriterCallbacks{
		ProduceBody: func() (Buffer, Disposition) {
			if sent {
				return Buffer{}, End
			}
			sent = true
			return Buffer{Data: []byte("Hello")}, Continue
		},
	}

	header := []byte("HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\n")
	WriteStart(sched, ch, header, nil, Encoding{Kind: ContentLength, Length: 5}, cb)
	sched.fireWritable()

	want := string(header) + "Hello"
	if got := string(ch.written); got != want {
		t.Fatalf("written = %q, want %q", got, want)
	}
}

// A zero-byte chunked body still emits headers and the bare terminator.
func TestWriter_ZeroByteChunkedBody(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}

	cb := WriterCallbacks{
		ProduceBody: func() (Buffer, Disposition) { return Buffer{}, End },
	}
	header := []byte("POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n")
	WriteStart(sched, ch, header, nil, Encoding{Kind: Chunked}, cb)
	sched.fireWritable()

	want := string(header) + "0\r\n"
	if got := string(ch.written); got != want {
		t.Fatalf("written = %q, want %q", got, want)
	}
}

// initial_body supplied at construction is framed exactly like a
// produced chunk.
func TestWriter_InitialBodyChunked(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}

	cb := WriterCallbacks{
		ProduceBody: func() (Buffer, Disposition) { return Buffer{}, End },
	}
	header := []byte("H\r\n\r\n")
	WriteStart(sched, ch, header, []byte("pre"), Encoding{Kind: Chunked}, cb)
	sched.fireWritable()

	want := string(header) + "3\r\npre" + "\r\n0\r\n"
	if got := string(ch.written); got != want {
		t.Fatalf("written = %q, want %q", got, want)
	}
}

// A header flushed through several partial writes (the fake accepts at
// most 4 bytes per Write) still produces the exact same bytes on the
// wire, and HeadersDone has fired once all header_len bytes are flushed.
func TestWriter_PartialWrites(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{writeLimit: 4}

	var headersDoneFired bool
	cb := WriterCallbacks{
		HeadersDone: func() { headersDoneFired = true },
		ProduceBody: func() (Buffer, Disposition) { return Buffer{}, End },
	}
	header := []byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n")
	WriteStart(sched, ch, header, nil, Encoding{Kind: ContentLength}, cb)

	for i := 0; i < 20 && string(ch.written) != string(header); i++ {
		sched.fireWritable()
	}

	if !headersDoneFired {
		t.Fatal("expected HeadersDone to fire once headers were fully flushed")
	}
	if got := string(ch.written); got != string(header) {
		t.Fatalf("written = %q, want %q", got, header)
	}
}

// A failing Write reports error_cb and the writer cancels itself. Here
// the producer arms the write error during WriteStart's eager poll, so
// the very first Write (of the header) fails. The Error callback
// receives only the error; it is not told whether headers_done fired.
func TestWriter_WriteErrorReportsAndCancels(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}

	var gotErr error
	cb := WriterCallbacks{
		ProduceBody: func() (Buffer, Disposition) {
			ch.writeErr = errFakeClosed
			return Buffer{Data: []byte("more")}, Continue
		},
		Error: func(err error) { gotErr = err },
	}
	header := []byte("H\r\n\r\n")
	WriteStart(sched, ch, header, nil, Encoding{Kind: Unknown}, cb)
	sched.fireWritable()

	if gotErr == nil {
		t.Fatal("expected error_cb to fire")
	}
	if !sched.writeWatcher.cancelled {
		t.Fatal("writer should have cancelled after the error")
	}
}

// SIGPIPE is masked for the duration of a single writable-readiness
// pass and always restored, even on the error path (spec.md §4.2).
func TestWriter_MasksSignalDuringWritePass(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}
	ch.writeErr = errFakeClosed

	cb := WriterCallbacks{Error: func(error) {}}
	header := []byte("H\r\n\r\n")
	WriteStart(sched, ch, header, nil, Encoding{Kind: Unknown}, cb)
	sched.fireWritable()

	if ch.sigpipeMasked != 0 {
		t.Fatalf("signal mask leaked: masked count = %d, want 0", ch.sigpipeMasked)
	}
}

// Cancel called from inside a Writer's own callback is deferred until
// that callback returns, mirroring the Reader's reentrancy guard.
func TestWriter_ReentrantCancelIsDeferred(t *testing.T) {
	sched := &fakeScheduler{}
	ch := &fakeChannel{}
	var wh WriterHandle
	var doneFired bool

	cb := WriterCallbacks{
		HeadersDone: func() { wh.Cancel() },
		ProduceBody: func() (Buffer, Disposition) { return Buffer{}, End },
		Done:        func() { doneFired = true },
	}
	header := []byte("H\r\n\r\n")
	var err error
	wh, err = WriteStart(sched, ch, header, nil, Encoding{Kind: Unknown}, cb)
	if err != nil {
		t.Fatal(err)
	}
	sched.fireWritable()

	if doneFired {
		t.Fatal("once the deferred cancel is honored, Done should not fire")
	}
	if !sched.writeWatcher.cancelled {
		t.Fatal("expected the deferred cancel to take effect once HeadersDone returned")
	}
}
