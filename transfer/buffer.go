package transfer

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
)

// removeBlock shifts buf[offset+length:] left by length bytes and
// shortens buf accordingly, per spec.md §4.3. It is an in-place memmove:
// the caller's backing array is reused, not reallocated. offset+length
// must not exceed len(buf); length must be greater than zero.
func removeBlock(buf []byte, offset, length int) []byte {
	if length <= 0 || offset+length > len(buf) {
		panic(ErrBufferTooSmall)
	}
	copy(buf[offset:], buf[offset+length:])
	return buf[:len(buf)-length]
}

// substringIndex returns the smallest i such that haystack[i:i+len(needle)]
// equals needle, or -1 if needle does not occur. It operates on raw bytes
// with no text-encoding awareness, per spec.md §4.3.
func substringIndex(haystack, needle []byte) int {
	return bytes.Index(haystack, needle)
}

var crlfcrlf = []byte("\r\n\r\n")
var crlf = []byte("\r\n")

// byteQueue is the growable, in-place-compactable byte sequence backing
// a Reader's recv_buf and a Writer's write_buf (spec.md §3). It pools its
// backing storage through bytebufferpool so the overwrite_chunks=true
// streaming path, the original's bound-memory mitigation for the O(n^2)
// remove_block churn noted in spec.md §9, recycles rather than
// reallocates the small buffers it keeps trimming back to empty.
type byteQueue struct {
	buf *bytebufferpool.ByteBuffer
}

func newByteQueue() *byteQueue {
	return &byteQueue{buf: bytebufferpool.Get()}
}

// Append grows the queue by appending p, copying it in.
func (q *byteQueue) Append(p []byte) {
	q.buf.Write(p)
}

// Len returns the number of buffered bytes.
func (q *byteQueue) Len() int {
	if q.buf == nil {
		return 0
	}
	return len(q.buf.B)
}

// Bytes returns the buffered bytes. The slice is only valid until the
// next mutating call on the queue.
func (q *byteQueue) Bytes() []byte {
	if q.buf == nil {
		return nil
	}
	return q.buf.B
}

// RemoveBlock removes length bytes at offset in place (spec.md §4.3).
func (q *byteQueue) RemoveBlock(offset, length int) {
	q.buf.B = removeBlock(q.buf.B, offset, length)
}

// RemoveFront removes the first n bytes in place.
func (q *byteQueue) RemoveFront(n int) {
	if n == 0 {
		return
	}
	q.RemoveBlock(0, n)
}

// Reset empties the queue without releasing its backing storage.
func (q *byteQueue) Reset() {
	q.buf.Reset()
}

// Take detaches the backing bytes for a caller (e.g. a done callback
// that wants the whole consolidated body). The queue is left with a
// fresh, empty pooled buffer; the returned slice is now UserOwned and
// the queue's pool will never touch it again.
func (q *byteQueue) Take() []byte {
	taken := q.buf.B
	q.buf = bytebufferpool.Get()
	return taken
}

// Release returns the backing storage to the pool. The queue must not be
// used again afterward.
func (q *byteQueue) Release() {
	if q.buf != nil {
		bytebufferpool.Put(q.buf)
		q.buf = nil
	}
}
