package transfer

import "errors"

// Decode/encode errors.
var (
	// ErrMalformedChunk indicates the peer sent chunk framing that cannot
	// be hex-decoded or is missing its terminating CRLF once the payload
	// bytes it claims are fully buffered. Unlike a transport hangup, this
	// is detected without waiting for the peer to go away, the deliberate
	// enhancement over the original's permissive decoder (see spec notes).
	ErrMalformedChunk = errors.New("transfer: malformed chunked encoding")

	// ErrBufferTooSmall indicates an internal precondition violation in
	// one of the buffer utilities (remove_block past the end of the
	// buffer). This is a programming bug, not a wire-level error.
	ErrBufferTooSmall = errors.New("transfer: buffer block out of range")
)

// Reader/Writer lifecycle errors.
var (
	// ErrHandleNotFound indicates a handle was used after it was
	// cancelled (or never existed), e.g. a stale generation in the
	// handle arena. Cancel itself is idempotent and does not return
	// this; only SetCallbacks does.
	ErrHandleNotFound = errors.New("transfer: handle not found or already cancelled")

	// ErrChannelClosed is reported to a Writer's Error callback when the
	// Scheduler signals a transport error/hangup condition on the
	// channel. socket.Channel also returns it from Read at EOF and from
	// Read or Write on EPIPE/ECONNRESET.
	ErrChannelClosed = errors.New("transfer: channel closed")
)
