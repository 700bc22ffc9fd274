package transfer

// Kind identifies which of the three HTTP/1.x body framings an Encoding
// carries. It is a proper tagged variant rather than an integer with a
// side-channel length field, per the design note: the zero value is
// Unknown, matching the Reader's initial state before headers are parsed.
type Kind uint8

const (
	// Unknown frames the body as everything up to channel EOF.
	Unknown Kind = iota
	// Chunked frames the body as HTTP/1.1 chunked transfer encoding.
	Chunked
	// ContentLength frames the body as exactly Encoding.Length bytes.
	ContentLength
)

func (k Kind) String() string {
	switch k {
	case Chunked:
		return "chunked"
	case ContentLength:
		return "content-length"
	default:
		return "unknown"
	}
}

// Encoding is the tagged TransferEncoding of spec.md §3: Chunked,
// ContentLength(n), or Unknown. Length is meaningful only when Kind is
// ContentLength.
type Encoding struct {
	Kind   Kind
	Length uint64
}

// Ownership describes who is responsible for a Buffer's backing storage.
type Ownership uint8

const (
	// SystemOwned means the transfer core still owns the backing bytes;
	// a callback that wants to retain them past its own call must copy.
	SystemOwned Ownership = iota
	// UserOwned means the backing bytes were handed to a callback and
	// the transfer core will not free or reuse them.
	UserOwned
)

// Buffer is an owned byte range handed to a callback. It borrows its
// bytes only for the duration of the call unless Ownership is UserOwned,
// in which case the callback has taken the backing slice and the core
// will not touch it again.
type Buffer struct {
	Data      []byte
	Ownership Ownership
}

// Len returns the number of bytes in the buffer.
func (b Buffer) Len() int { return len(b.Data) }

// Disposition is the Continue|End control value a callback returns to
// tell the transfer core whether to keep going or stop the transfer
// early. It intentionally has only these two values, matching
// spec.md §6's conceptual callback signatures.
type Disposition uint8

const (
	// Continue asks the transfer to proceed normally.
	Continue Disposition = iota
	// End asks the transfer to stop without further callbacks of that kind.
	End
)
