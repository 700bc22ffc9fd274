package transfer

// chunkState tracks the in-progress HTTP chunked decode over a Reader's
// recv_buf, per spec.md §3 invariant 4: idx names a position inside the
// current chunk's payload region, and len is how many bytes of that
// payload have not yet been collapsed into the delivery region.
type chunkState struct {
	idx int
	len int
}

// decodeHex parses a non-empty, case-insensitive run of hex digits,
// most-significant digit first, stopping at the first non-hex byte
// (spec.md §4.1 "Hex decode"). It returns the decoded value and the
// number of digits consumed; width is 0 if src does not start with a
// hex digit.
func decodeHex(src []byte) (value uint64, width int) {
	for width < len(src) {
		b := src[width]
		var d uint64
		switch {
		case b >= '0' && b <= '9':
			d = uint64(b - '0')
		case b >= 'a' && b <= 'f':
			d = uint64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			d = uint64(b-'A') + 10
		default:
			return value, width
		}
		value = value<<4 | d
		width++
	}
	return value, width
}

// decodeChunk runs one decode pass over q, collapsing chunk framing
// (size line, chunk extensions, inter-chunk CRLF) out of the buffer in
// place, per spec.md §4.1 "Chunked decoder". It returns the number of
// newly collapsed body bytes (the prefix q.Bytes()[0:state.idx] grows by
// this much), whether the zero-length terminator chunk was consumed, and
// a non-nil error if the framing is conclusively malformed (the
// deliberate ProtocolError enhancement over the original's permissive
// stall-on-bad-input behavior).
func decodeChunk(state *chunkState, q *byteQueue) (delivered int, done bool, err error) {
	for {
		buf := q.Bytes()
		pos := state.idx + state.len

		// Not enough data to finish the chunk and the smallest possible
		// next chunk header: 1 hex digit + CRLF, plus the 2-byte
		// inter-chunk separator when this isn't the opening chunk.
		minNeeded := 3
		var searchFrom int
		if state.len > 0 {
			minNeeded = 5
			searchFrom = pos + 2
		} else {
			searchFrom = 0
		}
		if pos+minNeeded > len(buf) {
			return delivered, done, nil
		}
		found := substringIndex(buf[searchFrom:], crlf)
		if found < 0 {
			return delivered, done, nil // header line hasn't fully arrived
		}
		if found == 0 && state.len > 0 {
			// CRLF immediately after the assumed trailing CRLF: zero hex
			// digits before it, which is not a valid chunk-size line.
			return delivered, done, ErrMalformedChunk
		}

		headerStart := pos
		if state.len > 0 {
			if buf[pos] != '\r' || buf[pos+1] != '\n' {
				// The payload is fully buffered but not followed by CRLF.
				return delivered, done, ErrMalformedChunk
			}
			// Remove the CRLF that terminated the previous chunk's payload.
			q.RemoveBlock(pos, 2)
		}

		buf = q.Bytes()
		size, width := decodeHex(buf[headerStart:])
		if width == 0 {
			return delivered, done, ErrMalformedChunk
		}

		// The chunk that just finished arriving is now fully accounted for.
		state.idx += state.len
		delivered += state.len
		state.len = int(size)

		extEnd := substringIndex(buf[headerStart+width:], crlf)
		if extEnd < 0 {
			return delivered, done, nil // extensions not fully arrived yet
		}
		headerLen := width + extEnd

		if state.len == 0 {
			done = true
		}

		// Remove the hexified length, any chunk extensions, and the CRLF
		// terminating the header line.
		q.RemoveBlock(headerStart, headerLen+2)

		if done {
			return delivered, done, nil
		}
	}
}

// appendChunkHeader writes the size-line prefix for a chunk of the given
// length into dst, in lowercase hex, preceded by "\r\n" unless this is
// the first chunk of the transfer (chunkCount == 0).
func appendChunkHeader(dst []byte, length int, chunkCount int) []byte {
	if chunkCount > 0 {
		dst = append(dst, '\r', '\n')
	}
	dst = appendHex(dst, uint64(length))
	dst = append(dst, '\r', '\n')
	return dst
}

// appendChunkTerminator writes the zero-length terminating chunk,
// "0\r\n", preceded by the inter-chunk separator when chunkCount > 0,
// exactly like any other chunk header of length zero (spec.md §6: "the
// terminator is literally \r\n0\r\n"; §8 scenarios 1 and 5 confirm no
// further trailing CRLF). No trailers are parsed or produced.
func appendChunkTerminator(dst []byte, chunkCount int) []byte {
	return appendChunkHeader(dst, 0, chunkCount)
}

func appendHex(dst []byte, v uint64) []byte {
	if v == 0 {
		return append(dst, '0')
	}
	var tmp [16]byte
	i := len(tmp)
	const digits = "0123456789abcdef"
	for v > 0 {
		i--
		tmp[i] = digits[v&0xf]
		v >>= 4
	}
	return append(dst, tmp[i:]...)
}
