package main

import (
	"bytes"
	"strconv"
)

// header is a small, case-insensitive header store, adapted from the
// inline-storage Header type in shockwave's http11 package, trimmed to
// what a demo relay needs: parse once, look up a handful of names. The
// zero-alloc inline-array storage and the >32-header overflow path
// aren't worth carrying for a relay that only ever reads its own
// request lines.
type header struct {
	names  [][]byte
	values [][]byte
}

func (h *header) add(name, value []byte) {
	h.names = append(h.names, name)
	h.values = append(h.values, value)
}

func (h *header) get(name string) []byte {
	for i, n := range h.names {
		if bytesEqualFold(n, name) {
			return h.values[i]
		}
	}
	return nil
}

func bytesEqualFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		c := b[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		d := s[i]
		if d >= 'A' && d <= 'Z' {
			d += 'a' - 'A'
		}
		if c != d {
			return false
		}
	}
	return true
}

// requestLine is method, path and HTTP version off a request's first
// line, mirroring the fields http11.Request exposes from its
// request-line parse.
type requestLine struct {
	method, path, version []byte
}

var errMalformedRequestLine = errMalformed("xferrelay: malformed request line")
var errMalformedHeaderLine = errMalformed("xferrelay: malformed header line")

type errMalformed string

func (e errMalformed) Error() string { return string(e) }

// parseHeaderBlock splits a full header block, request line plus
// header lines, terminating blank line included, into its request
// line and headers, the same two-stage split http11.Parser does
// against its own buffer.
func parseHeaderBlock(block []byte) (requestLine, *header, error) {
	block = bytes.TrimSuffix(block, crlf)
	block = bytes.TrimSuffix(block, crlf)
	lineEnd := bytes.Index(block, crlf)
	if lineEnd < 0 {
		return requestLine{}, nil, errMalformedRequestLine
	}
	rl, err := parseRequestLine(block[:lineEnd])
	if err != nil {
		return requestLine{}, nil, err
	}

	h := &header{}
	rest := block[lineEnd+2:]
	for len(rest) > 0 {
		nl := bytes.Index(rest, crlf)
		if nl < 0 {
			nl = len(rest)
		}
		line := rest[:nl]
		colon := bytes.IndexByte(line, ':')
		if colon <= 0 {
			return requestLine{}, nil, errMalformedHeaderLine
		}
		name := bytes.TrimSpace(line[:colon])
		value := bytes.TrimSpace(line[colon+1:])
		h.add(name, value)
		if nl == len(rest) {
			break
		}
		rest = rest[nl+2:]
	}
	return rl, h, nil
}

func parseRequestLine(line []byte) (requestLine, error) {
	parts := bytes.Fields(line)
	if len(parts) != 3 {
		return requestLine{}, errMalformedRequestLine
	}
	return requestLine{method: parts[0], path: parts[1], version: parts[2]}, nil
}

// contentLength parses the Content-Length header, or returns ok=false
// if absent.
func contentLength(h *header) (n uint64, ok bool, err error) {
	v := h.get("content-length")
	if v == nil {
		return 0, false, nil
	}
	n, perr := strconv.ParseUint(string(v), 10, 64)
	if perr != nil {
		return 0, true, errMalformed("xferrelay: invalid Content-Length")
	}
	return n, true, nil
}

func isChunked(h *header) bool {
	v := h.get("transfer-encoding")
	return v != nil && bytesEqualFold(v, "chunked")
}

func wantsGzip(h *header) bool {
	v := h.get("accept-encoding")
	return v != nil && bytes.Contains(bytes.ToLower(v), []byte("gzip"))
}

func keepAlive(rl requestLine, h *header) bool {
	if v := h.get("connection"); v != nil {
		return bytesEqualFold(v, "keep-alive")
	}
	return bytesEqualFold(rl.version, "http/1.1")
}

var crlf = []byte("\r\n")
