// Package transfer implements the asynchronous HTTP/1.x message transfer
// core: a reader and a writer that drive a single full-duplex exchange
// over a non-blocking byte channel, one readiness callback at a time.
//
// Neither side ever blocks. Both are driven entirely by an
// ioreactor.Reactor delivering readable/writable/error callbacks; between
// those callbacks, a Reader or Writer is simply idle. Callers are
// responsible for connection lifecycle (dialing, TLS, pooling, keep-alive
// reuse) and for header semantics beyond transfer framing; this package
// only finds the header/body boundary and decodes/encodes the body once
// the caller has told it which of chunked, content-length, or
// connection-close framing applies.
package transfer
