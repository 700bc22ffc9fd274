// Package socket implements transfer.Channel over a raw, non-blocking
// TCP file descriptor, plus the listener and per-connection tuning an
// HTTP server built on the transfer package needs (SPEC_FULL §2
// DOMAIN STACK). It is adapted from the teacher's socket package: same
// Config/Apply shape, rewritten against a raw fd the ioreactor package
// can register directly, rather than a blocking net.Conn.
package socket
