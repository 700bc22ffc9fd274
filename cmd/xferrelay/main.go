// Command xferrelay is a small HTTP/1.1 echo relay built directly on
// top of the transfer, ioreactor and socket packages: it accepts
// connections, reads one request's body to completion, and writes back
// a response that echoes that body, gzip-compressed if the request
// asked for it via Accept-Encoding. It exists to exercise the transfer
// core end to end against a real kernel socket and a real epoll loop,
// and to demonstrate the header-level framing decisions (Content-Length
// vs chunked vs connection-close) that spec.md leaves to the caller.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/yourusername/asynctransfer/ioreactor"
	"github.com/yourusername/asynctransfer/socket"
	"github.com/yourusername/asynctransfer/transfer"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "xferrelay: logger setup:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*addr, logger); err != nil {
		logger.Fatal("xferrelay exited", zap.Error(err))
	}
}

func run(addr string, logger *zap.Logger) error {
	reactor, err := ioreactor.New(ioreactor.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("xferrelay: reactor: %w", err)
	}
	defer reactor.Close()

	ln, err := socket.Listen(addr, nil)
	if err != nil {
		return fmt.Errorf("xferrelay: listen %s: %w", addr, err)
	}
	defer ln.Close()
	logger.Info("listening", zap.String("addr", addr))

	relay := &relayServer{reactor: reactor, logger: logger}

	watcher, err := reactor.WatchRead(ln, func() { relay.acceptLoop(ln) }, func() {
		logger.Error("listener error callback fired")
	})
	if err != nil {
		return fmt.Errorf("xferrelay: watch listener: %w", err)
	}
	defer watcher.Cancel()

	return reactor.Run()
}

type relayServer struct {
	reactor *ioreactor.Reactor
	logger  *zap.Logger
}

// acceptLoop drains every connection pending on ln, since a single
// epoll readiness edge can coalesce more than one.
func (s *relayServer) acceptLoop(ln *socket.Listener) {
	for {
		ch, err := ln.Accept()
		if err != nil {
			if err != transfer.ErrWouldBlock {
				s.logger.Warn("accept failed", zap.Error(err))
			}
			return
		}
		s.handleConnection(ch)
	}
}

// handleConnection reads one request to completion and writes back its
// echoed response, then closes the connection. Pipelining and
// keep-alive reuse are left to a real server; this is a demo of the
// transfer core, not a production HTTP stack.
func (s *relayServer) handleConnection(ch *socket.Channel) {
	var reqBody bytes.Buffer
	var rl requestLine
	var reqHeaders *header

	var readHandle transfer.ReaderHandle
	var err error
	readHandle, err = transfer.ReadStart(s.reactor, ch, false, transfer.ReaderCallbacks{
		HeadersDone: func(block []byte) (transfer.Encoding, transfer.Disposition) {
			parsedLine, h, perr := parseHeaderBlock(block)
			if perr != nil {
				s.logger.Warn("malformed request", zap.Error(perr))
				ch.Close()
				return transfer.Encoding{}, transfer.End
			}
			rl, reqHeaders = parsedLine, h
			return requestEncoding(h), transfer.Continue
		},
		BodyChunk: func(buf transfer.Buffer) transfer.Disposition {
			// overwrite=false: every delivery carries the whole body
			// received so far, so only the latest one is kept.
			reqBody.Reset()
			reqBody.Write(buf.Data)
			return transfer.Continue
		},
		Done: func(buf transfer.Buffer) {
			// The last BodyChunk already carried the full body; buf here
			// is the same bytes handed back, not additional ones.
			s.respond(ch, rl, reqHeaders, reqBody.Bytes())
		},
		Error: func(bodyStarted bool, err error) {
			s.logger.Warn("request read failed", zap.Bool("body_started", bodyStarted), zap.Error(err))
			ch.Close()
		},
	}, transfer.WithReaderLogger(s.logger))
	if err != nil {
		s.logger.Error("read start failed", zap.Error(err))
		ch.Close()
		return
	}
	_ = readHandle
}

func requestEncoding(h *header) transfer.Encoding {
	if isChunked(h) {
		return transfer.Encoding{Kind: transfer.Chunked}
	}
	if n, ok, _ := contentLength(h); ok {
		return transfer.Encoding{Kind: transfer.ContentLength, Length: n}
	}
	return transfer.Encoding{Kind: transfer.Unknown}
}

// respond writes back the echoed body, gzip-compressed if the request
// asked for it, as Content-Length since the encoded length is always
// known up front once gzip (if any) has run.
func (s *relayServer) respond(ch *socket.Channel, rl requestLine, h *header, body []byte) {
	gz := h != nil && wantsGzip(h)
	payload := body
	if gz {
		var buf bytes.Buffer
		w := gzip.NewWriter(&buf)
		if _, err := w.Write(body); err != nil {
			s.logger.Warn("gzip encode failed", zap.Error(err))
			gz = false
		} else {
			w.Close()
			payload = buf.Bytes()
		}
	}

	alive := h != nil && keepAlive(rl, h)
	var resp bytes.Buffer
	fmt.Fprintf(&resp, "HTTP/1.1 200 OK\r\n")
	fmt.Fprintf(&resp, "Content-Length: %d\r\n", len(payload))
	if gz {
		fmt.Fprintf(&resp, "Content-Encoding: gzip\r\n")
	}
	if alive {
		fmt.Fprintf(&resp, "Connection: keep-alive\r\n")
	} else {
		fmt.Fprintf(&resp, "Connection: close\r\n")
	}
	resp.WriteString("\r\n")

	idx := 0
	_, err := transfer.WriteStart(s.reactor, ch, resp.Bytes(), nil, transfer.Encoding{Kind: transfer.ContentLength, Length: uint64(len(payload))}, transfer.WriterCallbacks{
		ProduceBody: func() (transfer.Buffer, transfer.Disposition) {
			if idx >= len(payload) {
				return transfer.Buffer{}, transfer.End
			}
			chunk := payload[idx:]
			idx = len(payload)
			return transfer.Buffer{Data: chunk}, transfer.End
		},
		Done: func() {
			if !alive {
				ch.Close()
			}
		},
		Error: func(err error) {
			s.logger.Warn("response write failed", zap.Error(err))
			ch.Close()
		},
	}, transfer.WithWriterLogger(s.logger))
	if err != nil {
		s.logger.Error("write start failed", zap.Error(err))
		ch.Close()
	}
}
