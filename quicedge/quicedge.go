// Package quicedge exposes the JSON-RPC router over QUIC: one
// bidirectional stream per request, each stream carrying exactly one
// length-prefixed request and one length-prefixed response before closing.
// This is the external, network-facing counterpart spec.md scopes as an
// "external collaborator" interface only — quic-go is the implementation,
// named rather than teacher-grounded since no pack repo ships a QUIC stack.
package quicedge

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/quic-go/quic-go"

	"github.com/launix-de/ultra-geyser-pipeline/internal/logging"
	"github.com/launix-de/ultra-geyser-pipeline/rpc"
)

// ALPN is the protocol token negotiated by both ends.
const ALPN = "jsonrpc-quic"

// MaxFrameBody bounds one request or response frame body.
const MaxFrameBody = 1 << 20

var edgeLog = logging.New("quicedge")

// ServerConfig bundles listener tunables.
type ServerConfig struct {
	Addr      string
	TLSConfig *tls.Config
	QUICConfig *quic.Config
}

// Serve accepts connections on cfg.Addr until ctx is cancelled, dispatching
// every stream's single request through router and writing back its
// response. It blocks until ctx is done or a fatal listener error occurs.
func Serve(ctx context.Context, cfg ServerConfig, router *rpc.Router) error {
	tlsConf := cfg.TLSConfig
	if tlsConf == nil {
		return fmt.Errorf("quicedge: TLSConfig is required")
	}
	tlsConf.NextProtos = []string{ALPN}

	ln, err := quic.ListenAddr(cfg.Addr, tlsConf, cfg.QUICConfig)
	if err != nil {
		return fmt.Errorf("quicedge: listen %s: %w", cfg.Addr, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			edgeLog.Warnf("accept: %v", err)
			continue
		}
		go serveConnection(ctx, conn, router)
	}
}

func serveConnection(ctx context.Context, conn quic.Connection, router *rpc.Router) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go serveStream(stream, router)
	}
}

func serveStream(stream quic.Stream, router *rpc.Router) {
	defer stream.Close()
	body, err := readFrame(stream)
	if err != nil {
		edgeLog.Warnf("read request frame: %v", err)
		return
	}
	resp := router.Dispatch(body)
	if err := writeFrame(stream, resp); err != nil {
		edgeLog.Warnf("write response frame: %v", err)
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameBody {
		return nil, fmt.Errorf("quicedge: frame body %d exceeds max %d", n, MaxFrameBody)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("quicedge: truncated frame body: %w", err)
	}
	return body, nil
}

func writeFrame(w io.Writer, body []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
