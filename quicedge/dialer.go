package quicedge

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/quic-go/quic-go"
)

// Client wraps one QUIC connection to a quicedge server, opening one
// bidirectional stream per call. Used by cmd/ultra-bench.
type Client struct {
	conn quic.Connection
}

// Dial establishes a QUIC connection to addr and negotiates the ALPN token.
func Dial(ctx context.Context, addr string, tlsConf *tls.Config, quicConf *quic.Config) (*Client, error) {
	conf := *tlsConf
	conf.NextProtos = []string{ALPN}
	conn, err := quic.DialAddr(ctx, addr, &conf, quicConf)
	if err != nil {
		return nil, fmt.Errorf("quicedge: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Call sends one request body on a fresh bidirectional stream and returns
// the response body.
func (c *Client) Call(ctx context.Context, body []byte) ([]byte, error) {
	stream, err := c.conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("quicedge: open stream: %w", err)
	}

	if err := writeFrame(stream, body); err != nil {
		stream.Close()
		return nil, fmt.Errorf("quicedge: write request: %w", err)
	}
	// Close signals end-of-request on the send side; the receive side
	// stays open for the server's response.
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("quicedge: close write side: %w", err)
	}
	resp, err := readFrame(stream)
	if err != nil {
		return nil, fmt.Errorf("quicedge: read response: %w", err)
	}
	return resp, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.CloseWithError(0, "client closed")
}
