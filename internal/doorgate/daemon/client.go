// Package daemon is the TCP client for the lock daemon. Every exchange uses
// a fresh connection: dial, one write, read one response, close.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
)

const (
	DefaultAddr             = "127.0.0.1:5555"
	DefaultDialTimeout      = 3 * time.Second
	DefaultIOTimeout        = 5 * time.Second
	DefaultMaxResponseBytes = 1024
)

// Config holds the connection parameters for NewClient. Zero values fall
// back to the defaults above.
type Config struct {
	Addr             string
	DialTimeout      time.Duration
	IOTimeout        time.Duration
	MaxResponseBytes int
	Variant          protocol.Variant
}

// Framer reports whether buf already holds a complete response.
type Framer func(buf []byte) bool

// Client talks to one lock daemon. It holds no connection between calls
// and is safe for concurrent use.
type Client struct {
	addr        string
	dialTimeout time.Duration
	ioTimeout   time.Duration
	maxResponse int
	variant     protocol.Variant
	dialer      net.Dialer
}

func NewClient(cfg Config) *Client {
	c := &Client{
		addr:        cfg.Addr,
		dialTimeout: cfg.DialTimeout,
		ioTimeout:   cfg.IOTimeout,
		maxResponse: cfg.MaxResponseBytes,
		variant:     cfg.Variant,
	}
	if c.addr == "" {
		c.addr = DefaultAddr
	}
	if c.dialTimeout <= 0 {
		c.dialTimeout = DefaultDialTimeout
	}
	if c.ioTimeout <= 0 {
		c.ioTimeout = DefaultIOTimeout
	}
	if c.maxResponse <= 0 {
		c.maxResponse = DefaultMaxResponseBytes
	}
	if c.variant == nil {
		c.variant = protocol.Modern{}
	}
	c.dialer = net.Dialer{Timeout: c.dialTimeout}
	return c
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Variant() protocol.Variant { return c.variant }

// Exchange sends req and returns the daemon's decoded verdict. Gateway-side
// failures are returned as errors wrapping the protocol sentinels; a
// daemon-reported failure is a nil error with a non-zero Code.
//
// The exchange ignores cancellation of ctx once started: the daemon may
// already be moving the lock, so the round trip runs until it completes or
// hits its own deadlines.
func (c *Client) Exchange(ctx context.Context, req protocol.LockRequest) (protocol.LockResponse, error) {
	payload, err := c.variant.Encode(req)
	if err != nil {
		return protocol.LockResponse{}, fmt.Errorf("%w: %v", protocol.ErrRequestEncoding, err)
	}

	raw, err := c.RoundTrip(context.WithoutCancel(ctx), payload, c.variant.Complete)
	if err != nil {
		return protocol.LockResponse{}, err
	}

	return protocol.Interpret(c.variant, raw)
}

// RoundTrip writes payload in a single write and reads one response of at
// most the configured size. Reading stops at the first complete frame, at
// EOF, or when the buffer is full.
func (c *Client) RoundTrip(ctx context.Context, payload []byte, complete Framer) ([]byte, error) {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrTransportUnavailable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.ioTimeout)); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", protocol.ErrTransportWrite, err)
	}

	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrTransportWrite, err)
	}

	buf := make([]byte, c.maxResponse)
	n := 0
	for n < len(buf) {
		m, rerr := conn.Read(buf[n:])
		n += m
		if complete != nil && complete(buf[:n]) {
			break
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) && n > 0 {
				break
			}
			if n == 0 {
				return nil, fmt.Errorf("%w: no data: %v", protocol.ErrTransportRead, rerr)
			}
			return nil, fmt.Errorf("%w: after %d bytes: %v", protocol.ErrTransportRead, n, rerr)
		}
	}

	return buf[:n], nil
}

// Ping dials the daemon and closes the connection without sending a
// request.
func (c *Client) Ping(ctx context.Context) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("%w: %v", protocol.ErrTransportUnavailable, err)
	}
	return conn.Close()
}
