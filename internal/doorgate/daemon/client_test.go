package daemon_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/daemon"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
)

// fakeDaemon accepts connections on a loopback port and hands each one to
// handle. Received request lines are sent on the returned channel.
func fakeDaemon(t *testing.T, handle func(conn net.Conn, line string)) (string, <-chan string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	lines := make(chan string, 16)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				line, _ := bufio.NewReader(conn).ReadString('\n')
				lines <- line
				handle(conn, line)
			}(conn)
		}
	}()

	return ln.Addr().String(), lines
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func reply(body string) func(net.Conn, string) {
	return func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte(body))
	}
}

var unlockReq = protocol.NewLockRequest("unlock", "cook", "secret", "0123456789abcdef", "10.0.0.7")

// ── Success paths ────────────────────────────────────────────────────────────

func TestExchange_ModernSuccess(t *testing.T) {
	addr, lines := fakeDaemon(t, reply(`{"code":0,"message":"Success"}`))
	c := daemon.NewClient(daemon.Config{Addr: addr, Variant: protocol.Modern{}})

	resp, err := c.Exchange(context.Background(), unlockReq)
	require.NoError(t, err)
	assert.True(t, resp.OK())

	line := <-lines
	assert.Equal(t,
		`{"user":"cook","password":"secret","command":"unlock","token":"0123456789abcdef","ip":"10.0.0.7"}`+"\n",
		line)
}

func TestExchange_ModernStyledResponseWithoutClose(t *testing.T) {
	// The daemon keeps the connection open; the client must stop once the
	// JSON object is complete rather than wait for EOF.
	addr, _ := fakeDaemon(t, func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte("{\n   \"code\" : 2,\n   \"message\" : \"Already unlocked\"\n}\n"))
		time.Sleep(2 * time.Second)
	})
	c := daemon.NewClient(daemon.Config{Addr: addr, IOTimeout: 5 * time.Second})

	start := time.Now()
	resp, err := c.Exchange(context.Background(), unlockReq)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeAlreadyUnlocked, resp.Code)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExchange_DaemonFailureIsNotAnError(t *testing.T) {
	addr, _ := fakeDaemon(t, reply(`{"code":7,"message":"Invalid LDAP credentials"}`))
	c := daemon.NewClient(daemon.Config{Addr: addr})

	resp, err := c.Exchange(context.Background(), unlockReq)
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeInvalidCredentials, resp.Code)
	assert.False(t, resp.OK())
}

func TestExchange_Legacy(t *testing.T) {
	addr, lines := fakeDaemon(t, reply("3\n"))
	c := daemon.NewClient(daemon.Config{Addr: addr, Variant: protocol.Legacy{}})

	resp, err := c.Exchange(context.Background(), protocol.NewLockRequest("lock", "cook", "secret", "0123456789abcdef", "10.0.0.7"))
	require.NoError(t, err)
	assert.Equal(t, protocol.CodeAlreadyLocked, resp.Code)

	line := <-lines
	assert.Contains(t, line, `"action":"lock"`)
	assert.Contains(t, line, `"authenticate":true`)
}

// ── Failure paths ────────────────────────────────────────────────────────────

func TestExchange_ConnectionRefused(t *testing.T) {
	c := daemon.NewClient(daemon.Config{Addr: closedAddr(t), DialTimeout: time.Second})

	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrTransportUnavailable)
	assert.NotContains(t, err.Error(), "secret")
}

func TestExchange_ZeroBytes(t *testing.T) {
	addr, _ := fakeDaemon(t, func(net.Conn, string) {})
	c := daemon.NewClient(daemon.Config{Addr: addr})

	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrTransportRead)
}

func TestExchange_Malformed(t *testing.T) {
	addr, _ := fakeDaemon(t, reply("this is not json"))
	c := daemon.NewClient(daemon.Config{Addr: addr})

	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrMalformedResponse)
}

func TestExchange_ReadTimeout(t *testing.T) {
	addr, _ := fakeDaemon(t, func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte(`{"code":0,`))
		time.Sleep(time.Second)
	})
	c := daemon.NewClient(daemon.Config{Addr: addr, IOTimeout: 200 * time.Millisecond})

	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrTransportRead)
}

func TestExchange_ResponseBounded(t *testing.T) {
	addr, _ := fakeDaemon(t, reply(strings.Repeat("x", 4096)))
	c := daemon.NewClient(daemon.Config{Addr: addr, MaxResponseBytes: 64})

	raw, err := c.RoundTrip(context.Background(), []byte("ping\n"), nil)
	require.NoError(t, err)
	assert.Len(t, raw, 64)
}

func TestExchange_IgnoresCallerCancellation(t *testing.T) {
	addr, _ := fakeDaemon(t, func(conn net.Conn, _ string) {
		time.Sleep(100 * time.Millisecond)
		_, _ = conn.Write([]byte(`{"code":0,"message":"Success"}`))
	})
	c := daemon.NewClient(daemon.Config{Addr: addr})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := c.Exchange(ctx, unlockReq)
	require.NoError(t, err)
	assert.True(t, resp.OK())
}

func TestRoundTrip_WriteFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	// Accept and reset the connection at once so the client's write fails.
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.(*net.TCPConn).SetLinger(0)
		_ = conn.Close()
	}()

	c := daemon.NewClient(daemon.Config{Addr: ln.Addr().String(), IOTimeout: 2 * time.Second})

	_, err = c.RoundTrip(context.Background(), bytes.Repeat([]byte("x"), 16<<20), nil)
	assert.ErrorIs(t, err, protocol.ErrTransportWrite)
	assert.Equal(t, protocol.KindTransportWrite, protocol.KindOf(err))
}

func TestExchange_DialTimeout(t *testing.T) {
	// 10.255.255.1 is not routed; the dial hangs until the timeout.
	c := daemon.NewClient(daemon.Config{Addr: "10.255.255.1:5555", DialTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrTransportUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

// brokenVariant fails to encode every request.
type brokenVariant struct{ protocol.Modern }

func (brokenVariant) Encode(protocol.LockRequest) ([]byte, error) {
	return nil, errors.New("unsupported value")
}

func TestExchange_EncodeFailure_NoDial(t *testing.T) {
	addr, lines := fakeDaemon(t, reply(`{"code":0,"message":"Success"}`))
	c := daemon.NewClient(daemon.Config{Addr: addr, Variant: brokenVariant{}})

	_, err := c.Exchange(context.Background(), unlockReq)
	assert.ErrorIs(t, err, protocol.ErrRequestEncoding)
	assert.Equal(t, protocol.KindRequestEncoding, protocol.KindOf(err))

	select {
	case <-lines:
		t.Fatal("daemon must not be contacted")
	case <-time.After(100 * time.Millisecond):
	}
}

// ── Ping ─────────────────────────────────────────────────────────────────────

func TestPing(t *testing.T) {
	addr, _ := fakeDaemon(t, func(net.Conn, string) {})
	c := daemon.NewClient(daemon.Config{Addr: addr})
	assert.NoError(t, c.Ping(context.Background()))

	down := daemon.NewClient(daemon.Config{Addr: closedAddr(t)})
	assert.ErrorIs(t, down.Ping(context.Background()), protocol.ErrTransportUnavailable)
}

func TestNewClient_Defaults(t *testing.T) {
	c := daemon.NewClient(daemon.Config{})
	assert.Equal(t, daemon.DefaultAddr, c.Addr())
	assert.Equal(t, protocol.ModernName, c.Variant().Name())
}
