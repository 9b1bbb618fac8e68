package grpcapi_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/doorgate/internal/grpcapi"
)

const bufSize = 1024 * 1024

type fakePinger struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (p *fakePinger) Ping(context.Context) error {
	p.calls.Add(1)
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

type recordingSetter struct {
	mu       sync.Mutex
	statuses []healthpb.HealthCheckResponse_ServingStatus
}

func (r *recordingSetter) SetServingStatus(service string, s healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if service == grpcapi.DaemonService {
		r.statuses = append(r.statuses, s)
	}
}

func (r *recordingSetter) latest() healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return r.statuses[len(r.statuses)-1]
}

func TestDaemonProber_TracksReachability(t *testing.T) {
	pinger := &fakePinger{}
	setter := &recordingSetter{}

	p := grpcapi.NewDaemonProber(pinger, setter, grpcapi.ProberConfig{Interval: 10 * time.Millisecond}, zap.NewNop())
	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool {
		return setter.latest() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	pinger.down.Store(true)
	assert.Eventually(t, func() bool {
		return setter.latest() == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	pinger.down.Store(false)
	assert.Eventually(t, func() bool {
		return setter.latest() == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)
}

func TestDaemonProber_Disabled(t *testing.T) {
	pinger := &fakePinger{}
	setter := &recordingSetter{}

	p := grpcapi.NewDaemonProber(pinger, setter, grpcapi.ProberConfig{}, zap.NewNop())
	p.Start(context.Background())
	p.Stop()

	assert.Zero(t, pinger.calls.Load())
	assert.Equal(t, healthpb.HealthCheckResponse_UNKNOWN, setter.latest())
}

func TestDaemonProber_StopsWithContext(t *testing.T) {
	pinger := &fakePinger{}
	ctx, cancel := context.WithCancel(context.Background())

	p := grpcapi.NewDaemonProber(pinger, &recordingSetter{}, grpcapi.ProberConfig{Interval: time.Hour}, zap.NewNop())
	p.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("prober did not stop after context cancellation")
	}
	assert.Equal(t, int32(1), pinger.calls.Load(), "one immediate probe on start")
}

func dialHealth(t *testing.T, srv *grpcapi.Server) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func TestServer_HealthCheck(t *testing.T) {
	srv := grpcapi.NewServer(grpcapi.Dependencies{Logger: zap.NewNop()})
	client := dialHealth(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	_, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: grpcapi.DaemonService})
	assert.Equal(t, codes.NotFound, status.Code(err), "daemon status is unknown until probed")

	pinger := &fakePinger{}
	pinger.down.Store(true)
	p := grpcapi.NewDaemonProber(pinger, srv.Health(), grpcapi.ProberConfig{Interval: 10 * time.Millisecond}, zap.NewNop())
	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: grpcapi.DaemonService})
		return err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 10*time.Millisecond)
}
