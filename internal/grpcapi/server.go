// Package grpcapi exposes the standard gRPC health service for the
// gateway and a background check of lock daemon reachability.
package grpcapi

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DaemonService is the health service name that tracks the lock daemon.
const DaemonService = "doorgate.daemon"

type Dependencies struct {
	Logger *zap.Logger
	Addr   string
}

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *zap.Logger
	addr       string
}

// NewServer registers the health service. The overall ("") service is
// SERVING for as long as the server runs; DaemonService is only known
// once a DaemonProber has reported.
func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpcServer: gs,
		health:     hs,
		logger:     logger,
		addr:       d.Addr,
	}
}

// Health returns the health server so a prober can update DaemonService.
func (s *Server) Health() *health.Server { return s.health }

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	return s.grpcServer.Serve(lis)
}

// Shutdown drains in-flight RPCs, falling back to a hard stop when ctx
// expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}
