package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/doorgate/internal/config"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/daemon"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/service"
	"github.com/BrandonDHaskell/doorgate/internal/grpcapi"
	"github.com/BrandonDHaskell/doorgate/internal/httpapi"
	"github.com/BrandonDHaskell/doorgate/internal/logging"
	"github.com/BrandonDHaskell/doorgate/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Lock daemon
	client := daemon.NewClient(cfg.DaemonConfig())
	logger.Info("lock daemon",
		zap.String("addr", client.Addr()),
		zap.String("protocol", client.Variant().Name()),
	)

	// Services
	rec := metrics.NewRecorder()
	lockSvc := service.NewLockService(client, rec)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger.Named("http"),
		Addr:           cfg.HTTPAddr,
		LockService:    lockSvc,
		Metrics:        rec.Handler(),
		Page:           httpapi.Page{Title: cfg.Banner(), Welcome: cfg.Welcome},
		TrustProxy:     cfg.TrustProxy,
		AllowedOrigins: cfg.Origins(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	// gRPC health, optional
	var (
		grpcSrv *grpcapi.Server
		prober  *grpcapi.DaemonProber
	)
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(grpcapi.Dependencies{
			Logger: logger.Named("grpc"),
			Addr:   cfg.GRPCAddr,
		})
		go func() {
			if err := grpcSrv.Start(); err != nil {
				logger.Error("grpc server error", zap.Error(err))
				stop()
			}
		}()

		prober = grpcapi.NewDaemonProber(client, grpcSrv.Health(), grpcapi.ProberConfig{
			Interval: cfg.ProbeInterval,
			Timeout:  cfg.DialTimeout,
		}, logger.Named("prober"))
		prober.Start(ctx)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if prober != nil {
		prober.Stop()
	}
	if grpcSrv != nil {
		_ = grpcSrv.Shutdown(shutdownCtx)
	}
	_ = srv.Shutdown(shutdownCtx)
}
