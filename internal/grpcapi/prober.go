package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger checks that the lock daemon accepts connections.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter receives health transitions. *health.Server satisfies it.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// DaemonProber periodically pings the lock daemon and publishes the result
// as the DaemonService health status. It runs as a background goroutine
// and is stopped via its context or the Stop method.
//
// An interval of 0 disables probing entirely.
type DaemonProber struct {
	pinger   Pinger
	status   StatusSetter
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	last healthpb.HealthCheckResponse_ServingStatus
}

// ProberConfig holds the parameters for NewDaemonProber.
type ProberConfig struct {
	// Interval is how often the daemon is pinged. 0 disables the prober.
	Interval time.Duration

	// Timeout bounds each ping. Defaults to the interval, capped at 5s.
	Timeout time.Duration
}

// NewDaemonProber creates a prober but does not start it.
func NewDaemonProber(p Pinger, s StatusSetter, cfg ProberConfig, logger *zap.Logger) *DaemonProber {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = min(cfg.Interval, 5*time.Second)
	}

	return &DaemonProber{
		pinger:   p,
		status:   s,
		interval: cfg.Interval,
		timeout:  timeout,
		logger:   logger,
		done:     make(chan struct{}),
		last:     healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// Start probes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *DaemonProber) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Info("daemon prober disabled (interval=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Info("daemon prober started", zap.Duration("interval", p.interval))
}

// Stop signals the prober to exit and waits for it to finish.
func (p *DaemonProber) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *DaemonProber) loop(ctx context.Context) {
	defer close(p.done)

	p.probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *DaemonProber) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	next := healthpb.HealthCheckResponse_SERVING
	err := p.pinger.Ping(ctx)
	if err != nil {
		next = healthpb.HealthCheckResponse_NOT_SERVING
	}

	p.status.SetServingStatus(DaemonService, next)

	// Log transitions only.
	if next == p.last {
		return
	}
	p.last = next
	if err != nil {
		p.logger.Warn("lock daemon unreachable", zap.Error(err))
		return
	}
	p.logger.Info("lock daemon reachable")
}
