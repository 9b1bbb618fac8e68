// Package metrics exposes lock request outcomes as Prometheus series.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BrandonDHaskell/doorgate/internal/doorgate/protocol"
	"github.com/BrandonDHaskell/doorgate/internal/doorgate/store"
)

const namespace = "doorgate"

// Recorder implements store.OutcomeRecorder on top of a Prometheus
// registry.
type Recorder struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	responses *prometheus.CounterVec
	exchange  prometheus.Histogram
}

// NewRecorder registers the gateway collectors on a fresh registry along
// with the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_requests_total",
			Help:      "Lock requests by command, outcome and failure kind.",
		}, []string{"command", "outcome", "kind"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daemon_responses_total",
			Help:      "Daemon verdicts by status code.",
		}, []string{"code"}),
		exchange: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "daemon_exchange_seconds",
			Help:      "Duration of daemon round trips.",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}

	reg.MustRegister(
		r.requests,
		r.responses,
		r.exchange,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Recorder) RecordOutcome(_ context.Context, rec store.OutcomeRecord) error {
	outcome := "failure"
	if rec.Success {
		outcome = "success"
	}
	r.requests.WithLabelValues(commandLabel(rec.Command), outcome, kindLabel(rec.Kind)).Inc()

	if rec.Answered {
		r.responses.WithLabelValues(codeLabel(rec.Code)).Inc()
	}
	if rec.Exchange > 0 {
		r.exchange.Observe(rec.Exchange.Seconds())
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry is exposed for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// The command is caller supplied, so unexpected values share one label to
// keep the series count bounded.
func commandLabel(cmd string) string {
	switch cmd {
	case protocol.CommandLock, protocol.CommandUnlock:
		return cmd
	case "":
		return "none"
	default:
		return "other"
	}
}

func kindLabel(k protocol.FailureKind) string {
	if k == protocol.KindNone {
		return "none"
	}
	return string(k)
}

func codeLabel(c protocol.Code) string {
	if c.Known() {
		return c.Wire()
	}
	return "unknown"
}

var _ store.OutcomeRecorder = (*Recorder)(nil)
