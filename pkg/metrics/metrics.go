// Package metrics exposes the engine's own internal state — attempts
// running, tokens spent, model cost, ports in use — as a Prometheus scrape
// target. A fleet of solver attempts has no external time series worth
// polling: the engine itself is what's worth observing, so this package
// pushes gauges into its own registry and serves them for scraping.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the engine's Prometheus collectors and the HTTP server that
// exposes them for scraping.
type Registry struct {
	registry *prometheus.Registry

	AttemptsRunning   prometheus.Gauge
	AttemptsCompleted *prometheus.CounterVec // label: result = success|failure
	PortsInUse        prometheus.Gauge
	TokensSent        prometheus.Counter
	TokensReceived    prometheus.Counter
	ModelCostTotal    prometheus.Gauge
	CleanupActions    *prometheus.CounterVec // label: outcome = success|failure
	DockerErrors      prometheus.Counter

	server *http.Server
}

// Config configures the metrics HTTP server.
type Config struct {
	ListenAddr string // e.g. ":9400"; empty disables the HTTP server
	Namespace  string // metric name prefix, defaults to "ctf_engine"
}

// New builds a Registry with all engine metrics registered.
func New(cfg Config) *Registry {
	if cfg.Namespace == "" {
		cfg.Namespace = "ctf_engine"
	}

	reg := prometheus.NewRegistry()
	r := &Registry{
		registry: reg,
		AttemptsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "attempts_running",
			Help:      "Number of attempts currently in the Running state.",
		}),
		AttemptsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "attempts_completed_total",
			Help:      "Attempts that reached a terminal state, by result.",
		}, []string{"result"}),
		PortsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "ports_in_use",
			Help:      "External ports currently allocated to running attempts.",
		}),
		TokensSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "model_tokens_sent_total",
			Help:      "Cumulative input tokens sent to model backends.",
		}),
		TokensReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "model_tokens_received_total",
			Help:      "Cumulative output tokens received from model backends.",
		}),
		ModelCostTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "model_cost_total_usd",
			Help:      "Running total model cost across the run, in USD.",
		}),
		CleanupActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "cleanup_actions_total",
			Help:      "Janitor cleanup actions performed, by outcome.",
		}, []string{"outcome"}),
		DockerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "docker_errors_total",
			Help:      "Attempts whose status file or log matched a known Docker error signature.",
		}),
	}

	reg.MustRegister(
		r.AttemptsRunning,
		r.AttemptsCompleted,
		r.PortsInUse,
		r.TokensSent,
		r.TokensReceived,
		r.ModelCostTotal,
		r.CleanupActions,
		r.DockerErrors,
	)

	if cfg.ListenAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		r.server = &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	}

	return r
}

// Start runs the metrics HTTP server in the background until ctx is
// cancelled or Shutdown is called. It is a no-op if no ListenAddr was
// configured.
func (r *Registry) Start(ctx context.Context) {
	if r.server == nil {
		return
	}
	go func() {
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics: server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.server.Shutdown(shutdownCtx)
	}()
}

// Handler returns the metrics HTTP handler directly, for embedding in an
// existing mux instead of running Registry's own server.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordAttemptTerminal increments AttemptsCompleted for the given result
// ("success" or "failure") and decrements AttemptsRunning.
func (r *Registry) RecordAttemptTerminal(captured bool) {
	result := "failure"
	if captured {
		result = "success"
	}
	r.AttemptsCompleted.WithLabelValues(result).Inc()
	r.AttemptsRunning.Dec()
}

// RecordCleanupAction increments CleanupActions for the given outcome.
func (r *Registry) RecordCleanupAction(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	r.CleanupActions.WithLabelValues(outcome).Inc()
}
