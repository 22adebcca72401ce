package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register and
// only matter in daemon mode; the one-shot beat path leaves them unregistered.
var (
	regOK atomic.Bool

	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "heartbeat",
			Name:      "ticks_total",
			Help:      "Number of ticks by result.",
		}, []string{"result"}, // completed | skipped
	)
	agentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "heartbeat",
			Name:      "agent_failures_total",
			Help:      "Number of agent invocations that exited non-zero or could not start.",
		},
	)
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "heartbeat",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of completed ticks.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	lastTick = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "heartbeat",
			Name:      "last_tick_timestamp_seconds",
			Help:      "Unix time of the last tick, completed or skipped.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{ticksTotal, agentFailures, tickDuration, lastTick}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves Prometheus metrics for the DefaultGatherer. The caller wires
// the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncCompleted(durationSeconds float64, exitCode int) {
	if !regOK.Load() {
		return
	}
	ticksTotal.WithLabelValues("completed").Inc()
	tickDuration.Observe(durationSeconds)
	lastTick.SetToCurrentTime()
	if exitCode != 0 {
		agentFailures.Inc()
	}
}

func IncSkipped() {
	if !regOK.Load() {
		return
	}
	ticksTotal.WithLabelValues("skipped").Inc()
	lastTick.SetToCurrentTime()
}
