// Package metrics records sync and geocode outcomes as Prometheus metrics.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/heartmarshall/eventsync/internal/domain"
)

const namespace = "eventsync"

// Recorder owns the sync metrics on a caller-supplied registry.
type Recorder struct {
	reg *prometheus.Registry

	runs          *prometheus.CounterVec
	events        *prometheus.CounterVec
	geocode       *prometheus.CounterVec
	runDuration   prometheus.Histogram
	lastRunEvents *prometheus.GaugeVec
	lastSuccessTS prometheus.Gauge
}

// New creates a Recorder and registers its collectors on reg.
func New(reg *prometheus.Registry) *Recorder {
	r := &Recorder{
		reg: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by outcome (ok, failed) and mode (apply, dry_run).",
		}, []string{"outcome", "mode"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_total",
			Help:      "Events handled across runs by decision.",
		}, []string{"decision"}),
		geocode: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolutions_total",
			Help:      "Geocode resolutions by source and status.",
		}, []string{"source", "status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of completed sync runs.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		lastRunEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_events",
			Help:      "Per-decision event counts of the most recent run.",
		}, []string{"decision"}),
		lastSuccessTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the last sync run that completed without a fatal error.",
		}),
	}

	reg.MustRegister(r.runs, r.events, r.geocode, r.runDuration, r.lastRunEvents, r.lastSuccessTS)
	return r
}

// GeocodeOutcome counts one resolver decision.
func (r *Recorder) GeocodeOutcome(source string, status domain.GeocodeStatus) {
	r.geocode.WithLabelValues(source, status.String()).Inc()
}

// RunCompleted records the result of one sync run. A non-nil err marks the
// run as failed; stats are still recorded for whatever was processed.
func (r *Recorder) RunCompleted(stats domain.SyncStats, err error) {
	mode := "apply"
	if stats.DryRunOnly {
		mode = "dry_run"
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	r.runs.WithLabelValues(outcome, mode).Inc()
	r.runDuration.Observe(time.Duration(stats.DurationMs * int64(time.Millisecond)).Seconds())

	decisions := map[string]int{
		"processed":    stats.Processed,
		"inserted":     stats.Inserted,
		"updated":      stats.Updated,
		"skipped":      stats.Skipped,
		"errors":       stats.Errors,
		"duplicates":   stats.Duplicates,
		"would_insert": stats.WouldInsert,
		"would_update": stats.WouldUpdate,
	}
	for decision, n := range decisions {
		r.events.WithLabelValues(decision).Add(float64(n))
		r.lastRunEvents.WithLabelValues(decision).Set(float64(n))
	}

	if err == nil {
		r.lastSuccessTS.SetToCurrentTime()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Push sends the registry to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
