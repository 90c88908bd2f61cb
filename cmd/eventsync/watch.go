package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/metrics"
	"github.com/heartmarshall/eventsync/internal/app"
	"github.com/heartmarshall/eventsync/internal/domain"
	syncsvc "github.com/heartmarshall/eventsync/internal/service/sync"
)

var (
	watchApply    bool
	watchCalendar string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run sync on the configured cron schedule and serve /metrics and /health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer store.Close()

		pub, err := newPublisher(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer pub.Close()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		rec := metrics.New(reg)
		svc := newSyncService(cfg, logger, store, rec, pub, watchApply)

		state := &watchState{}
		job := func() {
			runCtx, cancel := context.WithTimeout(ctx, cfg.Sync.RunTimeout)
			defer cancel()
			stats, err := svc.Run(runCtx, syncsvc.RunOptions{CalendarFilter: watchCalendar})
			state.record(stats, err, time.Now())
			if err != nil {
				logger.Error("scheduled sync failed", slog.String("error", err.Error()))
			}
		}

		c := cron.New(
			cron.WithLocation(cfg.Sync.Location),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: logger})),
		)
		if _, err := c.AddFunc(cfg.Schedule.Cron, job); err != nil {
			return err
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", rec.Handler())
		mux.Handle("/health", healthHandler(state))
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		serveErr := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		c.Start()
		logger.Info("watching calendars",
			slog.String("schedule", cfg.Schedule.Cron),
			slog.String("listen", cfg.Metrics.Listen),
			slog.String("version", app.BuildVersion()),
		)

		select {
		case <-ctx.Done():
		case err := <-serveErr:
			if err != nil {
				logger.Error("metrics server", slog.String("error", err.Error()))
			}
		}

		logger.Info("shutting down")
		<-c.Stop().Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchApply, "apply", false, "write records (requires sync.writes_enabled and a service DSN)")
	watchCmd.Flags().StringVar(&watchCalendar, "calendar", "", "only sync calendars whose id or url contains this value")
}

// watchState remembers the most recent scheduled run for /health.
type watchState struct {
	mu      sync.RWMutex
	lastRun *domain.SyncStats
	lastErr error
	lastAt  time.Time
}

func (s *watchState) record(stats domain.SyncStats, err error, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun, s.lastErr, s.lastAt = &stats, err, at
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	LastRunAt *time.Time        `json:"last_run_at,omitempty"`
	LastRun   *domain.SyncStats `json:"last_run,omitempty"`
	LastError string            `json:"last_error,omitempty"`
}

// healthHandler reports "ok" until a scheduled run fails fatally; the next
// successful run clears it.
func healthHandler(state *watchState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state.mu.RLock()
		resp := healthResponse{Status: "ok", Version: app.BuildVersion(), LastRun: state.lastRun}
		if !state.lastAt.IsZero() {
			at := state.lastAt
			resp.LastRunAt = &at
		}
		if state.lastErr != nil {
			resp.Status = "degraded"
			resp.LastError = state.lastErr.Error()
		}
		state.mu.RUnlock()

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
