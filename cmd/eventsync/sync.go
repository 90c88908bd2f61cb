package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/metrics"
	syncsvc "github.com/heartmarshall/eventsync/internal/service/sync"
)

var (
	syncApply    bool
	syncCalendar string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch calendars once and reconcile canonical events (dry-run unless --apply)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Sync.RunTimeout)
		defer cancel()

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

		rec := metrics.New(prometheus.NewRegistry())
		svc := newSyncService(cfg, logger, store, rec, pub, syncApply)

		stats, runErr := svc.Run(ctx, syncsvc.RunOptions{CalendarFilter: syncCalendar})

		if url := cfg.Metrics.PushgatewayURL; url != "" {
			if err := rec.Push(context.WithoutCancel(ctx), url, cfg.Metrics.JobName); err != nil {
				logger.Warn("push metrics", slog.String("error", err.Error()))
			}
		}

		if runErr != nil {
			return runErr
		}
		return printJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncApply, "apply", false, "write records (requires sync.writes_enabled and a service DSN)")
	syncCmd.Flags().StringVar(&syncCalendar, "calendar", "", "only sync calendars whose id or url contains this value")
}
