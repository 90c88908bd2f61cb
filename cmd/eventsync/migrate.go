package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/postgres"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Apply, roll back or inspect database migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		action := "up"
		if len(args) == 1 {
			action = args[0]
		}
		ctx := cmd.Context()

		dsn := cfg.Database.DSN
		if cfg.Database.HasElevatedAccess() {
			dsn = cfg.Database.ServiceDSN
		}

		m, err := postgres.OpenMigrator(ctx, dsn)
		if err != nil {
			return err
		}
		defer m.Close()

		out := cmd.OutOrStdout()
		switch action {
		case "up":
			results, err := m.Up(ctx)
			for _, r := range results {
				logger.Info("migration applied",
					slog.Int64("version", r.Source.Version),
					slog.String("path", r.Source.Path),
					slog.Duration("took", r.Duration),
				)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migration(s)\n", len(results))
		case "down":
			r, err := m.Down(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "rolled back %d (%s)\n", r.Source.Version, r.Source.Path)
		case "status":
			statuses, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				applied := "pending"
				if !s.AppliedAt.IsZero() {
					applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(out, "%05d\t%s\t%s\n", s.Source.Version, s.State, applied)
			}
		}
		return nil
	},
}
