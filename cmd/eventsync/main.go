package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata" // TZID and sync.timezone lookups on hosts without zoneinfo

	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/app"
	"github.com/heartmarshall/eventsync/internal/config"
)

var (
	verbose bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "eventsync <command>",
	Short:         "Sync ICS calendar feeds into deduplicated canonical events",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd == versionCmd {
			return nil
		}

		c, err := config.Load()
		if err != nil {
			return err
		}
		if verbose {
			c.Log.Level = "debug"
		}
		cfg = c
		logger = app.NewLogger(c.Log)

		logger.Debug("starting eventsync",
			slog.String("version", app.BuildVersion()),
			slog.String("command", cmd.CommandPath()),
		)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every decision at debug level")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(calendarsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("eventsync failed", slog.String("error", err.Error()))
		} else {
			fmt.Fprintf(os.Stderr, "eventsync: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
