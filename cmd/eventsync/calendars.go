package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/calendar"
	"github.com/heartmarshall/eventsync/internal/domain"
)

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "Manage the calendars table",
}

var calendarsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active calendars",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := postgres.NewPool(ctx, cfg.Database.DSN, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		sources, err := calendar.New(pool).ListActive(ctx)
		if err != nil {
			return err
		}
		for _, s := range sources {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s.ID, s.URL)
		}
		return nil
	},
}

var calendarsAddCmd = &cobra.Command{
	Use:   "add <id> <url>",
	Short: "Add or re-activate a calendar feed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := url.Parse(args[1])
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.NewValidationError("url", fmt.Sprintf("%q is not an http(s) url", args[1]))
		}

		store, err := writableStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		return calendar.New(store.Pool).Upsert(cmd.Context(), domain.CalendarSource{ID: args[0], URL: args[1]})
	},
}

var calendarsDisableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Stop syncing a calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := writableStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		return calendar.New(store.Pool).Deactivate(cmd.Context(), args[0])
	},
}

func writableStore(cmd *cobra.Command) (*postgres.Store, error) {
	store, err := connect(cmd.Context(), cfg.Database)
	if err != nil {
		return nil, err
	}
	if !store.HasElevatedAccess() {
		store.Close()
		return nil, fmt.Errorf("calendars: %w: set database.service_dsn", domain.ErrReadOnly)
	}
	return store, nil
}

func init() {
	calendarsCmd.AddCommand(calendarsListCmd, calendarsAddCmd, calendarsDisableCmd)
}
