package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/changelog"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/event"
	"github.com/heartmarshall/eventsync/internal/domain"
)

var (
	historyRun   string
	historyLimit int
)

type historyEntry struct {
	ID               string         `json:"id"`
	CanonicalEventID *string        `json:"canonical_event_id"`
	ChangeType       string         `json:"change_type"`
	Payload          map[string]any `json:"payload"`
	CreatedAt        string         `json:"created_at"`
}

var historyCmd = &cobra.Command{
	Use:   "history [canonical-uid]",
	Short: "Show change log entries for one canonical event or one run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if (len(args) == 0) == (historyRun == "") {
			return errors.New("pass either a canonical uid or --run")
		}
		ctx := cmd.Context()

		pool, err := postgres.NewPool(ctx, cfg.Database.DSN, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		changes := changelog.New(pool)

		var entries []domain.ChangeLogEntry
		if historyRun != "" {
			entries, err = changes.ListByRun(ctx, historyRun, historyLimit)
		} else {
			uid := args[0]
			if !domain.IsValidUID(uid) {
				return domain.NewValidationError("canonical_uid", fmt.Sprintf("%q is not a 12-character hex uid", uid))
			}
			var e *domain.CanonicalEvent
			e, err = event.New(pool).FindByCanonicalUID(ctx, uid)
			if err != nil {
				return err
			}
			entries, err = changes.ListByEvent(ctx, e.ID, historyLimit)
		}
		if err != nil {
			return err
		}

		out := make([]historyEntry, len(entries))
		for i, en := range entries {
			out[i] = historyEntry{
				ID:         en.ID.String(),
				ChangeType: en.ChangeType.String(),
				Payload:    en.Payload,
				CreatedAt:  domain.FormatTimestamp(en.CreatedAt),
			}
			if en.CanonicalEventID != nil {
				id := en.CanonicalEventID.String()
				out[i].CanonicalEventID = &id
			}
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyRun, "run", "", "list entries written by this run id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum entries to show")
}
