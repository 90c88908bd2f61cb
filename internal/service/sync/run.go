package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/heartmarshall/eventsync/internal/domain"
)

// Run executes one sync pass over the active calendars. Only setup failures
// are returned as errors; per-calendar and per-event failures are logged and
// reflected in the returned stats.
func (s *Service) Run(ctx context.Context, opts RunOptions) (stats domain.SyncStats, err error) {
	start := s.now()

	runID, err := s.newRunID()
	if err != nil {
		return stats, fmt.Errorf("run id: %w", err)
	}

	dryRun, reason := s.opts.EffectiveDryRun()
	stats = domain.SyncStats{RunID: runID, DryRunOnly: dryRun}
	log := s.log.With(slog.String("run_id", runID))

	if reason != "" {
		log.WarnContext(ctx, "apply requested but forced to dry-run", slog.String("reason", reason))
	}

	defer func() {
		stats.DurationMs = s.now().Sub(start).Milliseconds()
		if s.metrics != nil {
			s.metrics.RunCompleted(stats, err)
		}
	}()

	sources, err := s.calendars.ListActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("list calendars: %w", err)
	}

	sources, err = filterSources(sources, opts.CalendarFilter)
	if err != nil {
		return stats, err
	}

	if len(sources) == 0 {
		log.InfoContext(ctx, "no active calendars")
		return stats, nil
	}

	batch, fetchedAt := s.collect(ctx, log, sources)

	groups, errs := domain.DedupByFingerprint(batch)
	for _, fpErr := range errs {
		stats.Processed++
		stats.Errors++
		log.ErrorContext(ctx, "fingerprint event", slog.String("error", fpErr.Error()))
	}
	for _, g := range groups {
		stats.Duplicates += g.Count - 1
	}

	run := runState{id: runID, dryRun: dryRun, log: log, fetchedAt: fetchedAt}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("run interrupted: %w", err)
		}

		stats.Processed++
		if err := s.processEvent(ctx, run, g.UID, g.Event, &stats); err != nil {
			stats.Errors++
			log.ErrorContext(ctx, "process event",
				slog.String("canonical_uid", g.UID),
				slog.String("title", g.Event.Title),
				slog.String("error", err.Error()),
			)
		}
	}

	log.InfoContext(ctx, "sync run complete",
		slog.Int("calendars", len(sources)),
		slog.Int("processed", stats.Processed),
		slog.Int("inserted", stats.Inserted),
		slog.Int("updated", stats.Updated),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
		slog.Int("duplicates", stats.Duplicates),
		slog.Bool("dry_run", stats.DryRunOnly),
	)

	return stats, nil
}

// runState carries per-run values through event processing.
type runState struct {
	id        string
	dryRun    bool
	log       *slog.Logger
	fetchedAt map[string]time.Time
}

// collect fetches and parses every source. Failing sources contribute no
// events.
func (s *Service) collect(ctx context.Context, log *slog.Logger, sources []domain.CalendarSource) ([]domain.ParsedEvent, map[string]time.Time) {
	var batch []domain.ParsedEvent
	fetchedAt := make(map[string]time.Time, len(sources))

	for _, src := range sources {
		srcLog := log.With(slog.String("calendar", src.ID))

		body, err := s.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			srcLog.WarnContext(ctx, "fetch calendar failed, skipping", slog.String("error", err.Error()))
			continue
		}
		fetchedAt[src.URL] = s.now().UTC()

		events, err := s.parser.Parse(string(body))
		if err != nil {
			srcLog.WarnContext(ctx, "parse calendar failed", slog.String("error", err.Error()))
			continue
		}

		for i := range events {
			events[i].FeedURL = src.URL
		}
		srcLog.DebugContext(ctx, "calendar parsed", slog.Int("events", len(events)))
		batch = append(batch, events...)
	}

	return batch, fetchedAt
}

// filterSources keeps sources whose ID or URL contains filter.
// An empty filter keeps everything.
func filterSources(sources []domain.CalendarSource, filter string) ([]domain.CalendarSource, error) {
	if filter == "" {
		return sources, nil
	}

	var out []domain.CalendarSource
	for _, src := range sources {
		if strings.Contains(src.ID, filter) || strings.Contains(src.URL, filter) {
			out = append(out, src)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrCalendarNotFound, filter)
	}
	return out, nil
}

// isConcurrentLoss reports whether err means another writer got there first.
func isConcurrentLoss(err error) bool {
	return errors.Is(err, domain.ErrAlreadyExists) || errors.Is(err, domain.ErrConflict)
}
