package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/eventsync/internal/domain"
)

// Dry-run decisions recorded in change log payloads.
const (
	wouldInsert = "insert"
	wouldUpdate = "update"
	wouldSkip   = "skip"
)

// processEvent applies the insert, update or skip decision for one
// deduplicated event. A returned error counts against the run.
func (s *Service) processEvent(ctx context.Context, run runState, uid string, e domain.ParsedEvent, stats *domain.SyncStats) error {
	log := run.log.With(slog.String("canonical_uid", uid))
	log.DebugContext(ctx, "processing event",
		slog.String("title", e.Title),
		slog.String("starts_at", e.StartsAt),
	)

	existing, err := s.events.FindByCanonicalUID(ctx, uid)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		existing = nil
	case err != nil:
		return fmt.Errorf("lookup: %w", err)
	}

	now := s.now().UTC()

	if run.dryRun {
		return s.recordDryRun(ctx, run, log, uid, e, existing, now, stats)
	}

	if existing == nil {
		return s.insert(ctx, run, log, uid, e, now, stats)
	}

	if !s.shouldRetryGeocode(*existing, now) {
		stats.Skipped++
		log.DebugContext(ctx, "skip: already stored")
		return nil
	}
	return s.updateGeocode(ctx, run, log, *existing, e, stats)
}

// shouldRetryGeocode reports whether a stored event lacks usable coordinates
// and its last attempt is older than the cooldown.
func (s *Service) shouldRetryGeocode(existing domain.CanonicalEvent, now time.Time) bool {
	needsGeocode := !existing.HasCoordinates() || existing.GeocodeStatus == domain.GeocodeStatusFailed
	if !needsGeocode {
		return false
	}
	if existing.GeocodeAttemptedAt == nil {
		return true
	}
	return now.Sub(*existing.GeocodeAttemptedAt) > s.opts.GeocodeCooldown
}

func (s *Service) recordDryRun(
	ctx context.Context,
	run runState,
	log *slog.Logger,
	uid string,
	e domain.ParsedEvent,
	existing *domain.CanonicalEvent,
	now time.Time,
	stats *domain.SyncStats,
) error {
	would := wouldInsert
	var eventID *uuid.UUID
	if existing != nil {
		eventID = &existing.ID
		would = wouldSkip
		if s.shouldRetryGeocode(*existing, now) {
			would = wouldUpdate
		}
	}

	err := s.changes.Append(ctx, domain.ChangeLogEntry{
		CanonicalEventID: eventID,
		ChangeType:       domain.ChangeTypeDryRun,
		Payload: map[string]any{
			"run_id":        run.id,
			"canonical_uid": uid,
			"would":         would,
			"title":         e.Title,
			"starts_at":     e.StartsAt,
		},
	})
	if err != nil {
		return fmt.Errorf("append dry-run change: %w", err)
	}

	switch would {
	case wouldInsert:
		stats.WouldInsert++
	case wouldUpdate:
		stats.WouldUpdate++
	default:
		stats.Skipped++
	}
	log.DebugContext(ctx, "dry-run decision", slog.String("would", would))
	return nil
}

func (s *Service) insert(
	ctx context.Context,
	run runState,
	log *slog.Logger,
	uid string,
	e domain.ParsedEvent,
	now time.Time,
	stats *domain.SyncStats,
) error {
	startsAt, err := domain.ParseTimestamp(e.StartsAt)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal raw payload: %w", err)
	}

	geo := s.resolver.Resolve(ctx, e)
	if geo.Status == domain.GeocodeStatusFailed {
		log.DebugContext(ctx, "geocode failed", slog.String("location", e.Location))
	}

	tz := e.Timezone
	if tz == "" {
		tz = domain.DefaultTimezone
	}

	eventURL := e.SourceURL
	if eventURL == "" {
		eventURL = e.FeedURL
	}
	fetchedAt, ok := run.fetchedAt[e.FeedURL]
	if !ok {
		fetchedAt = now
	}

	var description *string
	if e.SourceURL != "" {
		description = &e.SourceURL
	}

	attemptedAt := geo.AttemptedAt
	record := domain.CanonicalEvent{
		CanonicalUID:       uid,
		Title:              e.Title,
		Description:        description,
		LocationRaw:        e.Location,
		Lat:                geo.Lat,
		Lng:                geo.Lng,
		GeocodeStatus:      geo.Status,
		GeocodeAttemptedAt: &attemptedAt,
		StartsAt:           startsAt,
		TZ:                 tz,
		SourceRefs:         []domain.SourceRef{{EventURL: eventURL, FetchedAt: fetchedAt}},
		RawPayload:         raw,
		EventVersion:       1,
	}

	var inserted domain.CanonicalEvent
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		inserted, err = s.events.Insert(txCtx, record)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}

		err = s.changes.Append(txCtx, domain.ChangeLogEntry{
			CanonicalEventID: &inserted.ID,
			ChangeType:       domain.ChangeTypeInsert,
			Payload: map[string]any{
				"run_id":         run.id,
				"canonical_uid":  uid,
				"title":          e.Title,
				"starts_at":      domain.FormatTimestamp(startsAt),
				"geocode_status": geo.Status.String(),
				"event_url":      eventURL,
			},
		})
		if err != nil {
			return fmt.Errorf("append insert change: %w", err)
		}
		return nil
	})
	if err != nil {
		if isConcurrentLoss(err) {
			stats.Skipped++
			log.WarnContext(ctx, "insert lost to a concurrent writer", slog.String("error", err.Error()))
			return nil
		}
		return err
	}

	stats.Inserted++
	log.DebugContext(ctx, "inserted",
		slog.String("id", inserted.ID.String()),
		slog.String("geocode_status", geo.Status.String()),
	)
	s.publish(ctx, run, log, domain.ChangeTypeInsert, inserted)
	return nil
}

func (s *Service) updateGeocode(
	ctx context.Context,
	run runState,
	log *slog.Logger,
	existing domain.CanonicalEvent,
	e domain.ParsedEvent,
	stats *domain.SyncStats,
) error {
	geo := s.resolver.Resolve(ctx, e)
	if geo.Status == domain.GeocodeStatusFailed {
		log.DebugContext(ctx, "geocode retry failed", slog.String("location", e.Location))
	}

	var updated domain.CanonicalEvent
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		updated, err = s.events.UpdateGeocode(txCtx, existing.ID, existing.EventVersion, domain.GeocodeUpdate{
			Lat:         geo.Lat,
			Lng:         geo.Lng,
			Status:      geo.Status,
			AttemptedAt: geo.AttemptedAt,
		})
		if err != nil {
			return fmt.Errorf("update geocode: %w", err)
		}

		err = s.changes.Append(txCtx, domain.ChangeLogEntry{
			CanonicalEventID: &updated.ID,
			ChangeType:       domain.ChangeTypeUpdate,
			Payload: map[string]any{
				"run_id":                  run.id,
				"canonical_uid":           existing.CanonicalUID,
				"previous_version":        existing.EventVersion,
				"event_version":           updated.EventVersion,
				"previous_geocode_status": existing.GeocodeStatus.String(),
				"geocode_status":          geo.Status.String(),
			},
		})
		if err != nil {
			return fmt.Errorf("append update change: %w", err)
		}
		return nil
	})
	if err != nil {
		if isConcurrentLoss(err) {
			stats.Skipped++
			log.WarnContext(ctx, "update lost to a concurrent writer", slog.String("error", err.Error()))
			return nil
		}
		return err
	}

	stats.Updated++
	log.DebugContext(ctx, "geocode updated",
		slog.Int("event_version", updated.EventVersion),
		slog.String("geocode_status", geo.Status.String()),
	)
	s.publish(ctx, run, log, domain.ChangeTypeUpdate, updated)
	return nil
}

// publish sends a change notification. Failures never affect the run.
func (s *Service) publish(ctx context.Context, run runState, log *slog.Logger, change domain.ChangeType, e domain.CanonicalEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, run.id, change, e); err != nil {
		log.WarnContext(ctx, "publish change", slog.String("error", err.Error()))
	}
}
