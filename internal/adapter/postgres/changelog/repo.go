// Package changelog implements the append-only event change log using PostgreSQL.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/domain"
)

const table = "event_change_log"

var columns = []string{"id", "canonical_event_id", "change_type", "payload", "created_at"}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type row struct {
	ID               uuid.UUID  `db:"id"`
	CanonicalEventID *uuid.UUID `db:"canonical_event_id"`
	ChangeType       string     `db:"change_type"`
	Payload          []byte     `db:"payload"`
	CreatedAt        time.Time  `db:"created_at"`
}

// Repo provides change log persistence backed by PostgreSQL.
type Repo struct {
	q   postgres.Querier
	now func() time.Time
}

// New creates a new change log repository.
func New(q postgres.Querier) *Repo {
	return &Repo{q: q, now: time.Now}
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Append writes one entry. Missing ID and CreatedAt are filled in.
func (r *Repo) Append(ctx context.Context, entry domain.ChangeLogEntry) error {
	if !entry.ChangeType.IsValid() {
		return domain.NewValidationError("change_type", fmt.Sprintf("unknown change type %q", entry.ChangeType))
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}

	payload, err := json.Marshal(nonNilPayload(entry.Payload))
	if err != nil {
		return fmt.Errorf("event_change_log %s marshal payload: %w", entry.ID, err)
	}

	query, args, err := psql.Insert(table).
		Columns(columns...).
		Values(entry.ID, entry.CanonicalEventID, string(entry.ChangeType), payload, entry.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert event_change_log: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.q).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "event_change_log", entry.ID)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// ListByEvent returns the history of one canonical event, newest first.
func (r *Repo) ListByEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]domain.ChangeLogEntry, error) {
	return r.list(ctx, squirrel.Eq{"canonical_event_id": eventID}, limit)
}

// ListByRun returns every entry written by one sync run, newest first.
func (r *Repo) ListByRun(ctx context.Context, runID string, limit int) ([]domain.ChangeLogEntry, error) {
	return r.list(ctx, squirrel.Expr("payload ->> 'run_id' = ?", runID), limit)
}

func (r *Repo) list(ctx context.Context, where squirrel.Sqlizer, limit int) ([]domain.ChangeLogEntry, error) {
	b := psql.Select(columns...).
		From(table).
		Where(where).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list event_change_log: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.q), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list event_change_log: %w", err)
	}

	entries := make([]domain.ChangeLogEntry, len(rows))
	for i, rw := range rows {
		e, err := toDomain(rw)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func nonNilPayload(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

func toDomain(rw row) (domain.ChangeLogEntry, error) {
	e := domain.ChangeLogEntry{
		ID:               rw.ID,
		CanonicalEventID: rw.CanonicalEventID,
		ChangeType:       domain.ChangeType(rw.ChangeType),
		CreatedAt:        rw.CreatedAt,
	}

	// payload: JSONB -> map[string]any
	if len(rw.Payload) > 0 {
		payload := make(map[string]any)
		if err := json.Unmarshal(rw.Payload, &payload); err != nil {
			return domain.ChangeLogEntry{}, fmt.Errorf("event_change_log %s unmarshal payload: %w", rw.ID, err)
		}
		e.Payload = payload
	}

	return e, nil
}
