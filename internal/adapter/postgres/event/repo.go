// Package event implements canonical event persistence using PostgreSQL.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	postgres "github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/domain"
)

const table = "canonical_events"

var columns = []string{
	"id", "canonical_uid", "title", "description", "location_raw",
	"lat", "lng", "geocode_status", "geocode_attempted_at",
	"starts_at", "tz", "source_refs", "raw_payload",
	"event_version", "created_at", "updated_at",
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// row mirrors a canonical_events row for scanning.
type row struct {
	ID                 uuid.UUID  `db:"id"`
	CanonicalUID       string     `db:"canonical_uid"`
	Title              string     `db:"title"`
	Description        *string    `db:"description"`
	LocationRaw        string     `db:"location_raw"`
	Lat                *float64   `db:"lat"`
	Lng                *float64   `db:"lng"`
	GeocodeStatus      string     `db:"geocode_status"`
	GeocodeAttemptedAt *time.Time `db:"geocode_attempted_at"`
	StartsAt           time.Time  `db:"starts_at"`
	TZ                 string     `db:"tz"`
	SourceRefs         []byte     `db:"source_refs"`
	RawPayload         []byte     `db:"raw_payload"`
	EventVersion       int        `db:"event_version"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// Repo provides canonical event persistence backed by PostgreSQL.
type Repo struct {
	q postgres.Querier
}

// New creates a new canonical event repository. q is used outside of
// transactions; inside RunInTx the transaction from the context wins.
func New(q postgres.Querier) *Repo {
	return &Repo{q: q}
}

// ---------------------------------------------------------------------------
// Read operations
// ---------------------------------------------------------------------------

// FindByCanonicalUID returns the event with the given UID or a wrapped
// domain.ErrNotFound.
func (r *Repo) FindByCanonicalUID(ctx context.Context, uid string) (*domain.CanonicalEvent, error) {
	query, args, err := psql.Select(columns...).
		From(table).
		Where(squirrel.Eq{"canonical_uid": uid}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find canonical_event: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, r.querier(ctx), &rw, query, args...); err != nil {
		return nil, postgres.MapError(err, "canonical_event", uid)
	}

	e, err := toDomain(rw)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListUpcoming returns events starting at or after from, earliest first.
// limit <= 0 means no limit.
func (r *Repo) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.CanonicalEvent, error) {
	b := psql.Select(columns...).
		From(table).
		Where(squirrel.GtOrEq{"starts_at": from}).
		OrderBy("starts_at ASC", "canonical_uid ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list canonical_events: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, r.querier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list canonical_events: %w", err)
	}

	events := make([]domain.CanonicalEvent, len(rows))
	for i, rw := range rows {
		e, err := toDomain(rw)
		if err != nil {
			return nil, err
		}
		events[i] = e
	}
	return events, nil
}

// ---------------------------------------------------------------------------
// Write operations
// ---------------------------------------------------------------------------

// Insert stores a new canonical event. The id and timestamps are assigned by
// the database. A duplicate canonical_uid yields domain.ErrAlreadyExists.
func (r *Repo) Insert(ctx context.Context, e domain.CanonicalEvent) (domain.CanonicalEvent, error) {
	refs, err := json.Marshal(nonNilRefs(e.SourceRefs))
	if err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("canonical_event %s marshal source_refs: %w", e.CanonicalUID, err)
	}
	payload := e.RawPayload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	version := e.EventVersion
	if version < 1 {
		version = 1
	}
	tz := e.TZ
	if tz == "" {
		tz = domain.DefaultTimezone
	}

	query, args, err := psql.Insert(table).
		Columns(
			"canonical_uid", "title", "description", "location_raw",
			"lat", "lng", "geocode_status", "geocode_attempted_at",
			"starts_at", "tz", "source_refs", "raw_payload", "event_version",
		).
		Values(
			e.CanonicalUID, e.Title, e.Description, e.LocationRaw,
			e.Lat, e.Lng, string(e.GeocodeStatus), e.GeocodeAttemptedAt,
			e.StartsAt.UTC(), tz, refs, payload, version,
		).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("build insert canonical_event: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, r.querier(ctx), &rw, query, args...); err != nil {
		return domain.CanonicalEvent{}, postgres.MapError(err, "canonical_event", e.CanonicalUID)
	}
	return toDomain(rw)
}

// UpdateGeocode writes new geocode fields and bumps event_version, but only
// if the stored version still equals expectedVersion. A lost race (or a
// missing row) yields domain.ErrConflict.
func (r *Repo) UpdateGeocode(ctx context.Context, id uuid.UUID, expectedVersion int, u domain.GeocodeUpdate) (domain.CanonicalEvent, error) {
	query, args, err := psql.Update(table).
		Set("lat", u.Lat).
		Set("lng", u.Lng).
		Set("geocode_status", string(u.Status)).
		Set("geocode_attempted_at", u.AttemptedAt.UTC()).
		Set("event_version", squirrel.Expr("event_version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id, "event_version": expectedVersion}).
		Suffix("RETURNING " + strings.Join(columns, ", ")).
		ToSql()
	if err != nil {
		return domain.CanonicalEvent{}, fmt.Errorf("build update canonical_event: %w", err)
	}

	var rw row
	if err := pgxscan.Get(ctx, r.querier(ctx), &rw, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return domain.CanonicalEvent{}, fmt.Errorf("canonical_event %s version %d: %w", id, expectedVersion, domain.ErrConflict)
		}
		return domain.CanonicalEvent{}, postgres.MapError(err, "canonical_event", id)
	}
	return toDomain(rw)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (r *Repo) querier(ctx context.Context) postgres.Querier {
	return postgres.QuerierFromCtx(ctx, r.q)
}

func nonNilRefs(refs []domain.SourceRef) []domain.SourceRef {
	if refs == nil {
		return []domain.SourceRef{}
	}
	return refs
}

func toDomain(rw row) (domain.CanonicalEvent, error) {
	e := domain.CanonicalEvent{
		ID:                 rw.ID,
		CanonicalUID:       rw.CanonicalUID,
		Title:              rw.Title,
		Description:        rw.Description,
		LocationRaw:        rw.LocationRaw,
		Lat:                rw.Lat,
		Lng:                rw.Lng,
		GeocodeStatus:      domain.GeocodeStatus(rw.GeocodeStatus),
		GeocodeAttemptedAt: rw.GeocodeAttemptedAt,
		StartsAt:           rw.StartsAt.UTC(),
		TZ:                 rw.TZ,
		RawPayload:         rw.RawPayload,
		EventVersion:       rw.EventVersion,
		CreatedAt:          rw.CreatedAt,
		UpdatedAt:          rw.UpdatedAt,
	}

	if len(rw.SourceRefs) > 0 {
		if err := json.Unmarshal(rw.SourceRefs, &e.SourceRefs); err != nil {
			return domain.CanonicalEvent{}, fmt.Errorf("canonical_event %s unmarshal source_refs: %w", rw.ID, err)
		}
	}

	return e, nil
}
