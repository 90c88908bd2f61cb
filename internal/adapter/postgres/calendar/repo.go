// Package calendar implements calendar feed source persistence using PostgreSQL.
package calendar

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	postgres "github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/domain"
)

const table = "calendars"

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type row struct {
	ID  string `db:"id"`
	URL string `db:"url"`
}

// Repo provides calendar source persistence backed by PostgreSQL.
type Repo struct {
	q postgres.Querier
}

func New(q postgres.Querier) *Repo {
	return &Repo{q: q}
}

// ListActive returns every active calendar ordered by id.
func (r *Repo) ListActive(ctx context.Context) ([]domain.CalendarSource, error) {
	query, args, err := psql.Select("id", "url").
		From(table).
		Where(squirrel.Eq{"active": true}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list calendars: %w", err)
	}

	var rows []row
	if err := pgxscan.Select(ctx, postgres.QuerierFromCtx(ctx, r.q), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}

	sources := make([]domain.CalendarSource, len(rows))
	for i, rw := range rows {
		sources[i] = domain.CalendarSource{ID: rw.ID, URL: rw.URL}
	}
	return sources, nil
}

// Upsert registers a calendar or re-activates it with a new URL.
func (r *Repo) Upsert(ctx context.Context, src domain.CalendarSource) error {
	if src.ID == "" {
		return domain.NewValidationError("id", "required")
	}
	if src.URL == "" {
		return domain.NewValidationError("url", "required")
	}

	query, args, err := psql.Insert(table).
		Columns("id", "url", "active").
		Values(src.ID, src.URL, true).
		Suffix("ON CONFLICT (id) DO UPDATE SET url = EXCLUDED.url, active = TRUE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert calendar: %w", err)
	}

	if _, err := postgres.QuerierFromCtx(ctx, r.q).Exec(ctx, query, args...); err != nil {
		return postgres.MapError(err, "calendar", src.ID)
	}
	return nil
}

// Deactivate stops a calendar from being synced without deleting it.
func (r *Repo) Deactivate(ctx context.Context, id string) error {
	query, args, err := psql.Update(table).
		Set("active", false).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate calendar: %w", err)
	}

	tag, err := postgres.QuerierFromCtx(ctx, r.q).Exec(ctx, query, args...)
	if err != nil {
		return postgres.MapError(err, "calendar", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("calendar %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Static serves a fixed calendar list, used when feeds are configured in
// the config file rather than in the database.
type Static []domain.CalendarSource

func (s Static) ListActive(context.Context) ([]domain.CalendarSource, error) {
	out := make([]domain.CalendarSource, len(s))
	copy(out, s)
	return out, nil
}
