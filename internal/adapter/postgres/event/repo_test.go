package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heartmarshall/eventsync/internal/adapter/postgres/testutil"
	"github.com/heartmarshall/eventsync/internal/domain"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	id        uuid.UUID
	startsAt  time.Time
	attempted time.Time
	created   time.Time
}

func newFixture() fixture {
	return fixture{
		id:        uuid.New(),
		startsAt:  time.Date(2025, 11, 15, 18, 0, 0, 0, time.UTC),
		attempted: time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC),
		created:   time.Date(2025, 11, 14, 9, 0, 0, 0, time.UTC),
	}
}

func (f fixture) rows(version int, lat, lng *float64, status string) *pgxmock.Rows {
	return pgxmock.NewRows(columns).AddRow(
		f.id, "b6886cefa549", "Blockchain Meetup!", ptr("https://lu.ma/abc"), "Zo House SF",
		lat, lng, status, ptr(f.attempted),
		f.startsAt, "UTC",
		[]byte(`[{"event_url":"https://lu.ma/abc","fetched_at":"2025-11-14T09:00:00Z"}]`),
		[]byte(`{"title":"Blockchain Meetup!"}`),
		version, f.created, f.created,
	)
}

func TestRepo_FindByCanonicalUID(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr error
		check   func(t *testing.T, e *domain.CanonicalEvent)
	}{
		{
			name: "found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM canonical_events WHERE canonical_uid = \$1`).
					WithArgs("b6886cefa549").
					WillReturnRows(f.rows(2, ptr(37.7817), ptr(-122.4012), "success"))
			},
			check: func(t *testing.T, e *domain.CanonicalEvent) {
				assert.Equal(t, f.id, e.ID)
				assert.Equal(t, "b6886cefa549", e.CanonicalUID)
				assert.Equal(t, domain.GeocodeStatusSuccess, e.GeocodeStatus)
				assert.Equal(t, 2, e.EventVersion)
				require.NotNil(t, e.Lat)
				assert.Equal(t, 37.7817, *e.Lat)
				require.Len(t, e.SourceRefs, 1)
				assert.Equal(t, "https://lu.ma/abc", e.SourceRefs[0].EventURL)
				assert.True(t, e.SourceRefs[0].FetchedAt.Equal(f.attempted))
				assert.JSONEq(t, `{"title":"Blockchain Meetup!"}`, string(e.RawPayload))
			},
		},
		{
			name: "not found",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM canonical_events`).
					WithArgs("b6886cefa549").
					WillReturnRows(pgxmock.NewRows(columns))
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "query error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT .+ FROM canonical_events`).
					WithArgs("b6886cefa549").
					WillReturnError(context.DeadlineExceeded)
			},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockQuerier(t)
			tt.setup(mock)

			e, err := New(mock).FindByCanonicalUID(context.Background(), "b6886cefa549")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, e)
			} else {
				require.NoError(t, err)
				require.NotNil(t, e)
				tt.check(t, e)
			}
			testutil.ExpectationsWereMet(t, mock)
		})
	}
}

func TestRepo_Insert(t *testing.T) {
	f := newFixture()
	input := domain.CanonicalEvent{
		CanonicalUID:       "b6886cefa549",
		Title:              "Blockchain Meetup!",
		Description:        ptr("https://lu.ma/abc"),
		LocationRaw:        "Zo House SF",
		Lat:                ptr(37.7817),
		Lng:                ptr(-122.4012),
		GeocodeStatus:      domain.GeocodeStatusSuccess,
		GeocodeAttemptedAt: ptr(f.attempted),
		StartsAt:           f.startsAt,
		SourceRefs:         []domain.SourceRef{{EventURL: "https://lu.ma/abc", FetchedAt: f.attempted}},
		RawPayload:         []byte(`{"title":"Blockchain Meetup!"}`),
	}

	t.Run("success", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`INSERT INTO canonical_events .+ RETURNING id, canonical_uid`).
			WithArgs(
				"b6886cefa549", "Blockchain Meetup!", input.Description, "Zo House SF",
				input.Lat, input.Lng, "success", input.GeocodeAttemptedAt,
				f.startsAt, "UTC", pgxmock.AnyArg(), input.RawPayload, 1,
			).
			WillReturnRows(f.rows(1, ptr(37.7817), ptr(-122.4012), "success"))

		got, err := New(mock).Insert(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, f.id, got.ID)
		assert.Equal(t, 1, got.EventVersion)
		assert.Equal(t, "UTC", got.TZ)
		testutil.ExpectationsWereMet(t, mock)
	})

	t.Run("duplicate uid", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`INSERT INTO canonical_events`).
			WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

		_, err := New(mock).Insert(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
		testutil.ExpectationsWereMet(t, mock)
	})

	t.Run("read-only role", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`INSERT INTO canonical_events`).
			WillReturnError(&pgconn.PgError{Code: "42501", Message: "permission denied for table canonical_events"})

		_, err := New(mock).Insert(context.Background(), input)
		assert.ErrorIs(t, err, domain.ErrReadOnly)
		testutil.ExpectationsWereMet(t, mock)
	})
}

func TestRepo_UpdateGeocode(t *testing.T) {
	f := newFixture()
	update := domain.GeocodeUpdate{
		Lat:         ptr(37.7817),
		Lng:         ptr(-122.4012),
		Status:      domain.GeocodeStatusSuccess,
		AttemptedAt: f.attempted,
	}

	t.Run("success", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`UPDATE canonical_events SET .*event_version = event_version \+ 1.* WHERE event_version = \$5 AND id = \$6 RETURNING`).
			WithArgs(update.Lat, update.Lng, "success", f.attempted, 1, f.id).
			WillReturnRows(f.rows(2, ptr(37.7817), ptr(-122.4012), "success"))

		got, err := New(mock).UpdateGeocode(context.Background(), f.id, 1, update)
		require.NoError(t, err)
		assert.Equal(t, 2, got.EventVersion)
		assert.Equal(t, domain.GeocodeStatusSuccess, got.GeocodeStatus)
		testutil.ExpectationsWereMet(t, mock)
	})

	t.Run("stale version", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`UPDATE canonical_events`).
			WithArgs(update.Lat, update.Lng, "success", f.attempted, 1, f.id).
			WillReturnRows(pgxmock.NewRows(columns))

		_, err := New(mock).UpdateGeocode(context.Background(), f.id, 1, update)
		assert.ErrorIs(t, err, domain.ErrConflict)
		testutil.ExpectationsWereMet(t, mock)
	})

	t.Run("database error", func(t *testing.T) {
		mock := testutil.NewMockQuerier(t)
		mock.ExpectQuery(`UPDATE canonical_events`).
			WillReturnError(errors.New("connection reset"))

		_, err := New(mock).UpdateGeocode(context.Background(), f.id, 1, update)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrConflict)
		testutil.ExpectationsWereMet(t, mock)
	})
}

func TestRepo_ListUpcoming(t *testing.T) {
	f := newFixture()
	from := time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC)

	mock := testutil.NewMockQuerier(t)
	rows := pgxmock.NewRows(columns).
		AddRow(
			f.id, "b6886cefa549", "First", (*string)(nil), "Zo House SF",
			(*float64)(nil), (*float64)(nil), "failed", ptr(f.attempted),
			f.startsAt, "UTC", []byte(`[]`), []byte(`{}`), 1, f.created, f.created,
		).
		AddRow(
			uuid.New(), "0123456789ab", "Second", ptr("https://lu.ma/x"), "Frontier Tower SF",
			ptr(37.7825), ptr(-122.4081), "success", ptr(f.attempted),
			f.startsAt.Add(24*time.Hour), "America/Los_Angeles", []byte(`[]`), []byte(`{}`), 1, f.created, f.created,
		)
	mock.ExpectQuery(`SELECT .+ FROM canonical_events WHERE starts_at >= \$1 ORDER BY starts_at ASC, canonical_uid ASC LIMIT 50`).
		WithArgs(from).
		WillReturnRows(rows)

	events, err := New(mock).ListUpcoming(context.Background(), from, 50)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "First", events[0].Title)
	assert.False(t, events[0].HasCoordinates())
	assert.Empty(t, events[0].SourceRefs)
	assert.Equal(t, "America/Los_Angeles", events[1].TZ)
	assert.True(t, events[1].HasCoordinates())
	testutil.ExpectationsWereMet(t, mock)
}
