package sync

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/eventsync/internal/domain"
	"github.com/heartmarshall/eventsync/internal/service/geocode"
)

// ---------------------------------------------------------------------------
// Manual mocks (moq-style with func fields)
// ---------------------------------------------------------------------------

type mockCalendars struct {
	listActiveFunc func(ctx context.Context) ([]domain.CalendarSource, error)
}

func (m *mockCalendars) ListActive(ctx context.Context) ([]domain.CalendarSource, error) {
	if m.listActiveFunc != nil {
		return m.listActiveFunc(ctx)
	}
	return nil, nil
}

type mockFetcher struct {
	fetchFunc func(ctx context.Context, url string) ([]byte, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, url)
	}
	return []byte(url), nil
}

type mockParser struct {
	parseFunc func(raw string) ([]domain.ParsedEvent, error)
}

func (m *mockParser) Parse(raw string) ([]domain.ParsedEvent, error) {
	if m.parseFunc != nil {
		return m.parseFunc(raw)
	}
	return nil, nil
}

type mockResolver struct {
	resolveFunc func(ctx context.Context, e domain.ParsedEvent) geocode.Result
	calls       int
}

func (m *mockResolver) Resolve(ctx context.Context, e domain.ParsedEvent) geocode.Result {
	m.calls++
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, e)
	}
	return geocode.Result{Status: domain.GeocodeStatusFailed, AttemptedAt: fixedNow}
}

type mockEventRepo struct {
	findByCanonicalUIDFunc func(ctx context.Context, uid string) (*domain.CanonicalEvent, error)
	insertFunc             func(ctx context.Context, e domain.CanonicalEvent) (domain.CanonicalEvent, error)
	updateGeocodeFunc      func(ctx context.Context, id uuid.UUID, expectedVersion int, u domain.GeocodeUpdate) (domain.CanonicalEvent, error)
}

func (m *mockEventRepo) FindByCanonicalUID(ctx context.Context, uid string) (*domain.CanonicalEvent, error) {
	if m.findByCanonicalUIDFunc != nil {
		return m.findByCanonicalUIDFunc(ctx, uid)
	}
	return nil, domain.ErrNotFound
}

func (m *mockEventRepo) Insert(ctx context.Context, e domain.CanonicalEvent) (domain.CanonicalEvent, error) {
	if m.insertFunc != nil {
		return m.insertFunc(ctx, e)
	}
	e.ID = uuid.New()
	return e, nil
}

func (m *mockEventRepo) UpdateGeocode(ctx context.Context, id uuid.UUID, expectedVersion int, u domain.GeocodeUpdate) (domain.CanonicalEvent, error) {
	if m.updateGeocodeFunc != nil {
		return m.updateGeocodeFunc(ctx, id, expectedVersion, u)
	}
	return domain.CanonicalEvent{ID: id, EventVersion: expectedVersion + 1}, nil
}

type mockChangeLog struct {
	appendFunc func(ctx context.Context, entry domain.ChangeLogEntry) error
	entries    []domain.ChangeLogEntry
}

func (m *mockChangeLog) Append(ctx context.Context, entry domain.ChangeLogEntry) error {
	if m.appendFunc != nil {
		if err := m.appendFunc(ctx, entry); err != nil {
			return err
		}
	}
	m.entries = append(m.entries, entry)
	return nil
}

type mockTxManager struct {
	runInTxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
	calls       int
}

func (m *mockTxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	if m.runInTxFunc != nil {
		return m.runInTxFunc(ctx, fn)
	}
	return fn(ctx)
}

type publishedChange struct {
	runID  string
	change domain.ChangeType
	event  domain.CanonicalEvent
}

type mockPublisher struct {
	publishChangeFunc func(ctx context.Context, runID string, change domain.ChangeType, e domain.CanonicalEvent) error
	published         []publishedChange
}

func (m *mockPublisher) PublishChange(ctx context.Context, runID string, change domain.ChangeType, e domain.CanonicalEvent) error {
	m.published = append(m.published, publishedChange{runID: runID, change: change, event: e})
	if m.publishChangeFunc != nil {
		return m.publishChangeFunc(ctx, runID, change, e)
	}
	return nil
}

type mockRecorder struct {
	stats []domain.SyncStats
	errs  []error
}

func (m *mockRecorder) RunCompleted(stats domain.SyncStats, err error) {
	m.stats = append(m.stats, stats)
	m.errs = append(m.errs, err)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2025, 11, 15, 12, 0, 0, 0, time.UTC)

type deps struct {
	calendars *mockCalendars
	fetcher   *mockFetcher
	parser    *mockParser
	resolver  *mockResolver
	events    *mockEventRepo
	changes   *mockChangeLog
	tx        *mockTxManager
	publisher *mockPublisher
	metrics   *mockRecorder
}

func newDeps(sources ...domain.CalendarSource) *deps {
	return &deps{
		calendars: &mockCalendars{listActiveFunc: func(context.Context) ([]domain.CalendarSource, error) {
			return sources, nil
		}},
		fetcher:   &mockFetcher{},
		parser:    &mockParser{},
		resolver:  &mockResolver{},
		events:    &mockEventRepo{},
		changes:   &mockChangeLog{},
		tx:        &mockTxManager{},
		publisher: &mockPublisher{},
		metrics:   &mockRecorder{},
	}
}

func (d *deps) service(opts Options) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(logger, d.calendars, d.fetcher, d.parser, d.resolver, d.events, d.changes, d.tx, d.publisher, d.metrics, opts)
	svc.now = func() time.Time { return fixedNow }
	svc.newRunID = func() (string, error) { return "run_test", nil }
	return svc
}

func applyOptions() Options {
	return Options{WritesEnabled: true, ElevatedAccess: true}
}

func dryRunOptions() Options {
	return Options{DryRun: true}
}

func community() domain.CalendarSource {
	return domain.CalendarSource{ID: "community", URL: "https://feeds.example.com/community.ics"}
}

func parsedEvent(title string) domain.ParsedEvent {
	return domain.ParsedEvent{
		Title:     title,
		StartsAt:  "2025-12-01T18:00:00.000Z",
		Location:  "Frontier Tower, San Francisco",
		SourceURL: "https://lu.ma/" + title,
	}
}

func ptr[T any](v T) *T { return &v }
