package sync

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/eventsync/internal/domain"
	"github.com/heartmarshall/eventsync/internal/idgen"
	"github.com/heartmarshall/eventsync/internal/service/geocode"
)

// ErrCalendarNotFound is returned when a calendar filter matches no active source.
var ErrCalendarNotFound = errors.New("calendar not found")

// ---------------------------------------------------------------------------
// Consumer-defined interfaces (private)
// ---------------------------------------------------------------------------

type calendarSource interface {
	ListActive(ctx context.Context) ([]domain.CalendarSource, error)
}

type feedFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type feedParser interface {
	Parse(raw string) ([]domain.ParsedEvent, error)
}

type geocodeResolver interface {
	Resolve(ctx context.Context, e domain.ParsedEvent) geocode.Result
}

type eventRepo interface {
	FindByCanonicalUID(ctx context.Context, uid string) (*domain.CanonicalEvent, error)
	Insert(ctx context.Context, e domain.CanonicalEvent) (domain.CanonicalEvent, error)
	UpdateGeocode(ctx context.Context, id uuid.UUID, expectedVersion int, u domain.GeocodeUpdate) (domain.CanonicalEvent, error)
}

type changeLogRepo interface {
	Append(ctx context.Context, entry domain.ChangeLogEntry) error
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type changePublisher interface {
	PublishChange(ctx context.Context, runID string, change domain.ChangeType, e domain.CanonicalEvent) error
}

type runRecorder interface {
	RunCompleted(stats domain.SyncStats, err error)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// DefaultGeocodeCooldown is the minimum age of a failed geocode attempt
// before it is retried.
const DefaultGeocodeCooldown = 24 * time.Hour

// Options controls how a Service treats the store.
type Options struct {
	// DryRun requests decisions without record writes.
	DryRun bool
	// WritesEnabled is the operator switch that must be on for any apply run.
	WritesEnabled bool
	// ElevatedAccess reports whether the store connection may write records.
	ElevatedAccess bool
	// GeocodeCooldown defaults to DefaultGeocodeCooldown when zero.
	GeocodeCooldown time.Duration
}

// EffectiveDryRun reports whether a run with these options must stay in
// dry-run mode, and why when an apply was requested but refused.
func (o Options) EffectiveDryRun() (bool, string) {
	switch {
	case o.DryRun:
		return true, ""
	case !o.WritesEnabled:
		return true, "writes are disabled by configuration"
	case !o.ElevatedAccess:
		return true, "store connection lacks elevated access"
	default:
		return false, ""
	}
}

// RunOptions narrows a single run.
type RunOptions struct {
	// CalendarFilter keeps only sources whose ID or URL contains it.
	CalendarFilter string
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service runs the fetch, parse, dedup and persist pipeline.
type Service struct {
	log       *slog.Logger
	calendars calendarSource
	fetcher   feedFetcher
	parser    feedParser
	resolver  geocodeResolver
	events    eventRepo
	changes   changeLogRepo
	tx        txManager
	publisher changePublisher
	metrics   runRecorder
	opts      Options

	now      func() time.Time
	newRunID func() (string, error)
}

// NewService creates a sync Service. publisher and metrics may be nil.
func NewService(
	logger *slog.Logger,
	calendars calendarSource,
	fetcher feedFetcher,
	parser feedParser,
	resolver geocodeResolver,
	events eventRepo,
	changes changeLogRepo,
	tx txManager,
	publisher changePublisher,
	metrics runRecorder,
	opts Options,
) *Service {
	if opts.GeocodeCooldown == 0 {
		opts.GeocodeCooldown = DefaultGeocodeCooldown
	}
	return &Service{
		log:       logger.With("service", "sync"),
		calendars: calendars,
		fetcher:   fetcher,
		parser:    parser,
		resolver:  resolver,
		events:    events,
		changes:   changes,
		tx:        tx,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		now:       time.Now,
		newRunID:  idgen.NewRunID,
	}
}
