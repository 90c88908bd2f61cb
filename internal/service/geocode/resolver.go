package geocode

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/heartmarshall/eventsync/internal/domain"
	"github.com/heartmarshall/eventsync/internal/provider"
)

type geocodeProvider interface {
	Geocode(ctx context.Context, query string) (*provider.GeocodeResult, error)
}

type outcomeRecorder interface {
	GeocodeOutcome(source string, status domain.GeocodeStatus)
}

// Result is the outcome of resolving one event's coordinates. Failures are
// reported through Status, never as errors.
type Result struct {
	Lat         *float64
	Lng         *float64
	Status      domain.GeocodeStatus
	AttemptedAt time.Time
}

// Outcome sources reported to the recorder.
const (
	SourceFeed     = "feed"
	SourceURL      = "url"
	SourceVenue    = "venue"
	SourceProvider = "provider"
)

// Resolver picks coordinates for an event from, in order: the feed's own
// GEO pair, the venue table, and the external provider.
type Resolver struct {
	log      *slog.Logger
	provider geocodeProvider
	venues   []Venue
	metrics  outcomeRecorder
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock stamped into AttemptedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithRecorder reports every resolution to m.
func WithRecorder(m outcomeRecorder) Option {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a Resolver. geocoder may be nil, in which case
// locations outside the venue table resolve as failed.
func NewResolver(logger *slog.Logger, geocoder geocodeProvider, venues []Venue, opts ...Option) *Resolver {
	r := &Resolver{
		log:      logger.With("service", "geocode"),
		provider: geocoder,
		venues:   venues,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns coordinates for e. The first matching rule wins.
func (r *Resolver) Resolve(ctx context.Context, e domain.ParsedEvent) Result {
	now := r.now().UTC()

	if lat, lng, ok := feedCoordinates(e); ok {
		return r.done(SourceFeed, Result{Lat: &lat, Lng: &lng, Status: domain.GeocodeStatusCached, AttemptedAt: now})
	}

	location := strings.ToLower(strings.TrimSpace(e.Location))
	if strings.HasPrefix(location, "http") {
		r.log.DebugContext(ctx, "location is a url, not geocoding", slog.String("location", e.Location))
		return r.done(SourceURL, Result{Status: domain.GeocodeStatusFailed, AttemptedAt: now})
	}

	for _, v := range r.venues {
		if v.matches(location) {
			lat, lng := v.Lat, v.Lng
			return r.done(SourceVenue, Result{Lat: &lat, Lng: &lng, Status: domain.GeocodeStatusSuccess, AttemptedAt: now})
		}
	}

	if r.provider == nil || location == "" {
		return r.done(SourceProvider, Result{Status: domain.GeocodeStatusFailed, AttemptedAt: now})
	}

	res, err := r.provider.Geocode(ctx, e.Location)
	if err != nil {
		r.log.DebugContext(ctx, "geocode failed",
			slog.String("location", e.Location),
			slog.String("error", err.Error()),
		)
		return r.done(SourceProvider, Result{Status: domain.GeocodeStatusFailed, AttemptedAt: now})
	}
	if res == nil {
		r.log.DebugContext(ctx, "geocode returned no match", slog.String("location", e.Location))
		return r.done(SourceProvider, Result{Status: domain.GeocodeStatusFailed, AttemptedAt: now})
	}

	lat, lng := res.Lat, res.Lng
	return r.done(SourceProvider, Result{Lat: &lat, Lng: &lng, Status: domain.GeocodeStatusSuccess, AttemptedAt: now})
}

func (r *Resolver) done(source string, res Result) Result {
	if r.metrics != nil {
		r.metrics.GeocodeOutcome(source, res.Status)
	}
	return res
}

func feedCoordinates(e domain.ParsedEvent) (float64, float64, bool) {
	if !e.HasCoordinates() {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(e.Latitude), 64)
	if err != nil {
		return 0, 0, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(e.Longitude), 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lng, true
}
