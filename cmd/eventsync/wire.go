package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/heartmarshall/eventsync/internal/adapter/metrics"
	"github.com/heartmarshall/eventsync/internal/adapter/notify"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/calendar"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/changelog"
	"github.com/heartmarshall/eventsync/internal/adapter/postgres/event"
	"github.com/heartmarshall/eventsync/internal/adapter/provider/nominatim"
	"github.com/heartmarshall/eventsync/internal/config"
	"github.com/heartmarshall/eventsync/internal/domain"
	"github.com/heartmarshall/eventsync/internal/ics"
	"github.com/heartmarshall/eventsync/internal/service/geocode"
	syncsvc "github.com/heartmarshall/eventsync/internal/service/sync"
)

type changePublisher interface {
	PublishChange(ctx context.Context, runID string, change domain.ChangeType, e domain.CanonicalEvent) error
	Close() error
}

type calendarLister interface {
	ListActive(ctx context.Context) ([]domain.CalendarSource, error)
}

// newPublisher connects to NATS when configured.
func newPublisher(cfg config.NATSConfig, logger *slog.Logger) (changePublisher, error) {
	if cfg.URL == "" {
		return notify.NoopPublisher{}, nil
	}
	pub, err := notify.NewPublisher(cfg.URL, cfg.SubjectPrefix, logger)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// calendarSources prefers feeds listed in config over the calendars table.
func calendarSources(cfg config.SyncConfig, store *postgres.Store) calendarLister {
	if len(cfg.Calendars) == 0 {
		return calendar.New(store.Pool)
	}
	static := make(calendar.Static, len(cfg.Calendars))
	for i, c := range cfg.Calendars {
		static[i] = domain.CalendarSource{ID: c.ID, URL: c.URL}
	}
	return static
}

func venues(cfg config.GeocoderConfig) []geocode.Venue {
	if len(cfg.Venues) == 0 {
		return geocode.DefaultVenues()
	}
	out := make([]geocode.Venue, len(cfg.Venues))
	for i, v := range cfg.Venues {
		out[i] = geocode.Venue{Name: v.Name, CityTokens: v.CityTokens, Lat: v.Lat, Lng: v.Lng}
	}
	return out
}

// syncOptions resolves the requested mode. --apply or sync.dry_run=false asks
// for writes; the service still refuses them without writes_enabled and
// elevated store access.
func syncOptions(cfg config.SyncConfig, apply, elevated bool) syncsvc.Options {
	return syncsvc.Options{
		DryRun:          !apply && cfg.DryRun,
		WritesEnabled:   cfg.WritesEnabled,
		ElevatedAccess:  elevated,
		GeocodeCooldown: cfg.GeocodeCooldown,
	}
}

func newSyncService(
	cfg *config.Config,
	logger *slog.Logger,
	store *postgres.Store,
	rec *metrics.Recorder,
	pub changePublisher,
	apply bool,
) *syncsvc.Service {
	fetcher := ics.NewFetcher(logger, &http.Client{Timeout: cfg.Fetch.Timeout}, cfg.Fetch.UserAgent)
	parser := ics.NewParser(logger, ics.WithLocation(cfg.Sync.Location))

	geocoder := nominatim.NewProvider(nominatim.Config{
		BaseURL:   cfg.Geocoder.BaseURL,
		UserAgent: cfg.Geocoder.UserAgent,
		Email:     cfg.Geocoder.Email,
		Timeout:   cfg.Geocoder.Timeout,
	}, logger)
	resolver := geocode.NewResolver(logger, geocoder, venues(cfg.Geocoder), geocode.WithRecorder(rec))

	return syncsvc.NewService(
		logger,
		calendarSources(cfg.Sync, store),
		fetcher,
		parser,
		resolver,
		event.New(store.Pool),
		changelog.New(store.Pool),
		postgres.NewTxManager(store.Pool),
		pub,
		rec,
		syncOptions(cfg.Sync, apply, store.HasElevatedAccess()),
	)
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*postgres.Store, error) {
	store, err := postgres.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return store, nil
}
