package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database.min_conns (%d) must be <= max_conns (%d)", c.Database.MinConns, c.Database.MaxConns)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Sync.validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if c.Geocoder.Timeout <= 0 {
		return fmt.Errorf("geocoder.timeout must be > 0 (got %s)", c.Geocoder.Timeout)
	}
	for i, v := range c.Geocoder.Venues {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("geocoder.venues[%d].name is required", i)
		}
		if len(v.CityTokens) == 0 {
			return fmt.Errorf("geocoder.venues[%d] (%s) needs at least one city token", i, v.Name)
		}
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0 (got %s)", c.Fetch.Timeout)
	}
	switch c.Export.Format {
	case "ics", "jsonl":
	default:
		return fmt.Errorf("export.format must be ics or jsonl (got %q)", c.Export.Format)
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule.cron: %w", err)
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be debug, info, warn or error (got %q)", l.Level)
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.GeocodeCooldown < 0 {
		return fmt.Errorf("geocode_cooldown must be >= 0 (got %s)", s.GeocodeCooldown)
	}
	if s.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be > 0 (got %s)", s.RunTimeout)
	}

	dryRun, err := strconv.ParseBool(strings.TrimSpace(s.DryRunRaw))
	if err != nil {
		return fmt.Errorf("dry_run: %w", err)
	}
	s.DryRun = dryRun

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	s.Location = loc

	calendars, err := ParseCalendars(s.CalendarsRaw)
	if err != nil {
		return fmt.Errorf("calendars: %w", err)
	}
	s.Calendars = calendars

	return nil
}

// ParseCalendars parses a comma- or whitespace-separated list of "id=url"
// pairs. An empty string returns a nil slice.
func ParseCalendars(raw string) ([]CalendarConfig, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	if len(fields) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(fields))
	calendars := make([]CalendarConfig, 0, len(fields))

	for _, f := range fields {
		id, rawURL, ok := strings.Cut(f, "=")
		if !ok || id == "" || rawURL == "" {
			return nil, fmt.Errorf("invalid entry %q, want id=url", f)
		}
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("calendar %s: invalid url %q", id, rawURL)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate calendar id %q", id)
		}
		seen[id] = true
		calendars = append(calendars, CalendarConfig{ID: id, URL: rawURL})
	}

	return calendars, nil
}
