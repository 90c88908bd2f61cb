package config

import "time"

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Sync     SyncConfig     `yaml:"sync"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Geocoder GeocoderConfig `yaml:"geocoder"`
	NATS     NATSConfig     `yaml:"nats"`
	Export   ExportConfig   `yaml:"export"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// DatabaseConfig holds PostgreSQL connection settings. ServiceDSN, when set,
// is a privileged role that may write the primary tables; DSN alone is
// treated as read-only access.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	ServiceDSN      string        `yaml:"service_dsn"        env:"DATABASE_SERVICE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// SyncConfig holds sync run settings.
type SyncConfig struct {
	DryRunRaw       string        `yaml:"dry_run"          env:"SYNC_DRY_RUN"          env-default:"true"`
	WritesEnabled   bool          `yaml:"writes_enabled"   env:"SYNC_WRITES_ENABLED"   env-default:"false"`
	GeocodeCooldown time.Duration `yaml:"geocode_cooldown" env:"SYNC_GEOCODE_COOLDOWN" env-default:"24h"`
	RunTimeout      time.Duration `yaml:"run_timeout"      env:"SYNC_RUN_TIMEOUT"      env-default:"10m"`
	Timezone        string        `yaml:"timezone"         env:"SYNC_TIMEZONE"         env-default:"Local"`
	CalendarsRaw    string        `yaml:"calendars"        env:"SYNC_CALENDARS"`

	// DryRun is parsed from DryRunRaw during validation.
	DryRun bool `yaml:"-" env:"-"`
	// Calendars is parsed from CalendarsRaw during validation. When empty,
	// active calendars are read from the database.
	Calendars []CalendarConfig `yaml:"-" env:"-"`
	// Location is resolved from Timezone during validation.
	Location *time.Location `yaml:"-" env:"-"`
}

// CalendarConfig is one statically configured feed.
type CalendarConfig struct {
	ID  string
	URL string
}

// FetchConfig holds ICS feed download settings.
type FetchConfig struct {
	Timeout   time.Duration `yaml:"timeout"    env:"FETCH_TIMEOUT"    env-default:"15s"`
	UserAgent string        `yaml:"user_agent" env:"FETCH_USER_AGENT" env-default:"eventsync/1.0"`
}

// GeocoderConfig holds geocoding provider settings.
type GeocoderConfig struct {
	BaseURL   string        `yaml:"base_url"   env:"GEOCODER_BASE_URL"   env-default:"https://nominatim.openstreetmap.org"`
	UserAgent string        `yaml:"user_agent" env:"GEOCODER_USER_AGENT" env-default:"eventsync/1.0"`
	Email     string        `yaml:"email"      env:"GEOCODER_EMAIL"`
	Timeout   time.Duration `yaml:"timeout"    env:"GEOCODER_TIMEOUT"    env-default:"10s"`
	Venues    []VenueConfig `yaml:"venues"`
}

// VenueConfig registers coordinates for a well-known venue.
type VenueConfig struct {
	Name       string   `yaml:"name"`
	CityTokens []string `yaml:"city_tokens"`
	Lat        float64  `yaml:"lat"`
	Lng        float64  `yaml:"lng"`
}

// NATSConfig holds change notification settings. An empty URL disables
// publishing.
type NATSConfig struct {
	URL           string `yaml:"url"            env:"NATS_URL"`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX" env-default:"eventsync.events"`
}

// ExportConfig holds export destination settings.
type ExportConfig struct {
	Format     string `yaml:"format"      env:"EXPORT_FORMAT"      env-default:"ics"`
	S3Bucket   string `yaml:"s3_bucket"   env:"EXPORT_S3_BUCKET"`
	S3Key      string `yaml:"s3_key"      env:"EXPORT_S3_KEY"      env-default:"events.ics"`
	S3Region   string `yaml:"s3_region"   env:"EXPORT_S3_REGION"   env-default:"us-east-1"`
	S3Endpoint string `yaml:"s3_endpoint" env:"EXPORT_S3_ENDPOINT"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Listen         string `yaml:"listen"          env:"METRICS_LISTEN"          env-default:":9090"`
	PushgatewayURL string `yaml:"pushgateway_url" env:"METRICS_PUSHGATEWAY_URL"`
	JobName        string `yaml:"job_name"        env:"METRICS_JOB_NAME"        env-default:"eventsync"`
}

// ScheduleConfig holds the watch-mode schedule.
type ScheduleConfig struct {
	Cron string `yaml:"cron" env:"SCHEDULE_CRON" env-default:"*/30 * * * *"`
}

// HasElevatedAccess reports whether a privileged service DSN is configured.
func (c DatabaseConfig) HasElevatedAccess() bool {
	return c.ServiceDSN != ""
}
