package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTimezone is stored on canonical events whose feed carries no TZID.
const DefaultTimezone = "UTC"

// ParsedEvent is a single VEVENT extracted from an ICS feed. It is transient:
// it only lives between parsing and the sync decision for one run.
type ParsedEvent struct {
	Title     string `json:"title"`
	StartsAt  string `json:"startsAt"`
	Location  string `json:"location"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
	SourceURL string `json:"sourceUrl,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
	FeedURL   string `json:"feedUrl,omitempty"`
}

// HasCoordinates reports whether both halves of a GEO pair were present.
func (e ParsedEvent) HasCoordinates() bool {
	return e.Latitude != "" && e.Longitude != ""
}

// GeocodeStatus is the terminal state of a geocode decision.
type GeocodeStatus string

const (
	GeocodeStatusSuccess GeocodeStatus = "success"
	GeocodeStatusFailed  GeocodeStatus = "failed"
	GeocodeStatusCached  GeocodeStatus = "cached"
)

func (s GeocodeStatus) String() string { return string(s) }

func (s GeocodeStatus) IsValid() bool {
	switch s {
	case GeocodeStatusSuccess, GeocodeStatusFailed, GeocodeStatusCached:
		return true
	}
	return false
}

// SourceRef records one sighting of a canonical event.
type SourceRef struct {
	EventURL  string    `json:"event_url"`
	FetchedAt time.Time `json:"fetched_at"`
}

// CanonicalEvent is the persisted, deduplicated record of a real-world event.
type CanonicalEvent struct {
	ID                 uuid.UUID
	CanonicalUID       string
	Title              string
	Description        *string
	LocationRaw        string
	Lat                *float64
	Lng                *float64
	GeocodeStatus      GeocodeStatus
	GeocodeAttemptedAt *time.Time
	StartsAt           time.Time
	TZ                 string
	SourceRefs         []SourceRef
	RawPayload         []byte
	EventVersion       int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasCoordinates reports whether both coordinates are stored.
func (e CanonicalEvent) HasCoordinates() bool {
	return e.Lat != nil && e.Lng != nil
}

// GeocodeUpdate carries the only fields the update path may change.
type GeocodeUpdate struct {
	Lat         *float64
	Lng         *float64
	Status      GeocodeStatus
	AttemptedAt time.Time
}

// CalendarSource is one configured ICS feed.
type CalendarSource struct {
	ID  string
	URL string
}
