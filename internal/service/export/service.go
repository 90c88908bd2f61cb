package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/heartmarshall/eventsync/internal/domain"
	"github.com/heartmarshall/eventsync/internal/ics"
)

// Format selects the export encoding.
type Format string

const (
	FormatICS   Format = "ics"
	FormatJSONL Format = "jsonl"
)

// ContentType returns the MIME type used when uploading f.
func (f Format) ContentType() string {
	if f == FormatJSONL {
		return "application/x-ndjson"
	}
	return "text/calendar; charset=utf-8"
}

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatICS, FormatJSONL:
		return Format(s), nil
	}
	return "", domain.NewValidationError("format", fmt.Sprintf("unsupported export format %q", s))
}

type eventLister interface {
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]domain.CanonicalEvent, error)
}

type objectWriter interface {
	Write(ctx context.Context, data []byte, contentType string) error
	Location() string
}

// Service renders upcoming canonical events for downstream consumers.
type Service struct {
	log    *slog.Logger
	events eventLister
	now    func() time.Time
}

// NewService creates an export Service.
func NewService(logger *slog.Logger, events eventLister) *Service {
	return &Service{
		log:    logger.With("service", "export"),
		events: events,
		now:    time.Now,
	}
}

// WriteTo renders events starting from local midnight today into w and
// returns how many were written.
func (s *Service) WriteTo(ctx context.Context, format Format, w io.Writer) (int, error) {
	events, err := s.upcoming(ctx)
	if err != nil {
		return 0, err
	}

	switch format {
	case FormatICS:
		if _, err := io.WriteString(w, ics.Render(events, s.now())); err != nil {
			return 0, fmt.Errorf("write ics: %w", err)
		}
	case FormatJSONL:
		if err := writeJSONL(w, events); err != nil {
			return 0, err
		}
	default:
		return 0, domain.NewValidationError("format", fmt.Sprintf("unsupported export format %q", format))
	}

	s.log.InfoContext(ctx, "export rendered",
		slog.String("format", string(format)),
		slog.Int("events", len(events)),
	)
	return len(events), nil
}

// Upload renders the export and writes it to dest as a single object.
func (s *Service) Upload(ctx context.Context, format Format, dest objectWriter) (int, error) {
	var buf bytes.Buffer
	n, err := s.WriteTo(ctx, format, &buf)
	if err != nil {
		return 0, err
	}
	if err := dest.Write(ctx, buf.Bytes(), format.ContentType()); err != nil {
		return 0, err
	}
	s.log.InfoContext(ctx, "export uploaded", slog.String("location", dest.Location()), slog.Int("events", n))
	return n, nil
}

func (s *Service) upcoming(ctx context.Context) ([]domain.CanonicalEvent, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	events, err := s.events.ListUpcoming(ctx, midnight, 0)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	return events, nil
}

// record is one JSONL line.
type record struct {
	CanonicalUID  string             `json:"canonical_uid"`
	Title         string             `json:"title"`
	StartsAt      string             `json:"starts_at"`
	TZ            string             `json:"tz"`
	Location      string             `json:"location"`
	Lat           *float64           `json:"lat"`
	Lng           *float64           `json:"lng"`
	GeocodeStatus string             `json:"geocode_status"`
	URL           *string            `json:"url"`
	SourceRefs    []domain.SourceRef `json:"source_refs"`
	EventVersion  int                `json:"event_version"`
}

func writeJSONL(w io.Writer, events []domain.CanonicalEvent) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for _, e := range events {
		refs := e.SourceRefs
		if refs == nil {
			refs = []domain.SourceRef{}
		}
		err := enc.Encode(record{
			CanonicalUID:  e.CanonicalUID,
			Title:         e.Title,
			StartsAt:      domain.FormatTimestamp(e.StartsAt),
			TZ:            e.TZ,
			Location:      e.LocationRaw,
			Lat:           e.Lat,
			Lng:           e.Lng,
			GeocodeStatus: e.GeocodeStatus.String(),
			URL:           e.Description,
			SourceRefs:    refs,
			EventVersion:  e.EventVersion,
		})
		if err != nil {
			return fmt.Errorf("encode event %s: %w", e.CanonicalUID, err)
		}
	}
	return nil
}
