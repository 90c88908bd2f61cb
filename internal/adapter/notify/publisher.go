// Package notify publishes canonical event change notifications.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/heartmarshall/eventsync/internal/domain"
)

// Subject suffixes appended to the configured prefix.
const (
	SuffixInserted = "inserted"
	SuffixUpdated  = "updated"
)

// Notification is the JSON body of a change message.
type Notification struct {
	RunID         string    `json:"run_id"`
	ChangeType    string    `json:"change_type"`
	EventID       uuid.UUID `json:"event_id"`
	CanonicalUID  string    `json:"canonical_uid"`
	Title         string    `json:"title"`
	StartsAt      time.Time `json:"starts_at"`
	Location      string    `json:"location"`
	Lat           *float64  `json:"lat,omitempty"`
	Lng           *float64  `json:"lng,omitempty"`
	GeocodeStatus string    `json:"geocode_status"`
	EventVersion  int       `json:"event_version"`
	PublishedAt   time.Time `json:"published_at"`
}

// Publisher publishes change notifications to NATS subjects.
type Publisher struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
	now    func() time.Time
}

// NewPublisher connects to the NATS server at url.
func NewPublisher(url, prefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("eventsync"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{
		conn:   nc,
		prefix: prefix,
		log:    logger.With("adapter", "nats"),
		now:    time.Now,
	}, nil
}

// PublishChange publishes e on <prefix>.inserted or <prefix>.updated.
func (p *Publisher) PublishChange(ctx context.Context, runID string, change domain.ChangeType, e domain.CanonicalEvent) error {
	subject, err := p.subject(change)
	if err != nil {
		return err
	}

	data, err := json.Marshal(Notification{
		RunID:         runID,
		ChangeType:    change.String(),
		EventID:       e.ID,
		CanonicalUID:  e.CanonicalUID,
		Title:         e.Title,
		StartsAt:      e.StartsAt.UTC(),
		Location:      e.LocationRaw,
		Lat:           e.Lat,
		Lng:           e.Lng,
		GeocodeStatus: e.GeocodeStatus.String(),
		EventVersion:  e.EventVersion,
		PublishedAt:   p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.log.DebugContext(ctx, "change published",
		slog.String("subject", subject),
		slog.String("canonical_uid", e.CanonicalUID),
	)
	return nil
}

// Flush waits until all buffered messages have been sent.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close drains pending messages and closes the connection.
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain: %w", err)
	}
	return nil
}

func (p *Publisher) subject(change domain.ChangeType) (string, error) {
	switch change {
	case domain.ChangeTypeInsert:
		return p.prefix + "." + SuffixInserted, nil
	case domain.ChangeTypeUpdate:
		return p.prefix + "." + SuffixUpdated, nil
	default:
		return "", fmt.Errorf("no subject for change type %q: %w", change, domain.ErrValidation)
	}
}
