package notify

import (
	"context"

	"github.com/heartmarshall/eventsync/internal/domain"
)

// NoopPublisher does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (NoopPublisher) PublishChange(context.Context, string, domain.ChangeType, domain.CanonicalEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
