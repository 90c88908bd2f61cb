package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies a change log entry.
type ChangeType string

const (
	ChangeTypeInsert ChangeType = "insert"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDryRun ChangeType = "dry-run"
)

func (c ChangeType) String() string { return string(c) }

func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeTypeInsert, ChangeTypeUpdate, ChangeTypeDryRun:
		return true
	}
	return false
}

// ChangeLogEntry is an append-only record of one sync decision.
// CanonicalEventID is nil for dry-run decisions about events not yet stored.
type ChangeLogEntry struct {
	ID               uuid.UUID
	CanonicalEventID *uuid.UUID
	ChangeType       ChangeType
	Payload          map[string]any
	CreatedAt        time.Time
}
