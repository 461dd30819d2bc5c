package storage

import (
	"context"
	"time"
)

// IngestProgress is the last killmail persisted from the killstream.
type IngestProgress struct {
	KillmailID int64
	Time       time.Time
}

// IngestProgressStore persists killstream position so a restarted ingester can
// skip killmails it already stored.
type IngestProgressStore interface {
	// GetLastProcessed returns the last processed killmail.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*IngestProgress, error)

	// SetLastProcessed saves the last processed killmail.
	SetLastProcessed(ctx context.Context, progress *IngestProgress) error
}
