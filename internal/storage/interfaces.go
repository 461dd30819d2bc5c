package storage

import (
	"context"
	"time"

	"killboard-stats/internal/domain"
)

// KillmailStore provides access to killmails + killmail_attackers storage.
type KillmailStore interface {
	// InsertBulk adds multiple killmails atomically. Fails entire batch on any duplicate killmail_id.
	InsertBulk(ctx context.Context, kms []*domain.Killmail) error

	// GetByID retrieves a killmail by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, killmailID int64) (*domain.Killmail, error)

	// GetByCharactersTimeRange retrieves killmails within [start, end) where the victim
	// or any attacker is one of characterIDs, ordered by time ASC then killmail_id ASC.
	GetByCharactersTimeRange(ctx context.Context, characterIDs []int64, start, end time.Time) ([]*domain.Killmail, error)
}

// GroupStore provides access to character_groups storage.
type GroupStore interface {
	// Upsert creates or replaces a group and its membership.
	Upsert(ctx context.Context, g *domain.Group) error

	// GetByIDs retrieves groups ordered by id. Nil ids returns every group.
	// Unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*domain.Group, error)

	// Delete removes a group. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error
}

// SnapshotStore provides access to group_stat_snapshots storage.
type SnapshotStore interface {
	// InsertBulk adds the rows of one or more runs. Fails entire batch when a run already exists.
	InsertBulk(ctx context.Context, rows []*domain.SnapshotRow) error

	// GetByRun retrieves all rows of a run ordered by group_id, bucket_start.
	GetByRun(ctx context.Context, runID string) ([]*domain.SnapshotRow, error)
}
