package clickhouse

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Values are stored as Decimal(76, 0) so ISK totals keep full precision.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// InsertBulk adds rows atomically. Fails entire batch when a run already exists.
// MergeTree does not enforce uniqueness, so existing runs are checked explicitly.
func (s *SnapshotStore) InsertBulk(ctx context.Context, rows []*domain.SnapshotRow) error {
	if len(rows) == 0 {
		return nil
	}

	runs := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		if r == nil || r.GroupID == "" {
			return storage.ErrInvalidInput
		}
		id, err := uuid.Parse(r.RunID)
		if err != nil {
			return fmt.Errorf("%w: run id %q", storage.ErrInvalidInput, r.RunID)
		}
		ids[i] = id
		runs[id] = struct{}{}
	}

	for id := range runs {
		exists, err := s.exists(ctx, id)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO group_stat_snapshots (
			run_id, report, group_id, granularity, bucket_start,
			fact_count, value, trend, computed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range rows {
		value := decimal.Zero
		if r.Value != nil {
			value = decimal.NewFromBigInt(r.Value, 0)
		}
		err = batch.Append(
			ids[i], r.Report, r.GroupID, string(r.Granularity), r.BucketStart.UTC(),
			uint32(r.FactCount), value, string(r.Trend), r.ComputedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByRun retrieves all rows of a run ordered by group_id, bucket_start.
func (s *SnapshotStore) GetByRun(ctx context.Context, runID string) ([]*domain.SnapshotRow, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("%w: run id %q", storage.ErrInvalidInput, runID)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT
			run_id, report, group_id, granularity, bucket_start,
			fact_count, value, trend, computed_at
		FROM group_stat_snapshots
		WHERE run_id = ?
		ORDER BY group_id ASC, bucket_start ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query by run: %w", err)
	}
	defer rows.Close()

	result, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// exists checks whether any row of a run is stored.
func (s *SnapshotStore) exists(ctx context.Context, runID uuid.UUID) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM group_stat_snapshots WHERE run_id = ?`, runID)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// chRows is the subset of driver.Rows used by scanners.
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanSnapshots scans multiple rows into a slice.
func scanSnapshots(rows chRows) ([]*domain.SnapshotRow, error) {
	var result []*domain.SnapshotRow

	for rows.Next() {
		var (
			r           domain.SnapshotRow
			runID       uuid.UUID
			granularity string
			trend       string
			factCount   uint32
			value       decimal.Decimal
		)
		err := rows.Scan(
			&runID, &r.Report, &r.GroupID, &granularity, &r.BucketStart,
			&factCount, &value, &trend, &r.ComputedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		r.RunID = runID.String()
		r.Granularity = domain.Granularity(granularity)
		r.Trend = domain.Trend(trend)
		r.FactCount = int(factCount)
		r.Value = value.BigInt()
		r.BucketStart = r.BucketStart.UTC()
		r.ComputedAt = r.ComputedAt.UTC()

		result = append(result, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return result, nil
}
