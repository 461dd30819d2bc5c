package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// KillmailStore implements storage.KillmailStore using PostgreSQL.
// Attackers live in killmail_attackers keyed by (killmail_id, attacker_index).
type KillmailStore struct {
	pool *Pool
}

// NewKillmailStore creates a new KillmailStore.
func NewKillmailStore(pool *Pool) *KillmailStore {
	return &KillmailStore{pool: pool}
}

// Compile-time interface check.
var _ storage.KillmailStore = (*KillmailStore)(nil)

const killmailColumns = `killmail_id, killmail_time, solar_system_id, victim_character_id, victim_ship_type_id, total_value, zkb_solo`

// InsertBulk adds multiple killmails atomically. Fails entire batch on any duplicate.
func (s *KillmailStore) InsertBulk(ctx context.Context, kms []*domain.Killmail) error {
	if len(kms) == 0 {
		return nil
	}
	for _, km := range kms {
		if km == nil || km.KillmailID <= 0 || (km.TotalValue != nil && km.TotalValue.Sign() < 0) {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, km := range kms {
		_, err := tx.Exec(ctx, `
			INSERT INTO killmails (`+killmailColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			km.KillmailID,
			km.Time.UTC(),
			km.SolarSystemID,
			km.Victim.CharacterID,
			km.Victim.ShipTypeID,
			toNumeric(km.TotalValue),
			km.ZkbSolo,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert killmail in bulk: %w", err)
		}

		for i, a := range km.Attackers {
			_, err := tx.Exec(ctx, `
				INSERT INTO killmail_attackers (killmail_id, attacker_index, character_id, ship_type_id, final_blow)
				VALUES ($1, $2, $3, $4, $5)
			`, km.KillmailID, i, a.CharacterID, a.ShipTypeID, a.FinalBlow)
			if err != nil {
				return fmt.Errorf("insert killmail attacker: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByID retrieves a killmail by its ID.
func (s *KillmailStore) GetByID(ctx context.Context, killmailID int64) (*domain.Killmail, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+killmailColumns+`
		FROM killmails
		WHERE killmail_id = $1
	`, killmailID)
	if err != nil {
		return nil, fmt.Errorf("get killmail by id: %w", err)
	}
	defer rows.Close()

	kms, err := scanKillmails(rows)
	if err != nil {
		return nil, err
	}
	if len(kms) == 0 {
		return nil, storage.ErrNotFound
	}

	if err := s.loadAttackers(ctx, kms); err != nil {
		return nil, err
	}
	return kms[0], nil
}

// GetByCharactersTimeRange retrieves killmails within [start, end) involving any of characterIDs.
func (s *KillmailStore) GetByCharactersTimeRange(ctx context.Context, characterIDs []int64, start, end time.Time) ([]*domain.Killmail, error) {
	if len(characterIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+killmailColumns+`
		FROM killmails k
		WHERE k.killmail_time >= $2 AND k.killmail_time < $3
		  AND (
			k.victim_character_id = ANY($1)
			OR EXISTS (
				SELECT 1 FROM killmail_attackers a
				WHERE a.killmail_id = k.killmail_id AND a.character_id = ANY($1)
			)
		  )
		ORDER BY k.killmail_time ASC, k.killmail_id ASC
	`, characterIDs, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get killmails by characters: %w", err)
	}
	defer rows.Close()

	kms, err := scanKillmails(rows)
	if err != nil {
		return nil, err
	}

	if err := s.loadAttackers(ctx, kms); err != nil {
		return nil, err
	}
	return kms, nil
}

// loadAttackers fills the attacker lists of kms with a single query.
func (s *KillmailStore) loadAttackers(ctx context.Context, kms []*domain.Killmail) error {
	if len(kms) == 0 {
		return nil
	}

	ids := make([]int64, len(kms))
	byID := make(map[int64]*domain.Killmail, len(kms))
	for i, km := range kms {
		ids[i] = km.KillmailID
		byID[km.KillmailID] = km
	}

	rows, err := s.pool.Query(ctx, `
		SELECT killmail_id, character_id, ship_type_id, final_blow
		FROM killmail_attackers
		WHERE killmail_id = ANY($1)
		ORDER BY killmail_id ASC, attacker_index ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("get killmail attackers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kmID int64
			a    domain.Attacker
		)
		if err := rows.Scan(&kmID, &a.CharacterID, &a.ShipTypeID, &a.FinalBlow); err != nil {
			return fmt.Errorf("scan attacker row: %w", err)
		}
		if km, ok := byID[kmID]; ok {
			km.Attackers = append(km.Attackers, a)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attacker rows: %w", err)
	}
	return nil
}

// scanKillmails scans multiple rows into a slice of Killmail (without attackers).
func scanKillmails(rows pgx.Rows) ([]*domain.Killmail, error) {
	var kms []*domain.Killmail

	for rows.Next() {
		var (
			km    domain.Killmail
			value pgtype.Numeric
		)

		err := rows.Scan(
			&km.KillmailID,
			&km.Time,
			&km.SolarSystemID,
			&km.Victim.CharacterID,
			&km.Victim.ShipTypeID,
			&value,
			&km.ZkbSolo,
		)
		if err != nil {
			return nil, fmt.Errorf("scan killmail row: %w", err)
		}
		km.Time = km.Time.UTC()
		km.TotalValue = fromNumeric(value)

		kms = append(kms, &km)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate killmail rows: %w", err)
	}

	return kms, nil
}
