package postgres

import (
	"context"
	"fmt"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// GroupStore implements storage.GroupStore using PostgreSQL.
// Uses two tables:
//   - character_groups: one row per group
//   - character_group_members: ordered membership, cascades on group delete
type GroupStore struct {
	pool *Pool
}

// NewGroupStore creates a new GroupStore.
func NewGroupStore(pool *Pool) *GroupStore {
	return &GroupStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GroupStore = (*GroupStore)(nil)

// Upsert creates or replaces a group and its membership in one transaction.
func (s *GroupStore) Upsert(ctx context.Context, g *domain.Group) error {
	if g == nil || g.ID == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO character_groups (group_id, display_name, main_character_id, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (group_id) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    main_character_id = EXCLUDED.main_character_id,
		    updated_at = NOW()
	`, g.ID, g.DisplayName, g.MainCharacterID)
	if err != nil {
		return fmt.Errorf("upsert group: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM character_group_members WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}

	seen := make(map[int64]struct{}, len(g.MemberCharacterIDs))
	position := 0
	for _, id := range g.MemberCharacterIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		_, err := tx.Exec(ctx, `
			INSERT INTO character_group_members (group_id, character_id, member_index)
			VALUES ($1, $2, $3)
		`, g.ID, id, position)
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
		position++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByIDs retrieves groups ordered by id. Nil ids returns every group.
func (s *GroupStore) GetByIDs(ctx context.Context, ids []string) ([]*domain.Group, error) {
	if ids != nil && len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT g.group_id, g.display_name, g.main_character_id, m.character_id
		FROM character_groups g
		LEFT JOIN character_group_members m ON m.group_id = g.group_id
		WHERE $1::text[] IS NULL OR g.group_id = ANY($1)
		ORDER BY g.group_id ASC, m.member_index ASC
	`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get groups: %w", err)
	}
	defer rows.Close()

	var groups []*domain.Group
	var current *domain.Group
	for rows.Next() {
		var (
			g        domain.Group
			memberID *int64
		)
		if err := rows.Scan(&g.ID, &g.DisplayName, &g.MainCharacterID, &memberID); err != nil {
			return nil, fmt.Errorf("scan group row: %w", err)
		}
		if current == nil || current.ID != g.ID {
			current = &g
			groups = append(groups, current)
		}
		if memberID != nil {
			current.MemberCharacterIDs = append(current.MemberCharacterIDs, *memberID)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group rows: %w", err)
	}
	return groups, nil
}

// Delete removes a group. Members are removed by cascade.
func (s *GroupStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM character_groups WHERE group_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
