package postgres

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

var baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func testKillmail(id int64, offset time.Duration, victim *int64, attackers ...*int64) *domain.Killmail {
	value, _ := new(big.Int).SetString("123456789012345678901234", 10)
	km := &domain.Killmail{
		KillmailID:    id,
		Time:          baseTime.Add(offset),
		SolarSystemID: 30000142,
		Victim:        domain.Victim{CharacterID: victim, ShipTypeID: 587},
		TotalValue:    value,
		ZkbSolo:       ptr(len(attackers) == 1),
	}
	for i, a := range attackers {
		km.Attackers = append(km.Attackers, domain.Attacker{CharacterID: a, ShipTypeID: 11174, FinalBlow: i == 0})
	}
	return km
}

func TestKillmailStore_InsertBulkAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewKillmailStore(pool)

	km := testKillmail(1, 0, ptr(int64(100)), ptr(int64(200)), nil, ptr(int64(300)))
	require.NoError(t, store.InsertBulk(ctx, []*domain.Killmail{km}))

	got, err := store.GetByID(ctx, 1)
	require.NoError(t, err)

	assert.True(t, km.Time.Equal(got.Time))
	assert.Equal(t, int64(100), *got.Victim.CharacterID)
	assert.Equal(t, km.TotalValue.String(), got.TotalValue.String())
	require.Len(t, got.Attackers, 3)
	assert.Equal(t, int64(200), *got.Attackers[0].CharacterID)
	assert.True(t, got.Attackers[0].FinalBlow)
	assert.Nil(t, got.Attackers[1].CharacterID)
	assert.Equal(t, int64(300), *got.Attackers[2].CharacterID)
	require.NotNil(t, got.ZkbSolo)
	assert.False(t, *got.ZkbSolo)

	_, err = store.GetByID(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKillmailStore_InsertBulkDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewKillmailStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Killmail{testKillmail(1, 0, ptr(int64(100)))}))

	err := store.InsertBulk(ctx, []*domain.Killmail{
		testKillmail(2, 0, ptr(int64(100))),
		testKillmail(1, 0, ptr(int64(100))),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// whole batch rolled back
	_, err = store.GetByID(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKillmailStore_GetByCharactersTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewKillmailStore(pool)

	kms := []*domain.Killmail{
		testKillmail(5, 2*time.Hour, ptr(int64(100)), ptr(int64(200))),
		testKillmail(4, time.Hour, ptr(int64(300)), ptr(int64(100))),
		testKillmail(3, time.Hour, ptr(int64(400)), ptr(int64(500))),
		testKillmail(2, 0, ptr(int64(200)), ptr(int64(300))),
		testKillmail(1, 3*time.Hour, ptr(int64(100))),
		testKillmail(6, time.Hour, nil, ptr(int64(100)), ptr(int64(100))),
	}
	require.NoError(t, store.InsertBulk(ctx, kms))

	got, err := store.GetByCharactersTimeRange(ctx, []int64{100, 200}, baseTime, baseTime.Add(3*time.Hour))
	require.NoError(t, err)

	ids := make([]int64, len(got))
	for i, km := range got {
		ids[i] = km.KillmailID
	}
	assert.Equal(t, []int64{2, 4, 6, 5}, ids)
	assert.Len(t, got[2].Attackers, 2)

	got, err = store.GetByCharactersTimeRange(ctx, nil, baseTime, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got)
}
