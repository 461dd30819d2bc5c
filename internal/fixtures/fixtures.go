// Package fixtures provides a small deterministic killboard used for demos and tests.
package fixtures

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/storage"
)

// Fixture window: every fixture killmail falls inside [Start, End).
var (
	Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	End   = time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
)

// Fixture group ids.
const (
	GroupWolves = "wolves"
	GroupRavens = "ravens"
)

// Load populates stores with the fixture groups and killmails.
func Load(ctx context.Context, killmails storage.KillmailStore, groups storage.GroupStore) error {
	for _, g := range Groups() {
		if err := groups.Upsert(ctx, g); err != nil {
			return fmt.Errorf("load group %s: %w", g.ID, err)
		}
	}

	if err := killmails.InsertBulk(ctx, Killmails()); err != nil {
		return fmt.Errorf("load killmails: %w", err)
	}
	return nil
}

// Groups returns the fixture groups. Character 1003 belongs to both.
func Groups() []*domain.Group {
	return []*domain.Group{
		{
			ID:                 GroupWolves,
			DisplayName:        "Wolf Pack",
			MemberCharacterIDs: []int64{1001, 1002, 1003},
			MainCharacterID:    ptr(1001),
		},
		{
			ID:                 GroupRavens,
			DisplayName:        "Ravens",
			MemberCharacterIDs: []int64{2001, 2002, 1003},
			MainCharacterID:    ptr(2001),
		},
	}
}

// Killmails returns the fixture killmails in time order.
func Killmails() []*domain.Killmail {
	at := func(day, hour, minute int) time.Time {
		return Start.Add(time.Duration(day)*24*time.Hour + time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
	}

	return []*domain.Killmail{
		{
			KillmailID:    100001,
			Time:          at(0, 1, 0),
			SolarSystemID: 30002187,
			Victim:        domain.Victim{CharacterID: ptr(5001), ShipTypeID: 587},
			Attackers:     []domain.Attacker{{CharacterID: ptr(1001), ShipTypeID: 11198, FinalBlow: true}},
			TotalValue:    big.NewInt(15_000_000),
			ZkbSolo:       boolPtr(true),
		},
		{
			KillmailID:    100002,
			Time:          at(0, 3, 30),
			SolarSystemID: 30002187,
			Victim:        domain.Victim{CharacterID: ptr(5002), ShipTypeID: 24690},
			Attackers: []domain.Attacker{
				{CharacterID: ptr(1001), ShipTypeID: 11198, FinalBlow: true},
				{CharacterID: ptr(1002), ShipTypeID: 17843},
			},
			TotalValue: big.NewInt(250_000_000),
			ZkbSolo:    boolPtr(false),
		},
		{
			KillmailID:    100003,
			Time:          at(0, 5, 0),
			SolarSystemID: 30000142,
			Victim:        domain.Victim{CharacterID: ptr(5003), ShipTypeID: 24690},
			Attackers: []domain.Attacker{
				{CharacterID: ptr(1003), ShipTypeID: 17843, FinalBlow: true},
				{CharacterID: ptr(2001), ShipTypeID: 11198},
				{CharacterID: ptr(5004), ShipTypeID: 587},
			},
			TotalValue: big.NewInt(1_200_000_000),
		},
		{
			KillmailID:    100004,
			Time:          at(1, 12, 0),
			SolarSystemID: 30000142,
			Victim:        domain.Victim{CharacterID: ptr(1002), ShipTypeID: 17843},
			Attackers: []domain.Attacker{
				{CharacterID: ptr(2001), ShipTypeID: 11198, FinalBlow: true},
				{CharacterID: ptr(2002), ShipTypeID: 587},
			},
			TotalValue: big.NewInt(40_000_000),
		},
		{
			KillmailID:    100005,
			Time:          at(1, 18, 0),
			SolarSystemID: 30002187,
			Victim:        domain.Victim{CharacterID: ptr(2002), ShipTypeID: 587},
			Attackers:     []domain.Attacker{{CharacterID: ptr(1001), ShipTypeID: 11198, FinalBlow: true}},
			TotalValue:    big.NewInt(95_000_000),
			ZkbSolo:       boolPtr(true),
		},
		{
			KillmailID:    100006,
			Time:          at(2, 9, 0),
			SolarSystemID: 30045349,
			Victim:        domain.Victim{CharacterID: ptr(5005), ShipTypeID: 587},
			Attackers: []domain.Attacker{
				{CharacterID: nil, ShipTypeID: 23913, FinalBlow: true},
				{CharacterID: ptr(2001), ShipTypeID: 11198},
			},
			TotalValue: big.NewInt(5_000_000),
		},
		{
			KillmailID:    100007,
			Time:          at(2, 20, 0),
			SolarSystemID: 30045349,
			Victim:        domain.Victim{CharacterID: nil, ShipTypeID: 35832},
			Attackers: []domain.Attacker{
				{CharacterID: ptr(1001), ShipTypeID: 11198, FinalBlow: true},
				{CharacterID: ptr(1002), ShipTypeID: 17843},
				{CharacterID: ptr(1003), ShipTypeID: 17843},
				{CharacterID: ptr(2001), ShipTypeID: 11198},
			},
			TotalValue: big.NewInt(3_000_000_000),
		},
	}
}

func ptr(v int64) *int64 { return &v }

func boolPtr(v bool) *bool { return &v }
