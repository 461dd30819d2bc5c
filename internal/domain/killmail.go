package domain

import (
	"math/big"
	"time"
)

// Killmail is the raw combat record as stored and streamed.
// Corresponds to killmails + killmail_attackers tables in PostgreSQL.
type Killmail struct {
	KillmailID    int64
	Time          time.Time
	SolarSystemID int64
	Victim        Victim
	Attackers     []Attacker
	TotalValue    *big.Int // ISK, non-negative
	ZkbSolo       *bool    // solo flag as published by the feed (nullable)
}

// Victim is the destroyed side of a killmail.
type Victim struct {
	CharacterID *int64 // nil for structures and NPC losses
	ShipTypeID  int64
}

// Attacker is one entry of the attacking side.
type Attacker struct {
	CharacterID *int64 // nil for NPCs and malformed ids
	ShipTypeID  int64
	FinalBlow   bool
}

// CharacterIDs returns every non-nil character id on the killmail (victim first).
func (k *Killmail) CharacterIDs() []int64 {
	ids := make([]int64, 0, len(k.Attackers)+1)
	if k.Victim.CharacterID != nil {
		ids = append(ids, *k.Victim.CharacterID)
	}
	for _, a := range k.Attackers {
		if a.CharacterID != nil {
			ids = append(ids, *a.CharacterID)
		}
	}
	return ids
}

// NPC character ids occupy a reserved range; everything else positive is a player.
const (
	NPCCharacterIDMin int64 = 3_000_000
	NPCCharacterIDMax int64 = 4_000_000 // exclusive
)

// IsPlayerCharacterID reports whether id identifies a player character.
func IsPlayerCharacterID(id int64) bool {
	if id <= 0 {
		return false
	}
	return id < NPCCharacterIDMin || id >= NPCCharacterIDMax
}
