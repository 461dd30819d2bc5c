// Package strategy defines the report kinds the engine can aggregate.
// A strategy decides how a killmail becomes a fact, how a fact is labeled
// for a group, and how a group result is summarized in one line.
package strategy

import (
	"math/big"
	"strconv"

	"killboard-stats/internal/domain"
)

// Strategy turns raw killmails into facts for one kind of report.
type Strategy interface {
	// ID returns the strategy identifier ("kills", "losses", "activity").
	ID() string

	// Extract converts a killmail into a fact.
	// Returns false when the killmail carries nothing this report counts.
	Extract(km *domain.Killmail) (domain.Fact, bool)

	// Classify labels a fact relative to a group's member set.
	Classify(f *domain.Fact, members map[int64]struct{}) domain.Classification

	// Summarize renders a one-line description of a group result.
	Summarize(res *domain.GroupResult) string
}

// ExtractAll converts killmails with s, dropping those it rejects.
// Order is preserved.
func ExtractAll(s Strategy, kms []*domain.Killmail) []domain.Fact {
	facts := make([]domain.Fact, 0, len(kms))
	for _, km := range kms {
		if f, ok := s.Extract(km); ok {
			facts = append(facts, f)
		}
	}
	return facts
}

// baseFact fills the fields every strategy shares.
func baseFact(km *domain.Killmail) domain.Fact {
	f := domain.Fact{
		Key:       strconv.FormatInt(km.KillmailID, 10),
		Timestamp: km.Time.UTC(),
	}
	if km.TotalValue != nil {
		f.Value = new(big.Int).Set(km.TotalValue)
	}
	return f
}

// attackerIDs returns the character ids of the attacking side, skipping nil entries.
func attackerIDs(km *domain.Killmail) []int64 {
	ids := make([]int64, 0, len(km.Attackers))
	for _, a := range km.Attackers {
		if a.CharacterID != nil {
			ids = append(ids, *a.CharacterID)
		}
	}
	return ids
}

// finalBlowID returns the final blow character, falling back to the first
// player attacker when the final blow was dealt by an NPC.
func finalBlowID(km *domain.Killmail) (int64, bool) {
	for _, a := range km.Attackers {
		if a.FinalBlow && a.CharacterID != nil && domain.IsPlayerCharacterID(*a.CharacterID) {
			return *a.CharacterID, true
		}
	}
	for _, a := range km.Attackers {
		if a.CharacterID != nil && domain.IsPlayerCharacterID(*a.CharacterID) {
			return *a.CharacterID, true
		}
	}
	return 0, false
}

// playerAttackers counts distinct player characters on the attacking side.
func playerAttackers(km *domain.Killmail) int {
	seen := make(map[int64]struct{}, len(km.Attackers))
	for _, a := range km.Attackers {
		if a.CharacterID != nil && domain.IsPlayerCharacterID(*a.CharacterID) {
			seen[*a.CharacterID] = struct{}{}
		}
	}
	return len(seen)
}

func itoa(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}
