package strategy

import (
	"fmt"

	"killboard-stats/internal/domain"
	"killboard-stats/internal/metrics"
)

// LossesStrategy counts killmails where a player was the victim.
// A loss is solo when exactly one player was on the attacking side, counted
// from the attacker list at extraction time. The feed's solo flag is ignored.
type LossesStrategy struct{}

// NewLossesStrategy creates a new LossesStrategy.
func NewLossesStrategy() *LossesStrategy {
	return &LossesStrategy{}
}

// ID returns the strategy identifier.
func (s *LossesStrategy) ID() string {
	return NameLosses
}

// Extract builds a fact owned by the victim. Attackers are not participants so
// the loss is attributed only to the victim's groups.
func (s *LossesStrategy) Extract(km *domain.Killmail) (domain.Fact, bool) {
	if km.Victim.CharacterID == nil || !domain.IsPlayerCharacterID(*km.Victim.CharacterID) {
		return domain.Fact{}, false
	}
	victim := *km.Victim.CharacterID

	f := baseFact(km)
	f.PrimaryCharacterID = victim
	f.ParticipantCharacterIDs = []int64{victim}
	f.OpposingPlayers = playerAttackers(km)
	f.PrecomputedSolo = km.ZkbSolo
	f.Dimension = itoa(km.Victim.ShipTypeID)
	return f, true
}

// Classify returns TrueSolo for losses to a single player, MultiParty otherwise.
func (s *LossesStrategy) Classify(f *domain.Fact, _ map[int64]struct{}) domain.Classification {
	if f.OpposingPlayers == 1 {
		return domain.TrueSolo
	}
	return domain.MultiParty
}

// Summarize renders e.g. "4 losses (1 solo), 320.5K ISK lost".
func (s *LossesStrategy) Summarize(res *domain.GroupResult) string {
	return fmt.Sprintf("%d losses (%d solo), %s ISK lost",
		res.UniqueFactCount, res.SoloCount, metrics.FormatValue(res.TotalValue))
}
