package strategy

import (
	"fmt"

	"killboard-stats/internal/classify"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/metrics"
)

// KillsStrategy counts killmails where a player landed the final blow or took part.
// Facts are broken down by victim ship type.
type KillsStrategy struct{}

// NewKillsStrategy creates a new KillsStrategy.
func NewKillsStrategy() *KillsStrategy {
	return &KillsStrategy{}
}

// ID returns the strategy identifier.
func (s *KillsStrategy) ID() string {
	return NameKills
}

// Extract builds a fact whose primary actor is the final blow player and whose
// participants are the attacking characters.
func (s *KillsStrategy) Extract(km *domain.Killmail) (domain.Fact, bool) {
	primary, ok := finalBlowID(km)
	if !ok {
		return domain.Fact{}, false
	}

	f := baseFact(km)
	f.PrimaryCharacterID = primary
	f.ParticipantCharacterIDs = attackerIDs(km)
	f.PrecomputedSolo = km.ZkbSolo
	f.Dimension = itoa(km.Victim.ShipTypeID)
	return f, true
}

// Classify labels the fact from its participant structure.
func (s *KillsStrategy) Classify(f *domain.Fact, members map[int64]struct{}) domain.Classification {
	return classify.Classify(f, members)
}

// Summarize renders e.g. "12 kills (3 solo, 1 group solo), 1.50B ISK destroyed".
func (s *KillsStrategy) Summarize(res *domain.GroupResult) string {
	return fmt.Sprintf("%d kills (%d solo, %d group solo), %s ISK destroyed",
		res.UniqueFactCount, res.SoloCount, res.GroupSoloCount, metrics.FormatValue(res.TotalValue))
}
