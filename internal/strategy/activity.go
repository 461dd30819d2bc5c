package strategy

import (
	"fmt"

	"killboard-stats/internal/classify"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/metrics"
)

// ActivityStrategy counts every killmail a character appears on, on either side.
// Facts are broken down by solar system.
type ActivityStrategy struct{}

// NewActivityStrategy creates a new ActivityStrategy.
func NewActivityStrategy() *ActivityStrategy {
	return &ActivityStrategy{}
}

// ID returns the strategy identifier.
func (s *ActivityStrategy) ID() string {
	return NameActivity
}

// Extract builds a fact over every character on the killmail.
func (s *ActivityStrategy) Extract(km *domain.Killmail) (domain.Fact, bool) {
	ids := km.CharacterIDs()
	if len(ids) == 0 {
		return domain.Fact{}, false
	}

	// victim first, then the final blow player
	primary := ids[0]
	if km.Victim.CharacterID == nil || !domain.IsPlayerCharacterID(*km.Victim.CharacterID) {
		if fb, ok := finalBlowID(km); ok {
			primary = fb
		}
	}

	f := baseFact(km)
	f.PrimaryCharacterID = primary
	f.ParticipantCharacterIDs = attackerIDs(km)
	if km.Victim.CharacterID != nil {
		f.ParticipantCharacterIDs = append(f.ParticipantCharacterIDs, *km.Victim.CharacterID)
	}
	f.PrecomputedSolo = km.ZkbSolo
	f.Dimension = itoa(km.SolarSystemID)
	return f, true
}

// Classify labels the fact from its participant structure.
func (s *ActivityStrategy) Classify(f *domain.Fact, members map[int64]struct{}) domain.Classification {
	return classify.Classify(f, members)
}

// Summarize renders e.g. "30 engagements in 7 systems, 2.10B ISK involved".
func (s *ActivityStrategy) Summarize(res *domain.GroupResult) string {
	return fmt.Sprintf("%d engagements in %d systems, %s ISK involved",
		res.UniqueFactCount, len(res.Breakdown), metrics.FormatValue(res.TotalValue))
}
