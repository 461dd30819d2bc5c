// Package attribution decides which groups each fact counts toward.
package attribution

import (
	"fmt"

	"killboard-stats/internal/domain"
)

// Attribution is the per-group deduplicated fact assignment of one request.
type Attribution struct {
	groupIDs []string
	// factsByGroup[g] holds indices into the input facts, in first-seen order.
	factsByGroup [][]int
	facts        []domain.Fact
	Warnings     []domain.Warning
}

// Attribute assigns facts to groups. A fact belongs to a group when its primary
// character or any participant is a member; it is recorded at most once per group
// no matter how many of its characters match. Facts sharing a key are treated as
// the same event. Non-positive character ids are skipped with a warning.
func Attribute(facts []domain.Fact, groups []domain.Group) *Attribution {
	idx := NewIndex(groups)

	a := &Attribution{
		groupIDs:     make([]string, len(groups)),
		factsByGroup: make([][]int, len(groups)),
		facts:        facts,
	}
	for gi := range groups {
		a.groupIDs[gi] = groups[gi].ID
	}

	seen := make([]map[string]struct{}, len(groups))
	for gi := range seen {
		seen[gi] = make(map[string]struct{})
	}

	for fi := range facts {
		a.attributeFact(fi, &facts[fi], idx, seen)
	}

	return a
}

// attributeFact records fact fi for every group that contains one of its characters.
// seen is the per-group set of fact keys already recorded.
func (a *Attribution) attributeFact(fi int, f *domain.Fact, idx *Index, seen []map[string]struct{}) {
	add := func(characterID int64) {
		for _, gi := range idx.Groups(characterID) {
			if _, ok := seen[gi][f.Key]; ok {
				continue
			}
			seen[gi][f.Key] = struct{}{}
			a.factsByGroup[gi] = append(a.factsByGroup[gi], fi)
		}
	}

	if f.PrimaryCharacterID > 0 {
		add(f.PrimaryCharacterID)
	} else {
		a.Warnings = append(a.Warnings, domain.Warning{
			FactKey: f.Key,
			Code:    domain.WarnMalformedCharacterID,
			Detail:  fmt.Sprintf("primary character id %d skipped", f.PrimaryCharacterID),
		})
	}

	malformed := 0
	for _, id := range f.ParticipantCharacterIDs {
		if id <= 0 {
			malformed++
			continue
		}
		add(id)
	}
	if malformed > 0 {
		a.Warnings = append(a.Warnings, domain.Warning{
			FactKey: f.Key,
			Code:    domain.WarnMalformedParticipant,
			Detail:  fmt.Sprintf("%d malformed participant id(s) skipped", malformed),
		})
	}
}

// GroupCount returns the number of groups in the attribution.
func (a *Attribution) GroupCount() int {
	return len(a.groupIDs)
}

// FactIndices returns indices (into the input facts) attributed to group position gi.
func (a *Attribution) FactIndices(gi int) []int {
	return a.factsByGroup[gi]
}

// Facts returns the facts attributed to group position gi, in first-seen order.
func (a *Attribution) Facts(gi int) []domain.Fact {
	out := make([]domain.Fact, len(a.factsByGroup[gi]))
	for i, fi := range a.factsByGroup[gi] {
		out[i] = a.facts[fi]
	}
	return out
}

// Keys returns fact keys attributed to group position gi, in first-seen order.
func (a *Attribution) Keys(gi int) []string {
	keys := make([]string, len(a.factsByGroup[gi]))
	for i, fi := range a.factsByGroup[gi] {
		keys[i] = a.facts[fi].Key
	}
	return keys
}

// Sets returns group id -> set of fact keys.
// If group ids repeat, their sets are merged.
func (a *Attribution) Sets() map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(a.groupIDs))
	for gi, id := range a.groupIDs {
		s, ok := out[id]
		if !ok {
			s = make(map[string]struct{}, len(a.factsByGroup[gi]))
			out[id] = s
		}
		for _, fi := range a.factsByGroup[gi] {
			s[a.facts[fi].Key] = struct{}{}
		}
	}
	return out
}

// DistinctFacts returns how many distinct fact keys are attributed to any group.
func (a *Attribution) DistinctFacts() int {
	keys := make(map[string]struct{})
	for _, list := range a.factsByGroup {
		for _, fi := range list {
			keys[a.facts[fi].Key] = struct{}{}
		}
	}
	return len(keys)
}
