// Package classify labels a fact's participant structure relative to a group.
//
// Classification is always recomputed from participant data. A precomputed solo
// flag on the fact is ignored.
package classify

import "killboard-stats/internal/domain"

// PlayerParticipants returns the distinct player character ids of a fact,
// in first-seen order. NPC, system and malformed entries are dropped.
func PlayerParticipants(f *domain.Fact) []int64 {
	seen := make(map[int64]struct{}, len(f.ParticipantCharacterIDs))
	players := make([]int64, 0, len(f.ParticipantCharacterIDs))
	for _, id := range f.ParticipantCharacterIDs {
		if !domain.IsPlayerCharacterID(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		players = append(players, id)
	}
	return players
}

// Classify labels f relative to a group whose membership set is members.
//   - exactly one player participant: TrueSolo, for every group
//   - two or more, all members: GroupSolo
//   - anything else, including no players at all: MultiParty
func Classify(f *domain.Fact, members map[int64]struct{}) domain.Classification {
	return ClassifyPlayers(PlayerParticipants(f), members)
}

// ClassifyGroup is Classify for callers holding a domain.Group.
func ClassifyGroup(f *domain.Fact, g *domain.Group) domain.Classification {
	return Classify(f, g.MemberSet())
}

// ClassifyPlayers classifies an already filtered player list.
func ClassifyPlayers(players []int64, members map[int64]struct{}) domain.Classification {
	switch {
	case len(players) == 1:
		return domain.TrueSolo
	case len(players) >= 2 && allMembers(players, members):
		return domain.GroupSolo
	default:
		return domain.MultiParty
	}
}

func allMembers(players []int64, members map[int64]struct{}) bool {
	for _, id := range players {
		if _, ok := members[id]; !ok {
			return false
		}
	}
	return true
}
