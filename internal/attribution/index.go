package attribution

import "killboard-stats/internal/domain"

// Index maps a character id to the positions of every group containing it.
// Built once per request; read-only afterwards.
type Index struct {
	byCharacter map[int64][]int
}

// NewIndex builds the character -> groups index. Duplicate members inside a
// group are collapsed so each group position appears at most once per character.
func NewIndex(groups []domain.Group) *Index {
	idx := &Index{byCharacter: make(map[int64][]int)}
	for gi := range groups {
		seen := make(map[int64]struct{}, len(groups[gi].MemberCharacterIDs))
		for _, id := range groups[gi].MemberCharacterIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			idx.byCharacter[id] = append(idx.byCharacter[id], gi)
		}
	}
	return idx
}

// Groups returns the positions of groups containing characterID.
func (i *Index) Groups(characterID int64) []int {
	return i.byCharacter[characterID]
}

// Characters returns the number of indexed characters.
func (i *Index) Characters() int {
	return len(i.byCharacter)
}
