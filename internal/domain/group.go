package domain

// Group is a named set of tracked characters reported as one unit.
// Membership may overlap with other groups.
type Group struct {
	ID                 string
	DisplayName        string
	MemberCharacterIDs []int64
	MainCharacterID    *int64 // display naming only
}

// MemberSet returns the de-duplicated membership as a set.
func (g *Group) MemberSet() map[int64]struct{} {
	set := make(map[int64]struct{}, len(g.MemberCharacterIDs))
	for _, id := range g.MemberCharacterIDs {
		set[id] = struct{}{}
	}
	return set
}

// Name returns the display name, falling back to the group id.
func (g *Group) Name() string {
	if g.DisplayName != "" {
		return g.DisplayName
	}
	return g.ID
}
