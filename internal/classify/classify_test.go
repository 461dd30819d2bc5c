package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"killboard-stats/internal/domain"
)

const (
	char1 int64 = 90000001
	char2 int64 = 90000002
	char3 int64 = 90000003
	npc   int64 = 3000123
)

func set(ids ...int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		participants []int64
		members      map[int64]struct{}
		want         domain.Classification
	}{
		{"single player in group", []int64{char1}, set(char1), domain.TrueSolo},
		{"single player outside group", []int64{char1}, set(char2), domain.TrueSolo},
		{"single player plus npc", []int64{char1, npc}, set(), domain.TrueSolo},
		{"single player plus malformed", []int64{char1, 0, -1}, set(), domain.TrueSolo},
		{"duplicate single player", []int64{char1, char1}, set(), domain.TrueSolo},
		{"two players both members", []int64{char2, char3}, set(char2, char3), domain.GroupSolo},
		{"two players one member", []int64{char1, char2}, set(char1), domain.MultiParty},
		{"two players no members", []int64{char1, char2}, set(char3), domain.MultiParty},
		{"npc only", []int64{npc}, set(npc), domain.MultiParty},
		{"no participants", nil, set(char1), domain.MultiParty},
		{"three players subset group", []int64{char1, char2, char3}, set(char1, char2), domain.MultiParty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &domain.Fact{Key: "k", ParticipantCharacterIDs: tt.participants}
			assert.Equal(t, tt.want, Classify(f, tt.members))
		})
	}
}

func TestClassify_IgnoresPrecomputedFlag(t *testing.T) {
	solo := true
	f := &domain.Fact{
		Key:                     "k",
		ParticipantCharacterIDs: []int64{char1, char2},
		PrecomputedSolo:         &solo,
	}
	assert.Equal(t, domain.MultiParty, Classify(f, set(char1)))
}

func TestClassify_TrueSoloForEveryGroup(t *testing.T) {
	f := &domain.Fact{Key: "k", ParticipantCharacterIDs: []int64{char2}}
	groups := []domain.Group{
		{ID: "a", MemberCharacterIDs: []int64{char1}},
		{ID: "b", MemberCharacterIDs: []int64{char2, char3}},
		{ID: "empty"},
	}
	for _, g := range groups {
		assert.Equal(t, domain.TrueSolo, ClassifyGroup(f, &g), "group %s", g.ID)
	}
}

func TestClassify_GroupSoloOnlyForContainingGroups(t *testing.T) {
	f := &domain.Fact{Key: "k", ParticipantCharacterIDs: []int64{char2, char3}}

	assert.Equal(t, domain.GroupSolo, ClassifyGroup(f, &domain.Group{MemberCharacterIDs: []int64{char1, char2, char3}}))
	assert.Equal(t, domain.MultiParty, ClassifyGroup(f, &domain.Group{MemberCharacterIDs: []int64{char2}}))
}

func TestPlayerParticipants(t *testing.T) {
	f := &domain.Fact{ParticipantCharacterIDs: []int64{0, char2, npc, char1, char2, -7}}
	assert.Equal(t, []int64{char2, char1}, PlayerParticipants(f))
}
