package metrics

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"killboard-stats/internal/domain"
)

func TestTopPerformer(t *testing.T) {
	results := []domain.GroupResult{
		{GroupID: "a", UniqueFactCount: 5, SoloCount: 1, TotalValue: big.NewInt(100)},
		{GroupID: "b", UniqueFactCount: 3, SoloCount: 4, TotalValue: big.NewInt(900)},
		{GroupID: "c", UniqueFactCount: 5, SoloCount: 4, TotalValue: big.NewInt(900)},
	}

	tests := []struct {
		metric domain.TopMetric
		want   string
	}{
		{domain.TopByValue, "b"},
		{domain.TopByCount, "a"},
		{domain.TopBySolo, "b"},
		{"", "b"},
	}
	for _, tt := range tests {
		if got := TopPerformer(results, tt.metric); got != tt.want {
			t.Errorf("TopPerformer(%q) = %q, want %q", tt.metric, got, tt.want)
		}
	}

	if got := TopPerformer(nil, domain.TopByValue); got != "" {
		t.Errorf("TopPerformer(nil) = %q, want empty", got)
	}
}

func TestSummarize(t *testing.T) {
	results := []domain.GroupResult{
		{GroupID: "a", UniqueFactCount: 2, TotalValue: big.NewInt(10)},
		{GroupID: "b", UniqueFactCount: 1, TotalValue: nil},
	}

	s := Summarize(results, 2, "")
	assert.Equal(t, 3, s.GrandTotalCount)
	assert.Equal(t, 2, s.GrandUniqueFactCount)
	assert.Equal(t, "10", s.GrandTotalValue.String())
	assert.Equal(t, "a", s.TopPerformerGroupID)
	assert.Equal(t, domain.TopByValue, s.TopPerformerMetric)
}

func TestBuildBreakdown(t *testing.T) {
	facts := []domain.Fact{
		{Key: "1", Dimension: "Rifter", Value: big.NewInt(10)},
		{Key: "2", Dimension: "Rifter", Value: big.NewInt(10)},
		{Key: "3", Dimension: "Merlin", Value: big.NewInt(50)},
		{Key: "4", Dimension: "Atron", Value: big.NewInt(50)},
		{Key: "5", Dimension: ""},
	}

	rows := buildBreakdown(facts, 0)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	assert.Equal(t, "Rifter", rows[0].Dimension)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, "Atron", rows[1].Dimension)
	assert.Equal(t, "Merlin", rows[2].Dimension)

	rows = buildBreakdown(facts, 1)
	assert.Len(t, rows, 1)

	assert.Nil(t, buildBreakdown(nil, 5))
}
