package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"killboard-stats/internal/domain"
)

const (
	char1 int64 = 90000001
	char2 int64 = 90000002
	char3 int64 = 90000003
	npc   int64 = 3000123
)

var windowStart = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(hours int) time.Time {
	return windowStart.Add(time.Duration(hours) * time.Hour)
}

func scenarioRequest() domain.AggregationRequest {
	return domain.AggregationRequest{
		Groups: []domain.Group{
			{ID: "A", DisplayName: "Alpha", MemberCharacterIDs: []int64{char1}},
			{ID: "B", MemberCharacterIDs: []int64{char2, char3}},
		},
		Facts: []domain.Fact{
			{Key: "f1", Timestamp: at(1), PrimaryCharacterID: char1, ParticipantCharacterIDs: []int64{char1}, Value: big.NewInt(1_500)},
			{Key: "f2", Timestamp: at(25), PrimaryCharacterID: char2, ParticipantCharacterIDs: []int64{char2, char3}, Value: big.NewInt(2_000_000_000)},
			{Key: "f3", Timestamp: at(49), PrimaryCharacterID: char1, ParticipantCharacterIDs: []int64{char1, char2}, Value: big.NewInt(500)},
		},
		Start:       windowStart,
		End:         windowStart.Add(72 * time.Hour),
		Granularity: domain.GranularityDay,
	}
}

func TestEngine_EndToEndScenario(t *testing.T) {
	res, err := NewEngine().Aggregate(scenarioRequest())
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	a := res.Groups[0]
	assert.Equal(t, "A", a.GroupID)
	assert.Equal(t, "Alpha", a.DisplayName)
	assert.Equal(t, 2, a.UniqueFactCount)
	assert.Equal(t, []string{"f1", "f3"}, a.FactKeys)
	assert.Equal(t, domain.TrueSolo, a.Classifications["f1"])
	assert.Equal(t, domain.MultiParty, a.Classifications["f3"])
	assert.Equal(t, 1, a.SoloCount)
	assert.Equal(t, 0, a.GroupSoloCount)
	assert.Equal(t, "2000", a.TotalValue.String())

	b := res.Groups[1]
	assert.Equal(t, "B", b.DisplayName)
	assert.Equal(t, domain.GroupSolo, b.Classifications["f2"])
	// char2 participates in f3, which is why B sees it too.
	assert.Equal(t, []string{"f2", "f3"}, b.FactKeys)
	assert.Equal(t, domain.MultiParty, b.Classifications["f3"])
	assert.Equal(t, 1, b.GroupSoloCount)
	assert.Equal(t, 1, b.SoloCount)
	assert.Equal(t, 1, b.HighValueCount)

	assert.Equal(t, 4, res.Summary.GrandTotalCount)
	assert.Equal(t, 3, res.Summary.GrandUniqueFactCount)
	assert.Equal(t, "2000002500", res.Summary.GrandTotalValue.String())
	assert.Equal(t, "B", res.Summary.TopPerformerGroupID)
	assert.Equal(t, domain.TopByValue, res.Summary.TopPerformerMetric)
	assert.Empty(t, res.Warnings)
}

func TestEngine_TimeSeries(t *testing.T) {
	res, err := NewEngine().Aggregate(scenarioRequest())
	require.NoError(t, err)

	series := res.Groups[0].TimeSeries
	require.Len(t, series, 3)
	assert.Equal(t, windowStart, series[0].BucketStart)
	assert.Equal(t, 1, series[0].Count)
	assert.Equal(t, 0, series[1].Count)
	assert.Equal(t, 1, series[2].Count)
	assert.Equal(t, "1500", series[0].Value.String())
	assert.Equal(t, float64(1500), series[0].ValueFloat)
	assert.False(t, series[0].ValueClamped)
	assert.Equal(t, domain.TrendStable, res.Groups[0].Trend)

	total := 0
	for _, p := range res.Groups[1].TimeSeries {
		total += p.Count
	}
	assert.Equal(t, res.Groups[1].UniqueFactCount, total)
}

func TestEngine_TrendIncreasing(t *testing.T) {
	req := domain.AggregationRequest{
		Groups:      []domain.Group{{ID: "A", MemberCharacterIDs: []int64{char1}}},
		Start:       windowStart,
		End:         windowStart.Add(72 * time.Hour),
		Granularity: domain.GranularityDay,
	}
	// 1, 2, 3 facts per day.
	n := 0
	for day, count := range []int{1, 2, 3} {
		for i := 0; i < count; i++ {
			n++
			req.Facts = append(req.Facts, domain.Fact{
				Key:                     big.NewInt(int64(n)).String(),
				Timestamp:               at(day*24 + i),
				PrimaryCharacterID:      char1,
				ParticipantCharacterIDs: []int64{char1},
			})
		}
	}

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	assert.Equal(t, domain.TrendIncreasing, res.Groups[0].Trend)
}

func TestEngine_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.AggregationRequest)
		want   error
	}{
		{"start equals end", func(r *domain.AggregationRequest) { r.End = r.Start }, ErrInvalidTimeRange},
		{"start after end", func(r *domain.AggregationRequest) { r.Start = r.End.Add(time.Hour) }, ErrInvalidTimeRange},
		{"unknown granularity", func(r *domain.AggregationRequest) { r.Granularity = "month" }, ErrInvalidGranularity},
		{"unknown top metric", func(r *domain.AggregationRequest) { r.TopMetric = "kd" }, ErrInvalidTopMetric},
		{"too many buckets", func(r *domain.AggregationRequest) {
			r.Granularity = domain.GranularityHour
			r.End = r.Start.AddDate(2, 0, 0)
		}, ErrTooManyBuckets},
		{"negative threshold", func(r *domain.AggregationRequest) { r.HighValueThreshold = big.NewInt(-1) }, ErrNegativeThreshold},
		{"duplicate group", func(r *domain.AggregationRequest) { r.Groups = append(r.Groups, domain.Group{ID: "A"}) }, ErrDuplicateGroupID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioRequest()
			tt.mutate(&req)
			res, err := NewEngine().Aggregate(req)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, res)
		})
	}
}

func TestEngine_EmptyInputs(t *testing.T) {
	req := scenarioRequest()
	req.Facts = nil

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	for _, g := range res.Groups {
		assert.Zero(t, g.UniqueFactCount)
		assert.Equal(t, "0", g.TotalValue.String())
		assert.Len(t, g.TimeSeries, 3)
		assert.Equal(t, domain.TrendStable, g.Trend)
	}

	req = scenarioRequest()
	req.Groups = nil
	res, err = NewEngine().Aggregate(req)
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Equal(t, "", res.Summary.TopPerformerGroupID)
	assert.Zero(t, res.Summary.GrandTotalCount)
}

func TestEngine_EmptyMembershipGroup(t *testing.T) {
	req := scenarioRequest()
	req.Groups = append(req.Groups, domain.Group{ID: "C"})

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	assert.Zero(t, res.Groups[2].UniqueFactCount)
	assert.Empty(t, res.Groups[2].FactKeys)
}

func TestEngine_SanitizesFacts(t *testing.T) {
	req := scenarioRequest()
	req.Facts = append(req.Facts,
		domain.Fact{Key: "f1", Timestamp: at(2), PrimaryCharacterID: char1, Value: big.NewInt(999)},
		domain.Fact{Key: "neg", Timestamp: at(3), PrimaryCharacterID: char1, Value: big.NewInt(-5)},
		domain.Fact{Key: "late", Timestamp: req.End, PrimaryCharacterID: char1},
		domain.Fact{Key: "early", Timestamp: req.Start.Add(-time.Second), PrimaryCharacterID: char1},
		domain.Fact{Key: "bad", Timestamp: at(4), PrimaryCharacterID: char1, ParticipantCharacterIDs: []int64{0, -1, npc}},
	)

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)

	a := res.Groups[0]
	assert.Equal(t, []string{"f1", "f3", "bad"}, a.FactKeys)
	assert.Equal(t, "2000", a.TotalValue.String())
	// npc-only participants: no player participants at all.
	assert.Equal(t, domain.MultiParty, a.Classifications["bad"])

	codes := make(map[string]string)
	for _, w := range res.Warnings {
		codes[w.FactKey] = w.Code
	}
	assert.Equal(t, domain.WarnDuplicateFactKey, codes["f1"])
	assert.Equal(t, domain.WarnNegativeValue, codes["neg"])
	assert.Equal(t, domain.WarnMalformedParticipant, codes["bad"])
	assert.NotContains(t, codes, "late")
	assert.NotContains(t, codes, "early")
}

func TestEngine_HighValueThreshold(t *testing.T) {
	req := scenarioRequest()
	req.HighValueThreshold = big.NewInt(1_500)

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Groups[0].HighValueCount) // 1500 counts, 500 does not
	assert.Equal(t, 1, res.Groups[1].HighValueCount)

	res, err = NewEngine(WithHighValueThreshold(big.NewInt(0))).Aggregate(scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups[0].HighValueCount)
}

func TestEngine_TopMetric(t *testing.T) {
	req := scenarioRequest()
	req.TopMetric = domain.TopByCount

	res, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	// both groups have two facts; the earliest group keeps the tie.
	assert.Equal(t, "A", res.Summary.TopPerformerGroupID)
	assert.Equal(t, domain.TopByCount, res.Summary.TopPerformerMetric)
}

func TestEngine_CustomClassifier(t *testing.T) {
	always := func(*domain.Fact, map[int64]struct{}) domain.Classification { return domain.TrueSolo }

	res, err := NewEngine(WithClassifier(always), WithWorkers(1)).Aggregate(scenarioRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Groups[0].SoloCount)
	assert.Equal(t, 2, res.Groups[1].SoloCount)
	assert.Zero(t, res.Groups[1].GroupSoloCount)
}

func TestEngine_DoesNotMutateInput(t *testing.T) {
	req := scenarioRequest()
	before := req.Facts[0].Value.String()

	_, err := NewEngine().Aggregate(req)
	require.NoError(t, err)
	assert.Equal(t, before, req.Facts[0].Value.String())
	assert.Len(t, req.Facts, 3)
}

func TestEngine_Deterministic(t *testing.T) {
	e := NewEngine(WithWorkers(4))
	first, err := e.Aggregate(scenarioRequest())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := e.Aggregate(scenarioRequest())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
