package stats

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"killboard-stats/internal/cache"
	"killboard-stats/internal/domain"
	"killboard-stats/internal/fetch"
	"killboard-stats/internal/fixtures"
	"killboard-stats/internal/logging"
	"killboard-stats/internal/metrics"
	"killboard-stats/internal/retry"
	"killboard-stats/internal/storage"
	"killboard-stats/internal/storage/memory"
	"killboard-stats/internal/strategy"
)

// countingStore wraps a KillmailStore, counting range reads and failing the
// first failFirst of them.
type countingStore struct {
	storage.KillmailStore
	calls     atomic.Int32
	failFirst int32
}

func (s *countingStore) GetByCharactersTimeRange(ctx context.Context, ids []int64, start, end time.Time) ([]*domain.Killmail, error) {
	n := s.calls.Add(1)
	if n <= s.failFirst {
		return nil, errors.New("connection reset")
	}
	return s.KillmailStore.GetByCharactersTimeRange(ctx, ids, start, end)
}

// staticStore returns a fixed killmail list from range reads.
type staticStore struct {
	storage.KillmailStore
	kms []*domain.Killmail
}

func (s *staticStore) GetByCharactersTimeRange(context.Context, []int64, time.Time, time.Time) ([]*domain.Killmail, error) {
	return s.kms, nil
}

func fastPolicy() *retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 2 * time.Millisecond
	p.RateLimitDelay = time.Millisecond
	return &p
}

func setup(t *testing.T) (*countingStore, *memory.GroupStore) {
	t.Helper()
	kms := memory.NewKillmailStore()
	groups := memory.NewGroupStore()
	require.NoError(t, fixtures.Load(context.Background(), kms, groups))
	return &countingStore{KillmailStore: kms}, groups
}

func dayQuery(report string) Query {
	return Query{
		Start:       fixtures.Start,
		End:         fixtures.End,
		Granularity: domain.GranularityDay,
		Report:      report,
	}
}

func groupByID(t *testing.T, res *domain.AggregationResult, id string) domain.GroupResult {
	t.Helper()
	for _, g := range res.Groups {
		if g.GroupID == id {
			return g
		}
	}
	t.Fatalf("group %s not in result", id)
	return domain.GroupResult{}
}

func TestCompute_Kills(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)

	assert.Equal(t, strategy.NameKills, report.Strategy)
	assert.False(t, report.Cached)
	require.Len(t, report.Result.Groups, 2)
	assert.Equal(t, fixtures.GroupRavens, report.Result.Groups[0].GroupID)
	assert.Equal(t, fixtures.GroupWolves, report.Result.Groups[1].GroupID)

	wolves := groupByID(t, report.Result, fixtures.GroupWolves)
	assert.Equal(t, 5, wolves.UniqueFactCount)
	assert.Equal(t, 3, wolves.SoloCount)
	assert.Equal(t, 1, wolves.GroupSoloCount)
	assert.Equal(t, 2, wolves.HighValueCount)
	assert.Equal(t, "4560000000", wolves.TotalValue.String())
	require.Len(t, wolves.TimeSeries, 3)
	assert.Equal(t, []int{3, 1, 1}, []int{wolves.TimeSeries[0].Count, wolves.TimeSeries[1].Count, wolves.TimeSeries[2].Count})
	assert.Equal(t, domain.TrendDecreasing, wolves.Trend)

	ravens := groupByID(t, report.Result, fixtures.GroupRavens)
	assert.Equal(t, 4, ravens.UniqueFactCount)
	assert.Equal(t, 2, ravens.SoloCount)
	assert.Equal(t, "4245000000", ravens.TotalValue.String())

	sum := report.Result.Summary
	assert.Equal(t, 9, sum.GrandTotalCount)
	assert.Equal(t, 7, sum.GrandUniqueFactCount)
	assert.Equal(t, "8805000000", sum.GrandTotalValue.String())
	assert.Equal(t, fixtures.GroupWolves, sum.TopPerformerGroupID)
	assert.Empty(t, report.Result.Warnings)

	assert.Equal(t, "5 kills (3 solo, 1 group solo), 4.56B ISK destroyed", report.Summaries[fixtures.GroupWolves])
}

func TestCompute_Losses(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})

	q := dayQuery(strategy.NameLosses)
	q.GroupIDs = []string{fixtures.GroupWolves, fixtures.GroupRavens}
	report, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)

	require.Len(t, report.Result.Groups, 2)
	assert.Equal(t, fixtures.GroupWolves, report.Result.Groups[0].GroupID)

	wolves := report.Result.Groups[0]
	assert.Equal(t, 1, wolves.UniqueFactCount)
	assert.Equal(t, 0, wolves.SoloCount)

	ravens := report.Result.Groups[1]
	assert.Equal(t, 1, ravens.UniqueFactCount)
	assert.Equal(t, 1, ravens.SoloCount)
}

func TestCompute_TopMetric(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})

	q := dayQuery("")
	q.TopMetric = domain.TopByCount
	report, err := svc.Compute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, fixtures.GroupWolves, report.Result.Summary.TopPerformerGroupID)
	assert.Equal(t, domain.TopByCount, report.Result.Summary.TopPerformerMetric)
}

func TestCompute_CacheHit(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{
		KillmailStore: kms,
		GroupStore:    groups,
		Cache:         cache.NewMemory(),
		Retry:         fastPolicy(),
	})
	ctx := context.Background()

	first, err := svc.Compute(ctx, dayQuery(""))
	require.NoError(t, err)
	second, err := svc.Compute(ctx, dayQuery(""))
	require.NoError(t, err)

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Same(t, first.Result, second.Result)
	assert.Equal(t, int32(1), kms.calls.Load())

	// A different report is a different key.
	_, err = svc.Compute(ctx, dayQuery(strategy.NameActivity))
	require.NoError(t, err)
	assert.Equal(t, int32(2), kms.calls.Load())
}

func TestCompute_MembershipChangeInvalidatesCache(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Cache: cache.NewMemory(), Retry: fastPolicy()})
	ctx := context.Background()

	_, err := svc.Compute(ctx, dayQuery(""))
	require.NoError(t, err)

	g := fixtures.Groups()[0]
	g.MemberCharacterIDs = append(g.MemberCharacterIDs, 5004)
	require.NoError(t, groups.Upsert(ctx, g))

	report, err := svc.Compute(ctx, dayQuery(""))
	require.NoError(t, err)
	assert.False(t, report.Cached)
	assert.Equal(t, int32(2), kms.calls.Load())
}

func TestCompute_Persist(t *testing.T) {
	kms, groups := setup(t)
	snapshots := memory.NewSnapshotStore()
	svc := New(Options{
		KillmailStore: kms,
		GroupStore:    groups,
		SnapshotStore: snapshots,
		Cache:         cache.NewMemory(),
		Retry:         fastPolicy(),
	})
	ctx := context.Background()

	q := dayQuery("")
	q.Persist = true
	report, err := svc.Compute(ctx, q)
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)

	rows, err := snapshots.GetByRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	for _, r := range rows {
		assert.Equal(t, strategy.NameKills, r.Report)
		assert.Equal(t, domain.GranularityDay, r.Granularity)
	}

	// A cached answer persisted again gets its own run.
	again, err := svc.Compute(ctx, q)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.NotEqual(t, report.RunID, again.RunID)
}

func TestCompute_NoPersistWithoutFlag(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, SnapshotStore: memory.NewSnapshotStore(), Retry: fastPolicy()})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)
	assert.Empty(t, report.RunID)
}

func TestCompute_InvalidQuery(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})
	ctx := context.Background()

	tests := []struct {
		name   string
		modify func(*Query)
		want   error
	}{
		{"empty range", func(q *Query) { q.End = q.Start }, metrics.ErrInvalidTimeRange},
		{"bad granularity", func(q *Query) { q.Granularity = "month" }, metrics.ErrInvalidGranularity},
		{"bad top metric", func(q *Query) { q.TopMetric = "ratio" }, metrics.ErrInvalidTopMetric},
		{"decades of hours", func(q *Query) {
			q.Granularity = domain.GranularityHour
			q.Start = time.Unix(0, 0).UTC()
			q.End = time.Unix(4102444800, 0).UTC()
		}, metrics.ErrTooManyBuckets},
		{"unknown report", func(q *Query) { q.Report = "assists" }, strategy.ErrUnknownStrategy},
		{"unknown group", func(q *Query) { q.GroupIDs = []string{"nobody"} }, fetch.ErrUnknownGroup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := dayQuery("")
			tt.modify(&q)
			report, err := svc.Compute(ctx, q)
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInvalidQuery(err))
		})
	}
	assert.Equal(t, int32(0), kms.calls.Load())
}

func TestCompute_RetriesTransientFailure(t *testing.T) {
	kms, groups := setup(t)
	kms.failFirst = 1
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)
	assert.Equal(t, int32(2), kms.calls.Load())
	assert.Equal(t, 7, report.Result.Summary.GrandUniqueFactCount)
}

func TestCompute_GivesUpAfterMaxAttempts(t *testing.T) {
	kms, groups := setup(t)
	kms.failFirst = 100
	svc := New(Options{KillmailStore: kms, GroupStore: groups, Retry: fastPolicy()})

	_, err := svc.Compute(context.Background(), dayQuery(""))
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetch facts")
	assert.False(t, IsInvalidQuery(err))
	assert.Equal(t, int32(retry.DefaultMaxAttempts), kms.calls.Load())
}

func TestCompute_LogsWarnings(t *testing.T) {
	_, groups := setup(t)
	member := int64(1001)
	store := &staticStore{kms: []*domain.Killmail{{
		KillmailID: 900001,
		Time:       fixtures.Start.Add(time.Hour),
		Victim:     domain.Victim{ShipTypeID: 587},
		Attackers:  []domain.Attacker{{CharacterID: &member, FinalBlow: true}},
		TotalValue: big.NewInt(-10),
	}}}

	var buf bytes.Buffer
	svc := New(Options{
		KillmailStore: store,
		GroupStore:    groups,
		Logger:        logging.New(&buf, "warn"),
		Retry:         fastPolicy(),
	})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)
	require.Len(t, report.Result.Warnings, 1)
	assert.Equal(t, domain.WarnNegativeValue, report.Result.Warnings[0].Code)
	assert.Contains(t, buf.String(), domain.WarnNegativeValue)
	assert.Contains(t, buf.String(), "900001")
}

func TestCompute_EmptyGroups(t *testing.T) {
	kms := &countingStore{KillmailStore: memory.NewKillmailStore()}
	svc := New(Options{KillmailStore: kms, GroupStore: memory.NewGroupStore(), Retry: fastPolicy()})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)
	assert.Empty(t, report.Result.Groups)
	assert.Empty(t, report.Result.Summary.TopPerformerGroupID)
	assert.Equal(t, int32(0), kms.calls.Load())
}

func TestCompute_HighValueThreshold(t *testing.T) {
	kms, groups := setup(t)
	svc := New(Options{
		KillmailStore:      kms,
		GroupStore:         groups,
		HighValueThreshold: big.NewInt(100_000_000),
		Retry:              fastPolicy(),
	})

	report, err := svc.Compute(context.Background(), dayQuery(""))
	require.NoError(t, err)
	wolves := groupByID(t, report.Result, fixtures.GroupWolves)
	assert.Equal(t, 3, wolves.HighValueCount)
}
