package regression

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkuo/mnemo/internal/embedding"
	"github.com/tkuo/mnemo/internal/search"
	"github.com/tkuo/mnemo/internal/store"
)

func newTestHarness(t *testing.T) (*Harness, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	engine := search.NewEngine(s, embedding.NewMockEmbedder(64), zerolog.Nop())
	return NewHarness(s, engine, zerolog.Nop()), s
}

func seedCorpus(t *testing.T, s *store.SQLiteStore) []string {
	t.Helper()
	ctx := context.Background()
	mock := embedding.NewMockEmbedder(64)
	contents := []string{
		"postgres failover drill went smoothly",
		"postgres replica lag spiked during backup",
		"postgres upgrade to 17 scheduled for friday",
		"team lunch at the noodle place",
	}
	ids := make([]string, len(contents))
	for i, c := range contents {
		vec, err := mock.Embed(ctx, c)
		require.NoError(t, err)
		m, err := s.InsertMemory(ctx, store.InsertParams{Content: c, Embedding: vec})
		require.NoError(t, err)
		ids[i] = m.ID
	}
	return ids
}

func TestRun_NoGoldenQueries(t *testing.T) {
	h, _ := newTestHarness(t)
	_, err := h.Run(context.Background(), Params{})
	assert.Error(t, err)
}

func TestRun_SeedsMissingBaseline(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	seedCorpus(t, s)

	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))

	result, err := h.Run(ctx, Params{})
	require.NoError(t, err)
	require.Len(t, result.Queries, 1)
	assert.True(t, result.Queries[0].Seeded)
	assert.False(t, result.Alert)
	assert.InDelta(t, 1.0, result.AvgOverlap, 1e-9, "nothing compared yet")

	golden, err := s.ListGoldenQueries(ctx)
	require.NoError(t, err)
	require.Len(t, golden, 1)
	assert.NotEmpty(t, golden[0].Baseline)

	runs, _ := s.GetCounter(ctx, store.CounterRegressionRuns)
	assert.Equal(t, 1, runs)
}

func TestRun_StableDataPasses(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	seedCorpus(t, s)
	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))

	// First run seeds, second run compares against unchanged data.
	_, err := h.Run(ctx, Params{})
	require.NoError(t, err)
	result, err := h.Run(ctx, Params{})
	require.NoError(t, err)

	require.Len(t, result.Queries, 1)
	assert.False(t, result.Queries[0].Regressed)
	assert.InDelta(t, 1.0, result.Queries[0].Overlap, 1e-9)
	assert.InDelta(t, 0.0, result.Queries[0].RankShift, 1e-9)
	assert.False(t, result.Alert)

	alerts, _ := s.GetCounter(ctx, store.CounterRegressionAlerts)
	assert.Zero(t, alerts)
}

func TestRun_DetectsRegression(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	ids := seedCorpus(t, s)
	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))

	_, err := h.Run(ctx, Params{})
	require.NoError(t, err)

	// Knock the baseline results out of the index.
	for _, id := range ids[:3] {
		_, err := s.DeactivateMemory(ctx, id)
		require.NoError(t, err)
	}

	result, err := h.Run(ctx, Params{MinOverlap: 0.9})
	require.NoError(t, err)
	require.Len(t, result.Queries, 1)
	assert.True(t, result.Queries[0].Regressed)
	assert.Less(t, result.Queries[0].Overlap, 0.9)
	assert.True(t, result.Alert)
	assert.NotEmpty(t, result.AlertID)

	// The alert is itself a memory the layer can retrieve.
	alert, err := s.GetMemory(ctx, result.AlertID)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, "regression-harness", alert.Source)
	assert.Contains(t, alert.Tags, "regression-alert")
	assert.NotEmpty(t, alert.ContentHash, "alert hashed at insert, not by a later backfill")

	alerts, _ := s.GetCounter(ctx, store.CounterRegressionAlerts)
	assert.Equal(t, 1, alerts)
}

func TestRun_SuppressAlert(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	ids := seedCorpus(t, s)
	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))

	_, err := h.Run(ctx, Params{})
	require.NoError(t, err)
	for _, id := range ids[:3] {
		s.DeactivateMemory(ctx, id)
	}

	result, err := h.Run(ctx, Params{MinOverlap: 0.9, SuppressAlert: true})
	require.NoError(t, err)
	assert.True(t, result.Alert, "alert state still reported")
	assert.Empty(t, result.AlertID, "but no alert memory written")

	// Counter still records the alert even when suppressed.
	alerts, _ := s.GetCounter(ctx, store.CounterRegressionAlerts)
	assert.Equal(t, 1, alerts)
}

func TestRun_UpdateBaseline(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	ids := seedCorpus(t, s)
	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))

	_, err := h.Run(ctx, Params{})
	require.NoError(t, err)
	for _, id := range ids[:2] {
		s.DeactivateMemory(ctx, id)
	}

	// Re-baselining accepts the new ranking; the next run is clean.
	result, err := h.Run(ctx, Params{UpdateBaseline: true})
	require.NoError(t, err)
	assert.True(t, result.Queries[0].Seeded)
	assert.False(t, result.Alert)

	result, err = h.Run(ctx, Params{MinOverlap: 0.9})
	require.NoError(t, err)
	assert.False(t, result.Alert)
}

func TestRun_MalformedThresholdSetting(t *testing.T) {
	ctx := context.Background()
	h, s := newTestHarness(t)
	seedCorpus(t, s)
	require.NoError(t, s.AddGoldenQuery(ctx, "postgres replica lag"))
	require.NoError(t, s.SetSetting(ctx, store.SettingMinOverlap, "very strict"))

	_, err := h.Run(ctx, Params{})
	assert.Error(t, err)

	// An explicit parameter bypasses the stored setting.
	_, err = h.Run(ctx, Params{MinOverlap: 0.7})
	assert.NoError(t, err)
}

func TestOverlapAtK(t *testing.T) {
	assert.InDelta(t, 1.0, overlapAtK([]string{"a", "b"}, []string{"b", "a"}, 10), 1e-9)
	assert.InDelta(t, 0.5, overlapAtK([]string{"a", "b"}, []string{"a", "c"}, 10), 1e-9)
	assert.InDelta(t, 0.0, overlapAtK([]string{"a"}, []string{"b"}, 10), 1e-9)
	assert.InDelta(t, 1.0, overlapAtK(nil, []string{"a"}, 10), 1e-9, "empty baseline never regresses")
	// Only the top K of each side is compared.
	assert.InDelta(t, 1.0, overlapAtK([]string{"a", "b", "c"}, []string{"a", "b", "x"}, 2), 1e-9)
}

func TestRankShift(t *testing.T) {
	assert.InDelta(t, 0.0, rankShift([]string{"a", "b"}, []string{"a", "b"}), 1e-9)
	assert.InDelta(t, 1.0, rankShift([]string{"a", "b"}, []string{"b", "a"}), 1e-9)
	// Ids missing from the current ranking are ignored, not infinite.
	assert.InDelta(t, 0.0, rankShift([]string{"a", "b"}, []string{"a"}), 1e-9)
	assert.InDelta(t, 0.0, rankShift([]string{"a"}, nil), 1e-9)
}
