package maintenance

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkuo/mnemo/internal/consolidate"
	"github.com/tkuo/mnemo/internal/embedding"
	"github.com/tkuo/mnemo/internal/graph"
	"github.com/tkuo/mnemo/internal/regression"
	"github.com/tkuo/mnemo/internal/search"
	"github.com/tkuo/mnemo/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	log := zerolog.Nop()
	mock := embedding.NewMockEmbedder(64)
	runner := NewRunner(s,
		graph.NewDensifier(s, log),
		consolidate.NewEngine(s, mock, log),
		regression.NewHarness(s, search.NewEngine(s, mock, log), log),
		log)
	return runner, s
}

func TestRunCycle_EmptyStore(t *testing.T) {
	runner, _ := newTestRunner(t)

	result, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Densify)
	assert.Zero(t, result.Densify.RelationshipsCreated)
	assert.Zero(t, result.Consolidated)
	// Cold start: no golden queries is reported, not fatal.
	assert.Nil(t, result.Regression)
	assert.NotEmpty(t, result.RegressionErr)
}

func TestRunCycle_RunsAllStages(t *testing.T) {
	ctx := context.Background()
	runner, s := newTestRunner(t)
	mock := embedding.NewMockEmbedder(64)

	// Co-occurring entities for the densify stage.
	kafka, _ := s.UpsertEntity(ctx, "kafka", "technology", nil)
	ingest, _ := s.UpsertEntity(ctx, "ingest", "project", nil)
	for i := 0; i < 3; i++ {
		m, err := s.InsertMemory(ctx, store.InsertParams{Content: "pipeline work"})
		require.NoError(t, err)
		require.NoError(t, s.LinkEntity(ctx, m.ID, kafka.ID, 1.0))
		require.NoError(t, s.LinkEntity(ctx, m.ID, ingest.ID, 1.0))
	}

	// Near-duplicates for the consolidation stage.
	for _, content := range []string{
		"standup moved to nine thirty",
		"standup moved to nine thirty again",
		"reminder standup moved to nine thirty",
	} {
		vec, err := mock.Embed(ctx, content)
		require.NoError(t, err)
		_, err = s.InsertMemory(ctx, store.InsertParams{Content: content, Embedding: vec, Tags: []string{"standup"}})
		require.NoError(t, err)
	}

	require.NoError(t, s.AddGoldenQuery(ctx, "standup time"))

	result, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Densify.RelationshipsCreated)
	assert.Equal(t, 1, result.Consolidated)
	require.NotNil(t, result.Regression)
	assert.True(t, result.Regression.Queries[0].Seeded)

	// The cycle is idempotent: running again changes nothing new.
	second, err := runner.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Densify.RelationshipsCreated)
	assert.Zero(t, second.Consolidated)
}
