package consolidate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkuo/mnemo/internal/embedding"
	"github.com/tkuo/mnemo/internal/model"
	"github.com/tkuo/mnemo/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewEngine(s, embedding.NewMockEmbedder(64), zerolog.Nop()), s
}

func addEmbedded(t *testing.T, s *store.SQLiteStore, content string, p store.InsertParams) string {
	t.Helper()
	ctx := context.Background()
	p.Content = content
	vec, err := embedding.NewMockEmbedder(64).Embed(ctx, content)
	require.NoError(t, err)
	p.Embedding = vec
	m, err := s.InsertMemory(ctx, p)
	require.NoError(t, err)
	return m.ID
}

func TestFindClusters_GroupsSimilar(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	// Three near-duplicates about the same outage, one unrelated.
	a := addEmbedded(t, s, "database outage caused by connection pool exhaustion", store.InsertParams{Tags: []string{"outage"}})
	b := addEmbedded(t, s, "connection pool exhaustion caused the database outage", store.InsertParams{Tags: []string{"outage"}})
	c := addEmbedded(t, s, "outage postmortem: database connection pool exhaustion", store.InsertParams{Tags: []string{"outage"}})
	addEmbedded(t, s, "bought a new standing desk for the home office", store.InsertParams{})

	clusters, err := engine.FindClusters(ctx, 0.5, 3)
	require.NoError(t, err)
	require.Len(t, clusters, 1)

	cl := clusters[0]
	assert.ElementsMatch(t, []string{a, b, c}, cl.MemberIDs)
	assert.Equal(t, "outage", cl.Topic, "most frequent member tag wins")
	assert.Greater(t, cl.AvgSimilarity, 0.5)
}

func TestFindClusters_RespectsMinSize(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	addEmbedded(t, s, "ship the billing refactor", store.InsertParams{})
	addEmbedded(t, s, "billing refactor shipped today", store.InsertParams{})

	clusters, err := engine.FindClusters(ctx, 0.5, 3)
	require.NoError(t, err)
	assert.Empty(t, clusters, "pair below min size is not a cluster")
}

func TestFindClusters_SkipsSummariesAndUnembedded(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	for i := 0; i < 3; i++ {
		addEmbedded(t, s, "alert noise from the staging cluster again", store.InsertParams{ContentType: "summary"})
	}
	// Same text but no embedding: invisible to clustering.
	for i := 0; i < 3; i++ {
		_, err := s.InsertMemory(ctx, store.InsertParams{Content: "alert noise from the staging cluster again"})
		require.NoError(t, err)
	}

	clusters, err := engine.FindClusters(ctx, 0.5, 3)
	require.NoError(t, err)
	assert.Empty(t, clusters)
}

func TestFindClusters_BadSimilarity(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	_, err := engine.FindClusters(ctx, 1.5, 3)
	assert.Error(t, err)
}

func TestConsolidate_MergesCluster(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	ids := []string{
		addEmbedded(t, s, "standup notes: ingest lag again", store.InsertParams{Tags: []string{"ingest"}}),
		addEmbedded(t, s, "ingest lag traced to slow consumer", store.InsertParams{Tags: []string{"ingest"}}),
		addEmbedded(t, s, "ingest lag fixed by batching", store.InsertParams{Tags: []string{"ingest"}}),
	}
	cluster := model.Cluster{Topic: "ingest", MemberIDs: ids}

	summary, err := engine.BasicSummary(ctx, ids)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(summary, "Consolidated from 3 memories:"))

	rec, err := engine.Consolidate(ctx, cluster, summary)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.MemoriesMerged)
	assert.Equal(t, "extractive", rec.Strategy)

	// Members are deactivated, the summary is live and embedded.
	for _, id := range ids {
		m, _ := s.GetMemory(ctx, id)
		assert.False(t, m.IsActive)
	}
	sm, err := s.GetMemory(ctx, rec.SummaryID)
	require.NoError(t, err)
	require.NotNil(t, sm)
	assert.Equal(t, "summary", sm.ContentType)
	assert.True(t, sm.IsActive)
	assert.Contains(t, sm.Tags, "consolidated")
	assert.Contains(t, sm.Tags, "ingest")
	assert.NotEmpty(t, sm.ContentHash, "summary hashed at insert, not by a later backfill")
	assert.NotEmpty(t, sm.Embedding)
}

func TestConsolidate_EachRunAppendsHistory(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	for run := 0; run < 2; run++ {
		ids := []string{
			addEmbedded(t, s, "retro item one", store.InsertParams{}),
			addEmbedded(t, s, "retro item two", store.InsertParams{}),
		}
		_, err := engine.Consolidate(ctx, model.Cluster{Topic: "retro", MemberIDs: ids}, "merged retro items")
		require.NoError(t, err)
	}

	history, err := engine.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestConsolidate_FailedMergeLeavesNothing(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	live := addEmbedded(t, s, "survives the failed merge", store.InsertParams{})
	cluster := model.Cluster{Topic: "broken", MemberIDs: []string{live, "01ZZZZZZZZZZZZZZZZZZZZZZZZ"}}

	_, err := engine.Consolidate(ctx, cluster, "never lands")
	require.Error(t, err)

	m, _ := s.GetMemory(ctx, live)
	assert.True(t, m.IsActive, "rollback restores the member")
	history, _ := engine.History(ctx, 10)
	assert.Empty(t, history)
}

func TestBasicSummary_OrdersByImportance(t *testing.T) {
	ctx := context.Background()
	engine, s := newTestEngine(t)

	low := addEmbedded(t, s, "Minor footnote about the launch.", store.InsertParams{Importance: 0.1})
	high := addEmbedded(t, s, "Launch slipped a week due to cert renewal.", store.InsertParams{Importance: 0.9})

	summary, err := engine.BasicSummary(ctx, []string{low, high})
	require.NoError(t, err)

	lines := strings.Split(summary, "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Launch slipped", "most important member quoted first")
	assert.Contains(t, lines[2], "Minor footnote")
}

func TestBasicSummary_MissingMember(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t)
	_, err := engine.BasicSummary(ctx, []string{"01ZZZZZZZZZZZZZZZZZZZZZZZZ"})
	assert.Error(t, err)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "First sentence.", snippet("First sentence. Second sentence."))
	long := strings.Repeat("word ", 60)
	got := snippet(long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), summarySnippetLen+3)
	assert.Equal(t, "collapsed whitespace", snippet("collapsed \n\t whitespace"))
}
