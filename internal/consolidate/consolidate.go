// Package consolidate groups mutually similar memories into clusters
// and merges a cluster into one extractive summary memory plus an
// append-only audit record.
package consolidate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/canon"
	"github.com/tkuo/mnemo/internal/embedding"
	"github.com/tkuo/mnemo/internal/model"
	"github.com/tkuo/mnemo/internal/store"
)

const (
	// DefaultMinSimilarity is the similarity floor for cluster
	// membership.
	DefaultMinSimilarity = 0.75
	// DefaultMinClusterSize is the smallest cluster worth merging.
	DefaultMinClusterSize = 3

	// clusterPool bounds how many memories one clustering pass
	// considers.
	clusterPool = 500

	strategyExtractive = "extractive"
)

// Engine clusters and consolidates memories. The embedder is used
// only to embed the new summary and may be nil.
type Engine struct {
	store    *store.SQLiteStore
	embedder embedding.Embedder
	log      zerolog.Logger
}

// NewEngine returns a consolidation engine over the given store.
func NewEngine(s *store.SQLiteStore, e embedding.Embedder, log zerolog.Logger) *Engine {
	return &Engine{store: s, embedder: e, log: log}
}

// FindClusters groups active memories into clusters whose members are
// all mutually similar above minSimilarity, keeping clusters with at
// least minClusterSize members. Similarity is the same cosine notion
// retrieval uses. Summary memories are not re-clustered.
func (e *Engine) FindClusters(ctx context.Context, minSimilarity float64, minClusterSize int) ([]model.Cluster, error) {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	if minSimilarity > 1 {
		return nil, fmt.Errorf("min similarity %v out of range (0,1]", minSimilarity)
	}
	if minClusterSize <= 0 {
		minClusterSize = DefaultMinClusterSize
	}

	memories, err := e.store.ListMemories(ctx, store.ListParams{
		ActiveOnly:  true,
		WithVectors: true,
		Limit:       clusterPool,
	})
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}

	var pool []model.Memory
	for _, m := range memories {
		if len(m.Embedding) > 0 && m.ContentType != "summary" {
			pool = append(pool, m)
		}
	}

	assigned := map[string]bool{}
	var clusters []model.Cluster

	for i, seed := range pool {
		if assigned[seed.ID] {
			continue
		}
		members := []model.Memory{seed}

		for j := i + 1; j < len(pool); j++ {
			cand := pool[j]
			if assigned[cand.ID] {
				continue
			}
			// Complete linkage: the candidate must clear the floor
			// against every current member.
			ok := true
			for _, m := range members {
				if embedding.CosineSimilarity(cand.Embedding, m.Embedding) < minSimilarity {
					ok = false
					break
				}
			}
			if ok {
				members = append(members, cand)
			}
		}

		if len(members) < minClusterSize {
			continue
		}
		for _, m := range members {
			assigned[m.ID] = true
		}

		ids := make([]string, len(members))
		for k, m := range members {
			ids[k] = m.ID
		}
		clusters = append(clusters, model.Cluster{
			Topic:         topicLabel(members),
			MemberIDs:     ids,
			AvgSimilarity: avgPairwise(members),
		})
	}

	return clusters, nil
}

// Consolidate merges one cluster: members are deactivated, the summary
// memory is created, and the audit record is written in a single
// transaction via the store.
func (e *Engine) Consolidate(ctx context.Context, cluster model.Cluster, summary string) (*model.Consolidation, error) {
	if len(cluster.MemberIDs) == 0 {
		return nil, fmt.Errorf("empty cluster")
	}
	if strings.TrimSpace(summary) == "" {
		return nil, fmt.Errorf("empty summary")
	}

	normalize, err := canon.NormalizeWhitespaceSetting(ctx, e.store)
	if err != nil {
		return nil, err
	}

	var vec embedding.Vector
	if e.embedder != nil {
		v, err := e.embedder.Embed(ctx, summary)
		if err != nil {
			e.log.Warn().Err(err).Msg("summary embedding failed, storing without vector")
		} else {
			vec = v
		}
	}

	tags := []string{"consolidated"}
	if cluster.Topic != "" {
		tags = append(tags, cluster.Topic)
	}

	rec, err := e.store.Consolidate(ctx, store.ConsolidateParams{
		MemberIDs:   cluster.MemberIDs,
		Summary:     summary,
		Topic:       cluster.Topic,
		Strategy:    strategyExtractive,
		Tags:        tags,
		Importance:  0.7,
		ContentHash: canon.ContentHash(summary, normalize),
		Embedding:   vec,
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("topic", cluster.Topic).
		Int("merged", rec.MemoriesMerged).
		Str("summary_id", rec.SummaryID).
		Msg("cluster consolidated")
	return rec, nil
}

// History lists past consolidations, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]model.Consolidation, error) {
	return e.store.ListConsolidations(ctx, limit)
}

// topicLabel picks the most frequent member tag, falling back to the
// leading words of the most important member.
func topicLabel(members []model.Memory) string {
	counts := map[string]int{}
	var order []string
	for _, m := range members {
		for _, t := range m.Tags {
			if t == "consolidated" {
				continue
			}
			if counts[t] == 0 {
				order = append(order, t)
			}
			counts[t]++
		}
	}
	best, bestCount := "", 0
	for _, t := range order {
		if counts[t] > bestCount {
			best, bestCount = t, counts[t]
		}
	}
	if best != "" {
		return best
	}

	top := members[0]
	for _, m := range members[1:] {
		if m.Importance > top.Importance {
			top = m
		}
	}
	words := strings.Fields(top.Content)
	if len(words) > 4 {
		words = words[:4]
	}
	return strings.ToLower(strings.Join(words, " "))
}

func avgPairwise(members []model.Memory) float64 {
	if len(members) < 2 {
		return 1
	}
	var sum float64
	n := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sum += embedding.CosineSimilarity(members[i].Embedding, members[j].Embedding)
			n++
		}
	}
	return sum / float64(n)
}

// sortByImportance orders members by importance then recency, the
// order extractive summaries quote them in.
func sortByImportance(members []model.Memory) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Importance != members[j].Importance {
			return members[i].Importance > members[j].Importance
		}
		return members[i].CreatedAt.After(members[j].CreatedAt)
	})
}
