// Package search implements hybrid retrieval: candidates from the
// store are ranked by a fused score over semantic similarity, keyword
// overlap, recency, and access frequency.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/embedding"
	"github.com/tkuo/mnemo/internal/model"
	"github.com/tkuo/mnemo/internal/store"
)

const (
	// MaxLimit caps how many results one search may return.
	MaxLimit     = 50
	defaultLimit = 10
	// defaultCandidatePool bounds how many memories (newest first) are
	// pulled for scoring when search.candidate_pool is unset.
	defaultCandidatePool = 500

	recencyHalfLifeDays = 30
	metadataPenalty     = 0.5
)

// Weights control score fusion. They are a configuration surface
// (search.weights setting), not a hard-coded constant.
type Weights struct {
	Semantic  float64 `json:"semantic"`
	Keyword   float64 `json:"keyword"`
	Recency   float64 `json:"recency"`
	Frequency float64 `json:"frequency"`
}

// DefaultWeights mirror the composite used for context assembly,
// shifted toward the semantic signal.
var DefaultWeights = Weights{Semantic: 0.45, Keyword: 0.25, Recency: 0.15, Frequency: 0.15}

// Params holds search filters.
type Params struct {
	Query       string
	Tags        []string
	ContentType string
	After       time.Time
	Before      time.Time
	Limit       int
}

// Result is a scored memory; higher scores are more relevant.
type Result struct {
	Memory model.Memory `json:"memory"`
	Score  float64      `json:"score"`
}

// Engine ranks memories for a query. The embedder may be nil, in
// which case the semantic signal contributes zero.
type Engine struct {
	store    *store.SQLiteStore
	embedder embedding.Embedder
	log      zerolog.Logger
}

// NewEngine returns a retrieval engine over the given store.
func NewEngine(s *store.SQLiteStore, e embedding.Embedder, log zerolog.Logger) *Engine {
	return &Engine{store: s, embedder: e, log: log}
}

// Search returns the top memories for the query, ordered by fused
// score descending, ties broken most-recent-first. Each returned
// result has its access recorded best-effort; a recording failure
// never fails or alters the returned results.
func (e *Engine) Search(ctx context.Context, p Params) ([]Result, error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > MaxLimit {
		return nil, fmt.Errorf("limit %d exceeds maximum %d", p.Limit, MaxLimit)
	}
	if !p.After.IsZero() && !p.Before.IsZero() && p.Before.Before(p.After) {
		return nil, fmt.Errorf("date range end precedes start")
	}

	mode, err := e.metadataMode(ctx)
	if err != nil {
		return nil, err
	}
	weights := e.loadWeights(ctx)

	candidates, err := e.store.ListMemories(ctx, store.ListParams{
		Tags:        p.Tags,
		ContentType: p.ContentType,
		After:       p.After,
		Before:      p.Before,
		ActiveOnly:  true,
		WithVectors: true,
		Limit:       e.loadCandidatePool(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	if mode == "exclude" {
		var kept []model.Memory
		excluded := 0
		for _, m := range candidates {
			if m.IsMetadata {
				excluded++
				continue
			}
			kept = append(kept, m)
		}
		candidates = kept
		if excluded > 0 {
			if err := e.store.IncrCounter(ctx, store.CounterMetadataExcluded, 1); err != nil {
				e.log.Debug().Err(err).Msg("excluded counter increment failed")
			}
		}
	}

	var queryVec embedding.Vector
	if e.embedder != nil {
		queryVec, err = e.embedder.Embed(ctx, p.Query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}
	queryTerms := tokenize(p.Query)

	now := time.Now()
	results := make([]Result, 0, len(candidates))
	penalized := false
	for _, m := range candidates {
		score := e.fuse(weights, queryVec, queryTerms, m, now)
		if mode == "penalize" && m.IsMetadata {
			score *= metadataPenalty
			penalized = true
		}
		results = append(results, Result{Memory: m, Score: score})
	}
	if penalized {
		if err := e.store.IncrCounter(ctx, store.CounterMetadataPenalized, 1); err != nil {
			e.log.Debug().Err(err).Msg("penalized counter increment failed")
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if !results[i].Memory.CreatedAt.Equal(results[j].Memory.CreatedAt) {
			return results[i].Memory.CreatedAt.After(results[j].Memory.CreatedAt)
		}
		return results[i].Memory.ID > results[j].Memory.ID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Memory.Embedding = nil
	}

	for _, r := range results {
		if err := e.store.RecordAccess(ctx, r.Memory.ID, p.Query); err != nil {
			e.log.Debug().Str("memory", r.Memory.ID).Err(err).Msg("access recording failed")
		}
	}

	return results, nil
}

// fuse combines the four retrieval signals into one score.
func (e *Engine) fuse(w Weights, queryVec embedding.Vector, queryTerms []string, m model.Memory, now time.Time) float64 {
	semantic := 0.0
	if len(queryVec) > 0 && len(m.Embedding) > 0 {
		semantic = embedding.CosineSimilarity(queryVec, m.Embedding)
		if semantic < 0 {
			semantic = 0
		}
	}

	keyword := keywordOverlap(queryTerms, m)

	// Exponential decay with a 30-day half-life.
	age := now.Sub(m.CreatedAt).Hours() / 24.0
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-math.Ln2 * age / recencyHalfLifeDays)

	// Access frequency on a log scale, blended with importance.
	accessFreq := 0.0
	if m.AccessCount > 0 {
		accessFreq = math.Log(float64(m.AccessCount)+1) / math.Log(100)
		if accessFreq > 1 {
			accessFreq = 1
		}
	}
	frequency := 0.6*m.Importance + 0.4*accessFreq

	return w.Semantic*semantic + w.Keyword*keyword + w.Recency*recency + w.Frequency*frequency
}

var termToken = regexp.MustCompile(`[a-z0-9]+`)

func tokenize(s string) []string {
	return termToken.FindAllString(strings.ToLower(s), -1)
}

// keywordOverlap is the fraction of query terms present in the
// memory's content or tags.
func keywordOverlap(queryTerms []string, m model.Memory) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	haystack := strings.ToLower(m.Content)
	tags := strings.ToLower(strings.Join(m.Tags, " "))
	hits := 0
	for _, t := range queryTerms {
		if strings.Contains(haystack, t) || strings.Contains(tags, t) {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}

func (e *Engine) metadataMode(ctx context.Context) (string, error) {
	mode, err := e.store.GetSetting(ctx, store.SettingMetadataMode)
	if err != nil {
		return "", err
	}
	switch mode {
	case "", "include":
		return "include", nil
	case "exclude", "penalize":
		return mode, nil
	default:
		return "", fmt.Errorf("malformed setting %s=%q", store.SettingMetadataMode, mode)
	}
}

// loadCandidatePool parses the search.candidate_pool setting, the
// scoring scan bound. Candidates beyond the pool (oldest first) are
// never scored. Falls back to the default when unset or malformed.
func (e *Engine) loadCandidatePool(ctx context.Context) int {
	raw, err := e.store.GetSetting(ctx, store.SettingCandidatePool)
	if err != nil || strings.TrimSpace(raw) == "" {
		return defaultCandidatePool
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		e.log.Warn().Str("value", raw).Msg("malformed candidate pool, using default")
		return defaultCandidatePool
	}
	return n
}

// loadWeights parses the search.weights setting, falling back to the
// defaults when unset or malformed.
func (e *Engine) loadWeights(ctx context.Context) Weights {
	raw, err := e.store.GetSetting(ctx, store.SettingSearchWeights)
	if err != nil || strings.TrimSpace(raw) == "" {
		return DefaultWeights
	}
	var w Weights
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		e.log.Warn().Err(err).Msg("malformed search weights, using defaults")
		return DefaultWeights
	}
	if w.Semantic+w.Keyword+w.Recency+w.Frequency <= 0 {
		return DefaultWeights
	}
	return w
}
