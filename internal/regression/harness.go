// Package regression drives the retrieval engine against a fixed set
// of golden queries and compares rankings to stored baselines to
// detect retrieval-quality regressions.
package regression

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/canon"
	"github.com/tkuo/mnemo/internal/search"
	"github.com/tkuo/mnemo/internal/store"
)

const (
	// DefaultTopK is the ranking depth compared per query.
	DefaultTopK = 10
	// DefaultMinOverlap is the overlap@10 floor below which a query
	// regresses.
	DefaultMinOverlap = 0.7
	// DefaultMaxShift is the mean rank shift ceiling.
	DefaultMaxShift = 2.0
)

// Params configures a regression run.
type Params struct {
	TopK           int
	MinOverlap     float64 // <=0 means use setting / default
	MaxShift       float64 // <=0 means use setting / default
	SuppressAlert  bool
	UpdateBaseline bool
}

// QueryResult is the comparison outcome for one golden query.
type QueryResult struct {
	Query     string  `json:"query"`
	Overlap   float64 `json:"overlap"`
	RankShift float64 `json:"rank_shift"`
	Seeded    bool    `json:"seeded,omitempty"`
	Regressed bool    `json:"regressed,omitempty"`
}

// Result is the outcome of a full regression run.
type Result struct {
	Queries    []QueryResult `json:"queries"`
	AvgOverlap float64       `json:"avg_overlap"`
	AvgShift   float64       `json:"avg_shift"`
	Alert      bool          `json:"alert"`
	AlertID    string        `json:"alert_memory_id,omitempty"`
}

// Harness runs golden queries through the retrieval engine. Aside
// from the optional alert memory and its counter increments, a run is
// a pure measurement.
type Harness struct {
	store  *store.SQLiteStore
	engine *search.Engine
	log    zerolog.Logger
}

// NewHarness returns a regression harness over the given engine.
func NewHarness(s *store.SQLiteStore, e *search.Engine, log zerolog.Logger) *Harness {
	return &Harness{store: s, engine: e, log: log}
}

// Run executes every golden query, compares top-K id sets against
// baselines via overlap@10 and average rank shift, and alerts when
// either threshold is crossed. Queries without a baseline are seeded
// from the current ranking and not compared.
func (h *Harness) Run(ctx context.Context, p Params) (*Result, error) {
	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	minOverlap, err := h.threshold(ctx, store.SettingMinOverlap, p.MinOverlap, DefaultMinOverlap)
	if err != nil {
		return nil, err
	}
	maxShift, err := h.threshold(ctx, store.SettingMaxShift, p.MaxShift, DefaultMaxShift)
	if err != nil {
		return nil, err
	}

	golden, err := h.store.ListGoldenQueries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list golden queries: %w", err)
	}
	if len(golden) == 0 {
		return nil, fmt.Errorf("no golden queries configured")
	}

	result := &Result{}
	compared := 0
	for _, g := range golden {
		results, err := h.engine.Search(ctx, search.Params{Query: g.Query, Limit: topK})
		if err != nil {
			return nil, fmt.Errorf("golden query %q: %w", g.Query, err)
		}
		current := make([]string, len(results))
		for i, r := range results {
			current[i] = r.Memory.ID
		}

		if len(g.Baseline) == 0 || p.UpdateBaseline {
			if err := h.store.SetGoldenBaseline(ctx, g.Query, current); err != nil {
				return nil, fmt.Errorf("seed baseline for %q: %w", g.Query, err)
			}
			result.Queries = append(result.Queries, QueryResult{Query: g.Query, Seeded: true})
			continue
		}

		overlap := overlapAtK(g.Baseline, current, topK)
		shift := rankShift(g.Baseline, current)
		regressed := overlap < minOverlap || shift > maxShift

		result.Queries = append(result.Queries, QueryResult{
			Query: g.Query, Overlap: overlap, RankShift: shift, Regressed: regressed,
		})
		result.AvgOverlap += overlap
		result.AvgShift += shift
		compared++
		if regressed {
			result.Alert = true
		}
	}
	if compared > 0 {
		result.AvgOverlap /= float64(compared)
		result.AvgShift /= float64(compared)
	} else {
		result.AvgOverlap = 1
	}

	if err := h.store.IncrCounter(ctx, store.CounterRegressionRuns, 1); err != nil {
		h.log.Debug().Err(err).Msg("run counter increment failed")
	}

	if result.Alert {
		if err := h.store.IncrCounter(ctx, store.CounterRegressionAlerts, 1); err != nil {
			h.log.Debug().Err(err).Msg("alert counter increment failed")
		}
		if !p.SuppressAlert {
			id, err := h.writeAlertMemory(ctx, result)
			if err != nil {
				h.log.Warn().Err(err).Msg("alert memory write failed")
			} else {
				result.AlertID = id
			}
		}
		h.log.Warn().
			Float64("avg_overlap", result.AvgOverlap).
			Float64("avg_shift", result.AvgShift).
			Msg("retrieval regression detected")
	}

	return result, nil
}

// overlapAtK is the fraction of baseline top-K ids still present in
// the current top-K.
func overlapAtK(baseline, current []string, k int) float64 {
	if len(baseline) > k {
		baseline = baseline[:k]
	}
	if len(current) > k {
		current = current[:k]
	}
	if len(baseline) == 0 {
		return 1
	}
	in := make(map[string]bool, len(current))
	for _, id := range current {
		in[id] = true
	}
	hits := 0
	for _, id := range baseline {
		if in[id] {
			hits++
		}
	}
	return float64(hits) / float64(len(baseline))
}

// rankShift is the mean absolute rank change for ids present in both
// rankings.
func rankShift(baseline, current []string) float64 {
	pos := make(map[string]int, len(current))
	for i, id := range current {
		pos[id] = i
	}
	var sum float64
	n := 0
	for i, id := range baseline {
		if j, ok := pos[id]; ok {
			sum += math.Abs(float64(i - j))
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func (h *Harness) writeAlertMemory(ctx context.Context, r *Result) (string, error) {
	var regressed []string
	for _, q := range r.Queries {
		if q.Regressed {
			regressed = append(regressed, fmt.Sprintf("%q (overlap %.2f, shift %.2f)", q.Query, q.Overlap, q.RankShift))
		}
	}
	content := fmt.Sprintf("Retrieval regression detected at %s: %s. Average overlap %.2f, average rank shift %.2f.",
		time.Now().UTC().Format(time.RFC3339), strings.Join(regressed, "; "), r.AvgOverlap, r.AvgShift)

	normalize, err := canon.NormalizeWhitespaceSetting(ctx, h.store)
	if err != nil {
		return "", err
	}
	m, err := h.store.InsertMemory(ctx, store.InsertParams{
		Content:     content,
		ContentType: "note",
		Source:      "regression-harness",
		Importance:  0.9,
		ContentHash: canon.ContentHash(content, normalize),
		Tags:        []string{"regression-alert"},
	})
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

// threshold resolves a threshold: explicit param, then setting, then
// default. A malformed setting is a read-path error, surfaced the
// same way on dry and real runs.
func (h *Harness) threshold(ctx context.Context, key string, explicit, fallback float64) (float64, error) {
	if explicit > 0 {
		return explicit, nil
	}
	raw, err := h.store.GetSetting(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed setting %s=%q: %w", key, raw, err)
	}
	return v, nil
}
