// Package graph infers missing entity relationships from observed
// co-occurrence: entities repeatedly linked to the same memories get
// a "co-occurs" edge.
package graph

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/store"
)

const (
	// DefaultMinShared is the minimum distinct shared memories for a
	// pair to qualify.
	DefaultMinShared = 2
	// DefaultLimit bounds pairs processed in one run.
	DefaultLimit = 500

	coOccursLabel = "co-occurs"
)

// Params configures a densify run.
type Params struct {
	MinShared int
	Limit     int
	DryRun    bool
}

// Result reports what a run analyzed and created. Dry runs report the
// identical counts without writing.
type Result struct {
	PairsAnalyzed        int  `json:"pairs_analyzed"`
	RelationshipsCreated int  `json:"relationships_created"`
	DryRun               bool `json:"dry_run,omitempty"`
}

// Densifier creates co-occurrence relationships.
type Densifier struct {
	store *store.SQLiteStore
	log   zerolog.Logger
}

// NewDensifier returns a densifier over the given store.
func NewDensifier(s *store.SQLiteStore, log zerolog.Logger) *Densifier {
	return &Densifier{store: s, log: log}
}

// Confidence maps a shared-memory count to edge confidence: linear in
// the count, floored at 0.3, capped at 0.9.
func Confidence(shared int) float64 {
	c := 0.3 + float64(shared)/10*0.6
	if c > 0.9 {
		c = 0.9
	}
	return c
}

// Run scans co-occurring entity pairs and creates a relationship for
// each pair with enough shared memories and no existing edge in
// either direction. Evidence is the chronologically earliest shared
// memory. Pairs are processed by shared count descending.
func (d *Densifier) Run(ctx context.Context, p Params) (*Result, error) {
	minShared := p.MinShared
	if minShared <= 0 {
		minShared = DefaultMinShared
	}
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	pairs, err := d.store.CoOccurringPairs(ctx, minShared, limit)
	if err != nil {
		return nil, fmt.Errorf("scan co-occurrence: %w", err)
	}

	result := &Result{DryRun: p.DryRun}
	for _, pair := range pairs {
		result.PairsAnalyzed++
		if p.DryRun {
			result.RelationshipsCreated++
			continue
		}
		_, err := d.store.CreateRelationship(ctx,
			pair.EntityA, pair.EntityB, coOccursLabel,
			Confidence(pair.SharedMemories), pair.EarliestMemoryID)
		if err != nil {
			return result, fmt.Errorf("create relationship %s<->%s: %w", pair.EntityA, pair.EntityB, err)
		}
		result.RelationshipsCreated++
	}

	d.log.Info().
		Int("pairs_analyzed", result.PairsAnalyzed).
		Int("relationships_created", result.RelationshipsCreated).
		Bool("dry_run", p.DryRun).
		Msg("densify complete")
	return result, nil
}
