package canon

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/tkuo/mnemo/internal/store"
)

const (
	// DefaultBackfillLimit bounds one backfill scan.
	DefaultBackfillLimit = 10000
	maxErrorSamples      = 10
)

// BackfillParams configures a backfill run.
type BackfillParams struct {
	Limit  int
	DryRun bool
}

// BackfillResult reports what a run scanned and changed. A dry run
// reports the same counts as a real run without persisting.
type BackfillResult struct {
	Scanned int      `json:"scanned"`
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	DryRun  bool     `json:"dry_run,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Backfiller recomputes derived canonical fields over stored memories.
type Backfiller struct {
	store *store.SQLiteStore
	log   zerolog.Logger
}

// NewBackfiller returns a backfiller over the given store.
func NewBackfiller(s *store.SQLiteStore, log zerolog.Logger) *Backfiller {
	return &Backfiller{store: s, log: log}
}

// Run scans up to Limit memories and recomputes content hash, tag
// canonical forms, and the metadata flag. Per-item failures are
// collected and the scan continues. Idempotent: a second run over
// unchanged data reports zero updates, so re-running after a failure
// is the recovery path.
func (b *Backfiller) Run(ctx context.Context, p BackfillParams) (*BackfillResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	normalize, err := NormalizeWhitespaceSetting(ctx, b.store)
	if err != nil {
		return nil, err
	}
	aliasJSON, err := b.store.GetSetting(ctx, store.SettingTagAliases)
	if err != nil {
		return nil, err
	}
	aliases := LoadAliases(aliasJSON)

	memories, err := b.store.ListMemories(ctx, store.ListParams{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("scan memories: %w", err)
	}

	result := &BackfillResult{DryRun: p.DryRun}
	for _, m := range memories {
		result.Scanned++

		hash := ContentHash(m.Content, normalize)
		tags := NormalizeTags(m.Tags, aliases)
		if len(tags) == 0 {
			tags = AutoTags(m.Content)
		}
		isMetadata := IsMetadataContent(m.Content)

		if hash == m.ContentHash && equalTags(tags, m.Tags) && isMetadata == m.IsMetadata {
			continue
		}

		result.Updated++
		if p.DryRun {
			continue
		}
		if err := b.store.UpdateCanonical(ctx, m.ID, hash, tags, isMetadata); err != nil {
			result.Updated--
			result.Failed++
			if len(result.Errors) < maxErrorSamples {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID, err))
			}
			b.log.Warn().Str("memory", m.ID).Err(err).Msg("backfill update failed")
		}
	}

	b.log.Info().
		Int("scanned", result.Scanned).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Bool("dry_run", p.DryRun).
		Msg("backfill complete")
	return result, nil
}

// NormalizeWhitespaceSetting reads the hash-normalization toggle
// (default true). Shared by every path that computes a content hash,
// so dedup semantics stay stable across ingest, consolidation, and
// backfill. A malformed value is surfaced, not guessed.
func NormalizeWhitespaceSetting(ctx context.Context, s *store.SQLiteStore) (bool, error) {
	v, err := s.GetSetting(ctx, store.SettingNormalizeWhitespace)
	if err != nil {
		return false, err
	}
	if v == "" {
		return true, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("malformed setting %s=%q: %w", store.SettingNormalizeWhitespace, v, err)
	}
	return parsed, nil
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
