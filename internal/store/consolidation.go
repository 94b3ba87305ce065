package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tkuo/mnemo/internal/model"
)

// ConsolidateParams describes one cluster merge.
type ConsolidateParams struct {
	MemberIDs   []string
	Summary     string
	Topic       string
	Strategy    string
	Tags        []string
	Importance  float64
	ContentHash string
	Embedding   []float32
}

// Consolidate deactivates the member memories, inserts the summary
// memory, and writes the audit record in one transaction. A partial
// merge is never observable.
func (s *SQLiteStore) Consolidate(ctx context.Context, p ConsolidateParams) (*model.Consolidation, error) {
	if len(p.MemberIDs) == 0 {
		return nil, fmt.Errorf("empty cluster")
	}
	if p.Strategy == "" {
		p.Strategy = "extractive"
	}

	now := time.Now().UTC()
	summaryID := s.NewID()
	auditID := s.NewID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, id := range p.MemberIDs {
		res, err := tx.ExecContext(ctx,
			`UPDATE memories SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
			now.Format(time.RFC3339), id)
		if err != nil {
			return nil, fmt.Errorf("deactivate member %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("member %s not active", id)
		}
	}

	var tagsJSON *string
	if len(p.Tags) > 0 {
		b, _ := json.Marshal(p.Tags)
		t := string(b)
		tagsJSON = &t
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO memories (id, content, content_type, source, importance, access_count,
		                       created_at, updated_at, is_active, is_metadata, content_hash, embedding, tags)
		 VALUES (?, ?, 'summary', ?, ?, 0, ?, ?, 1, 0, ?, ?, ?)`,
		summaryID, p.Summary, nullable("consolidation:"+p.Topic), p.Importance,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
		nullable(p.ContentHash), encodeVector(p.Embedding), tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO consolidations (id, strategy, memories_merged, summary_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		auditID, p.Strategy, len(p.MemberIDs), summaryID, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert audit record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &model.Consolidation{
		ID:             auditID,
		Strategy:       p.Strategy,
		MemoriesMerged: len(p.MemberIDs),
		SummaryID:      summaryID,
		CreatedAt:      now,
	}, nil
}

// ListConsolidations returns the audit history, newest first.
func (s *SQLiteStore) ListConsolidations(ctx context.Context, limit int) ([]model.Consolidation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, strategy, memories_merged, summary_id, created_at
		 FROM consolidations ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Consolidation
	for rows.Next() {
		var c model.Consolidation
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Strategy, &c.MemoriesMerged, &c.SummaryID, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}
