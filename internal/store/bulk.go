package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tkuo/mnemo/internal/model"
)

// ExportAll returns every memory, active and inactive, oldest first.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memoryCols+` FROM memories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// ImportResult reports a bulk import: per-item failures are collected
// and counted, the batch never aborts on the first error.
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Import inserts exported memories, preserving ids and timestamps.
// Existing ids are skipped. Run a backfill afterwards to repair
// derived fields.
func (s *SQLiteStore) Import(ctx context.Context, memories []model.Memory) (*ImportResult, error) {
	result := &ImportResult{}
	for _, m := range memories {
		if m.ID == "" || m.Content == "" {
			result.Failed++
			if len(result.Errors) < maxImportErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: missing id or content", m.ID))
			}
			continue
		}
		if m.ContentType == "" {
			m.ContentType = "note"
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now().UTC()
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = m.CreatedAt
		}

		var tagsJSON *string
		if len(m.Tags) > 0 {
			b, _ := json.Marshal(m.Tags)
			t := string(b)
			tagsJSON = &t
		}

		res, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO memories (id, content, content_type, source, importance, access_count,
			                                 created_at, updated_at, is_active, is_metadata, content_hash, embedding, tags)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.Content, m.ContentType, nullable(m.Source), m.Importance, m.AccessCount,
			m.CreatedAt.UTC().Format(time.RFC3339), m.UpdatedAt.UTC().Format(time.RFC3339),
			boolInt(m.IsActive), boolInt(m.IsMetadata), nullable(m.ContentHash),
			encodeVector(m.Embedding), tagsJSON)
		if err != nil {
			result.Failed++
			if len(result.Errors) < maxImportErrors {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", m.ID, err))
			}
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			result.Skipped++
			continue
		}
		result.Imported++
	}
	return result, nil
}

const maxImportErrors = 10
