package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tkuo/mnemo/internal/model"
)

// InsertParams holds parameters for storing a memory. Content, tags,
// and hash are expected to be canonicalized by the caller already.
type InsertParams struct {
	Content     string
	ContentType string
	Source      string
	Importance  float64
	ContentHash string
	IsMetadata  bool
	Embedding   []float32
	Tags        []string
}

// InsertMemory stores a new memory and returns it.
func (s *SQLiteStore) InsertMemory(ctx context.Context, p InsertParams) (*model.Memory, error) {
	if p.ContentType == "" {
		p.ContentType = "note"
	}
	if !model.ValidContentTypes[p.ContentType] {
		return nil, fmt.Errorf("invalid content type %q", p.ContentType)
	}
	if p.Importance < 0 || p.Importance > 1 {
		return nil, fmt.Errorf("importance %v out of range [0,1]", p.Importance)
	}

	// Dedup is observational: a hash already held by an active memory
	// increments the counter and the insert still proceeds. The count
	// is best-effort; it never blocks the write.
	if p.ContentHash != "" {
		if n, err := s.CountByHash(ctx, p.ContentHash); err == nil && n > 0 {
			s.IncrCounter(ctx, CounterDedupSkipped, 1)
		}
	}

	now := time.Now().UTC()
	id := s.NewID()

	var tagsJSON *string
	if len(p.Tags) > 0 {
		b, _ := json.Marshal(p.Tags)
		t := string(b)
		tagsJSON = &t
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, content_type, source, importance, access_count,
		                       created_at, updated_at, is_active, is_metadata, content_hash, embedding, tags)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?, 1, ?, ?, ?, ?)`,
		id, p.Content, p.ContentType, nullable(p.Source), p.Importance,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
		boolInt(p.IsMetadata), nullable(p.ContentHash), encodeVector(p.Embedding), tagsJSON)
	if err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}

	return &model.Memory{
		ID:          id,
		Content:     p.Content,
		ContentType: p.ContentType,
		Source:      p.Source,
		Importance:  p.Importance,
		CreatedAt:   now,
		UpdatedAt:   now,
		IsActive:    true,
		IsMetadata:  p.IsMetadata,
		ContentHash: p.ContentHash,
		Embedding:   p.Embedding,
		Tags:        p.Tags,
	}, nil
}

// GetMemory returns a memory by id, or nil when it does not exist.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*model.Memory, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memoryCols+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountByHash returns how many active memories share a content hash.
func (s *SQLiteStore) CountByHash(ctx context.Context, hash string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE content_hash = ? AND is_active = 1`, hash).Scan(&n)
	return n, err
}

// ListParams holds filters for listing memories.
type ListParams struct {
	Tags        []string
	ContentType string
	After       time.Time
	Before      time.Time
	ActiveOnly  bool
	WithVectors bool
	Limit       int
}

// ListMemories lists memories matching the filters, newest first.
func (s *SQLiteStore) ListMemories(ctx context.Context, p ListParams) ([]model.Memory, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	where := []string{"1=1"}
	var args []interface{}

	if p.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if p.ContentType != "" {
		where = append(where, "content_type = ?")
		args = append(args, p.ContentType)
	}
	if !p.After.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, p.After.UTC().Format(time.RFC3339))
	}
	if !p.Before.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, p.Before.UTC().Format(time.RFC3339))
	}
	for _, tag := range p.Tags {
		where = append(where, "tags LIKE ?")
		args = append(args, "%\""+tag+"\"%")
	}

	query := fmt.Sprintf(`SELECT `+memoryCols+` FROM memories WHERE %s ORDER BY created_at DESC, id DESC LIMIT ?`,
		strings.Join(where, " AND "))
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
		if !p.WithVectors {
			m.Embedding = nil
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// UpdateCanonical rewrites the derived canonical fields of a memory.
// Used by backfill; content itself is never rewritten.
func (s *SQLiteStore) UpdateCanonical(ctx context.Context, id, hash string, tags []string, isMetadata bool) error {
	var tagsJSON *string
	if len(tags) > 0 {
		b, _ := json.Marshal(tags)
		t := string(b)
		tagsJSON = &t
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET content_hash = ?, tags = ?, is_metadata = ?, updated_at = ? WHERE id = ?`,
		nullable(hash), tagsJSON, boolInt(isMetadata), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// SetEmbedding stores the embedding vector for a memory.
func (s *SQLiteStore) SetEmbedding(ctx context.Context, id string, v []float32) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET embedding = ?, updated_at = ? WHERE id = ?`,
		encodeVector(v), time.Now().UTC().Format(time.RFC3339), id)
	return err
}

// DeactivateMemory soft-deletes a memory. Returns false when the id
// does not exist or is already inactive.
func (s *SQLiteStore) DeactivateMemory(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE memories SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecordAccess bumps access_count and logs the query association.
func (s *SQLiteStore) RecordAccess(ctx context.Context, memoryID, query string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1 WHERE id = ?`, memoryID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retrieval_log (memory_id, query, accessed_at) VALUES (?, ?, ?)`,
		memoryID, query, now)
	return err
}

const memoryCols = `id, content, content_type, source, importance, access_count,
	created_at, updated_at, is_active, is_metadata, content_hash, embedding, tags`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row scanner) (model.Memory, error) {
	var m model.Memory
	var source, hash, tagsJSON sql.NullString
	var createdAt, updatedAt string
	var isActive, isMetadata int
	var embedding []byte

	err := row.Scan(
		&m.ID, &m.Content, &m.ContentType, &source, &m.Importance, &m.AccessCount,
		&createdAt, &updatedAt, &isActive, &isMetadata, &hash, &embedding, &tagsJSON,
	)
	if err != nil {
		return m, err
	}

	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	m.IsActive = isActive != 0
	m.IsMetadata = isMetadata != 0
	if source.Valid {
		m.Source = source.String
	}
	if hash.Valid {
		m.ContentHash = hash.String
	}
	if tagsJSON.Valid {
		json.Unmarshal([]byte(tagsJSON.String), &m.Tags)
	}
	m.Embedding = decodeVector(embedding)

	return m, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
