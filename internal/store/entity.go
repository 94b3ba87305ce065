package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tkuo/mnemo/internal/model"
)

// UpsertEntity creates an entity or returns the existing one with the
// same (name, type).
func (s *SQLiteStore) UpsertEntity(ctx context.Context, name, typ string, aliases []string) (*model.Entity, error) {
	if !model.ValidEntityTypes[typ] {
		return nil, fmt.Errorf("invalid entity type %q", typ)
	}

	var existing model.Entity
	var aliasJSON sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, aliases, created_at, updated_at FROM entities WHERE name = ? AND type = ?`,
		name, typ).Scan(&existing.ID, &existing.Name, &existing.Type, &aliasJSON, &createdAt, &updatedAt)
	if err == nil {
		existing.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		existing.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if aliasJSON.Valid {
			json.Unmarshal([]byte(aliasJSON.String), &existing.Aliases)
		}
		return &existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	now := time.Now().UTC()
	id := s.NewID()
	var aliasesPtr *string
	if len(aliases) > 0 {
		b, _ := json.Marshal(aliases)
		a := string(b)
		aliasesPtr = &a
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (id, name, type, aliases, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, typ, aliasesPtr, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert entity: %w", err)
	}

	return &model.Entity{ID: id, Name: name, Type: typ, Aliases: aliases, CreatedAt: now, UpdatedAt: now}, nil
}

// GetEntity returns an entity by id, or nil when it does not exist.
func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	var e model.Entity
	var aliasJSON, metaJSON sql.NullString
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, aliases, metadata, created_at, updated_at FROM entities WHERE id = ?`,
		id).Scan(&e.ID, &e.Name, &e.Type, &aliasJSON, &metaJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	if aliasJSON.Valid {
		json.Unmarshal([]byte(aliasJSON.String), &e.Aliases)
	}
	if metaJSON.Valid {
		json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
	}
	return &e, nil
}

// ListEntities lists entities, optionally filtered by type.
func (s *SQLiteStore) ListEntities(ctx context.Context, typ string, limit int) ([]model.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, name, type, aliases, metadata, created_at, updated_at FROM entities`
	var args []interface{}
	if typ != "" {
		query += ` WHERE type = ?`
		args = append(args, typ)
	}
	query += ` ORDER BY name LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entities []model.Entity
	for rows.Next() {
		var e model.Entity
		var aliasJSON, metaJSON sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.Type, &aliasJSON, &metaJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		if aliasJSON.Valid {
			json.Unmarshal([]byte(aliasJSON.String), &e.Aliases)
		}
		if metaJSON.Valid {
			json.Unmarshal([]byte(metaJSON.String), &e.Metadata)
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// LinkEntity associates an entity with a memory. Re-linking the same
// pair is a no-op.
func (s *SQLiteStore) LinkEntity(ctx context.Context, memoryID, entityID string, relevance float64) error {
	if relevance < 0 || relevance > 1 {
		return fmt.Errorf("relevance %v out of range [0,1]", relevance)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO memory_entities (memory_id, entity_id, relevance) VALUES (?, ?, ?)`,
		memoryID, entityID, relevance)
	return err
}

// CoOccurrence is an unordered entity pair with shared-memory stats.
type CoOccurrence struct {
	EntityA          string `json:"entity_a"`
	EntityB          string `json:"entity_b"`
	SharedMemories   int    `json:"shared_memories"`
	EarliestMemoryID string `json:"earliest_memory_id"`
}

// CoOccurringPairs returns unordered entity pairs linked to the same
// memories at least minShared times, with no relationship recorded in
// either direction, ordered by shared count descending.
func (s *SQLiteStore) CoOccurringPairs(ctx context.Context, minShared, limit int) ([]CoOccurrence, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.entity_id, b.entity_id, COUNT(DISTINCT a.memory_id) AS shared, MIN(a.memory_id) AS earliest
		FROM memory_entities a
		JOIN memory_entities b ON a.memory_id = b.memory_id AND a.entity_id < b.entity_id
		WHERE NOT EXISTS (
			SELECT 1 FROM entity_relationships r
			WHERE (r.source_entity_id = a.entity_id AND r.target_entity_id = b.entity_id)
			   OR (r.source_entity_id = b.entity_id AND r.target_entity_id = a.entity_id)
		)
		GROUP BY a.entity_id, b.entity_id
		HAVING shared >= ?
		ORDER BY shared DESC, a.entity_id, b.entity_id
		LIMIT ?`, minShared, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []CoOccurrence
	for rows.Next() {
		var p CoOccurrence
		if err := rows.Scan(&p.EntityA, &p.EntityB, &p.SharedMemories, &p.EarliestMemoryID); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// CreateRelationship records an undirected relationship between two
// entities. The pair is stored smallest-id-first so the UNIQUE
// constraint rejects a duplicate in either direction.
func (s *SQLiteStore) CreateRelationship(ctx context.Context, sourceID, targetID, rel string, confidence float64, evidenceMemoryID string) (*model.EntityRelationship, error) {
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of range [0,1]", confidence)
	}
	if sourceID == targetID {
		return nil, fmt.Errorf("self-relationship not allowed")
	}
	if sourceID > targetID {
		sourceID, targetID = targetID, sourceID
	}

	now := time.Now().UTC()
	id := s.NewID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entity_relationships (id, source_entity_id, target_entity_id, relationship, confidence, evidence_memory_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, sourceID, targetID, rel, confidence, nullable(evidenceMemoryID), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert relationship: %w", err)
	}

	return &model.EntityRelationship{
		ID: id, SourceEntityID: sourceID, TargetEntityID: targetID,
		Relationship: rel, Confidence: confidence,
		EvidenceMemoryID: evidenceMemoryID, CreatedAt: now,
	}, nil
}

// CountRelationships returns the total persisted relationship count.
func (s *SQLiteStore) CountRelationships(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_relationships`).Scan(&n)
	return n, err
}

// ListRelationships returns relationships involving an entity, or all
// when entityID is empty.
func (s *SQLiteStore) ListRelationships(ctx context.Context, entityID string, limit int) ([]model.EntityRelationship, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, source_entity_id, target_entity_id, relationship, confidence, evidence_memory_id, created_at
	          FROM entity_relationships`
	var args []interface{}
	if entityID != "" {
		query += ` WHERE source_entity_id = ? OR target_entity_id = ?`
		args = append(args, entityID, entityID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []model.EntityRelationship
	for rows.Next() {
		var r model.EntityRelationship
		var evidence sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.Relationship, &r.Confidence, &evidence, &createdAt); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		if evidence.Valid {
			r.EvidenceMemoryID = evidence.String
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
