// Package store provides SQLite persistence for memories, entities,
// relationships, consolidations, settings, and counters.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the single shared store for one database path.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// WAL journaling, foreign keys, and a bounded busy wait are set via
// DSN pragmas so long writes queue instead of failing on contention.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID returns a fresh ULID. Make uses a locked monotonic source, so
// ids minted in the same millisecond still sort in creation order,
// which evidence selection and tie-breaking depend on.
func (s *SQLiteStore) NewID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id            TEXT PRIMARY KEY,
		content       TEXT NOT NULL,
		content_type  TEXT NOT NULL DEFAULT 'note',
		source        TEXT,
		importance    REAL NOT NULL DEFAULT 0.5,
		access_count  INTEGER NOT NULL DEFAULT 0,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL,
		is_active     INTEGER NOT NULL DEFAULT 1,
		is_metadata   INTEGER NOT NULL DEFAULT 0,
		content_hash  TEXT,
		embedding     BLOB,
		tags          TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_active ON memories(is_active, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_hash ON memories(content_hash);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(content_type);

	CREATE TABLE IF NOT EXISTS entities (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		type       TEXT NOT NULL,
		aliases    TEXT,
		metadata   TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(name, type)
	);

	CREATE TABLE IF NOT EXISTS entity_relationships (
		id                 TEXT PRIMARY KEY,
		source_entity_id   TEXT NOT NULL REFERENCES entities(id),
		target_entity_id   TEXT NOT NULL REFERENCES entities(id),
		relationship       TEXT NOT NULL,
		confidence         REAL NOT NULL DEFAULT 0.5,
		evidence_memory_id TEXT,
		created_at         TEXT NOT NULL,
		UNIQUE(source_entity_id, target_entity_id)
	);

	CREATE TABLE IF NOT EXISTS memory_entities (
		memory_id TEXT NOT NULL REFERENCES memories(id),
		entity_id TEXT NOT NULL REFERENCES entities(id),
		relevance REAL NOT NULL DEFAULT 1.0,
		PRIMARY KEY (memory_id, entity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_memory_entities_entity ON memory_entities(entity_id);

	CREATE TABLE IF NOT EXISTS consolidations (
		id              TEXT PRIMARY KEY,
		strategy        TEXT NOT NULL,
		memories_merged INTEGER NOT NULL,
		summary_id      TEXT NOT NULL,
		created_at      TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS counters (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS golden_queries (
		query      TEXT PRIMARY KEY,
		baseline   TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS retrieval_log (
		memory_id   TEXT NOT NULL REFERENCES memories(id),
		query       TEXT NOT NULL,
		accessed_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_retrieval_log_memory ON retrieval_log(memory_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeVector packs a float32 vector as a little-endian blob.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
