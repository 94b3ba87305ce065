package store

import (
	"context"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath         string `json:"db_path"`
	DBSizeBytes    int64  `json:"db_size_bytes"`
	TotalMemories  int    `json:"total_memories"`
	ActiveMemories int    `json:"active_memories"`
	Entities       int    `json:"entities"`
	Relationships  int    `json:"relationships"`
	Consolidations int    `json:"consolidations"`
	Embedded       int    `json:"embedded"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE is_active = 1`).Scan(&st.ActiveMemories)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories WHERE embedding IS NOT NULL`).Scan(&st.Embedded)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&st.Entities)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entity_relationships`).Scan(&st.Relationships)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM consolidations`).Scan(&st.Consolidations)

	return st, nil
}
