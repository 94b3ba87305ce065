package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// GoldenQuery is a fixed query with an optional trusted baseline
// ranking, used to detect retrieval-quality regressions.
type GoldenQuery struct {
	Query    string   `json:"query"`
	Baseline []string `json:"baseline,omitempty"`
}

// AddGoldenQuery registers a golden query. An existing entry keeps
// its baseline.
func (s *SQLiteStore) AddGoldenQuery(ctx context.Context, query string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO golden_queries (query, updated_at) VALUES (?, ?)`,
		query, time.Now().UTC().Format(time.RFC3339))
	return err
}

// SetGoldenBaseline stores the baseline ranking for a golden query.
func (s *SQLiteStore) SetGoldenBaseline(ctx context.Context, query string, baseline []string) error {
	b, _ := json.Marshal(baseline)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO golden_queries (query, baseline, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(query) DO UPDATE SET baseline = excluded.baseline, updated_at = excluded.updated_at`,
		query, string(b), time.Now().UTC().Format(time.RFC3339))
	return err
}

// ListGoldenQueries returns all golden queries with their baselines.
func (s *SQLiteStore) ListGoldenQueries(ctx context.Context) ([]GoldenQuery, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT query, baseline FROM golden_queries ORDER BY query`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GoldenQuery
	for rows.Next() {
		var g GoldenQuery
		var baseline sql.NullString
		if err := rows.Scan(&g.Query, &baseline); err != nil {
			return nil, err
		}
		if baseline.Valid {
			json.Unmarshal([]byte(baseline.String), &g.Baseline)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RemoveGoldenQuery deletes a golden query. Returns false when it was
// not registered.
func (s *SQLiteStore) RemoveGoldenQuery(ctx context.Context, query string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM golden_queries WHERE query = ?`, query)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
