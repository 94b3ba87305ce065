package store

import (
	"context"
	"database/sql"
)

// Counter keys incremented by the intelligence layer.
const (
	CounterDedupSkipped      = "dedup.skipped"
	CounterMetadataExcluded  = "search.metadata_excluded"
	CounterMetadataPenalized = "search.metadata_penalized"
	CounterRegressionRuns    = "regression.runs"
	CounterRegressionAlerts  = "regression.alerts"
)

// IncrCounter adds delta to a durable counter, creating it at zero
// first. Increment is the only mutation besides explicit reset.
func (s *SQLiteStore) IncrCounter(ctx context.Context, key string, delta int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO counters (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`, key, delta)
	return err
}

// GetCounter returns the current value of a counter (0 when unset).
func (s *SQLiteStore) GetCounter(ctx context.Context, key string) (int, error) {
	var value int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return value, err
}

// ListCounters returns all counters as a map.
func (s *SQLiteStore) ListCounters(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM counters ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ResetCounter sets a counter back to zero. Administrative only.
func (s *SQLiteStore) ResetCounter(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE counters SET value = 0 WHERE key = ?`, key)
	return err
}
