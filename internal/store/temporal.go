package store

import (
	"context"
	"time"
)

// DayCount is the number of active memories created on one calendar
// day (UTC).
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// DailyCounts buckets active memories by creation day, oldest first,
// optionally bounded to a date range.
func (s *SQLiteStore) DailyCounts(ctx context.Context, after, before time.Time) ([]DayCount, error) {
	query := `SELECT date(created_at) AS day, COUNT(*) FROM memories WHERE is_active = 1`
	var args []interface{}
	if !after.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, after.UTC().Format(time.RFC3339))
	}
	if !before.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, before.UTC().Format(time.RFC3339))
	}
	query += ` GROUP BY day ORDER BY day`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, err
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}
