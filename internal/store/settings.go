package store

import (
	"context"
	"database/sql"
)

// Setting keys used across the intelligence layer.
const (
	SettingNormalizeWhitespace = "canon.normalize_whitespace"
	SettingTagAliases          = "canon.tag_aliases"
	SettingMetadataMode        = "search.metadata_mode"
	SettingSearchWeights       = "search.weights"
	SettingCandidatePool       = "search.candidate_pool"
	SettingMinOverlap          = "regression.min_overlap"
	SettingMaxShift            = "regression.max_shift"
	SettingSchedule            = "maintenance.schedule"
)

// GetSetting returns a setting value, or the empty string when unset.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting stores a setting value, replacing any previous one.
func (s *SQLiteStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// ListSettings returns all settings as a map.
func (s *SQLiteStore) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
