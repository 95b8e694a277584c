package store

import (
	"context"

	"github.com/a-s-l-a-h/oxidecms-core-backend/internal/domain"
)

// Settings are a flat key/value table for site configuration that must
// survive restarts, such as the maintenance console's URL prefix.

func (s *Store) ReadSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if err != nil {
		return "", notFoundOrStore(err, "setting not found", "read setting")
	}
	return value, nil
}

func (s *Store) WriteSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return domain.StoreError("write setting", err)
	}
	return nil
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = $1`, key)
	if err != nil {
		return domain.StoreError("delete setting", err)
	}
	return nil
}

func (s *Store) AllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, domain.StoreError("list settings", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, domain.StoreError("scan setting", err)
		}
		out[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list settings", err)
	}
	return out, nil
}
