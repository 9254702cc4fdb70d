package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSetting returns the value stored under key, or ErrNotFound.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT value FROM settings WHERE key = ?`,
		key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a value under key, creating the row when missing. An
// empty description leaves any existing description untouched.
func (s *Store) SetSetting(ctx context.Context, key, value, description string) error {
	ts := now()
	_, err := s.execWithRetry(
		ensureContext(ctx),
		`INSERT INTO settings (key, value, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             value = excluded.value,
             description = CASE WHEN excluded.description = '' THEN settings.description ELSE excluded.description END,
             updated_at = excluded.updated_at`,
		key, value, description, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// AllSettings lists every settings row ordered by key.
func (s *Store) AllSettings(ctx context.Context) ([]Setting, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT key, value, description, updated_at FROM settings ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var (
			setting     Setting
			description sql.NullString
			updatedAt   sql.NullString
		)
		if err := rows.Scan(&setting.Key, &setting.Value, &description, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan setting row: %w", err)
		}
		setting.Description = description.String
		if setting.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	return settings, rows.Err()
}

// SeedSettings inserts the given settings only where the key does not exist
// yet, so operator overrides survive restarts.
func (s *Store) SeedSettings(ctx context.Context, defaults []Setting) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		txCtx := ensureContext(ctx)
		ts := now()
		for _, setting := range defaults {
			if _, err := tx.ExecContext(
				txCtx,
				`INSERT INTO settings (key, value, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(key) DO NOTHING`,
				setting.Key, setting.Value, setting.Description, ts, ts,
			); err != nil {
				return fmt.Errorf("seed setting %q: %w", setting.Key, err)
			}
		}
		return nil
	})
}
