package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// GetSetting returns the value stored under key, or NOT_FOUND.
func (s *sqlxStore) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperrors.NewNotFoundError(fmt.Sprintf("setting %q not found", key))
	}
	if err != nil {
		return "", apperrors.NewDatabaseError(fmt.Sprintf("failed to get setting %q", key), err)
	}
	return value, nil
}

// SetSetting upserts a setting.
func (s *sqlxStore) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to save setting %q", key), err)
	}
	s.logger.InfoContext(ctx, "Setting updated", "key", key)
	return nil
}

// GetSettings returns all settings as a map.
func (s *sqlxStore) GetSettings(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM settings`); err != nil {
		return nil, apperrors.NewDatabaseError("failed to list settings", err)
	}
	settings := make(map[string]string, len(rows))
	for _, r := range rows {
		settings[r.Key] = r.Value
	}
	return settings, nil
}
