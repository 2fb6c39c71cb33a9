package database

import (
	"context"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

const (
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// SavePostHistory appends a history record and sets its ID.
func (s *sqlxStore) SavePostHistory(ctx context.Context, record *PostHistory) error {
	if record == nil {
		return apperrors.NewValidationError("cannot save nil post history", nil)
	}
	if record.PostedAt.IsZero() {
		record.PostedAt = s.now()
	}
	return s.inTx(ctx, "save post history", func(tx *sqlx.Tx) error {
		return insertHistory(ctx, tx, record)
	})
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, record *PostHistory) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO post_history (content_id, content, image_path, posted_at) VALUES (?, ?, ?, ?)`,
		record.ContentID, record.Content, record.ImagePath, record.PostedAt.UTC())
	if err != nil {
		return apperrors.NewDatabaseError("failed to insert post history", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// GetPostHistory returns up to limit records, newest first.
func (s *sqlxStore) GetPostHistory(ctx context.Context, limit int) ([]PostHistory, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	} else if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	var records []PostHistory
	if err := s.db.SelectContext(ctx, &records, `
		SELECT id, content_id, content, image_path, posted_at
		FROM post_history
		ORDER BY id DESC
		LIMIT ?`, limit); err != nil {
		return nil, apperrors.NewDatabaseError("failed to get post history", err)
	}
	return records, nil
}
