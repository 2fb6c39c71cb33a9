package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// AddContent inserts a content item and its zero exposure stat in one transaction.
func (s *sqlxStore) AddContent(ctx context.Context, text, imageRef string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, apperrors.NewValidationError("content text must not be empty", nil)
	}

	var id int64
	err := s.inTx(ctx, "add content", func(tx *sqlx.Tx) error {
		now := s.now()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO content (text, image_ref, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			text, nullString(imageRef), now, now)
		if err != nil {
			return apperrors.NewDatabaseError("failed to insert content", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return apperrors.NewDatabaseError("failed to read content id", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO exposure_stats (content_id, shown_count) VALUES (?, 0)`, id); err != nil {
			return apperrors.NewDatabaseError("failed to insert exposure stat", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "Content added", "content_id", id, "has_image", imageRef != "")
	return id, nil
}

// UpdateContent changes the text and/or image of an existing item.
func (s *sqlxStore) UpdateContent(ctx context.Context, id int64, text, imageRef *string) error {
	if text == nil && imageRef == nil {
		return nil
	}
	if text != nil && strings.TrimSpace(*text) == "" {
		return apperrors.NewValidationError("content text must not be empty", nil)
	}

	sets := []string{"updated_at = ?"}
	args := []any{s.now()}
	if text != nil {
		sets = append(sets, "text = ?")
		args = append(args, strings.TrimSpace(*text))
	}
	if imageRef != nil {
		sets = append(sets, "image_ref = ?")
		args = append(args, nullString(*imageRef))
	}
	args = append(args, id)

	query := "UPDATE content SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	err := s.inTx(ctx, "update content", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to update content %d", id), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("content %d not found", id))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "Content updated", "content_id", id,
		"text_changed", text != nil, "image_changed", imageRef != nil)
	return nil
}

// DeleteContent removes the item and its stat. History rows keep their text.
func (s *sqlxStore) DeleteContent(ctx context.Context, id int64) error {
	err := s.inTx(ctx, "delete content", func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM exposure_stats WHERE content_id = ?`, id); err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to delete stats of content %d", id), err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
		if err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to delete content %d", id), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("content %d not found", id))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate()
	s.logger.InfoContext(ctx, "Content deleted", "content_id", id)
	return nil
}

// GetContent fetches a single item by id.
func (s *sqlxStore) GetContent(ctx context.Context, id int64) (*ContentItem, error) {
	var item ContentItem
	err := s.db.GetContext(ctx, &item,
		`SELECT id, text, image_ref, created_at, updated_at FROM content WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("content %d not found", id))
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Sprintf("failed to get content %d", id), err)
	}
	return &item, nil
}

// ListContent serves the item list from the cache, loading it on first use.
func (s *sqlxStore) ListContent(ctx context.Context) ([]ContentItem, error) {
	return s.cache.Get(ctx)
}

func (s *sqlxStore) loadContent(ctx context.Context) ([]ContentItem, error) {
	var items []ContentItem
	if err := s.db.SelectContext(ctx, &items,
		`SELECT id, text, image_ref, created_at, updated_at FROM content ORDER BY id`); err != nil {
		return nil, apperrors.NewDatabaseError("failed to list content", err)
	}
	s.logger.DebugContext(ctx, "Content cache loaded", "count", len(items))
	return items, nil
}

// SeedContent fills an empty content table with texts.
func (s *sqlxStore) SeedContent(ctx context.Context, texts []string) (int, error) {
	inserted := 0
	err := s.inTx(ctx, "seed content", func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM content`); err != nil {
			return apperrors.NewDatabaseError("failed to count content", err)
		}
		if count > 0 {
			return nil
		}

		now := s.now()
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			res, err := tx.ExecContext(ctx,
				`INSERT INTO content (text, image_ref, created_at, updated_at) VALUES (?, NULL, ?, ?)`,
				text, now, now)
			if err != nil {
				return apperrors.NewDatabaseError("failed to seed content", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return apperrors.NewDatabaseError("failed to read seeded content id", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO exposure_stats (content_id, shown_count) VALUES (?, 0)`, id); err != nil {
				return apperrors.NewDatabaseError("failed to seed exposure stat", err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if inserted > 0 {
		s.cache.Invalidate()
		s.logger.InfoContext(ctx, "Seeded initial content", "count", inserted)
	}
	return inserted, nil
}
