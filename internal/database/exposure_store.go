package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// ListContentStats returns every item with its exposure, most shown first.
// Items without a stat row are reported with HasStat=false.
func (s *sqlxStore) ListContentStats(ctx context.Context) ([]ContentExposure, error) {
	var rows []ContentExposure
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.text, c.image_ref, c.created_at, c.updated_at,
		       COALESCE(e.shown_count, 0) AS shown_count,
		       e.last_shown_at,
		       (e.content_id IS NOT NULL) AS has_stat
		FROM content c
		LEFT JOIN exposure_stats e ON e.content_id = c.id
		ORDER BY shown_count DESC, c.id`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to list content stats", err)
	}
	return rows, nil
}

// BackfillExposureStats creates a zero stat for every item lacking one.
func (s *sqlxStore) BackfillExposureStats(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO exposure_stats (content_id, shown_count)
		SELECT c.id, 0 FROM content c
		WHERE NOT EXISTS (SELECT 1 FROM exposure_stats e WHERE e.content_id = c.id)`)
	if err != nil {
		return 0, apperrors.NewDatabaseError("failed to backfill exposure stats", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.InfoContext(ctx, "Backfilled missing exposure stats", "count", n)
	}
	return n, nil
}

// ListExposure returns items joined with their stat rows, ordered by id.
func (s *sqlxStore) ListExposure(ctx context.Context) ([]ContentExposure, error) {
	var rows []ContentExposure
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id, c.text, c.image_ref, c.created_at, c.updated_at,
		       e.shown_count, e.last_shown_at, 1 AS has_stat
		FROM content c
		JOIN exposure_stats e ON e.content_id = c.id
		ORDER BY c.id`)
	if err != nil {
		return nil, apperrors.NewDatabaseError("failed to list exposure", err)
	}
	return rows, nil
}

// CommitSelection applies the optional cycle reset, the increment of the chosen
// item and the optional history row in a single transaction.
func (s *sqlxStore) CommitSelection(ctx context.Context, sel SelectionCommit) error {
	shownAt := sel.ShownAt.UTC()
	err := s.inTx(ctx, "commit selection", func(tx *sqlx.Tx) error {
		if sel.ResetCycle {
			if _, err := tx.ExecContext(ctx, `UPDATE exposure_stats SET shown_count = 0`); err != nil {
				return apperrors.NewDatabaseError("failed to reset exposure cycle", err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE exposure_stats SET shown_count = shown_count + 1, last_shown_at = ? WHERE content_id = ?`,
			shownAt, sel.ContentID)
		if err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to record exposure of content %d", sel.ContentID), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			// The item was deleted while its post was being delivered.
			s.logger.WarnContext(ctx, "Published content no longer exists, exposure not recorded",
				"content_id", sel.ContentID)
		}

		if sel.History != nil {
			if sel.History.PostedAt.IsZero() {
				sel.History.PostedAt = shownAt
			}
			if err := insertHistory(ctx, tx, sel.History); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Selection committed",
		"content_id", sel.ContentID, "cycle_reset", sel.ResetCycle)
	return nil
}
