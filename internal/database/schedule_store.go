package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// AddScheduleEntry inserts an enabled entry. time_of_day is unique; a duplicate
// returns a DUPLICATE_SCHEDULE_ENTRY error and leaves the table unchanged.
func (s *sqlxStore) AddScheduleEntry(ctx context.Context, timeOfDay string) (int64, error) {
	var id int64
	err := s.inTx(ctx, "add schedule entry", func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists,
			`SELECT COUNT(*) FROM schedule WHERE time_of_day = ?`, timeOfDay); err != nil {
			return apperrors.NewDatabaseError("failed to check schedule", err)
		}
		if exists > 0 {
			return apperrors.NewDuplicateScheduleError(timeOfDay)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO schedule (time_of_day, enabled, created_at) VALUES (?, 1, ?)`, timeOfDay, s.now())
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewDuplicateScheduleError(timeOfDay)
			}
			return apperrors.NewDatabaseError("failed to insert schedule entry", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return apperrors.NewDatabaseError("failed to read schedule entry id", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Schedule entry added", "entry_id", id, "time", timeOfDay)
	return id, nil
}

// RemoveScheduleEntry deletes an entry by id.
func (s *sqlxStore) RemoveScheduleEntry(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedule WHERE id = ?`, id)
	if err != nil {
		return apperrors.NewDatabaseError(fmt.Sprintf("failed to delete schedule entry %d", id), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("schedule entry %d not found", id))
	}
	s.logger.InfoContext(ctx, "Schedule entry removed", "entry_id", id)
	return nil
}

// ToggleScheduleEntry flips the enabled flag and returns the new value.
func (s *sqlxStore) ToggleScheduleEntry(ctx context.Context, id int64) (bool, error) {
	var enabled bool
	err := s.inTx(ctx, "toggle schedule entry", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE schedule SET enabled = CASE enabled WHEN 1 THEN 0 ELSE 1 END WHERE id = ?`, id)
		if err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to toggle schedule entry %d", id), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NewNotFoundError(fmt.Sprintf("schedule entry %d not found", id))
		}
		if err := tx.GetContext(ctx, &enabled, `SELECT enabled FROM schedule WHERE id = ?`, id); err != nil {
			return apperrors.NewDatabaseError(fmt.Sprintf("failed to read schedule entry %d", id), err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	s.logger.InfoContext(ctx, "Schedule entry toggled", "entry_id", id, "enabled", enabled)
	return enabled, nil
}

// ListSchedule returns every entry ordered by time of day.
func (s *sqlxStore) ListSchedule(ctx context.Context) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	if err := s.db.SelectContext(ctx, &entries,
		`SELECT id, time_of_day, enabled, created_at FROM schedule ORDER BY time_of_day, id`); err != nil {
		return nil, apperrors.NewDatabaseError("failed to list schedule", err)
	}
	return entries, nil
}

// ListEnabledSchedule returns enabled entries ordered by time of day.
func (s *sqlxStore) ListEnabledSchedule(ctx context.Context) ([]ScheduleEntry, error) {
	var entries []ScheduleEntry
	if err := s.db.SelectContext(ctx, &entries,
		`SELECT id, time_of_day, enabled, created_at FROM schedule WHERE enabled = 1 ORDER BY time_of_day, id`); err != nil {
		return nil, apperrors.NewDatabaseError("failed to list enabled schedule", err)
	}
	return entries, nil
}

// SeedSchedule fills an empty schedule with times.
func (s *sqlxStore) SeedSchedule(ctx context.Context, times []string) (int, error) {
	inserted := 0
	err := s.inTx(ctx, "seed schedule", func(tx *sqlx.Tx) error {
		var count int
		if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM schedule`); err != nil {
			return apperrors.NewDatabaseError("failed to count schedule", err)
		}
		if count > 0 {
			return nil
		}
		now := s.now()
		for _, t := range times {
			res, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO schedule (time_of_day, enabled, created_at) VALUES (?, 1, ?)`, t, now)
			if err != nil {
				return apperrors.NewDatabaseError("failed to seed schedule", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		s.logger.InfoContext(ctx, "Seeded default schedule", "count", inserted)
	}
	return inserted, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
