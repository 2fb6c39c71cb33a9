package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// AddContent creates a content item together with its zero exposure stat.
	AddContent(ctx context.Context, text, imageRef string) (int64, error)
	// UpdateContent changes text and/or image reference; nil leaves the field unchanged.
	// An empty imageRef clears the stored image.
	UpdateContent(ctx context.Context, id int64, text, imageRef *string) error
	// DeleteContent removes the item and its exposure stat.
	DeleteContent(ctx context.Context, id int64) error
	GetContent(ctx context.Context, id int64) (*ContentItem, error)
	// ListContent returns all items ordered by id from the content cache.
	ListContent(ctx context.Context) ([]ContentItem, error)
	// SeedContent inserts texts only when the content table is empty.
	SeedContent(ctx context.Context, texts []string) (int, error)

	// ListContentStats reports every item with its stats, most shown first.
	ListContentStats(ctx context.Context) ([]ContentExposure, error)
	// BackfillExposureStats creates zero stats for items that have none.
	BackfillExposureStats(ctx context.Context) (int64, error)
	// ListExposure returns items that have a stat row, ordered by id.
	ListExposure(ctx context.Context) ([]ContentExposure, error)
	// CommitSelection records a publish in rotation mode atomically.
	CommitSelection(ctx context.Context, sel SelectionCommit) error

	AddScheduleEntry(ctx context.Context, timeOfDay string) (int64, error)
	RemoveScheduleEntry(ctx context.Context, id int64) error
	// ToggleScheduleEntry flips the enabled flag and returns the new state.
	ToggleScheduleEntry(ctx context.Context, id int64) (bool, error)
	ListSchedule(ctx context.Context) ([]ScheduleEntry, error)
	ListEnabledSchedule(ctx context.Context) ([]ScheduleEntry, error)
	// SeedSchedule inserts times only when the schedule table is empty.
	SeedSchedule(ctx context.Context, times []string) (int, error)

	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	GetSettings(ctx context.Context) (map[string]string, error)

	SavePostHistory(ctx context.Context, record *PostHistory) error
	// GetPostHistory returns the newest records first. History is append-only.
	GetPostHistory(ctx context.Context, limit int) ([]PostHistory, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	cache  *ContentCache
	now    func() time.Time
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.cache = NewContentCache(s.loadContent)
	return s
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// inTx runs fn inside a transaction, committing when fn returns nil.
func (s *sqlxStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return apperrors.NewDatabaseError(op+": failed to begin transaction", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return apperrors.NewDatabaseError(op+": failed to commit transaction", err)
	}
	tx = nil
	return nil
}

// RunSQLMaintenance executes VACUUM and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)")

	// VACUUM must run outside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return apperrors.NewDatabaseError("failed to execute VACUUM", err)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		s.logger.WarnContext(ctx, "PRAGMA optimize failed", "error", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed")
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
