// Package tasks implements the static scheduled maintenance tasks of the bot.
// It includes task definitions, dependencies, and registration.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/affirmabot/internal/config"
)

// Store is the subset of the database store the tasks use.
type Store interface {
	RunSQLMaintenance(ctx context.Context) error
}

// CardPruner removes rendered cards of generated texts.
type CardPruner interface {
	PruneText(cutoff time.Time) (int, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  Store
	Cards  CardPruner
	Config *config.Config
	// Now defaults to time.Now.
	Now func() time.Time
}
