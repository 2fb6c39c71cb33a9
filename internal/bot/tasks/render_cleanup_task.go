package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRenderCleanupTask creates the task that deletes generated-text cards older
// than render.text_retention. A zero retention keeps them forever.
func newRenderCleanupTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "render_cleanup")
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return func(ctx context.Context) error {
		retention := deps.Config.Render.TextRetention
		if retention <= 0 || deps.Cards == nil {
			log.DebugContext(ctx, "Render cleanup disabled, skipping")
			return nil
		}

		cutoff := now().Add(-retention)
		removed, err := deps.Cards.PruneText(cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Render cleanup failed", "removed", removed, "error", err)
			return fmt.Errorf("render cleanup failed: %w", err)
		}

		log.InfoContext(ctx, "Render cleanup completed", "removed", removed, "cutoff", cutoff)
		return nil
	}
}
