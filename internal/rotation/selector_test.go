package rotation_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/logger"
	"github.com/edgard/affirmabot/internal/rotation"
)

func newStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "rotation.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, logger.Discard())
}

// tickingClock returns a clock advancing one minute per call.
func tickingClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Minute)
		return t
	}
}

func addItems(t *testing.T, store database.Store, texts ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(texts))
	for _, text := range texts {
		id, err := store.AddContent(context.Background(), text, "")
		if err != nil {
			t.Fatalf("AddContent(%q) error = %v", text, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestSelectNextEmptyStore(t *testing.T) {
	t.Parallel()
	sel := rotation.NewSelector(newStore(t), logger.Discard())

	_, err := sel.SelectNext(context.Background())
	if !errors.Is(err, apperrors.ErrNoContent) {
		t.Fatalf("SelectNext() error = %v, want no content", err)
	}
}

func TestSelectNextFullCycleWithoutRepeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	ids := addItems(t, store, "A", "B", "C", "D", "E")
	sel := rotation.NewSelector(store, logger.Discard(), rotation.WithClock(tickingClock()))

	for cycle := range 3 {
		seen := map[int64]bool{}
		for i := range len(ids) {
			got, err := sel.SelectNext(ctx)
			if err != nil {
				t.Fatalf("cycle %d pick %d: SelectNext() error = %v", cycle, i, err)
			}
			if seen[got.Item.ID] {
				t.Fatalf("cycle %d: item %d returned twice before the cycle completed", cycle, got.Item.ID)
			}
			seen[got.Item.ID] = true

			wantReset := cycle > 0 && i == 0
			if got.CycleReset != wantReset {
				t.Errorf("cycle %d pick %d: CycleReset = %v, want %v", cycle, i, got.CycleReset, wantReset)
			}
		}
		if len(seen) != len(ids) {
			t.Fatalf("cycle %d covered %d items, want %d", cycle, len(seen), len(ids))
		}
	}
}

func TestSelectNextResetPicksStalestItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	ids := addItems(t, store, "A", "B", "C")
	// Always take the last unseen item: C, then B, then A.
	sel := rotation.NewSelector(store, logger.Discard(),
		rotation.WithClock(tickingClock()),
		rotation.WithRand(func(n int) int { return n - 1 }))

	var order []int64
	for range 3 {
		got, err := sel.SelectNext(ctx)
		if err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
		order = append(order, got.Item.ID)
	}
	if order[0] != ids[2] || order[1] != ids[1] || order[2] != ids[0] {
		t.Fatalf("first cycle order = %v, want C, B, A", order)
	}

	got, err := sel.SelectNext(ctx)
	if err != nil {
		t.Fatalf("SelectNext() error = %v", err)
	}
	if !got.CycleReset || got.Item.ID != ids[2] {
		t.Fatalf("4th pick = %+v, want reset choosing C (earliest last_shown_at)", got)
	}

	exposure, _ := store.ListExposure(ctx)
	for _, e := range exposure {
		want := 0
		if e.ID == ids[2] {
			want = 1
		}
		if e.ShownCount != want {
			t.Errorf("item %d shown_count = %d after reset, want %d", e.ID, e.ShownCount, want)
		}
	}
}

func TestSelectNextPrioritizesNewItemMidCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	addItems(t, store, "A", "B")
	sel := rotation.NewSelector(store, logger.Discard(), rotation.WithClock(tickingClock()))

	for range 2 {
		if _, err := sel.SelectNext(ctx); err != nil {
			t.Fatalf("SelectNext() error = %v", err)
		}
	}

	newID := addItems(t, store, "C")[0]
	got, err := sel.SelectNext(ctx)
	if err != nil {
		t.Fatalf("SelectNext() error = %v", err)
	}
	if got.Item.ID != newID || got.CycleReset {
		t.Errorf("pick after adding = %+v, want new item %d without reset", got, newID)
	}
}

func TestWithNextFailedDeliveryLeavesStatsUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	addItems(t, store, "A", "B", "C")
	sel := rotation.NewSelector(store, logger.Discard())

	deliveryErr := apperrors.NewDeliveryError("channel unavailable", nil)
	_, err := sel.WithNext(ctx, func(context.Context, database.ContentItem) (*database.PostHistory, error) {
		return nil, deliveryErr
	})
	if !errors.Is(err, apperrors.ErrDelivery) {
		t.Fatalf("WithNext() error = %v, want delivery error", err)
	}

	exposure, _ := store.ListExposure(ctx)
	for _, e := range exposure {
		if e.ShownCount != 0 || e.LastShownAt.Valid {
			t.Errorf("item %d exposure changed after failed delivery: %+v", e.ID, e)
		}
	}
	history, _ := store.GetPostHistory(ctx, 10)
	if len(history) != 0 {
		t.Errorf("history rows after failed delivery = %d, want 0", len(history))
	}
}

func TestWithNextCommitsHistoryWithExposure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	addItems(t, store, "A")
	sel := rotation.NewSelector(store, logger.Discard())

	got, err := sel.WithNext(ctx, func(_ context.Context, item database.ContentItem) (*database.PostHistory, error) {
		return &database.PostHistory{Content: item.Text}, nil
	})
	if err != nil {
		t.Fatalf("WithNext() error = %v", err)
	}

	history, _ := store.GetPostHistory(ctx, 10)
	if len(history) != 1 || history[0].Content != got.Item.Text {
		t.Errorf("history = %+v, want one row for %q", history, got.Item.Text)
	}
}

func TestWithNextRecordsDeliveryPastDeadline(t *testing.T) {
	t.Parallel()
	store := newStore(t)
	ids := addItems(t, store, "A")
	sel := rotation.NewSelector(store, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, err := sel.WithNext(ctx, func(_ context.Context, item database.ContentItem) (*database.PostHistory, error) {
		// The deadline expires right after the channel accepted the post.
		cancel()
		return &database.PostHistory{Content: item.Text}, nil
	})
	if err != nil {
		t.Fatalf("WithNext() error = %v", err)
	}

	bg := context.Background()
	stats, _ := store.ListContentStats(bg)
	if len(stats) != 1 || stats[0].ID != ids[0] || stats[0].ShownCount != 1 {
		t.Errorf("stats = %+v, want item shown once", stats)
	}
	history, _ := store.GetPostHistory(bg, 10)
	if len(history) != 1 {
		t.Errorf("history = %+v, want the delivered post recorded", history)
	}
}

func TestSelectNextConcurrentCallsNeverShareAnItem(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newStore(t)
	ids := addItems(t, store, "A", "B", "C", "D", "E", "F")
	sel := rotation.NewSelector(store, logger.Discard())

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]int{}
	)
	for range len(ids) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := sel.SelectNext(ctx)
			if err != nil {
				t.Errorf("SelectNext() error = %v", err)
				return
			}
			mu.Lock()
			seen[got.Item.ID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	for id, n := range seen {
		if n != 1 {
			t.Errorf("item %d selected %d times", id, n)
		}
	}
	if len(seen) != len(ids) {
		t.Errorf("selected %d distinct items, want %d", len(seen), len(ids))
	}
}
