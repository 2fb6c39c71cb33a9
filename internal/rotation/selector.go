// Package rotation implements exposure-fair content rotation: every item is
// published once per cycle before any item repeats, and the cycle restarts by
// resetting all exposure counts.
package rotation

import (
	"cmp"
	"context"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// Store is the subset of the content store the selector needs.
type Store interface {
	ListContent(ctx context.Context) ([]database.ContentItem, error)
	BackfillExposureStats(ctx context.Context) (int64, error)
	ListExposure(ctx context.Context) ([]database.ContentExposure, error)
	CommitSelection(ctx context.Context, sel database.SelectionCommit) error
}

// DeliverFunc publishes the chosen item. The returned history record, if any,
// is committed together with the exposure update.
type DeliverFunc func(ctx context.Context, item database.ContentItem) (*database.PostHistory, error)

// Selection describes the outcome of a committed pick.
type Selection struct {
	Item database.ContentItem
	// CycleReset is true when the pick started a new exposure cycle.
	CycleReset bool
	ShownAt    time.Time
}

// Selector picks the next content item. All selections are serialized.
type Selector struct {
	mu     sync.Mutex
	store  Store
	logger *slog.Logger
	intn   func(n int) int
	now    func() time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithRand replaces the uniform random source used among unseen items.
func WithRand(intn func(n int) int) Option {
	return func(s *Selector) { s.intn = intn }
}

// WithClock replaces the clock used for last_shown_at.
func WithClock(now func() time.Time) Option {
	return func(s *Selector) { s.now = now }
}

// NewSelector creates a selector over store.
func NewSelector(store Store, logger *slog.Logger, opts ...Option) *Selector {
	s := &Selector{
		store:  store,
		logger: logger.With("component", "rotation"),
		intn:   rand.IntN,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectNext picks the next item and records that it was shown.
func (s *Selector) SelectNext(ctx context.Context) (Selection, error) {
	return s.WithNext(ctx, nil)
}

// WithNext picks the next item and hands it to deliver. The exposure update
// (and cycle reset, if the pick needs one) is committed only after deliver
// succeeds, so a failed delivery leaves the stats untouched. The commit does
// not inherit ctx's cancellation.
func (s *Selector) WithNext(ctx context.Context, deliver DeliverFunc) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, reset, err := s.pick(ctx)
	if err != nil {
		return Selection{}, err
	}

	var history *database.PostHistory
	if deliver != nil {
		if history, err = deliver(ctx, item); err != nil {
			s.logger.WarnContext(ctx, "Delivery failed, exposure not recorded",
				"content_id", item.ID, "error", err)
			return Selection{}, err
		}
	}

	shownAt := s.now()
	// A delivered post is recorded even when the caller's deadline has passed.
	err = s.store.CommitSelection(context.WithoutCancel(ctx), database.SelectionCommit{
		ContentID:  item.ID,
		ResetCycle: reset,
		ShownAt:    shownAt,
		History:    history,
	})
	if err != nil {
		return Selection{}, err
	}

	s.logger.InfoContext(ctx, "Content selected", "content_id", item.ID, "cycle_reset", reset)
	return Selection{Item: item, CycleReset: reset, ShownAt: shownAt}, nil
}

// pick chooses an item without mutating exposure counts. reset reports
// whether the cycle is exhausted and must restart with this item.
func (s *Selector) pick(ctx context.Context) (database.ContentItem, bool, error) {
	items, err := s.store.ListContent(ctx)
	if err != nil {
		return database.ContentItem{}, false, err
	}
	if len(items) == 0 {
		return database.ContentItem{}, false, apperrors.NewNoContentError("content store is empty")
	}

	if _, err := s.store.BackfillExposureStats(ctx); err != nil {
		return database.ContentItem{}, false, err
	}

	exposure, err := s.store.ListExposure(ctx)
	if err != nil {
		return database.ContentItem{}, false, err
	}
	if len(exposure) == 0 {
		return database.ContentItem{}, false, apperrors.NewNoContentError("content store is empty")
	}

	var unseen []database.ContentExposure
	for _, e := range exposure {
		if e.ShownCount == 0 {
			unseen = append(unseen, e)
		}
	}
	if len(unseen) > 0 {
		chosen := unseen[s.intn(len(unseen))]
		s.logger.DebugContext(ctx, "Picked unseen content",
			"content_id", chosen.ID, "unseen", len(unseen), "total", len(exposure))
		return chosen.ContentItem, false, nil
	}

	chosen := slices.MinFunc(exposure, compareStaleness)
	s.logger.DebugContext(ctx, "Exposure cycle complete, restarting",
		"content_id", chosen.ID, "total", len(exposure))
	return chosen.ContentItem, true, nil
}

// compareStaleness orders by last_shown_at (never shown first), then
// shown_count, then id.
func compareStaleness(a, b database.ContentExposure) int {
	switch {
	case !a.LastShownAt.Valid && b.LastShownAt.Valid:
		return -1
	case a.LastShownAt.Valid && !b.LastShownAt.Valid:
		return 1
	case a.LastShownAt.Valid && b.LastShownAt.Valid:
		if c := a.LastShownAt.Time.Compare(b.LastShownAt.Time); c != 0 {
			return c
		}
	}
	return cmp.Or(cmp.Compare(a.ShownCount, b.ShownCount), cmp.Compare(a.ID, b.ID))
}
