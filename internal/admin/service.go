// Package admin exposes the operations available to the bot administrator:
// schedule and content management, settings, statistics and manual publishing.
// Every schedule change is followed by a full scheduler rebuild.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/scheduler"
)

// Store is the subset of the database store used by the service.
type Store interface {
	AddScheduleEntry(ctx context.Context, timeOfDay string) (int64, error)
	RemoveScheduleEntry(ctx context.Context, id int64) error
	ToggleScheduleEntry(ctx context.Context, id int64) (bool, error)
	ListSchedule(ctx context.Context) ([]database.ScheduleEntry, error)

	AddContent(ctx context.Context, text, imageRef string) (int64, error)
	UpdateContent(ctx context.Context, id int64, text, imageRef *string) error
	DeleteContent(ctx context.Context, id int64) error
	GetContent(ctx context.Context, id int64) (*database.ContentItem, error)
	ListContent(ctx context.Context) ([]database.ContentItem, error)
	ListContentStats(ctx context.Context) ([]database.ContentExposure, error)

	GetPostHistory(ctx context.Context, limit int) ([]database.PostHistory, error)
	GetSettings(ctx context.Context) (map[string]string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Rebuilder re-arms the publish jobs from the store.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Publisher runs publish actions.
type Publisher interface {
	Publish(ctx context.Context) (*database.PostHistory, error)
	SendCustom(ctx context.Context, text, photoFileID string) error
}

// RenderCache drops cached cards of a content item.
type RenderCache interface {
	Invalidate(id int64) error
}

// Deps holds the service collaborators.
type Deps struct {
	Logger    *slog.Logger
	Store     Store
	Scheduler Rebuilder
	Publisher Publisher
	Cards     RenderCache
}

// Service implements the administrator operations.
type Service struct {
	deps Deps
	log  *slog.Logger
}

// NewService creates the admin service.
func NewService(deps Deps) *Service {
	return &Service{deps: deps, log: deps.Logger.With("component", "admin")}
}

// AddScheduleEntry validates and normalizes timeOfDay ("9:5" becomes "09:05"),
// stores it and rebuilds the scheduler.
func (s *Service) AddScheduleEntry(ctx context.Context, timeOfDay string) (database.ScheduleEntry, error) {
	normalized, err := scheduler.NormalizeTimeOfDay(timeOfDay)
	if err != nil {
		return database.ScheduleEntry{}, err
	}

	id, err := s.deps.Store.AddScheduleEntry(ctx, normalized)
	if err != nil {
		return database.ScheduleEntry{}, err
	}

	s.rebuild(ctx, "add")
	return database.ScheduleEntry{ID: id, TimeOfDay: normalized, Enabled: true}, nil
}

// RemoveScheduleEntry deletes an entry and rebuilds the scheduler.
func (s *Service) RemoveScheduleEntry(ctx context.Context, id int64) error {
	if err := s.deps.Store.RemoveScheduleEntry(ctx, id); err != nil {
		return err
	}
	s.rebuild(ctx, "remove")
	return nil
}

// ToggleScheduleEntry flips an entry, rebuilds the scheduler and returns the new state.
func (s *Service) ToggleScheduleEntry(ctx context.Context, id int64) (bool, error) {
	enabled, err := s.deps.Store.ToggleScheduleEntry(ctx, id)
	if err != nil {
		return false, err
	}
	s.rebuild(ctx, "toggle")
	return enabled, nil
}

// ListSchedule returns all entries ordered by time.
func (s *Service) ListSchedule(ctx context.Context) ([]database.ScheduleEntry, error) {
	return s.deps.Store.ListSchedule(ctx)
}

// rebuild re-arms the jobs. The schedule change is already persisted, so a
// failure is logged and picked up by the next successful rebuild.
func (s *Service) rebuild(ctx context.Context, op string) {
	if err := s.deps.Scheduler.Rebuild(ctx); err != nil {
		s.log.ErrorContext(ctx, "Scheduler rebuild failed after schedule change", "op", op, "error", err)
	}
}

// AddContent stores a new item. imageRef is a Telegram file id or empty.
func (s *Service) AddContent(ctx context.Context, text, imageRef string) (int64, error) {
	return s.deps.Store.AddContent(ctx, text, imageRef)
}

// UpdateContent changes text and/or image (nil keeps the field) and drops the cached card.
func (s *Service) UpdateContent(ctx context.Context, id int64, text, imageRef *string) error {
	if err := s.deps.Store.UpdateContent(ctx, id, text, imageRef); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// DeleteContent removes an item, its stats and its cached card.
func (s *Service) DeleteContent(ctx context.Context, id int64) error {
	if err := s.deps.Store.DeleteContent(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) invalidate(ctx context.Context, id int64) {
	if err := s.deps.Cards.Invalidate(id); err != nil {
		s.log.WarnContext(ctx, "Failed to drop cached card", "content_id", id, "error", err)
	}
}

// GetContent returns one item.
func (s *Service) GetContent(ctx context.Context, id int64) (*database.ContentItem, error) {
	return s.deps.Store.GetContent(ctx, id)
}

// ListContent returns all items ordered by id.
func (s *Service) ListContent(ctx context.Context) ([]database.ContentItem, error) {
	return s.deps.Store.ListContent(ctx)
}

// GetStats returns every item with its exposure statistics.
func (s *Service) GetStats(ctx context.Context) ([]database.ContentExposure, error) {
	return s.deps.Store.ListContentStats(ctx)
}

// PublishNow runs a publish action immediately, without a timeout.
func (s *Service) PublishNow(ctx context.Context) (*database.PostHistory, error) {
	s.log.InfoContext(ctx, "Manual publish requested")
	return s.deps.Publisher.Publish(ctx)
}

// SendCustom posts the administrator's own message to the channel.
func (s *Service) SendCustom(ctx context.Context, text, photoFileID string) error {
	return s.deps.Publisher.SendCustom(ctx, text, photoFileID)
}

// History returns the latest posts, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]database.PostHistory, error) {
	return s.deps.Store.GetPostHistory(ctx, limit)
}

// Settings returns the current settings.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.deps.Store.GetSettings(ctx)
}

// SetPrompt changes the generation prompt.
func (s *Service) SetPrompt(ctx context.Context, prompt string) error {
	return s.setRequired(ctx, database.SettingPrompt, prompt)
}

// SetModel changes the generation model.
func (s *Service) SetModel(ctx context.Context, model string) error {
	return s.setRequired(ctx, database.SettingModel, model)
}

// SetCaption changes the caption template.
func (s *Service) SetCaption(ctx context.Context, caption string) error {
	return s.setRequired(ctx, database.SettingCaption, caption)
}

// SetMode switches between rotation and generate mode.
func (s *Service) SetMode(ctx context.Context, mode string) error {
	mode = strings.TrimSpace(mode)
	if mode != database.ModeRotation && mode != database.ModeGenerate {
		return apperrors.NewValidationError(fmt.Sprintf("unknown mode %q", mode), nil)
	}
	return s.deps.Store.SetSetting(ctx, database.SettingMode, mode)
}

func (s *Service) setRequired(ctx context.Context, key, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return apperrors.NewValidationError(fmt.Sprintf("%s must not be empty", key), nil)
	}
	return s.deps.Store.SetSetting(ctx, key, value)
}
