// Package publisher implements the publish action: obtain a text (rotation or
// generation), obtain its image, deliver both to the channel and record history.
package publisher

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/metrics"
	"github.com/edgard/affirmabot/internal/render"
	"github.com/edgard/affirmabot/internal/rotation"
)

// CaptionPlaceholder is replaced by the affirmation text in the caption template.
const CaptionPlaceholder = "{text}"

// maxCaptionRunes is the Telegram limit for photo captions.
const maxCaptionRunes = 1024

// telegramRefPrefix marks history image paths that are Telegram file ids.
const telegramRefPrefix = "telegram:"

// Photo is an image to deliver: either an existing Telegram file id or bytes to upload.
type Photo struct {
	FileID   string
	Data     []byte
	Filename string
}

// Sender delivers posts to a channel.
type Sender interface {
	SendPhoto(ctx context.Context, channel string, photo Photo, caption string) error
	SendText(ctx context.Context, channel, text string) error
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// Selector picks rotation content and commits its exposure after delivery.
type Selector interface {
	WithNext(ctx context.Context, deliver rotation.DeliverFunc) (rotation.Selection, error)
}

// Cards provides rendered images.
type Cards interface {
	ForContent(id int64, text string) (render.Image, error)
	ForText(text string) (render.Image, error)
}

// Store is the subset of the store used by the publisher.
type Store interface {
	GetSettings(ctx context.Context) (map[string]string, error)
	SavePostHistory(ctx context.Context, record *database.PostHistory) error
}

// Deps holds the publisher collaborators. Generator and Metrics may be nil.
type Deps struct {
	Logger    *slog.Logger
	Store     Store
	Selector  Selector
	Generator Generator
	Cards     Cards
	Sender    Sender
	Metrics   *metrics.Metrics
	ChannelID string
}

// Publisher runs publish actions against one channel.
type Publisher struct {
	deps Deps
	log  *slog.Logger
}

// New creates a publisher.
func New(deps Deps) *Publisher {
	return &Publisher{
		deps: deps,
		log:  deps.Logger.With("component", "publisher", "channel", deps.ChannelID),
	}
}

// Publish produces and delivers one post. On failure nothing is recorded: no
// history row is written and, in rotation mode, the exposure stats are unchanged.
func (p *Publisher) Publish(ctx context.Context) (*database.PostHistory, error) {
	start := time.Now()

	settings, err := p.deps.Store.GetSettings(ctx)
	if err != nil {
		p.deps.Metrics.ObservePublish(database.ModeRotation, err, time.Since(start))
		return nil, err
	}

	mode := settings[database.SettingMode]
	var record *database.PostHistory
	switch mode {
	case database.ModeGenerate:
		record, err = p.publishGenerated(ctx, settings)
	default:
		mode = database.ModeRotation
		record, err = p.publishRotation(ctx, settings)
	}

	elapsed := time.Since(start)
	p.deps.Metrics.ObservePublish(mode, err, elapsed)
	if err != nil {
		p.log.WarnContext(ctx, "Publish failed", "mode", mode, "code", apperrors.Code(err), "error", err)
		return nil, err
	}

	p.log.InfoContext(ctx, "Post published", "mode", mode, "history_id", record.ID, "duration", elapsed)
	return record, nil
}

func (p *Publisher) publishRotation(ctx context.Context, settings map[string]string) (*database.PostHistory, error) {
	var record *database.PostHistory
	sel, err := p.deps.Selector.WithNext(ctx, func(ctx context.Context, item database.ContentItem) (*database.PostHistory, error) {
		photo, imagePath, err := p.photoFor(item)
		if err != nil {
			return nil, err
		}

		caption := FormatCaption(settings[database.SettingCaption], item.Text)
		if err := p.deps.Sender.SendPhoto(ctx, p.deps.ChannelID, photo, caption); err != nil {
			return nil, apperrors.NewDeliveryError("failed to send photo to channel", err)
		}

		record = &database.PostHistory{
			ContentID: sql.NullInt64{Int64: item.ID, Valid: true},
			Content:   item.Text,
			ImagePath: sql.NullString{String: imagePath, Valid: imagePath != ""},
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}

	if sel.CycleReset {
		p.deps.Metrics.CycleReset()
	}
	// record was committed together with the exposure update.
	return record, nil
}

func (p *Publisher) publishGenerated(ctx context.Context, settings map[string]string) (*database.PostHistory, error) {
	if p.deps.Generator == nil {
		return nil, apperrors.NewGenerationError("text generation is not configured", nil)
	}

	text, err := p.deps.Generator.Generate(ctx, settings[database.SettingPrompt], settings[database.SettingModel])
	if err != nil {
		if apperrors.Code(err) == apperrors.CodeUnknown {
			err = apperrors.NewGenerationError("failed to generate text", err)
		}
		return nil, err
	}

	img, err := p.deps.Cards.ForText(text)
	if err != nil {
		return nil, err
	}

	caption := FormatCaption(settings[database.SettingCaption], text)
	photo := Photo{Data: img.Data, Filename: "affirmation.png"}
	if err := p.deps.Sender.SendPhoto(ctx, p.deps.ChannelID, photo, caption); err != nil {
		return nil, apperrors.NewDeliveryError("failed to send photo to channel", err)
	}

	record := &database.PostHistory{
		Content:   text,
		ImagePath: sql.NullString{String: img.Path, Valid: true},
	}
	if err := p.deps.Store.SavePostHistory(context.WithoutCancel(ctx), record); err != nil {
		p.log.ErrorContext(ctx, "Post delivered but history could not be saved", "error", err)
		return nil, err
	}
	return record, nil
}

// photoFor returns the stored Telegram photo of an item, or its rendered card.
func (p *Publisher) photoFor(item database.ContentItem) (Photo, string, error) {
	if item.ImageRef.Valid && item.ImageRef.String != "" {
		return Photo{FileID: item.ImageRef.String}, telegramRefPrefix + item.ImageRef.String, nil
	}

	img, err := p.deps.Cards.ForContent(item.ID, item.Text)
	if err != nil {
		return Photo{}, "", err
	}
	return Photo{Data: img.Data, Filename: "affirmation.png"}, img.Path, nil
}

// SendCustom posts the administrator's own message verbatim: a photo with a
// caption when photoFileID is set, plain text otherwise. Nothing is recorded.
func (p *Publisher) SendCustom(ctx context.Context, text, photoFileID string) error {
	text = strings.TrimSpace(text)
	if text == "" && photoFileID == "" {
		return apperrors.NewValidationError("custom message is empty", nil)
	}

	var err error
	if photoFileID != "" {
		err = p.deps.Sender.SendPhoto(ctx, p.deps.ChannelID, Photo{FileID: photoFileID}, truncateRunes(text, maxCaptionRunes))
	} else {
		err = p.deps.Sender.SendText(ctx, p.deps.ChannelID, text)
	}
	if err != nil {
		return apperrors.NewDeliveryError("failed to send custom message", err)
	}

	p.log.InfoContext(ctx, "Custom message sent", "has_photo", photoFileID != "")
	return nil
}

// FormatCaption fills the caption template with text. A template without the
// placeholder gets the text appended on a new paragraph; an empty one yields text.
func FormatCaption(template, text string) string {
	var caption string
	switch {
	case strings.TrimSpace(template) == "":
		caption = text
	case strings.Contains(template, CaptionPlaceholder):
		caption = strings.ReplaceAll(template, CaptionPlaceholder, text)
	default:
		caption = template + "\n\n" + text
	}
	return truncateRunes(caption, maxCaptionRunes)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
