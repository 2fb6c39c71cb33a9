package telegram

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/publisher"
	"github.com/edgard/affirmabot/internal/resilience"
)

// ChannelSender delivers posts through the Bot API. Transient failures
// (rate limits, server errors, network) are retried.
type ChannelSender struct {
	bot   *bot.Bot
	log   *slog.Logger
	retry resilience.RetryConfig
}

// NewChannelSender creates a sender on top of b.
func NewChannelSender(b *bot.Bot, logger *slog.Logger) *ChannelSender {
	return &ChannelSender{
		bot:   b,
		log:   logger.With("component", "channel_sender"),
		retry: resilience.DefaultRetryConfig(),
	}
}

// retryable reports whether a Bot API error may succeed on another attempt.
func retryable(err error) bool {
	switch {
	case errors.Is(err, bot.ErrorBadRequest),
		errors.Is(err, bot.ErrorForbidden),
		errors.Is(err, bot.ErrorUnauthorized),
		errors.Is(err, bot.ErrorNotFound):
		return false
	default:
		return true
	}
}

// SendPhoto posts a photo with a caption. A photo with a FileID is re-sent by
// reference, otherwise its bytes are uploaded.
func (s *ChannelSender) SendPhoto(ctx context.Context, channel string, photo publisher.Photo, caption string) error {
	var msg *models.Message
	err := resilience.Retry(ctx, s.retry, s.log, retryable, func(ctx context.Context) error {
		var err error
		msg, err = s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:  chatID(channel),
			Photo:   inputFile(photo),
			Caption: caption,
		})
		return err
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to send photo", "channel", channel, "error", err)
		return apperrors.NewDeliveryError("failed to send photo", err)
	}

	s.log.DebugContext(ctx, "Photo sent", "channel", channel, "message_id", msg.ID)
	return nil
}

// SendText posts a plain text message.
func (s *ChannelSender) SendText(ctx context.Context, channel, text string) error {
	var msg *models.Message
	err := resilience.Retry(ctx, s.retry, s.log, retryable, func(ctx context.Context) error {
		var err error
		msg, err = s.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID(channel),
			Text:   text,
		})
		return err
	})
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to send message", "channel", channel, "error", err)
		return apperrors.NewDeliveryError("failed to send message", err)
	}

	s.log.DebugContext(ctx, "Message sent", "channel", channel, "message_id", msg.ID)
	return nil
}

// inputFile builds a fresh InputFile per attempt, since an upload reader is consumed.
func inputFile(photo publisher.Photo) models.InputFile {
	if photo.FileID != "" {
		return &models.InputFileString{Data: photo.FileID}
	}
	name := photo.Filename
	if name == "" {
		name = "affirmation.png"
	}
	return &models.InputFileUpload{Filename: name, Data: bytes.NewReader(photo.Data)}
}

// chatID keeps @usernames as strings and turns numeric ids into int64.
func chatID(channel string) any {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return id
	}
	return channel
}
