package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/config"
	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// send posts text to chatID, attaching kb when it is not nil.
func send(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	params := &bot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := b.SendMessage(ctx, params); err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
	}
}

// sendLong splits text over several messages; kb goes on the last one.
func sendLong(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, text string, kb *models.InlineKeyboardMarkup) {
	chunks := splitMessage(text, maxMessageRunes)
	for i, chunk := range chunks {
		var markup *models.InlineKeyboardMarkup
		if i == len(chunks)-1 {
			markup = kb
		}
		send(ctx, b, log, chatID, chunk, markup)
	}
}

// edit replaces the menu message in place, or sends a new one when msg is
// unavailable or can no longer be edited.
func edit(ctx context.Context, b *bot.Bot, log *slog.Logger, chatID int64, msg *models.Message, text string, kb *models.InlineKeyboardMarkup) {
	if msg == nil {
		send(ctx, b, log, chatID, text, kb)
		return
	}

	params := &bot.EditMessageTextParams{ChatID: chatID, MessageID: msg.ID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return
		}
		log.DebugContext(ctx, "Failed to edit message, sending a new one", "error", err, "chat_id", chatID)
		send(ctx, b, log, chatID, text, kb)
	}
}

// userError turns an operation error into a message for the admin.
func userError(msgs config.MessagesConfig, err error) string {
	switch apperrors.Code(err) {
	case apperrors.CodeNoContent:
		return msgs.NoContent
	case apperrors.CodeInvalidTime:
		return msgs.InvalidTime
	case apperrors.CodeValidation:
		return "❌ " + err.Error()
	default:
		return msgs.GeneralError
	}
}

// publishError explains why a manual publish failed.
func publishError(msgs config.MessagesConfig, err error) string {
	reason := "unexpected error"
	switch apperrors.Code(err) {
	case apperrors.CodeNoContent:
		return msgs.NoContent
	case apperrors.CodeGeneration:
		reason = "text generation failed"
	case apperrors.CodeRender:
		reason = "image rendering failed"
	case apperrors.CodeDelivery:
		reason = "the channel rejected the post"
	case apperrors.CodeDatabase:
		reason = "storage error"
	}
	return fmt.Sprintf(msgs.PublishFailed, reason)
}
