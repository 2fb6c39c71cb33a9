package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewCancelHandler returns a handler for the /cancel command.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return cancelHandler{deps}.Handle
}

// cancelHandler aborts the current dialog and returns to the main menu.
type cancelHandler struct {
	deps HandlerDeps
}

func (h cancelHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "cancel")

	if update.Message == nil || update.Message.From == nil {
		return
	}

	prev := h.deps.Sessions.Get(update.Message.From.ID)
	h.deps.Sessions.Clear(update.Message.From.ID)
	log.DebugContext(ctx, "Dialog cancelled", "user_id", update.Message.From.ID, "state", prev.State)

	chatID := update.Message.Chat.ID
	send(ctx, b, log, chatID, h.deps.Config.Messages.Cancelled, nil)
	send(ctx, b, log, chatID, h.deps.Config.Messages.MainMenu, mainMenuKeyboard())
}
