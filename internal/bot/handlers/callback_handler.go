package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/bot/session"
	"github.com/edgard/affirmabot/internal/database"
)

// NewCallbackHandler returns the handler for inline keyboard presses.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

// callbackContext carries what every menu action needs.
type callbackContext struct {
	b      *bot.Bot
	log    *slog.Logger
	chatID int64
	userID int64
	msg    *models.Message
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}

	cc := callbackContext{
		b:      b,
		log:    h.deps.Logger.With("handler", "callback", "data", q.Data),
		chatID: q.From.ID,
		userID: q.From.ID,
		msg:    q.Message.Message,
	}
	if cc.msg != nil {
		cc.chatID = cc.msg.Chat.ID
	}

	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: q.ID}); err != nil {
		cc.log.WarnContext(ctx, "Failed to answer callback query", "error", err)
	}

	msgs := h.deps.Config.Messages
	action, arg := parseCallback(q.Data)

	switch action {
	case cbMainMenu:
		h.deps.Sessions.Clear(cc.userID)
		edit(ctx, b, cc.log, cc.chatID, cc.msg, msgs.MainMenu, mainMenuKeyboard())
	case cbSchedule:
		h.showSchedule(ctx, cc)
	case cbContent:
		h.showContentMenu(ctx, cc)
	case cbSettings:
		h.showSettings(ctx, cc)
	case cbStats:
		h.showStats(ctx, cc)
	case cbHistory:
		h.showHistory(ctx, cc)
	case cbPublish:
		h.publishNow(ctx, cc)
	case cbCustom:
		h.await(ctx, cc, session.AwaitingCustomMessage, msgs.AskCustomMessage)

	case cbScheduleAdd:
		h.await(ctx, cc, session.AwaitingTime, msgs.AskTime)
	case cbScheduleToggle, cbScheduleRemove:
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			cc.log.WarnContext(ctx, "Malformed schedule callback")
			return
		}
		if action == cbScheduleToggle {
			_, err = h.deps.Admin.ToggleScheduleEntry(ctx, id)
		} else {
			err = h.deps.Admin.RemoveScheduleEntry(ctx, id)
		}
		if err != nil {
			cc.log.ErrorContext(ctx, "Schedule change failed", "entry_id", id, "error", err)
			send(ctx, b, cc.log, cc.chatID, userError(msgs, err), nil)
			return
		}
		h.showSchedule(ctx, cc)

	case cbContentAdd:
		h.await(ctx, cc, session.AwaitingContentText, msgs.AskContentText)
	case cbContentList:
		h.listContent(ctx, cc)
	case cbContentEdit:
		h.await(ctx, cc, session.AwaitingEditID, msgs.AskEditID)
	case cbContentDelete:
		h.await(ctx, cc, session.AwaitingDeleteID, msgs.AskDeleteID)

	case cbSetPrompt, cbSetModel, cbSetCaption:
		h.askSetting(ctx, cc, action)
	case cbSetMode:
		if err := h.deps.Admin.SetMode(ctx, arg); err != nil {
			cc.log.ErrorContext(ctx, "Failed to set mode", "mode", arg, "error", err)
			send(ctx, b, cc.log, cc.chatID, userError(msgs, err), nil)
			return
		}
		cc.log.InfoContext(ctx, "Publishing mode changed", "mode", arg)
		h.showSettings(ctx, cc)

	default:
		cc.log.WarnContext(ctx, "Unknown callback data")
	}
}

func (h callbackHandler) await(ctx context.Context, cc callbackContext, state session.State, prompt string) {
	h.deps.Sessions.Await(cc.userID, state)
	send(ctx, cc.b, cc.log, cc.chatID, prompt, nil)
}

func (h callbackHandler) showSchedule(ctx context.Context, cc callbackContext) {
	entries, err := h.deps.Admin.ListSchedule(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to list schedule", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}

	text := h.deps.Config.Messages.ScheduleHeader
	if len(entries) == 0 {
		text = h.deps.Config.Messages.ScheduleEmpty
	}
	edit(ctx, cc.b, cc.log, cc.chatID, cc.msg, text, scheduleKeyboard(entries))
}

func (h callbackHandler) showContentMenu(ctx context.Context, cc callbackContext) {
	items, err := h.deps.Admin.ListContent(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to list content", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	edit(ctx, cc.b, cc.log, cc.chatID, cc.msg, fmt.Sprintf("📚 Affirmations in rotation: %d", len(items)), contentKeyboard())
}

func (h callbackHandler) listContent(ctx context.Context, cc callbackContext) {
	items, err := h.deps.Admin.ListContent(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to list content", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	if len(items) == 0 {
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.ContentEmpty, contentKeyboard())
		return
	}
	sendLong(ctx, cc.b, cc.log, cc.chatID, formatContentList(items), contentKeyboard())
}

func (h callbackHandler) showSettings(ctx context.Context, cc callbackContext) {
	settings, err := h.deps.Admin.Settings(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to load settings", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	edit(ctx, cc.b, cc.log, cc.chatID, cc.msg, formatSettings(settings), settingsKeyboard(settings[database.SettingMode]))
}

func (h callbackHandler) askSetting(ctx context.Context, cc callbackContext, action string) {
	settings, err := h.deps.Admin.Settings(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to load settings", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}

	msgs := h.deps.Config.Messages
	switch action {
	case cbSetPrompt:
		h.await(ctx, cc, session.AwaitingPrompt, fmt.Sprintf(msgs.AskPrompt, settings[database.SettingPrompt]))
	case cbSetModel:
		model := settings[database.SettingModel]
		if model == "" {
			model = h.deps.Config.Gemini.ModelName
		}
		h.await(ctx, cc, session.AwaitingModel, fmt.Sprintf(msgs.AskModel, model))
	case cbSetCaption:
		h.await(ctx, cc, session.AwaitingCaption, fmt.Sprintf(msgs.AskCaption, settings[database.SettingCaption]))
	}
}

func (h callbackHandler) showStats(ctx context.Context, cc callbackContext) {
	stats, err := h.deps.Admin.GetStats(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to load statistics", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	if len(stats) == 0 {
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.StatsEmpty, mainMenuKeyboard())
		return
	}
	sendLong(ctx, cc.b, cc.log, cc.chatID, formatStats(stats, h.deps.Config.Location()), mainMenuKeyboard())
}

func (h callbackHandler) showHistory(ctx context.Context, cc callbackContext) {
	records, err := h.deps.Admin.History(ctx, 10)
	if err != nil {
		cc.log.ErrorContext(ctx, "Failed to load history", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.GeneralError, nil)
		return
	}
	if len(records) == 0 {
		send(ctx, cc.b, cc.log, cc.chatID, h.deps.Config.Messages.HistoryEmpty, mainMenuKeyboard())
		return
	}
	sendLong(ctx, cc.b, cc.log, cc.chatID, formatHistory(records, h.deps.Config.Location()), mainMenuKeyboard())
}

func (h callbackHandler) publishNow(ctx context.Context, cc callbackContext) {
	msgs := h.deps.Config.Messages
	send(ctx, cc.b, cc.log, cc.chatID, msgs.Publishing, nil)

	record, err := h.deps.Admin.PublishNow(ctx)
	if err != nil {
		cc.log.ErrorContext(ctx, "Manual publish failed", "error", err)
		send(ctx, cc.b, cc.log, cc.chatID, publishError(msgs, err), mainMenuKeyboard())
		return
	}

	cc.log.InfoContext(ctx, "Manual publish succeeded", "history_id", record.ID)
	send(ctx, cc.b, cc.log, cc.chatID, msgs.Published, mainMenuKeyboard())
}
