package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/bot/session"
	apperrors "github.com/edgard/affirmabot/internal/errors"
)

// NewInputHandler returns the default handler: it routes every message that
// is not a registered command according to the sender's session state.
func NewInputHandler(deps HandlerDeps) bot.HandlerFunc {
	return inputHandler{deps}.Handle
}

type inputHandler struct {
	deps HandlerDeps
}

// input is what the admin sent: text (or photo caption), the largest photo
// size if any, and whether it was /skip.
type input struct {
	text    string
	photoID string
	skip    bool
}

func readInput(msg *models.Message) input {
	in := input{text: strings.TrimSpace(msg.Text)}
	if len(msg.Photo) > 0 {
		in.photoID = msg.Photo[len(msg.Photo)-1].FileID
		in.text = strings.TrimSpace(msg.Caption)
	}
	if cmd, _, _ := strings.Cut(in.text, "@"); cmd == "/skip" {
		in.skip = true
		in.text = ""
	}
	return in
}

// reply carries the chat a dialog step answers in.
type reply struct {
	b      *bot.Bot
	log    *slog.Logger
	chatID int64
}

func (r reply) text(ctx context.Context, text string) {
	send(ctx, r.b, r.log, r.chatID, text, nil)
}

func (r reply) menu(ctx context.Context, text string) {
	send(ctx, r.b, r.log, r.chatID, text, mainMenuKeyboard())
}

func (h inputHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}

	userID := msg.From.ID
	s := h.deps.Sessions.Get(userID)
	in := readInput(msg)
	r := reply{
		b:      b,
		log:    h.deps.Logger.With("handler", "input", "user_id", userID, "state", s.State),
		chatID: msg.Chat.ID,
	}
	r.log.DebugContext(ctx, "Handling dialog input", "has_photo", in.photoID != "", "skip", in.skip)

	switch s.State {
	case session.AwaitingTime:
		h.addTime(ctx, r, userID, in)
	case session.AwaitingPrompt:
		h.saveSetting(ctx, r, userID, in, h.deps.Admin.SetPrompt)
	case session.AwaitingModel:
		h.saveSetting(ctx, r, userID, in, h.deps.Admin.SetModel)
	case session.AwaitingCaption:
		h.saveSetting(ctx, r, userID, in, h.deps.Admin.SetCaption)
	case session.AwaitingContentText:
		h.contentText(ctx, r, userID, in)
	case session.AwaitingContentPhoto:
		h.contentPhoto(ctx, r, userID, s, in)
	case session.AwaitingEditID:
		h.editID(ctx, r, userID, in)
	case session.AwaitingEditText:
		h.editText(ctx, r, userID, s, in)
	case session.AwaitingEditPhoto:
		h.editPhoto(ctx, r, userID, s, in)
	case session.AwaitingDeleteID:
		h.deleteID(ctx, r, userID, in)
	case session.AwaitingCustomMessage:
		h.customMessage(ctx, r, userID, in)
	default:
		r.menu(ctx, h.deps.Config.Messages.MainMenu)
	}
}

func (h inputHandler) addTime(ctx context.Context, r reply, userID int64, in input) {
	msgs := h.deps.Config.Messages

	entry, err := h.deps.Admin.AddScheduleEntry(ctx, in.text)
	switch {
	case errors.Is(err, apperrors.ErrInvalidTime):
		// Stay in the dialog until a valid time arrives.
		r.text(ctx, msgs.InvalidTime)
		return
	case errors.Is(err, apperrors.ErrDuplicateSchedule):
		h.deps.Sessions.Clear(userID)
		r.menu(ctx, fmt.Sprintf(msgs.DuplicateTime, in.text))
		return
	case err != nil:
		h.deps.Sessions.Clear(userID)
		r.log.ErrorContext(ctx, "Failed to add schedule entry", "error", err)
		r.menu(ctx, userError(msgs, err))
		return
	}

	h.deps.Sessions.Clear(userID)
	r.log.InfoContext(ctx, "Schedule entry added", "entry_id", entry.ID, "time_of_day", entry.TimeOfDay)
	r.menu(ctx, fmt.Sprintf(msgs.TimeAdded, entry.TimeOfDay))
}

func (h inputHandler) saveSetting(ctx context.Context, r reply, userID int64, in input, set func(context.Context, string) error) {
	if in.text == "" {
		r.text(ctx, h.deps.Config.Messages.Cancelled)
		h.deps.Sessions.Clear(userID)
		return
	}

	h.deps.Sessions.Clear(userID)
	if err := set(ctx, in.text); err != nil {
		r.log.ErrorContext(ctx, "Failed to save setting", "error", err)
		r.menu(ctx, userError(h.deps.Config.Messages, err))
		return
	}
	r.menu(ctx, h.deps.Config.Messages.SettingsSaved)
}

func (h inputHandler) contentText(ctx context.Context, r reply, userID int64, in input) {
	msgs := h.deps.Config.Messages
	if in.text == "" {
		r.text(ctx, msgs.AskContentText)
		return
	}

	// A photo with a caption completes the dialog in one step.
	if in.photoID != "" {
		h.addContent(ctx, r, userID, in.text, in.photoID)
		return
	}

	text := in.text
	h.deps.Sessions.Set(userID, session.Session{State: session.AwaitingContentPhoto, Text: &text})
	r.text(ctx, msgs.AskContentPhoto)
}

func (h inputHandler) contentPhoto(ctx context.Context, r reply, userID int64, s session.Session, in input) {
	if s.Text == nil {
		h.deps.Sessions.Await(userID, session.AwaitingContentText)
		r.text(ctx, h.deps.Config.Messages.AskContentText)
		return
	}

	switch {
	case in.photoID != "":
		h.addContent(ctx, r, userID, *s.Text, in.photoID)
	case in.skip:
		h.addContent(ctx, r, userID, *s.Text, "")
	default:
		r.text(ctx, h.deps.Config.Messages.AskContentPhoto)
	}
}

func (h inputHandler) addContent(ctx context.Context, r reply, userID int64, text, photoID string) {
	h.deps.Sessions.Clear(userID)

	id, err := h.deps.Admin.AddContent(ctx, text, photoID)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to add content", "error", err)
		r.menu(ctx, userError(h.deps.Config.Messages, err))
		return
	}

	r.log.InfoContext(ctx, "Content added", "content_id", id, "has_photo", photoID != "")
	r.menu(ctx, fmt.Sprintf(h.deps.Config.Messages.ContentAdded, id))
}

func (h inputHandler) editID(ctx context.Context, r reply, userID int64, in input) {
	msgs := h.deps.Config.Messages
	id, ok := parseID(in.text)
	if !ok {
		r.text(ctx, msgs.InvalidID)
		return
	}

	item, err := h.deps.Admin.GetContent(ctx, id)
	if err != nil {
		h.deps.Sessions.Clear(userID)
		if errors.Is(err, apperrors.ErrNotFound) {
			r.menu(ctx, fmt.Sprintf(msgs.NotFound, id))
			return
		}
		r.log.ErrorContext(ctx, "Failed to load content", "content_id", id, "error", err)
		r.menu(ctx, userError(msgs, err))
		return
	}

	h.deps.Sessions.Set(userID, session.Session{State: session.AwaitingEditText, ContentID: id})
	r.text(ctx, item.Text)
	r.text(ctx, fmt.Sprintf(msgs.AskEditText, id))
}

func (h inputHandler) editText(ctx context.Context, r reply, userID int64, s session.Session, in input) {
	if !in.skip && in.text == "" {
		r.text(ctx, fmt.Sprintf(h.deps.Config.Messages.AskEditText, s.ContentID))
		return
	}

	next := session.Session{State: session.AwaitingEditPhoto, ContentID: s.ContentID}
	if !in.skip {
		text := in.text
		next.Text = &text
	}
	h.deps.Sessions.Set(userID, next)
	r.text(ctx, h.deps.Config.Messages.AskEditPhoto)
}

func (h inputHandler) editPhoto(ctx context.Context, r reply, userID int64, s session.Session, in input) {
	msgs := h.deps.Config.Messages

	var photo *string
	switch {
	case in.photoID != "":
		photo = &in.photoID
	case in.skip:
	default:
		r.text(ctx, msgs.AskEditPhoto)
		return
	}

	h.deps.Sessions.Clear(userID)
	err := h.deps.Admin.UpdateContent(ctx, s.ContentID, s.Text, photo)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		r.menu(ctx, fmt.Sprintf(msgs.NotFound, s.ContentID))
	case err != nil:
		r.log.ErrorContext(ctx, "Failed to update content", "content_id", s.ContentID, "error", err)
		r.menu(ctx, userError(msgs, err))
	default:
		r.log.InfoContext(ctx, "Content updated", "content_id", s.ContentID, "text_changed", s.Text != nil, "photo_changed", photo != nil)
		r.menu(ctx, fmt.Sprintf(msgs.ContentUpdated, s.ContentID))
	}
}

func (h inputHandler) deleteID(ctx context.Context, r reply, userID int64, in input) {
	msgs := h.deps.Config.Messages
	id, ok := parseID(in.text)
	if !ok {
		r.text(ctx, msgs.InvalidID)
		return
	}

	h.deps.Sessions.Clear(userID)
	err := h.deps.Admin.DeleteContent(ctx, id)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		r.menu(ctx, fmt.Sprintf(msgs.NotFound, id))
	case err != nil:
		r.log.ErrorContext(ctx, "Failed to delete content", "content_id", id, "error", err)
		r.menu(ctx, userError(msgs, err))
	default:
		r.log.InfoContext(ctx, "Content deleted", "content_id", id)
		r.menu(ctx, fmt.Sprintf(msgs.ContentDeleted, id))
	}
}

func (h inputHandler) customMessage(ctx context.Context, r reply, userID int64, in input) {
	msgs := h.deps.Config.Messages
	if in.text == "" && in.photoID == "" {
		r.text(ctx, msgs.AskCustomMessage)
		return
	}

	h.deps.Sessions.Clear(userID)
	if err := h.deps.Admin.SendCustom(ctx, in.text, in.photoID); err != nil {
		r.log.ErrorContext(ctx, "Failed to send custom message", "error", err)
		r.menu(ctx, publishError(msgs, err))
		return
	}
	r.menu(ctx, msgs.CustomSent)
}
