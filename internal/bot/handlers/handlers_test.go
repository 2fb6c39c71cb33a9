package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/admin"
	"github.com/edgard/affirmabot/internal/bot/session"
	"github.com/edgard/affirmabot/internal/config"
	"github.com/edgard/affirmabot/internal/database"
	"github.com/edgard/affirmabot/internal/logger"
)

const adminID = 42

// fakeAPI records the texts the bot sends and answers like the Bot API.
type fakeAPI struct {
	mu      sync.Mutex
	methods []string
	texts   []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseMultipartForm(1 << 20)

	f.mu.Lock()
	f.methods = append(f.methods, method)
	if text := r.FormValue("text"); text != "" {
		f.texts = append(f.texts, text)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "answerCallbackQuery", "setMyCommands":
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}
}

func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeAPI) called(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.methods {
		if m == method {
			return true
		}
	}
	return false
}

type nopScheduler struct{ rebuilds int }

func (s *nopScheduler) Rebuild(context.Context) error { s.rebuilds++; return nil }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context) (*database.PostHistory, error) {
	return &database.PostHistory{ID: 1}, nil
}
func (nopPublisher) SendCustom(context.Context, string, string) error { return nil }

type nopCards struct{}

func (nopCards) Invalidate(int64) error { return nil }

type harness struct {
	deps  HandlerDeps
	store database.Store
	sched *nopScheduler
	api   *fakeAPI
	bot   *bot.Bot
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := bot.New("123:TEST", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("bot.New() error = %v", err)
	}

	h := &harness{store: database.NewStore(db, logger.Discard()), sched: &nopScheduler{}, api: api, bot: b}
	cfg := &config.Config{
		Telegram:  config.TelegramConfig{AdminUserID: adminID},
		Scheduler: config.SchedulerConfig{Timezone: "UTC"},
		Messages:  config.DefaultMessages,
	}
	h.deps = HandlerDeps{
		Logger: logger.Discard(),
		Config: cfg,
		Admin: admin.NewService(admin.Deps{
			Logger:    logger.Discard(),
			Store:     h.store,
			Scheduler: h.sched,
			Publisher: nopPublisher{},
			Cards:     nopCards{},
		}),
		Sessions: session.NewTable(0),
	}
	return h
}

func (h *harness) say(t *testing.T, msg *models.Message) {
	t.Helper()
	if msg.From == nil {
		msg.From = &models.User{ID: adminID}
	}
	msg.Chat = models.Chat{ID: msg.From.ID}
	NewInputHandler(h.deps)(context.Background(), h.bot, &models.Update{Message: msg})
}

func (h *harness) press(t *testing.T, data string) {
	t.Helper()
	update := &models.Update{CallbackQuery: &models.CallbackQuery{
		ID:      "q1",
		From:    models.User{ID: adminID},
		Data:    data,
		Message: models.MaybeInaccessibleMessage{Message: &models.Message{ID: 9, Chat: models.Chat{ID: adminID}}},
	}}
	NewCallbackHandler(h.deps)(context.Background(), h.bot, update)
}

func TestAdminOnlyRejectsStrangers(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	called := false
	next := func(context.Context, *bot.Bot, *models.Update) { called = true }
	guarded := AdminOnly(h.deps)(next)

	stranger := &models.Update{Message: &models.Message{From: &models.User{ID: 7}, Chat: models.Chat{ID: 7}, Text: "/start"}}
	guarded(context.Background(), h.bot, stranger)
	if called {
		t.Fatal("handler ran for a non-admin user")
	}
	if got := h.api.lastText(); got != config.DefaultMessages.NotAuthorized {
		t.Errorf("reply = %q, want not-authorized message", got)
	}

	channelPost := &models.Update{ChannelPost: &models.Message{Text: "post"}}
	guarded(context.Background(), h.bot, channelPost)
	if called {
		t.Fatal("handler ran for a channel post")
	}

	owner := &models.Update{Message: &models.Message{From: &models.User{ID: adminID}, Chat: models.Chat{ID: adminID}}}
	guarded(context.Background(), h.bot, owner)
	if !called {
		t.Error("handler did not run for the admin")
	}
}

func TestAddContentDialog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	h.press(t, cbContentAdd)
	if got := h.deps.Sessions.Get(adminID).State; got != session.AwaitingContentText {
		t.Fatalf("state = %v, want awaiting_content_text", got)
	}

	h.say(t, &models.Message{Text: "I am strong."})
	if got := h.deps.Sessions.Get(adminID).State; got != session.AwaitingContentPhoto {
		t.Fatalf("state = %v, want awaiting_content_photo", got)
	}

	h.say(t, &models.Message{Text: "/skip"})
	if got := h.deps.Sessions.Get(adminID).State; got != session.Idle {
		t.Errorf("state = %v, want idle", got)
	}

	items, err := h.store.ListContent(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("ListContent() = %v, %v", items, err)
	}
	if items[0].Text != "I am strong." || items[0].ImageRef.Valid {
		t.Errorf("item = %+v, want text without image", items[0])
	}
	if got, want := h.api.lastText(), fmt.Sprintf(config.DefaultMessages.ContentAdded, items[0].ID); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}
}

func TestAddTimeDialogRetriesInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	h.press(t, cbScheduleAdd)
	h.say(t, &models.Message{Text: "25:00"})
	if got := h.deps.Sessions.Get(adminID).State; got != session.AwaitingTime {
		t.Fatalf("state after invalid time = %v, want awaiting_time", got)
	}

	h.say(t, &models.Message{Text: "7:30"})
	entries, err := h.store.ListSchedule(ctx)
	if err != nil || len(entries) != 1 || entries[0].TimeOfDay != "07:30" {
		t.Fatalf("ListSchedule() = %+v, %v", entries, err)
	}
	if h.sched.rebuilds != 1 {
		t.Errorf("rebuilds = %d, want 1", h.sched.rebuilds)
	}

	h.press(t, cbScheduleToggle+fmt.Sprint(entries[0].ID))
	entries, _ = h.store.ListSchedule(ctx)
	if entries[0].Enabled {
		t.Error("toggle button did not disable the entry")
	}
	if !h.api.called("editMessageText") || !h.api.called("answerCallbackQuery") {
		t.Errorf("methods = %v, want callback answered and menu edited", h.api.methods)
	}
}

func TestEditContentPhoto(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	id, err := h.store.AddContent(ctx, "I am patient.", "")
	if err != nil {
		t.Fatalf("AddContent() error = %v", err)
	}

	h.press(t, cbContentEdit)
	h.say(t, &models.Message{Text: "#999"})
	if got, want := h.api.lastText(), fmt.Sprintf(config.DefaultMessages.NotFound, 999); got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}

	h.press(t, cbContentEdit)
	h.say(t, &models.Message{Text: fmt.Sprint(id)})
	h.say(t, &models.Message{Text: "/skip"})
	h.say(t, &models.Message{Photo: []models.PhotoSize{{FileID: "thumb"}, {FileID: "full"}}})

	item, err := h.store.GetContent(ctx, id)
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if item.Text != "I am patient." || item.ImageRef.String != "full" {
		t.Errorf("item = %+v, want unchanged text and photo 'full'", item)
	}
}

func TestModeCallbackAndSettingDialog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := newHarness(t)

	h.press(t, cbSetMode+database.ModeGenerate)
	h.press(t, cbSetCaption)
	h.say(t, &models.Message{Text: "🌿 {text}"})

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		t.Fatalf("GetSettings() error = %v", err)
	}
	if settings[database.SettingMode] != database.ModeGenerate || settings[database.SettingCaption] != "🌿 {text}" {
		t.Errorf("settings = %v", settings)
	}
	if got := h.api.lastText(); got != config.DefaultMessages.SettingsSaved {
		t.Errorf("reply = %q", got)
	}
}

func TestIdleTextShowsMenu(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	h.say(t, &models.Message{Text: "hello"})
	if got := h.api.lastText(); got != config.DefaultMessages.MainMenu {
		t.Errorf("reply = %q, want main menu", got)
	}
}
