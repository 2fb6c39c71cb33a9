package publisher_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/logger"
	"github.com/edgard/affirmabot/internal/publisher"
	"github.com/edgard/affirmabot/internal/render"
	"github.com/edgard/affirmabot/internal/rotation"
)

type sentPost struct {
	channel string
	photo   publisher.Photo
	caption string
	text    string
}

type fakeSender struct {
	mu     sync.Mutex
	err    error
	sent   []sentPost
	onSend func()
}

func (f *fakeSender) SendPhoto(_ context.Context, channel string, photo publisher.Photo, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentPost{channel: channel, photo: photo, caption: caption})
	if f.onSend != nil {
		f.onSend()
	}
	return nil
}

func (f *fakeSender) SendText(_ context.Context, channel, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentPost{channel: channel, text: text})
	return nil
}

type fakeGenerator struct {
	text        string
	err         error
	gotPrompt   string
	gotModel    string
	generations int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt, model string) (string, error) {
	f.generations++
	f.gotPrompt, f.gotModel = prompt, model
	return f.text, f.err
}

type stubImager struct{}

func (stubImager) Render(text string) ([]byte, error) { return []byte("png:" + text), nil }

type fixture struct {
	store  database.Store
	sender *fakeSender
	gen    *fakeGenerator
	pub    *publisher.Publisher
}

func newFixture(t *testing.T, withGenerator bool) *fixture {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "publisher.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })

	log := logger.Discard()
	store := database.NewStore(db, log)
	f := &fixture{store: store, sender: &fakeSender{}, gen: &fakeGenerator{text: "I shine."}}

	deps := publisher.Deps{
		Logger:    log,
		Store:     store,
		Selector:  rotation.NewSelector(store, log),
		Cards:     render.NewCache(t.TempDir(), stubImager{}, log),
		Sender:    f.sender,
		ChannelID: "@channel",
	}
	if withGenerator {
		deps.Generator = f.gen
	}
	f.pub = publisher.New(deps)
	return f
}

func TestPublishRotationUsesStoredPhotoOrRender(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, false)

	withPhoto, _ := f.store.AddContent(ctx, "With photo", "file-abc")
	rendered, _ := f.store.AddContent(ctx, "Rendered", "")

	got := map[int64]publisher.Photo{}
	for range 2 {
		rec, err := f.pub.Publish(ctx)
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if rec.ID == 0 || !rec.ContentID.Valid {
			t.Errorf("record = %+v, want committed history with content id", rec)
		}
		got[rec.ContentID.Int64] = f.sender.sent[len(f.sender.sent)-1].photo
	}

	if got[withPhoto].FileID != "file-abc" || got[withPhoto].Data != nil {
		t.Errorf("photo for stored image = %+v, want file id", got[withPhoto])
	}
	if string(got[rendered].Data) != "png:Rendered" {
		t.Errorf("photo for rendered item = %+v, want rendered card", got[rendered])
	}
	if f.sender.sent[0].channel != "@channel" || !strings.HasPrefix(f.sender.sent[0].caption, "✨ ") {
		t.Errorf("first post = %+v, want default caption on @channel", f.sender.sent[0])
	}

	history, _ := f.store.GetPostHistory(ctx, 10)
	if len(history) != 2 {
		t.Errorf("history rows = %d, want 2", len(history))
	}
}

func TestPublishDeliveryFailureRecordsNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, false)
	if _, err := f.store.AddContent(ctx, "A", ""); err != nil {
		t.Fatalf("AddContent() error = %v", err)
	}
	f.sender.err = errors.New("telegram: 502 bad gateway")

	_, err := f.pub.Publish(ctx)
	if !errors.Is(err, apperrors.ErrDelivery) {
		t.Fatalf("Publish() error = %v, want delivery failure", err)
	}

	history, _ := f.store.GetPostHistory(ctx, 10)
	if len(history) != 0 {
		t.Errorf("history rows = %d, want 0", len(history))
	}
	exposure, _ := f.store.ListExposure(ctx)
	if len(exposure) != 1 || exposure[0].ShownCount != 0 || exposure[0].LastShownAt.Valid {
		t.Errorf("exposure = %+v, want untouched", exposure)
	}

	// The next attempt succeeds without manual intervention.
	f.sender.err = nil
	if _, err := f.pub.Publish(ctx); err != nil {
		t.Fatalf("Publish() after recovery error = %v", err)
	}
}

func TestPublishEmptyStore(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	if _, err := f.pub.Publish(context.Background()); !errors.Is(err, apperrors.ErrNoContent) {
		t.Fatalf("Publish() error = %v, want no content", err)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("sent %d posts, want 0", len(f.sender.sent))
	}
}

func TestPublishGenerateMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, true)

	_ = f.store.SetSetting(ctx, database.SettingMode, database.ModeGenerate)
	_ = f.store.SetSetting(ctx, database.SettingPrompt, "write an affirmation")
	_ = f.store.SetSetting(ctx, database.SettingModel, "gemini-custom")
	_ = f.store.SetSetting(ctx, database.SettingCaption, "Today: {text}")

	rec, err := f.pub.Publish(ctx)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if f.gen.gotPrompt != "write an affirmation" || f.gen.gotModel != "gemini-custom" {
		t.Errorf("generator got prompt=%q model=%q", f.gen.gotPrompt, f.gen.gotModel)
	}
	if rec.Content != "I shine." || rec.ContentID.Valid || !rec.ImagePath.Valid {
		t.Errorf("record = %+v", rec)
	}
	if post := f.sender.sent[0]; post.caption != "Today: I shine." || string(post.photo.Data) != "png:I shine." {
		t.Errorf("post = %+v", post)
	}
}

func TestPublishRecordsPostDeliveredAtDeadline(t *testing.T) {
	t.Parallel()

	for _, mode := range []string{database.ModeRotation, database.ModeGenerate} {
		t.Run(mode, func(t *testing.T) {
			t.Parallel()
			bg := context.Background()
			f := newFixture(t, true)
			_ = f.store.SetSetting(bg, database.SettingMode, mode)
			if mode == database.ModeRotation {
				if _, err := f.store.AddContent(bg, "I am here.", ""); err != nil {
					t.Fatalf("AddContent() error = %v", err)
				}
			}

			ctx, cancel := context.WithCancel(bg)
			defer cancel()
			f.sender.onSend = cancel

			if _, err := f.pub.Publish(ctx); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			history, err := f.store.GetPostHistory(bg, 10)
			if err != nil || len(history) != 1 {
				t.Errorf("history = %+v, %v; want the delivered post recorded", history, err)
			}
		})
	}
}

func TestPublishGenerateFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("generator error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, true)
		_ = f.store.SetSetting(ctx, database.SettingMode, database.ModeGenerate)
		f.gen.err = errors.New("quota exceeded")

		if _, err := f.pub.Publish(ctx); !errors.Is(err, apperrors.ErrGeneration) {
			t.Fatalf("Publish() error = %v, want generation failure", err)
		}
		history, _ := f.store.GetPostHistory(ctx, 10)
		if len(history) != 0 || len(f.sender.sent) != 0 {
			t.Errorf("history=%d sent=%d after failed generation, want 0/0", len(history), len(f.sender.sent))
		}
	})

	t.Run("generation not configured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, false)
		_ = f.store.SetSetting(ctx, database.SettingMode, database.ModeGenerate)

		if _, err := f.pub.Publish(ctx); !errors.Is(err, apperrors.ErrGeneration) {
			t.Fatalf("Publish() error = %v, want generation failure", err)
		}
	})
}

func TestSendCustom(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, false)

	if err := f.pub.SendCustom(ctx, "Hello channel", ""); err != nil {
		t.Fatalf("SendCustom(text) error = %v", err)
	}
	if err := f.pub.SendCustom(ctx, "Look", "photo-1"); err != nil {
		t.Fatalf("SendCustom(photo) error = %v", err)
	}
	if err := f.pub.SendCustom(ctx, "  ", ""); !errors.Is(err, apperrors.ErrValidation) {
		t.Errorf("SendCustom(empty) error = %v, want validation", err)
	}

	if len(f.sender.sent) != 2 || f.sender.sent[0].text != "Hello channel" ||
		f.sender.sent[1].photo.FileID != "photo-1" || f.sender.sent[1].caption != "Look" {
		t.Errorf("sent = %+v", f.sender.sent)
	}
	history, _ := f.store.GetPostHistory(ctx, 10)
	if len(history) != 0 {
		t.Errorf("custom messages recorded in history: %d", len(history))
	}
}

func TestFormatCaption(t *testing.T) {
	t.Parallel()

	tests := []struct {
		template, text, want string
	}{
		{"✨ {text}", "I am calm", "✨ I am calm"},
		{"", "I am calm", "I am calm"},
		{"Daily affirmation", "I am calm", "Daily affirmation\n\nI am calm"},
		{"{text} / {text}", "x", "x / x"},
	}
	for _, tc := range tests {
		if got := publisher.FormatCaption(tc.template, tc.text); got != tc.want {
			t.Errorf("FormatCaption(%q, %q) = %q, want %q", tc.template, tc.text, got, tc.want)
		}
	}

	long := strings.Repeat("я", 2000)
	if got := []rune(publisher.FormatCaption("{text}", long)); len(got) != 1024 {
		t.Errorf("long caption has %d runes, want 1024", len(got))
	}
}
