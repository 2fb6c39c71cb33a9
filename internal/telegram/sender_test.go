package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"

	apperrors "github.com/edgard/affirmabot/internal/errors"
	"github.com/edgard/affirmabot/internal/logger"
	"github.com/edgard/affirmabot/internal/publisher"
)

type apiCall struct {
	method   string
	fields   map[string]string
	fileName string
	fileData string
}

// fakeAPI is a minimal Bot API answering every method with a message. It
// answers 400 when fail is set and 500 to the first transient calls.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []apiCall
	fail      bool
	transient int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	call := apiCall{method: r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:], fields: map[string]string{}}

	if err := r.ParseMultipartForm(1 << 20); err == nil {
		for k, v := range r.MultipartForm.Value {
			call.fields[k] = v[0]
		}
		if file, header, err := r.FormFile("photo"); err == nil {
			data, _ := io.ReadAll(file)
			call.fileName = header.Filename
			call.fileData = string(data)
			file.Close()
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	fail := f.fail
	transient := f.transient > 0
	if transient {
		f.transient--
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if transient {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`)
		return
	}
	if fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
		return
	}
	_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":-1001234,"type":"channel"}}}`)
}

func (f *fakeAPI) lastCall(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no Bot API calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func newTestSender(t *testing.T) (*ChannelSender, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := NewTelegramBot("123:TEST", logger.Discard(), bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	if err != nil {
		t.Fatalf("NewTelegramBot() error = %v", err)
	}
	sender := NewChannelSender(b, logger.Discard())
	sender.retry.Delay = time.Millisecond
	sender.retry.MaxDelay = time.Millisecond
	return sender, api
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestSendPhotoUpload(t *testing.T) {
	t.Parallel()
	sender, api := newTestSender(t)

	photo := publisher.Photo{Data: []byte("png-bytes"), Filename: "content_1.png"}
	if err := sender.SendPhoto(context.Background(), "-1001234", photo, "✨ I am calm."); err != nil {
		t.Fatalf("SendPhoto() error = %v", err)
	}

	call := api.lastCall(t)
	if call.method != "sendPhoto" {
		t.Errorf("method = %q, want sendPhoto", call.method)
	}
	if call.fields["chat_id"] != "-1001234" || call.fields["caption"] != "✨ I am calm." {
		t.Errorf("fields = %v", call.fields)
	}
	if call.fileName != "content_1.png" || call.fileData != "png-bytes" {
		t.Errorf("uploaded file = %q (%q)", call.fileName, call.fileData)
	}
}

func TestSendPhotoByFileID(t *testing.T) {
	t.Parallel()
	sender, api := newTestSender(t)

	if err := sender.SendPhoto(context.Background(), "@affirmations", publisher.Photo{FileID: "AgACAgIAAx"}, "caption"); err != nil {
		t.Fatalf("SendPhoto() error = %v", err)
	}

	call := api.lastCall(t)
	if call.fields["photo"] != "AgACAgIAAx" {
		t.Errorf("photo field = %q, want the file id", call.fields["photo"])
	}
	if call.fields["chat_id"] != "@affirmations" {
		t.Errorf("chat_id = %q, want @affirmations", call.fields["chat_id"])
	}
}

func TestSendTextAndFailures(t *testing.T) {
	t.Parallel()
	sender, api := newTestSender(t)
	ctx := context.Background()

	if err := sender.SendText(ctx, "-1001234", "Hello"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	if call := api.lastCall(t); call.method != "sendMessage" || call.fields["text"] != "Hello" {
		t.Errorf("call = %+v", call)
	}

	api.mu.Lock()
	api.fail = true
	api.mu.Unlock()

	before := api.count()
	if err := sender.SendText(ctx, "-1001234", "Hello"); !errors.Is(err, apperrors.ErrDelivery) {
		t.Errorf("SendText() error = %v, want delivery error", err)
	}
	if got := api.count() - before; got != 1 {
		t.Errorf("rejected message sent %d times, want 1 (no retry)", got)
	}
	if err := sender.SendPhoto(ctx, "-1001234", publisher.Photo{FileID: "x"}, ""); !errors.Is(err, apperrors.ErrDelivery) {
		t.Errorf("SendPhoto() error = %v, want delivery error", err)
	}
}

func TestSendPhotoRetriesServerErrors(t *testing.T) {
	t.Parallel()
	sender, api := newTestSender(t)
	api.mu.Lock()
	api.transient = 2
	api.mu.Unlock()

	photo := publisher.Photo{Data: []byte("png-bytes")}
	if err := sender.SendPhoto(context.Background(), "-1001234", photo, "caption"); err != nil {
		t.Fatalf("SendPhoto() error = %v", err)
	}

	if got := api.count(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
	if call := api.lastCall(t); call.fileData != "png-bytes" || call.fileName != "affirmation.png" {
		t.Errorf("retried upload = %q (%q), want full data", call.fileName, call.fileData)
	}
}

func TestChatID(t *testing.T) {
	t.Parallel()

	if got, ok := chatID("-1001234").(int64); !ok || got != -1001234 {
		t.Errorf("chatID(numeric) = %v", chatID("-1001234"))
	}
	if got, ok := chatID("@channel").(string); !ok || got != "@channel" {
		t.Errorf("chatID(username) = %v", chatID("@channel"))
	}
}
