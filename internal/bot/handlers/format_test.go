package handlers

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/config"
	"github.com/edgard/affirmabot/internal/database"
	apperrors "github.com/edgard/affirmabot/internal/errors"
)

func TestParseCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data, action, arg string
	}{
		{"menu:main", "menu:main", ""},
		{"schedule:toggle:12", cbScheduleToggle, "12"},
		{"schedule:remove:3", cbScheduleRemove, "3"},
		{"settings:mode:generate", cbSetMode, "generate"},
		{"garbage", "garbage", ""},
	}
	for _, tc := range tests {
		action, arg := parseCallback(tc.data)
		if action != tc.action || arg != tc.arg {
			t.Errorf("parseCallback(%q) = %q, %q; want %q, %q", tc.data, action, arg, tc.action, tc.arg)
		}
	}
}

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := map[string]int64{"7": 7, " #12 ": 12, "0": 0, "-3": 0, "abc": 0, "": 0}
	for in, want := range tests {
		got, ok := parseID(in)
		if got != want || ok != (want > 0) {
			t.Errorf("parseID(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	if got := splitMessage("short", 100); len(got) != 1 || got[0] != "short" {
		t.Errorf("short text split = %q", got)
	}

	lines := strings.Repeat("0123456789\n", 10)
	chunks := splitMessage(lines, 25)
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5: %q", len(chunks), chunks)
	}
	for _, c := range chunks {
		if len([]rune(c)) > 25 {
			t.Errorf("chunk too long: %q", c)
		}
		if strings.HasSuffix(c, "\n") {
			t.Errorf("chunk keeps trailing newline: %q", c)
		}
	}

	long := strings.Repeat("я", 60)
	chunks = splitMessage(long, 25)
	if len(chunks) != 3 || strings.Join(chunks, "") != long {
		t.Errorf("long line split = %q", chunks)
	}
}

func exposure(id int64, count int) database.ContentExposure {
	return database.ContentExposure{ContentItem: database.ContentItem{ID: id, Text: "text"}, ShownCount: count, HasStat: true}
}

func TestCycleProgress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		stats       []database.ContentExposure
		shown, want int
	}{
		{"empty", nil, 0, 0},
		{"fresh cycle", []database.ContentExposure{exposure(1, 0), exposure(2, 0)}, 0, 2},
		{"mid cycle", []database.ContentExposure{exposure(1, 2), exposure(2, 1), exposure(3, 2)}, 2, 3},
		{"completed cycle", []database.ContentExposure{exposure(1, 1), exposure(2, 1)}, 0, 2},
	}
	for _, tc := range tests {
		shown, total := cycleProgress(tc.stats)
		if shown != tc.shown || total != tc.want {
			t.Errorf("%s: cycleProgress() = %d/%d, want %d/%d", tc.name, shown, total, tc.shown, tc.want)
		}
	}
}

func TestFormatStatsAndHistory(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("MSK", 3*60*60)
	shown := time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC)

	stat := exposure(4, 3)
	stat.LastShownAt = sql.NullTime{Time: shown, Valid: true}
	out := formatStats([]database.ContentExposure{stat, exposure(5, 2)}, loc)
	if !strings.Contains(out, "#4 · 3× · 2025-03-01 09:00") {
		t.Errorf("stats missing local last-shown time:\n%s", out)
	}
	if !strings.Contains(out, "#5 · 2× · never") || !strings.Contains(out, "1 of 2 shown") {
		t.Errorf("unexpected stats:\n%s", out)
	}

	history := formatHistory([]database.PostHistory{
		{ContentID: sql.NullInt64{Int64: 4, Valid: true}, Content: "I am calm.", PostedAt: shown},
		{Content: "Generated text", PostedAt: shown},
	}, loc)
	if !strings.Contains(history, "2025-03-01 09:00 · #4") || !strings.Contains(history, "· generated") {
		t.Errorf("unexpected history:\n%s", history)
	}
}

func TestScheduleKeyboard(t *testing.T) {
	t.Parallel()

	kb := scheduleKeyboard([]database.ScheduleEntry{
		{ID: 1, TimeOfDay: "09:00", Enabled: true},
		{ID: 2, TimeOfDay: "21:00", Enabled: false},
	})
	if len(kb.InlineKeyboard) != 4 {
		t.Fatalf("rows = %d, want 4", len(kb.InlineKeyboard))
	}

	first := kb.InlineKeyboard[0]
	if first[0].Text != "✅ 09:00" || first[0].CallbackData != "schedule:toggle:1" || first[1].CallbackData != "schedule:remove:1" {
		t.Errorf("first row = %+v", first)
	}
	if kb.InlineKeyboard[1][0].Text != "❌ 21:00" {
		t.Errorf("disabled entry label = %q", kb.InlineKeyboard[1][0].Text)
	}
}

func TestSettingsKeyboardMarksMode(t *testing.T) {
	t.Parallel()

	row := settingsKeyboard(database.ModeGenerate).InlineKeyboard[0]
	if strings.HasPrefix(row[0].Text, "•") || !strings.HasPrefix(row[1].Text, "•") {
		t.Errorf("mode row = %q, %q", row[0].Text, row[1].Text)
	}
	if row[1].CallbackData != cbSetMode+database.ModeGenerate {
		t.Errorf("mode callback = %q", row[1].CallbackData)
	}
}

func TestReadInput(t *testing.T) {
	t.Parallel()

	in := readInput(&models.Message{Text: "  hello  "})
	if in.text != "hello" || in.skip || in.photoID != "" {
		t.Errorf("text input = %+v", in)
	}

	in = readInput(&models.Message{Text: "/skip@affirmabot"})
	if !in.skip || in.text != "" {
		t.Errorf("skip input = %+v", in)
	}

	in = readInput(&models.Message{
		Caption: "caption",
		Photo:   []models.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	})
	if in.photoID != "large" || in.text != "caption" {
		t.Errorf("photo input = %+v", in)
	}
}

func TestUserErrorMessages(t *testing.T) {
	t.Parallel()
	msgs := config.DefaultMessages

	if got := userError(msgs, apperrors.NewInvalidTimeError("x", nil)); got != msgs.InvalidTime {
		t.Errorf("invalid time message = %q", got)
	}
	if got := userError(msgs, apperrors.NewValidationError("prompt must not be empty", nil)); !strings.Contains(got, "prompt must not be empty") {
		t.Errorf("validation message = %q", got)
	}
	if got := publishError(msgs, apperrors.NewNoContentError("empty")); got != msgs.NoContent {
		t.Errorf("no content message = %q", got)
	}
	if got := publishError(msgs, apperrors.NewDeliveryError("x", nil)); !strings.Contains(got, "channel rejected") {
		t.Errorf("delivery message = %q", got)
	}
}
