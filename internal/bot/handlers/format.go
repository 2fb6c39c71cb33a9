package handlers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgard/affirmabot/internal/database"
	"github.com/edgard/affirmabot/internal/logger"
)

const (
	// maxMessageRunes stays below the 4096 character limit of a Telegram message.
	maxMessageRunes = 4000
	previewRunes    = 80
	timeLayout      = "2006-01-02 15:04"
)

func formatContentList(items []database.ContentItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 Affirmations (%d):\n", len(items))
	for _, item := range items {
		marker := ""
		if item.ImageRef.Valid && item.ImageRef.String != "" {
			marker = " 📷"
		}
		fmt.Fprintf(&sb, "\n#%d%s %s", item.ID, marker, logger.Truncate(item.Text, previewRunes))
	}
	return sb.String()
}

// cycleProgress reports how many items were already shown in the current
// rotation cycle. Items still at the minimum count are the unseen ones.
func cycleProgress(stats []database.ContentExposure) (shown, total int) {
	if len(stats) == 0 {
		return 0, 0
	}
	minCount, maxCount := stats[0].ShownCount, stats[0].ShownCount
	for _, s := range stats[1:] {
		minCount = min(minCount, s.ShownCount)
		maxCount = max(maxCount, s.ShownCount)
	}
	if minCount == maxCount {
		return 0, len(stats)
	}
	for _, s := range stats {
		if s.ShownCount > minCount {
			shown++
		}
	}
	return shown, len(stats)
}

func formatStats(stats []database.ContentExposure, loc *time.Location) string {
	shown, total := cycleProgress(stats)

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Statistics\nCurrent cycle: %d of %d shown\n", shown, total)
	for _, s := range stats {
		last := "never"
		if s.LastShownAt.Valid {
			last = s.LastShownAt.Time.In(loc).Format(timeLayout)
		}
		fmt.Fprintf(&sb, "\n#%d · %d× · %s\n%s\n", s.ID, s.ShownCount, last, logger.Truncate(s.Text, previewRunes))
	}
	return sb.String()
}

func formatHistory(records []database.PostHistory, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("🗂 Latest posts:\n")
	for _, r := range records {
		source := "generated"
		if r.ContentID.Valid {
			source = "#" + strconv.FormatInt(r.ContentID.Int64, 10)
		}
		fmt.Fprintf(&sb, "\n%s · %s\n%s\n", r.PostedAt.In(loc).Format(timeLayout), source, logger.Truncate(r.Content, previewRunes))
	}
	return sb.String()
}

func formatSettings(settings map[string]string) string {
	model := settings[database.SettingModel]
	if model == "" {
		model = "default"
	}
	return fmt.Sprintf("⚙️ Settings\n\nMode: %s\nModel: %s\nCaption: %s\nPrompt: %s",
		settings[database.SettingMode],
		model,
		settings[database.SettingCaption],
		logger.Truncate(settings[database.SettingPrompt], 200),
	)
}

// splitMessage cuts text into chunks of at most limit runes, preferring line breaks.
func splitMessage(text string, limit int) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			chunks = append(chunks, string(runes[:limit]))
			runes = runes[limit:]
		}
		if currentLen+len(runes) > limit {
			flush()
		}
		current.WriteString(string(runes))
		currentLen += len(runes)
	}
	flush()

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimRight(c, "\n"); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// parseID reads a positive content id typed by the admin, with or without '#'.
func parseID(text string) (int64, bool) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "#")
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
