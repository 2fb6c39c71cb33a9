package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"
	DefaultDBPath   = "data/bot.db"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 1.0
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2
	DefaultGeminiBreakerFail = 3
	DefaultGeminiCooldown    = 5 * time.Minute

	DefaultTimezone       = "Europe/Moscow"
	DefaultPublishTimeout = 2 * time.Minute

	DefaultRenderCacheDir = "images"
	DefaultRenderFontSize = 32
	DefaultRenderWidth    = 800
	DefaultRenderHeight   = 600
	DefaultRenderMargin   = 50
	DefaultTextRetention  = 7 * 24 * time.Hour
)

// DefaultScheduleTimes are seeded into an empty schedule table on first start.
var DefaultScheduleTimes = []string{"09:00", "15:00", "21:00"}

// DefaultAffirmations are seeded into an empty content table when
// publisher.seed_content is set.
var DefaultAffirmations = []string{
	"I am worthy of love and respect.",
	"My life is full of joy and gratitude.",
	"I accept myself exactly as I am.",
	"Every day I become a better version of myself.",
	"I create my reality with my thoughts and actions.",
	"I deserve happiness and success.",
	"My possibilities are limitless.",
	"I believe in myself and my abilities.",
	"I attract positive change into my life.",
	"I am surrounded by love and support.",
}

// DefaultMessages holds the admin chat surface texts.
var DefaultMessages = MessagesConfig{
	NotAuthorized:    "🚫 You don't have access to this bot.",
	MainMenu:         "🌟 Affirmation bot admin panel\n\nEach affirmation is shown once per cycle, then the cycle starts over.\n\nChoose an action:",
	Help:             "ℹ️ Commands:\n/menu - open the admin panel\n/cancel - abort the current dialog\n/skip - skip an optional step\n/help - show this message",
	GeneralError:     "❌ Something went wrong. Please try again later.",
	Cancelled:        "↩️ Cancelled.",
	AskTime:          "⏰ Send the time in HH:MM format (for example 09:30):",
	InvalidTime:      "❌ Invalid time format. Try again, for example 09:30:",
	DuplicateTime:    "⚠️ Time %s is already in the schedule.",
	TimeAdded:        "✅ Time %s added to the schedule!",
	ScheduleEmpty:    "📋 The schedule is empty.",
	ScheduleHeader:   "⏰ Posting schedule (tap a time to toggle it):",
	AskPrompt:        "📝 Send the new generation prompt.\n\nCurrent prompt:\n%s",
	AskModel:         "🤖 Send the model name to use for generation.\n\nCurrent model: %s",
	AskCaption:       "💬 Send the caption template. Use {text} where the affirmation goes.\n\nCurrent caption:\n%s",
	SettingsSaved:    "✅ Settings updated!",
	AskContentText:   "✍️ Send the text of the new affirmation:",
	AskContentPhoto:  "📷 Now send a photo for this affirmation (or /skip to render one automatically):",
	ContentAdded:     "✅ Affirmation #%d added!",
	ContentEmpty:     "📋 There are no affirmations yet.",
	AskEditID:        "✏️ Send the ID of the affirmation to edit:",
	AskEditText:      "✏️ Send the new text for affirmation #%d (or /skip to keep it):",
	AskEditPhoto:     "📷 Send a new photo (or /skip to keep the current one):",
	ContentUpdated:   "✅ Affirmation #%d updated!",
	AskDeleteID:      "❌ Send the ID of the affirmation to delete:",
	ContentDeleted:   "✅ Affirmation #%d deleted!",
	InvalidID:        "❌ Invalid ID format. Try again.",
	NotFound:         "⚠️ Affirmation #%d not found.",
	StatsEmpty:       "📊 No statistics yet.",
	HistoryEmpty:     "📊 Nothing has been posted yet.",
	Publishing:       "⏳ Publishing an affirmation...",
	Published:        "✅ Affirmation published!",
	PublishFailed:    "❌ Publishing failed: %s",
	NoContent:        "⚠️ There are no affirmations to publish.",
	AskCustomMessage: "✉️ Send the text or a photo with a caption to publish in the channel:",
	CustomSent:       "✅ Message sent to the channel!",
}

// setDefaults registers every key so BOT_* environment variables bind to it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.channel_id", "")

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.system_instruction", "You write short, warm, positive affirmations in the present tense. Reply with the affirmation text only.")
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelay)
	v.SetDefault("gemini.breaker_failures", DefaultGeminiBreakerFail)
	v.SetDefault("gemini.breaker_cooldown", DefaultGeminiCooldown)

	v.SetDefault("scheduler.timezone", DefaultTimezone)
	v.SetDefault("scheduler.publish_timeout", DefaultPublishTimeout)
	v.SetDefault("scheduler.default_times", DefaultScheduleTimes)
	v.SetDefault("scheduler.tasks", map[string]any{
		"sql_maintenance": map[string]any{"enabled": true, "schedule": "0 4 * * 0"},
		"render_cleanup":  map[string]any{"enabled": true, "schedule": "30 4 * * *"},
	})

	v.SetDefault("publisher.seed_content", true)

	v.SetDefault("render.cache_dir", DefaultRenderCacheDir)
	v.SetDefault("render.font_path", "")
	v.SetDefault("render.font_size", DefaultRenderFontSize)
	v.SetDefault("render.width", DefaultRenderWidth)
	v.SetDefault("render.height", DefaultRenderHeight)
	v.SetDefault("render.margin", DefaultRenderMargin)
	v.SetDefault("render.text_retention", DefaultTextRetention)

	v.SetDefault("metrics.listen_addr", "")

	m := DefaultMessages
	v.SetDefault("messages.not_authorized", m.NotAuthorized)
	v.SetDefault("messages.main_menu", m.MainMenu)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.general_error", m.GeneralError)
	v.SetDefault("messages.cancelled", m.Cancelled)
	v.SetDefault("messages.ask_time", m.AskTime)
	v.SetDefault("messages.invalid_time", m.InvalidTime)
	v.SetDefault("messages.duplicate_time", m.DuplicateTime)
	v.SetDefault("messages.time_added", m.TimeAdded)
	v.SetDefault("messages.schedule_empty", m.ScheduleEmpty)
	v.SetDefault("messages.schedule_header", m.ScheduleHeader)
	v.SetDefault("messages.ask_prompt", m.AskPrompt)
	v.SetDefault("messages.ask_model", m.AskModel)
	v.SetDefault("messages.ask_caption", m.AskCaption)
	v.SetDefault("messages.settings_saved", m.SettingsSaved)
	v.SetDefault("messages.ask_content_text", m.AskContentText)
	v.SetDefault("messages.ask_content_photo", m.AskContentPhoto)
	v.SetDefault("messages.content_added", m.ContentAdded)
	v.SetDefault("messages.content_empty", m.ContentEmpty)
	v.SetDefault("messages.ask_edit_id", m.AskEditID)
	v.SetDefault("messages.ask_edit_text", m.AskEditText)
	v.SetDefault("messages.ask_edit_photo", m.AskEditPhoto)
	v.SetDefault("messages.content_updated", m.ContentUpdated)
	v.SetDefault("messages.ask_delete_id", m.AskDeleteID)
	v.SetDefault("messages.content_deleted", m.ContentDeleted)
	v.SetDefault("messages.invalid_id", m.InvalidID)
	v.SetDefault("messages.not_found", m.NotFound)
	v.SetDefault("messages.stats_empty", m.StatsEmpty)
	v.SetDefault("messages.history_empty", m.HistoryEmpty)
	v.SetDefault("messages.publishing", m.Publishing)
	v.SetDefault("messages.published", m.Published)
	v.SetDefault("messages.publish_failed", m.PublishFailed)
	v.SetDefault("messages.no_content", m.NoContent)
	v.SetDefault("messages.ask_custom_message", m.AskCustomMessage)
	v.SetDefault("messages.custom_sent", m.CustomSent)
}
