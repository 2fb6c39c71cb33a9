// Package config provides configuration loading, validation, and management
// for the affirmation bot. Values come from defaults, an optional YAML file
// and BOT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// Config defines the application configuration parameters for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Render    RenderConfig    `mapstructure:"render"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// TelegramConfig holds bot credentials, the administrator and the target channel.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
	// ChannelID is either a numeric chat id or an @username.
	ChannelID string `mapstructure:"channel_id" validate:"required"`

	// BotInfo is filled at runtime from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

// GeminiConfig configures the text generation client used in generate mode.
// An empty APIKey disables generation.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model_name"          validate:"required"`
	Temperature       float32 `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`

	// BreakerFailures consecutive failed generations pause generation for BreakerCooldown.
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"min=0"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

// TaskConfig enables a static maintenance task on a cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig configures the publish scheduler and static tasks.
type SchedulerConfig struct {
	// Timezone is the reference zone all schedule entries are matched against.
	Timezone       string                `mapstructure:"timezone"        validate:"required"`
	PublishTimeout time.Duration         `mapstructure:"publish_timeout" validate:"min=1s,max=30m"`
	DefaultTimes   []string              `mapstructure:"default_times"`
	Tasks          map[string]TaskConfig `mapstructure:"tasks"`
}

// PublisherConfig configures the publish action.
type PublisherConfig struct {
	SeedContent bool `mapstructure:"seed_content"`
}

// RenderConfig configures the fallback image renderer.
type RenderConfig struct {
	CacheDir string  `mapstructure:"cache_dir" validate:"required"`
	FontPath string  `mapstructure:"font_path"`
	FontSize float64 `mapstructure:"font_size" validate:"gt=0"`
	Width    int     `mapstructure:"width"     validate:"min=100,max=4096"`
	Height   int     `mapstructure:"height"    validate:"min=100,max=4096"`
	Margin   int     `mapstructure:"margin"    validate:"min=0"`

	// TextRetention is how long generated-text cards stay on disk. Zero keeps them.
	TextRetention time.Duration `mapstructure:"text_retention" validate:"min=0"`
}

// MetricsConfig enables the prometheus endpoint when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// MessagesConfig holds user-facing texts of the admin chat surface.
type MessagesConfig struct {
	NotAuthorized    string `mapstructure:"not_authorized"`
	MainMenu         string `mapstructure:"main_menu"`
	Help             string `mapstructure:"help"`
	GeneralError     string `mapstructure:"general_error"`
	Cancelled        string `mapstructure:"cancelled"`
	AskTime          string `mapstructure:"ask_time"`
	InvalidTime      string `mapstructure:"invalid_time"`
	DuplicateTime    string `mapstructure:"duplicate_time"`
	TimeAdded        string `mapstructure:"time_added"`
	ScheduleEmpty    string `mapstructure:"schedule_empty"`
	ScheduleHeader   string `mapstructure:"schedule_header"`
	AskPrompt        string `mapstructure:"ask_prompt"`
	AskModel         string `mapstructure:"ask_model"`
	AskCaption       string `mapstructure:"ask_caption"`
	SettingsSaved    string `mapstructure:"settings_saved"`
	AskContentText   string `mapstructure:"ask_content_text"`
	AskContentPhoto  string `mapstructure:"ask_content_photo"`
	ContentAdded     string `mapstructure:"content_added"`
	ContentEmpty     string `mapstructure:"content_empty"`
	AskEditID        string `mapstructure:"ask_edit_id"`
	AskEditText      string `mapstructure:"ask_edit_text"`
	AskEditPhoto     string `mapstructure:"ask_edit_photo"`
	ContentUpdated   string `mapstructure:"content_updated"`
	AskDeleteID      string `mapstructure:"ask_delete_id"`
	ContentDeleted   string `mapstructure:"content_deleted"`
	InvalidID        string `mapstructure:"invalid_id"`
	NotFound         string `mapstructure:"not_found"`
	StatsEmpty       string `mapstructure:"stats_empty"`
	HistoryEmpty     string `mapstructure:"history_empty"`
	Publishing       string `mapstructure:"publishing"`
	Published        string `mapstructure:"published"`
	PublishFailed    string `mapstructure:"publish_failed"`
	NoContent        string `mapstructure:"no_content"`
	AskCustomMessage string `mapstructure:"ask_custom_message"`
	CustomSent       string `mapstructure:"custom_sent"`
}

// LoadConfig reads configuration from the YAML file at path (optional),
// overlays BOT_* environment variables, applies defaults and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			// Missing file is fine; defaults and environment still apply.
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		return fmt.Errorf("invalid configuration: unknown scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}

	if c.Render.Width <= 2*c.Render.Margin {
		return fmt.Errorf("invalid configuration: render margin %d leaves no room for text on a %dpx wide card",
			c.Render.Margin, c.Render.Width)
	}

	for name, task := range c.Scheduler.Tasks {
		if task.Enabled && task.Schedule == "" {
			return fmt.Errorf("invalid configuration: task %q is enabled but has no schedule", name)
		}
	}

	return nil
}

// Location returns the scheduler reference timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
