package database

import (
	"database/sql"
	"time"
)

// Setting keys stored in the settings table.
const (
	SettingMode    = "mode"
	SettingPrompt  = "prompt"
	SettingModel   = "model"
	SettingCaption = "caption"
)

// Publish modes accepted by the mode setting.
const (
	ModeRotation = "rotation"
	ModeGenerate = "generate"
)

// ContentItem is a publishable piece of content: a short text with an optional image.
// ImageRef holds a Telegram file_id when the administrator attached a photo.
type ContentItem struct {
	ID        int64          `db:"id"`
	Text      string         `db:"text"`
	ImageRef  sql.NullString `db:"image_ref"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// ExposureStat tracks how often a content item was published in the current cycle.
type ExposureStat struct {
	ContentID   int64        `db:"content_id"`
	ShownCount  int          `db:"shown_count"`
	LastShownAt sql.NullTime `db:"last_shown_at"`
}

// ContentExposure joins a content item with its exposure statistics.
// HasStat is false when no stats row exists yet.
type ContentExposure struct {
	ContentItem

	ShownCount  int          `db:"shown_count"`
	LastShownAt sql.NullTime `db:"last_shown_at"`
	HasStat     bool         `db:"has_stat"`
}

// PostHistory records a successful publication.
type PostHistory struct {
	ID        int64          `db:"id"`
	ContentID sql.NullInt64  `db:"content_id"`
	Content   string         `db:"content"`
	ImagePath sql.NullString `db:"image_path"`
	PostedAt  time.Time      `db:"posted_at"`
}

// ScheduleEntry is a daily publish time ("HH:MM" in the scheduler timezone).
type ScheduleEntry struct {
	ID        int64     `db:"id"`
	TimeOfDay string    `db:"time_of_day"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
}

// SelectionCommit describes the state change recorded after a successful publish
// in rotation mode.
type SelectionCommit struct {
	ContentID int64
	// ResetCycle zeroes every shown_count before incrementing the chosen item.
	ResetCycle bool
	ShownAt    time.Time
	// History is inserted in the same transaction when non-nil.
	History *PostHistory
}
