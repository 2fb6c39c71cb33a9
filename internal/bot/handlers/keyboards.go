package handlers

import (
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/affirmabot/internal/database"
)

// Callback data. Entries ending in ':' take an argument.
const (
	cbMainMenu = "menu:main"
	cbSchedule = "menu:schedule"
	cbContent  = "menu:content"
	cbSettings = "menu:settings"
	cbStats    = "menu:stats"
	cbHistory  = "menu:history"
	cbPublish  = "publish:now"
	cbCustom   = "custom:start"

	cbScheduleAdd    = "schedule:add"
	cbScheduleToggle = "schedule:toggle:"
	cbScheduleRemove = "schedule:remove:"

	cbContentAdd    = "content:add"
	cbContentList   = "content:list"
	cbContentEdit   = "content:edit"
	cbContentDelete = "content:delete"

	cbSetPrompt  = "settings:prompt"
	cbSetModel   = "settings:model"
	cbSetCaption = "settings:caption"
	cbSetMode    = "settings:mode:"
)

// parseCallback splits data into the action ("schedule:toggle:") and its
// argument ("12"). Data without an argument is returned as is.
func parseCallback(data string) (action, arg string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 3 {
		return data, ""
	}
	return parts[0] + ":" + parts[1] + ":", parts[2]
}

func button(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func backRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{button("⬅️ Back", cbMainMenu)}
}

func mainMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("⏰ Schedule", cbSchedule), button("📚 Affirmations", cbContent)},
		{button("⚙️ Settings", cbSettings), button("📊 Statistics", cbStats)},
		{button("🗂 History", cbHistory), button("🚀 Publish now", cbPublish)},
		{button("✉️ Own message", cbCustom)},
	}}
}

// scheduleKeyboard has one row per entry: a toggle button showing the state
// and a remove button.
func scheduleKeyboard(entries []database.ScheduleEntry) *models.InlineKeyboardMarkup {
	rows := make([][]models.InlineKeyboardButton, 0, len(entries)+2)
	for _, e := range entries {
		mark := "❌"
		if e.Enabled {
			mark = "✅"
		}
		id := strconv.FormatInt(e.ID, 10)
		rows = append(rows, []models.InlineKeyboardButton{
			button(mark+" "+e.TimeOfDay, cbScheduleToggle+id),
			button("🗑", cbScheduleRemove+id),
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{button("➕ Add time", cbScheduleAdd)}, backRow())
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func contentKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("➕ Add", cbContentAdd), button("📋 List", cbContentList)},
		{button("✏️ Edit", cbContentEdit), button("🗑 Delete", cbContentDelete)},
		backRow(),
	}}
}

func settingsKeyboard(mode string) *models.InlineKeyboardMarkup {
	modeButton := func(label, value string) models.InlineKeyboardButton {
		if value == mode {
			label = "• " + label
		}
		return button(label, cbSetMode+value)
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{modeButton("🔁 Rotation", database.ModeRotation), modeButton("🤖 Generate", database.ModeGenerate)},
		{button("📝 Prompt", cbSetPrompt), button("🧠 Model", cbSetModel)},
		{button("💬 Caption", cbSetCaption)},
		backRow(),
	}}
}
