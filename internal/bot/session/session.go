// Package session keeps the per-user conversation state of the admin chat.
// A session records which free-text input the bot is waiting for and the
// data collected so far in a multi-step dialog.
package session

import (
	"sync"
	"time"
)

// State is the input the bot expects next from a user.
type State int

const (
	Idle State = iota
	AwaitingTime
	AwaitingPrompt
	AwaitingModel
	AwaitingCaption
	AwaitingContentText
	AwaitingContentPhoto
	AwaitingEditID
	AwaitingEditText
	AwaitingEditPhoto
	AwaitingDeleteID
	AwaitingCustomMessage
)

var stateNames = [...]string{
	Idle:                  "idle",
	AwaitingTime:          "awaiting_time",
	AwaitingPrompt:        "awaiting_prompt",
	AwaitingModel:         "awaiting_model",
	AwaitingCaption:       "awaiting_caption",
	AwaitingContentText:   "awaiting_content_text",
	AwaitingContentPhoto:  "awaiting_content_photo",
	AwaitingEditID:        "awaiting_edit_id",
	AwaitingEditText:      "awaiting_edit_text",
	AwaitingEditPhoto:     "awaiting_edit_photo",
	AwaitingDeleteID:      "awaiting_delete_id",
	AwaitingCustomMessage: "awaiting_custom_message",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session is the dialog state of one user.
type Session struct {
	State State
	// Text is the affirmation text collected in AwaitingContentPhoto, or the
	// replacement text (nil keeps the old one) in AwaitingEditPhoto.
	Text *string
	// ContentID is the item being edited.
	ContentID int64

	updatedAt time.Time
}

// DefaultTTL is how long an abandoned dialog is kept.
const DefaultTTL = 30 * time.Minute

// Table holds the sessions of all users. It is safe for concurrent use.
type Table struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewTable creates an empty table. Sessions older than ttl are dropped on access.
func NewTable(ttl time.Duration) *Table {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Table{sessions: make(map[int64]Session), ttl: ttl, now: time.Now}
}

// Get returns the live session of userID. A missing or expired session is Idle.
func (t *Table) Get(userID int64) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if !ok {
		return Session{}
	}
	if t.now().Sub(s.updatedAt) > t.ttl {
		delete(t.sessions, userID)
		return Session{}
	}
	return s
}

// Set stores s for userID. Setting an Idle session clears it.
func (t *Table) Set(userID int64, s Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.State == Idle {
		delete(t.sessions, userID)
		return
	}
	s.updatedAt = t.now()
	t.sessions[userID] = s
}

// Await moves userID into state with no collected data.
func (t *Table) Await(userID int64, state State) {
	t.Set(userID, Session{State: state})
}

// Clear resets userID to Idle.
func (t *Table) Clear(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, userID)
}

// Len returns the number of stored sessions, expired ones included.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
