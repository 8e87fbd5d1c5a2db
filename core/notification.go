package core

import "time"

// Notification represents an outbound message to a chat.
// A zero ChatID means the notifier's default chat.
type Notification struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}
