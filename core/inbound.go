package core

import "time"

// InboundMessage is a text message extracted from a bot update.
type InboundMessage struct {
	UpdateID  int64
	ChatID    int64
	UserID    int64
	Username  string
	Text      string
	Timestamp time.Time
}

// MessageHandler processes an inbound message.
type MessageHandler func(msg InboundMessage)
