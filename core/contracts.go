package core

import (
	"context"
	"encoding/json"
)

// Bot is the bot platform client the gateway forwards to.
type Bot interface {
	// ProcessUpdate handles one update delivered to the webhook route.
	ProcessUpdate(ctx context.Context, update json.RawMessage) error
	SetWebhook(ctx context.Context, url string) error
	DeleteWebhook(ctx context.Context) error
}

// Receiver pulls updates from an external source. Bots that support polling
// mode implement it.
type Receiver interface {
	Start(ctx context.Context) error
}

// Notifier delivers notifications to an external channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
