package telegram_bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/jdelaire/tgbridge/core"
)

const (
	longPollTimeout = 30
	httpTimeout     = 35 * time.Second
	connectRetry    = 5 * time.Second
)

// Bot is the Telegram implementation of core.Bot. In polling mode it is also
// a core.Receiver.
type Bot struct {
	token    string
	endpoint string
	client   *http.Client
	handler  core.MessageHandler
	logger   *slog.Logger

	mu  sync.Mutex
	api *tgbotapi.BotAPI
}

// New prepares a bot without touching the network. Authorization (getMe)
// happens on the first API call. endpoint is a format string taking the
// token and method, e.g. "https://api.telegram.org/bot%s/%s"; empty selects
// the public API.
func New(token, endpoint string, handler core.MessageHandler, logger *slog.Logger) *Bot {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &Bot{
		token:    token,
		endpoint: endpoint,
		client:   &http.Client{Timeout: httpTimeout},
		handler:  handler,
		logger:   logger,
	}
}

// UseLogger routes the Telegram library's own log output into logger.
func UseLogger(logger *slog.Logger) error {
	return tgbotapi.SetLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
}

// connect authorizes once. A failed attempt is not cached.
func (b *Bot) connect() (*tgbotapi.BotAPI, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.api != nil {
		return b.api, nil
	}
	api, err := tgbotapi.NewBotAPIWithClient(b.token, b.endpoint, b.client)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	b.logger.Info("authorized on telegram", "username", api.Self.UserName)
	b.api = api
	return api, nil
}

func (b *Bot) ProcessUpdate(_ context.Context, raw json.RawMessage) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(raw, &update); err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	b.dispatch(update)
	return nil
}

func (b *Bot) SetWebhook(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	api, err := b.connect()
	if err != nil {
		return err
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

func (b *Bot) DeleteWebhook(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api, err := b.connect()
	if err != nil {
		return err
	}
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// Start long-polls getUpdates until ctx is cancelled. Authorization is
// retried every connectRetry until it succeeds.
func (b *Bot) Start(ctx context.Context) error {
	api, err := b.connect()
	for err != nil {
		b.logger.Error("telegram authorization failed", "error", err, "retry_in", connectRetry)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(connectRetry):
		}
		api, err = b.connect()
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollTimeout
	updates := api.GetUpdatesChan(cfg)
	b.logger.Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			b.logger.Info("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(update)
		}
	}
}

func (b *Bot) dispatch(update tgbotapi.Update) {
	msg, ok := inbound(update)
	if !ok {
		b.logger.Debug("ignoring update without text message", "update_id", update.UpdateID)
		return
	}
	b.handler(msg)
}

func inbound(update tgbotapi.Update) (core.InboundMessage, bool) {
	m := update.Message
	if m == nil || m.Chat == nil || m.Text == "" {
		return core.InboundMessage{}, false
	}

	msg := core.InboundMessage{
		UpdateID:  int64(update.UpdateID),
		ChatID:    m.Chat.ID,
		Text:      m.Text,
		Timestamp: time.Unix(int64(m.Date), 0),
	}
	if m.From != nil {
		msg.UserID = m.From.ID
		msg.Username = m.From.UserName
	}
	return msg, true
}
