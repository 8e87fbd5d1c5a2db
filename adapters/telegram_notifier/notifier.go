package telegram_notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdelaire/tgbridge/core"
)

const defaultBaseURL = "https://api.telegram.org"

// ErrNoChat is returned when neither the notification nor the notifier names a chat.
var ErrNoChat = errors.New("no chat to deliver to")

// Notifier sends messages through the Telegram Bot API sendMessage method.
type Notifier struct {
	botToken    string
	defaultChat int64
	client      *http.Client
	baseURL     string
}

// New creates a notifier. defaultChat receives notifications that carry no
// chat ID of their own; zero means none.
func New(botToken string, defaultChat int64) *Notifier {
	return &Notifier{
		botToken:    botToken,
		defaultChat: defaultChat,
		client:      &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultBaseURL,
	}
}

// WithBaseURL overrides the API base URL (for testing).
func (n *Notifier) WithBaseURL(baseURL string) *Notifier {
	n.baseURL = strings.TrimRight(baseURL, "/")
	return n
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) Send(ctx context.Context, notif core.Notification) error {
	chatID := notif.ChatID
	if chatID == 0 {
		chatID = n.defaultChat
	}
	if chatID == 0 {
		return ErrNoChat
	}

	text := notif.Text
	if len(text) > core.MaxTextLen {
		text = text[:core.MaxTextLen]
	}

	form := url.Values{
		"chat_id": {strconv.FormatInt(chatID, 10)},
		"text":    {text},
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Description string `json:"description"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("telegram API error %d: %s", resp.StatusCode, body.Description)
	}
	return nil
}
