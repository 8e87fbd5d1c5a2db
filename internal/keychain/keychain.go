package keychain

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "tgbridge"

	// BotTokenAccount holds the Telegram bot token.
	BotTokenAccount = "telegram_bot_token"
)

var ErrNotFound = errors.New("secret not found in keychain")

// Get retrieves a secret from the system keychain.
func Get(account string) (string, error) {
	v, err := keyring.Get(serviceName, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, serviceName, account)
	}
	if err != nil {
		return "", fmt.Errorf("keychain get %s: %w", account, err)
	}
	return v, nil
}

// Set stores a secret in the system keychain.
func Set(account, value string) error {
	if err := keyring.Set(serviceName, account, value); err != nil {
		return fmt.Errorf("keychain set %s: %w", account, err)
	}
	return nil
}

// BotToken returns fromEnv when non-empty and otherwise falls back to the
// keychain entry.
func BotToken(fromEnv string) (string, error) {
	if fromEnv != "" {
		return fromEnv, nil
	}
	token, err := Get(BotTokenAccount)
	if err != nil {
		return "", fmt.Errorf("TELEGRAM_BOT_TOKEN is not set: %w", err)
	}
	return token, nil
}
