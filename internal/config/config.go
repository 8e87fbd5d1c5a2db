package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ModeWebhook = "webhook"
	ModePolling = "polling"

	defaultAPIEndpoint = "https://api.telegram.org/bot%s/%s"
)

var (
	ErrInvalidPort      = errors.New("invalid port")
	ErrInvalidBaseURL   = errors.New("invalid callback base URL")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidEndpoint  = errors.New("invalid telegram API endpoint")
)

// Config is read once at startup and never changed afterwards.
type Config struct {
	Port int `envconfig:"PORT" default:"3000"`
	// CallbackBaseURL is the public base URL. Setting it enables webhook mode.
	CallbackBaseURL string `envconfig:"CALLBACK_BASE_URL"`

	BotToken       string  `envconfig:"TELEGRAM_BOT_TOKEN"`
	APIEndpoint    string  `envconfig:"TELEGRAM_API_ENDPOINT" default:"https://api.telegram.org/bot%s/%s"`
	NotifyChatID   int64   `envconfig:"NOTIFY_CHAT_ID"`
	AllowedChatIDs []int64 `envconfig:"ALLOWED_CHAT_IDS"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	MetricsEnabled      bool `envconfig:"METRICS_ENABLED" default:"false"`
	HealthReportWebhook bool `envconfig:"HEALTH_REPORT_WEBHOOK" default:"false"`
}

// Load reads the given env files (".env" when none are given) into the
// process environment without overriding variables that are already set,
// then decodes and validates the environment. Missing env files are ignored.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks every field that can be checked without the network.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("%w: %d", ErrInvalidPort, c.Port))
	}
	if c.CallbackBaseURL != "" {
		u, err := url.Parse(c.CallbackBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.CallbackBaseURL))
		}
	}
	if strings.Count(c.APIEndpoint, "%s") != 2 {
		errs = append(errs, fmt.Errorf("%w: %q needs two %%s verbs", ErrInvalidEndpoint, c.APIEndpoint))
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat))
	}

	return errors.Join(errs...)
}

// Mode reports how the bot receives updates.
func (c Config) Mode() string {
	if c.CallbackBaseURL != "" {
		return ModeWebhook
	}
	return ModePolling
}

// APIBaseURL is the Bot API root derived from APIEndpoint, for clients that
// build method URLs themselves.
func (c Config) APIBaseURL() string {
	endpoint := c.APIEndpoint
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	return strings.TrimSuffix(endpoint, "/bot%s/%s")
}

func (c Config) String() string {
	redacted := c
	if redacted.BotToken != "" {
		redacted.BotToken = "***REDACTED***"
	}
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(redacted))
}
