package core

import "time"

const (
	// MaxBodyBytes caps the request body buffered by the body parser.
	MaxBodyBytes = 1 << 20
	// MaxTextLen is the Telegram message length limit.
	MaxTextLen = 4096
	// MaxSourceLen caps callback source names.
	MaxSourceLen = 128
)

// Response is the JSON envelope returned by callback endpoints.
type Response struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	ID    string `json:"id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Webhook   string `json:"webhook,omitempty"`
}

// ErrorResponse is the body written by the terminal error handler.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
