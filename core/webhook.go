package core

import (
	"context"
	"fmt"
	"strings"
)

// WebhookState records how the startup webhook registration ended.
type WebhookState int32

const (
	WebhookPending WebhookState = iota
	WebhookPolling
	WebhookRegistered
	WebhookFailed
)

func (s WebhookState) String() string {
	switch s {
	case WebhookPolling:
		return "polling"
	case WebhookRegistered:
		return "registered"
	case WebhookFailed:
		return "failed"
	default:
		return "pending"
	}
}

// WebhookURL is the public address the platform pushes updates to.
func WebhookURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/webhook"
}

// SetupWebhook registers the public webhook URL when a callback base URL is
// configured, removing any previous registration first. The first failure
// ends setup; it is logged and leaves the server running. Nothing is retried.
func (s *Server) SetupWebhook(ctx context.Context) WebhookState {
	state := s.setupWebhook(ctx)
	s.state.Store(int32(state))
	s.metrics.observeRegistration(state)
	return state
}

func (s *Server) setupWebhook(ctx context.Context) WebhookState {
	if s.opts.CallbackBaseURL == "" {
		s.logger.Info("bot is running in polling mode")
		s.logger.Info("set CALLBACK_BASE_URL to enable webhook mode")
		return WebhookPolling
	}

	url := WebhookURL(s.opts.CallbackBaseURL)
	if err := s.registerWebhook(ctx, url); err != nil {
		s.logger.Error("error setting webhook", "url", url, "error", err)
		s.logger.Warn("bot will continue but may not receive updates")
		return WebhookFailed
	}

	s.logger.Info("webhook set", "url", url)
	s.logger.Info("bot is running in webhook mode")
	return WebhookRegistered
}

// registerWebhook clears any previous registration and sets url. A failed
// delete aborts before the set.
func (s *Server) registerWebhook(ctx context.Context, url string) error {
	if err := s.bot.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	if err := s.bot.SetWebhook(ctx, url); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// WebhookState reports the outcome of the last SetupWebhook call.
func (s *Server) WebhookState() WebhookState {
	return WebhookState(s.state.Load())
}
