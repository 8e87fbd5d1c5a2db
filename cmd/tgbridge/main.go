package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jdelaire/tgbridge/adapters/callback"
	"github.com/jdelaire/tgbridge/adapters/telegram_bot"
	"github.com/jdelaire/tgbridge/adapters/telegram_notifier"
	"github.com/jdelaire/tgbridge/core"
	"github.com/jdelaire/tgbridge/core/ops"
	"github.com/jdelaire/tgbridge/core/policy"
	"github.com/jdelaire/tgbridge/internal/config"
	"github.com/jdelaire/tgbridge/internal/keychain"
	"github.com/jdelaire/tgbridge/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tgbridge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	if err := telegram_bot.UseLogger(logger); err != nil {
		return fmt.Errorf("telegram logger: %w", err)
	}
	logger.Debug("configuration loaded", "config", cfg.String())

	token, err := keychain.BotToken(cfg.BotToken)
	if err != nil {
		return err
	}

	notifier := telegram_notifier.New(token, cfg.NotifyChatID).WithBaseURL(cfg.APIBaseURL())
	notifiers := core.NewRegistry()
	if err := notifiers.Register(notifier); err != nil {
		return fmt.Errorf("register notifier: %w", err)
	}

	// srv is assigned below; /status only runs once updates flow, which is
	// after Start.
	var srv *core.Server
	mode := func() string {
		if srv == nil {
			return core.WebhookPending.String()
		}
		return srv.WebhookState().String()
	}

	registry := ops.NewRegistry()
	if err := ops.Defaults(registry, mode); err != nil {
		return fmt.Errorf("register ops: %w", err)
	}
	dispatcher := core.NewDispatcher(policy.New(cfg.AllowedChatIDs), registry, notifier, logger)

	bot := telegram_bot.New(token, cfg.APIEndpoint, dispatcher.Handle, logger)

	srv = core.NewServer(core.Options{
		Port:               cfg.Port,
		CallbackBaseURL:    cfg.CallbackBaseURL,
		MetricsEnabled:     cfg.MetricsEnabled,
		ReportWebhookState: cfg.HealthReportWebhook,
	}, bot, callback.New(notifiers, logger), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM)

	logger.Info("starting bridge", "mode", cfg.Mode(), "notifiers", notifiers.Names())

	return srv.Run(ctx, sig, os.Exit)
}

