package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jdelaire/tgbridge/core/ops"
	"github.com/jdelaire/tgbridge/core/policy"
	"github.com/jdelaire/tgbridge/core/ratelimit"
)

const (
	maxConcurrentOps = 2
	opTimeout        = 30 * time.Second
	replyTimeout     = 10 * time.Second

	commandsPerChat = 20
	commandWindow   = time.Minute
)

// Dispatcher turns inbound chat messages into bot commands and replies to
// the originating chat.
type Dispatcher struct {
	policy   *policy.Policy
	ops      *ops.Registry
	notifier Notifier
	logger   *slog.Logger
	limiter  *ratelimit.Limiter
	sem      chan struct{}
}

func NewDispatcher(pol *policy.Policy, opsReg *ops.Registry, notifier Notifier, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		policy:   pol,
		ops:      opsReg,
		notifier: notifier,
		logger:   logger,
		limiter:  ratelimit.New(commandsPerChat, commandWindow),
		sem:      make(chan struct{}, maxConcurrentOps),
	}
}

// Handle is a MessageHandler.
func (d *Dispatcher) Handle(msg InboundMessage) {
	if err := d.policy.Authorize(msg.ChatID, msg.UpdateID, msg.Timestamp); err != nil {
		d.logger.Debug("message dropped by policy", "chat_id", msg.ChatID, "update_id", msg.UpdateID, "error", err)
		return
	}

	cmd, args := parseCommand(msg.Text)
	if cmd == "" {
		return
	}

	if err := d.limiter.Allow(msg.ChatID); err != nil {
		d.logger.Warn("command throttled", "chat_id", msg.ChatID, "command", cmd)
		d.reply(msg.ChatID, fmt.Sprintf("Slow down: %s.", err))
		return
	}

	op := d.ops.Get(cmd)
	if op == nil {
		d.reply(msg.ChatID, fmt.Sprintf("Unknown command: /%s\nSend /help for available commands.", cmd))
		return
	}

	select {
	case d.sem <- struct{}{}:
	default:
		d.reply(msg.ChatID, "Busy, too many commands running. Try again shortly.")
		return
	}
	defer func() { <-d.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	result, err := op.Execute(ctx, args)
	if err != nil {
		d.logger.Error("command failed", "command", cmd, "chat_id", msg.ChatID, "error", err)
		d.reply(msg.ChatID, fmt.Sprintf("Error running /%s: %s", cmd, err))
		return
	}
	d.logger.Info("command handled", "command", cmd, "chat_id", msg.ChatID, "user", msg.Username)
	d.reply(msg.ChatID, result)
}

func (d *Dispatcher) reply(chatID int64, text string) {
	n := Notification{
		ChatID:    chatID,
		Text:      text,
		Source:    "dispatcher",
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	if err := d.notifier.Send(ctx, n); err != nil {
		d.logger.Error("failed to send reply", "chat_id", chatID, "error", err)
	}
}

// parseCommand splits "/command@bot args" into its lowercased command and args.
func parseCommand(text string) (cmd, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}

	cmd, args, _ = strings.Cut(text[1:], " ")
	args = strings.TrimSpace(args)
	if at := strings.IndexByte(cmd, '@'); at != -1 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), args
}
