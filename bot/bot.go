// Package bot is the Telegram side of the relay: it long-polls for updates,
// routes commands, and forwards plain text to the Gradient agent, replying in
// the same chat. Each update is handled in its own goroutine; all of them
// share one agent client and therefore one rate limiter.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vpanteleev/gradient-bot/db"
	"github.com/vpanteleev/gradient-bot/feed"
	"github.com/vpanteleev/gradient-bot/gradient"
)

// AgentClient is the slice of the gradient client the bot needs.
type AgentClient interface {
	CreateSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, sessionID, message string) (*gradient.Response, error)
}

type Bot struct {
	api   *tgbotapi.BotAPI
	agent AgentClient
	store *db.DB
	feed  *feed.Hub // nil disables the event feed
}

func New(token string, agent AgentClient, store *db.DB, hub *feed.Hub) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{api: api, agent: agent, store: store, feed: hub}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("telegram bot started", "username", b.api.Self.UserName)

	// Remove any previously configured webhook; polling and webhook delivery
	// must not run at the same time.
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		slog.Debug("could not delete webhook", "err", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("send reply failed", "chat", chatID, "err", err)
	}
}
