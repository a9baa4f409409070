package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vpanteleev/gradient-bot/db"
	"github.com/vpanteleev/gradient-bot/feed"
)

const (
	startReplyFmt = "Привет, %s! Я подключен к AI Agent на DigitalOcean.\n" +
		"Напиши сообщение, и я передам его агенту.\n" +
		"Используй /new чтобы начать новый диалог."
	helpReply = "Отправь текстовое сообщение, и я переправлю его DigitalOcean AI Agent.\n" +
		"Команда /new завершает текущую сессию и создаёт новую."
	newSessionReply = "Создана новая сессия. Можешь продолжить диалог с чистого листа!"
	emptyReply      = "Похоже, сообщение пустое. Попробуй ещё раз."
	agentFailReply  = "Не удалось получить ответ от AI Agent. Попробуй чуть позже."
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	var username, firstName string
	if msg.From != nil {
		username = msg.From.UserName
		firstName = msg.From.FirstName
	}
	if err := b.store.TouchChat(chatID, username, firstName); err != nil {
		slog.Error("touch chat failed", "chat", chatID, "err", err)
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.handleStart(ctx, chatID, firstName)
		case "new":
			b.handleNew(ctx, chatID)
		case "help":
			b.reply(chatID, helpReply)
		default:
			b.reply(chatID, helpReply)
		}
		return
	}

	b.handleText(ctx, chatID, msg.Text)
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, firstName string) {
	sessionID, err := b.ensureSession(ctx, chatID)
	if err != nil {
		slog.Error("start: create session failed", "chat", chatID, "err", err)
		b.reply(chatID, agentFailReply)
		return
	}
	if firstName == "" {
		firstName = "there"
	}
	b.reply(chatID, fmt.Sprintf(startReplyFmt, firstName))
	slog.Info("started session", "session", sessionID, "chat", chatID)
}

func (b *Bot) handleNew(ctx context.Context, chatID int64) {
	if _, err := b.resetSession(ctx, chatID); err != nil {
		slog.Error("reset session failed", "chat", chatID, "err", err)
		b.reply(chatID, agentFailReply)
		return
	}
	b.reply(chatID, newSessionReply)
}

func (b *Bot) handleText(ctx context.Context, chatID int64, text string) {
	reply, err := b.relayText(ctx, chatID, text)
	if err != nil {
		if errors.Is(err, errEmptyMessage) {
			b.reply(chatID, emptyReply)
			return
		}
		slog.Error("agent relay failed", "chat", chatID, "err", err)
		b.reply(chatID, agentFailReply)
		return
	}
	b.reply(chatID, reply)
}

var errEmptyMessage = errors.New("empty message")

// relayText forwards one user message to the agent and returns the reply to
// send back. The transcript and feed are updated on both legs.
func (b *Bot) relayText(ctx context.Context, chatID int64, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyMessage
	}

	b.feed.Publish(feed.NewEvent(feed.EventMessageReceived, chatID, ""))
	if err := b.store.InsertMessage(chatID, db.DirectionIn, text); err != nil {
		slog.Error("transcript insert failed", "chat", chatID, "err", err)
	}

	sessionID, err := b.ensureSession(ctx, chatID)
	if err != nil {
		b.feed.Publish(feed.NewEvent(feed.EventAgentError, chatID, err.Error()))
		return "", err
	}

	resp, err := b.agent.SendMessage(ctx, sessionID, text)
	if err != nil {
		b.feed.Publish(feed.NewEvent(feed.EventAgentError, chatID, err.Error()))
		return "", err
	}

	if err := b.store.InsertMessage(chatID, db.DirectionOut, resp.Message); err != nil {
		slog.Error("transcript insert failed", "chat", chatID, "err", err)
	}
	b.feed.Publish(feed.NewEvent(feed.EventReplySent, chatID, ""))
	return resp.Message, nil
}

// ensureSession returns the chat's current agent session, creating and
// storing one on first contact.
func (b *Bot) ensureSession(ctx context.Context, chatID int64) (string, error) {
	sessionID, err := b.store.GetSession(chatID)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if sessionID != "" {
		return sessionID, nil
	}

	sessionID, err = b.agent.CreateSession(ctx)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	if err := b.store.PutSession(chatID, sessionID); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	b.feed.Publish(feed.NewEvent(feed.EventSessionCreated, chatID, ""))
	return sessionID, nil
}

// resetSession discards the chat's session and creates a fresh one.
func (b *Bot) resetSession(ctx context.Context, chatID int64) (string, error) {
	if err := b.store.DeleteSession(chatID); err != nil {
		return "", fmt.Errorf("delete session: %w", err)
	}
	sessionID, err := b.ensureSession(ctx, chatID)
	if err != nil {
		return "", err
	}
	b.feed.Publish(feed.NewEvent(feed.EventSessionReset, chatID, ""))
	return sessionID, nil
}
