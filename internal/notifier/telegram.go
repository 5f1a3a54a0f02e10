package notifier

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"
)

const telegramTextLimit = 4096

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int // forum topic, 0 for none
}

// telegramSender is the slice of *tele.Bot used here.
type telegramSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Telegram posts notifications to a chat through the Bot API.
type Telegram struct {
	cfg TelegramConfig
	bot telegramSender
}

func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// Offline skips the getMe round trip; this bot only sends.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return &Telegram{cfg: cfg, bot: b}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chat := &tele.Chat{ID: t.cfg.ChatID}
	opts := &tele.SendOptions{ThreadID: t.cfg.ThreadID, DisableWebPagePreview: true}
	_, err := t.bot.Send(chat, telegramText(n), opts)
	return err
}

func telegramText(n Notification) string {
	text := strings.TrimSpace(n.Body)
	if n.Title != "" {
		text = n.Title + "\n" + text
	}
	if len(text) <= telegramTextLimit {
		return text
	}
	// cut on a rune boundary
	cut := telegramTextLimit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
