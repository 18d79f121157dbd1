package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"pomodoro/internal/notification"
)

// Telegram sends the chat text from a bot to one chat.
type Telegram struct {
	bot    *tele.Bot
	chatID int64
	err    error
}

// NewTelegram builds an offline bot: no getMe call and no poller, only sends.
func NewTelegram(token string, chatID int64, apiURL string) *Telegram {
	t := &Telegram{chatID: chatID}
	token = strings.TrimSpace(token)
	if token == "" || chatID == 0 {
		return t
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		URL:     strings.TrimSpace(apiURL),
		Offline: true,
		Client:  newHTTPClient(10 * time.Second),
	})
	if err != nil {
		t.err = err
		return t
	}
	t.bot = b
	return t
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Deliver(ctx context.Context, a notification.Alert) error {
	if t.err != nil {
		return transportErr(t.Name(), t.err)
	}
	if t.bot == nil {
		return ErrNotConfigured
	}
	// telebot has no context-aware send; honour cancellation around it.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(&tele.Chat{ID: t.chatID}, a.Text)
		done <- err
	}()
	select {
	case err := <-done:
		return transportErr(t.Name(), err)
	case <-ctx.Done():
		return transportErr(t.Name(), errors.Join(errors.New("send abandoned"), ctx.Err()))
	}
}
