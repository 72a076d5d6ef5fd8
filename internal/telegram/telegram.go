// Package telegram is an optional relay sink that mirrors scheduling
// signals into a consultant-side Telegram chat.
package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	tele "gopkg.in/telebot.v3"

	"github.com/avelichko/consulta/pkg/models"
)

type Notifier struct {
	log  *logrus.Entry
	bot  *tele.Bot
	chat *tele.Chat
}

func NewBot(token string) (*tele.Bot, error) {
	config := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(config)
	if err != nil {
		return nil, fmt.Errorf("new bot faild: %w", err)
	}
	return b, nil
}

func NewNotifier(log *logrus.Logger, bot *tele.Bot, chatID int64) *Notifier {
	return &Notifier{
		log:  log.WithField("component", "telegram"),
		bot:  bot,
		chat: &tele.Chat{ID: chatID},
	}
}

// Publish sends a one-line human-readable rendering of the signal.
// Fire-and-forget like the webhook: the caller logs and drops any error.
func (n *Notifier) Publish(_ context.Context, signal models.Signal) error {
	if _, err := n.bot.Send(n.chat, render(signal)); err != nil {
		return fmt.Errorf("tg send message faild: %w", err)
	}
	return nil
}

// Text pushes a free-form line; used by the reconciliation poller.
func (n *Notifier) Text(_ context.Context, msg string) error {
	if _, err := n.bot.Send(n.chat, msg); err != nil {
		return fmt.Errorf("tg send message faild: %w", err)
	}
	return nil
}

func render(signal models.Signal) string {
	switch p := signal.Payload.(type) {
	case models.EventPayload:
		return fmt.Sprintf("%s: %q %s - %s (%s)", signal.Type, p.Title,
			p.StartAt.Format(time.RFC822), p.EndAt.Format(time.RFC822), p.Status)
	case models.ConfirmPayload:
		return fmt.Sprintf("%s: clinic %s, event %s is now %s", signal.Type, p.ClinicID, p.EventID, p.Status)
	case models.ReschedulePayload:
		return fmt.Sprintf("%s: clinic %s asks to move event %s: %s", signal.Type, p.ClinicID, p.EventID, p.Reason)
	default:
		return fmt.Sprintf("%s: %+v", signal.Type, signal.Payload)
	}
}
