// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"fmt"
	"time"

	domainTelegram "rentara/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// NewBot creates a long-polling bot. Call Start to begin receiving commands.
func NewBot(token string) (*telebot.Bot, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return b, nil
}

// TelebotAdapter implements the Notifier interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Notify sends a text message to a private chat or group without link previews.
func (tba *TelebotAdapter) Notify(_ context.Context, chatID int64, text string) error {
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, &telebot.SendOptions{DisableWebPagePreview: true})
	return err
}

// AdminAlerter delivers operational alerts to the admin chat.
type AdminAlerter struct {
	client      domainTelegram.Notifier
	adminChatID int64
	logger      *logrus.Entry
}

func NewAdminAlerter(client domainTelegram.Notifier, adminChatID int64, logger *logrus.Entry) *AdminAlerter {
	return &AdminAlerter{client: client, adminChatID: adminChatID, logger: logger}
}

func (a *AdminAlerter) Alert(ctx context.Context, message string) {
	log := a.logger.WithField("alert", true)
	log.Warn(message)
	if err := a.client.Notify(ctx, a.adminChatID, "ALERT: "+message); err != nil {
		log.WithError(err).Error("Failed to deliver alert to admin chat")
	}
}
