package notifier

import (
	"context"
	"fmt"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/telegram"
)

// messageSender is the part of the Telegram client the notifier needs
type messageSender interface {
	SendMessage(ctx context.Context, text string) error
}

// TelegramNotifier posts new items to a Telegram chat
type TelegramNotifier struct {
	client messageSender
	msg    config.Message
}

// NewTelegramNotifier creates a Telegram notifier
func NewTelegramNotifier(cfg config.Telegram, msg config.Message) (*TelegramNotifier, error) {
	client, err := telegram.NewClient(cfg.BotToken, cfg.ChatID)
	if err != nil {
		return nil, fmt.Errorf("initializing telegram: %w", err)
	}
	return &TelegramNotifier{client: client, msg: msg}, nil
}

// Notify sends the items, split over several messages when they do not fit in one
func (n *TelegramNotifier) Notify(ctx context.Context, items []string) error {
	messages := telegram.FormatItems(Subject(n.msg, items), items, n.msg.LinkText, n.msg.LinkURL)
	for i, text := range messages {
		if err := n.client.SendMessage(ctx, text); err != nil {
			return channelError("telegram", fmt.Errorf("message %d/%d: %w", i+1, len(messages), err))
		}
	}
	return nil
}
