// File: internal/infra/adapters/telegram/ui_sink.go
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"agent-compute-platform/internal/domain/model"
	"agent-compute-platform/internal/domain/ports/adapter"
)

var _ adapter.UISink = (*BotSink)(nil)

// BotSink delivers ephemeral events to the live Telegram chat. Conversation
// ids are the stringified chat ids.
type BotSink struct {
	bot *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewBotSink(token string, log *zerolog.Logger) (*BotSink, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &BotSink{bot: bot, log: log}, nil
}

func (s *BotSink) Publish(ctx context.Context, conversationID string, ev model.UIEvent) error {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return fmt.Errorf("conversation id %q is not a chat id: %w", conversationID, err)
	}
	msg := tgbotapi.NewMessage(chatID, renderPayload(ev.Payload))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func renderPayload(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

var _ adapter.UISink = (*NoopSink)(nil)

// NoopSink swallows UI events; used in dev mode and tests.
type NoopSink struct{}

func (NoopSink) Publish(ctx context.Context, conversationID string, ev model.UIEvent) error {
	return nil
}
