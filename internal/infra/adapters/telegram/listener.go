// File: internal/infra/adapters/telegram/listener.go
package telegram

import (
	"context"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TurnHandler runs one conversation turn for an incoming user message.
type TurnHandler func(ctx context.Context, conversationID, text string)

// Listen consumes Telegram updates and hands each message to the turn
// handler. Blocks until the context is done.
func (s *BotSink) Listen(ctx context.Context, handle TurnHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := s.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			s.bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			convID := strconv.FormatInt(upd.Message.Chat.ID, 10)
			handle(ctx, convID, upd.Message.Text)
		}
	}
}
