package monitors

import (
	"context"
	"fmt"

	logging "holders-api/internal/infra/log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts plain text messages to one chat.
// The zero value is valid and drops every message.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

// NewTelegramNotifier authorizes the bot. Without a token or chat it returns a no-op notifier.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		logging.LogInfo("Telegram notifications disabled")
		return &TelegramNotifier{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	logging.LogSuccess("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (t *TelegramNotifier) Enabled() bool {
	return t != nil && t.bot != nil
}

func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	logging.LogDebug("Telegram message sent", zap.Int64("chat_id", t.chatID))
	return nil
}
