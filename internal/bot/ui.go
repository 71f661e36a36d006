package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	sendSpinnerInterval = 3 * time.Second

	failedText = "❌ Failed\\."
)

func (b *Bot) sendTyping(ctx context.Context, chatID int64) {
	config := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := b.rateLimiter.Request(config); err != nil {
		b.log.ErrorContext(ctx, "Failed to send chat action",
			"error", err,
			"chatID", chatID)
	}
}

// withSpinner keeps the typing indicator on while fn runs.
func (b *Bot) withSpinner(ctx context.Context, chatID int64, fn func() error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		b.sendTyping(ctx, chatID)

		t := time.NewTicker(sendSpinnerInterval)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				b.sendTyping(ctx, chatID)
			}
		}
	}()

	return fn()
}

// replyFailure tells the user something went wrong and returns cause joined with any send error.
func (b *Bot) replyFailure(chatID int64, text string, cause error) error {
	errs := []error{cause}

	if err := b.sendMessageWithKeyboard(chatID, text, b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}
