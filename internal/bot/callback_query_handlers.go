package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"audittrail/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		switch data {
		case callbackMenu:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleMenuCommand(chatID)
			})
		case callbackMenuTasks:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleTasksCommand(ctx, chatID)
			})
		case callbackMenuHistory:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleHistoryCommand(ctx, chatID, callback.From.ID)
			})
		case callbackMenuStats:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleStatsCommand(ctx, chatID)
			})
		case callbackMenuDigest:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleDigestCommand(ctx, chatID)
			})
		case callbackMenuSettings:
			return b.withEmptyCallbackAnswer(callback, func() error {
				return b.handleSettingsCommand(ctx, chatID, callback.From.ID)
			})
		}

		if hourUTCStr, ok := strings.CutPrefix(data, settingsDigestHourKeyboardDataPrefix); ok {
			return b.handleSettingsDigestHourQuery(ctx, hourUTCStr, callback)
		}

		return b.withEmptyCallbackAnswer(callback, func() error { return nil })
	})
}

func (b *Bot) handleSettingsDigestHourQuery(
	ctx context.Context,
	hourUTCStr string,
	callback *tgbotapi.CallbackQuery,
) error {
	hourUTC, err := strconv.ParseInt(strings.TrimSpace(hourUTCStr), 10, 64)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("parse hourUTC: %w", err))
	}
	if hourUTC < 0 || hourUTC >= hoursPerDay {
		return b.errorCallbackAnswer(callback, fmt.Errorf("hourUTC out of range: %d", hourUTC))
	}

	if err = b.updateSettings(ctx, callback.From.ID, func(s *domain.UserSettings) {
		s.DigestHourUTC = hourUTC
	}); err != nil {
		return b.errorCallbackAnswer(callback, err)
	}

	if _, err = b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "✅ Settings are updated.")); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	return b.handleSettingsCommand(ctx, callback.Message.Chat.ID, callback.From.ID)
}

func (b *Bot) withEmptyCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		errs = append(errs, b.errorCallbackAnswer(callback, fmt.Errorf("send request: %w", err)))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	callback *tgbotapi.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.rateLimiter.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
