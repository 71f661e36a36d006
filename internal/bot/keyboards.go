package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	hoursPerDay                          = 24
	settingsDigestHourKeyboardRowSize    = 6
	settingsDigestHourKeyboardDataPrefix = "settings_digest_hour_utc_"

	callbackMenu         = "menu"
	callbackMenuTasks    = "menu_tasks"
	callbackMenuHistory  = "menu_history"
	callbackMenuStats    = "menu_stats"
	callbackMenuDigest   = "menu_digest"
	callbackMenuSettings = "menu_settings"
)

func (b *Bot) sendMessageWithKeyboard(
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.Warn("Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	message := tgbotapi.NewMessage(chatID, normalizedText)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	_, err := b.rateLimiter.Send(message)
	return err
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", callbackMenu)},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("🗂 Tasks", callbackMenuTasks),
			tgbotapi.NewInlineKeyboardButtonData("🕓 History", callbackMenuHistory),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", callbackMenuStats),
			tgbotapi.NewInlineKeyboardButtonData("👈 24h digest", callbackMenuDigest),
		},
		{
			tgbotapi.NewInlineKeyboardButtonData("⚙️ Settings", callbackMenuSettings),
		},
	}
}

func getSettingsDigestHourKeyboard() [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	for i := 0; i < hoursPerDay; i += settingsDigestHourKeyboardRowSize {
		var row []tgbotapi.InlineKeyboardButton

		for j := i; j < i+settingsDigestHourKeyboardRowSize && j < hoursPerDay; j++ {
			hour := fmt.Sprintf("%02d", j)
			row = append(
				row,
				tgbotapi.NewInlineKeyboardButtonData(hour, settingsDigestHourKeyboardDataPrefix+hour),
			)
		}

		keyboard = append(keyboard, row)
	}

	keyboard = append(keyboard, getReturnKeyboard()...)

	return keyboard
}
