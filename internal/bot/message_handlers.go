package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"audittrail/internal/domain"
	"audittrail/internal/markdown"
	"audittrail/internal/versions"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	return b.withSpinner(ctx, message.Chat.ID, func() error {
		text := strings.TrimSpace(message.Text)

		switch {
		case strings.HasPrefix(text, "/start"):
			return b.handleStartCommand(ctx, text, message.Chat.ID, message.From.ID)
		case strings.HasPrefix(text, "/menu"):
			return b.handleMenuCommand(message.Chat.ID)
		case strings.HasPrefix(text, "/tasks"):
			return b.handleTasksCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/new"):
			return b.handleNewCommand(ctx, text, message.Chat.ID, message.From.ID)
		case strings.HasPrefix(text, "/history"):
			return b.handleHistoryCommand(ctx, message.Chat.ID, message.From.ID)
		case strings.HasPrefix(text, "/stats"):
			return b.handleStatsCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/digest"):
			return b.handleDigestCommand(ctx, message.Chat.ID)
		case strings.HasPrefix(text, "/settings"):
			return b.handleSettingsCommand(ctx, message.Chat.ID, message.From.ID)
		default:
			return b.handleText(ctx, text, message.Chat.ID, message.From.ID)
		}
	})
}

// handleText imports a message made only of https links; anything else becomes
// the next version of the selected task, or of a new task when none is selected.
func (b *Bot) handleText(ctx context.Context, text string, chatID int64, userID int64) error {
	if text == "" {
		return b.sendMessageWithKeyboard(chatID, "✖️ Send text to save a new version\\.", b.returnKeyboard)
	}

	if b.importer != nil {
		if urls := b.importer.FindURLs(text); len(urls) > 0 && onlyURLs(text, urls) {
			return b.handleImport(ctx, urls, chatID, userID)
		}
	}

	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get user settings with default: %w", err))
	}

	taskID := settings.SelectedTaskID
	fallbackTitle := ""

	if taskID == "" {
		taskID = b.svc.NewTaskID()
	} else {
		latest, latestErr := b.svc.Latest(ctx, taskID)
		switch {
		case latestErr == nil:
			fallbackTitle = latest.Data.Title
		case !errors.Is(latestErr, versions.ErrNotFound):
			return b.replyFailure(chatID, failedText, fmt.Errorf("get latest version: %w", latestErr))
		}
	}

	return b.saveDraft(ctx, taskID, draftFromText(text, fallbackTitle), chatID, userID)
}

func (b *Bot) saveDraft(ctx context.Context, taskID string, draft versions.Draft, chatID int64, userID int64) error {
	v, err := b.svc.Save(ctx, taskID, draft)
	if errors.Is(err, versions.ErrEmptyDraft) {
		return b.sendMessageWithKeyboard(chatID, "✖️ Title and content are required\\.", b.returnKeyboard)
	}
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("save version: %w", err))
	}

	var errs []error

	if err = b.updateSettings(ctx, userID, func(s *domain.UserSettings) {
		s.SelectedTaskID = v.TaskID
	}); err != nil {
		errs = append(errs, err)
	}

	if err = b.sendMessageWithKeyboard(chatID, formatSavedVersion(v), b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleImport(ctx context.Context, urls []string, chatID int64, userID int64) error {
	var (
		errs     []error
		imported []domain.TaskVersion
	)

	for _, url := range urls {
		v, _, err := b.svc.Import(ctx, b.svc.NewTaskID(), url, true)
		if err != nil {
			errs = append(errs, fmt.Errorf("import %s: %w", url, err))
			continue
		}

		imported = append(imported, v)
	}

	if len(imported) == 0 {
		return b.replyFailure(chatID, "✖️ Nothing could be imported from these links\\.", errors.Join(errs...))
	}

	if err := b.updateSettings(ctx, userID, func(s *domain.UserSettings) {
		s.SelectedTaskID = imported[len(imported)-1].TaskID
	}); err != nil {
		errs = append(errs, err)
	}

	var message strings.Builder
	if len(errs) > 0 {
		fmt.Fprintf(&message, "⚠️ Partial success \\(%d of %d imported\\)\\.\n\n", len(imported), len(urls))
	} else {
		message.WriteString("✅ Imported and watching:\n\n")
	}

	for _, v := range imported {
		fmt.Fprintf(&message, "– *%s* `%s`\n",
			markdown.EscapeV2(markdown.Truncate(v.Data.Title, maxTitleRunes)),
			v.TaskID)
	}

	if err := b.sendMessageWithKeyboard(chatID, message.String(), b.returnKeyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

// draftFromText reads a leading "# Title" line as the title. Without one the fallback title is used,
// or the first line when there is no fallback.
func draftFromText(text, fallbackTitle string) versions.Draft {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))

	first, rest, _ := strings.Cut(text, "\n")
	if title, ok := strings.CutPrefix(strings.TrimSpace(first), "# "); ok && strings.TrimSpace(title) != "" {
		return versions.Draft{Title: strings.TrimSpace(title), Content: strings.TrimSpace(rest)}
	}

	title := strings.TrimSpace(fallbackTitle)
	if title == "" {
		title = markdown.Truncate(first, maxTitleRunes)
	}

	return versions.Draft{Title: title, Content: text}
}

func onlyURLs(text string, urls []string) bool {
	for _, url := range urls {
		text = strings.ReplaceAll(text, url, "")
	}

	return strings.TrimSpace(text) == ""
}
