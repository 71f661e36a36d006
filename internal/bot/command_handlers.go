package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"audittrail/internal/domain"
	"audittrail/internal/markdown"
	"audittrail/internal/versions"
)

const (
	taskDeepLinkPrefix = "task_"
	digestWindowHours  = 24
)

const welcomeText = `🤖 *Welcome to AuditTrail\!*

I keep a version history of your notes and tasks\. I can help you:

– Save a new version by sending text \(start with ` + "`# Title`" + ` to rename the task\)
– Create a task with ` + "`/new Title`" + ` and its first text on the next lines
– Import pages and feeds by sending https links, they are re\-checked regularly
– Browse tasks with /tasks and the selected task history with /history
– See totals with /stats and changes of the last 24h with /digest
– Receive the 24h digest daily \(default \- 00:00 UTC\), see /settings`

const settingsText = `*⚙️ Settings*

Current UTC time is %s\.

Daily digest hour \(UTC\) is %s\.

Selected task is %s\.

You can choose a different hour below:`

const noTaskText = "✖️ No task is selected\\. Pick one with /tasks or create one with /new\\."

func (b *Bot) handleStartCommand(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
) error {
	text = strings.TrimSpace(text)

	if taskID, ok := strings.CutPrefix(text, "/start "+taskDeepLinkPrefix); ok {
		return b.selectTask(ctx, strings.TrimSpace(taskID), chatID, userID)
	}

	return b.sendMessageWithKeyboard(chatID, welcomeText, b.menuKeyboard)
}

func (b *Bot) selectTask(ctx context.Context, taskID string, chatID int64, userID int64) error {
	history, err := b.svc.Task(ctx, taskID)
	if errors.Is(err, versions.ErrNotFound) || errors.Is(err, versions.ErrInvalidTaskID) {
		return b.replyFailure(chatID, "✖️ Task is not found\\.", nil)
	}
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get task: %w", err))
	}

	if err = b.updateSettings(ctx, userID, func(s *domain.UserSettings) {
		s.SelectedTaskID = history.TaskID
	}); err != nil {
		return b.replyFailure(chatID, failedText, err)
	}

	return b.sendHistory(chatID, history)
}

func (b *Bot) handleMenuCommand(chatID int64) error {
	return b.sendMessageWithKeyboard(chatID, "❔ *Choose an option:*", b.menuKeyboard)
}

func (b *Bot) handleTasksCommand(ctx context.Context, chatID int64) error {
	tasks, err := b.svc.Tasks(ctx)

	if len(tasks) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("get tasks: %w", err))
		}

		return b.replyFailure(chatID, "✖️ Task list is empty or there is a bug\\.", errors.Join(errs...))
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("get tasks: %w", err))
	}

	for _, message := range formatTasks(tasks, b.userName, b.now()) {
		if err = b.sendMessageWithKeyboard(chatID, message, b.returnKeyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	return errors.Join(errs...)
}

// handleNewCommand expects the title after the command and the first version text on the following lines.
func (b *Bot) handleNewCommand(ctx context.Context, text string, chatID int64, userID int64) error {
	rest, _ := strings.CutPrefix(strings.TrimSpace(text), "/new")
	rest = strings.ReplaceAll(rest, "\r\n", "\n")

	title, content, _ := strings.Cut(rest, "\n")
	draft := versions.Draft{Title: strings.TrimSpace(title), Content: strings.TrimSpace(content)}

	if draft.Title == "" || draft.Content == "" {
		return b.sendMessageWithKeyboard(chatID,
			"✖️ Send `/new Title` with the first version text on the next lines\\.",
			b.returnKeyboard)
	}

	return b.saveDraft(ctx, b.svc.NewTaskID(), draft, chatID, userID)
}

func (b *Bot) handleHistoryCommand(ctx context.Context, chatID int64, userID int64) error {
	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get user settings with default: %w", err))
	}

	if settings.SelectedTaskID == "" {
		return b.sendMessageWithKeyboard(chatID, noTaskText, b.returnKeyboard)
	}

	history, err := b.svc.Task(ctx, settings.SelectedTaskID)
	if errors.Is(err, versions.ErrNotFound) {
		return b.sendMessageWithKeyboard(chatID, noTaskText, b.returnKeyboard)
	}
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get task: %w", err))
	}

	return b.sendHistory(chatID, history)
}

func (b *Bot) sendHistory(chatID int64, history domain.TaskHistory) error {
	var errs []error

	for _, message := range formatHistory(history, b.now()) {
		if err := b.sendMessageWithKeyboard(chatID, message, b.returnKeyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Bot) handleStatsCommand(ctx context.Context, chatID int64) error {
	stats, err := b.svc.Stats(ctx)
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get stats: %w", err))
	}

	return b.sendMessageWithKeyboard(chatID, formatStats(stats), b.returnKeyboard)
}

func (b *Bot) handleDigestCommand(ctx context.Context, chatID int64) error {
	recent, err := b.svc.RecentVersions(ctx, b.now().Add(-digestWindowHours*time.Hour))

	if len(recent) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("get recent versions: %w", err))
		}

		return b.replyFailure(chatID, "✖️ Nothing changed in the last 24h or there is a bug\\.", errors.Join(errs...))
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("get recent versions: %w", err))
	}

	if err = b.SendDigest(ctx, chatID, recent); err != nil {
		errs = append(errs, fmt.Errorf("send digest: %w", err))
	}

	return errors.Join(errs...)
}

// SendDigest sends versions grouped by task. Nothing is sent for an empty list.
func (b *Bot) SendDigest(ctx context.Context, chatID int64, recent []domain.TaskVersion) error {
	if len(recent) == 0 {
		return nil
	}

	var errs []error

	messages := formatDigest(recent)
	for _, message := range messages {
		if err := b.sendMessageWithKeyboard(chatID, message, b.returnKeyboard); err != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
		}
	}

	b.log.DebugContext(ctx, "Digest is sent",
		"chatID", chatID,
		"versionCount", len(recent),
		"messageCount", len(messages),
		"failedCount", len(errs))

	return errors.Join(errs...)
}

func (b *Bot) handleSettingsCommand(ctx context.Context, chatID int64, userID int64) error {
	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return b.replyFailure(chatID, failedText, fmt.Errorf("get user settings with default: %w", err))
	}

	selected := "none"
	if settings.SelectedTaskID != "" {
		selected = "`" + settings.SelectedTaskID + "`"
		if latest, latestErr := b.svc.Latest(ctx, settings.SelectedTaskID); latestErr == nil {
			selected = "*" + markdown.EscapeV2(markdown.Truncate(latest.Data.Title, maxTitleRunes)) + "*"
		}
	}

	if err = b.sendMessageWithKeyboard(
		chatID,
		fmt.Sprintf(settingsText,
			b.now().UTC().Format("15:04"),
			fmt.Sprintf("%02d:00", settings.DigestHourUTC),
			selected),
		b.settingsDigestHourKeyboard,
	); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

// updateSettings applies fn to the stored settings of userID and writes them back.
func (b *Bot) updateSettings(ctx context.Context, userID int64, fn func(*domain.UserSettings)) error {
	settings, err := b.db.GetUserSettingsWithDefault(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user settings with default: %w", err)
	}

	fn(settings)

	if err = b.db.UpsertUserSettings(ctx, settings); err != nil {
		return fmt.Errorf("upsert user settings: %w", err)
	}

	return nil
}
