package bot

import (
	"fmt"
	"strings"
	"time"

	"audittrail/internal/domain"
	"audittrail/internal/markdown"
	"audittrail/internal/versions"
)

const (
	telegramMessageMaxLength = 4096

	maxTitleRunes      = 64
	maxNoteRunes       = 200
	maxSummaryRunes    = 300
	maxHistoryVersions = 20
)

type messageGroup struct {
	header string
	lines  []string
}

// packMessages lays groups out into as few messages as fit the Telegram limit.
// A group split across messages repeats its header in the next one.
func packMessages(title, continued string, groups []messageGroup) []string {
	var messages []string
	var current strings.Builder

	current.WriteString(title)
	headerLength := current.Len()

	flush := func() {
		messages = append(messages, current.String())
		current.Reset()
		current.WriteString(continued)
		headerLength = current.Len()
	}

	for _, group := range groups {
		if len(group.lines) == 0 {
			continue
		}

		if current.Len() > headerLength &&
			current.Len()+len(group.header)+len(group.lines[0]) > telegramMessageMaxLength {
			flush()
		}

		current.WriteString(group.header)

		for _, line := range group.lines {
			if current.Len() > headerLength+len(group.header) &&
				current.Len()+len(line) > telegramMessageMaxLength {
				flush()
				current.WriteString(group.header)
			}

			current.WriteString(line)
		}
	}

	if current.Len() > headerLength {
		messages = append(messages, current.String())
	}

	return messages
}

func formatTasks(tasks []domain.Task, userName string, now time.Time) []string {
	lines := make([]string, 0, len(tasks))

	for i, t := range tasks {
		title := markdown.EscapeV2(markdown.Truncate(t.Title, maxTitleRunes))
		if userName != "" {
			title = fmt.Sprintf("[%s](https://t.me/%s?start=%s%s)", title, userName, taskDeepLinkPrefix, t.ID)
		} else {
			title = fmt.Sprintf("*%s* `%s`", title, t.ID)
		}

		lines = append(lines, fmt.Sprintf("%d\\. %s · v%d · %s\n",
			i+1,
			title,
			t.VersionCount,
			markdown.EscapeV2(versions.TimeAgo(now, t.UpdatedAt))))
	}

	return packMessages(
		fmt.Sprintf("🗂 *Found %d tasks:*\n\n", len(tasks)),
		"🗂 *Tasks \\(continue\\)*\n\n",
		[]messageGroup{{lines: lines}},
	)
}

// formatHistory lists the newest versions first.
func formatHistory(h domain.TaskHistory, now time.Time) []string {
	title := h.TaskID
	if n := len(h.Versions); n > 0 {
		title = h.Versions[n-1].Data.Title
	}

	var lines []string
	shown := 0
	for i := len(h.Versions) - 1; i >= 0 && shown < maxHistoryVersions; i-- {
		lines = append(lines, formatVersionBlock(h.Versions[i], now))
		shown++
	}

	if hidden := len(h.Versions) - shown; hidden > 0 {
		lines = append(lines, fmt.Sprintf("…and %d older versions\n", hidden))
	}

	return packMessages(
		fmt.Sprintf("🕓 *%s* · %d versions\n\n", markdown.EscapeV2(markdown.Truncate(title, maxTitleRunes)), h.TotalVersions),
		"🕓 *History \\(continue\\)*\n\n",
		[]messageGroup{{lines: lines}},
	)
}

func formatVersionBlock(v domain.TaskVersion, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*v%d* · %s\n", v.VersionNumber, markdown.EscapeV2(versions.TimeAgo(now, v.CreatedAt)))

	if note := markdown.Truncate(v.ChangeNote, maxNoteRunes); note != "" {
		fmt.Fprintf(&b, "📝 %s\n", markdown.EscapeV2(note))
	}
	if summary := markdown.Truncate(v.Summary, maxSummaryRunes); summary != "" {
		fmt.Fprintf(&b, "_%s_\n", markdown.EscapeV2(summary))
	}

	b.WriteString("\n")

	return b.String()
}

func formatSavedVersion(v domain.TaskVersion) string {
	return fmt.Sprintf("✅ Saved *v%d* of *%s*\\.\n\n%s",
		v.VersionNumber,
		markdown.EscapeV2(markdown.Truncate(v.Data.Title, maxTitleRunes)),
		formatVersionBlock(v, v.CreatedAt))
}

func formatStats(stats domain.Stats) string {
	var b strings.Builder

	b.WriteString("📊 *Dashboard*\n\n")
	fmt.Fprintf(&b, "Tasks: %d\n", stats.TotalTasks)
	fmt.Fprintf(&b, "Versions: %d\n", stats.TotalVersions)

	if stats.LatestTask != nil {
		fmt.Fprintf(&b, "Latest: *%s* \\(%s\\)",
			markdown.EscapeV2(markdown.Truncate(stats.LatestTask.Title, maxTitleRunes)),
			markdown.EscapeV2(stats.LatestTask.TimeAgo))
	} else {
		b.WriteString("Latest: none")
	}

	return b.String()
}

// formatDigest groups versions by task in order of each task's first version.
func formatDigest(versionList []domain.TaskVersion) []string {
	var order []string
	byTask := make(map[string][]domain.TaskVersion)

	for _, v := range versionList {
		if _, ok := byTask[v.TaskID]; !ok {
			order = append(order, v.TaskID)
		}
		byTask[v.TaskID] = append(byTask[v.TaskID], v)
	}

	groups := make([]messageGroup, 0, len(order))
	for _, taskID := range order {
		taskVersions := byTask[taskID]
		title := taskVersions[len(taskVersions)-1].Data.Title

		lines := make([]string, 0, len(taskVersions)+1)
		for _, v := range taskVersions {
			lines = append(lines, fmt.Sprintf("– v%d · %s\n",
				v.VersionNumber,
				markdown.EscapeV2(markdown.Truncate(v.ChangeNote, maxNoteRunes))))
		}
		lines[len(lines)-1] += "\n"

		groups = append(groups, messageGroup{
			header: fmt.Sprintf("📌 *%s*\n", markdown.EscapeV2(markdown.Truncate(title, maxTitleRunes))),
			lines:  lines,
		})
	}

	return packMessages("🕓 *24h digest*\n\n", "🕓 *24h digest \\(continue\\)*\n\n", groups)
}
