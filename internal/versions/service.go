// Package versions stores task versions and computes their diffs and summaries at write time.
package versions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"audittrail/internal/database"
	"audittrail/internal/domain"
	"audittrail/internal/importer"
	"audittrail/internal/summarizer"
	"audittrail/internal/textdiff"
)

const (
	maxSaveAttempts = 3
	maxTaskIDLength = 64
	changeNoteLimit = 15 * time.Second
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyDraft    = errors.New("title and content are required")
	ErrInvalidTaskID = errors.New("invalid task ID")
)

// Draft is the user-supplied part of a new version.
type Draft struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	db         *database.Database
	summarizer summarizer.Summarizer
	importer   *importer.Importer
	cache      *diffCache
	now        func() time.Time
	log        *slog.Logger

	idMu   sync.Mutex
	lastID int64
}

// New builds the service. The summarizer and the importer are optional.
func New(
	db *database.Database,
	s summarizer.Summarizer,
	imp *importer.Importer,
	opts Options,
	log *slog.Logger,
) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		db:         db,
		summarizer: s,
		importer:   imp,
		cache:      newDiffCache(opts.CacheSize, opts.CacheTTL),
		now:        now,
		log:        log,
	}
}

// Save appends a new version to the task, creating the task on its first version.
func (s *Service) Save(ctx context.Context, taskID string, draft Draft) (domain.TaskVersion, error) {
	taskID, err := NormalizeTaskID(taskID)
	if err != nil {
		return domain.TaskVersion{}, err
	}

	title := strings.TrimSpace(draft.Title)
	content := strings.TrimSpace(draft.Content)
	if title == "" || content == "" {
		return domain.TaskVersion{}, ErrEmptyDraft
	}

	newTokens, err := textdiff.Tokenize(content)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("tokenize content: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		v, saveErr := s.trySave(ctx, taskID, title, content, newTokens)
		if saveErr == nil {
			s.log.InfoContext(ctx, "Version is saved",
				"taskID", taskID,
				"versionNumber", v.VersionNumber,
				"added", v.Diff.Added,
				"removed", v.Diff.Removed,
				"attempt", attempt)

			return v, nil
		}

		if !errors.Is(saveErr, database.ErrVersionConflict) {
			return domain.TaskVersion{}, saveErr
		}

		s.log.WarnContext(ctx, "Concurrent save detected, retrying",
			"error", saveErr,
			"taskID", taskID,
			"attempt", attempt)
		lastErr = saveErr
	}

	return domain.TaskVersion{}, fmt.Errorf("save version after %d attempts: %w", maxSaveAttempts, lastErr)
}

func (s *Service) trySave(
	ctx context.Context,
	taskID string,
	title string,
	content string,
	newTokens []textdiff.Token,
) (domain.TaskVersion, error) {
	previous, hasPrevious, err := s.db.GetLatestVersion(ctx, taskID)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("get latest version: %w", err)
	}

	oldTokens, err := textdiff.Tokenize(previous.Data.Content)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("tokenize previous content: %w", err)
	}

	diff, err := textdiff.DiffTokens(oldTokens, newTokens, nil)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("diff content: %w", err)
	}

	summary := summarizer.Summarize(content, diff)

	v := domain.TaskVersion{
		TaskID:        taskID,
		VersionNumber: previous.VersionNumber + 1,
		Data:          domain.VersionData{Title: title, Content: content},
		Diff:          Counts(diff),
		Summary:       summary.Text,
		ChangeNote:    s.changeNote(ctx, title, previous.Data.Content, content, diff, !hasPrevious),
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}

	if err = s.db.InsertVersion(ctx, v, previous.VersionNumber); err != nil {
		return domain.TaskVersion{}, fmt.Errorf("insert version: %w", err)
	}

	if v.VersionNumber > 1 {
		prev := v.VersionNumber - 1
		v.Prev = &prev
	}

	return v, nil
}

// changeNote asks the configured summarizer for a one-line note and falls back to a deterministic one.
func (s *Service) changeNote(
	ctx context.Context,
	title string,
	previous string,
	current string,
	diff textdiff.DiffResult,
	first bool,
) string {
	fallback := summarizer.DescribeChange(diff, first)

	if s.summarizer == nil {
		return fallback
	}
	if !first && diff.Added() == 0 && diff.Removed() == 0 {
		return fallback
	}

	noteCtx, cancel := context.WithTimeout(ctx, changeNoteLimit)
	defer cancel()

	note, err := s.summarizer.Summarize(noteCtx, summarizer.Input{
		Title:    title,
		Previous: previous,
		Current:  current,
	})
	if err != nil {
		s.log.WarnContext(ctx, "Failed to summarize change so fallback will be used",
			"error", err,
			"fallback", fallback)

		return fallback
	}

	return note
}

// PreviousContent returns the content of the version preceding versionNumber, if any.
func (s *Service) PreviousContent(ctx context.Context, taskID string, versionNumber int) (string, bool, error) {
	content, ok, err := s.db.GetPreviousVersionContent(ctx, taskID, versionNumber)
	if err != nil {
		return "", false, fmt.Errorf("get previous version content: %w", err)
	}

	return content, ok, nil
}

// NewTaskID returns a fresh millisecond-based task ID, unique within this process.
func (s *Service) NewTaskID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	return strconv.FormatInt(id, 10)
}

// NormalizeTaskID trims id and checks it is a short token of letters, digits, '-' or '_'.
func NormalizeTaskID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxTaskIDLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidTaskID, id)
	}

	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidTaskID, id)
		}
	}

	return id, nil
}

// Counts extracts the persisted counters of a diff.
func Counts(d textdiff.DiffResult) domain.DiffCounts {
	return domain.DiffCounts{
		Added:     d.Added(),
		Removed:   d.Removed(),
		Changed:   d.Changed(),
		Unchanged: d.Unchanged(),
	}
}
