package versions

import (
	"context"
	"fmt"

	"audittrail/internal/domain"
	"audittrail/internal/summarizer"
	"audittrail/internal/textdiff"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Comparison is a word diff between two versions of one task.
type Comparison struct {
	TaskID string
	From   domain.TaskVersion
	To     domain.TaskVersion
	Result textdiff.DiffResult
}

// Diff compares two texts, serving repeated pairs from the cache.
func (s *Service) Diff(oldText, newText string) (textdiff.DiffResult, error) {
	key := diffCacheKey(oldText, newText)
	now := s.now()

	if cached, ok := s.cache.get(key, now); ok {
		return cached, nil
	}

	result, err := textdiff.Diff(oldText, newText)
	if err != nil {
		return textdiff.DiffResult{}, err
	}

	s.cache.set(key, result, now)

	return result, nil
}

// Summarize is the stateless engine entry point: a diff of two texts and the summary of the new one.
func (s *Service) Summarize(oldText, newText string) (summarizer.VersionSummary, error) {
	result, err := s.Diff(oldText, newText)
	if err != nil {
		return summarizer.VersionSummary{}, err
	}

	return summarizer.Summarize(newText, result), nil
}

// Compare diffs any two versions of a task. from may be greater than to.
func (s *Service) Compare(ctx context.Context, taskID string, from, to int) (Comparison, error) {
	fromVersion, err := s.Version(ctx, taskID, from)
	if err != nil {
		return Comparison{}, err
	}

	toVersion, err := s.Version(ctx, taskID, to)
	if err != nil {
		return Comparison{}, err
	}

	result, err := s.Diff(fromVersion.Data.Content, toVersion.Data.Content)
	if err != nil {
		return Comparison{}, fmt.Errorf("diff versions: %w", err)
	}

	return Comparison{
		TaskID: fromVersion.TaskID,
		From:   fromVersion,
		To:     toVersion,
		Result: result,
	}, nil
}

// Patch renders a character-level patch from the preceding version to versionNumber.
func (s *Service) Patch(ctx context.Context, taskID string, versionNumber int) (string, error) {
	v, err := s.Version(ctx, taskID, versionNumber)
	if err != nil {
		return "", err
	}

	previous, _, err := s.PreviousContent(ctx, v.TaskID, v.VersionNumber)
	if err != nil {
		return "", err
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(previous, v.Data.Content)

	return dmp.PatchToText(patches), nil
}
