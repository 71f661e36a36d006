package versions

import (
	"context"
	"fmt"
	"time"

	"audittrail/internal/domain"
)

func (s *Service) Tasks(ctx context.Context) ([]domain.Task, error) {
	tasks, err := s.db.GetTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}

	return tasks, nil
}

// Task returns the whole history of a task with prev/next links filled in.
func (s *Service) Task(ctx context.Context, taskID string) (domain.TaskHistory, error) {
	taskID, err := NormalizeTaskID(taskID)
	if err != nil {
		return domain.TaskHistory{}, err
	}

	versions, err := s.db.GetTaskVersions(ctx, taskID)
	if err != nil {
		return domain.TaskHistory{}, fmt.Errorf("get task versions: %w", err)
	}
	if len(versions) == 0 {
		return domain.TaskHistory{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	total := len(versions)
	for i := range versions {
		link(&versions[i], total)
	}

	head := versions[0].VersionNumber
	tail := versions[total-1].VersionNumber

	return domain.TaskHistory{
		TaskID:        taskID,
		Versions:      versions,
		TotalVersions: total,
		HeadVersion:   &head,
		TailVersion:   &tail,
	}, nil
}

func (s *Service) Version(ctx context.Context, taskID string, versionNumber int) (domain.TaskVersion, error) {
	taskID, err := NormalizeTaskID(taskID)
	if err != nil {
		return domain.TaskVersion{}, err
	}

	v, ok, err := s.db.GetVersion(ctx, taskID, versionNumber)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("get version: %w", err)
	}
	if !ok {
		return domain.TaskVersion{}, fmt.Errorf("version %d of task %s: %w", versionNumber, taskID, ErrNotFound)
	}

	latest, _, err := s.db.GetLatestVersion(ctx, taskID)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("get latest version: %w", err)
	}

	link(&v, latest.VersionNumber)

	return v, nil
}

func (s *Service) Latest(ctx context.Context, taskID string) (domain.TaskVersion, error) {
	taskID, err := NormalizeTaskID(taskID)
	if err != nil {
		return domain.TaskVersion{}, err
	}

	v, ok, err := s.db.GetLatestVersion(ctx, taskID)
	if err != nil {
		return domain.TaskVersion{}, fmt.Errorf("get latest version: %w", err)
	}
	if !ok {
		return domain.TaskVersion{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}

	link(&v, v.VersionNumber)

	return v, nil
}

// Stats returns the dashboard totals with a human-readable age of the latest update.
func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.db.GetStats(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("get stats: %w", err)
	}

	if stats.LatestTask != nil {
		stats.LatestTask.TimeAgo = TimeAgo(s.now(), stats.LatestTask.UpdatedAt)
	}

	return stats, nil
}

// RecentVersions returns versions of every task saved after since, oldest first.
func (s *Service) RecentVersions(ctx context.Context, since time.Time) ([]domain.TaskVersion, error) {
	versions, err := s.db.GetVersionsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("get versions since: %w", err)
	}

	return versions, nil
}

// TimeAgo formats the distance between then and now the way the dashboard shows it.
func TimeAgo(now, then time.Time) string {
	elapsed := now.Sub(then)

	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm ago", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(elapsed/time.Hour))
	case elapsed < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(elapsed/(24*time.Hour)))
	default:
		return then.UTC().Format("Jan 2, 2006")
	}
}

// link sets prev/next for a version of a task whose numbers are contiguous from 1 to latest.
func link(v *domain.TaskVersion, latest int) {
	v.Prev, v.Next = nil, nil

	if v.VersionNumber > 1 {
		prev := v.VersionNumber - 1
		v.Prev = &prev
	}
	if v.VersionNumber < latest {
		next := v.VersionNumber + 1
		v.Next = &next
	}
}
