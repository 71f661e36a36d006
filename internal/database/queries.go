package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audittrail/internal/domain"

	"github.com/mattn/go-sqlite3"
)

const versionColumns = `task_id, version_number, title, content,
	added, removed, changed, unchanged, summary, change_note, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (domain.TaskVersion, error) {
	var (
		v         domain.TaskVersion
		createdAt int64
	)

	err := row.Scan(
		&v.TaskID,
		&v.VersionNumber,
		&v.Data.Title,
		&v.Data.Content,
		&v.Diff.Added,
		&v.Diff.Removed,
		&v.Diff.Changed,
		&v.Diff.Unchanged,
		&v.Summary,
		&v.ChangeNote,
		&createdAt,
	)
	if err != nil {
		return domain.TaskVersion{}, err
	}

	v.CreatedAt = fromMillis(createdAt)

	return v, nil
}

func (d *Database) queryVersions(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]domain.TaskVersion, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, operation)

	var versions []domain.TaskVersion
	for rows.Next() {
		v, scanErr := scanVersion(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		versions = append(versions, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return versions, nil
}

// GetTasks lists every task with its latest title, most recently updated first.
func (d *Database) GetTasks(ctx context.Context) ([]domain.Task, error) {
	query := `select v.task_id, v.title, h.version_count, v.created_at
	from versions as v
	join (
		select task_id, max(version_number) as head, count(*) as version_count
		from versions
		group by task_id
	) as h
	on h.task_id = v.task_id and h.head = v.version_number
	order by v.created_at desc, v.task_id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetTasks")

	var tasks []domain.Task
	for rows.Next() {
		var (
			t         domain.Task
			updatedAt int64
		)
		if err = rows.Scan(&t.ID, &t.Title, &t.VersionCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		t.UpdatedAt = fromMillis(updatedAt)
		tasks = append(tasks, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return tasks, nil
}

func (d *Database) GetTaskVersions(ctx context.Context, taskID string) ([]domain.TaskVersion, error) {
	query := `select ` + versionColumns + `
	from versions
	where task_id = ?
	order by version_number`

	return d.queryVersions(ctx, "GetTaskVersions", query, taskID)
}

// GetVersionsSince returns versions of all tasks created at or after since, oldest first.
func (d *Database) GetVersionsSince(ctx context.Context, since time.Time) ([]domain.TaskVersion, error) {
	query := `select ` + versionColumns + `
	from versions
	where created_at >= ?
	order by created_at, task_id, version_number`

	return d.queryVersions(ctx, "GetVersionsSince", query, toMillis(since))
}

func (d *Database) GetVersion(
	ctx context.Context,
	taskID string,
	versionNumber int,
) (domain.TaskVersion, bool, error) {
	query := `select ` + versionColumns + `
	from versions
	where task_id = ? and version_number = ?`

	return d.queryOneVersion(ctx, query, taskID, versionNumber)
}

func (d *Database) GetLatestVersion(ctx context.Context, taskID string) (domain.TaskVersion, bool, error) {
	query := `select ` + versionColumns + `
	from versions
	where task_id = ?
	order by version_number desc
	limit 1`

	return d.queryOneVersion(ctx, query, taskID)
}

func (d *Database) queryOneVersion(ctx context.Context, query string, args ...any) (domain.TaskVersion, bool, error) {
	v, err := scanVersion(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TaskVersion{}, false, nil
	}
	if err != nil {
		return domain.TaskVersion{}, false, fmt.Errorf("failed to scan row: %w", err)
	}

	return v, true, nil
}

// GetPreviousVersionContent returns the content of the version preceding versionNumber.
// It reports false for the first version and for unknown tasks.
func (d *Database) GetPreviousVersionContent(
	ctx context.Context,
	taskID string,
	versionNumber int,
) (string, bool, error) {
	if versionNumber <= 1 {
		return "", false, nil
	}

	query := "select content from versions where task_id = ? and version_number = ?"

	var content string
	err := d.db.QueryRowContext(ctx, query, taskID, versionNumber-1).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to scan row: %w", err)
	}

	return content, true, nil
}

// InsertVersion stores v as the successor of expectedPrevious. The task is created on its first version.
// ErrVersionConflict is returned when the task head is no longer expectedPrevious.
func (d *Database) InsertVersion(ctx context.Context, v domain.TaskVersion, expectedPrevious int) (err error) {
	if strings.TrimSpace(v.TaskID) == "" {
		return errors.New("task ID is empty")
	}
	if v.VersionNumber != expectedPrevious+1 {
		return fmt.Errorf("version %d does not follow %d", v.VersionNumber, expectedPrevious)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rollbackErr))
			}
		}
	}()

	var head int
	headQuery := "select coalesce(max(version_number), 0) from versions where task_id = ?"
	if err = tx.QueryRowContext(ctx, headQuery, v.TaskID).Scan(&head); err != nil {
		return fmt.Errorf("read task head: %w", err)
	}
	if head != expectedPrevious {
		return fmt.Errorf("%w: task %s is at version %d, expected %d",
			ErrVersionConflict, v.TaskID, head, expectedPrevious)
	}

	createdAt := toMillis(v.CreatedAt)

	taskQuery := "insert or ignore into tasks (id, created_at) values (?, ?)"
	if _, err = tx.ExecContext(ctx, taskQuery, v.TaskID, createdAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}

	versionQuery := `insert into versions (` + versionColumns + `)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, versionQuery,
		v.TaskID,
		v.VersionNumber,
		v.Data.Title,
		v.Data.Content,
		v.Diff.Added,
		v.Diff.Removed,
		v.Diff.Changed,
		v.Diff.Unchanged,
		v.Summary,
		v.ChangeNote,
		createdAt,
	)
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("%w: version %d of task %s exists", ErrVersionConflict, v.VersionNumber, v.TaskID)
		}
		return fmt.Errorf("insert version: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// GetStats returns the totals and the most recently updated task, nil when there are no versions.
func (d *Database) GetStats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats

	countQuery := `select
		(select count(*) from tasks where exists (select 1 from versions where task_id = tasks.id)),
		(select count(*) from versions)`
	if err := d.db.QueryRowContext(ctx, countQuery).Scan(&stats.TotalTasks, &stats.TotalVersions); err != nil {
		return domain.Stats{}, fmt.Errorf("failed to scan counts: %w", err)
	}

	latestQuery := `select task_id, title, created_at
	from versions
	order by created_at desc, version_number desc
	limit 1`

	var (
		latest    domain.LatestTask
		updatedAt int64
	)
	err := d.db.QueryRowContext(ctx, latestQuery).Scan(&latest.TaskID, &latest.Title, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return domain.Stats{}, fmt.Errorf("failed to scan latest task: %w", err)
	}

	latest.UpdatedAt = fromMillis(updatedAt)
	stats.LatestTask = &latest

	return stats, nil
}
