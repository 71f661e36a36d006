package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"audittrail/internal/domain"
)

func (d *Database) AddSource(ctx context.Context, taskID string, sourceURL string) error {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return errors.New("source URL is empty")
	}

	query := "insert or ignore into sources (task_id, url, created_at) values (?, ?, strftime('%s', 'now') * 1000)"

	_, err := d.db.ExecContext(ctx, query, taskID, sourceURL)

	return err
}

func (d *Database) RemoveSource(ctx context.Context, sourceID int64) error {
	query := "delete from sources where id = ?"

	_, err := d.db.ExecContext(ctx, query, sourceID)

	return err
}

// GetSources lists every watched source URL across tasks.
func (d *Database) GetSources(ctx context.Context) ([]domain.Source, error) {
	query := "select id, task_id, url, created_at from sources order by id"

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetSources")

	var sources []domain.Source
	for rows.Next() {
		var (
			s         domain.Source
			createdAt int64
		)
		if err = rows.Scan(&s.ID, &s.TaskID, &s.URL, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.URL = strings.TrimSpace(s.URL)
		s.CreatedAt = fromMillis(createdAt)
		sources = append(sources, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return sources, nil
}

func (d *Database) GetUserSettingsWithDefault(
	ctx context.Context,
	userID int64,
) (*domain.UserSettings, error) {
	query := `select user_id, digest_hour_utc, selected_task_id
	from user_settings
	where user_id = ?`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetUserSettingsWithDefault", "userID", userID)

	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate rows: %w", err)
		}
		return &domain.UserSettings{
			UserID:        userID,
			DigestHourUTC: 0,
		}, nil
	}

	var us domain.UserSettings
	if err = rows.Scan(&us.UserID, &us.DigestHourUTC, &us.SelectedTaskID); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return &us, nil
}

func (d *Database) UpsertUserSettings(ctx context.Context, userSettings *domain.UserSettings) error {
	query := `insert into user_settings (user_id, digest_hour_utc, selected_task_id)
	values (?, ?, ?)
	on conflict (user_id) do update
	set digest_hour_utc = excluded.digest_hour_utc,
	selected_task_id = excluded.selected_task_id`

	_, err := d.db.ExecContext(ctx, query,
		userSettings.UserID,
		userSettings.DigestHourUTC,
		userSettings.SelectedTaskID)

	return err
}

// GetDigestHourUsers lists users that want their daily digest at hourUTC.
func (d *Database) GetDigestHourUsers(ctx context.Context, hourUTC int64) ([]int64, error) {
	query := "select user_id from user_settings where digest_hour_utc = ? order by user_id"

	rows, err := d.db.QueryContext(ctx, query, hourUTC)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetDigestHourUsers", "hourUTC", hourUTC)

	var users []int64
	for rows.Next() {
		var userID int64
		if err = rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		users = append(users, userID)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}
