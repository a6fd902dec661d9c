package database

import (
	"context"
	"fmt"
	"time"

	"staysync/internal/models"
)

const taskColumns = `id, task_type, payload, status, retry_count, last_error, dedupe_key, scheduled_at, created_at, processed_at, next_retry_at`

func scanTask(row interface{ Scan(...any) error }) (*models.SyncTask, error) {
	var t models.SyncTask
	err := row.Scan(
		&t.ID, &t.TaskType, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
		&t.DedupeKey, &t.ScheduledAt, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateSyncTask inserts a queue row. When the task carries a dedupe key the
// insert is a no-op if a row with that key already exists; task.ID is 0 in
// that case.
func (db *DB) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	query := `INSERT INTO sync_queue (task_type, payload, status, retry_count, last_error, dedupe_key, scheduled_at, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if task.DedupeKey != nil {
		query = `INSERT OR IGNORE INTO sync_queue (task_type, payload, status, retry_count, last_error, dedupe_key, scheduled_at, created_at, next_retry_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	now := time.Now()
	if task.ScheduledAt.IsZero() {
		task.ScheduledAt = now
	}
	if task.Payload == "" {
		task.Payload = "{}"
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	result, err := db.ExecContext(ctx, query,
		task.TaskType,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		task.DedupeKey,
		task.ScheduledAt,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm sync task insert: %w", err)
	}
	if affected == 0 {
		return nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// GetDueSyncTasks returns runnable tasks: pending or retry, scheduled time
// reached, and retry delay (if any) elapsed.
func (db *DB) GetDueSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_queue
              WHERE status IN ('pending', 'retry')
                AND scheduled_at <= ?
                AND (next_retry_at IS NULL OR next_retry_at <= ?)
              ORDER BY created_at ASC LIMIT ?`
	now := time.Now()
	rows, err := db.QueryContext(ctx, query, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (db *DB) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now()

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE sync_queue SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, errMsg, nextRetryAt, id}
	}

	_, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}

// RescheduleRecurring re-arms a standing schedule row for its next firing
// instead of completing it.
func (db *DB) RescheduleRecurring(ctx context.Context, id int64, nextRun time.Time) error {
	query := `UPDATE sync_queue
              SET status = ?, scheduled_at = ?, retry_count = 0, last_error = NULL, next_retry_at = NULL, processed_at = ?
              WHERE id = ?`
	now := time.Now()
	_, err := db.ExecContext(ctx, query, models.TaskStatusPending, nextRun, &now, id)
	if err != nil {
		return fmt.Errorf("failed to reschedule recurring task: %w", err)
	}
	return nil
}

func (db *DB) GetSyncTaskByDedupeKey(ctx context.Context, key string) (*models.SyncTask, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_queue WHERE dedupe_key = ?`
	task, err := scanTask(db.QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, fmt.Errorf("failed to get sync task by dedupe key: %w", err)
	}
	return task, nil
}

func (db *DB) GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error) {
	query := `SELECT ` + taskColumns + ` FROM sync_queue WHERE status = 'failed' ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
