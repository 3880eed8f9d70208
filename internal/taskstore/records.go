package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dramaflow/internal/services"
	"dramaflow/internal/tasks"
)

// ErrNotFound is returned by Get for an unknown task ID.
var ErrNotFound = fmt.Errorf("archived task %w", services.ErrNotFound)

// Filter narrows List. Zero values match everything; Limit 0 means no limit.
type Filter struct {
	Type   tasks.Type
	Status tasks.Status
	Limit  int
}

const taskColumns = "id, type, status, progress, prompt, params_json, result_url, error, retry_of, cached, created_at, updated_at"

// Record upserts a task snapshot. Only terminal snapshots are accepted.
func (s *Store) Record(ctx context.Context, task tasks.Task) error {
	if strings.TrimSpace(task.ID) == "" {
		return errors.New("record task: id is empty")
	}
	if !task.Status.IsTerminal() {
		return fmt.Errorf("record task %s: status %s is not terminal", task.ID, task.Status)
	}
	params, err := json.Marshal(task.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO task_history (`+taskColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             progress = excluded.progress,
             result_url = excluded.result_url,
             error = excluded.error,
             cached = excluded.cached,
             updated_at = excluded.updated_at`,
		task.ID,
		task.Type,
		task.Status,
		task.Progress,
		task.Prompt,
		string(params),
		nullableString(task.ResultURL),
		nullableString(task.Error),
		nullableString(task.RetryOf),
		boolToInt(task.Cached),
		formatTime(task.CreatedAt),
		formatTime(task.UpdatedAt),
	); err != nil {
		return fmt.Errorf("record task: %w", err)
	}
	return nil
}

// Get fetches one archived task.
func (s *Store) Get(ctx context.Context, id string) (tasks.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM task_history WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tasks.Task{}, ErrNotFound
	}
	if err != nil {
		return tasks.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// List returns archived tasks, most recently updated first.
func (s *Store) List(ctx context.Context, filter Filter) ([]tasks.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	query := `SELECT ` + taskColumns + ` FROM task_history`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY updated_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list task history: %w", err)
	}
	defer rows.Close()

	var out []tasks.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

// Delete removes one archived task and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM task_history WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Prune removes tasks last updated before cutoff and returns how many.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM task_history WHERE updated_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune task history: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts archived tasks by status.
func (s *Store) Stats(ctx context.Context) (map[tasks.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM task_history GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("task history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[tasks.Status]int)
	for rows.Next() {
		var status tasks.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (tasks.Task, error) {
	var (
		task       tasks.Task
		typ        string
		status     string
		paramsJSON string
		resultURL  sql.NullString
		errorMsg   sql.NullString
		retryOf    sql.NullString
		cached     int64
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&task.ID,
		&typ,
		&status,
		&task.Progress,
		&task.Prompt,
		&paramsJSON,
		&resultURL,
		&errorMsg,
		&retryOf,
		&cached,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return tasks.Task{}, err
	}
	task.Type = tasks.Type(typ)
	task.Status = tasks.Status(status)
	task.ResultURL = resultURL.String
	task.Error = errorMsg.String
	task.RetryOf = retryOf.String
	task.Cached = cached != 0
	if err := json.Unmarshal([]byte(paramsJSON), &task.Params); err != nil {
		return tasks.Task{}, fmt.Errorf("decode params for %s: %w", task.ID, err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// formatTime uses a fixed-width UTC layout so updated_at sorts and compares
// lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
