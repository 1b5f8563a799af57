package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"expenses/internal/core"
)

const taskColumns = `id, user_id, title, description, status, priority, due_date, tags,
	completed_at, created_at, updated_at`

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	Status   core.TaskStatus
	Priority core.TaskPriority
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t *core.Task) error {
	now := r.now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullTime(t.DueDate), tags, nullTime(t.CompletedAt), formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateTask(ctx context.Context, t *core.Task) error {
	t.UpdatedAt = r.now().UTC()

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE tasks SET
		title = ?, description = ?, status = ?, priority = ?, due_date = ?, tags = ?,
		completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		t.Title, t.Description, string(t.Status), string(t.Priority), nullTime(t.DueDate), tags,
		nullTime(t.CompletedAt), formatTime(t.UpdatedAt), t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return expectOne(res, "task "+t.ID)
}

func (r *SQLiteRepository) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return expectOne(res, "task "+id)
}

func (r *SQLiteRepository) GetTask(ctx context.Context, userID, id string) (*core.Task, error) {
	tasks, err := r.queryTasks(ctx, `WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return &tasks[0], nil
}

// ListTasks returns userID's tasks, newest first.
func (r *SQLiteRepository) ListTasks(ctx context.Context, userID string, f TaskFilter) ([]core.Task, error) {
	clauses := []string{"user_id = ?"}
	args := []any{userID}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(f.Priority))
	}
	return r.queryTasks(ctx, `WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at DESC, id DESC`, args...)
}

func (r *SQLiteRepository) queryTasks(ctx context.Context, tail string, args ...any) ([]core.Task, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []core.Task{}
	for rows.Next() {
		var (
			t                    core.Task
			status, priority     string
			due, completed       sql.NullString
			tags                 string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &status, &priority,
			&due, &tags, &completed, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Status = core.TaskStatus(status)
		t.Priority = core.TaskPriority(priority)
		if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of task %s: %w", t.ID, err)
		}
		if t.Tags == nil {
			t.Tags = []string{}
		}
		if t.DueDate, err = parseNullTime(due); err != nil {
			return nil, err
		}
		if t.CompletedAt, err = parseNullTime(completed); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	return string(b), nil
}
