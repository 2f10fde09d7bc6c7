package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/taskdeck/backend/internal/model"
)

func (db *Postgres) EnsureTaskSchema(ctx context.Context) error {
	queries := []string{
		`
		DO $$ BEGIN
			CREATE TYPE task_status AS ENUM ('TODO', 'IN_PROGRESS', 'DONE');
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$
		`,
		`
		DO $$ BEGIN
			CREATE TYPE task_priority AS ENUM ('LOW', 'MEDIUM', 'HIGH');
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$
		`,
		`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			status task_status NOT NULL DEFAULT 'TODO',
			priority task_priority NOT NULL DEFAULT 'MEDIUM',
			due_date TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE
		)
		`,
		`CREATE INDEX IF NOT EXISTS tasks_user_id_idx ON tasks(user_id)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return err
		}
	}
	return nil
}

func (db *Postgres) CreateTask(ctx context.Context, userID string, req model.CreateTaskRequest) (*model.Task, error) {
	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date, created_at, updated_at, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW(), $7)
		RETURNING id, title, description, status, priority, due_date, created_at, updated_at, user_id
	`
	var task model.Task
	err := db.Pool.QueryRow(ctx, query,
		uuid.NewString(),
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		req.DueDate,
		userID,
	).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (db *Postgres) ListTasks(ctx context.Context, userID string) ([]model.Task, error) {
	query := `
		SELECT id, title, description, status, priority, due_date, created_at, updated_at, user_id
		FROM tasks
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []model.Task
	for rows.Next() {
		var task model.Task
		if err := rows.Scan(
			&task.ID,
			&task.Title,
			&task.Description,
			&task.Status,
			&task.Priority,
			&task.DueDate,
			&task.CreatedAt,
			&task.UpdatedAt,
			&task.UserID,
		); err != nil {
			return nil, err
		}
		list = append(list, task)
	}

	if list == nil {
		list = []model.Task{}
	}
	return list, rows.Err()
}

func (db *Postgres) GetTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	query := `
		SELECT id, title, description, status, priority, due_date, created_at, updated_at, user_id
		FROM tasks
		WHERE id = $1 AND user_id = $2
	`
	var task model.Task
	err := db.Pool.QueryRow(ctx, query, taskID, userID).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (db *Postgres) UpdateTask(ctx context.Context, userID, taskID string, req model.UpdateTaskRequest) (*model.Task, error) {
	query := `
		UPDATE tasks
		SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			status = COALESCE($3, status),
			priority = COALESCE($4, priority),
			due_date = COALESCE($5, due_date),
			updated_at = NOW()
		WHERE id = $6 AND user_id = $7
		RETURNING id, title, description, status, priority, due_date, created_at, updated_at, user_id
	`
	var task model.Task
	err := db.Pool.QueryRow(ctx, query,
		req.Title,
		req.Description,
		req.Status,
		req.Priority,
		req.DueDate,
		taskID,
		userID,
	).Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.DueDate,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.UserID,
	)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (db *Postgres) DeleteTask(ctx context.Context, userID, taskID string) (bool, error) {
	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	tag, err := db.Pool.Exec(ctx, query, taskID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (db *Postgres) TaskStats(ctx context.Context, userID string, now time.Time) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		ByStatus:   map[string]int64{},
		ByPriority: map[string]int64{},
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT status, priority, COUNT(*)
		FROM tasks
		WHERE user_id = $1
		GROUP BY status, priority
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status, priority string
		var count int64
		if err := rows.Scan(&status, &priority, &count); err != nil {
			return nil, err
		}
		stats.ByStatus[status] += count
		stats.ByPriority[priority] += count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	err = db.Pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM tasks
		WHERE user_id = $1 AND due_date < $2 AND status <> 'DONE'
	`, userID, now).Scan(&stats.Overdue)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
