package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/task-service/internal/domain"
)

// TaskFilter narrows task listings. Zero values mean no filtering.
type TaskFilter struct {
	CategoryName string
	Status       domain.TaskStatus
}

// TaskRepository defines persistence access for tasks. Every read and write
// is scoped by the owning user id; a task owned by someone else behaves as
// if it does not exist.
type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	ListByUser(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Task, error)
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id, userID string) error
}

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation.
func NewTaskRepository(pool *pgxpool.Pool) TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	const query = `
        INSERT INTO tasks (id, title, description, status, user_id, category_id)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	if err := r.pool.QueryRow(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.Status,
		task.UserID,
		task.CategoryID,
	).Scan(&task.CreatedAt, &task.UpdatedAt); err != nil {
		return translateError(err)
	}
	return nil
}

func (r *taskRepository) ListByUser(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error) {
	query := `
        SELECT t.id, t.title, t.description, t.status, t.user_id, t.category_id,
               t.created_at, t.updated_at, c.id, c.name, c.created_at
        FROM tasks t
        JOIN categories c ON c.id = t.category_id
        WHERE t.user_id = $1`
	args := []any{userID}

	if filter.CategoryName != "" {
		args = append(args, filter.CategoryName)
		query += fmt.Sprintf(" AND c.name = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND t.status = $%d", len(args))
	}
	query += " ORDER BY t.created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Task, error) {
	const query = `
        SELECT t.id, t.title, t.description, t.status, t.user_id, t.category_id,
               t.created_at, t.updated_at, c.id, c.name, c.created_at
        FROM tasks t
        JOIN categories c ON c.id = t.category_id
        WHERE t.id = $1 AND t.user_id = $2`

	return scanTask(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *taskRepository) Update(ctx context.Context, task *domain.Task) error {
	const query = `
        UPDATE tasks SET title=$1, description=$2, status=$3, category_id=$4, updated_at=NOW()
        WHERE id=$5 AND user_id=$6
        RETURNING updated_at`

	return r.pool.QueryRow(ctx, query,
		task.Title,
		task.Description,
		task.Status,
		task.CategoryID,
		task.ID,
		task.UserID,
	).Scan(&task.UpdatedAt)
}

func (r *taskRepository) Delete(ctx context.Context, id, userID string) error {
	const query = `DELETE FROM tasks WHERE id=$1 AND user_id=$2`

	cmd, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var category domain.Category
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Status,
		&task.UserID,
		&task.CategoryID,
		&task.CreatedAt,
		&task.UpdatedAt,
		&category.ID,
		&category.Name,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	task.Category = &category
	return &task, nil
}
