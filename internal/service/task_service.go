package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/repository"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TaskCreateInput carries fields for a new task. A nil status defaults to
// PENDING.
type TaskCreateInput struct {
	Title       string
	Description string
	Status      *domain.TaskStatus
	CategoryID  string
}

// TaskPatch carries a partial update. Nil fields are left untouched, which
// is how "absent" is distinguished from an explicit zero value.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *domain.TaskStatus
	CategoryID  *string
}

// TaskFilter narrows task listings by category name and/or status.
type TaskFilter struct {
	Category string
	Status   string
}

// TaskService manages user-scoped tasks. Every operation takes the resolved
// caller id and never touches tasks owned by anyone else; a foreign task is
// reported as not found, never as forbidden, so task ids cannot be probed.
type TaskService struct {
	tasks      repository.TaskRepository
	categories repository.CategoryRepository
}

// NewTaskService builds the service.
func NewTaskService(tasks repository.TaskRepository, categories repository.CategoryRepository) *TaskService {
	return &TaskService{tasks: tasks, categories: categories}
}

// List returns the caller's tasks ordered by creation time descending.
func (s *TaskService) List(ctx context.Context, userID string, filter TaskFilter) ([]domain.Task, error) {
	repoFilter := repository.TaskFilter{CategoryName: filter.Category}
	if filter.Status != "" {
		repoFilter.Status = domain.TaskStatus(strings.ToUpper(filter.Status))
	}
	return s.tasks.ListByUser(ctx, userID, repoFilter)
}

// Create adds a task owned by the caller. The referenced category must exist.
func (s *TaskService) Create(ctx context.Context, userID string, input TaskCreateInput) (*domain.Task, error) {
	category, err := s.getCategory(ctx, input.CategoryID)
	if err != nil {
		return nil, err
	}

	status := domain.TaskStatusPending
	if input.Status != nil {
		status = *input.Status
	}

	task := &domain.Task{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		UserID:      userID,
		CategoryID:  category.ID,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}
	task.Category = category
	return task, nil
}

// Update applies a partial update to a task owned by the caller.
func (s *TaskService) Update(ctx context.Context, userID, taskID string, patch TaskPatch) (*domain.Task, error) {
	task, err := s.tasks.GetByIDForUser(ctx, taskID, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Task not found or unauthorized")
		}
		return nil, err
	}

	if patch.CategoryID != nil {
		category, err := s.getCategory(ctx, *patch.CategoryID)
		if err != nil {
			return nil, err
		}
		task.CategoryID = category.ID
		task.Category = category
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Task not found or unauthorized")
		}
		return nil, err
	}
	return task, nil
}

// Delete removes a task owned by the caller.
func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	if err := s.tasks.Delete(ctx, taskID, userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("Task not found or unauthorized")
		}
		return err
	}
	return nil
}

func (s *TaskService) getCategory(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("Category not found")
		}
		return nil, err
	}
	return category, nil
}
