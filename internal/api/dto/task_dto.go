package dto

import (
	"time"

	"github.com/spec-kit/task-service/internal/domain"
)

// CreateTaskRequest payload. Status is optional and defaults to PENDING.
type CreateTaskRequest struct {
	Title       string             `json:"title" validate:"required,min=1,max=200"`
	Description string             `json:"description" validate:"required"`
	Status      *domain.TaskStatus `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	CategoryID  string             `json:"categoryId" validate:"required"`
}

// UpdateTaskRequest is a partial update. Pointer fields distinguish a field
// that is absent from one explicitly set; nil fields are not applied.
type UpdateTaskRequest struct {
	Title       *string            `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string            `json:"description"`
	Status      *domain.TaskStatus `json:"status" validate:"omitempty,oneof=PENDING IN_PROGRESS COMPLETED"`
	CategoryID  *string            `json:"categoryId" validate:"omitempty,min=1"`
}

// TaskCategory is the category projection nested in task responses.
type TaskCategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TaskResponse is the public task shape.
type TaskResponse struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      domain.TaskStatus `json:"status"`
	UserID      string            `json:"userId"`
	CategoryID  string            `json:"categoryId"`
	Category    TaskCategory      `json:"category"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}
