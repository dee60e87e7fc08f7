package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/task-service/internal/api/dto"
	"github.com/spec-kit/task-service/internal/api/validation"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/service"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// TasksHandler manages the caller-scoped task endpoints.
type TasksHandler struct {
	service *service.TaskService
}

// NewTasksHandler constructs handler.
func NewTasksHandler(taskService *service.TaskService) *TasksHandler {
	return &TasksHandler{service: taskService}
}

// List handles GET /tasks with optional category and status query filters.
func (h *TasksHandler) List(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	filter := service.TaskFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}
	tasks, err := h.service.List(c.Context(), identity.ID, filter)
	if err != nil {
		return err
	}

	items := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		items = append(items, taskResponse(&tasks[i]))
	}
	return c.JSON(fiber.Map{"tasks": items})
}

// Create handles POST /tasks.
func (h *TasksHandler) Create(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Validation failed", map[string]any{"body": "invalid JSON payload"})
	}
	if err := validation.Validate(req); err != nil {
		return err
	}

	task, err := h.service.Create(c.Context(), identity.ID, service.TaskCreateInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "Task created successfully",
		"task":    taskResponse(task),
	})
}

// Update handles PUT /tasks/:id as a partial update.
func (h *TasksHandler) Update(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("Validation failed", map[string]any{"body": "invalid JSON payload"})
	}
	if err := validation.Validate(req); err != nil {
		return err
	}

	task, err := h.service.Update(c.Context(), identity.ID, c.Params("id"), service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		CategoryID:  req.CategoryID,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Task updated successfully",
		"task":    taskResponse(task),
	})
}

// Delete handles DELETE /tasks/:id.
func (h *TasksHandler) Delete(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("Authentication required")
	}

	if err := h.service.Delete(c.Context(), identity.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Task deleted successfully"})
}

func taskResponse(task *domain.Task) dto.TaskResponse {
	resp := dto.TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		UserID:      task.UserID,
		CategoryID:  task.CategoryID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
	if task.Category != nil {
		resp.Category = dto.TaskCategory{ID: task.Category.ID, Name: task.Category.Name}
	}
	return resp
}
