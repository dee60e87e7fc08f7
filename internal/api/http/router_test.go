package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/api/http/handlers"
	"github.com/spec-kit/task-service/internal/auth"
	"github.com/spec-kit/task-service/internal/domain"
	"github.com/spec-kit/task-service/internal/persistence"
	"github.com/spec-kit/task-service/internal/repository"
	"github.com/spec-kit/task-service/internal/service"
)

// In-memory repositories backing full-stack handler tests.

type memUserRepo struct {
	users map[string]*domain.User
}

func (r *memUserRepo) Create(_ context.Context, user *domain.User) error {
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateKey
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memCategoryRepo struct {
	categories map[string]*domain.Category
}

func (r *memCategoryRepo) Create(_ context.Context, category *domain.Category) error {
	for _, existing := range r.categories {
		if existing.Name == category.Name {
			return repository.ErrDuplicateKey
		}
	}
	category.CreatedAt = time.Now()
	clone := *category
	r.categories[category.ID] = &clone
	return nil
}

func (r *memCategoryRepo) GetByID(_ context.Context, id string) (*domain.Category, error) {
	category, ok := r.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *category
	return &clone, nil
}

func (r *memCategoryRepo) GetByName(_ context.Context, name string) (*domain.Category, error) {
	for _, category := range r.categories {
		if category.Name == name {
			clone := *category
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	categories := make([]domain.Category, 0, len(r.categories))
	for _, category := range r.categories {
		categories = append(categories, *category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Name < categories[j].Name })
	return categories, nil
}

type memTaskRepo struct {
	tasks      []*domain.Task
	categories *memCategoryRepo
}

func (r *memTaskRepo) Create(_ context.Context, task *domain.Task) error {
	task.CreatedAt = time.Now().Add(time.Duration(len(r.tasks)) * time.Millisecond)
	task.UpdatedAt = task.CreatedAt
	clone := *task
	clone.Category = nil
	r.tasks = append(r.tasks, &clone)
	return nil
}

func (r *memTaskRepo) ListByUser(ctx context.Context, userID string, filter repository.TaskFilter) ([]domain.Task, error) {
	result := make([]domain.Task, 0)
	for i := len(r.tasks) - 1; i >= 0; i-- {
		task := r.tasks[i]
		if task.UserID != userID {
			continue
		}
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		category, err := r.categories.GetByID(ctx, task.CategoryID)
		if err != nil {
			return nil, err
		}
		if filter.CategoryName != "" && category.Name != filter.CategoryName {
			continue
		}
		clone := *task
		clone.Category = category
		result = append(result, clone)
	}
	return result, nil
}

func (r *memTaskRepo) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Task, error) {
	for _, task := range r.tasks {
		if task.ID == id && task.UserID == userID {
			category, err := r.categories.GetByID(ctx, task.CategoryID)
			if err != nil {
				return nil, err
			}
			clone := *task
			clone.Category = category
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memTaskRepo) Update(_ context.Context, task *domain.Task) error {
	for _, existing := range r.tasks {
		if existing.ID == task.ID && existing.UserID == task.UserID {
			existing.Title = task.Title
			existing.Description = task.Description
			existing.Status = task.Status
			existing.CategoryID = task.CategoryID
			existing.UpdatedAt = time.Now()
			task.UpdatedAt = existing.UpdatedAt
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *memTaskRepo) Delete(_ context.Context, id, userID string) error {
	for i, task := range r.tasks {
		if task.ID == id && task.UserID == userID {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func newTestApp() *fiber.App {
	users := &memUserRepo{users: make(map[string]*domain.User)}
	categories := &memCategoryRepo{categories: make(map[string]*domain.Category)}
	tasks := &memTaskRepo{categories: categories}

	tokens := auth.NewTokenManager("test-secret")
	authService := service.NewAuthService(users, tokens, bcrypt.MinCost)
	categoryService := service.NewCategoryService(categories)
	taskService := service.NewTaskService(tasks, categories)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("task-service-test", "test", &persistence.Postgres{}),
		Auth:           handlers.NewAuthHandler(authService),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Tasks:          handlers.NewTasksHandler(taskService),
		AuthMiddleware: auth.NewMiddleware(tokens, users),
	})
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, raw
}

func decode(t *testing.T, raw []byte) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("decode body %q: %v", raw, err)
	}
	return body
}

func register(t *testing.T, app *fiber.App, name, email, password string) map[string]any {
	t.Helper()

	status, raw := do(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"name": name, "email": email, "password": password,
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", status, raw)
	}
	return decode(t, raw)
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()

	status, raw := do(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", status, raw)
	}
	body := decode(t, raw)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login: token missing in %s", raw)
	}
	return token
}

func createCategory(t *testing.T, app *fiber.App, token, name string) string {
	t.Helper()

	status, raw := do(t, app, http.MethodPost, "/categories", token, map[string]string{"name": name})
	if status != http.StatusCreated {
		t.Fatalf("create category: expected 201, got %d (%s)", status, raw)
	}
	category := decode(t, raw)["category"].(map[string]any)
	return category["id"].(string)
}

func TestRegister_ProjectionOmitsPassword(t *testing.T) {
	app := newTestApp()

	body := register(t, app, "A", "a@x.com", "secret123")
	if body["message"] != "User created successfully" {
		t.Fatalf("unexpected message: %v", body["message"])
	}

	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("user missing in %v", body)
	}
	for _, key := range []string{"id", "name", "email", "createdAt"} {
		if _, present := user[key]; !present {
			t.Fatalf("user projection missing %q: %v", key, user)
		}
	}
	for key := range user {
		if key == "password" || key == "passwordHash" || key == "password_hash" {
			t.Fatalf("user projection leaks %q", key)
		}
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	app := newTestApp()
	register(t, app, "A", "a@x.com", "secret123")

	status, raw := do(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "B", "email": "a@x.com", "password": "different1",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", status, raw)
	}
	if decode(t, raw)["error"] != "User with this email already exists" {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestRegister_ValidationFailure(t *testing.T) {
	app := newTestApp()

	status, raw := do(t, app, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "A", "email": "not-an-email", "password": "short",
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (%s)", status, raw)
	}

	body := decode(t, raw)
	if body["error"] != "Validation failed" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("details missing in %s", raw)
	}
	if _, present := details["email"]; !present {
		t.Fatalf("email detail missing: %v", details)
	}
	if _, present := details["password"]; !present {
		t.Fatalf("password detail missing: %v", details)
	}
}

func TestLogin_EnumerationResistance(t *testing.T) {
	app := newTestApp()
	register(t, app, "A", "a@x.com", "secret123")

	unknownStatus, unknownRaw := do(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ghost@x.com", "password": "secret123",
	})
	wrongStatus, wrongRaw := do(t, app, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "a@x.com", "password": "wrong-password",
	})

	if unknownStatus != http.StatusUnauthorized || wrongStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknownStatus, wrongStatus)
	}
	if !bytes.Equal(unknownRaw, wrongRaw) {
		t.Fatalf("failure responses differ:\n%s\n%s", unknownRaw, wrongRaw)
	}
}

func TestCategories_RoundTrip(t *testing.T) {
	app := newTestApp()
	register(t, app, "A", "a@x.com", "secret123")
	token := login(t, app, "a@x.com", "secret123")

	// Creation requires a bearer token.
	status, raw := do(t, app, http.MethodPost, "/categories", "", map[string]string{"name": "Work"})
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d (%s)", status, raw)
	}

	createCategory(t, app, token, "Work")

	// Duplicate name is rejected with 400.
	status, raw = do(t, app, http.MethodPost, "/categories", token, map[string]string{"name": "Work"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate, got %d (%s)", status, raw)
	}
	if decode(t, raw)["error"] != "Category with this name already exists" {
		t.Fatalf("unexpected body: %s", raw)
	}

	// Listing is public and includes "Work" exactly once, case preserved.
	status, raw = do(t, app, http.MethodGet, "/categories", "", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", status, raw)
	}
	categories := decode(t, raw)["categories"].([]any)
	count := 0
	for _, item := range categories {
		if item.(map[string]any)["name"] == "Work" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one 'Work' category, got %d", count)
	}
}

func TestTasks_EndToEnd(t *testing.T) {
	app := newTestApp()

	register(t, app, "A", "a@x.com", "secret123")
	tokenA := login(t, app, "a@x.com", "secret123")
	register(t, app, "B", "b@x.com", "secret456")
	tokenB := login(t, app, "b@x.com", "secret456")

	categoryID := createCategory(t, app, tokenA, "Work")

	// A creates a task; status defaults to PENDING.
	status, raw := do(t, app, http.MethodPost, "/tasks", tokenA, map[string]any{
		"title":       "Write report",
		"description": "Quarterly numbers",
		"categoryId":  categoryID,
	})
	if status != http.StatusCreated {
		t.Fatalf("create task: expected 201, got %d (%s)", status, raw)
	}
	task := decode(t, raw)["task"].(map[string]any)
	if task["status"] != "PENDING" {
		t.Fatalf("expected PENDING default, got %v", task["status"])
	}
	if task["category"].(map[string]any)["name"] != "Work" {
		t.Fatalf("nested category missing: %v", task)
	}
	taskID := task["id"].(string)

	// B's task list excludes A's task.
	status, raw = do(t, app, http.MethodGet, "/tasks", tokenB, nil)
	if status != http.StatusOK {
		t.Fatalf("list tasks: expected 200, got %d (%s)", status, raw)
	}
	if tasks := decode(t, raw)["tasks"].([]any); len(tasks) != 0 {
		t.Fatalf("user B sees foreign tasks: %s", raw)
	}

	// B cannot mutate A's task even with the correct id.
	status, raw = do(t, app, http.MethodPut, "/tasks/"+taskID, tokenB, map[string]any{"title": "Hijacked"})
	if status != http.StatusNotFound {
		t.Fatalf("foreign update: expected 404, got %d (%s)", status, raw)
	}
	if decode(t, raw)["error"] != "Task not found or unauthorized" {
		t.Fatalf("unexpected body: %s", raw)
	}
	status, _ = do(t, app, http.MethodDelete, "/tasks/"+taskID, tokenB, nil)
	if status != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", status)
	}

	// A applies a partial update; untouched fields persist.
	status, raw = do(t, app, http.MethodPut, "/tasks/"+taskID, tokenA, map[string]any{"status": "COMPLETED"})
	if status != http.StatusOK {
		t.Fatalf("update: expected 200, got %d (%s)", status, raw)
	}
	updated := decode(t, raw)["task"].(map[string]any)
	if updated["status"] != "COMPLETED" || updated["title"] != "Write report" {
		t.Fatalf("partial update broken: %v", updated)
	}

	// Status filter matches case-insensitively (upper-cased server side).
	status, raw = do(t, app, http.MethodGet, "/tasks?status=completed", tokenA, nil)
	if status != http.StatusOK {
		t.Fatalf("filtered list: expected 200, got %d", status)
	}
	if tasks := decode(t, raw)["tasks"].([]any); len(tasks) != 1 {
		t.Fatalf("expected one completed task, got %s", raw)
	}

	// A deletes the task.
	status, raw = do(t, app, http.MethodDelete, "/tasks/"+taskID, tokenA, nil)
	if status != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d (%s)", status, raw)
	}
	if decode(t, raw)["message"] != "Task deleted successfully" {
		t.Fatalf("unexpected body: %s", raw)
	}

	status, raw = do(t, app, http.MethodGet, "/tasks", tokenA, nil)
	if status != http.StatusOK {
		t.Fatalf("list after delete: expected 200, got %d", status)
	}
	if tasks := decode(t, raw)["tasks"].([]any); len(tasks) != 0 {
		t.Fatalf("task not deleted: %s", raw)
	}
}

func TestTasks_CreateWithMissingCategory(t *testing.T) {
	app := newTestApp()
	register(t, app, "A", "a@x.com", "secret123")
	token := login(t, app, "a@x.com", "secret123")

	status, raw := do(t, app, http.MethodPost, "/tasks", token, map[string]any{
		"title":       "Orphan",
		"description": "No category",
		"categoryId":  "missing",
	})
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (%s)", status, raw)
	}
	if decode(t, raw)["error"] != "Category not found" {
		t.Fatalf("unexpected body: %s", raw)
	}
}

func TestTasks_RequireBearerToken(t *testing.T) {
	app := newTestApp()

	status, raw := do(t, app, http.MethodGet, "/tasks", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", status, raw)
	}
	if decode(t, raw)["error"] != "No token provided" {
		t.Fatalf("unexpected body: %s", raw)
	}
}
