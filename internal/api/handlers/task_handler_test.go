package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/mkotelnikov/taskboard/internal/api"
	"github.com/mkotelnikov/taskboard/internal/entity"
	"github.com/mkotelnikov/taskboard/internal/infrastructure/auth"
	"github.com/mkotelnikov/taskboard/internal/repository"
	"github.com/mkotelnikov/taskboard/internal/usecase"
)

// memTaskRepository - задачи в памяти вместо Postgres
type memTaskRepository struct {
	mu    sync.Mutex
	seq   int
	tasks []*entity.Task
}

var _ repository.ITaskRepository = (*memTaskRepository)(nil)

func (r *memTaskRepository) Create(ctx context.Context, req *entity.CreateTaskRequest) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	task := &entity.Task{
		ID:          fmt.Sprintf("task-%d", r.seq),
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		UserID:      req.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.tasks = append(r.tasks, task)
	return copyTask(task), nil
}

func (r *memTaskRepository) GetByTaskID(ctx context.Context, taskID string) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range r.tasks {
		if task.ID == taskID {
			return copyTask(task), nil
		}
	}
	return nil, nil
}

func (r *memTaskRepository) Update(ctx context.Context, id string, updates map[string]interface{}) (*entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range r.tasks {
		if task.ID != id {
			continue
		}
		if title, ok := updates["title"]; ok {
			task.Title = title.(string)
		}
		if desc, ok := updates["description"]; ok {
			if desc == nil {
				task.Description = nil
			} else {
				value := desc.(string)
				task.Description = &value
			}
		}
		if status, ok := updates["status"]; ok {
			task.Status = status.(entity.TaskStatus)
		}
		task.UpdatedAt = time.Now()
		return copyTask(task), nil
	}
	return nil, nil
}

func (r *memTaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, task := range r.tasks {
		if task.ID == id {
			r.tasks = append(r.tasks[:i], r.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memTaskRepository) ListByOwner(ctx context.Context, userID string) ([]entity.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// новые сверху, как ORDER BY created_at DESC
	var result []entity.Task
	for i := len(r.tasks) - 1; i >= 0; i-- {
		if r.tasks[i].UserID == userID {
			result = append(result, *copyTask(r.tasks[i]))
		}
	}
	return result, nil
}

func copyTask(task *entity.Task) *entity.Task {
	clone := *task
	if task.Description != nil {
		desc := *task.Description
		clone.Description = &desc
	}
	return &clone
}

// memUserRepository - фиксированный набор пользователей
type memUserRepository struct {
	users map[string]*entity.User
}

var _ repository.IUserRepository = (*memUserRepository)(nil)

func (r *memUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.users[id], nil
}

func (r *memUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	for _, user := range r.users {
		if user.Email != nil && *user.Email == email {
			return user, nil
		}
	}
	return nil, nil
}

func (r *memUserRepository) CreateWithAuth(ctx context.Context, name, email, passwordHash string) (*entity.User, error) {
	return nil, nil
}

func (r *memUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

// memAuditRepository - записи аудита в памяти, новые сверху
type memAuditRepository struct {
	mu      sync.Mutex
	seq     int
	records []entity.TaskAudit
}

var _ repository.ITaskAuditRepository = (*memAuditRepository)(nil)

func (r *memAuditRepository) Create(ctx context.Context, audit *entity.TaskAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	record := *audit
	record.ID = r.seq
	r.records = append(r.records, record)
	return nil
}

func (r *memAuditRepository) ListByEntityID(ctx context.Context, entityID string) ([]entity.TaskAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []entity.TaskAudit
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].EntityID == entityID {
			result = append(result, r.records[i])
		}
	}
	return result, nil
}

// testEnv собирает реальный роутер поверх in-memory хранилища
type testEnv struct {
	server     *httptest.Server
	taskRepo   *memTaskRepository
	auditRepo  *memAuditRepository
	jwtManager *auth.JWTManager
}

func newTestEnv(t *testing.T, userIDs ...string) *testEnv {
	t.Helper()

	users := make(map[string]*entity.User)
	for _, id := range userIDs {
		email := id + "@example.com"
		users[id] = &entity.User{ID: id, Name: "User " + id, Email: &email, IsActive: true}
	}

	taskRepo := &memTaskRepository{}
	userRepo := &memUserRepository{users: users}
	auditRepo := &memAuditRepository{}
	jwtManager := auth.NewJWTManager()

	taskService := usecase.NewTaskService(taskRepo, userRepo, auditRepo, nil)
	router := api.NewRouter(taskService, nil, jwtManager)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:     server,
		taskRepo:   taskRepo,
		auditRepo:  auditRepo,
		jwtManager: jwtManager,
	}
}

func (e *testEnv) tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := e.jwtManager.GenerateAccessToken(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		fields = nil
	}
	return resp, fields
}

func fieldString(t *testing.T, fields map[string]json.RawMessage, key string) string {
	t.Helper()
	raw, ok := fields[key]
	if !ok {
		t.Fatalf("field %q missing in response: %v", key, fields)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		t.Fatalf("field %q is not a string: %s", key, raw)
	}
	return value
}

// Tests

func TestTasksRequireAuthentication(t *testing.T) {
	env := newTestEnv(t, "u1")

	resp, fields := env.do(t, http.MethodGet, "/api/v1/tasks", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
	if _, ok := fields["error"]; !ok {
		t.Error("Expected error body for unauthenticated request")
	}
}

func TestTasksRejectInvalidToken(t *testing.T) {
	env := newTestEnv(t, "u1")

	resp, _ := env.do(t, http.MethodGet, "/api/v1/tasks", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	// без title
	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", token, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "Title is required" {
		t.Errorf("Expected title error, got %q", msg)
	}

	// с пустым title
	resp, _ = env.do(t, http.MethodPost, "/api/v1/tasks", token, map[string]string{"title": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for blank title, got %d", resp.StatusCode)
	}

	// с неизвестным статусом
	resp, fields = env.do(t, http.MethodPost, "/api/v1/tasks", token,
		map[string]string{"title": "Task", "status": "done"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "Status must be one of: pending, in-progress, completed" {
		t.Errorf("Expected status hint, got %q", msg)
	}
}

func TestCreateTaskTrimsTitle(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", token,
		map[string]string{"title": "  Buy milk  "})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if title := fieldString(t, fields, "title"); title != "Buy milk" {
		t.Errorf("Expected trimmed title, got %q", title)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	// создаем
	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", token,
		map[string]string{"title": "Write spec"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	if status := fieldString(t, fields, "status"); status != "pending" {
		t.Errorf("Expected default status pending, got %q", status)
	}
	if userID := fieldString(t, fields, "user_id"); userID != "u1" {
		t.Errorf("Expected owner u1, got %q", userID)
	}
	taskID := fieldString(t, fields, "id")

	// переводим в completed
	resp, fields = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token,
		map[string]string{"status": "completed"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if status := fieldString(t, fields, "status"); status != "completed" {
		t.Errorf("Expected status completed, got %q", status)
	}
	if title := fieldString(t, fields, "title"); title != "Write spec" {
		t.Errorf("Expected title unchanged, got %q", title)
	}

	// удаляем
	resp, fields = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "message"); msg != "Task deleted successfully" {
		t.Errorf("Expected delete confirmation, got %q", msg)
	}

	// задачи больше нет
	resp, fields = env.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "Task not found" {
		t.Errorf("Expected not found error, got %q", msg)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t, "u1", "u2")
	ownerToken := env.tokenFor(t, "u1")
	intruderToken := env.tokenFor(t, "u2")

	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", ownerToken,
		map[string]string{"title": "Private task"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	taskID := fieldString(t, fields, "id")

	resp, _ = env.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, intruderToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("GET: expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, intruderToken,
		map[string]string{"title": "Hijacked"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("PUT: expected 403 for non-owner, got %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/v1/tasks/"+taskID, intruderToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("DELETE: expected 403 for non-owner, got %d", resp.StatusCode)
	}

	// владелец задачу по-прежнему видит
	resp, _ = env.do(t, http.MethodGet, "/api/v1/tasks/"+taskID, ownerToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected owner access intact, got %d", resp.StatusCode)
	}
}

func TestListTasksScopedAndOrdered(t *testing.T) {
	env := newTestEnv(t, "u1", "u2")
	token1 := env.tokenFor(t, "u1")
	token2 := env.tokenFor(t, "u2")

	env.do(t, http.MethodPost, "/api/v1/tasks", token1, map[string]string{"title": "First"})
	env.do(t, http.MethodPost, "/api/v1/tasks", token2, map[string]string{"title": "Other user task"})
	env.do(t, http.MethodPost, "/api/v1/tasks", token1, map[string]string{"title": "Second"})

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token1)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var tasks []entity.Task
	if err := json.NewDecoder(resp.Body).Decode(&tasks); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}

	if len(tasks) != 2 {
		t.Fatalf("Expected 2 tasks for u1, got %d", len(tasks))
	}
	if tasks[0].Title != "Second" || tasks[1].Title != "First" {
		t.Errorf("Expected newest first, got %q then %q", tasks[0].Title, tasks[1].Title)
	}
	for _, task := range tasks {
		if task.UserID != "u1" {
			t.Errorf("Foreign task leaked into list: %+v", task)
		}
	}
}

func TestUpdateDescriptionSemantics(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", token,
		map[string]string{"title": "Task", "description": "Initial description"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	taskID := fieldString(t, fields, "id")

	// пустое тело ничего не меняет
	resp, fields = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token, map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for empty body, got %d", resp.StatusCode)
	}
	if desc := fieldString(t, fields, "description"); desc != "Initial description" {
		t.Errorf("Expected description untouched, got %q", desc)
	}

	// пустая строка очищает описание
	resp, fields = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token,
		map[string]string{"description": ""})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if raw := string(fields["description"]); raw != "null" {
		t.Errorf("Expected description cleared to null, got %s", raw)
	}

	// явный null тоже очищает описание
	resp, _ = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token,
		map[string]string{"description": "Restored description"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	resp, fields = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token,
		map[string]interface{}{"description": nil})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if raw := string(fields["description"]); raw != "null" {
		t.Errorf("Expected description cleared on explicit null, got %s", raw)
	}
}

func TestUpdateTaskInvalidStatusRejected(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", token,
		map[string]string{"title": "Task"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	taskID := fieldString(t, fields, "id")

	resp, fields = env.do(t, http.MethodPut, "/api/v1/tasks/"+taskID, token,
		map[string]string{"status": "done"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "Status must be one of: pending, in-progress, completed" {
		t.Errorf("Expected status hint, got %q", msg)
	}
}

func TestUpdateMissingTaskReturnsNotFound(t *testing.T) {
	env := newTestEnv(t, "u1")
	token := env.tokenFor(t, "u1")

	resp, _ := env.do(t, http.MethodPut, "/api/v1/tasks/missing", token,
		map[string]string{"title": "Anything"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestTaskHistoryOwnershipAndOrder(t *testing.T) {
	env := newTestEnv(t, "u1", "u2")
	owner := env.tokenFor(t, "u1")
	intruder := env.tokenFor(t, "u2")

	resp, fields := env.do(t, http.MethodPost, "/api/v1/tasks", owner, map[string]interface{}{
		"title": "Audited task",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	taskID := fieldString(t, fields, "id")

	// записи пишет воркер из очереди, здесь заполняем хранилище напрямую
	for _, action := range []entity.ActionType{entity.ActionCreate, entity.ActionUpdate} {
		if err := env.auditRepo.Create(context.Background(), &entity.TaskAudit{
			UserID:     "u1",
			Action:     action,
			EntityType: "task",
			EntityID:   taskID,
			ChangedAt:  time.Now(),
		}); err != nil {
			t.Fatalf("failed to seed audit record: %v", err)
		}
	}

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/v1/tasks/"+taskID+"/audit", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+owner)

	historyResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer historyResp.Body.Close()

	if historyResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", historyResp.StatusCode)
	}

	var history []entity.TaskAudit
	if err := json.NewDecoder(historyResp.Body).Decode(&history); err != nil {
		t.Fatalf("failed to decode history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 audit records, got %d", len(history))
	}
	if history[0].Action != entity.ActionUpdate {
		t.Errorf("Expected newest record first, got %q", history[0].Action)
	}

	// чужая задача скрыта даже для чтения истории
	resp, fields = env.do(t, http.MethodGet, "/api/v1/tasks/"+taskID+"/audit", intruder, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "You don't have permission to view this task" {
		t.Errorf("Unexpected error message: %q", msg)
	}

	// несуществующая задача
	resp, fields = env.do(t, http.MethodGet, "/api/v1/tasks/missing/audit", owner, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", resp.StatusCode)
	}
	if msg := fieldString(t, fields, "error"); msg != "Task not found" {
		t.Errorf("Unexpected error message: %q", msg)
	}
}
