package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mkotelnikov/taskboard/internal/api/middleware"
	"github.com/mkotelnikov/taskboard/internal/entity"
)

const statusHint = "Status must be one of: pending, in-progress, completed"

// TaskUsecase - контракт слоя задач (проверка прав уже внутри)
type TaskUsecase interface {
	CreateTask(ctx context.Context, req *entity.CreateTaskRequest, userID string) (*entity.Task, error)
	GetTask(ctx context.Context, taskID string, userID string) (*entity.Task, error)
	UpdateTask(ctx context.Context, taskID string, userID string, req *entity.UpdateTaskRequest) (*entity.Task, error)
	DeleteTask(ctx context.Context, taskID string, userID string) error
	ListTasks(ctx context.Context, userID string) ([]entity.Task, error)
	GetTaskHistory(ctx context.Context, taskID string, userID string) ([]entity.TaskAudit, error)
}

type TaskHandler struct {
	taskService TaskUsecase
}

func NewTaskHandler(taskService TaskUsecase) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks - все задачи пользователя, новые сверху
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to view tasks")
		return
	}

	tasks, err := h.taskService.ListTasks(r.Context(), userID)
	if err != nil {
		log.Printf("❌ Ошибка получения списка задач: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch tasks")
		return
	}

	// пустой список отдаем как [], а не null
	if tasks == nil {
		tasks = []entity.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// создаем новую задачу
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to create tasks")
		return
	}

	var req entity.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// нечитаемое тело считаем неожиданным отказом, детали только в лог
		log.Printf("❌ Ошибка разбора тела запроса: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create task")
		return
	}

	task, err := h.taskService.CreateTask(r.Context(), &req, userID)
	if err != nil {
		switch err {
		case entity.ErrUserNotFound:
			writeError(w, http.StatusUnauthorized, "User ID not found")
		case entity.ErrTitleRequired:
			writeError(w, http.StatusBadRequest, "Title is required")
		case entity.ErrInvalidStatus:
			writeError(w, http.StatusBadRequest, statusHint)
		default:
			log.Printf("❌ Ошибка создания задачи: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to create task")
		}
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to view a task")
		return
	}

	taskID := chi.URLParam(r, "id")

	task, err := h.taskService.GetTask(r.Context(), taskID, userID)
	if err != nil {
		switch err {
		case entity.ErrTaskNotFound:
			writeError(w, http.StatusNotFound, "Task not found")
		case entity.ErrForbidden:
			writeError(w, http.StatusForbidden, "You don't have permission to view this task")
		default:
			log.Printf("❌ Ошибка получения задачи: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch task")
		}
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to update a task")
		return
	}

	taskID := chi.URLParam(r, "id")

	var req entity.UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("❌ Ошибка разбора тела запроса: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update task")
		return
	}

	task, err := h.taskService.UpdateTask(r.Context(), taskID, userID, &req)
	if err != nil {
		switch err {
		case entity.ErrTaskNotFound:
			writeError(w, http.StatusNotFound, "Task not found")
		case entity.ErrForbidden:
			writeError(w, http.StatusForbidden, "You don't have permission to update this task")
		case entity.ErrTitleRequired:
			writeError(w, http.StatusBadRequest, "Title is required")
		case entity.ErrInvalidStatus:
			writeError(w, http.StatusBadRequest, statusHint)
		default:
			log.Printf("❌ Ошибка обновления задачи: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to update task")
		}
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// ListTaskHistory - записи аудита по одной задаче, новые сверху
func (h *TaskHandler) ListTaskHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to view task history")
		return
	}

	taskID := chi.URLParam(r, "id")

	history, err := h.taskService.GetTaskHistory(r.Context(), taskID, userID)
	if err != nil {
		switch err {
		case entity.ErrTaskNotFound:
			writeError(w, http.StatusNotFound, "Task not found")
		case entity.ErrForbidden:
			writeError(w, http.StatusForbidden, "You don't have permission to view this task")
		default:
			log.Printf("❌ Ошибка получения истории задачи: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to fetch task history")
		}
		return
	}

	if history == nil {
		history = []entity.TaskAudit{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "You must be logged in to delete a task")
		return
	}

	taskID := chi.URLParam(r, "id")

	err := h.taskService.DeleteTask(r.Context(), taskID, userID)
	if err != nil {
		switch err {
		case entity.ErrTaskNotFound:
			writeError(w, http.StatusNotFound, "Task not found")
		case entity.ErrForbidden:
			writeError(w, http.StatusForbidden, "You don't have permission to delete this task")
		default:
			log.Printf("❌ Ошибка удаления задачи: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to delete task")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
