package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mkotelnikov/taskboard/internal/entity"
	"github.com/mkotelnikov/taskboard/internal/repository"
)

// RabbitMQPublisher интерфейс для публикации в RabbitMQ
type RabbitMQPublisher interface {
	PublishAuditMessage(ctx context.Context, message *entity.AuditMessage) error
}

type TaskService struct {
	taskRepo  repository.ITaskRepository
	userRepo  repository.IUserRepository
	auditRepo repository.ITaskAuditRepository
	rabbitMQ  RabbitMQPublisher
}

func NewTaskService(
	taskRepo repository.ITaskRepository,
	userRepo repository.IUserRepository,
	auditRepo repository.ITaskAuditRepository,
	rabbitMQ RabbitMQPublisher,
) *TaskService {
	return &TaskService{
		taskRepo:  taskRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		rabbitMQ:  rabbitMQ,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, req *entity.CreateTaskRequest, userID string) (*entity.Task, error) {
	// 1. Проверяем что пользователь существует
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, entity.ErrUserNotFound
	}

	// 2. Валидация до любой записи в БД
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, entity.ErrTitleRequired
	}

	if req.Status == "" {
		req.Status = entity.StatusPending
	} else if !req.Status.IsValid() {
		return nil, entity.ErrInvalidStatus
	}

	if req.Description != nil {
		desc := strings.TrimSpace(*req.Description)
		if desc == "" {
			req.Description = nil
		} else {
			req.Description = &desc
		}
	}

	// 3. Устанавливаем владельца из контекста (безопасность!)
	req.UserID = userID

	// 4. Создаем задачу
	task, err := s.taskRepo.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	// 5. Асинхронно отправляем аудит
	s.sendAuditMessage(ctx, entity.ActionCreate, userID, task.ID, nil, task, nil)

	return task, nil
}

func (s *TaskService) GetTask(ctx context.Context, taskID string, userID string) (*entity.Task, error) {
	task, err := s.taskRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, entity.ErrTaskNotFound
	}

	// Проверяем права доступа
	if task.UserID != userID {
		return nil, entity.ErrForbidden
	}

	return task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, taskID string, userID string, req *entity.UpdateTaskRequest) (*entity.Task, error) {
	// 1. Получаем текущую задачу
	oldTask, err := s.taskRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if oldTask == nil {
		return nil, entity.ErrTaskNotFound
	}

	// 2. Проверяем права доступа
	if oldTask.UserID != userID {
		return nil, entity.ErrForbidden
	}

	// 3. Подготавливаем обновления (отсутствующие поля не трогаем)
	updates := make(map[string]interface{})

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			// то же правило что и при создании
			return nil, entity.ErrTitleRequired
		}
		updates["title"] = title
	}

	if req.Description.Set {
		// null, как и пустая строка, очищает описание
		if req.Description.Value == nil {
			updates["description"] = nil
		} else if desc := strings.TrimSpace(*req.Description.Value); desc == "" {
			updates["description"] = nil
		} else {
			updates["description"] = desc
		}
	}

	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, entity.ErrInvalidStatus
		}
		updates["status"] = *req.Status
	}

	// Пустое тело - ничего не меняем, возвращаем задачу как есть
	if len(updates) == 0 {
		return oldTask, nil
	}

	// 4. Обновляем задачу
	updatedTask, err := s.taskRepo.Update(ctx, taskID, updates)
	if err != nil {
		return nil, err
	}
	if updatedTask == nil {
		// задачу удалили между чтением и обновлением
		return nil, entity.ErrTaskNotFound
	}

	// 5. Асинхронно отправляем аудит
	s.sendAuditMessage(ctx, entity.ActionUpdate, userID, taskID, oldTask, updatedTask, updates)

	return updatedTask, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, taskID string, userID string) error {
	// 1. Получаем задачу (для аудита и проверки прав)
	task, err := s.taskRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return entity.ErrTaskNotFound
	}

	// 2. Проверяем права доступа
	if task.UserID != userID {
		return entity.ErrForbidden
	}

	// 3. Удаляем задачу
	err = s.taskRepo.Delete(ctx, taskID)
	if err != nil {
		return err
	}

	// 4. Асинхронно отправляем аудит
	s.sendAuditMessage(ctx, entity.ActionDelete, userID, taskID, task, nil, nil)

	return nil
}

// ListTasks - все задачи пользователя, новые сверху
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]entity.Task, error) {
	return s.taskRepo.ListByOwner(ctx, userID)
}

// GetTaskHistory - история изменений задачи, доступна только владельцу
func (s *TaskService) GetTaskHistory(ctx context.Context, taskID string, userID string) ([]entity.TaskAudit, error) {
	task, err := s.taskRepo.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, entity.ErrTaskNotFound
	}

	// Проверяем права доступа
	if task.UserID != userID {
		return nil, entity.ErrForbidden
	}

	return s.auditRepo.ListByEntityID(ctx, taskID)
}

// Вспомогательный метод для отправки аудита
func (s *TaskService) sendAuditMessage(
	ctx context.Context,
	action entity.ActionType,
	userID string,
	taskID string,
	oldTask *entity.Task,
	newTask *entity.Task,
	updates map[string]interface{},
) {
	if s.rabbitMQ == nil {
		return
	}

	auditMsg := &entity.AuditMessage{
		Action:    action,
		UserID:    userID,
		EntityID:  taskID,
		Timestamp: time.Now(),
	}

	// Заполняем данные в зависимости от действия
	switch action {
	case entity.ActionCreate:
		if newTask != nil {
			auditMsg.NewValues = taskValues(newTask, true)
		}

	case entity.ActionUpdate:
		if oldTask != nil && newTask != nil {
			auditMsg.OldValues = taskValues(oldTask, false)
			auditMsg.NewValues = taskValues(newTask, false)
			// Вычисляем изменения
			changes := make(map[string]interface{})
			if oldTask.Title != newTask.Title {
				changes["title"] = map[string]interface{}{"old": oldTask.Title, "new": newTask.Title}
			}
			if descValue(oldTask.Description) != descValue(newTask.Description) {
				changes["description"] = map[string]interface{}{"old": descValue(oldTask.Description), "new": descValue(newTask.Description)}
			}
			if oldTask.Status != newTask.Status {
				changes["status"] = map[string]interface{}{"old": oldTask.Status, "new": newTask.Status}
			}
			auditMsg.Changes = changes
		}

	case entity.ActionDelete:
		if oldTask != nil {
			auditMsg.OldValues = taskValues(oldTask, true)
		}
	}

	// Асинхронная отправка в RabbitMQ
	go func() {
		if err := s.rabbitMQ.PublishAuditMessage(context.Background(), auditMsg); err != nil {
			log.Printf("❌ Ошибка отправки аудита в RabbitMQ: %v", err)
		} else {
			log.Printf("Аудит отправлен в RabbitMQ: %s задача ID=%s", action, taskID)
		}
	}()
}

func taskValues(task *entity.Task, withOwner bool) map[string]interface{} {
	values := map[string]interface{}{
		"title":       task.Title,
		"description": descValue(task.Description),
		"status":      task.Status,
	}
	if withOwner {
		values["user_id"] = task.UserID
	}
	return values
}

func descValue(desc *string) interface{} {
	if desc == nil {
		return nil
	}
	return *desc
}
