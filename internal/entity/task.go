package entity

import (
	"bytes"
	"encoding/json"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

// IsValid проверяет что статус входит в допустимый набор
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          string     `json:"id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status"`
	UserID      string     `json:"user_id"`
}

// валидация
type CreateTaskRequest struct {
	Title       string     `json:"title" validate:"required, min=1, max=255"`
	Description *string    `json:"description"`
	Status      TaskStatus `json:"status" validate:"oneof=pending in-progress completed"`
	UserID      string     `json:"-"` // всегда берем из контекста запроса
}

type UpdateTaskRequest struct {
	Title       *string        `json:"title"`       // опциональное поле для обновления
	Description OptionalString `json:"description"` // пустая строка или null очищает описание
	Status      *TaskStatus    `json:"status"`
}

// OptionalString различает поле, которого нет в JSON, от явного null.
// Set взводится только когда ключ присутствовал в теле запроса.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	o.Value = &value
	return nil
}
