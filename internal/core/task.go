package core

import (
	"errors"
	"strings"
	"time"
)

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
)

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

const (
	MaxTitleLength           = 100
	MaxTaskDescriptionLength = 500
)

type (
	TaskStatus   string
	TaskPriority string

	Task struct {
		ID          string       `json:"id"`
		UserID      string       `json:"userId"`
		Title       string       `json:"title"`
		Description string       `json:"description,omitempty"`
		Status      TaskStatus   `json:"status"`
		Priority    TaskPriority `json:"priority"`
		DueDate     *time.Time   `json:"dueDate,omitempty"`
		Tags        []string     `json:"tags"`
		CompletedAt *time.Time   `json:"completedAt,omitempty"`
		CreatedAt   time.Time    `json:"createdAt"`
		UpdatedAt   time.Time    `json:"updatedAt"`
	}
)

var (
	ErrEmptyTitle       = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title too long (max 100 characters)")
	ErrTaskDescTooLong  = errors.New("description too long (max 500 characters)")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrDueDateInThePast = errors.New("due date must be in the future")
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Validate checks the field constraints that hold for every stored task.
// The future due date rule only applies at creation, see ValidateNew.
func (t Task) Validate() error {
	title := strings.TrimSpace(t.Title)
	if title == "" {
		return ErrEmptyTitle
	}
	if len([]rune(title)) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if len([]rune(t.Description)) > MaxTaskDescriptionLength {
		return ErrTaskDescTooLong
	}
	if !t.Status.Valid() {
		return ErrInvalidStatus
	}
	if !t.Priority.Valid() {
		return ErrInvalidPriority
	}
	return nil
}

func (t Task) ValidateNew(now time.Time) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.DueDate != nil && !t.DueDate.After(now) {
		return ErrDueDateInThePast
	}
	return nil
}

// SetStatus changes the status and keeps CompletedAt in sync with it.
func (t *Task) SetStatus(status TaskStatus, now time.Time) {
	if status == StatusCompleted {
		if t.Status != StatusCompleted || t.CompletedAt == nil {
			completed := now
			t.CompletedAt = &completed
		}
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
}
