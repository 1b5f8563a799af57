package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/storage"
)

// TaskInput creates a task. Empty status and priority take their defaults.
type TaskInput struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Status      core.TaskStatus   `json:"status"`
	Priority    core.TaskPriority `json:"priority"`
	DueDate     *time.Time        `json:"dueDate"`
	Tags        []string          `json:"tags"`
}

// TaskPatch updates the fields that are set.
type TaskPatch struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *core.TaskStatus   `json:"status"`
	Priority    *core.TaskPriority `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	Tags        []string           `json:"tags"`
}

type TaskService struct {
	store  TaskStore
	now    func() time.Time
	logger *log.Logger
}

func NewTaskService(store TaskStore) *TaskService {
	return &TaskService{
		store:  store,
		now:    time.Now,
		logger: log.WithComponent(log.ComponentTask),
	}
}

func (s *TaskService) List(ctx context.Context, userID string, f storage.TaskFilter) ([]core.Task, error) {
	tasks, err := s.store.ListTasks(ctx, userID, f)
	if err != nil {
		return nil, core.NewError(core.KindQueryFailed, "Failed to fetch tasks", err)
	}
	return tasks, nil
}

func (s *TaskService) Create(ctx context.Context, userID string, in TaskInput) (*core.Task, error) {
	now := s.now().UTC()
	t := &core.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      core.StatusTodo,
		Priority:    core.PriorityMedium,
		DueDate:     in.DueDate,
		Tags:        core.NormalizeTags(in.Tags...),
	}
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	if in.Status != "" {
		t.SetStatus(in.Status, now)
	}
	if err := t.ValidateNew(now); err != nil {
		return nil, core.Validation(err)
	}
	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, core.Internal("Failed to create task", err)
	}
	s.logger.InfoContext(ctx, "Task created", log.FieldTaskID, t.ID, log.FieldUserID, userID)
	return t, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id string, p TaskPatch) (*core.Task, error) {
	t, err := s.store.GetTask(ctx, userID, id)
	if err != nil {
		return nil, notFoundOr(err, "Task not found")
	}
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.Tags != nil {
		t.Tags = core.NormalizeTags(p.Tags...)
	}
	if p.Status != nil {
		t.SetStatus(*p.Status, s.now().UTC())
	}
	if err := t.Validate(); err != nil {
		return nil, core.Validation(err)
	}
	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, notFoundOr(err, "Task not found")
	}
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteTask(ctx, userID, id); err != nil {
		return notFoundOr(err, "Task not found")
	}
	s.logger.InfoContext(ctx, "Task deleted", log.FieldTaskID, id, log.FieldUserID, userID)
	return nil
}
