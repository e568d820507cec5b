package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	ListByBoard(ctx context.Context, boardID string, limit, offset int) ([]domain.Task, error)
	Update(ctx context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error)
	Delete(ctx context.Context, id string) error
}

type TaskServiceInterface interface {
	CreateTask(ctx context.Context, owner domain.Owner, boardID string, req domain.CreateTaskRequest) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	ListTasks(ctx context.Context, boardID string, limit, offset int) ([]domain.Task, error)
	UpdateTask(ctx context.Context, id string, req domain.UpdateTaskRequest) (*domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

type taskService struct {
	tasks   TaskRepository
	sprints SprintRepository
}

func NewTaskService(tasks TaskRepository, sprints SprintRepository) *taskService {
	return &taskService{tasks: tasks, sprints: sprints}
}

func validateTaskRequest(title, taskType, priority string, points *int) error {
	if err := domain.ValidateTaskTitle(title); err != nil {
		return invalid("title must be 1-255 characters")
	}
	if err := domain.ValidateTaskType(taskType); err != nil {
		return invalid("task_type must be one of %s", strings.Join(domain.ValidTaskTypes(), ", "))
	}
	if err := domain.ValidatePriority(priority); err != nil {
		return invalid("priority must be one of %s", strings.Join(domain.ValidPriorities(), ", "))
	}
	if err := domain.ValidateStoryPoints(points); err != nil {
		return invalid("story_points must not be negative")
	}
	return nil
}

// checkSprint makes sure a sprint belongs to the task's board.
func (s *taskService) checkSprint(ctx context.Context, sprintID *string, boardID string) error {
	if sprintID == nil || *sprintID == "" {
		return nil
	}
	sprint, err := s.sprints.GetByID(ctx, *sprintID)
	if errors.Is(err, domain.ErrNotFound) {
		return invalid("sprint %s does not exist", *sprintID)
	}
	if err != nil {
		return fmt.Errorf("failed to load sprint: %w", err)
	}
	if sprint.BoardID != boardID {
		return invalid("sprint %s belongs to another board", *sprintID)
	}
	return nil
}

// CreateTask adds a task to boardID. The task's project is the one the gate resolved
// for the board, never one supplied by the caller.
func (s *taskService) CreateTask(ctx context.Context, owner domain.Owner, boardID string, req domain.CreateTaskRequest) (*domain.Task, error) {
	creator, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.TaskType == "" {
		req.TaskType = domain.TaskTypeTask
	}
	if req.Priority == "" {
		req.Priority = domain.PriorityMedium
	}
	if err := validateTaskRequest(req.Title, req.TaskType, req.Priority, req.StoryPoints); err != nil {
		return nil, err
	}
	if err := s.checkSprint(ctx, req.SprintID, boardID); err != nil {
		return nil, err
	}

	task := &domain.Task{
		ID:          ids.NewEntity(),
		TenantID:    owner.TenantID,
		ProjectID:   owner.ProjectID,
		BoardID:     boardID,
		SprintID:    emptyToNil(req.SprintID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		TaskType:    req.TaskType,
		Status:      domain.TaskTodo,
		Priority:    req.Priority,
		AssigneeID:  emptyToNil(req.AssigneeID),
		StoryPoints: req.StoryPoints,
		DueDate:     req.DueDate,
		CreatedBy:   creator.ID,
	}

	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		log.WithError(err).WithField("board_id", boardID).Error("Failed to create task")
		return created, err
	}
	return created, nil
}

func (s *taskService) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *taskService) ListTasks(ctx context.Context, boardID string, limit, offset int) ([]domain.Task, error) {
	limit, offset = normalizePage(limit, offset)
	return s.tasks.ListByBoard(ctx, boardID, limit, offset)
}

func (s *taskService) UpdateTask(ctx context.Context, id string, req domain.UpdateTaskRequest) (*domain.Task, error) {
	editor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.Status != nil {
		if err := domain.ValidateTaskStatus(*req.Status); err != nil {
			return nil, invalid("status must be one of %s", strings.Join(domain.ValidTaskStatuses(), ", "))
		}
	}

	updated, err := s.tasks.Update(ctx, id, func(t *domain.Task) error {
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			t.Description = *req.Description
		}
		if req.TaskType != nil {
			t.TaskType = *req.TaskType
		}
		if req.Status != nil {
			t.Status = *req.Status
		}
		if req.Priority != nil {
			t.Priority = *req.Priority
		}
		if req.AssigneeID != nil {
			t.AssigneeID = emptyToNil(req.AssigneeID)
		}
		if req.StoryPoints != nil {
			t.StoryPoints = req.StoryPoints
		}
		if req.DueDate != nil {
			t.DueDate = req.DueDate
		}
		if req.SprintID != nil {
			if err := s.checkSprint(ctx, req.SprintID, t.BoardID); err != nil {
				return err
			}
			t.SprintID = emptyToNil(req.SprintID)
		}
		t.UpdatedBy = editor.ID
		return validateTaskRequest(t.Title, t.TaskType, t.Priority, t.StoryPoints)
	})
	if err != nil {
		log.WithError(err).WithField("task_id", id).Warn("Task update failed")
	}
	return updated, err
}

func (s *taskService) DeleteTask(ctx context.Context, id string) error {
	return s.tasks.Delete(ctx, id)
}

// emptyToNil treats an explicit empty string as "unset".
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
