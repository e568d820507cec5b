package domain

import (
	"slices"
	"strings"
	"time"
)

const maxTaskTitleLength = 255

// Task priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Task statuses
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskReview     = "review"
	TaskDone       = "done"
)

// Task types
const (
	TaskTypeTask  = "task"
	TaskTypeBug   = "bug"
	TaskTypeStory = "story"
	TaskTypeEpic  = "epic"
)

func ValidPriorities() []string {
	return []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func ValidTaskStatuses() []string {
	return []string{TaskTodo, TaskInProgress, TaskReview, TaskDone}
}

func ValidTaskTypes() []string {
	return []string{TaskTypeTask, TaskTypeBug, TaskTypeStory, TaskTypeEpic}
}

type Task struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	ProjectID   string     `json:"project_id"`
	BoardID     string     `json:"board_id"`
	SprintID    *string    `json:"sprint_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	TaskType    string     `json:"task_type"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	StoryPoints *int       `json:"story_points,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	UpdatedBy   string     `json:"updated_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type CreateTaskRequest struct {
	SprintID    *string    `json:"sprint_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	TaskType    string     `json:"task_type"`
	Priority    string     `json:"priority"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	StoryPoints *int       `json:"story_points,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type UpdateTaskRequest struct {
	SprintID    *string    `json:"sprint_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	TaskType    *string    `json:"task_type,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	AssigneeID  *string    `json:"assignee_id,omitempty"`
	StoryPoints *int       `json:"story_points,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (t *Task) TrackedKind() string   { return KindTask }
func (t *Task) TrackedID() string     { return t.ID }
func (t *Task) TrackedTenant() string { return t.TenantID }
func (t *Task) DisplayLabel() string  { return Label(t.Title) }

func (t *Task) Authors() (string, string) {
	return t.UpdatedBy, t.CreatedBy
}

// Snapshot leaves out updated_by and the timestamps, they change on every save.
func (t *Task) Snapshot() Snapshot {
	return Snapshot{
		{Name: "board_id", Value: t.BoardID},
		{Name: "sprint_id", Value: t.SprintID},
		{Name: "title", Value: t.Title},
		{Name: "description", Value: t.Description},
		{Name: "task_type", Value: t.TaskType},
		{Name: "status", Value: t.Status},
		{Name: "priority", Value: t.Priority},
		{Name: "assignee_id", Value: t.AssigneeID},
		{Name: "story_points", Value: t.StoryPoints},
		{Name: "due_date", Value: t.DueDate},
		{Name: "created_by", Value: t.CreatedBy},
	}
}

func ValidateTaskTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTaskTitleLength {
		return ErrInvalidInput
	}
	return nil
}

func ValidatePriority(priority string) error {
	if !slices.Contains(ValidPriorities(), priority) {
		return ErrInvalidInput
	}
	return nil
}

func ValidateTaskStatus(status string) error {
	if !slices.Contains(ValidTaskStatuses(), status) {
		return ErrInvalidInput
	}
	return nil
}

func ValidateTaskType(taskType string) error {
	if !slices.Contains(ValidTaskTypes(), taskType) {
		return ErrInvalidInput
	}
	return nil
}

func ValidateStoryPoints(points *int) error {
	if points != nil && *points < 0 {
		return ErrInvalidInput
	}
	return nil
}
