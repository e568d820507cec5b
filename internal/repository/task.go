package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresTaskRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresTaskRepository(db *sql.DB, hooks *Hooks) *postgresTaskRepository {
	return &postgresTaskRepository{db: db, hooks: hooks}
}

const taskColumns = `id, tenant_id, project_id, board_id, sprint_id, title, description, task_type, status, priority,
	assignee_id, story_points, due_date, created_by, COALESCE(updated_by, ''), created_at, updated_at`

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		t                  domain.Task
		sprintID, assignee sql.NullString
		points             sql.NullInt64
		due                sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.TenantID, &t.ProjectID, &t.BoardID, &sprintID,
		&t.Title, &t.Description, &t.TaskType, &t.Status, &t.Priority,
		&assignee, &points, &due, &t.CreatedBy, &t.UpdatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SprintID = stringPtr(sprintID)
	t.AssigneeID = stringPtr(assignee)
	t.StoryPoints = intPtr(points)
	t.DueDate = timePtr(due)
	return &t, nil
}

func (r *postgresTaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"task_id":    task.ID,
		"board_id":   task.BoardID,
		"project_id": task.ProjectID,
	}).Info("Creating task")

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Task, error) {
		query := `
			INSERT INTO tasks (
				id, tenant_id, project_id, board_id, sprint_id,
				title, description, task_type, status, priority,
				assignee_id, story_points, due_date, created_by
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			RETURNING ` + taskColumns
		created, err := scanTask(tx.QueryRowContext(ctx, query,
			task.ID, task.TenantID, task.ProjectID, task.BoardID, nullString(task.SprintID),
			task.Title, task.Description, task.TaskType, task.Status, task.Priority,
			nullString(task.AssigneeID), nullInt(task.StoryPoints), nullTime(task.DueDate), task.CreatedBy,
		))
		if err != nil {
			log.WithError(err).WithField("task_id", task.ID).Error("Failed to create task")
			return nil, fmt.Errorf("failed to create task: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	task, err := scanTask(r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		log.WithError(err).WithField("task_id", id).Error("Failed to get task")
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

func (r *postgresTaskRepository) ListByBoard(ctx context.Context, boardID string, limit, offset int) ([]domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, boardID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func lockTask(ctx context.Context, tx *sql.Tx, id string) (*domain.Task, error) {
	task, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	return task, nil
}

func (r *postgresTaskRepository) Update(ctx context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Task, error) {
			return lockTask(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Task) (*domain.Task, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `
				UPDATE tasks SET
					sprint_id = $1, title = $2, description = $3, task_type = $4, status = $5,
					priority = $6, assignee_id = $7, story_points = $8, due_date = $9,
					updated_by = $10, updated_at = NOW()
				WHERE id = $11
				RETURNING ` + taskColumns
			updated, err := scanTask(tx.QueryRowContext(ctx, query,
				nullString(next.SprintID), next.Title, next.Description, next.TaskType, next.Status,
				next.Priority, nullString(next.AssigneeID), nullInt(next.StoryPoints), nullTime(next.DueDate),
				nullEmpty(next.UpdatedBy), id,
			))
			if err != nil {
				log.WithError(err).WithField("task_id", id).Error("Failed to update task")
				return nil, fmt.Errorf("failed to update task: %w", mapPQError(err))
			}
			return updated, nil
		})
}

// Delete removes the task together with its comments.
func (r *postgresTaskRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Task, error) {
			return lockTask(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.Task) ([]domain.AfterFunc, error) {
			comments, err := lockTaskComments(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			finishers, err := cascadeDelete(ctx, r.hooks, comments)
			if err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE task_id = $1`, id); err != nil {
				return nil, fmt.Errorf("failed to delete task comments: %w", err)
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete task: %w", mapDeleteError(err))
			}
			return finishers, expectOneRow(result, domain.ErrNotFound)
		})
}
