package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresBoardRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresBoardRepository(db *sql.DB, hooks *Hooks) *postgresBoardRepository {
	return &postgresBoardRepository{db: db, hooks: hooks}
}

const boardColumns = `id, tenant_id, project_id, name, created_by, created_at, updated_at`

func scanBoard(row rowScanner) (*domain.Board, error) {
	var b domain.Board
	if err := row.Scan(&b.ID, &b.TenantID, &b.ProjectID, &b.Name, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *postgresBoardRepository) Create(ctx context.Context, board *domain.Board) (*domain.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"board_id":   board.ID,
		"project_id": board.ProjectID,
	}).Info("Creating board")

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Board, error) {
		query := `
			INSERT INTO boards (id, tenant_id, project_id, name, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + boardColumns
		created, err := scanBoard(tx.QueryRowContext(ctx, query,
			board.ID, board.TenantID, board.ProjectID, board.Name, board.CreatedBy))
		if err != nil {
			return nil, fmt.Errorf("failed to create board: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresBoardRepository) GetByID(ctx context.Context, id string) (*domain.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	board, err := scanBoard(r.db.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board: %w", err)
	}
	return board, nil
}

func (r *postgresBoardRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE project_id = $1 ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	var boards []domain.Board
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, *b)
	}
	return boards, rows.Err()
}

func lockBoard(ctx context.Context, tx *sql.Tx, id string) (*domain.Board, error) {
	board, err := scanBoard(tx.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("board %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock board: %w", err)
	}
	return board, nil
}

func (r *postgresBoardRepository) Update(ctx context.Context, id string, mutate func(*domain.Board) error) (*domain.Board, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Board, error) {
			return lockBoard(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Board) (*domain.Board, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `UPDATE boards SET name = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + boardColumns
			updated, err := scanBoard(tx.QueryRowContext(ctx, query, next.Name, id))
			if err != nil {
				return nil, fmt.Errorf("failed to update board: %w", mapPQError(err))
			}
			return updated, nil
		})
}

// Delete refuses boards that still hold sprints or tasks.
func (r *postgresBoardRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Board, error) {
			return lockBoard(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.Board) ([]domain.AfterFunc, error) {
			result, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete board: %w", mapDeleteError(err))
			}
			return nil, expectOneRow(result, domain.ErrNotFound)
		})
}

type postgresSprintRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresSprintRepository(db *sql.DB, hooks *Hooks) *postgresSprintRepository {
	return &postgresSprintRepository{db: db, hooks: hooks}
}

const sprintColumns = `id, tenant_id, board_id, name, goal, start_date, end_date, status, created_by, created_at, updated_at`

func scanSprint(row rowScanner) (*domain.Sprint, error) {
	var (
		s          domain.Sprint
		start, end sql.NullTime
	)
	if err := row.Scan(&s.ID, &s.TenantID, &s.BoardID, &s.Name, &s.Goal, &start, &end, &s.Status, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.StartDate = timePtr(start)
	s.EndDate = timePtr(end)
	return &s, nil
}

func (r *postgresSprintRepository) Create(ctx context.Context, sprint *domain.Sprint) (*domain.Sprint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Sprint, error) {
		query := `
			INSERT INTO sprints (id, tenant_id, board_id, name, goal, start_date, end_date, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING ` + sprintColumns
		created, err := scanSprint(tx.QueryRowContext(ctx, query,
			sprint.ID, sprint.TenantID, sprint.BoardID, sprint.Name, sprint.Goal,
			nullTime(sprint.StartDate), nullTime(sprint.EndDate), sprint.Status, sprint.CreatedBy))
		if err != nil {
			return nil, fmt.Errorf("failed to create sprint: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresSprintRepository) GetByID(ctx context.Context, id string) (*domain.Sprint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sprint, err := scanSprint(r.db.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sprint %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sprint: %w", err)
	}
	return sprint, nil
}

func (r *postgresSprintRepository) ListByBoard(ctx context.Context, boardID string) ([]domain.Sprint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE board_id = $1 ORDER BY start_date NULLS LAST, created_at`, boardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sprints: %w", err)
	}
	defer rows.Close()

	var sprints []domain.Sprint
	for rows.Next() {
		s, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sprint: %w", err)
		}
		sprints = append(sprints, *s)
	}
	return sprints, rows.Err()
}

func lockSprint(ctx context.Context, tx *sql.Tx, id string) (*domain.Sprint, error) {
	sprint, err := scanSprint(tx.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sprint %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock sprint: %w", err)
	}
	return sprint, nil
}

func (r *postgresSprintRepository) Update(ctx context.Context, id string, mutate func(*domain.Sprint) error) (*domain.Sprint, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Sprint, error) {
			return lockSprint(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Sprint) (*domain.Sprint, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `
				UPDATE sprints SET name = $1, goal = $2, start_date = $3, end_date = $4, status = $5, updated_at = NOW()
				WHERE id = $6
				RETURNING ` + sprintColumns
			updated, err := scanSprint(tx.QueryRowContext(ctx, query,
				next.Name, next.Goal, nullTime(next.StartDate), nullTime(next.EndDate), next.Status, id))
			if err != nil {
				return nil, fmt.Errorf("failed to update sprint: %w", mapPQError(err))
			}
			return updated, nil
		})
}

// Delete refuses sprints that tasks are still planned into.
func (r *postgresSprintRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Sprint, error) {
			return lockSprint(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.Sprint) ([]domain.AfterFunc, error) {
			result, err := tx.ExecContext(ctx, `DELETE FROM sprints WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete sprint: %w", mapDeleteError(err))
			}
			return nil, expectOneRow(result, domain.ErrNotFound)
		})
}
