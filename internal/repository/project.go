package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresProjectRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresProjectRepository(db *sql.DB, hooks *Hooks) *postgresProjectRepository {
	return &postgresProjectRepository{db: db, hooks: hooks}
}

const projectColumns = `id, tenant_id, name, description, created_by, COALESCE(updated_by, ''), created_at, updated_at`

func scanProject(row rowScanner) (*domain.Project, error) {
	var p domain.Project
	if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.CreatedBy, &p.UpdatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresProjectRepository) Create(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"project_id": project.ID,
		"tenant_id":  project.TenantID,
		"name":       project.Name,
	}).Info("Creating project")

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Project, error) {
		query := `
			INSERT INTO projects (id, tenant_id, name, description, created_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + projectColumns
		created, err := scanProject(tx.QueryRowContext(ctx, query,
			project.ID, project.TenantID, project.Name, project.Description, project.CreatedBy))
		if err != nil {
			return nil, fmt.Errorf("failed to create project: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
		}
		log.WithError(err).WithField("project_id", id).Error("Failed to get project")
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (r *postgresProjectRepository) ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + projectColumns + ` FROM projects WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

func (r *postgresProjectRepository) lockProject(ctx context.Context, tx *sql.Tx, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1 FOR UPDATE`
	project, err := scanProject(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock project: %w", err)
	}
	return project, nil
}

// Update applies mutate to the locked row and persists the result.
func (r *postgresProjectRepository) Update(ctx context.Context, id string, mutate func(*domain.Project) error) (*domain.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Project, error) {
			return r.lockProject(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Project) (*domain.Project, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `
				UPDATE projects SET name = $1, description = $2, updated_by = $3, updated_at = NOW()
				WHERE id = $4
				RETURNING ` + projectColumns
			updated, err := scanProject(tx.QueryRowContext(ctx, query, next.Name, next.Description, nullEmpty(next.UpdatedBy), id))
			if err != nil {
				log.WithError(err).WithField("project_id", id).Error("Failed to update project")
				return nil, fmt.Errorf("failed to update project: %w", mapPQError(err))
			}
			return updated, nil
		})
}

func (r *postgresProjectRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Project, error) {
			return r.lockProject(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.Project) ([]domain.AfterFunc, error) {
			members, err := lockProjectMemberships(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			finishers, err := cascadeDelete(ctx, r.hooks, members)
			if err != nil {
				return nil, err
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM project_memberships WHERE project_id = $1`, id); err != nil {
				return nil, fmt.Errorf("failed to delete project memberships: %w", err)
			}
			result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete project: %w", mapDeleteError(err))
			}
			return finishers, expectOneRow(result, domain.ErrNotFound)
		})
}
