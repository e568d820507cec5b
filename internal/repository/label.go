package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresLabelRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresLabelRepository(db *sql.DB, hooks *Hooks) *postgresLabelRepository {
	return &postgresLabelRepository{db: db, hooks: hooks}
}

const labelColumns = `id, tenant_id, project_id, name, color, created_by, created_at, updated_at`

func scanLabel(row rowScanner) (*domain.ProjectLabel, error) {
	var l domain.ProjectLabel
	if err := row.Scan(&l.ID, &l.TenantID, &l.ProjectID, &l.Name, &l.Color, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *postgresLabelRepository) Create(ctx context.Context, label *domain.ProjectLabel) (*domain.ProjectLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"label_id":   label.ID,
		"project_id": label.ProjectID,
	}).Info("Creating label")

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.ProjectLabel, error) {
		query := `
			INSERT INTO labels (id, tenant_id, project_id, name, color, created_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + labelColumns
		created, err := scanLabel(tx.QueryRowContext(ctx, query,
			label.ID, label.TenantID, label.ProjectID, label.Name, label.Color, label.CreatedBy))
		if err != nil {
			return nil, fmt.Errorf("failed to create label: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresLabelRepository) GetByID(ctx context.Context, id string) (*domain.ProjectLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	label, err := scanLabel(r.db.QueryRowContext(ctx, `SELECT `+labelColumns+` FROM labels WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("label %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get label: %w", err)
	}
	return label, nil
}

func (r *postgresLabelRepository) ListByProject(ctx context.Context, projectID string) ([]domain.ProjectLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+labelColumns+` FROM labels WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	var labels []domain.ProjectLabel
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan label: %w", err)
		}
		labels = append(labels, *l)
	}
	return labels, rows.Err()
}

func lockLabel(ctx context.Context, tx *sql.Tx, id string) (*domain.ProjectLabel, error) {
	label, err := scanLabel(tx.QueryRowContext(ctx, `SELECT `+labelColumns+` FROM labels WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("label %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock label: %w", err)
	}
	return label, nil
}

func (r *postgresLabelRepository) Update(ctx context.Context, id string, mutate func(*domain.ProjectLabel) error) (*domain.ProjectLabel, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.ProjectLabel, error) {
			return lockLabel(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.ProjectLabel) (*domain.ProjectLabel, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `UPDATE labels SET name = $1, color = $2, updated_at = NOW() WHERE id = $3 RETURNING ` + labelColumns
			updated, err := scanLabel(tx.QueryRowContext(ctx, query, next.Name, next.Color, id))
			if err != nil {
				return nil, fmt.Errorf("failed to update label: %w", mapPQError(err))
			}
			return updated, nil
		})
}

func (r *postgresLabelRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.ProjectLabel, error) {
			return lockLabel(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.ProjectLabel) ([]domain.AfterFunc, error) {
			result, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete label: %w", mapDeleteError(err))
			}
			return nil, expectOneRow(result, domain.ErrNotFound)
		})
}
