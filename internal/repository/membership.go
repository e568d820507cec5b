package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresMembershipRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresMembershipRepository(db *sql.DB, hooks *Hooks) *postgresMembershipRepository {
	return &postgresMembershipRepository{db: db, hooks: hooks}
}

const membershipColumns = `id, tenant_id, project_id, actor_id, role_id, COALESCE(assigned_by, ''), created_at, updated_at`

func scanMembership(row rowScanner) (*domain.Membership, error) {
	var m domain.Membership
	if err := row.Scan(&m.ID, &m.TenantID, &m.ProjectID, &m.ActorID, &m.RoleID, &m.AssignedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMembershipRepository) FindMembership(ctx context.Context, projectID, actorID string) (*domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 AND actor_id = $2`
	m, err := scanMembership(r.db.QueryRowContext(ctx, query, projectID, actorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return m, nil
}

func (r *postgresMembershipRepository) ListByProject(ctx context.Context, projectID string) ([]domain.Membership, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func lockMembership(ctx context.Context, tx *sql.Tx, projectID, actorID string) (*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 AND actor_id = $2 FOR UPDATE`
	m, err := scanMembership(tx.QueryRowContext(ctx, query, projectID, actorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership of %s in %s: %w", actorID, projectID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock membership: %w", err)
	}
	return m, nil
}

func lockProjectMemberships(ctx context.Context, tx *sql.Tx, projectID string) ([]*domain.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 ORDER BY created_at FOR UPDATE`
	rows, err := tx.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock memberships: %w", err)
	}
	defer rows.Close()

	var members []*domain.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Assign gives the actor the role in the project, replacing any previous role.
// Re-assigning the current role changes nothing and records nothing.
func (r *postgresMembershipRepository) Assign(ctx context.Context, m *domain.Membership) (*domain.Membership, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	log.WithFields(log.Fields{
		"project_id": m.ProjectID,
		"actor_id":   m.ActorID,
		"role_id":    m.RoleID,
	}).Info("Assigning project role")

	updated, err := r.reassign(ctx, m)
	if !errors.Is(err, domain.ErrNotFound) {
		return updated, false, err
	}

	created, err := createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Membership, error) {
		query := `
			INSERT INTO project_memberships (id, tenant_id, project_id, actor_id, role_id, assigned_by)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING ` + membershipColumns
		created, err := scanMembership(tx.QueryRowContext(ctx, query,
			m.ID, m.TenantID, m.ProjectID, m.ActorID, m.RoleID, nullEmpty(m.AssignedBy)))
		if err != nil {
			return nil, fmt.Errorf("failed to create membership: %w", mapPQError(err))
		}
		return created, nil
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		// A concurrent first assignment inserted the row; apply this role on top of it.
		log.WithFields(log.Fields{
			"project_id": m.ProjectID,
			"actor_id":   m.ActorID,
		}).Info("Membership created concurrently, reassigning")
		updated, err := r.reassign(ctx, m)
		return updated, false, err
	}
	return created, created != nil, err
}

// reassign updates the role of an existing membership; ErrNotFound when there is none.
func (r *postgresMembershipRepository) reassign(ctx context.Context, m *domain.Membership) (*domain.Membership, error) {
	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Membership, error) {
			return lockMembership(ctx, tx, m.ProjectID, m.ActorID)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Membership) (*domain.Membership, error) {
			query := `
				UPDATE project_memberships SET role_id = $1, assigned_by = $2, updated_at = NOW()
				WHERE id = $3
				RETURNING ` + membershipColumns
			updated, err := scanMembership(tx.QueryRowContext(ctx, query, m.RoleID, nullEmpty(m.AssignedBy), current.ID))
			if err != nil {
				return nil, fmt.Errorf("failed to update membership: %w", mapPQError(err))
			}
			return updated, nil
		})
}

func (r *postgresMembershipRepository) Remove(ctx context.Context, projectID, actorID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Membership, error) {
			return lockMembership(ctx, tx, projectID, actorID)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Membership) ([]domain.AfterFunc, error) {
			result, err := tx.ExecContext(ctx, `DELETE FROM project_memberships WHERE id = $1`, current.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to delete membership: %w", mapDeleteError(err))
			}
			return nil, expectOneRow(result, domain.ErrNotFound)
		})
}
