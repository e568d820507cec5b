package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"project-service/internal/domain"
)

// postgresOwnerRepository answers the resolver's ownership lookups. Lookups made by hooks
// inside a tracked mutation run on that mutation's transaction.
type postgresOwnerRepository struct {
	db *sql.DB
}

func NewPostgresOwnerRepository(db *sql.DB) *postgresOwnerRepository {
	return &postgresOwnerRepository{db: db}
}

func (r *postgresOwnerRepository) owner(ctx context.Context, kind, query, id string) (domain.Owner, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var o domain.Owner
	err := querierFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&o.TenantID, &o.ProjectID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Owner{}, fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Owner{}, fmt.Errorf("failed to look up %s owner: %w", kind, mapPQError(err))
	}
	return o, nil
}

func (r *postgresOwnerRepository) parent(ctx context.Context, kind, query, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var parentID string
	err := querierFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&parentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up %s parent: %w", kind, mapPQError(err))
	}
	return parentID, nil
}

func (r *postgresOwnerRepository) ProjectOwner(ctx context.Context, id string) (domain.Owner, error) {
	return r.owner(ctx, domain.KindProject, `SELECT tenant_id, id FROM projects WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) BoardOwner(ctx context.Context, id string) (domain.Owner, error) {
	return r.owner(ctx, domain.KindBoard, `SELECT tenant_id, project_id FROM boards WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) TaskOwner(ctx context.Context, id string) (domain.Owner, error) {
	return r.owner(ctx, domain.KindTask, `SELECT tenant_id, project_id FROM tasks WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) MembershipOwner(ctx context.Context, id string) (domain.Owner, error) {
	return r.owner(ctx, domain.KindMembership, `SELECT tenant_id, project_id FROM project_memberships WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) LabelOwner(ctx context.Context, id string) (domain.Owner, error) {
	return r.owner(ctx, domain.KindLabel, `SELECT tenant_id, project_id FROM labels WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) SprintBoard(ctx context.Context, id string) (string, error) {
	return r.parent(ctx, domain.KindSprint, `SELECT board_id FROM sprints WHERE id = $1`, id)
}

func (r *postgresOwnerRepository) CommentTask(ctx context.Context, id string) (string, error) {
	return r.parent(ctx, domain.KindComment, `SELECT task_id FROM comments WHERE id = $1`, id)
}
