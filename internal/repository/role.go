package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

type postgresRoleRepository struct {
	db *sql.DB
}

func NewPostgresRoleRepository(db *sql.DB) *postgresRoleRepository {
	return &postgresRoleRepository{db: db}
}

const roleColumns = `id, COALESCE(tenant_id, ''), name, description, created_at`

func scanRole(row rowScanner) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(&role.ID, &role.TenantID, &role.Name, &role.Description, &role.CreatedAt); err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *postgresRoleRepository) CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO roles (id, tenant_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + roleColumns
	created, err := scanRole(r.db.QueryRowContext(ctx, query, role.ID, nullEmpty(role.TenantID), role.Name, role.Description))
	if err != nil {
		log.WithError(err).WithField("name", role.Name).Error("Failed to create role")
		return nil, fmt.Errorf("failed to create role: %w", mapPQError(err))
	}

	log.WithFields(log.Fields{
		"role_id":   created.ID,
		"tenant_id": created.TenantID,
		"name":      created.Name,
	}).Info("Role created")
	return created, nil
}

func (r *postgresRoleRepository) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	role, err := scanRole(r.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// UpdateRole renames a tenant role. Global roles are never matched.
func (r *postgresRoleRepository) UpdateRole(ctx context.Context, role *domain.Role) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE roles SET name = $1, description = $2
		WHERE id = $3 AND tenant_id IS NOT NULL
		RETURNING ` + roleColumns
	updated, err := scanRole(r.db.QueryRowContext(ctx, query, role.Name, role.Description, role.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", mapPQError(err))
	}
	return updated, nil
}

// DeleteRole removes a tenant role and its grants. Roles still held by a membership are
// refused with ErrConflict.
func (r *postgresRoleRepository) DeleteRole(ctx context.Context, roleID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND tenant_id IS NOT NULL`, roleID)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", mapDeleteError(err))
	}
	if err := expectOneRow(result, domain.ErrNotFound); err != nil {
		return err
	}
	log.WithField("role_id", roleID).Info("Role deleted")
	return nil
}

// FindRoleByName looks in the tenant first and falls back to a global role.
func (r *postgresRoleRepository) FindRoleByName(ctx context.Context, tenantID, name string) (*domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT ` + roleColumns + ` FROM roles
		WHERE name = $2 AND (tenant_id = $1 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1`
	role, err := scanRole(r.db.QueryRowContext(ctx, query, tenantID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find role: %w", err)
	}
	return role, nil
}

// ListRoles returns the tenant's roles and the global ones.
func (r *postgresRoleRepository) ListRoles(ctx context.Context, tenantID string) ([]domain.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = $1 OR tenant_id IS NULL ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

func (r *postgresRoleRepository) FindGrant(ctx context.Context, roleID, resource, action string) (*domain.PermissionGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT role_id, resource, action, is_allowed FROM role_permissions
		WHERE role_id = $1 AND resource = $2 AND action = $3`
	var g domain.PermissionGrant
	err := r.db.QueryRowContext(ctx, query, roleID, resource, action).Scan(&g.RoleID, &g.Resource, &g.Action, &g.Allowed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find grant: %w", err)
	}
	return &g, nil
}

// SetGrant creates or overwrites the (role, resource, action) row.
func (r *postgresRoleRepository) SetGrant(ctx context.Context, grant domain.PermissionGrant) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		INSERT INTO role_permissions (role_id, resource, action, is_allowed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (role_id, resource, action) DO UPDATE SET is_allowed = EXCLUDED.is_allowed`
	if _, err := r.db.ExecContext(ctx, query, grant.RoleID, grant.Resource, grant.Action, grant.Allowed); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"role_id":  grant.RoleID,
			"resource": grant.Resource,
			"action":   grant.Action,
		}).Error("Failed to set grant")
		return fmt.Errorf("failed to set grant: %w", mapPQError(err))
	}
	return nil
}

func (r *postgresRoleRepository) ListGrants(ctx context.Context, roleID string) ([]domain.PermissionGrant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT role_id, resource, action, is_allowed FROM role_permissions
		WHERE role_id = $1 ORDER BY resource, action`
	rows, err := r.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []domain.PermissionGrant
	for rows.Next() {
		var g domain.PermissionGrant
		if err := rows.Scan(&g.RoleID, &g.Resource, &g.Action, &g.Allowed); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *postgresRoleRepository) ListResources(ctx context.Context) ([]domain.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT code, name FROM resources ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	defer rows.Close()

	var resources []domain.Resource
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.Code, &res.Name); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

// EnsureResources inserts missing catalog entries and leaves existing names alone.
func (r *postgresRoleRepository) EnsureResources(ctx context.Context, resources []domain.Resource) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, res := range resources {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO resources (code, name) VALUES ($1, $2) ON CONFLICT (code) DO NOTHING`,
				res.Code, res.Name); err != nil {
				return fmt.Errorf("failed to ensure resource %s: %w", res.Code, err)
			}
		}
		return nil
	})
}
