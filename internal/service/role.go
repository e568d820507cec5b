package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type RoleRepository interface {
	CreateRole(ctx context.Context, role *domain.Role) (*domain.Role, error)
	GetRole(ctx context.Context, roleID string) (*domain.Role, error)
	UpdateRole(ctx context.Context, role *domain.Role) (*domain.Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	FindRoleByName(ctx context.Context, tenantID, name string) (*domain.Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]domain.Role, error)
	SetGrant(ctx context.Context, grant domain.PermissionGrant) error
	ListGrants(ctx context.Context, roleID string) ([]domain.PermissionGrant, error)
	ListResources(ctx context.Context) ([]domain.Resource, error)
}

type RoleServiceInterface interface {
	CreateRole(ctx context.Context, req domain.CreateRoleRequest) (*domain.Role, error)
	ListRoles(ctx context.Context) ([]domain.Role, error)
	GetRole(ctx context.Context, roleID string) (*domain.Role, error)
	UpdateRole(ctx context.Context, roleID string, req domain.UpdateRoleRequest) (*domain.Role, error)
	DeleteRole(ctx context.Context, roleID string) error
	SetGrant(ctx context.Context, roleID string, req domain.SetGrantRequest) (*domain.PermissionGrant, error)
	ListGrants(ctx context.Context, roleID string) ([]domain.PermissionGrant, error)
	ListResources(ctx context.Context) ([]domain.Resource, error)
}

// roleService manages the tenant's role catalog. Writes are reserved to tenant admins;
// global roles are read-only here.
type roleService struct {
	roles RoleRepository
}

func NewRoleService(roles RoleRepository) *roleService {
	return &roleService{roles: roles}
}

func requireTenantAdmin(ctx context.Context) (domain.Actor, error) {
	a, err := currentActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if !a.TenantAdmin || a.TenantID == "" {
		return domain.Actor{}, fmt.Errorf("%w: tenant administrator required", domain.ErrForbidden)
	}
	return a, nil
}

func (s *roleService) CreateRole(ctx context.Context, req domain.CreateRoleRequest) (*domain.Role, error) {
	admin, err := requireTenantAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateRoleName(req.Name); err != nil {
		return nil, invalid("name must be 1-100 characters")
	}

	return s.roles.CreateRole(ctx, &domain.Role{
		ID:          ids.NewEntity(),
		TenantID:    admin.TenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
	})
}

func (s *roleService) ListRoles(ctx context.Context) ([]domain.Role, error) {
	caller, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.roles.ListRoles(ctx, caller.TenantID)
}

func (s *roleService) GetRole(ctx context.Context, roleID string) (*domain.Role, error) {
	caller, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.visibleRole(ctx, caller.TenantID, roleID)
}

// ownedRole loads a role the admin's tenant may change.
func (s *roleService) ownedRole(ctx context.Context, admin domain.Actor, roleID string) (*domain.Role, error) {
	role, err := s.visibleRole(ctx, admin.TenantID, roleID)
	if err != nil {
		return nil, err
	}
	if role.IsGlobal() {
		return nil, fmt.Errorf("%w: global roles cannot be changed by a tenant", domain.ErrForbidden)
	}
	return role, nil
}

func (s *roleService) UpdateRole(ctx context.Context, roleID string, req domain.UpdateRoleRequest) (*domain.Role, error) {
	admin, err := requireTenantAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateRoleName(req.Name); err != nil {
		return nil, invalid("name must be 1-100 characters")
	}
	role, err := s.ownedRole(ctx, admin, roleID)
	if err != nil {
		return nil, err
	}

	next := *role
	next.Name = strings.TrimSpace(req.Name)
	next.Description = req.Description
	return s.roles.UpdateRole(ctx, &next)
}

func (s *roleService) DeleteRole(ctx context.Context, roleID string) error {
	admin, err := requireTenantAdmin(ctx)
	if err != nil {
		return err
	}
	if _, err := s.ownedRole(ctx, admin, roleID); err != nil {
		return err
	}
	return s.roles.DeleteRole(ctx, roleID)
}

// visibleRole loads a role the caller's tenant may see.
func (s *roleService) visibleRole(ctx context.Context, tenantID, roleID string) (*domain.Role, error) {
	role, err := s.roles.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if !role.IsGlobal() && role.TenantID != tenantID {
		return nil, fmt.Errorf("role %s: %w", roleID, domain.ErrNotFound)
	}
	return role, nil
}

func (s *roleService) SetGrant(ctx context.Context, roleID string, req domain.SetGrantRequest) (*domain.PermissionGrant, error) {
	admin, err := requireTenantAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, invalid("resource is required and action must be one of %s", strings.Join(domain.ValidActions(), ", "))
	}

	role, err := s.ownedRole(ctx, admin, roleID)
	if err != nil {
		return nil, err
	}

	resources, err := s.roles.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load resources: %w", err)
	}
	if !lo.ContainsBy(resources, func(r domain.Resource) bool { return r.Code == req.Resource }) {
		return nil, invalid("unknown resource %q", req.Resource)
	}

	grant := domain.PermissionGrant{
		RoleID:   role.ID,
		Resource: req.Resource,
		Action:   req.Action,
		Allowed:  req.Allowed,
	}
	if err := s.roles.SetGrant(ctx, grant); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"role_id":  role.ID,
		"resource": grant.Resource,
		"action":   grant.Action,
		"allowed":  grant.Allowed,
		"admin_id": admin.ID,
	}).Info("Permission grant set")
	return &grant, nil
}

func (s *roleService) ListGrants(ctx context.Context, roleID string) ([]domain.PermissionGrant, error) {
	caller, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.visibleRole(ctx, caller.TenantID, roleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load role: %w", err)
	}
	return s.roles.ListGrants(ctx, roleID)
}

func (s *roleService) ListResources(ctx context.Context) ([]domain.Resource, error) {
	return s.roles.ListResources(ctx)
}
