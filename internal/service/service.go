package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"project-service/internal/actor"
	"project-service/internal/domain"
	"project-service/internal/ids"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) (*domain.Project, error)
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	ListByTenant(ctx context.Context, tenantID string, limit, offset int) ([]domain.Project, error)
	Update(ctx context.Context, id string, mutate func(*domain.Project) error) (*domain.Project, error)
	Delete(ctx context.Context, id string) error
}

type ProjectServiceInterface interface {
	CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error)
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	ListProjects(ctx context.Context, limit, offset int) ([]domain.Project, error)
	UpdateProject(ctx context.Context, id string, req domain.UpdateProjectRequest) (*domain.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

type projectService struct {
	projects         ProjectRepository
	memberships      MembershipRepository
	roles            RoleRepository
	ownerRole        string
	allowGlobalRoles bool
}

// NewProjectService builds the project service. Creators of a project are assigned
// ownerRole when the tenant (or the global catalog) defines it; an empty name disables
// the assignment. allowGlobalRoles must match the authority's setting: when global roles
// do not count, a global owner role is copied into the tenant before it is assigned.
func NewProjectService(projects ProjectRepository, memberships MembershipRepository, roles RoleRepository, ownerRole string, allowGlobalRoles bool) *projectService {
	return &projectService{
		projects:         projects,
		memberships:      memberships,
		roles:            roles,
		ownerRole:        ownerRole,
		allowGlobalRoles: allowGlobalRoles,
	}
}

// currentActor returns the actor of the request scope.
func currentActor(ctx context.Context) (domain.Actor, error) {
	a, ok := actor.Current(ctx)
	if !ok {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return a, nil
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidInput, fmt.Sprintf(format, args...))
}

func (s *projectService) CreateProject(ctx context.Context, req domain.CreateProjectRequest) (*domain.Project, error) {
	creator, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if creator.TenantID == "" {
		return nil, invalid("actor has no tenant")
	}
	if err := domain.ValidateProjectName(req.Name); err != nil {
		return nil, invalid("name must be 1-200 characters")
	}
	if err := domain.ValidateDescription(req.Description); err != nil {
		return nil, invalid("description is too long")
	}

	project, err := s.projects.Create(ctx, &domain.Project{
		ID:          ids.NewEntity(),
		TenantID:    creator.TenantID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		CreatedBy:   creator.ID,
	})
	if err != nil {
		return project, err
	}

	if err := s.assignOwner(ctx, project, creator); err != nil {
		return project, err
	}
	return project, nil
}

func (s *projectService) assignOwner(ctx context.Context, project *domain.Project, creator domain.Actor) error {
	if s.ownerRole == "" || s.roles == nil || s.memberships == nil {
		return nil
	}
	role, err := s.roles.FindRoleByName(ctx, project.TenantID, s.ownerRole)
	if errors.Is(err, domain.ErrNotFound) {
		log.WithFields(log.Fields{
			"project_id": project.ID,
			"role":       s.ownerRole,
		}).Warn("Owner role is not defined, creator gets no membership")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up owner role: %w", err)
	}
	if role.IsGlobal() && !s.allowGlobalRoles {
		if role, err = s.tenantCopy(ctx, project.TenantID, role); err != nil {
			return err
		}
	}

	_, _, err = s.memberships.Assign(ctx, &domain.Membership{
		ID:         ids.NewEntity(),
		TenantID:   project.TenantID,
		ProjectID:  project.ID,
		ActorID:    creator.ID,
		RoleID:     role.ID,
		AssignedBy: creator.ID,
	})
	return err
}

// tenantCopy creates a tenant role named like template with the same grants. A role
// created concurrently under that name is reused as is.
func (s *projectService) tenantCopy(ctx context.Context, tenantID string, template *domain.Role) (*domain.Role, error) {
	grants, err := s.roles.ListGrants(ctx, template.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grants of %s: %w", template.ID, err)
	}

	role, err := s.roles.CreateRole(ctx, &domain.Role{
		ID:          ids.NewEntity(),
		TenantID:    tenantID,
		Name:        template.Name,
		Description: template.Description,
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return s.roles.FindRoleByName(ctx, tenantID, template.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant owner role: %w", err)
	}

	for _, g := range grants {
		g.RoleID = role.ID
		if err := s.roles.SetGrant(ctx, g); err != nil {
			return nil, fmt.Errorf("failed to copy grant %s.%s: %w", g.Resource, g.Action, err)
		}
	}
	log.WithFields(log.Fields{
		"tenant_id": tenantID,
		"role_id":   role.ID,
		"template":  template.ID,
		"grants":    len(grants),
	}).Info("Owner role copied into tenant")
	return role, nil
}

func (s *projectService) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	if id == "" {
		return nil, invalid("project id is required")
	}
	return s.projects.GetByID(ctx, id)
}

// ListProjects lists the projects of the caller's tenant.
func (s *projectService) ListProjects(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	caller, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	limit, offset = normalizePage(limit, offset)

	projects, err := s.projects.ListByTenant(ctx, caller.TenantID, limit, offset)
	if err != nil {
		log.WithError(err).WithField("tenant_id", caller.TenantID).Error("Failed to list projects")
		return nil, err
	}
	return projects, nil
}

func (s *projectService) UpdateProject(ctx context.Context, id string, req domain.UpdateProjectRequest) (*domain.Project, error) {
	editor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		if err := domain.ValidateProjectName(*req.Name); err != nil {
			return nil, invalid("name must be 1-200 characters")
		}
	}
	if req.Description != nil {
		if err := domain.ValidateDescription(*req.Description); err != nil {
			return nil, invalid("description is too long")
		}
	}

	return s.projects.Update(ctx, id, func(p *domain.Project) error {
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			p.Description = *req.Description
		}
		p.UpdatedBy = editor.ID
		return nil
	})
}

func (s *projectService) DeleteProject(ctx context.Context, id string) error {
	if id == "" {
		return invalid("project id is required")
	}
	return s.projects.Delete(ctx, id)
}
