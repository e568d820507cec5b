package service

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type MembershipRepository interface {
	FindMembership(ctx context.Context, projectID, actorID string) (*domain.Membership, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Membership, error)
	Assign(ctx context.Context, m *domain.Membership) (*domain.Membership, bool, error)
	Remove(ctx context.Context, projectID, actorID string) error
}

type MembershipServiceInterface interface {
	AssignRole(ctx context.Context, owner domain.Owner, req domain.AssignRoleRequest) (*domain.Membership, bool, error)
	ListMembers(ctx context.Context, projectID string) ([]domain.Membership, error)
	RemoveMember(ctx context.Context, projectID, actorID string) error
}

type membershipService struct {
	memberships      MembershipRepository
	roles            RoleRepository
	allowGlobalRoles bool
}

// NewMembershipService builds the membership service. Global roles are only assignable
// when allowGlobalRoles is set, matching the authority that evaluates them.
func NewMembershipService(memberships MembershipRepository, roles RoleRepository, allowGlobalRoles bool) *membershipService {
	return &membershipService{memberships: memberships, roles: roles, allowGlobalRoles: allowGlobalRoles}
}

// AssignRole gives req.ActorID the role in the project, replacing any role the actor
// already holds there. The bool reports whether a new membership was created.
func (s *membershipService) AssignRole(ctx context.Context, owner domain.Owner, req domain.AssignRoleRequest) (*domain.Membership, bool, error) {
	assigner, err := currentActor(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := req.Validate(); err != nil {
		return nil, false, invalid("actor_id and role_id are required")
	}

	role, err := s.roles.GetRole(ctx, req.RoleID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, invalid("role %s does not exist", req.RoleID)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load role: %w", err)
	}
	if role.IsGlobal() && !s.allowGlobalRoles {
		return nil, false, invalid("role %s is global and global roles are disabled", req.RoleID)
	}
	if !role.IsGlobal() && role.TenantID != owner.TenantID {
		log.WithFields(log.Fields{
			"role_id":    role.ID,
			"project_id": owner.ProjectID,
		}).Warn("Rejected cross-tenant role assignment")
		return nil, false, invalid("role %s does not exist", req.RoleID)
	}

	return s.memberships.Assign(ctx, &domain.Membership{
		ID:         ids.NewEntity(),
		TenantID:   owner.TenantID,
		ProjectID:  owner.ProjectID,
		ActorID:    req.ActorID,
		RoleID:     role.ID,
		AssignedBy: assigner.ID,
	})
}

func (s *membershipService) ListMembers(ctx context.Context, projectID string) ([]domain.Membership, error) {
	return s.memberships.ListByProject(ctx, projectID)
}

func (s *membershipService) RemoveMember(ctx context.Context, projectID, actorID string) error {
	if actorID == "" {
		return invalid("actor id is required")
	}
	return s.memberships.Remove(ctx, projectID, actorID)
}
