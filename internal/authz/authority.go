// Package authz decides whether an actor may perform an action on a resource kind
// inside a project.
package authz

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
	"project-service/internal/obs"
)

type MembershipReader interface {
	FindMembership(ctx context.Context, projectID, actorID string) (*domain.Membership, error)
}

type RoleReader interface {
	GetRole(ctx context.Context, roleID string) (*domain.Role, error)
	FindGrant(ctx context.Context, roleID, resource, action string) (*domain.PermissionGrant, error)
}

type Option func(*Authority) error

// WithGlobalRoles lets roles without a tenant satisfy checks in every tenant.
func WithGlobalRoles(allow bool) Option {
	return func(a *Authority) error {
		a.allowGlobalRoles = allow
		return nil
	}
}

type Authority struct {
	memberships      MembershipReader
	roles            RoleReader
	allowGlobalRoles bool
}

func NewAuthority(memberships MembershipReader, roles RoleReader, opts ...Option) (*Authority, error) {
	if memberships == nil || roles == nil {
		return nil, errors.New("authz: membership and role readers are required")
	}
	a := &Authority{memberships: memberships, roles: roles}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Check is read-only. Storage failures are returned as errors and never become an allow.
func (a *Authority) Check(ctx context.Context, actorID string, owner domain.Owner, resource, action string) (domain.Decision, error) {
	decision, err := a.decide(ctx, actorID, owner, resource, action)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"actor_id":   actorID,
			"project_id": owner.ProjectID,
			"resource":   resource,
			"action":     action,
		}).Error("Permission check failed")
		return domain.Deny(""), err
	}

	obs.RecordDecision(decision.Allowed, decision.Reason)
	log.WithFields(log.Fields{
		"actor_id":   actorID,
		"tenant_id":  owner.TenantID,
		"project_id": owner.ProjectID,
		"resource":   resource,
		"action":     action,
		"allowed":    decision.Allowed,
		"reason":     decision.Reason,
	}).Debug("Permission checked")
	return decision, nil
}

func (a *Authority) decide(ctx context.Context, actorID string, owner domain.Owner, resource, action string) (domain.Decision, error) {
	if actorID == "" || owner.ProjectID == "" {
		return domain.Deny(domain.ReasonNotMember), nil
	}

	member, err := a.memberships.FindMembership(ctx, owner.ProjectID, actorID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Deny(domain.ReasonNotMember), nil
	}
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to load membership: %w", err)
	}
	// A membership recorded under another tenant never counts, even on id collision.
	if member.TenantID != owner.TenantID || member.RoleID == "" {
		return domain.Deny(domain.ReasonNotMember), nil
	}

	role, err := a.roles.GetRole(ctx, member.RoleID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Deny(domain.ReasonNotMember), nil
	}
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to load role: %w", err)
	}
	if role.IsGlobal() {
		if !a.allowGlobalRoles {
			return domain.Deny(domain.ReasonMissingPermission), nil
		}
	} else if role.TenantID != owner.TenantID {
		return domain.Deny(domain.ReasonMissingPermission), nil
	}

	grant, err := a.roles.FindGrant(ctx, role.ID, resource, action)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Deny(domain.ReasonMissingPermission), nil
	}
	if err != nil {
		return domain.Decision{}, fmt.Errorf("failed to load grant: %w", err)
	}
	if !grant.Allowed {
		return domain.Deny(domain.ReasonMissingPermission), nil
	}
	return domain.Allow(), nil
}
