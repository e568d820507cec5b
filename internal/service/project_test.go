package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"project-service/internal/authz"
	"project-service/internal/domain"
)

var alice = domain.Actor{ID: "alice", TenantID: "tenant-a"}

func TestCreateProjectAssignsOwnerRole(t *testing.T) {
	projects := newFakeProjects()
	memberships := &fakeMemberships{}
	roles := newFakeRoles(
		domain.Role{ID: "global-owner", Name: "Owner"},
		domain.Role{ID: "tenant-owner", TenantID: "tenant-a", Name: "Owner"},
	)
	svc := NewProjectService(projects, memberships, roles, "Owner", true)

	project, err := svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "  Apollo "})
	require.NoError(t, err)

	assert.Equal(t, "Apollo", project.Name)
	assert.Equal(t, "tenant-a", project.TenantID)
	assert.Equal(t, "alice", project.CreatedBy)
	require.Len(t, memberships.assigned, 1)
	m := memberships.assigned[0]
	assert.Equal(t, project.ID, m.ProjectID)
	assert.Equal(t, "alice", m.ActorID)
	assert.Equal(t, "tenant-owner", m.RoleID, "tenant role wins over the global one")
}

func TestCreatorCanUseProjectWithGlobalRolesDisabled(t *testing.T) {
	memberships := &fakeMemberships{}
	roles := newFakeRoles(domain.Role{ID: "global-owner", Name: "Owner", Description: "Full control"})
	for _, action := range domain.ValidActions() {
		roles.grants = append(roles.grants, domain.PermissionGrant{RoleID: "global-owner", Resource: domain.KindProject, Action: action, Allowed: true})
		roles.grants = append(roles.grants, domain.PermissionGrant{RoleID: "global-owner", Resource: domain.KindMembership, Action: action, Allowed: true})
	}
	svc := NewProjectService(newFakeProjects(), memberships, roles, "Owner", false)

	project, err := svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "Apollo"})
	require.NoError(t, err)

	require.Len(t, memberships.assigned, 1)
	roleID := memberships.assigned[0].RoleID
	assert.NotEqual(t, "global-owner", roleID)
	role, err := roles.GetRole(context.Background(), roleID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", role.TenantID)
	assert.Equal(t, "Owner", role.Name)

	authority, err := authz.NewAuthority(memberships, roles, authz.WithGlobalRoles(false))
	require.NoError(t, err)
	owner := domain.Owner{TenantID: "tenant-a", ProjectID: project.ID}
	for _, check := range []struct{ resource, action string }{
		{domain.KindProject, domain.ActionView},
		{domain.KindProject, domain.ActionDelete},
		{domain.KindMembership, domain.ActionChange},
	} {
		decision, err := authority.Check(context.Background(), "alice", owner, check.resource, check.action)
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "%s.%s: %s", check.resource, check.action, decision.Reason)
	}

	// A second project reuses the tenant copy.
	_, err = svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "Gemini"})
	require.NoError(t, err)
	require.Len(t, memberships.assigned, 2)
	assert.Equal(t, roleID, memberships.assigned[1].RoleID)
	assert.Len(t, roles.roles, 2)
}

func TestCreateProjectWithoutOwnerRole(t *testing.T) {
	memberships := &fakeMemberships{}
	svc := NewProjectService(newFakeProjects(), memberships, newFakeRoles(), "Owner", true)

	project, err := svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "Apollo"})
	require.NoError(t, err)
	assert.NotEmpty(t, project.ID)
	assert.Empty(t, memberships.assigned)
}

func TestCreateProjectReturnsCommittedRowOnAuditFailure(t *testing.T) {
	projects := newFakeProjects()
	projects.after = errors.Join(domain.ErrAuditWriteFailure, errors.New("disk full"))
	svc := NewProjectService(projects, &fakeMemberships{}, newFakeRoles(), "", false)

	project, err := svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "Apollo"})
	require.ErrorIs(t, err, domain.ErrAuditWriteFailure)
	require.NotNil(t, project)
}

func TestCreateProjectValidation(t *testing.T) {
	svc := NewProjectService(newFakeProjects(), nil, nil, "", false)

	_, err := svc.CreateProject(context.Background(), domain.CreateProjectRequest{Name: "Apollo"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = svc.CreateProject(actorCtx(t, alice), domain.CreateProjectRequest{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.CreateProject(actorCtx(t, domain.Actor{ID: "bob"}), domain.CreateProjectRequest{Name: "Apollo"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateProjectStampsEditor(t *testing.T) {
	projects := newFakeProjects()
	projects.byID["p1"] = &domain.Project{ID: "p1", TenantID: "tenant-a", Name: "Old", CreatedBy: "bob"}
	svc := NewProjectService(projects, nil, nil, "", false)

	name := "New"
	updated, err := svc.UpdateProject(actorCtx(t, alice), "p1", domain.UpdateProjectRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "alice", updated.UpdatedBy)
	assert.Equal(t, "bob", updated.CreatedBy)
}

func TestListProjectsIsTenantScoped(t *testing.T) {
	projects := newFakeProjects()
	projects.byID["p1"] = &domain.Project{ID: "p1", TenantID: "tenant-a"}
	projects.byID["p2"] = &domain.Project{ID: "p2", TenantID: "tenant-b"}
	svc := NewProjectService(projects, nil, nil, "", false)

	list, err := svc.ListProjects(actorCtx(t, alice), 0, -1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].ID)
}
