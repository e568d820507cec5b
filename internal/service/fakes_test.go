package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"project-service/internal/actor"
	"project-service/internal/domain"
)

func actorCtx(t *testing.T, a domain.Actor) context.Context {
	t.Helper()
	ctx, end, err := actor.Begin(context.Background(), a)
	require.NoError(t, err)
	t.Cleanup(end)
	return ctx
}

type fakeProjects struct {
	mu    sync.Mutex
	byID  map[string]*domain.Project
	err   error
	after error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{byID: map[string]*domain.Project{}}
}

func (f *fakeProjects) Create(_ context.Context, p *domain.Project) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	stored := *p
	f.byID[p.ID] = &stored
	return &stored, f.after
}

func (f *fakeProjects) GetByID(_ context.Context, id string) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeProjects) ListByTenant(_ context.Context, tenantID string, limit, offset int) ([]domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Project
	for _, p := range f.byID {
		if p.TenantID == tenantID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeProjects) Update(_ context.Context, id string, mutate func(*domain.Project) error) (*domain.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := *p
	if err := mutate(&next); err != nil {
		return nil, err
	}
	f.byID[id] = &next
	return &next, nil
}

func (f *fakeProjects) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeMemberships struct {
	mu       sync.Mutex
	assigned []domain.Membership
	err      error
}

func (f *fakeMemberships) FindMembership(_ context.Context, projectID, actorID string) (*domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.assigned {
		if m.ProjectID == projectID && m.ActorID == actorID {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMemberships) ListByProject(_ context.Context, projectID string) ([]domain.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Membership
	for _, m := range f.assigned {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemberships) Assign(_ context.Context, m *domain.Membership) (*domain.Membership, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, false, f.err
	}
	for i, existing := range f.assigned {
		if existing.ProjectID == m.ProjectID && existing.ActorID == m.ActorID {
			f.assigned[i].RoleID = m.RoleID
			return &f.assigned[i], false, nil
		}
	}
	f.assigned = append(f.assigned, *m)
	return m, true, nil
}

func (f *fakeMemberships) Remove(_ context.Context, projectID, actorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.assigned {
		if m.ProjectID == projectID && m.ActorID == actorID {
			f.assigned = append(f.assigned[:i], f.assigned[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeRoles struct {
	roles     map[string]*domain.Role
	grants    []domain.PermissionGrant
	resources []domain.Resource
}

func newFakeRoles(roles ...domain.Role) *fakeRoles {
	f := &fakeRoles{roles: map[string]*domain.Role{}, resources: domain.Resources()}
	for i := range roles {
		f.roles[roles[i].ID] = &roles[i]
	}
	return f
}

func (f *fakeRoles) CreateRole(_ context.Context, role *domain.Role) (*domain.Role, error) {
	for _, r := range f.roles {
		if r.TenantID == role.TenantID && r.Name == role.Name {
			return nil, fmt.Errorf("%w: roles_tenant_name_key", domain.ErrAlreadyExists)
		}
	}
	stored := *role
	f.roles[role.ID] = &stored
	return &stored, nil
}

func (f *fakeRoles) GetRole(_ context.Context, roleID string) (*domain.Role, error) {
	r, ok := f.roles[roleID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (f *fakeRoles) UpdateRole(_ context.Context, role *domain.Role) (*domain.Role, error) {
	if _, ok := f.roles[role.ID]; !ok {
		return nil, domain.ErrNotFound
	}
	stored := *role
	f.roles[role.ID] = &stored
	return &stored, nil
}

func (f *fakeRoles) DeleteRole(_ context.Context, roleID string) error {
	if _, ok := f.roles[roleID]; !ok {
		return domain.ErrNotFound
	}
	delete(f.roles, roleID)
	return nil
}

func (f *fakeRoles) FindRoleByName(_ context.Context, tenantID, name string) (*domain.Role, error) {
	var global *domain.Role
	for _, r := range f.roles {
		if r.Name != name {
			continue
		}
		if r.TenantID == tenantID {
			return r, nil
		}
		if r.IsGlobal() {
			global = r
		}
	}
	if global != nil {
		return global, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRoles) ListRoles(_ context.Context, tenantID string) ([]domain.Role, error) {
	var out []domain.Role
	for _, r := range f.roles {
		if r.TenantID == tenantID || r.IsGlobal() {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRoles) SetGrant(_ context.Context, grant domain.PermissionGrant) error {
	for i, g := range f.grants {
		if g.RoleID == grant.RoleID && g.Resource == grant.Resource && g.Action == grant.Action {
			f.grants[i] = grant
			return nil
		}
	}
	f.grants = append(f.grants, grant)
	return nil
}

func (f *fakeRoles) ListGrants(_ context.Context, roleID string) ([]domain.PermissionGrant, error) {
	var out []domain.PermissionGrant
	for _, g := range f.grants {
		if g.RoleID == roleID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeRoles) FindGrant(_ context.Context, roleID, resource, action string) (*domain.PermissionGrant, error) {
	for _, g := range f.grants {
		if g.RoleID == roleID && g.Resource == resource && g.Action == action {
			return &g, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeRoles) ListResources(_ context.Context) ([]domain.Resource, error) {
	return f.resources, nil
}

type fakeSprints struct {
	byID map[string]*domain.Sprint
}

func (f *fakeSprints) Create(_ context.Context, s *domain.Sprint) (*domain.Sprint, error) {
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSprints) GetByID(_ context.Context, id string) (*domain.Sprint, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (f *fakeSprints) ListByBoard(_ context.Context, boardID string) ([]domain.Sprint, error) {
	var out []domain.Sprint
	for _, s := range f.byID {
		if s.BoardID == boardID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSprints) Update(_ context.Context, id string, mutate func(*domain.Sprint) error) (*domain.Sprint, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := *s
	if err := mutate(&next); err != nil {
		return nil, err
	}
	f.byID[id] = &next
	return &next, nil
}

func (f *fakeSprints) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeTasks struct {
	byID map[string]*domain.Task
}

func (f *fakeTasks) Create(_ context.Context, t *domain.Task) (*domain.Task, error) {
	stored := *t
	f.byID[t.ID] = &stored
	return &stored, nil
}

func (f *fakeTasks) GetByID(_ context.Context, id string) (*domain.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return t, nil
}

func (f *fakeTasks) ListByBoard(_ context.Context, boardID string, limit, offset int) ([]domain.Task, error) {
	var out []domain.Task
	for _, t := range f.byID {
		if t.BoardID == boardID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTasks) Update(_ context.Context, id string, mutate func(*domain.Task) error) (*domain.Task, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := *t
	if err := mutate(&next); err != nil {
		return nil, err
	}
	f.byID[id] = &next
	return &next, nil
}

func (f *fakeTasks) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeComments struct {
	byID map[string]*domain.Comment
}

func (f *fakeComments) Create(_ context.Context, c *domain.Comment) (*domain.Comment, error) {
	stored := *c
	f.byID[c.ID] = &stored
	return &stored, nil
}

func (f *fakeComments) ListByTask(_ context.Context, taskID string) ([]domain.Comment, error) {
	var out []domain.Comment
	for _, c := range f.byID {
		if c.TaskID == taskID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeComments) Update(_ context.Context, id string, mutate func(*domain.Comment) error) (*domain.Comment, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := *c
	if err := mutate(&next); err != nil {
		return nil, err
	}
	f.byID[id] = &next
	return &next, nil
}

func (f *fakeComments) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeLabels struct {
	byID map[string]*domain.ProjectLabel
}

func (f *fakeLabels) Create(_ context.Context, l *domain.ProjectLabel) (*domain.ProjectLabel, error) {
	stored := *l
	f.byID[l.ID] = &stored
	return &stored, nil
}

func (f *fakeLabels) GetByID(_ context.Context, id string) (*domain.ProjectLabel, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeLabels) ListByProject(_ context.Context, projectID string) ([]domain.ProjectLabel, error) {
	var out []domain.ProjectLabel
	for _, l := range f.byID {
		if l.ProjectID == projectID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeLabels) Update(_ context.Context, id string, mutate func(*domain.ProjectLabel) error) (*domain.ProjectLabel, error) {
	l, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := *l
	if err := mutate(&next); err != nil {
		return nil, err
	}
	f.byID[id] = &next
	return &next, nil
}

func (f *fakeLabels) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
