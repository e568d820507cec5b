package domain

import "time"

// Membership assigns exactly one role to an actor within one project.
type Membership struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ProjectID  string    `json:"project_id"`
	ActorID    string    `json:"actor_id"`
	RoleID     string    `json:"role_id"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type AssignRoleRequest struct {
	ActorID string `json:"actor_id"`
	RoleID  string `json:"role_id"`
}

func (m *Membership) TrackedKind() string   { return KindMembership }
func (m *Membership) TrackedID() string     { return m.ID }
func (m *Membership) TrackedTenant() string { return m.TenantID }

func (m *Membership) DisplayLabel() string {
	return Label(m.ActorID + " as " + m.RoleID)
}

func (m *Membership) Authors() (string, string) {
	return m.AssignedBy, ""
}

func (m *Membership) Snapshot() Snapshot {
	return Snapshot{
		{Name: "project_id", Value: m.ProjectID},
		{Name: "actor_id", Value: m.ActorID},
		{Name: "role_id", Value: m.RoleID},
	}
}

func (r AssignRoleRequest) Validate() error {
	if r.ActorID == "" || r.RoleID == "" {
		return ErrInvalidInput
	}
	return nil
}
