package domain

import (
	"slices"
	"strings"
	"time"
)

// Resource kinds known to the resolver, the permission grants and the audit trail.
const (
	KindProject    = "project"
	KindBoard      = "board"
	KindSprint     = "sprint"
	KindTask       = "task"
	KindComment    = "comment"
	KindMembership = "membership"
	KindLabel      = "label"
	KindAudit      = "audit"
)

// Permission actions
const (
	ActionView   = "view"
	ActionAdd    = "add"
	ActionChange = "change"
	ActionDelete = "delete"
)

// Decision reasons
const (
	ReasonAllowed           = ""
	ReasonNotMember         = "not a member"
	ReasonMissingPermission = "missing permission"
)

// SystemActorID attributes changes nobody can be blamed for.
const SystemActorID = "system"

const maxRoleNameLength = 100

// ValidActions returns the closed set of grantable actions
func ValidActions() []string {
	return []string{ActionView, ActionAdd, ActionChange, ActionDelete}
}

func IsValidAction(action string) bool {
	return slices.Contains(ValidActions(), action)
}

// Actor is the authenticated principal of a unit of work.
type Actor struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenant_id,omitempty"`
	TenantAdmin bool   `json:"tenant_admin,omitempty"`
}

func (a Actor) IsSystem() bool {
	return a.ID == SystemActorID
}

// Owner is the tenant and project an entity belongs to.
type Owner struct {
	TenantID  string `json:"tenant_id"`
	ProjectID string `json:"project_id"`
}

// Decision is the outcome of a permission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

type Role struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id,omitempty"` // empty for global roles
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r Role) IsGlobal() bool {
	return r.TenantID == ""
}

type Resource struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type PermissionGrant struct {
	RoleID   string `json:"role_id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

type CreateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type SetGrantRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Allowed  bool   `json:"allowed"`
}

func ValidateRoleName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxRoleNameLength {
		return ErrInvalidInput
	}
	return nil
}

func (r SetGrantRequest) Validate() error {
	if r.Resource == "" || !IsValidAction(r.Action) {
		return ErrInvalidInput
	}
	return nil
}

// Resources is the catalog of permission targets.
func Resources() []Resource {
	return []Resource{
		{Code: KindProject, Name: "Project"},
		{Code: KindBoard, Name: "Board"},
		{Code: KindSprint, Name: "Sprint"},
		{Code: KindTask, Name: "Task"},
		{Code: KindComment, Name: "Comment"},
		{Code: KindMembership, Name: "Membership"},
		{Code: KindLabel, Name: "Label"},
		{Code: KindAudit, Name: "Audit log"},
	}
}
