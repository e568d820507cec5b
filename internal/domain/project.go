package domain

import (
	"strings"
	"time"
)

const (
	maxProjectNameLength = 200
	maxDescriptionLength = 5000
)

type Project struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (p *Project) TrackedKind() string   { return KindProject }
func (p *Project) TrackedID() string     { return p.ID }
func (p *Project) TrackedTenant() string { return p.TenantID }
func (p *Project) DisplayLabel() string  { return Label(p.Name) }

func (p *Project) Authors() (string, string) {
	return p.UpdatedBy, p.CreatedBy
}

func (p *Project) Snapshot() Snapshot {
	return Snapshot{
		{Name: "name", Value: p.Name},
		{Name: "description", Value: p.Description},
		{Name: "created_by", Value: p.CreatedBy},
	}
}

func ValidateProjectName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxProjectNameLength {
		return ErrInvalidInput
	}
	return nil
}

func ValidateDescription(description string) error {
	if len(description) > maxDescriptionLength {
		return ErrInvalidInput
	}
	return nil
}
