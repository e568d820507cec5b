package domain

import (
	"regexp"
	"strings"
	"time"
)

const maxLabelNameLength = 50

var labelColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ProjectLabel is a named color tasks of a project can be tagged with.
type ProjectLabel struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateLabelRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type UpdateLabelRequest struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

func ValidateLabelName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxLabelNameLength {
		return ErrInvalidInput
	}
	return nil
}

// ValidateLabelColor accepts #RRGGBB.
func ValidateLabelColor(color string) error {
	if !labelColor.MatchString(color) {
		return ErrInvalidInput
	}
	return nil
}

func (l *ProjectLabel) TrackedKind() string   { return KindLabel }
func (l *ProjectLabel) TrackedID() string     { return l.ID }
func (l *ProjectLabel) TrackedTenant() string { return l.TenantID }
func (l *ProjectLabel) DisplayLabel() string  { return Label(l.Name) }

func (l *ProjectLabel) Authors() (string, string) {
	return "", l.CreatedBy
}

func (l *ProjectLabel) Snapshot() Snapshot {
	return Snapshot{
		{Name: "project_id", Value: l.ProjectID},
		{Name: "name", Value: l.Name},
		{Name: "color", Value: l.Color},
	}
}
