package domain

import (
	"slices"
	"strings"
	"time"
)

const maxBoardNameLength = 200

// Sprint statuses
const (
	SprintPlanned = "planned"
	SprintActive  = "active"
	SprintClosed  = "closed"
)

func ValidSprintStatuses() []string {
	return []string{SprintPlanned, SprintActive, SprintClosed}
}

type Board struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateBoardRequest struct {
	Name string `json:"name"`
}

type UpdateBoardRequest struct {
	Name *string `json:"name,omitempty"`
}

func (b *Board) TrackedKind() string   { return KindBoard }
func (b *Board) TrackedID() string     { return b.ID }
func (b *Board) TrackedTenant() string { return b.TenantID }
func (b *Board) DisplayLabel() string  { return Label(b.Name) }

func (b *Board) Authors() (string, string) {
	return "", b.CreatedBy
}

func (b *Board) Snapshot() Snapshot {
	return Snapshot{
		{Name: "project_id", Value: b.ProjectID},
		{Name: "name", Value: b.Name},
		{Name: "created_by", Value: b.CreatedBy},
	}
}

type Sprint struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	BoardID   string     `json:"board_id"`
	Name      string     `json:"name"`
	Goal      string     `json:"goal,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CreateSprintRequest struct {
	Name      string     `json:"name"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
}

type UpdateSprintRequest struct {
	Name      *string    `json:"name,omitempty"`
	Goal      *string    `json:"goal,omitempty"`
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	Status    *string    `json:"status,omitempty"`
}

func (s *Sprint) TrackedKind() string   { return KindSprint }
func (s *Sprint) TrackedID() string     { return s.ID }
func (s *Sprint) TrackedTenant() string { return s.TenantID }
func (s *Sprint) DisplayLabel() string  { return Label(s.Name, s.Goal) }

func (s *Sprint) Authors() (string, string) {
	return "", s.CreatedBy
}

func (s *Sprint) Snapshot() Snapshot {
	return Snapshot{
		{Name: "board_id", Value: s.BoardID},
		{Name: "name", Value: s.Name},
		{Name: "goal", Value: s.Goal},
		{Name: "start_date", Value: s.StartDate},
		{Name: "end_date", Value: s.EndDate},
		{Name: "status", Value: s.Status},
		{Name: "created_by", Value: s.CreatedBy},
	}
}

func ValidateBoardName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxBoardNameLength {
		return ErrInvalidInput
	}
	return nil
}

func ValidateSprintStatus(status string) error {
	if !slices.Contains(ValidSprintStatuses(), status) {
		return ErrInvalidInput
	}
	return nil
}

func ValidateSprintDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrInvalidInput
	}
	return nil
}
