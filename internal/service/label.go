package service

import (
	"context"
	"strings"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type LabelRepository interface {
	Create(ctx context.Context, label *domain.ProjectLabel) (*domain.ProjectLabel, error)
	GetByID(ctx context.Context, id string) (*domain.ProjectLabel, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.ProjectLabel, error)
	Update(ctx context.Context, id string, mutate func(*domain.ProjectLabel) error) (*domain.ProjectLabel, error)
	Delete(ctx context.Context, id string) error
}

type LabelServiceInterface interface {
	CreateLabel(ctx context.Context, owner domain.Owner, req domain.CreateLabelRequest) (*domain.ProjectLabel, error)
	GetLabel(ctx context.Context, id string) (*domain.ProjectLabel, error)
	ListLabels(ctx context.Context, projectID string) ([]domain.ProjectLabel, error)
	UpdateLabel(ctx context.Context, id string, req domain.UpdateLabelRequest) (*domain.ProjectLabel, error)
	DeleteLabel(ctx context.Context, id string) error
}

type labelService struct {
	labels LabelRepository
}

func NewLabelService(labels LabelRepository) *labelService {
	return &labelService{labels: labels}
}

func (s *labelService) CreateLabel(ctx context.Context, owner domain.Owner, req domain.CreateLabelRequest) (*domain.ProjectLabel, error) {
	creator, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateLabelName(req.Name); err != nil {
		return nil, invalid("name must be 1-50 characters")
	}
	if err := domain.ValidateLabelColor(req.Color); err != nil {
		return nil, invalid("color must look like #RRGGBB")
	}

	return s.labels.Create(ctx, &domain.ProjectLabel{
		ID:        ids.NewEntity(),
		TenantID:  owner.TenantID,
		ProjectID: owner.ProjectID,
		Name:      strings.TrimSpace(req.Name),
		Color:     strings.ToUpper(req.Color),
		CreatedBy: creator.ID,
	})
}

func (s *labelService) GetLabel(ctx context.Context, id string) (*domain.ProjectLabel, error) {
	return s.labels.GetByID(ctx, id)
}

func (s *labelService) ListLabels(ctx context.Context, projectID string) ([]domain.ProjectLabel, error) {
	return s.labels.ListByProject(ctx, projectID)
}

func (s *labelService) UpdateLabel(ctx context.Context, id string, req domain.UpdateLabelRequest) (*domain.ProjectLabel, error) {
	if req.Name != nil {
		if err := domain.ValidateLabelName(*req.Name); err != nil {
			return nil, invalid("name must be 1-50 characters")
		}
	}
	if req.Color != nil {
		if err := domain.ValidateLabelColor(*req.Color); err != nil {
			return nil, invalid("color must look like #RRGGBB")
		}
	}
	return s.labels.Update(ctx, id, func(l *domain.ProjectLabel) error {
		if req.Name != nil {
			l.Name = strings.TrimSpace(*req.Name)
		}
		if req.Color != nil {
			l.Color = strings.ToUpper(*req.Color)
		}
		return nil
	})
}

func (s *labelService) DeleteLabel(ctx context.Context, id string) error {
	return s.labels.Delete(ctx, id)
}
