package service

import (
	"context"
	"strings"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type BoardRepository interface {
	Create(ctx context.Context, board *domain.Board) (*domain.Board, error)
	GetByID(ctx context.Context, id string) (*domain.Board, error)
	ListByProject(ctx context.Context, projectID string) ([]domain.Board, error)
	Update(ctx context.Context, id string, mutate func(*domain.Board) error) (*domain.Board, error)
	Delete(ctx context.Context, id string) error
}

type SprintRepository interface {
	Create(ctx context.Context, sprint *domain.Sprint) (*domain.Sprint, error)
	GetByID(ctx context.Context, id string) (*domain.Sprint, error)
	ListByBoard(ctx context.Context, boardID string) ([]domain.Sprint, error)
	Update(ctx context.Context, id string, mutate func(*domain.Sprint) error) (*domain.Sprint, error)
	Delete(ctx context.Context, id string) error
}

type BoardServiceInterface interface {
	CreateBoard(ctx context.Context, owner domain.Owner, req domain.CreateBoardRequest) (*domain.Board, error)
	GetBoard(ctx context.Context, id string) (*domain.Board, error)
	ListBoards(ctx context.Context, projectID string) ([]domain.Board, error)
	UpdateBoard(ctx context.Context, id string, req domain.UpdateBoardRequest) (*domain.Board, error)
	DeleteBoard(ctx context.Context, id string) error

	CreateSprint(ctx context.Context, owner domain.Owner, boardID string, req domain.CreateSprintRequest) (*domain.Sprint, error)
	GetSprint(ctx context.Context, id string) (*domain.Sprint, error)
	ListSprints(ctx context.Context, boardID string) ([]domain.Sprint, error)
	UpdateSprint(ctx context.Context, id string, req domain.UpdateSprintRequest) (*domain.Sprint, error)
	DeleteSprint(ctx context.Context, id string) error
}

type boardService struct {
	boards  BoardRepository
	sprints SprintRepository
}

func NewBoardService(boards BoardRepository, sprints SprintRepository) *boardService {
	return &boardService{boards: boards, sprints: sprints}
}

// CreateBoard adds a board to the project the gate resolved into owner.
func (s *boardService) CreateBoard(ctx context.Context, owner domain.Owner, req domain.CreateBoardRequest) (*domain.Board, error) {
	creator, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateBoardName(req.Name); err != nil {
		return nil, invalid("name must be 1-200 characters")
	}

	return s.boards.Create(ctx, &domain.Board{
		ID:        ids.NewEntity(),
		TenantID:  owner.TenantID,
		ProjectID: owner.ProjectID,
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: creator.ID,
	})
}

func (s *boardService) GetBoard(ctx context.Context, id string) (*domain.Board, error) {
	return s.boards.GetByID(ctx, id)
}

func (s *boardService) ListBoards(ctx context.Context, projectID string) ([]domain.Board, error) {
	return s.boards.ListByProject(ctx, projectID)
}

func (s *boardService) UpdateBoard(ctx context.Context, id string, req domain.UpdateBoardRequest) (*domain.Board, error) {
	if req.Name != nil {
		if err := domain.ValidateBoardName(*req.Name); err != nil {
			return nil, invalid("name must be 1-200 characters")
		}
	}
	return s.boards.Update(ctx, id, func(b *domain.Board) error {
		if req.Name != nil {
			b.Name = strings.TrimSpace(*req.Name)
		}
		return nil
	})
}

func (s *boardService) DeleteBoard(ctx context.Context, id string) error {
	return s.boards.Delete(ctx, id)
}

func (s *boardService) CreateSprint(ctx context.Context, owner domain.Owner, boardID string, req domain.CreateSprintRequest) (*domain.Sprint, error) {
	creator, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateBoardName(req.Name); err != nil {
		return nil, invalid("name must be 1-200 characters")
	}
	if err := domain.ValidateSprintDates(req.StartDate, req.EndDate); err != nil {
		return nil, invalid("end_date must not be before start_date")
	}

	return s.sprints.Create(ctx, &domain.Sprint{
		ID:        ids.NewEntity(),
		TenantID:  owner.TenantID,
		BoardID:   boardID,
		Name:      strings.TrimSpace(req.Name),
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Status:    domain.SprintPlanned,
		CreatedBy: creator.ID,
	})
}

func (s *boardService) GetSprint(ctx context.Context, id string) (*domain.Sprint, error) {
	return s.sprints.GetByID(ctx, id)
}

func (s *boardService) ListSprints(ctx context.Context, boardID string) ([]domain.Sprint, error) {
	return s.sprints.ListByBoard(ctx, boardID)
}

func (s *boardService) UpdateSprint(ctx context.Context, id string, req domain.UpdateSprintRequest) (*domain.Sprint, error) {
	if req.Name != nil {
		if err := domain.ValidateBoardName(*req.Name); err != nil {
			return nil, invalid("name must be 1-200 characters")
		}
	}
	if req.Status != nil {
		if err := domain.ValidateSprintStatus(*req.Status); err != nil {
			return nil, invalid("status must be one of %s", strings.Join(domain.ValidSprintStatuses(), ", "))
		}
	}

	return s.sprints.Update(ctx, id, func(sp *domain.Sprint) error {
		if req.Name != nil {
			sp.Name = strings.TrimSpace(*req.Name)
		}
		if req.Goal != nil {
			sp.Goal = *req.Goal
		}
		if req.StartDate != nil {
			sp.StartDate = req.StartDate
		}
		if req.EndDate != nil {
			sp.EndDate = req.EndDate
		}
		if req.Status != nil {
			sp.Status = *req.Status
		}
		if err := domain.ValidateSprintDates(sp.StartDate, sp.EndDate); err != nil {
			return invalid("end_date must not be before start_date")
		}
		return nil
	})
}

func (s *boardService) DeleteSprint(ctx context.Context, id string) error {
	return s.sprints.Delete(ctx, id)
}
