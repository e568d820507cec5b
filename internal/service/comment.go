package service

import (
	"context"
	"fmt"

	"project-service/internal/domain"
	"project-service/internal/ids"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error)
	ListByTask(ctx context.Context, taskID string) ([]domain.Comment, error)
	Update(ctx context.Context, id string, mutate func(*domain.Comment) error) (*domain.Comment, error)
	Delete(ctx context.Context, id string) error
}

type CommentServiceInterface interface {
	AddComment(ctx context.Context, owner domain.Owner, taskID string, req domain.CommentRequest) (*domain.Comment, error)
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	EditComment(ctx context.Context, id string, req domain.CommentRequest) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type commentService struct {
	comments CommentRepository
}

func NewCommentService(comments CommentRepository) *commentService {
	return &commentService{comments: comments}
}

func (s *commentService) AddComment(ctx context.Context, owner domain.Owner, taskID string, req domain.CommentRequest) (*domain.Comment, error) {
	author, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCommentContent(req.Content); err != nil {
		return nil, invalid("content must be 1-10000 characters")
	}

	return s.comments.Create(ctx, &domain.Comment{
		ID:       ids.NewEntity(),
		TenantID: owner.TenantID,
		TaskID:   taskID,
		AuthorID: author.ID,
		Content:  req.Content,
	})
}

func (s *commentService) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	return s.comments.ListByTask(ctx, taskID)
}

// EditComment rewrites the content. Only the author may edit a comment, whatever
// their role grants.
func (s *commentService) EditComment(ctx context.Context, id string, req domain.CommentRequest) (*domain.Comment, error) {
	editor, err := currentActor(ctx)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateCommentContent(req.Content); err != nil {
		return nil, invalid("content must be 1-10000 characters")
	}

	return s.comments.Update(ctx, id, func(c *domain.Comment) error {
		if c.AuthorID != editor.ID {
			return fmt.Errorf("%w: only the author can edit a comment", domain.ErrForbidden)
		}
		if c.Content == req.Content {
			return nil
		}
		c.Content = req.Content
		c.IsEdited = true
		return nil
	})
}

func (s *commentService) DeleteComment(ctx context.Context, id string) error {
	return s.comments.Delete(ctx, id)
}
