package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"project-service/internal/domain"
)

type postgresCommentRepository struct {
	db    *sql.DB
	hooks *Hooks
}

func NewPostgresCommentRepository(db *sql.DB, hooks *Hooks) *postgresCommentRepository {
	return &postgresCommentRepository{db: db, hooks: hooks}
}

const commentColumns = `id, tenant_id, task_id, author_id, content, is_edited, created_at, updated_at`

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	if err := row.Scan(&c.ID, &c.TenantID, &c.TaskID, &c.AuthorID, &c.Content, &c.IsEdited, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresCommentRepository) Create(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return createTracked(ctx, r.db, r.hooks, func(ctx context.Context, tx *sql.Tx) (*domain.Comment, error) {
		query := `
			INSERT INTO comments (id, tenant_id, task_id, author_id, content)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING ` + commentColumns
		created, err := scanComment(tx.QueryRowContext(ctx, query,
			comment.ID, comment.TenantID, comment.TaskID, comment.AuthorID, comment.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to create comment: %w", mapPQError(err))
		}
		return created, nil
	})
}

func (r *postgresCommentRepository) ListByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE task_id = $1 ORDER BY created_at`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func lockComment(ctx context.Context, tx *sql.Tx, id string) (*domain.Comment, error) {
	comment, err := scanComment(tx.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock comment: %w", err)
	}
	return comment, nil
}

func lockTaskComments(ctx context.Context, tx *sql.Tx, taskID string) ([]*domain.Comment, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE task_id = $1 ORDER BY created_at FOR UPDATE`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock comments: %w", err)
	}
	defer rows.Close()

	var comments []*domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

func (r *postgresCommentRepository) Update(ctx context.Context, id string, mutate func(*domain.Comment) error) (*domain.Comment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return updateTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Comment, error) {
			return lockComment(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, current *domain.Comment) (*domain.Comment, error) {
			next := *current
			if err := mutate(&next); err != nil {
				return nil, err
			}
			query := `UPDATE comments SET content = $1, is_edited = $2, updated_at = NOW() WHERE id = $3 RETURNING ` + commentColumns
			updated, err := scanComment(tx.QueryRowContext(ctx, query, next.Content, next.IsEdited, id))
			if err != nil {
				return nil, fmt.Errorf("failed to update comment: %w", mapPQError(err))
			}
			return updated, nil
		})
}

func (r *postgresCommentRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return deleteTracked(ctx, r.db, r.hooks,
		func(ctx context.Context, tx *sql.Tx) (*domain.Comment, error) {
			return lockComment(ctx, tx, id)
		},
		func(ctx context.Context, tx *sql.Tx, _ *domain.Comment) ([]domain.AfterFunc, error) {
			result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
			if err != nil {
				return nil, fmt.Errorf("failed to delete comment: %w", mapDeleteError(err))
			}
			return nil, expectOneRow(result, domain.ErrNotFound)
		})
}
