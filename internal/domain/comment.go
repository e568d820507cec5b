package domain

import (
	"strings"
	"time"
)

const maxCommentLength = 10000

type Comment struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	TaskID    string    `json:"task_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CommentRequest struct {
	Content string `json:"content"`
}

func (c *Comment) TrackedKind() string   { return KindComment }
func (c *Comment) TrackedID() string     { return c.ID }
func (c *Comment) TrackedTenant() string { return c.TenantID }
func (c *Comment) DisplayLabel() string  { return Label(c.Content) }

func (c *Comment) Authors() (string, string) {
	return "", c.AuthorID
}

func (c *Comment) Snapshot() Snapshot {
	return Snapshot{
		{Name: "task_id", Value: c.TaskID},
		{Name: "author_id", Value: c.AuthorID},
		{Name: "content", Value: c.Content},
		{Name: "is_edited", Value: c.IsEdited},
	}
}

func ValidateCommentContent(content string) error {
	content = strings.TrimSpace(content)
	if content == "" || len(content) > maxCommentLength {
		return ErrInvalidInput
	}
	return nil
}
