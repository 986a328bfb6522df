package models

import (
	"time"

	"github.com/google/uuid"
)

// CommentStatus marks a thread as still open or resolved.
type CommentStatus string

const (
	CommentOpen     CommentStatus = "open"
	CommentResolved CommentStatus = "resolved"
)

// Comment is a threaded comment on a project. ReplyTo is nil for
// top-level comments; only those count toward the project's comment
// aggregate.
type Comment struct {
	ID         uuid.UUID     `json:"id"`
	ProjectID  uuid.UUID     `json:"projectId"`
	AuthorID   uuid.UUID     `json:"authorId"`
	AuthorName string        `json:"authorName"`
	Text       string        `json:"text"`
	ReplyTo    *uuid.UUID    `json:"replyTo,omitempty"`
	Pinned     bool          `json:"pinned"`
	Status     CommentStatus `json:"status"`
	CreatedAt  time.Time     `json:"createdAt"`
	EditedAt   *time.Time    `json:"editedAt,omitempty"`
}

// IsTopLevel reports whether the comment counts toward the project's
// comment aggregate.
func (c *Comment) IsTopLevel() bool {
	return c.ReplyTo == nil
}
