package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the events a user can be notified about.
type NotificationType string

const (
	NotifyUpvote  NotificationType = "upvote"
	NotifyComment NotificationType = "comment"
	NotifyReply   NotificationType = "reply"
	NotifyMention NotificationType = "mention"
	NotifySystem  NotificationType = "system"
)

// Actor identifies the user whose action produced a notification.
type Actor struct {
	UserID uuid.UUID `json:"uid"`
	Name   string    `json:"name,omitempty"`
}

// Notification is stored per recipient and delivered newest-first.
type Notification struct {
	ID          uuid.UUID        `json:"id"`
	RecipientID uuid.UUID        `json:"recipientId"`
	CreatedBy   uuid.UUID        `json:"createdBy"`
	Type        NotificationType `json:"type"`
	Message     string           `json:"message"`
	ProjectID   *uuid.UUID       `json:"projectId,omitempty"`
	Actor       *Actor           `json:"actor,omitempty"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
