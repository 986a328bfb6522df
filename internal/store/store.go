package store

import (
	"context"

	"civic-board/internal/models"

	"github.com/google/uuid"
)

// Store defines the remote document-store operations the board core
// depends on. MongoStore is the production implementation; tests supply
// an in-memory fake.
type Store interface {
	// Connection
	Close(ctx context.Context) error

	// Project methods
	SaveProject(ctx context.Context, project *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	ListProjects(ctx context.Context, status models.ProjectStatus) ([]*models.Project, error)
	UpdateProjectFields(ctx context.Context, id uuid.UUID, update *models.ProjectUpdate) error
	DeleteProject(ctx context.Context, id uuid.UUID) error
	WatchProjects(ctx context.Context) *ProjectSubscription

	// Vote ledger methods. GetVote treats an absent record as VoteNone.
	// RecordVote applies the whole vote transition (ledger read, branch,
	// aggregate increments, ledger upsert) and reports the deltas it
	// committed so callers can patch local caches.
	GetVote(ctx context.Context, userID, projectID uuid.UUID) (models.VoteDirection, error)
	RecordVote(ctx context.Context, userID, projectID uuid.UUID, direction models.VoteDirection) (models.VoteDeltas, error)

	// Comment methods
	SaveComment(ctx context.Context, comment *models.Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	ListTopLevelComments(ctx context.Context, projectID uuid.UUID) ([]*models.Comment, error)
	ListReplies(ctx context.Context, projectID, parentID uuid.UUID) ([]*models.Comment, error)
	InsertTopLevelComment(ctx context.Context, comment *models.Comment) error
	DeleteCommentAndDecrementCount(ctx context.Context, commentID uuid.UUID) (*models.Comment, error)
	WatchTopLevelComments(ctx context.Context, projectID uuid.UUID) *CommentSubscription
	WatchReplies(ctx context.Context, projectID, parentID uuid.UUID) *CommentSubscription

	// Notification methods
	SaveNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, recipientID, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int, error)
	WatchNotifications(ctx context.Context, recipientID uuid.UUID, limit int) *NotificationSubscription

	// User profile methods
	GetUserProfile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
	SaveUserProfile(ctx context.Context, profile *models.UserProfile) error
}
