// internal/store/notification_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// markAllReadBatchSize bounds how many unread notifications one
// MarkAllNotificationsRead call touches.
const markAllReadBatchSize = 100

// NotificationDocument represents notification data in MongoDB.
type NotificationDocument struct {
	ID          string     `bson:"_id"`
	RecipientID string     `bson:"recipientId"`
	CreatedBy   string     `bson:"createdBy"`
	Type        string     `bson:"type"`
	Message     string     `bson:"message"`
	ProjectID   *string    `bson:"projectId,omitempty"`
	ActorID     *string    `bson:"actorId,omitempty"`
	ActorName   string     `bson:"actorName,omitempty"`
	Read        bool       `bson:"read"`
	ReadAt      *time.Time `bson:"readAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
}

func notificationToDocument(n *models.Notification) *NotificationDocument {
	doc := &NotificationDocument{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		CreatedBy:   n.CreatedBy.String(),
		Type:        string(n.Type),
		Message:     n.Message,
		Read:        n.Read,
		ReadAt:      n.ReadAt,
		CreatedAt:   n.CreatedAt,
	}
	if n.ProjectID != nil {
		pid := n.ProjectID.String()
		doc.ProjectID = &pid
	}
	if n.Actor != nil {
		aid := n.Actor.UserID.String()
		doc.ActorID = &aid
		doc.ActorName = n.Actor.Name
	}
	return doc
}

func notificationToModel(doc *NotificationDocument) (*models.Notification, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid notification ID: %v", err)
	}
	recipientID, err := uuid.Parse(doc.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient ID: %v", err)
	}
	createdBy, err := uuid.Parse(doc.CreatedBy)
	if err != nil {
		return nil, fmt.Errorf("invalid creator ID: %v", err)
	}

	n := &models.Notification{
		ID:          id,
		RecipientID: recipientID,
		CreatedBy:   createdBy,
		Type:        models.NotificationType(doc.Type),
		Message:     doc.Message,
		Read:        doc.Read,
		ReadAt:      doc.ReadAt,
		CreatedAt:   doc.CreatedAt,
	}
	if doc.ProjectID != nil {
		pid, err := uuid.Parse(*doc.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("invalid project ID: %v", err)
		}
		n.ProjectID = &pid
	}
	if doc.ActorID != nil {
		aid, err := uuid.Parse(*doc.ActorID)
		if err != nil {
			return nil, fmt.Errorf("invalid actor ID: %v", err)
		}
		n.Actor = &models.Actor{UserID: aid, Name: doc.ActorName}
	}
	return n, nil
}

// SaveNotification inserts a notification for its recipient.
func (m *MongoStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	if _, err := m.Notifications.InsertOne(ctx, notificationToDocument(n)); err != nil {
		return utils.NewRemoteError("failed to save notification", err)
	}
	return nil
}

// ListNotifications returns a recipient's newest notifications, capped
// at limit.
func (m *MongoStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.Notifications.Find(ctx, bson.M{"recipientId": recipientID.String()}, opts)
	if err != nil {
		return nil, utils.NewRemoteError("failed to query notifications", err)
	}
	defer cursor.Close(ctx)

	notifications := make([]*models.Notification, 0)
	for cursor.Next(ctx) {
		var doc NotificationDocument
		if err := cursor.Decode(&doc); err != nil {
			m.logger.Warn("skipping undecodable notification document", "err", err)
			continue
		}
		n, err := notificationToModel(&doc)
		if err != nil {
			m.logger.Warn("skipping malformed notification document", "err", err)
			continue
		}
		notifications = append(notifications, n)
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewRemoteError("cursor iteration failed", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks a single notification as read. The filter
// includes the recipient so one user cannot ack another's notification.
func (m *MongoStore) MarkNotificationRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	filter := bson.M{
		"_id":         notificationID.String(),
		"recipientId": recipientID.String(),
	}
	update := bson.M{"$set": bson.M{"read": true, "readAt": time.Now()}}

	result, err := m.Notifications.UpdateOne(ctx, filter, update)
	if err != nil {
		return utils.NewRemoteError("failed to mark notification read", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Notification not found", nil)
	}
	return nil
}

// MarkAllNotificationsRead marks the recipient's newest unread
// notifications as read, up to the batch size. Returns how many were
// updated.
func (m *MongoStore) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(markAllReadBatchSize).
		SetProjection(bson.M{"_id": 1})

	cursor, err := m.Notifications.Find(ctx, bson.M{
		"recipientId": recipientID.String(),
		"read":        false,
	}, opts)
	if err != nil {
		return 0, utils.NewRemoteError("failed to query unread notifications", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			continue
		}
		ids = append(ids, doc.ID)
	}
	if err := cursor.Err(); err != nil {
		return 0, utils.NewRemoteError("cursor iteration failed", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	update := bson.M{"$set": bson.M{"read": true, "readAt": time.Now()}}
	result, err := m.Notifications.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, update)
	if err != nil {
		return 0, utils.NewRemoteError("failed to mark notifications read", err)
	}
	return int(result.ModifiedCount), nil
}

// WatchNotifications subscribes to one recipient's notification feed.
func (m *MongoStore) WatchNotifications(ctx context.Context, recipientID uuid.UUID, limit int) *NotificationSubscription {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := NewNotificationSubscription(NewSubscription(cancel))

	requery := func(ctx context.Context) error {
		notifications, err := m.ListNotifications(ctx, recipientID, limit)
		if err != nil {
			return err
		}
		sub.Deliver(notifications)
		return nil
	}

	go m.watch(watchCtx, m.Notifications, sub.Subscription, requery)
	return sub
}
