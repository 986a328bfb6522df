// internal/store/comment_store.go
package store

import (
	"context"
	"fmt"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CommentDocument represents comment data in MongoDB. ReplyTo is either
// absent or a project-local comment id, never an empty string.
type CommentDocument struct {
	ID         string     `bson:"_id"`
	ProjectID  string     `bson:"projectId"`
	AuthorID   string     `bson:"authorId"`
	AuthorName string     `bson:"authorName"`
	Text       string     `bson:"text"`
	ReplyTo    *string    `bson:"replyTo,omitempty"`
	Pinned     bool       `bson:"pinned"`
	Status     string     `bson:"status"`
	CreatedAt  time.Time  `bson:"createdAt"`
	EditedAt   *time.Time `bson:"editedAt,omitempty"`
}

func commentToDocument(comment *models.Comment) *CommentDocument {
	doc := &CommentDocument{
		ID:         comment.ID.String(),
		ProjectID:  comment.ProjectID.String(),
		AuthorID:   comment.AuthorID.String(),
		AuthorName: comment.AuthorName,
		Text:       comment.Text,
		Pinned:     comment.Pinned,
		Status:     string(comment.Status),
		CreatedAt:  comment.CreatedAt,
		EditedAt:   comment.EditedAt,
	}
	if comment.ReplyTo != nil {
		parent := comment.ReplyTo.String()
		doc.ReplyTo = &parent
	}
	return doc
}

func commentToModel(doc *CommentDocument) (*models.Comment, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid comment ID: %v", err)
	}

	projectID, err := uuid.Parse(doc.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID: %v", err)
	}

	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}

	var replyTo *uuid.UUID
	if doc.ReplyTo != nil {
		parsed, err := uuid.Parse(*doc.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("invalid parent ID: %v", err)
		}
		replyTo = &parsed
	}

	return &models.Comment{
		ID:         id,
		ProjectID:  projectID,
		AuthorID:   authorID,
		AuthorName: doc.AuthorName,
		Text:       doc.Text,
		ReplyTo:    replyTo,
		Pinned:     doc.Pinned,
		Status:     models.CommentStatus(doc.Status),
		CreatedAt:  doc.CreatedAt,
		EditedAt:   doc.EditedAt,
	}, nil
}

// SaveComment creates or updates a comment document without touching the
// parent project's aggregate. Used for replies and edits.
func (m *MongoStore) SaveComment(ctx context.Context, comment *models.Comment) error {
	doc := commentToDocument(comment)

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	if _, err := m.Comments.UpdateOne(ctx, filter, update, opts); err != nil {
		return utils.NewRemoteError("failed to save comment", err)
	}
	return nil
}

// GetComment retrieves a comment by ID.
func (m *MongoStore) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var doc CommentDocument

	err := m.Comments.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", err)
	}
	if err != nil {
		return nil, utils.NewRemoteError("failed to get comment", err)
	}

	return commentToModel(&doc)
}

func (m *MongoStore) listComments(ctx context.Context, filter bson.M, sort bson.D) ([]*models.Comment, error) {
	cursor, err := m.Comments.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, utils.NewRemoteError("failed to query comments", err)
	}
	defer cursor.Close(ctx)

	comments := make([]*models.Comment, 0)
	for cursor.Next(ctx) {
		var doc CommentDocument
		if err := cursor.Decode(&doc); err != nil {
			m.logger.Warn("skipping undecodable comment document", "err", err)
			continue
		}

		comment, err := commentToModel(&doc)
		if err != nil {
			m.logger.Warn("skipping malformed comment document", "err", err)
			continue
		}
		comments = append(comments, comment)
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewRemoteError("cursor iteration failed", err)
	}
	return comments, nil
}

// ListTopLevelComments returns a project's top-level thread, newest
// first.
func (m *MongoStore) ListTopLevelComments(ctx context.Context, projectID uuid.UUID) ([]*models.Comment, error) {
	filter := bson.M{
		"projectId": projectID.String(),
		"replyTo":   bson.M{"$exists": false},
	}
	return m.listComments(ctx, filter, bson.D{{Key: "createdAt", Value: -1}})
}

// ListReplies returns the replies under one parent comment, oldest
// first.
func (m *MongoStore) ListReplies(ctx context.Context, projectID, parentID uuid.UUID) ([]*models.Comment, error) {
	filter := bson.M{
		"projectId": projectID.String(),
		"replyTo":   parentID.String(),
	}
	return m.listComments(ctx, filter, bson.D{{Key: "createdAt", Value: 1}})
}

// InsertTopLevelComment inserts a top-level comment and increments the
// parent project's comment aggregate in the same transaction, using a
// relative increment so concurrent commenters never under-count.
func (m *MongoStore) InsertTopLevelComment(ctx context.Context, comment *models.Comment) error {
	session, err := m.Client.StartSession()
	if err != nil {
		return utils.NewRemoteError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		doc := commentToDocument(comment)
		if _, insertErr := m.Comments.InsertOne(sc, doc); insertErr != nil {
			return nil, utils.NewRemoteError("failed to insert comment", insertErr)
		}

		update := bson.M{
			"$inc": bson.M{"comments": 1},
			"$set": bson.M{"updatedat": time.Now()},
		}
		res, updateErr := m.Projects.UpdateOne(sc, bson.M{"_id": comment.ProjectID.String()}, update)
		if updateErr != nil {
			return nil, utils.NewRemoteError("failed to increment comment count", updateErr)
		}
		if res.MatchedCount == 0 {
			return nil, utils.NewAppError(utils.ErrNotFound, "Project not found", nil)
		}
		return nil, nil
	})
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			return appErr
		}
		return utils.NewRemoteError("comment transaction failed", err)
	}
	return nil
}

// DeleteCommentAndDecrementCount removes a comment. The read happens
// before the delete so the top-level decision is made on the document
// that actually existed; only a top-level delete decrements the
// aggregate, and the decrement is floor-clamped at zero. Returns the
// deleted comment.
func (m *MongoStore) DeleteCommentAndDecrementCount(ctx context.Context, commentID uuid.UUID) (*models.Comment, error) {
	session, err := m.Client.StartSession()
	if err != nil {
		return nil, utils.NewRemoteError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var doc CommentDocument
		findErr := m.Comments.FindOne(sc, bson.M{"_id": commentID.String()}).Decode(&doc)
		if findErr == mongo.ErrNoDocuments {
			return nil, utils.NewAppError(utils.ErrNotFound, "Comment not found", findErr)
		}
		if findErr != nil {
			return nil, utils.NewRemoteError("failed to read comment before delete", findErr)
		}

		comment, convErr := commentToModel(&doc)
		if convErr != nil {
			return nil, utils.NewRemoteError("malformed comment document", convErr)
		}

		if _, delErr := m.Comments.DeleteOne(sc, bson.M{"_id": commentID.String()}); delErr != nil {
			return nil, utils.NewRemoteError("failed to delete comment", delErr)
		}

		if comment.IsTopLevel() {
			// Pipeline update so the decrement clamps at zero instead of
			// letting racing deletes drive the aggregate negative.
			update := mongo.Pipeline{
				bson.D{{Key: "$set", Value: bson.D{
					{Key: "comments", Value: bson.D{{Key: "$max", Value: bson.A{
						0,
						bson.D{{Key: "$add", Value: bson.A{"$comments", -1}}},
					}}}},
					{Key: "updatedat", Value: time.Now()},
				}}},
			}
			if _, updErr := m.Projects.UpdateOne(sc, bson.M{"_id": comment.ProjectID.String()}, update); updErr != nil {
				return nil, utils.NewRemoteError("failed to decrement comment count", updErr)
			}
		}

		return comment, nil
	})
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			return nil, appErr
		}
		return nil, utils.NewRemoteError("delete transaction failed", err)
	}

	return result.(*models.Comment), nil
}

// WatchTopLevelComments subscribes to a project's top-level thread.
func (m *MongoStore) WatchTopLevelComments(ctx context.Context, projectID uuid.UUID) *CommentSubscription {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := NewCommentSubscription(NewSubscription(cancel))

	requery := func(ctx context.Context) error {
		comments, err := m.ListTopLevelComments(ctx, projectID)
		if err != nil {
			return err
		}
		sub.Deliver(comments)
		return nil
	}

	go m.watch(watchCtx, m.Comments, sub.Subscription, requery)
	return sub
}

// WatchReplies subscribes to the replies under one parent comment. It is
// independent of any top-level subscription; the two interleave
// arbitrarily.
func (m *MongoStore) WatchReplies(ctx context.Context, projectID, parentID uuid.UUID) *CommentSubscription {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := NewCommentSubscription(NewSubscription(cancel))

	requery := func(ctx context.Context) error {
		comments, err := m.ListReplies(ctx, projectID, parentID)
		if err != nil {
			return err
		}
		sub.Deliver(comments)
		return nil
	}

	go m.watch(watchCtx, m.Comments, sub.Subscription, requery)
	return sub
}
