// internal/store/vote_store.go
package store

import (
	"context"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VoteDocument is the ledger entry for one (project, user) pair. The
// composite _id guarantees at most one record per pair; changing a vote
// overwrites, never appends.
type VoteDocument struct {
	ID        string    `bson:"_id"`
	ProjectID string    `bson:"projectId"`
	UserID    string    `bson:"userId"`
	Value     int       `bson:"value"` // signed unit: +1 up, -1 down
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func voteKey(projectID, userID uuid.UUID) string {
	return projectID.String() + ":" + userID.String()
}

// GetVote is a point read of the ledger. An absent record reads as
// VoteNone.
func (m *MongoStore) GetVote(ctx context.Context, userID, projectID uuid.UUID) (models.VoteDirection, error) {
	var doc VoteDocument
	err := m.Votes.FindOne(ctx, bson.M{"_id": voteKey(projectID, userID)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return models.VoteNone, nil
	}
	if err != nil {
		return models.VoteNone, utils.NewRemoteError("failed to read vote ledger", err)
	}
	return models.DirectionFromValue(doc.Value), nil
}

// RecordVote commits a vote transition atomically: the ledger read, the
// branch decision, the relative counter increments on the project, and
// the ledger upsert all happen inside one session transaction, so
// concurrent voters serialize instead of losing updates. The returned
// deltas are what actually got applied; a same-direction re-vote commits
// nothing and returns zero deltas.
func (m *MongoStore) RecordVote(ctx context.Context, userID, projectID uuid.UUID, direction models.VoteDirection) (models.VoteDeltas, error) {
	if direction != models.VoteUp && direction != models.VoteDown {
		return models.VoteDeltas{}, utils.NewAppError(utils.ErrInvalidInput, "invalid vote direction", nil)
	}

	session, err := m.Client.StartSession()
	if err != nil {
		return models.VoteDeltas{}, utils.NewRemoteError("failed to start session", err)
	}
	defer session.EndSession(ctx)

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		previous := models.VoteNone
		var voteDoc VoteDocument
		findErr := m.Votes.FindOne(sc, bson.M{"_id": voteKey(projectID, userID)}).Decode(&voteDoc)
		if findErr != nil && findErr != mongo.ErrNoDocuments {
			return nil, utils.NewRemoteError("failed to read vote ledger", findErr)
		}
		if findErr == nil {
			previous = models.DirectionFromValue(voteDoc.Value)
		}

		deltas := models.TransitionDeltas(previous, direction)
		if deltas.IsZero() {
			// Same-direction re-vote: idempotent, nothing to write.
			return deltas, nil
		}

		now := time.Now()

		update := bson.M{
			"$inc": bson.M{
				"upvotes":   deltas.UpvoteDelta,
				"downvotes": deltas.DownvoteDelta,
				"score":     deltas.ScoreDelta,
			},
			"$set": bson.M{"updatedat": now},
		}
		res, updateErr := m.Projects.UpdateOne(sc, bson.M{"_id": projectID.String()}, update)
		if updateErr != nil {
			return nil, utils.NewRemoteError("failed to update project aggregates", updateErr)
		}
		if res.MatchedCount == 0 {
			return nil, utils.NewAppError(utils.ErrNotFound, "Project not found", nil)
		}

		opts := options.Update().SetUpsert(true)
		ledgerUpdate := bson.M{
			"$set": bson.M{
				"value":     direction.Value(),
				"updatedAt": now,
			},
			"$setOnInsert": bson.M{
				"projectId": projectID.String(),
				"userId":    userID.String(),
				"createdAt": now,
			},
		}
		if _, upsertErr := m.Votes.UpdateOne(sc, bson.M{"_id": voteKey(projectID, userID)}, ledgerUpdate, opts); upsertErr != nil {
			return nil, utils.NewRemoteError("failed to upsert vote record", upsertErr)
		}

		return deltas, nil
	})
	if err != nil {
		if appErr, ok := err.(*utils.AppError); ok {
			return models.VoteDeltas{}, appErr
		}
		return models.VoteDeltas{}, utils.NewRemoteError("vote transaction failed", err)
	}

	return result.(models.VoteDeltas), nil
}
