// internal/store/profile_store.go
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

// ProfileDocument mirrors the public profile the identity provider
// maintains for each user.
type ProfileDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	AvatarURL string    `bson:"avatarUrl,omitempty"`
	Bio       string    `bson:"bio,omitempty"`
	JoinedAt  time.Time `bson:"joinedAt"`
}

func (m *MongoStore) GetUserProfile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	var doc ProfileDocument

	err := m.Profiles.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Profile not found", err)
	}
	if err != nil {
		return nil, utils.NewRemoteError("failed to get profile", err)
	}

	userID, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid profile ID: %v", err)
	}

	return &models.UserProfile{
		ID:        userID,
		Username:  doc.Username,
		AvatarURL: doc.AvatarURL,
		Bio:       doc.Bio,
		JoinedAt:  doc.JoinedAt,
	}, nil
}

func (m *MongoStore) SaveUserProfile(ctx context.Context, profile *models.UserProfile) error {
	doc := &ProfileDocument{
		ID:        profile.ID.String(),
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
		Bio:       profile.Bio,
		JoinedAt:  profile.JoinedAt,
	}

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": doc.ID}
	update := bson.M{"$set": doc}

	if _, err := m.Profiles.UpdateOne(ctx, filter, update, opts); err != nil {
		return utils.NewRemoteError("failed to save profile", err)
	}
	return nil
}
