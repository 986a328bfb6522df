// internal/store/mongo.go
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store against MongoDB. Change streams back the
// live subscriptions, $inc backs the aggregate counters, and sessions
// back the multi-document vote transaction.
type MongoStore struct {
	Client        *mongo.Client
	Projects      *mongo.Collection
	Votes         *mongo.Collection
	Comments      *mongo.Collection
	Notifications *mongo.Collection
	Profiles      *mongo.Collection

	logger *slog.Logger
}

func NewMongoStore(uri, dbName string, logger *slog.Logger) (*MongoStore, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	logger.Info("connected to MongoDB", "db", dbName)

	db := client.Database(dbName)
	return &MongoStore{
		Client:        client,
		Projects:      db.Collection("projects"),
		Votes:         db.Collection("votes"),
		Comments:      db.Collection("comments"),
		Notifications: db.Collection("notifications"),
		Profiles:      db.Collection("profiles"),
		logger:        logger,
	}, nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the query paths rely on.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	projectIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "score", Value: -1}, {Key: "createdat", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "authorid", Value: 1}}},
	}
	if _, err := m.Projects.Indexes().CreateMany(ctx, projectIndexes); err != nil {
		return fmt.Errorf("failed to create project indexes: %v", err)
	}

	commentIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "replyTo", Value: 1}}},
	}
	if _, err := m.Comments.Indexes().CreateMany(ctx, commentIndexes); err != nil {
		return fmt.Errorf("failed to create comment indexes: %v", err)
	}

	notificationIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "read", Value: 1}}},
	}
	if _, err := m.Notifications.Indexes().CreateMany(ctx, notificationIndexes); err != nil {
		return fmt.Errorf("failed to create notification indexes: %v", err)
	}

	return nil
}

// watch opens a change stream on a collection and re-queries a full
// snapshot on every remote change. The initial query settles readiness;
// a failed stream setup rejects it so callers never hang on first load.
func (m *MongoStore) watch(ctx context.Context, coll *mongo.Collection, sub *Subscription, requery func(context.Context) error) {
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		sub.ResolveReady(fmt.Errorf("failed to open change stream on %s: %w", coll.Name(), err))
		return
	}
	defer stream.Close(context.Background())

	if err := requery(ctx); err != nil {
		sub.ResolveReady(err)
		return
	}
	sub.ResolveReady(nil)

	for stream.Next(ctx) {
		if err := requery(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("snapshot re-query failed", "collection", coll.Name(), "err", err)
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		m.logger.Warn("change stream closed", "collection", coll.Name(), "err", err)
	}
}
