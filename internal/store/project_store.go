// internal/store/project_store.go
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

// ProjectDocument represents the MongoDB schema for a project. Optional
// link fields are stored as explicit nulls, never omitted, so consumers
// can tell "absent" apart from "not yet written".
type ProjectDocument struct {
	ID              string    `bson:"_id"`
	Title           string    `bson:"title"`
	Description     string    `bson:"description"`
	Category        string    `bson:"category"`
	Tags            []string  `bson:"tags"`
	Status          string    `bson:"status"`
	AuthorID        string    `bson:"authorid"`
	AuthorName      string    `bson:"authorname"`
	Upvotes         int       `bson:"upvotes"`
	Downvotes       int       `bson:"downvotes"`
	Score           int       `bson:"score"`
	Comments        int       `bson:"comments"`
	Views           int       `bson:"views"`
	ExperienceLevel string    `bson:"experiencelevel"`
	TimeCommitment  string    `bson:"timecommitment"`
	Duration        string    `bson:"duration"`
	ContactMethod   string    `bson:"contactmethod"`
	ContactInfo     string    `bson:"contactinfo"`
	GithubURL       *string   `bson:"githuburl"`
	ImageURL        *string   `bson:"imageurl"`
	CreatedAt       time.Time `bson:"createdat"`
	UpdatedAt       time.Time `bson:"updatedat"`
}

func projectToDocument(project *models.Project) *ProjectDocument {
	return &ProjectDocument{
		ID:              project.ID.String(),
		Title:           project.Title,
		Description:     project.Description,
		Category:        string(project.Category),
		Tags:            project.Tags,
		Status:          string(project.Status),
		AuthorID:        project.AuthorID.String(),
		AuthorName:      project.AuthorName,
		Upvotes:         project.Upvotes,
		Downvotes:       project.Downvotes,
		Score:           project.Score,
		Comments:        project.Comments,
		Views:           project.Views,
		ExperienceLevel: project.ExperienceLevel,
		TimeCommitment:  project.TimeCommitment,
		Duration:        project.Duration,
		ContactMethod:   project.ContactMethod,
		ContactInfo:     project.ContactInfo,
		GithubURL:       project.GithubURL,
		ImageURL:        project.ImageURL,
		CreatedAt:       project.CreatedAt,
		UpdatedAt:       project.UpdatedAt,
	}
}

func projectToModel(doc *ProjectDocument) (*models.Project, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid project ID: %v", err)
	}

	authorID, err := uuid.Parse(doc.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("invalid author ID: %v", err)
	}

	return &models.Project{
		ID:              id,
		Title:           doc.Title,
		Description:     doc.Description,
		Category:        models.ProjectCategory(doc.Category),
		Tags:            doc.Tags,
		Status:          models.ProjectStatus(doc.Status),
		AuthorID:        authorID,
		AuthorName:      doc.AuthorName,
		Upvotes:         doc.Upvotes,
		Downvotes:       doc.Downvotes,
		Score:           doc.Score,
		Comments:        doc.Comments,
		Views:           doc.Views,
		ExperienceLevel: doc.ExperienceLevel,
		TimeCommitment:  doc.TimeCommitment,
		Duration:        doc.Duration,
		ContactMethod:   doc.ContactMethod,
		ContactInfo:     doc.ContactInfo,
		GithubURL:       doc.GithubURL,
		ImageURL:        doc.ImageURL,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}

// SaveProject creates or fully replaces a project document.
func (m *MongoStore) SaveProject(ctx context.Context, project *models.Project) error {
	doc := projectToDocument(project)

	opts := options.Update().SetUpsert(true)
	filter := bson.M{"_id": project.ID.String()}
	update := bson.M{"$set": doc}

	_, err := m.Projects.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return utils.NewRemoteError("failed to save project", err)
	}
	return nil
}

// GetProject retrieves a project by its ID.
func (m *MongoStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var doc ProjectDocument

	err := m.Projects.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, utils.NewAppError(utils.ErrNotFound, "Project not found", err)
	}
	if err != nil {
		return nil, utils.NewRemoteError("failed to get project", err)
	}

	return projectToModel(&doc)
}

// ListProjects returns projects ordered by score descending (ties broken
// by recency). An empty status matches every project.
func (m *MongoStore) ListProjects(ctx context.Context, status models.ProjectStatus) ([]*models.Project, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = string(status)
	}

	opts := options.Find().SetSort(bson.D{
		{Key: "score", Value: -1},
		{Key: "createdat", Value: -1},
	})

	cursor, err := m.Projects.Find(ctx, filter, opts)
	if err != nil {
		return nil, utils.NewRemoteError("failed to query projects", err)
	}
	defer cursor.Close(ctx)

	projects := make([]*models.Project, 0)
	for cursor.Next(ctx) {
		var doc ProjectDocument
		if err := cursor.Decode(&doc); err != nil {
			m.logger.Warn("skipping undecodable project document", "err", err)
			continue
		}

		project, err := projectToModel(&doc)
		if err != nil {
			m.logger.Warn("skipping malformed project document", "err", err)
			continue
		}
		projects = append(projects, project)
	}

	if err := cursor.Err(); err != nil {
		return nil, utils.NewRemoteError("cursor iteration failed", err)
	}

	return projects, nil
}

// UpdateProjectFields applies a partial owner edit. Only the fields the
// caller actually provided are written; updatedat is always re-stamped.
func (m *MongoStore) UpdateProjectFields(ctx context.Context, id uuid.UUID, update *models.ProjectUpdate) error {
	set := bson.M{"updatedat": time.Now()}

	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Category != nil {
		set["category"] = string(*update.Category)
	}
	if update.Tags != nil {
		set["tags"] = update.Tags
	}
	if update.Status != nil {
		set["status"] = string(*update.Status)
	}
	if update.ExperienceLevel != nil {
		set["experiencelevel"] = *update.ExperienceLevel
	}
	if update.TimeCommitment != nil {
		set["timecommitment"] = *update.TimeCommitment
	}
	if update.Duration != nil {
		set["duration"] = *update.Duration
	}
	if update.ContactMethod != nil {
		set["contactmethod"] = *update.ContactMethod
	}
	if update.ContactInfo != nil {
		set["contactinfo"] = *update.ContactInfo
	}
	if update.GithubURL != nil {
		set["githuburl"] = *update.GithubURL
	}
	if update.ImageURL != nil {
		set["imageurl"] = *update.ImageURL
	}

	result, err := m.Projects.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return utils.NewRemoteError("failed to update project", err)
	}
	if result.MatchedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Project not found", nil)
	}
	return nil
}

// DeleteProject removes a project document.
func (m *MongoStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	result, err := m.Projects.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return utils.NewRemoteError("failed to delete project", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewAppError(utils.ErrNotFound, "Project not found", nil)
	}
	return nil
}

// WatchProjects subscribes to the catalog. Every remote change delivers
// the complete score-ordered set again; deltas are never exposed.
func (m *MongoStore) WatchProjects(ctx context.Context) *ProjectSubscription {
	watchCtx, cancel := context.WithCancel(ctx)
	sub := NewProjectSubscription(NewSubscription(cancel))

	requery := func(ctx context.Context) error {
		projects, err := m.ListProjects(ctx, "")
		if err != nil {
			return err
		}
		sub.Deliver(projects)
		return nil
	}

	go m.watch(watchCtx, m.Projects, sub.Subscription, requery)
	return sub
}
