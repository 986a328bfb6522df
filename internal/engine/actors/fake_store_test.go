package actors

import (
	"context"
	"sync"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for actor tests. It applies the same
// transition and aggregate rules as the real store, minus the remote
// round trips, and hands out subscription handles the tests can drive
// by delivering snapshots themselves.
type fakeStore struct {
	mu            sync.Mutex
	projects      map[uuid.UUID]*models.Project
	votes         map[string]models.VoteDirection
	comments      map[uuid.UUID]*models.Comment
	notifications []*models.Notification
	profiles      map[uuid.UUID]*models.UserProfile

	projectSub *store.ProjectSubscription
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[uuid.UUID]*models.Project),
		votes:    make(map[string]models.VoteDirection),
		comments: make(map[uuid.UUID]*models.Comment),
		profiles: make(map[uuid.UUID]*models.UserProfile),
	}
}

func voteKey(projectID, userID uuid.UUID) string {
	return projectID.String() + ":" + userID.String()
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

func (f *fakeStore) SaveProject(ctx context.Context, project *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *project
	f.projects[project.ID] = &clone
	return nil
}

func (f *fakeStore) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[id]
	if !ok {
		return nil, utils.NewNotFoundError("Project")
	}
	clone := *project
	return &clone, nil
}

func (f *fakeStore) ListProjects(ctx context.Context, status models.ProjectStatus) ([]*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotProjectsLocked(), nil
}

func (f *fakeStore) snapshotProjectsLocked() []*models.Project {
	out := make([]*models.Project, 0, len(f.projects))
	for _, project := range f.projects {
		clone := *project
		out = append(out, &clone)
	}
	return out
}

func (f *fakeStore) UpdateProjectFields(ctx context.Context, id uuid.UUID, update *models.ProjectUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[id]
	if !ok {
		return utils.NewNotFoundError("Project")
	}
	if update.Title != nil {
		project.Title = *update.Title
	}
	if update.Description != nil {
		project.Description = *update.Description
	}
	if update.Status != nil {
		project.Status = *update.Status
	}
	return nil
}

func (f *fakeStore) DeleteProject(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return utils.NewNotFoundError("Project")
	}
	delete(f.projects, id)
	return nil
}

func (f *fakeStore) WatchProjects(ctx context.Context) *store.ProjectSubscription {
	f.mu.Lock()
	sub := store.NewProjectSubscription(store.NewSubscription(nil))
	f.projectSub = sub
	snapshot := f.snapshotProjectsLocked()
	f.mu.Unlock()

	sub.Deliver(snapshot)
	sub.ResolveReady(nil)
	return sub
}

// deliverCatalog pushes an authoritative snapshot through the live
// catalog subscription, as a remote change would.
func (f *fakeStore) deliverCatalog(projects []*models.Project) {
	f.mu.Lock()
	sub := f.projectSub
	f.mu.Unlock()
	sub.Deliver(projects)
}

func (f *fakeStore) GetVote(ctx context.Context, userID, projectID uuid.UUID) (models.VoteDirection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	direction, ok := f.votes[voteKey(projectID, userID)]
	if !ok {
		return models.VoteNone, nil
	}
	return direction, nil
}

func (f *fakeStore) RecordVote(ctx context.Context, userID, projectID uuid.UUID, direction models.VoteDirection) (models.VoteDeltas, error) {
	if direction != models.VoteUp && direction != models.VoteDown {
		return models.VoteDeltas{}, utils.NewAppError(utils.ErrInvalidInput, "invalid vote direction", nil)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	project, ok := f.projects[projectID]
	if !ok {
		return models.VoteDeltas{}, utils.NewNotFoundError("Project")
	}

	key := voteKey(projectID, userID)
	previous, ok := f.votes[key]
	if !ok {
		previous = models.VoteNone
	}

	deltas := models.TransitionDeltas(previous, direction)
	if deltas.IsZero() {
		return deltas, nil
	}

	project.Upvotes += deltas.UpvoteDelta
	project.Downvotes += deltas.DownvoteDelta
	project.Score += deltas.ScoreDelta
	f.votes[key] = direction
	return deltas, nil
}

func (f *fakeStore) SaveComment(ctx context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *comment
	f.comments[comment.ID] = &clone
	return nil
}

func (f *fakeStore) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[id]
	if !ok {
		return nil, utils.NewNotFoundError("Comment")
	}
	clone := *comment
	return &clone, nil
}

func (f *fakeStore) ListTopLevelComments(ctx context.Context, projectID uuid.UUID) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, comment := range f.comments {
		if comment.ProjectID == projectID && comment.IsTopLevel() {
			clone := *comment
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) ListReplies(ctx context.Context, projectID, parentID uuid.UUID) ([]*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Comment
	for _, comment := range f.comments {
		if comment.ProjectID == projectID && comment.ReplyTo != nil && *comment.ReplyTo == parentID {
			clone := *comment
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertTopLevelComment(ctx context.Context, comment *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.projects[comment.ProjectID]
	if !ok {
		return utils.NewNotFoundError("Project")
	}
	clone := *comment
	f.comments[comment.ID] = &clone
	project.Comments++
	return nil
}

func (f *fakeStore) DeleteCommentAndDecrementCount(ctx context.Context, commentID uuid.UUID) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comment, ok := f.comments[commentID]
	if !ok {
		return nil, utils.NewNotFoundError("Comment")
	}
	delete(f.comments, commentID)
	if comment.IsTopLevel() {
		if project, ok := f.projects[comment.ProjectID]; ok {
			project.Comments = max(0, project.Comments-1)
		}
	}
	clone := *comment
	return &clone, nil
}

func (f *fakeStore) WatchTopLevelComments(ctx context.Context, projectID uuid.UUID) *store.CommentSubscription {
	sub := store.NewCommentSubscription(store.NewSubscription(nil))
	comments, _ := f.ListTopLevelComments(ctx, projectID)
	sub.Deliver(comments)
	sub.ResolveReady(nil)
	return sub
}

func (f *fakeStore) WatchReplies(ctx context.Context, projectID, parentID uuid.UUID) *store.CommentSubscription {
	sub := store.NewCommentSubscription(store.NewSubscription(nil))
	replies, _ := f.ListReplies(ctx, projectID, parentID)
	sub.Deliver(replies)
	sub.ResolveReady(nil)
	return sub
}

func (f *fakeStore) SaveNotification(ctx context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *n
	f.notifications = append(f.notifications, &clone)
	return nil
}

func (f *fakeStore) ListNotifications(ctx context.Context, recipientID uuid.UUID, limit int) ([]*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Notification
	for _, n := range f.notifications {
		if n.RecipientID == recipientID {
			clone := *n
			out = append(out, &clone)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotificationRead(ctx context.Context, recipientID, notificationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == notificationID && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return utils.NewNotFoundError("Notification")
}

func (f *fakeStore) MarkAllNotificationsRead(ctx context.Context, recipientID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	updated := 0
	for _, n := range f.notifications {
		if n.RecipientID == recipientID && !n.Read {
			n.Read = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeStore) WatchNotifications(ctx context.Context, recipientID uuid.UUID, limit int) *store.NotificationSubscription {
	sub := store.NewNotificationSubscription(store.NewSubscription(nil))
	notifications, _ := f.ListNotifications(ctx, recipientID, limit)
	sub.Deliver(notifications)
	sub.ResolveReady(nil)
	return sub
}

func (f *fakeStore) GetUserProfile(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[id]
	if !ok {
		return nil, utils.NewNotFoundError("User")
	}
	clone := *profile
	return &clone, nil
}

func (f *fakeStore) SaveUserProfile(ctx context.Context, profile *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *profile
	f.profiles[profile.ID] = &clone
	return nil
}

// notificationsFor returns the stored notifications addressed to one user.
func (f *fakeStore) notificationsFor(recipientID uuid.UUID) []*models.Notification {
	out, _ := f.ListNotifications(context.Background(), recipientID, 0)
	return out
}
