package actors

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for catalog and vote operations. A zero UserID means the
// caller carried no identity.
type (
	CreateProjectMsg struct {
		UserID  uuid.UUID
		Project *models.Project
	}

	UpdateProjectMsg struct {
		UserID    uuid.UUID
		ProjectID uuid.UUID
		Update    *models.ProjectUpdate
	}

	DeleteProjectMsg struct {
		UserID    uuid.UUID
		ProjectID uuid.UUID
	}

	GetProjectMsg struct {
		ProjectID uuid.UUID
	}

	GetCatalogMsg struct{}

	VoteMsg struct {
		UserID    uuid.UUID
		ProjectID uuid.UUID
		Direction models.VoteDirection
	}

	GetVoteMsg struct {
		UserID    uuid.UUID
		ProjectID uuid.UUID
	}

	WaitCatalogReadyMsg struct{}

	GetCountsMsg struct{}

	// VoteResult reports the outcome of a VoteMsg. Applied is false for
	// the idempotent same-direction re-vote and for votes against
	// projects that vanished from the catalog.
	VoteResult struct {
		Applied bool
		Project *models.Project
	}

	// Internal: pushed into the mailbox by the subscription pump.
	catalogReadyMsg struct {
		err error
	}
	catalogSnapshotMsg struct {
		projects []*models.Project
	}
)

// BoardActor owns the project catalog cache and the vote flow. All
// mutations of the cache go through its mailbox, so optimistic patches
// and subscription deliveries never race: a delivered snapshot simply
// replaces the whole cache, superseding any optimistic patch for the
// same document.
type BoardActor struct {
	projects   map[uuid.UUID]*models.Project
	store      store.Store
	catalogSub *store.ProjectSubscription
	metrics    *utils.MetricsCollector
	logger     *slog.Logger

	ready        bool
	readyErr     error
	readyWaiters []*actor.PID
}

func NewBoardActor(st store.Store, metrics *utils.MetricsCollector, logger *slog.Logger) actor.Actor {
	return &BoardActor{
		projects: make(map[uuid.UUID]*models.Project),
		store:    st,
		metrics:  metrics,
		logger:   logger,
	}
}

func (a *BoardActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.startCatalogSubscription(context)

	case *actor.Stopping:
		if a.catalogSub != nil {
			a.catalogSub.Cancel()
		}

	case *catalogReadyMsg:
		a.handleCatalogReady(context, msg)

	case *catalogSnapshotMsg:
		a.handleCatalogSnapshot(msg)

	case *WaitCatalogReadyMsg:
		if a.ready {
			context.Respond(a.readyResponse())
			return
		}
		a.readyWaiters = append(a.readyWaiters, context.Sender())

	case *CreateProjectMsg:
		a.handleCreateProject(context, msg)

	case *UpdateProjectMsg:
		a.handleUpdateProject(context, msg)

	case *DeleteProjectMsg:
		a.handleDeleteProject(context, msg)

	case *GetProjectMsg:
		a.handleGetProject(context, msg)

	case *GetCatalogMsg:
		context.Respond(a.orderedCatalog())

	case *VoteMsg:
		a.handleVote(context, msg)

	case *GetVoteMsg:
		a.handleGetVote(context, msg)

	case *GetCountsMsg:
		context.Respond(len(a.projects))
	}
}

// startCatalogSubscription opens the live catalog watch and pumps its
// deliveries into this actor's mailbox.
func (a *BoardActor) startCatalogSubscription(context actor.Context) {
	sub := a.store.WatchProjects(stdctx.Background())
	a.catalogSub = sub

	self := context.Self()
	root := context.ActorSystem().Root
	go func() {
		if err := <-sub.Ready(); err != nil {
			root.Send(self, &catalogReadyMsg{err: err})
			return
		}
		root.Send(self, &catalogReadyMsg{})
		for {
			select {
			case snapshot := <-sub.Snapshots():
				root.Send(self, &catalogSnapshotMsg{projects: snapshot})
			case <-sub.Done():
				return
			}
		}
	}()
}

func (a *BoardActor) handleCatalogReady(context actor.Context, msg *catalogReadyMsg) {
	a.ready = true
	a.readyErr = msg.err
	if msg.err != nil {
		a.logger.Error("catalog subscription failed to start", "err", msg.err)
	}
	for _, waiter := range a.readyWaiters {
		context.Send(waiter, a.readyResponse())
	}
	a.readyWaiters = nil
}

func (a *BoardActor) readyResponse() interface{} {
	if a.readyErr != nil {
		return utils.NewRemoteError("catalog unavailable", a.readyErr)
	}
	return &models.StatusResponse{Success: true}
}

// handleCatalogSnapshot replaces the cache wholesale. The delivered
// snapshot is authoritative; any optimistic patch it disagrees with is
// discarded.
func (a *BoardActor) handleCatalogSnapshot(msg *catalogSnapshotMsg) {
	fresh := make(map[uuid.UUID]*models.Project, len(msg.projects))
	for _, project := range msg.projects {
		fresh[project.ID] = project
	}
	a.projects = fresh
}

func (a *BoardActor) orderedCatalog() []*models.Project {
	catalog := make([]*models.Project, 0, len(a.projects))
	for _, project := range a.projects {
		catalog = append(catalog, project)
	}
	sort.Slice(catalog, func(i, j int) bool {
		if catalog[i].Score != catalog[j].Score {
			return catalog[i].Score > catalog[j].Score
		}
		return catalog[i].CreatedAt.After(catalog[j].CreatedAt)
	})
	return catalog
}

func (a *BoardActor) handleCreateProject(context actor.Context, msg *CreateProjectMsg) {
	startTime := time.Now()

	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	now := time.Now()
	project := *msg.Project
	project.ID = uuid.New()
	project.AuthorID = msg.UserID
	project.Upvotes = 0
	project.Downvotes = 0
	project.Score = 0
	project.Comments = 0
	project.Views = 0
	project.CreatedAt = now
	project.UpdatedAt = now
	if project.Status == "" {
		project.Status = models.StatusPublished
	}
	if project.Tags == nil {
		project.Tags = []string{}
	}
	// Normalize optional links: an empty string means "absent", which is
	// persisted as an explicit null rather than a missing field.
	if project.GithubURL != nil && *project.GithubURL == "" {
		project.GithubURL = nil
	}
	if project.ImageURL != nil && *project.ImageURL == "" {
		project.ImageURL = nil
	}

	if err := a.store.SaveProject(stdctx.Background(), &project); err != nil {
		a.logger.Error("failed to save project", "project", project.ID, "err", err)
		context.Respond(err)
		return
	}

	a.projects[project.ID] = &project

	a.metrics.AddOperationLatency("create_project", time.Since(startTime))
	context.Respond(&project)
}

func (a *BoardActor) handleUpdateProject(context actor.Context, msg *UpdateProjectMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	project, exists := a.projects[msg.ProjectID]
	if !exists {
		context.Respond(utils.NewNotFoundError("Project"))
		return
	}
	if project.AuthorID != msg.UserID {
		context.Respond(utils.NewForbiddenError("only the project owner can edit it"))
		return
	}

	if err := a.store.UpdateProjectFields(stdctx.Background(), msg.ProjectID, msg.Update); err != nil {
		context.Respond(err)
		return
	}

	patched := *project
	applyProjectUpdate(&patched, msg.Update)
	patched.UpdatedAt = time.Now()
	a.projects[msg.ProjectID] = &patched

	context.Respond(&patched)
}

func (a *BoardActor) handleDeleteProject(context actor.Context, msg *DeleteProjectMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	project, exists := a.projects[msg.ProjectID]
	if !exists {
		context.Respond(utils.NewNotFoundError("Project"))
		return
	}
	if project.AuthorID != msg.UserID {
		context.Respond(utils.NewForbiddenError("only the project owner can delete it"))
		return
	}

	if err := a.store.DeleteProject(stdctx.Background(), msg.ProjectID); err != nil {
		context.Respond(err)
		return
	}

	delete(a.projects, msg.ProjectID)
	context.Respond(&models.StatusResponse{Success: true, Message: "Project deleted"})
}

func (a *BoardActor) handleGetProject(context actor.Context, msg *GetProjectMsg) {
	if project, exists := a.projects[msg.ProjectID]; exists {
		context.Respond(project)
		return
	}

	project, err := a.store.GetProject(stdctx.Background(), msg.ProjectID)
	if err != nil {
		context.Respond(err)
		return
	}
	a.projects[project.ID] = project
	context.Respond(project)
}

// handleVote runs the vote transition: identity check, local catalog
// lookup, the transactional ledger-and-aggregate write, then the
// optimistic cache patch. The patch uses the deltas the store actually
// committed, and the score is re-derived from the patched counters
// rather than trusting the cached score.
func (a *BoardActor) handleVote(context actor.Context, msg *VoteMsg) {
	startTime := time.Now()

	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	project, exists := a.projects[msg.ProjectID]
	if !exists {
		// Voting a project that is gone is a quiet no-op, not an error.
		context.Respond(&VoteResult{Applied: false})
		return
	}

	deltas, err := a.store.RecordVote(stdctx.Background(), msg.UserID, msg.ProjectID, msg.Direction)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			delete(a.projects, msg.ProjectID)
			context.Respond(&VoteResult{Applied: false})
			return
		}
		a.logger.Error("vote failed", "project", msg.ProjectID, "user", msg.UserID, "err", err)
		context.Respond(err)
		return
	}

	if deltas.IsZero() {
		context.Respond(&VoteResult{Applied: false, Project: project})
		return
	}

	patched := *project
	patched.Upvotes += deltas.UpvoteDelta
	patched.Downvotes += deltas.DownvoteDelta
	patched.Score = patched.Upvotes - patched.Downvotes
	patched.UpdatedAt = time.Now()
	a.projects[msg.ProjectID] = &patched

	if msg.Direction == models.VoteUp && patched.AuthorID != msg.UserID {
		a.notifyUpvote(&patched, msg.UserID)
	}

	a.metrics.AddOperationLatency("vote_project", time.Since(startTime))
	context.Respond(&VoteResult{Applied: true, Project: &patched})
}

func (a *BoardActor) notifyUpvote(project *models.Project, voterID uuid.UUID) {
	projectID := project.ID
	notification := &models.Notification{
		ID:          uuid.New(),
		RecipientID: project.AuthorID,
		CreatedBy:   voterID,
		Type:        models.NotifyUpvote,
		Message:     fmt.Sprintf("Your project %q received an upvote", project.Title),
		ProjectID:   &projectID,
		Actor:       &models.Actor{UserID: voterID},
		CreatedAt:   time.Now(),
	}
	if err := a.store.SaveNotification(stdctx.Background(), notification); err != nil {
		// The vote already committed; a lost notification is not worth
		// failing the call over.
		a.logger.Warn("failed to save upvote notification", "recipient", project.AuthorID, "err", err)
	}
}

func (a *BoardActor) handleGetVote(context actor.Context, msg *GetVoteMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(models.VoteNone)
		return
	}
	direction, err := a.store.GetVote(stdctx.Background(), msg.UserID, msg.ProjectID)
	if err != nil {
		context.Respond(err)
		return
	}
	context.Respond(direction)
}

func applyProjectUpdate(project *models.Project, update *models.ProjectUpdate) {
	if update.Title != nil {
		project.Title = *update.Title
	}
	if update.Description != nil {
		project.Description = *update.Description
	}
	if update.Category != nil {
		project.Category = *update.Category
	}
	if update.Tags != nil {
		project.Tags = update.Tags
	}
	if update.Status != nil {
		project.Status = *update.Status
	}
	if update.ExperienceLevel != nil {
		project.ExperienceLevel = *update.ExperienceLevel
	}
	if update.TimeCommitment != nil {
		project.TimeCommitment = *update.TimeCommitment
	}
	if update.Duration != nil {
		project.Duration = *update.Duration
	}
	if update.ContactMethod != nil {
		project.ContactMethod = *update.ContactMethod
	}
	if update.ContactInfo != nil {
		project.ContactInfo = *update.ContactInfo
	}
	if update.GithubURL != nil {
		project.GithubURL = update.GithubURL
	}
	if update.ImageURL != nil {
		project.ImageURL = update.ImageURL
	}
}
