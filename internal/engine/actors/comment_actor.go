package actors

import (
	stdctx "context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for CommentActor
type (
	AddCommentMsg struct {
		UserID    uuid.UUID
		ProjectID uuid.UUID
		Text      string
		ReplyTo   *uuid.UUID
	}

	EditCommentMsg struct {
		UserID    uuid.UUID
		CommentID uuid.UUID
		Text      string
	}

	DeleteCommentMsg struct {
		UserID    uuid.UUID
		CommentID uuid.UUID
	}

	PinCommentMsg struct {
		UserID    uuid.UUID
		CommentID uuid.UUID
		Pinned    bool
	}

	ResolveCommentMsg struct {
		UserID    uuid.UUID
		CommentID uuid.UUID
		Status    models.CommentStatus
	}

	GetCommentMsg struct {
		CommentID uuid.UUID
	}

	ListTopLevelMsg struct {
		ProjectID uuid.UUID
	}

	ListRepliesMsg struct {
		ProjectID uuid.UUID
		ParentID  uuid.UUID
	}

	ListenTopLevelMsg struct {
		ProjectID uuid.UUID
	}

	ListenRepliesMsg struct {
		ProjectID uuid.UUID
		ParentID  uuid.UUID
	}
)

// CommentActor manages comment threads and keeps the project comment
// aggregate coupled to top-level inserts and deletes. It also owns the
// live thread listeners, one per logical query key, cancelling the
// previous listener whenever the same key is re-acquired.
type CommentActor struct {
	store     store.Store
	logger    *slog.Logger
	userCache map[uuid.UUID]string // Simple cache for usernames
	listeners map[string]*store.CommentSubscription
}

func NewCommentActor(st store.Store, logger *slog.Logger) actor.Actor {
	return &CommentActor{
		store:     st,
		logger:    logger,
		userCache: make(map[uuid.UUID]string),
		listeners: make(map[string]*store.CommentSubscription),
	}
}

func (a *CommentActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Stopping:
		for key, sub := range a.listeners {
			sub.Cancel()
			delete(a.listeners, key)
		}

	case *AddCommentMsg:
		a.handleAddComment(context, msg)

	case *EditCommentMsg:
		a.handleEditComment(context, msg)

	case *DeleteCommentMsg:
		a.handleDeleteComment(context, msg)

	case *PinCommentMsg:
		a.handlePinComment(context, msg)

	case *ResolveCommentMsg:
		a.handleResolveComment(context, msg)

	case *GetCommentMsg:
		a.handleGetComment(context, msg)

	case *ListTopLevelMsg:
		comments, err := a.store.ListTopLevelComments(stdctx.Background(), msg.ProjectID)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(comments)

	case *ListRepliesMsg:
		comments, err := a.store.ListReplies(stdctx.Background(), msg.ProjectID, msg.ParentID)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(comments)

	case *ListenTopLevelMsg:
		key := "top:" + msg.ProjectID.String()
		sub := a.store.WatchTopLevelComments(stdctx.Background(), msg.ProjectID)
		a.replaceListener(key, sub)
		context.Respond(sub)

	case *ListenRepliesMsg:
		key := "replies:" + msg.ProjectID.String() + ":" + msg.ParentID.String()
		sub := a.store.WatchReplies(stdctx.Background(), msg.ProjectID, msg.ParentID)
		a.replaceListener(key, sub)
		context.Respond(sub)
	}
}

// replaceListener enforces exactly one active listener per logical key:
// acquiring a new subscription releases the previous one first.
func (a *CommentActor) replaceListener(key string, sub *store.CommentSubscription) {
	if prev, ok := a.listeners[key]; ok {
		prev.Cancel()
	}
	a.listeners[key] = sub
}

// Helper to get a username, using the cache first.
func (a *CommentActor) username(ctx stdctx.Context, userID uuid.UUID) string {
	if username, ok := a.userCache[userID]; ok {
		return username
	}

	profile, err := a.store.GetUserProfile(ctx, userID)
	if err != nil {
		return "[unknown]"
	}

	a.userCache[userID] = profile.Username
	return profile.Username
}

func (a *CommentActor) handleAddComment(context actor.Context, msg *AddCommentMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		// Deliberate soft validation: an empty comment is silently
		// dropped, not rejected.
		context.Respond(&models.StatusResponse{Success: true, Message: "empty comment ignored"})
		return
	}

	ctx := stdctx.Background()

	project, err := a.store.GetProject(ctx, msg.ProjectID)
	if err != nil {
		context.Respond(err)
		return
	}

	var parent *models.Comment
	if msg.ReplyTo != nil {
		parent, err = a.store.GetComment(ctx, *msg.ReplyTo)
		if err != nil {
			context.Respond(err)
			return
		}
		if parent.ProjectID != msg.ProjectID {
			context.Respond(utils.NewAppError(utils.ErrInvalidInput, "parent comment belongs to a different project", nil))
			return
		}
	}

	comment := &models.Comment{
		ID:         uuid.New(),
		ProjectID:  msg.ProjectID,
		AuthorID:   msg.UserID,
		AuthorName: a.username(ctx, msg.UserID),
		Text:       text,
		ReplyTo:    msg.ReplyTo,
		Status:     models.CommentOpen,
		CreatedAt:  time.Now(),
	}

	if comment.IsTopLevel() {
		err = a.store.InsertTopLevelComment(ctx, comment)
	} else {
		err = a.store.SaveComment(ctx, comment)
	}
	if err != nil {
		a.logger.Error("failed to save comment", "project", msg.ProjectID, "err", err)
		context.Respond(err)
		return
	}

	a.notifyThread(ctx, project, parent, comment)
	context.Respond(comment)
}

// notifyThread tells the project author about new top-level comments and
// the parent author about replies. Self-notifications are skipped.
func (a *CommentActor) notifyThread(ctx stdctx.Context, project *models.Project, parent *models.Comment, comment *models.Comment) {
	projectID := project.ID
	act := &models.Actor{UserID: comment.AuthorID, Name: comment.AuthorName}

	if comment.IsTopLevel() {
		if project.AuthorID == comment.AuthorID {
			return
		}
		a.saveNotification(ctx, &models.Notification{
			ID:          uuid.New(),
			RecipientID: project.AuthorID,
			CreatedBy:   comment.AuthorID,
			Type:        models.NotifyComment,
			Message:     fmt.Sprintf("%s commented on %q", comment.AuthorName, project.Title),
			ProjectID:   &projectID,
			Actor:       act,
			CreatedAt:   time.Now(),
		})
		return
	}

	if parent == nil || parent.AuthorID == comment.AuthorID {
		return
	}
	a.saveNotification(ctx, &models.Notification{
		ID:          uuid.New(),
		RecipientID: parent.AuthorID,
		CreatedBy:   comment.AuthorID,
		Type:        models.NotifyReply,
		Message:     fmt.Sprintf("%s replied to your comment on %q", comment.AuthorName, project.Title),
		ProjectID:   &projectID,
		Actor:       act,
		CreatedAt:   time.Now(),
	})
}

func (a *CommentActor) saveNotification(ctx stdctx.Context, n *models.Notification) {
	if err := a.store.SaveNotification(ctx, n); err != nil {
		a.logger.Warn("failed to save notification", "recipient", n.RecipientID, "err", err)
	}
}

func (a *CommentActor) handleEditComment(context actor.Context, msg *EditCommentMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		context.Respond(&models.StatusResponse{Success: true, Message: "empty edit ignored"})
		return
	}

	ctx := stdctx.Background()
	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(err)
		return
	}

	if comment.AuthorID != msg.UserID {
		context.Respond(utils.NewForbiddenError("only the comment author can edit it"))
		return
	}

	now := time.Now()
	comment.Text = text
	comment.EditedAt = &now

	if err := a.store.SaveComment(ctx, comment); err != nil {
		context.Respond(err)
		return
	}
	context.Respond(comment)
}

// handleDeleteComment reads first, authorizes, then deletes. The store
// decides whether to decrement the aggregate based on whether the
// comment it read inside the transaction was top-level.
func (a *CommentActor) handleDeleteComment(context actor.Context, msg *DeleteCommentMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	ctx := stdctx.Background()
	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(err)
		return
	}

	if comment.AuthorID != msg.UserID {
		context.Respond(utils.NewForbiddenError("only the comment author can delete it"))
		return
	}

	if _, err := a.store.DeleteCommentAndDecrementCount(ctx, msg.CommentID); err != nil {
		a.logger.Error("failed to delete comment", "comment", msg.CommentID, "err", err)
		context.Respond(err)
		return
	}

	context.Respond(&models.StatusResponse{Success: true, Message: "Comment deleted"})
}

// handlePinComment toggles pinning. Pinning is curation of the project
// page, so it belongs to the project owner, not the comment author.
func (a *CommentActor) handlePinComment(context actor.Context, msg *PinCommentMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	ctx := stdctx.Background()
	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(err)
		return
	}

	project, err := a.store.GetProject(ctx, comment.ProjectID)
	if err != nil {
		context.Respond(err)
		return
	}
	if project.AuthorID != msg.UserID {
		context.Respond(utils.NewForbiddenError("only the project owner can pin comments"))
		return
	}

	comment.Pinned = msg.Pinned
	if err := a.store.SaveComment(ctx, comment); err != nil {
		context.Respond(err)
		return
	}
	context.Respond(comment)
}

// handleResolveComment flips a thread between open and resolved. Either
// the comment author or the project owner may do this.
func (a *CommentActor) handleResolveComment(context actor.Context, msg *ResolveCommentMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}
	if msg.Status != models.CommentOpen && msg.Status != models.CommentResolved {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "invalid comment status", nil))
		return
	}

	ctx := stdctx.Background()
	comment, err := a.store.GetComment(ctx, msg.CommentID)
	if err != nil {
		context.Respond(err)
		return
	}

	if comment.AuthorID != msg.UserID {
		project, err := a.store.GetProject(ctx, comment.ProjectID)
		if err != nil {
			context.Respond(err)
			return
		}
		if project.AuthorID != msg.UserID {
			context.Respond(utils.NewForbiddenError("only the comment author or project owner can resolve it"))
			return
		}
	}

	comment.Status = msg.Status
	if err := a.store.SaveComment(ctx, comment); err != nil {
		context.Respond(err)
		return
	}
	context.Respond(comment)
}

func (a *CommentActor) handleGetComment(context actor.Context, msg *GetCommentMsg) {
	comment, err := a.store.GetComment(stdctx.Background(), msg.CommentID)
	if err != nil {
		context.Respond(err)
		return
	}
	context.Respond(comment)
}
