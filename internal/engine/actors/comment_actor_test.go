package actors

import (
	"testing"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func spawnCommentActor(st *fakeStore) (*actor.ActorSystem, *actor.PID) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewCommentActor(st, testLogger())
	})
	return system, system.Root.Spawn(props)
}

func TestCommentActorAggregateCouplesToTopLevel(t *testing.T) {
	st := newFakeStore()
	authorID := uuid.New()
	commenterID := uuid.New()
	project := seedProject(st, authorID)

	system, pid := spawnCommentActor(st)

	// A top-level comment bumps the project aggregate.
	addMsg := &AddCommentMsg{
		UserID:    commenterID,
		ProjectID: project.ID,
		Text:      "Love this idea",
	}
	future := system.Root.RequestFuture(pid, addMsg, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)

	comment := result.(*models.Comment)
	assert.True(t, comment.IsTopLevel())
	assert.Equal(t, models.CommentOpen, comment.Status)

	stored, _ := st.GetProject(nil, project.ID)
	assert.Equal(t, 1, stored.Comments)

	// A reply does not.
	replyMsg := &AddCommentMsg{
		UserID:    authorID,
		ProjectID: project.ID,
		Text:      "Thanks!",
		ReplyTo:   &comment.ID,
	}
	future = system.Root.RequestFuture(pid, replyMsg, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)

	reply := result.(*models.Comment)
	assert.Equal(t, comment.ID, *reply.ReplyTo)

	stored, _ = st.GetProject(nil, project.ID)
	assert.Equal(t, 1, stored.Comments)

	// Deleting the reply leaves the aggregate alone.
	future = system.Root.RequestFuture(pid, &DeleteCommentMsg{UserID: authorID, CommentID: reply.ID}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	stored, _ = st.GetProject(nil, project.ID)
	assert.Equal(t, 1, stored.Comments)

	// Deleting the top-level comment decrements it.
	future = system.Root.RequestFuture(pid, &DeleteCommentMsg{UserID: commenterID, CommentID: comment.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.True(t, result.(*models.StatusResponse).Success)

	stored, _ = st.GetProject(nil, project.ID)
	assert.Equal(t, 0, stored.Comments)
}

func TestCommentActorDecrementFloorsAtZero(t *testing.T) {
	st := newFakeStore()
	authorID := uuid.New()
	project := seedProject(st, authorID)

	// Stored directly, bypassing the insert that would have bumped the
	// aggregate. The count is already drifted low.
	orphan := &models.Comment{
		ID:        uuid.New(),
		ProjectID: project.ID,
		AuthorID:  authorID,
		Text:      "drifted",
		Status:    models.CommentOpen,
		CreatedAt: time.Now(),
	}
	st.SaveComment(nil, orphan)

	system, pid := spawnCommentActor(st)

	future := system.Root.RequestFuture(pid, &DeleteCommentMsg{UserID: authorID, CommentID: orphan.ID}, 5*time.Second)
	_, err := future.Result()
	assert.NoError(t, err)

	stored, _ := st.GetProject(nil, project.ID)
	assert.Equal(t, 0, stored.Comments)
}

func TestCommentActorEmptyTextIsSilentNoOp(t *testing.T) {
	st := newFakeStore()
	project := seedProject(st, uuid.New())

	system, pid := spawnCommentActor(st)

	addMsg := &AddCommentMsg{
		UserID:    uuid.New(),
		ProjectID: project.ID,
		Text:      "   \n\t ",
	}
	future := system.Root.RequestFuture(pid, addMsg, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)

	status, ok := result.(*models.StatusResponse)
	assert.True(t, ok)
	assert.True(t, status.Success)

	stored, _ := st.GetProject(nil, project.ID)
	assert.Equal(t, 0, stored.Comments)

	comments, _ := st.ListTopLevelComments(nil, project.ID)
	assert.Equal(t, 0, len(comments))
}

func TestCommentActorCrossProjectReplyRejected(t *testing.T) {
	st := newFakeStore()
	projectA := seedProject(st, uuid.New())
	projectB := seedProject(st, uuid.New())

	system, pid := spawnCommentActor(st)

	userID := uuid.New()
	future := system.Root.RequestFuture(pid, &AddCommentMsg{UserID: userID, ProjectID: projectA.ID, Text: "parent"}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	parent := result.(*models.Comment)

	future = system.Root.RequestFuture(pid, &AddCommentMsg{UserID: userID, ProjectID: projectB.ID, Text: "stray reply", ReplyTo: &parent.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)

	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestCommentActorEditAndOwnership(t *testing.T) {
	st := newFakeStore()
	project := seedProject(st, uuid.New())

	system, pid := spawnCommentActor(st)

	authorID := uuid.New()
	future := system.Root.RequestFuture(pid, &AddCommentMsg{UserID: authorID, ProjectID: project.ID, Text: "original"}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	comment := result.(*models.Comment)
	assert.Nil(t, comment.EditedAt)

	// Someone else cannot edit.
	future = system.Root.RequestFuture(pid, &EditCommentMsg{UserID: uuid.New(), CommentID: comment.ID, Text: "hijacked"}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	// The author can, and the edit is stamped.
	future = system.Root.RequestFuture(pid, &EditCommentMsg{UserID: authorID, CommentID: comment.ID, Text: "revised"}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)

	edited := result.(*models.Comment)
	assert.Equal(t, "revised", edited.Text)
	assert.NotNil(t, edited.EditedAt)

	// Deletion is owner-only too.
	future = system.Root.RequestFuture(pid, &DeleteCommentMsg{UserID: uuid.New(), CommentID: comment.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok = result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)
}

func TestCommentActorPinAndResolvePermissions(t *testing.T) {
	st := newFakeStore()
	ownerID := uuid.New()
	project := seedProject(st, ownerID)

	system, pid := spawnCommentActor(st)

	commenterID := uuid.New()
	future := system.Root.RequestFuture(pid, &AddCommentMsg{UserID: commenterID, ProjectID: project.ID, Text: "pin me"}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	comment := result.(*models.Comment)

	// Pinning is curation, so the comment author cannot do it.
	future = system.Root.RequestFuture(pid, &PinCommentMsg{UserID: commenterID, CommentID: comment.ID, Pinned: true}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrForbidden, appErr.Code)

	future = system.Root.RequestFuture(pid, &PinCommentMsg{UserID: ownerID, CommentID: comment.ID, Pinned: true}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.True(t, result.(*models.Comment).Pinned)

	// Either the comment author or the project owner can resolve.
	future = system.Root.RequestFuture(pid, &ResolveCommentMsg{UserID: commenterID, CommentID: comment.ID, Status: models.CommentResolved}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.Equal(t, models.CommentResolved, result.(*models.Comment).Status)

	// A bogus status value is rejected.
	future = system.Root.RequestFuture(pid, &ResolveCommentMsg{UserID: ownerID, CommentID: comment.ID, Status: "closed"}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok = result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrInvalidInput, appErr.Code)
}

func TestCommentActorThreadNotifications(t *testing.T) {
	st := newFakeStore()
	ownerID := uuid.New()
	project := seedProject(st, ownerID)

	system, pid := spawnCommentActor(st)

	commenterID := uuid.New()
	future := system.Root.RequestFuture(pid, &AddCommentMsg{UserID: commenterID, ProjectID: project.ID, Text: "first"}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	parent := result.(*models.Comment)

	// Top-level comment notifies the project owner.
	ownerFeed := st.notificationsFor(ownerID)
	assert.Equal(t, 1, len(ownerFeed))
	assert.Equal(t, models.NotifyComment, ownerFeed[0].Type)

	// A reply notifies the parent author, not the project owner again.
	replierID := uuid.New()
	future = system.Root.RequestFuture(pid, &AddCommentMsg{UserID: replierID, ProjectID: project.ID, Text: "agreed", ReplyTo: &parent.ID}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	commenterFeed := st.notificationsFor(commenterID)
	assert.Equal(t, 1, len(commenterFeed))
	assert.Equal(t, models.NotifyReply, commenterFeed[0].Type)
	assert.Equal(t, 1, len(st.notificationsFor(ownerID)))

	// Replying to yourself stays quiet.
	future = system.Root.RequestFuture(pid, &AddCommentMsg{UserID: commenterID, ProjectID: project.ID, Text: "me again", ReplyTo: &parent.ID}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(st.notificationsFor(commenterID)))
}

func TestCommentActorListenerReplacedPerKey(t *testing.T) {
	st := newFakeStore()
	project := seedProject(st, uuid.New())

	system, pid := spawnCommentActor(st)

	future := system.Root.RequestFuture(pid, &ListenTopLevelMsg{ProjectID: project.ID}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	first := result.(*store.CommentSubscription)

	// Listening again for the same key cancels the previous handle.
	future = system.Root.RequestFuture(pid, &ListenTopLevelMsg{ProjectID: project.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	second := result.(*store.CommentSubscription)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous listener was not cancelled")
	}

	select {
	case <-second.Done():
		t.Fatal("new listener should still be live")
	default:
	}
	second.Cancel()
}
