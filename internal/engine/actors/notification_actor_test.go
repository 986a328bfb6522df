package actors

import (
	"strings"
	"sync"
	"testing"
	"time"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type recordingPusher struct {
	mu       sync.Mutex
	payloads map[uuid.UUID][]string
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{payloads: make(map[uuid.UUID][]string)}
}

func (p *recordingPusher) SendDirectMessage(targetUserID uuid.UUID, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads[targetUserID] = append(p.payloads[targetUserID], string(payload))
}

func (p *recordingPusher) count(userID uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.payloads[userID])
}

func (p *recordingPusher) last(userID uuid.UUID) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	sent := p.payloads[userID]
	if len(sent) == 0 {
		return ""
	}
	return sent[len(sent)-1]
}

func spawnNotificationActor(st *fakeStore, pusher Pusher) (*actor.ActorSystem, *actor.PID) {
	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return NewNotificationActor(st, pusher, testLogger())
	})
	return system, system.Root.Spawn(props)
}

func TestNotificationActorListAndMarkRead(t *testing.T) {
	st := newFakeStore()
	recipientID := uuid.New()
	senderID := uuid.New()

	n := &models.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		CreatedBy:   senderID,
		Type:        models.NotifySystem,
		Message:     "welcome",
		CreatedAt:   time.Now(),
	}
	st.SaveNotification(nil, n)

	system, pid := spawnNotificationActor(st, nil)

	// Anonymous callers get nothing.
	future := system.Root.RequestFuture(pid, &ListNotificationsMsg{UserID: uuid.Nil}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	appErr, ok := result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrUnauthenticated, appErr.Code)

	future = system.Root.RequestFuture(pid, &ListNotificationsMsg{UserID: recipientID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)

	feed := result.([]*models.Notification)
	assert.Equal(t, 1, len(feed))
	assert.False(t, feed[0].Read)

	future = system.Root.RequestFuture(pid, &MarkReadMsg{UserID: recipientID, NotificationID: n.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	assert.True(t, result.(*models.StatusResponse).Success)

	feed = st.notificationsFor(recipientID)
	assert.True(t, feed[0].Read)

	// Acking someone else's notification is a not-found, not a leak.
	other := &models.Notification{
		ID:          uuid.New(),
		RecipientID: senderID,
		CreatedBy:   recipientID,
		Type:        models.NotifySystem,
		Message:     "not yours",
		CreatedAt:   time.Now(),
	}
	st.SaveNotification(nil, other)

	future = system.Root.RequestFuture(pid, &MarkReadMsg{UserID: recipientID, NotificationID: other.ID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	appErr, ok = result.(*utils.AppError)
	assert.True(t, ok)
	assert.Equal(t, utils.ErrNotFound, appErr.Code)
}

func TestNotificationActorMarkAllRead(t *testing.T) {
	st := newFakeStore()
	recipientID := uuid.New()
	for i := 0; i < 3; i++ {
		st.SaveNotification(nil, &models.Notification{
			ID:          uuid.New(),
			RecipientID: recipientID,
			CreatedBy:   uuid.New(),
			Type:        models.NotifyComment,
			Message:     "ping",
			CreatedAt:   time.Now(),
		})
	}

	system, pid := spawnNotificationActor(st, nil)

	future := system.Root.RequestFuture(pid, &MarkAllReadMsg{UserID: recipientID}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	assert.True(t, result.(*models.StatusResponse).Success)

	for _, n := range st.notificationsFor(recipientID) {
		assert.True(t, n.Read)
	}
}

func TestNotificationActorForwardsSnapshots(t *testing.T) {
	st := newFakeStore()
	recipientID := uuid.New()
	pusher := newRecordingPusher()

	system, pid := spawnNotificationActor(st, pusher)

	future := system.Root.RequestFuture(pid, &ListenNotificationsMsg{UserID: recipientID}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	sub := result.(*store.NotificationSubscription)
	defer sub.Cancel()

	// The initial snapshot reaches the pusher once the listener is ready.
	assert.Eventually(t, func() bool {
		return pusher.count(recipientID) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// A later delivery is forwarded with its payload.
	sub.Deliver([]*models.Notification{{
		ID:          uuid.New(),
		RecipientID: recipientID,
		CreatedBy:   uuid.New(),
		Type:        models.NotifyUpvote,
		Message:     "your project got an upvote",
		CreatedAt:   time.Now(),
	}})

	assert.Eventually(t, func() bool {
		return strings.Contains(pusher.last(recipientID), "upvote")
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationActorListenerReplacedPerUser(t *testing.T) {
	st := newFakeStore()
	recipientID := uuid.New()

	system, pid := spawnNotificationActor(st, newRecordingPusher())

	future := system.Root.RequestFuture(pid, &ListenNotificationsMsg{UserID: recipientID}, 5*time.Second)
	result, err := future.Result()
	assert.NoError(t, err)
	first := result.(*store.NotificationSubscription)

	future = system.Root.RequestFuture(pid, &ListenNotificationsMsg{UserID: recipientID}, 5*time.Second)
	result, err = future.Result()
	assert.NoError(t, err)
	second := result.(*store.NotificationSubscription)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("previous listener was not cancelled")
	}

	// Explicitly stopping releases the current one too.
	future = system.Root.RequestFuture(pid, &StopListeningMsg{UserID: recipientID}, 5*time.Second)
	_, err = future.Result()
	assert.NoError(t, err)

	select {
	case <-second.Done():
	case <-time.After(time.Second):
		t.Fatal("stop listening did not cancel the subscription")
	}
}
