package actors

import (
	stdctx "context"
	"encoding/json"
	"log/slog"

	"civic-board/internal/models"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
)

// Message types for NotificationActor
type (
	ListenNotificationsMsg struct {
		UserID uuid.UUID
		Limit  int
	}

	StopListeningMsg struct {
		UserID uuid.UUID
	}

	ListNotificationsMsg struct {
		UserID uuid.UUID
		Limit  int
	}

	MarkReadMsg struct {
		UserID         uuid.UUID
		NotificationID uuid.UUID
	}

	MarkAllReadMsg struct {
		UserID uuid.UUID
	}

	PushNotificationMsg struct {
		Notification *models.Notification
	}
)

const defaultNotificationLimit = 50

// Pusher delivers a payload to a connected user. The websocket hub
// satisfies this; tests pass nil or a recorder.
type Pusher interface {
	SendDirectMessage(targetUserID uuid.UUID, payload []byte)
}

// NotificationActor bridges the per-user notification feed in the store
// to connected clients. It holds at most one live listener per user:
// re-listening for a user cancels the previous listener before a new one
// is acquired, so duplicate background listeners cannot accumulate.
type NotificationActor struct {
	store     store.Store
	pusher    Pusher
	logger    *slog.Logger
	listeners map[uuid.UUID]*store.NotificationSubscription
}

func NewNotificationActor(st store.Store, pusher Pusher, logger *slog.Logger) actor.Actor {
	return &NotificationActor{
		store:     st,
		pusher:    pusher,
		logger:    logger,
		listeners: make(map[uuid.UUID]*store.NotificationSubscription),
	}
}

func (a *NotificationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Stopping:
		for userID, sub := range a.listeners {
			sub.Cancel()
			delete(a.listeners, userID)
		}

	case *ListenNotificationsMsg:
		a.handleListen(context, msg)

	case *StopListeningMsg:
		if sub, ok := a.listeners[msg.UserID]; ok {
			sub.Cancel()
			delete(a.listeners, msg.UserID)
		}
		context.Respond(&models.StatusResponse{Success: true})

	case *ListNotificationsMsg:
		a.handleList(context, msg)

	case *MarkReadMsg:
		if msg.UserID == uuid.Nil {
			context.Respond(utils.NewUnauthenticatedError())
			return
		}
		if err := a.store.MarkNotificationRead(stdctx.Background(), msg.UserID, msg.NotificationID); err != nil {
			context.Respond(err)
			return
		}
		context.Respond(&models.StatusResponse{Success: true})

	case *MarkAllReadMsg:
		if msg.UserID == uuid.Nil {
			context.Respond(utils.NewUnauthenticatedError())
			return
		}
		updated, err := a.store.MarkAllNotificationsRead(stdctx.Background(), msg.UserID)
		if err != nil {
			context.Respond(err)
			return
		}
		context.Respond(&models.StatusResponse{Success: true, Message: "marked read"})
		a.logger.Debug("marked notifications read", "user", msg.UserID, "count", updated)

	case *PushNotificationMsg:
		a.handlePush(context, msg)
	}
}

func (a *NotificationActor) handleListen(context actor.Context, msg *ListenNotificationsMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	limit := msg.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	// One listener per user: releasing the old handle first is what
	// keeps a re-subscribe from leaking a duplicate stream.
	if prev, ok := a.listeners[msg.UserID]; ok {
		prev.Cancel()
	}

	sub := a.store.WatchNotifications(stdctx.Background(), msg.UserID, limit)
	a.listeners[msg.UserID] = sub

	userID := msg.UserID
	go func() {
		if err := <-sub.Ready(); err != nil {
			a.logger.Error("notification listener failed to start", "user", userID, "err", err)
			return
		}
		for {
			select {
			case snapshot := <-sub.Snapshots():
				a.forward(userID, snapshot)
			case <-sub.Done():
				return
			}
		}
	}()

	// The websocket path fire-and-forgets this message; only reply when
	// someone is actually waiting on the subscription handle.
	if context.Sender() != nil {
		context.Respond(sub)
	}
}

func (a *NotificationActor) forward(userID uuid.UUID, notifications []*models.Notification) {
	if a.pusher == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":          "notifications",
		"notifications": notifications,
	})
	if err != nil {
		a.logger.Warn("failed to encode notification payload", "err", err)
		return
	}
	a.pusher.SendDirectMessage(userID, payload)
}

func (a *NotificationActor) handleList(context actor.Context, msg *ListNotificationsMsg) {
	if msg.UserID == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}

	limit := msg.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}

	notifications, err := a.store.ListNotifications(stdctx.Background(), msg.UserID, limit)
	if err != nil {
		context.Respond(err)
		return
	}
	context.Respond(notifications)
}

func (a *NotificationActor) handlePush(context actor.Context, msg *PushNotificationMsg) {
	n := msg.Notification
	if n.CreatedBy == uuid.Nil {
		context.Respond(utils.NewUnauthenticatedError())
		return
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	if err := a.store.SaveNotification(stdctx.Background(), n); err != nil {
		context.Respond(err)
		return
	}
	context.Respond(&models.StatusResponse{Success: true})
}
