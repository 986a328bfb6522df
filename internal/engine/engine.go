package engine

import (
	"log/slog"

	"civic-board/internal/engine/actors"
	"civic-board/internal/store"
	"civic-board/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between the board actors.
type Engine struct {
	boardActor        *actor.PID
	commentActor      *actor.PID
	notificationActor *actor.PID
}

func NewEngine(system *actor.ActorSystem, st store.Store, pusher actors.Pusher, metrics *utils.MetricsCollector, logger *slog.Logger) *Engine {
	context := system.Root

	boardProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewBoardActor(st, metrics, logger)
	})
	boardPID := context.Spawn(boardProps)

	commentProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewCommentActor(st, logger)
	})
	commentPID := context.Spawn(commentProps)

	notificationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewNotificationActor(st, pusher, logger)
	})
	notificationPID := context.Spawn(notificationProps)

	return &Engine{
		boardActor:        boardPID,
		commentActor:      commentPID,
		notificationActor: notificationPID,
	}
}

// GetBoardActor returns the PID of the board actor
func (e *Engine) GetBoardActor() *actor.PID {
	return e.boardActor
}

// GetCommentActor returns the PID of the comment actor
func (e *Engine) GetCommentActor() *actor.PID {
	return e.commentActor
}

// GetNotificationActor returns the PID of the notification actor
func (e *Engine) GetNotificationActor() *actor.PID {
	return e.notificationActor
}
