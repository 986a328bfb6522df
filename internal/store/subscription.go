package store

import (
	"sync"

	"civic-board/internal/models"
)

// Subscription is the cancellation handle for a live listener. Every
// watch call returns one; callers must Cancel it to release the
// underlying listener. Cancel is idempotent.
type Subscription struct {
	cancelFn   func()
	cancelOnce sync.Once
	done       chan struct{}
	ready      chan error
	readyOnce  sync.Once
}

// NewSubscription wraps a cancel function in a handle. Exported so test
// fakes can construct subscriptions too.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{
		cancelFn: cancel,
		done:     make(chan struct{}),
		ready:    make(chan error, 1),
	}
}

// Cancel stops the listener. Safe to call more than once; callbacks stop
// being delivered once the listener goroutine observes the cancellation.
func (s *Subscription) Cancel() {
	s.cancelOnce.Do(func() {
		if s.cancelFn != nil {
			s.cancelFn()
		}
		close(s.done)
	})
}

// Done is closed once Cancel has run; consumers select on it to stop
// draining snapshots.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Ready yields exactly one value: nil once the first snapshot has been
// delivered, or the error that prevented the listener from starting.
// Callers await it before treating the local cache as populated.
func (s *Subscription) Ready() <-chan error {
	return s.ready
}

// ResolveReady settles the readiness channel. Only the first call wins.
func (s *Subscription) ResolveReady(err error) {
	s.readyOnce.Do(func() {
		s.ready <- err
	})
}

// ProjectSubscription delivers full catalog snapshots, latest-wins: a
// slow consumer sees the newest snapshot, never a backlog of stale ones.
type ProjectSubscription struct {
	*Subscription
	snapshots chan []*models.Project
}

func NewProjectSubscription(sub *Subscription) *ProjectSubscription {
	return &ProjectSubscription{Subscription: sub, snapshots: make(chan []*models.Project, 1)}
}

func (ps *ProjectSubscription) Snapshots() <-chan []*models.Project {
	return ps.snapshots
}

// Deliver queues a snapshot, displacing an undelivered older one.
func (ps *ProjectSubscription) Deliver(snapshot []*models.Project) {
	for {
		select {
		case ps.snapshots <- snapshot:
			return
		default:
		}
		select {
		case <-ps.snapshots:
		default:
		}
	}
}

// CommentSubscription delivers thread snapshots for one listen query
// (top-level of a project, or replies of one parent).
type CommentSubscription struct {
	*Subscription
	snapshots chan []*models.Comment
}

func NewCommentSubscription(sub *Subscription) *CommentSubscription {
	return &CommentSubscription{Subscription: sub, snapshots: make(chan []*models.Comment, 1)}
}

func (cs *CommentSubscription) Snapshots() <-chan []*models.Comment {
	return cs.snapshots
}

func (cs *CommentSubscription) Deliver(snapshot []*models.Comment) {
	for {
		select {
		case cs.snapshots <- snapshot:
			return
		default:
		}
		select {
		case <-cs.snapshots:
		default:
		}
	}
}

// NotificationSubscription delivers a recipient's newest notifications.
type NotificationSubscription struct {
	*Subscription
	snapshots chan []*models.Notification
}

func NewNotificationSubscription(sub *Subscription) *NotificationSubscription {
	return &NotificationSubscription{Subscription: sub, snapshots: make(chan []*models.Notification, 1)}
}

func (ns *NotificationSubscription) Snapshots() <-chan []*models.Notification {
	return ns.snapshots
}

func (ns *NotificationSubscription) Deliver(snapshot []*models.Notification) {
	for {
		select {
		case ns.snapshots <- snapshot:
			return
		default:
		}
		select {
		case <-ns.snapshots:
		default:
		}
	}
}
