package store

import (
	"errors"
	"testing"
	"time"

	"civic-board/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubscriptionCancelIsIdempotent(t *testing.T) {
	calls := 0
	sub := NewSubscription(func() { calls++ })

	sub.Cancel()
	sub.Cancel()
	sub.Cancel()

	assert.Equal(t, 1, calls)

	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel should be closed after cancel")
	}
}

func TestSubscriptionReadySettlesOnce(t *testing.T) {
	sub := NewSubscription(nil)

	failure := errors.New("stream setup failed")
	sub.ResolveReady(failure)
	sub.ResolveReady(nil) // loses

	select {
	case err := <-sub.Ready():
		assert.Equal(t, failure, err)
	case <-time.After(time.Second):
		t.Fatal("ready never settled")
	}
}

func TestProjectSubscriptionLatestWins(t *testing.T) {
	sub := NewProjectSubscription(NewSubscription(nil))

	stale := []*models.Project{{ID: uuid.New(), Title: "stale"}}
	fresh := []*models.Project{{ID: uuid.New(), Title: "fresh"}}

	// Nobody is draining, so the second delivery displaces the first.
	sub.Deliver(stale)
	sub.Deliver(fresh)

	select {
	case snapshot := <-sub.Snapshots():
		assert.Equal(t, "fresh", snapshot[0].Title)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	select {
	case <-sub.Snapshots():
		t.Fatal("stale snapshot should have been displaced")
	default:
	}
}

func TestNotificationSubscriptionDeliverAfterDrain(t *testing.T) {
	sub := NewNotificationSubscription(NewSubscription(nil))

	first := []*models.Notification{{ID: uuid.New(), Message: "first"}}
	second := []*models.Notification{{ID: uuid.New(), Message: "second"}}

	sub.Deliver(first)
	assert.Equal(t, "first", (<-sub.Snapshots())[0].Message)

	sub.Deliver(second)
	assert.Equal(t, "second", (<-sub.Snapshots())[0].Message)
}
