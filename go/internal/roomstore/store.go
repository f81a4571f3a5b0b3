package roomstore

import (
	"context"
	"errors"
	"sync"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

var (
	// ErrStoreUnavailable means the networked store could not be reached or rejected a write.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrSubscriptionLost means a live subscription errored out mid-session.
	ErrSubscriptionLost = errors.New("subscription lost")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomExists       = errors.New("room already exists")
)

// Store is the replicated document database holding one GameState per room.
// Patches are shallow merges at top-level field granularity and the last
// write observed by the store wins.
type Store interface {
	Create(ctx context.Context, roomCode string, initial models.GameState) error
	Get(ctx context.Context, roomCode string) (models.GameState, error)
	Patch(ctx context.Context, roomCode string, patch models.Patch) error
	// Subscribe calls onUpdate with the initial document and on every change.
	// Callbacks run on a goroutine owned by the subscription, never inside
	// Subscribe itself. onError is called at most once, after which no more
	// updates arrive. Callbacks must not call Cancel synchronously.
	Subscribe(ctx context.Context, roomCode string, onUpdate func(models.GameState), onError func(error)) (Subscription, error)
	Close() error
}

// Subscription is a live document subscription.
type Subscription interface {
	// Cancel releases the subscription. Safe to call more than once.
	Cancel()
}

// subscription is shared plumbing for backends that run one goroutine per
// subscription: stop is closed exactly once and done is closed by the
// goroutine when it has released everything.
type subscription struct {
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	failed  sync.Once
	onError func(error)
	release func()
}

func newSubscription(onError func(error), release func()) *subscription {
	return &subscription{
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		onError: onError,
		release: release,
	}
}

func (s *subscription) Cancel() {
	s.once.Do(func() {
		close(s.stop)
	})
	<-s.done
}

// fail reports err once unless the subscription was cancelled by its owner.
func (s *subscription) fail(err error) {
	select {
	case <-s.stop:
		return
	default:
	}
	s.failed.Do(func() {
		if s.onError != nil {
			s.onError(err)
		}
	})
}

func (s *subscription) finish() {
	if s.release != nil {
		s.release()
	}
	close(s.done)
}
