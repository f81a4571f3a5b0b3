package statesync

import (
	"context"

	"github.com/mcdev12/partytrivia/go/internal/broadcast"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
)

// Transport carries one committed write to other contexts. The synchronizer
// picks the store transport while online and the local one while offline.
type Transport interface {
	Name() string
	Send(ctx context.Context, roomCode string, patch models.Patch, next models.GameState) error
}

// storeTransport sends only the changed fields to the replicated store.
type storeTransport struct {
	store roomstore.Store
}

func (t storeTransport) Name() string { return "store" }

func (t storeTransport) Send(ctx context.Context, roomCode string, patch models.Patch, _ models.GameState) error {
	return t.store.Patch(ctx, roomCode, patch)
}

// localTransport publishes the whole merged state on the same-process channel.
type localTransport struct {
	channel *broadcast.Channel
	origin  string
}

func (t localTransport) Name() string { return "local" }

func (t localTransport) Send(_ context.Context, roomCode string, _ models.Patch, next models.GameState) error {
	if t.channel == nil {
		return nil
	}
	return t.channel.PublishFrom(t.origin, roomCode, next)
}
