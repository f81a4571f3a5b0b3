package roomstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

type recorder struct {
	mu     sync.Mutex
	states []models.GameState
	errs   []error
}

func (r *recorder) onUpdate(s models.GameState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

func (r *recorder) last() models.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func (r *recorder) errCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	got, err := store.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.Equal(t, "AB12", got.RoomCode)
	assert.Equal(t, models.StageLobby, got.Stage)
	assert.Equal(t, models.ModeFamily, got.Mode)

	err = store.Create(ctx, "AB12", models.NewGameState("AB12"))
	assert.ErrorIs(t, err, ErrRoomExists)

	_, err = store.Get(ctx, "ZZZZ")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStore_PatchMergesTopLevelFields(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	initial := models.NewGameState("AB12")
	initial.Topic = "Space"
	require.NoError(t, store.Create(ctx, "AB12", initial))

	require.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Stage(models.StageWarmup)))

	got, err := store.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.Equal(t, models.StageWarmup, got.Stage)
	assert.Equal(t, "Space", got.Topic)
	assert.Equal(t, 1, store.PatchCalls())

	err = store.Patch(ctx, "NOPE", models.NewPatch().Round(2))
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMemoryStore_Unavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	store.SetUnavailable(true)

	assert.ErrorIs(t, store.Create(ctx, "CD34", models.NewGameState("CD34")), ErrStoreUnavailable)
	_, err := store.Get(ctx, "AB12")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, store.Patch(ctx, "AB12", models.NewPatch().Round(1)), ErrStoreUnavailable)
	_, err = store.Subscribe(ctx, "AB12", func(models.GameState) {}, nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 1, store.PatchCalls())

	store.SetUnavailable(false)
	assert.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Round(1)))
}

func TestMemoryStore_SubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "AB12", rec.onUpdate, rec.onError)
	require.NoError(t, err)
	defer sub.Cancel()

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.StageLobby, rec.last().Stage)

	require.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Mode(models.ModeParty)))
	require.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Round(3)))

	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, 5*time.Millisecond)
	last := rec.last()
	assert.Equal(t, models.ModeParty, last.Mode)
	assert.Equal(t, 3, last.Round)
	assert.Zero(t, rec.errCount())
}

func TestMemoryStore_CancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "AB12", rec.onUpdate, rec.onError)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	sub.Cancel()
	sub.Cancel()

	require.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Round(5)))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
	assert.Zero(t, rec.errCount())
}

func TestMemoryStore_DropSubscriptionsReportsOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	rec := &recorder{}
	sub, err := store.Subscribe(ctx, "AB12", rec.onUpdate, rec.onError)
	require.NoError(t, err)

	store.DropSubscriptions()
	store.DropSubscriptions()
	sub.Cancel()

	require.Equal(t, 1, rec.errCount())
	assert.True(t, errors.Is(rec.errs[0], ErrSubscriptionLost))
}

func TestMemoryStore_CloseDoesNotReportErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))

	rec := &recorder{}
	_, err := store.Subscribe(ctx, "AB12", rec.onUpdate, rec.onError)
	require.NoError(t, err)

	require.NoError(t, store.Close())
	assert.Zero(t, rec.errCount())
}
