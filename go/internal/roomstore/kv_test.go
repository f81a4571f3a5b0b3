package roomstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

func startJetStream(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		ServerName: "roomstore-test",
		Host:       "127.0.0.1",
		Port:       server.RANDOM_PORT,
		JetStream:  true,
		StoreDir:   t.TempDir(),
		NoSigs:     true,
		NoLog:      true,
	})
	require.NoError(t, err)

	ns.Start()
	require.True(t, ns.ReadyForConnections(10*time.Second), "nats server not ready")
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func openTestKV(t *testing.T, ns *server.Server) *KVStore {
	t.Helper()
	cfg := DefaultKVConfig()
	cfg.URL = ns.ClientURL()
	cfg.Bucket = "TRIVIA_ROOMS_TEST"
	cfg.ReconnectWait = 50 * time.Millisecond
	cfg.PatchAttempts = 50

	store, err := OpenKV(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestKVCreateGetPatch(t *testing.T) {
	store := openTestKV(t, startJetStream(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "AB12", models.NewGameState("AB12")))
	assert.ErrorIs(t, store.Create(ctx, "AB12", models.NewGameState("AB12")), ErrRoomExists)

	require.NoError(t, store.Patch(ctx, "AB12", models.NewPatch().Stage(models.StageWarmup).Round(2)))

	got, err := store.Get(ctx, "AB12")
	require.NoError(t, err)
	assert.Equal(t, "AB12", got.RoomCode)
	assert.Equal(t, models.StageWarmup, got.Stage)
	assert.Equal(t, 2, got.Round)
	assert.Equal(t, models.ModeFamily, got.Mode)

	_, err = store.Get(ctx, "NOPE")
	assert.ErrorIs(t, err, ErrRoomNotFound)
	assert.ErrorIs(t, store.Patch(ctx, "NOPE", models.NewPatch().Round(1)), ErrRoomNotFound)
}

func TestKVConcurrentPatchesKeepEveryField(t *testing.T) {
	ns := startJetStream(t)
	first := openTestKV(t, ns)
	second := openTestKV(t, ns)
	ctx := context.Background()

	require.NoError(t, first.Create(ctx, "CD34", models.NewGameState("CD34")))

	patches := []models.Patch{
		models.NewPatch().Topic("Space"),
		models.NewPatch().HostRoast("nice"),
		models.NewPatch().Round(4),
		models.NewPatch().Stage(models.StageQuestion),
		models.NewPatch().Mode(models.ModeParty),
		models.NewPatch().Paused(true),
	}

	var wg sync.WaitGroup
	for i, p := range patches {
		store := first
		if i%2 == 1 {
			store = second
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Patch(ctx, "CD34", p))
		}()
	}
	wg.Wait()

	got, err := first.Get(ctx, "CD34")
	require.NoError(t, err)
	assert.Equal(t, "Space", got.Topic)
	assert.Equal(t, "nice", got.HostRoast)
	assert.Equal(t, 4, got.Round)
	assert.Equal(t, models.StageQuestion, got.Stage)
	assert.Equal(t, models.ModeParty, got.Mode)
	assert.True(t, got.IsPaused)
}

func TestKVSubscribeDeliversCurrentThenChanges(t *testing.T) {
	store := openTestKV(t, startJetStream(t))
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "EF56", models.NewGameState("EF56")))

	updates := make(chan models.GameState, 8)
	sub, err := store.Subscribe(ctx, "EF56", func(s models.GameState) { updates <- s }, nil)
	require.NoError(t, err)
	defer sub.Cancel()

	next := func() models.GameState {
		t.Helper()
		select {
		case s := <-updates:
			return s
		case <-time.After(5 * time.Second):
			t.Fatal("no update from watcher")
			return models.GameState{}
		}
	}

	assert.Equal(t, models.StageLobby, next().Stage)

	require.NoError(t, store.Patch(ctx, "EF56", models.NewPatch().Stage(models.StageWarmup)))
	assert.Equal(t, models.StageWarmup, next().Stage)

	sub.Cancel()
	sub.Cancel()
	require.NoError(t, store.Patch(ctx, "EF56", models.NewPatch().Round(9)))
	select {
	case s := <-updates:
		t.Fatalf("update after cancel: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestKVSubscriptionLostWhenServerGoesAway(t *testing.T) {
	ns := startJetStream(t)
	store := openTestKV(t, ns)
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, "GH78", models.NewGameState("GH78")))

	lost := make(chan error, 1)
	sub, err := store.Subscribe(ctx, "GH78", func(models.GameState) {}, func(err error) { lost <- err })
	require.NoError(t, err)
	defer sub.Cancel()

	ns.Shutdown()

	select {
	case err := <-lost:
		assert.ErrorIs(t, err, ErrSubscriptionLost)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription loss never reported")
	}
}

func TestOpenKVUnreachable(t *testing.T) {
	cfg := DefaultKVConfig()
	cfg.URL = "nats://127.0.0.1:1"

	_, err := OpenKV(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
