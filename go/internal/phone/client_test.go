package phone

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/assets"
	"github.com/mcdev12/partytrivia/go/internal/content"
	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/gateway"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

func newServer(t *testing.T) (*httptest.Server, *gateway.RoomServiceClient) {
	t.Helper()
	bank, err := content.ParseBank(assets.QuestionBank)
	require.NoError(t, err)
	store := roomstore.NewMemoryStore()

	cfg := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		Rooms:            gateway.RoomsConfig{Sync: statesync.DefaultConfig(), Game: game.DefaultConfig()},
		PublicURL:        "http://phone.test",
	}
	svc, err := gateway.NewService(cfg, func(out gateway.Broadcaster) (*gateway.Rooms, error) {
		return gateway.NewRooms(store, nil, bank, out, cfg.Rooms)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
		_ = store.Close()
	})
	return srv, gateway.NewRoomServiceClient(srv.Client(), srv.URL)
}

func TestServerFromJoinURL(t *testing.T) {
	server, code, err := ServerFromJoinURL("http://192.168.1.20:8080/play?room=ab12")
	require.NoError(t, err)
	assert.Equal(t, "http://192.168.1.20:8080", server)
	assert.Equal(t, "AB12", code)

	_, _, err = ServerFromJoinURL("http://192.168.1.20:8080/play")
	assert.ErrorIs(t, err, gateway.ErrNoRoomCode)
}

func TestClientRejoinsWithSavedIdentity(t *testing.T) {
	srv, host := newServer(t)
	ctx := context.Background()

	created, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode

	identity := NewIdentity(filepath.Join(t.TempDir(), identityFile))

	first := NewClient(srv.URL, identity)
	p1, _, err := first.Join(ctx, code, Profile{Name: "Ana", Age: 31})
	require.NoError(t, err)

	// the phone reloads: new client, same identity file
	second := NewClient(srv.URL, identity)
	p2, state, err := second.Join(ctx, code, Profile{Name: "Ana", Age: 31})
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Len(t, state.Players, 1)

	saved, ok, err := identity.PlayerID(code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p1.ID, saved)
}

func TestClientActionsRequireJoin(t *testing.T) {
	c := NewClient("http://unused", nil)
	_, err := c.Answer(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNotJoined)
	assert.ErrorIs(t, c.Watch(context.Background(), func(gateway.Envelope) {}), ErrNotJoined)
}

func TestClientAnswerOutsideQuestion(t *testing.T) {
	srv, host := newServer(t)
	ctx := context.Background()

	created, err := host.CreateRoom(ctx)
	require.NoError(t, err)

	c := NewClient(srv.URL, nil)
	_, _, err = c.Join(ctx, created.State.RoomCode, Profile{Name: "Bo"})
	require.NoError(t, err)

	_, err = c.Answer(ctx, 0)
	assert.True(t, IsCode(err, connect.CodeFailedPrecondition))
}

func TestClientWatchReceivesState(t *testing.T) {
	srv, host := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := host.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode

	c := NewClient(srv.URL, nil)
	_, _, err = c.Join(ctx, code, Profile{Name: "Cy"})
	require.NoError(t, err)

	states := make(chan models.GameState, 16)
	watchCtx, stop := context.WithCancel(ctx)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- c.Watch(watchCtx, func(env gateway.Envelope) {
			if env.Type == gateway.EnvelopeState && env.State != nil {
				states <- *env.State
			}
		})
	}()

	// the snapshot arrives first
	select {
	case s := <-states:
		assert.Equal(t, code, s.RoomCode)
	case <-ctx.Done():
		t.Fatal("no snapshot")
	}

	_, err = host.ToggleMode(ctx, code)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		for {
			select {
			case s := <-states:
				if s.Mode == models.ModeParty {
					return true
				}
			default:
				return false
			}
		}
	}, 5*time.Second, 10*time.Millisecond)

	stop()
	assert.ErrorIs(t, <-watchDone, context.Canceled)
}
