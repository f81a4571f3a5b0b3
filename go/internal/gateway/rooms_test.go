package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/clients/generative_client"
	"github.com/mcdev12/partytrivia/go/internal/assets"
	"github.com/mcdev12/partytrivia/go/internal/content"
	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

type recorder struct {
	mu        sync.Mutex
	envelopes []*Envelope
}

func (r *recorder) BroadcastToRoom(roomCode string, env *Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
}

func (r *recorder) ofType(typ EnvelopeType) []*Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Envelope
	for _, env := range r.envelopes {
		if env.Type == typ {
			out = append(out, env)
		}
	}
	return out
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(ctx context.Context, text string) (generative_client.Speech, error) {
	return generative_client.Speech{Audio: []byte("RIFF"), ContentType: "audio/wav"}, nil
}

func newTestRooms(t *testing.T, store roomstore.Store, out Broadcaster, opts ...RoomsOption) *Rooms {
	t.Helper()
	bank, err := content.ParseBank(assets.QuestionBank)
	require.NoError(t, err)
	rooms, err := NewRooms(store, nil, bank, out, RoomsConfig{
		Sync: statesync.DefaultConfig(),
		Game: game.DefaultConfig(),
	}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rooms.Close() })
	return rooms
}

func TestRoomsOfflineWithoutStore(t *testing.T) {
	out := &recorder{}
	rooms := newTestRooms(t, nil, out)

	room, state, err := rooms.Create(context.Background())
	require.NoError(t, err)
	assert.True(t, room.Sync.Offline())

	got, err := rooms.Open(context.Background(), state.RoomCode)
	require.NoError(t, err)
	assert.Same(t, room, got)

	_, err = rooms.Open(context.Background(), "QQQQ")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	require.Eventually(t, func() bool { return len(out.ofType(EnvelopeState)) > 0 }, time.Second, 10*time.Millisecond)
}

func TestRoomsAttachFromStore(t *testing.T) {
	store := roomstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	host := newTestRooms(t, store, &recorder{})
	_, state, err := host.Create(context.Background())
	require.NoError(t, err)

	// a second process serving the same store
	other := newTestRooms(t, store, &recorder{})
	room, err := other.Open(context.Background(), state.RoomCode)
	require.NoError(t, err)
	assert.Equal(t, state.RoomCode, room.Code)
	assert.Equal(t, []string{state.RoomCode}, other.Codes())

	require.NoError(t, other.Remove(state.RoomCode))
	assert.Empty(t, other.Codes())

	store.SetUnavailable(true)
	_, err = other.Open(context.Background(), state.RoomCode)
	assert.ErrorIs(t, err, roomstore.ErrStoreUnavailable)
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(connectError(err)))
	assert.Empty(t, other.Codes())
}

func TestRoomsClosed(t *testing.T) {
	rooms := newTestRooms(t, nil, &recorder{})
	require.NoError(t, rooms.Close())

	_, _, err := rooms.Create(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRoomSpeakerBroadcastsAudio(t *testing.T) {
	out := &recorder{}
	rooms := newTestRooms(t, nil, out, WithSynthesizer(fakeSynth{}))

	room, _, err := rooms.Create(context.Background())
	require.NoError(t, err)
	_, _, err = room.Controller.Join(context.Background(), game.JoinRequest{Name: "Cy"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(out.ofType(EnvelopeAudio)) > 0 }, time.Second, 10*time.Millisecond)
	clip := out.ofType(EnvelopeAudio)[0]
	assert.Equal(t, room.Code, clip.RoomCode)
	assert.Equal(t, "audio/wav", clip.Audio.ContentType)
	assert.Contains(t, clip.Audio.Text, "Cy")
}

func TestConnectErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code connect.Code
	}{
		{fmt.Errorf("x: %w", ErrRoomNotFound), connect.CodeNotFound},
		{game.ErrPlayerNotFound, connect.CodeNotFound},
		{game.ErrInvalidAnswer, connect.CodeInvalidArgument},
		{game.ErrInvalidTransition, connect.CodeFailedPrecondition},
		{game.ErrNoPlayers, connect.CodeFailedPrecondition},
		{fmt.Errorf("%w: roast: %w", game.ErrContentProvider, errors.New("boom")), connect.CodeUnavailable},
		{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{errors.New("other"), connect.CodeInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, connect.CodeOf(connectError(tt.err)), tt.err.Error())
	}
}
