package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/assets"
	"github.com/mcdev12/partytrivia/go/internal/content"
	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

const testPublicURL = "http://trivia.test"

type gatewayFixture struct {
	store  *roomstore.MemoryStore
	clock  *clockwork.FakeClock
	svc    *Service
	server *httptest.Server
	client *RoomServiceClient
}

func newGatewayFixture(t *testing.T) *gatewayFixture {
	t.Helper()
	f := &gatewayFixture{
		store: roomstore.NewMemoryStore(),
		clock: clockwork.NewFakeClock(),
	}

	bank, err := content.ParseBank(assets.QuestionBank, content.WithBankRandom(func(n int) int { return 0 }))
	require.NoError(t, err)

	cfg := Config{
		ConnectionConfig: DefaultConnectionConfig(),
		Rooms: RoomsConfig{
			Sync: statesync.DefaultConfig(),
			Game: game.DefaultConfig(),
		},
		PublicURL: testPublicURL,
	}
	f.svc, err = NewService(cfg, func(out Broadcaster) (*Rooms, error) {
		return NewRooms(f.store, nil, bank, out, cfg.Rooms,
			WithGameOptions(
				game.WithClock(f.clock),
				game.WithRandom(func(n int) int { return 0 }),
			),
		)
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.svc.Start(ctx)
	}()

	mux := http.NewServeMux()
	f.svc.RegisterRoutes(mux)
	f.server = httptest.NewServer(mux)
	f.client = NewRoomServiceClient(f.server.Client(), f.server.URL)

	t.Cleanup(func() {
		f.server.Close()
		cancel()
		<-done
		_ = f.store.Close()
	})
	return f
}

func (f *gatewayFixture) dial(t *testing.T, roomCode, playerID string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/room?room=" + roomCode
	if playerID != "" {
		u += "&player_id=" + playerID
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestRoomServiceFullRound(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.client.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode
	require.Len(t, code, 4)
	assert.Equal(t, models.StageLobby, created.State.Stage)
	assert.False(t, created.Offline)
	assert.Equal(t, testPublicURL+"/play?room="+code, created.JoinURL)

	_, err = f.client.StartTopicSelection(ctx, code)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	joined, err := f.client.Join(ctx, JoinRequest{RoomCode: code, Name: "Ana", Age: 30, Language: "pt_BR"})
	require.NoError(t, err)
	assert.Equal(t, "pt-BR", joined.Player.PreferredLanguage)
	assert.NotEmpty(t, joined.Narration)

	again, err := f.client.Join(ctx, JoinRequest{RoomCode: code, Name: "Ana", PlayerID: joined.Player.ID})
	require.NoError(t, err)
	assert.Equal(t, joined.Player.ID, again.Player.ID)
	assert.Len(t, again.State.Players, 1)

	toggled, err := f.client.ToggleMode(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.ModeParty, toggled.State.Mode)

	warm, err := f.client.StartWarmup(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StageWarmup, warm.State.Stage)
	require.NotNil(t, warm.State.WarmupQuestion)

	reveal, err := f.client.StartTopicSelection(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StageSelectorReveal, reveal.State.Stage)
	assert.Equal(t, 1, reveal.State.Round)
	assert.Equal(t, joined.Player.ID, reveal.State.TopicPickerID)
	require.Len(t, reveal.State.TopicOptions, game.TopicOptionCount)

	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(game.DefaultConfig().AutoAdvance)
	require.Eventually(t, func() bool {
		got, err := f.client.GetState(ctx, code)
		return err == nil && got.State.Stage == models.StageTopicSelection
	}, 5*time.Second, 10*time.Millisecond)

	asked, err := f.client.SetTopic(ctx, code, reveal.State.TopicOptions[0])
	require.NoError(t, err)
	assert.Equal(t, models.StageQuestion, asked.State.Stage)
	require.NotNil(t, asked.State.CurrentQuestion)

	_, err = f.client.SubmitAnswer(ctx, code, joined.Player.ID, 99)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
	_, err = f.client.SubmitAnswer(ctx, code, "nobody", 0)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = f.client.SubmitAnswer(ctx, code, joined.Player.ID, asked.State.CurrentQuestion.CorrectIndex)
	require.NoError(t, err)

	voted, err := f.client.RevealRound(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StageVotingResults, voted.State.Stage)
	assert.NotEmpty(t, voted.State.HostRoast)

	_, err = f.client.Rebuttal(ctx, code)
	require.NoError(t, err)

	scored, err := f.client.EndRound(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, models.StageReveal, scored.State.Stage)
	require.Len(t, scored.State.Players, 1)
	assert.Equal(t, game.CorrectAnswerPoints+game.PickerBonusPoints, scored.State.Players[0].Score)

	// the document in the store matches what the host saw
	stored, err := f.store.Get(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, scored.State.Players[0].Score, stored.Players[0].Score)
}

func TestRoomServiceErrors(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.client.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode

	tests := []struct {
		name string
		call func() error
		code connect.Code
	}{
		{
			name: "unknown room",
			call: func() error { _, err := f.client.GetState(ctx, "ZZZZ"); return err },
			code: connect.CodeNotFound,
		},
		{
			name: "empty name",
			call: func() error { _, err := f.client.Join(ctx, JoinRequest{RoomCode: code}); return err },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "answer in lobby",
			call: func() error { _, err := f.client.SubmitAnswer(ctx, code, "p", 0); return err },
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "empty topic",
			call: func() error { _, err := f.client.SetTopic(ctx, code, " "); return err },
			code: connect.CodeInvalidArgument,
		},
		{
			name: "end round in lobby",
			call: func() error { _, err := f.client.EndRound(ctx, code); return err },
			code: connect.CodeFailedPrecondition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestRoomServicePause(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.client.CreateRoom(ctx)
	require.NoError(t, err)

	paused, err := f.client.SetPaused(ctx, created.State.RoomCode, true)
	require.NoError(t, err)
	assert.True(t, paused.State.IsPaused)

	resumed, err := f.client.SetPaused(ctx, created.State.RoomCode, false)
	require.NoError(t, err)
	assert.False(t, resumed.State.IsPaused)
}

func TestWebSocketStreamsStateAndNarration(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.client.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode

	conn := f.dial(t, code, "")

	first := readEnvelope(t, conn)
	assert.Equal(t, EnvelopeState, first.Type)
	require.NotNil(t, first.State)
	assert.Equal(t, code, first.State.RoomCode)

	second := readEnvelope(t, conn)
	assert.Equal(t, EnvelopeSync, second.Type)
	require.NotNil(t, second.Sync)
	assert.False(t, second.Sync.Offline)

	_, err = f.client.Join(ctx, JoinRequest{RoomCode: code, Name: "Bo"})
	require.NoError(t, err)

	var withPlayer, narration *Envelope
	for withPlayer == nil || narration == nil {
		env := readEnvelope(t, conn)
		switch {
		case env.Type == EnvelopeState && len(env.State.Players) == 1:
			withPlayer = &env
		case env.Type == EnvelopeNarration:
			narration = &env
		}
	}
	assert.Equal(t, "Bo", withPlayer.State.Players[0].Name)
	assert.Contains(t, narration.Narration, "Bo")

	assert.Eventually(t, func() bool {
		return f.svc.GetStats().RoomConnections[code] == 1
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketUnknownRoom(t *testing.T) {
	f := newGatewayFixture(t)

	u := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/room?room=NOPE"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStateAndQREndpoints(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	created, err := f.client.CreateRoom(ctx)
	require.NoError(t, err)
	code := created.State.RoomCode

	resp, err := http.Get(f.server.URL + "/api/rooms/" + code + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body RoomStateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, code, body.State.RoomCode)
	assert.Equal(t, JoinURL(testPublicURL, code), body.JoinURL)

	qr, err := http.Get(f.server.URL + "/api/rooms/" + code + "/qr.png")
	require.NoError(t, err)
	defer qr.Body.Close()
	assert.Equal(t, http.StatusOK, qr.StatusCode)
	assert.Equal(t, "image/png", qr.Header.Get("Content-Type"))

	missing, err := http.Get(f.server.URL + "/api/rooms/ZZZZ/state")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	active, err := http.Get(f.server.URL + "/api/rooms/active")
	require.NoError(t, err)
	defer active.Body.Close()
	var rooms []RoomSummary
	require.NoError(t, json.NewDecoder(active.Body).Decode(&rooms))
	require.Len(t, rooms, 1)
	assert.Equal(t, code, rooms[0].RoomCode)
}
