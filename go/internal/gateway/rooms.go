package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/clients/generative_client"
	"github.com/mcdev12/partytrivia/go/internal/broadcast"
	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrClosed       = errors.New("gateway closed")
)

// Synthesizer turns narration into audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (generative_client.Speech, error)
}

// Broadcaster is where rooms publish envelopes
type Broadcaster interface {
	BroadcastToRoom(roomCode string, env *Envelope)
}

// RoomsConfig carries what every room session is built from
type RoomsConfig struct {
	Sync      statesync.Config
	Game      game.Config
	Narration map[string]string
}

// Room is one session: its synchronizer and the controller writing through it
type Room struct {
	Code       string
	Sync       *statesync.Synchronizer
	Controller *game.Controller

	unwatch func()
}

// Close stops the controller and releases the room's subscriptions
func (r *Room) Close() error {
	r.Controller.Close()
	r.unwatch()
	return r.Sync.Close()
}

// Rooms owns the room sessions served by this process
type Rooms struct {
	store   roomstore.Store
	channel *broadcast.Channel
	content game.ContentProvider
	synth   Synthesizer
	out     Broadcaster
	cfg     RoomsConfig

	syncOpts []statesync.Option
	gameOpts []game.Option

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

type RoomsOption func(*Rooms)

// WithSynthesizer voices narration and broadcasts it as audio envelopes
func WithSynthesizer(s Synthesizer) RoomsOption {
	return func(r *Rooms) { r.synth = s }
}

func WithSyncOptions(opts ...statesync.Option) RoomsOption {
	return func(r *Rooms) { r.syncOpts = append(r.syncOpts, opts...) }
}

func WithGameOptions(opts ...game.Option) RoomsOption {
	return func(r *Rooms) { r.gameOpts = append(r.gameOpts, opts...) }
}

// NewRooms builds a registry. store may be nil, in which case rooms live
// only on the local channel.
func NewRooms(store roomstore.Store, channel *broadcast.Channel, content game.ContentProvider, out Broadcaster, cfg RoomsConfig, opts ...RoomsOption) (*Rooms, error) {
	if _, err := game.NewNarrator(cfg.Narration); err != nil {
		return nil, err
	}
	r := &Rooms{
		store:   store,
		channel: channel,
		content: content,
		out:     out,
		cfg:     cfg,
		rooms:   make(map[string]*Room),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Create starts a new room hosted by this process
func (r *Rooms) Create(ctx context.Context) (*Room, models.GameState, error) {
	room, err := r.newRoom()
	if err != nil {
		return nil, models.GameState{}, err
	}

	state, err := room.Sync.CreateRoom(ctx)
	if err != nil {
		room.Close()
		return nil, models.GameState{}, fmt.Errorf("failed to create room: %w", err)
	}
	room.Code = state.RoomCode

	if err := r.register(room); err != nil {
		room.Close()
		return nil, models.GameState{}, err
	}
	return room, state, nil
}

// Open returns the session for code, attaching to the store when this
// process has not seen the room yet.
func (r *Rooms) Open(ctx context.Context, code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: empty room code", ErrRoomNotFound)
	}
	if room, err := r.Get(code); err == nil {
		return room, nil
	} else if errors.Is(err, ErrClosed) {
		return nil, err
	}
	if r.store == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}

	room, err := r.newRoom()
	if err != nil {
		return nil, err
	}
	if _, err := room.Sync.Attach(ctx, code); err != nil {
		room.Close()
		if errors.Is(err, roomstore.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
		}
		return nil, fmt.Errorf("failed to attach room %s: %w", code, err)
	}
	room.Code = code

	if err := r.register(room); err != nil {
		room.Close()
		if existing, getErr := r.Get(code); getErr == nil {
			return existing, nil
		}
		return nil, err
	}
	return room, nil
}

// Get returns a room this process already serves
func (r *Rooms) Get(code string) (*Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrClosed
	}
	room, ok := r.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return room, nil
}

// Remove closes and forgets a room
func (r *Rooms) Remove(code string) error {
	r.mu.Lock()
	room, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, code)
	}
	return room.Close()
}

// Codes lists the rooms this process serves
func (r *Rooms) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, 0, len(r.rooms))
	for code := range r.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Close closes every room. The store and channel belong to the caller.
func (r *Rooms) Close() error {
	r.mu.Lock()
	r.closed = true
	rooms := r.rooms
	r.rooms = make(map[string]*Room)
	r.mu.Unlock()

	var errs []error
	for code, room := range rooms {
		if err := room.Close(); err != nil {
			errs = append(errs, fmt.Errorf("room %s: %w", code, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Rooms) register(room *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if _, exists := r.rooms[room.Code]; exists {
		return fmt.Errorf("room %s already open", room.Code)
	}
	r.rooms[room.Code] = room
	log.Info().Str("room_code", room.Code).Int("rooms", len(r.rooms)).Msg("room registered")
	return nil
}

func (r *Rooms) newRoom() (*Room, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	narrator, err := game.NewNarrator(r.cfg.Narration)
	if err != nil {
		return nil, err
	}

	room := &Room{}
	syncer := statesync.New(r.store, r.channel, r.cfg.Sync, r.syncOpts...)
	room.Sync = syncer
	room.unwatch = syncer.Watch(func(upd statesync.Update) {
		code := upd.State.RoomCode
		r.out.BroadcastToRoom(code, stateEnvelope(upd.State))
		if upd.Warning != "" {
			r.out.BroadcastToRoom(code, syncEnvelope(code, upd.Offline, upd.Warning))
		}
	})

	opts := []game.Option{
		game.WithNarrator(narrator),
		game.WithOutcomeHandler(func(o game.Outcome) {
			r.Announce(o)
		}),
	}
	if r.synth != nil {
		opts = append(opts, game.WithSpeaker(&roomSpeaker{synth: r.synth, out: r.out, syncer: syncer}))
	}
	opts = append(opts, r.gameOpts...)
	room.Controller = game.NewController(syncer, r.content, r.cfg.Game, opts...)
	return room, nil
}

// Announce broadcasts the narration of an outcome, if it has any
func (r *Rooms) Announce(o game.Outcome) {
	if o.Narration == "" || o.State.RoomCode == "" {
		return
	}
	r.out.BroadcastToRoom(o.State.RoomCode, narrationEnvelope(o.State.RoomCode, o.Narration))
}

// roomSpeaker voices narration and ships the audio to the room's screens
type roomSpeaker struct {
	synth  Synthesizer
	out    Broadcaster
	syncer *statesync.Synchronizer
}

func (s *roomSpeaker) Speak(ctx context.Context, text string) error {
	speech, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	code := s.syncer.RoomCode()
	s.out.BroadcastToRoom(code, &Envelope{
		Type:      EnvelopeAudio,
		RoomCode:  code,
		Timestamp: time.Now().UTC(),
		Audio: &AudioClip{
			ContentType: speech.ContentType,
			Data:        speech.Audio,
			Text:        text,
		},
	})
	return nil
}
