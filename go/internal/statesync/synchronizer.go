package statesync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/broadcast"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
)

var (
	ErrClosed            = errors.New("synchronizer closed")
	ErrNotAttached       = errors.New("synchronizer is not attached to a room")
	ErrAlreadyAttached   = errors.New("synchronizer is already attached to a room")
	ErrImmutableRoomCode = errors.New("room code cannot be changed")
	ErrEmptyRoomCode     = errors.New("room code is empty")
)

// Host-visible connectivity messages.
const (
	WarningSyncLost     = "cloud sync lost, operating on local fallback"
	WarningSyncRestored = "cloud sync restored"
)

// Config controls room creation and how the synchronizer probes the store
// after going offline.
type Config struct {
	RetryInitial   time.Duration
	RetryMax       time.Duration
	RetryAttempts  int // probes per outage, 0 disables reconnecting
	RequestTimeout time.Duration
	CreateAttempts int // fresh codes to try when a code is already taken
}

func DefaultConfig() Config {
	return Config{
		RetryInitial:   time.Second,
		RetryMax:       30 * time.Second,
		RetryAttempts:  8,
		RequestTimeout: 5 * time.Second,
		CreateAttempts: 3,
	}
}

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Update is delivered to watchers every time the local state changes.
type Update struct {
	State   models.GameState
	Offline bool
	Warning string
}

type Option func(*Synchronizer)

func WithClock(c Clock) Option {
	return func(s *Synchronizer) {
		s.clock = c
	}
}

// Synchronizer owns the local copy of one room's GameState and decides per
// write whether it goes to the replicated store or the local channel.
type Synchronizer struct {
	cfg     Config
	store   roomstore.Store
	channel *broadcast.Channel
	clock   Clock
	id      string

	remote Transport
	local  Transport

	mu          sync.Mutex
	attached    bool
	closed      bool
	roomCode    string
	state       models.GameState
	offline     bool
	gen         uint64 // bumped whenever the store subscription is replaced
	echoes      int    // store deliveries still owed for our own writes
	storeSub    roomstore.Subscription
	localStop   func()
	probeTimer  clockwork.Timer
	probeCancel context.CancelFunc
	attempts    int
	dirty       models.Patch // fields written locally while offline

	// notifyMu is taken before mu is released so watchers see updates in
	// the order they were produced.
	notifyMu   sync.Mutex
	watchersMu sync.Mutex
	watchers   map[uint64]func(Update)
	nextWatch  uint64
}

// New creates an unattached synchronizer. store may be nil, in which case
// every write goes to the local channel.
func New(store roomstore.Store, channel *broadcast.Channel, cfg Config, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		cfg:      cfg,
		store:    store,
		channel:  channel,
		clock:    clockwork.NewRealClock(),
		id:       uuid.New().String()[:8],
		watchers: make(map[uint64]func(Update)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if store != nil {
		s.remote = storeTransport{store: store}
	}
	s.local = localTransport{channel: channel, origin: s.id}
	return s
}

// ID identifies this synchronizer on the local channel.
func (s *Synchronizer) ID() string { return s.id }

// CreateRoom generates a fresh room and makes it the local source of truth.
// When the store cannot create it the synchronizer starts offline.
func (s *Synchronizer) CreateRoom(ctx context.Context) (models.GameState, error) {
	s.mu.Lock()
	if err := s.bindableLocked(); err != nil {
		s.mu.Unlock()
		return models.GameState{}, err
	}

	state := models.NewGameState(NewRoomCode())
	var err error
	if s.store != nil {
		attempts := max(1, s.cfg.CreateAttempts)
		for i := 0; i < attempts; i++ {
			err = s.store.Create(ctx, state.RoomCode, state)
			if !errors.Is(err, roomstore.ErrRoomExists) {
				break
			}
			log.Debug().Str("room_code", state.RoomCode).Msg("room code taken, generating another")
			state = models.NewGameState(NewRoomCode())
		}
	}

	s.bindLocked(state)

	var stale roomstore.Subscription
	var warning string
	switch {
	case s.store == nil:
		s.offline = true
	case err != nil:
		log.Warn().Err(err).Str("room_code", state.RoomCode).Msg("failed to create room in store, starting on local fallback")
		stale, warning = s.goOfflineLocked(), WarningSyncLost
	default:
		if err := s.subscribeLocked(ctx); err != nil {
			log.Warn().Err(err).Str("room_code", state.RoomCode).Msg("failed to subscribe to new room")
			stale, warning = s.goOfflineLocked(), WarningSyncLost
		}
	}

	log.Info().
		Str("room_code", state.RoomCode).
		Str("session_id", s.id).
		Bool("offline", s.offline).
		Msg("room created")

	s.release(&Update{State: state.Clone(), Offline: s.offline, Warning: warning}, stale)
	return state.Clone(), nil
}

// Attach binds the synchronizer to an existing room. An unknown room is an
// error. So is an unreachable store: without the stored document there is
// nothing to base later writes on.
func (s *Synchronizer) Attach(ctx context.Context, roomCode string) (models.GameState, error) {
	roomCode = strings.ToUpper(strings.TrimSpace(roomCode))
	if roomCode == "" {
		return models.GameState{}, ErrEmptyRoomCode
	}

	s.mu.Lock()
	if err := s.bindableLocked(); err != nil {
		s.mu.Unlock()
		return models.GameState{}, err
	}

	if s.store == nil {
		s.bindLocked(models.NewGameState(roomCode))
		s.offline = true
		state := s.state.Clone()
		s.release(&Update{State: state, Offline: true}, nil)
		return state, nil
	}

	current, err := s.store.Get(ctx, roomCode)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, roomstore.ErrRoomNotFound) {
			return models.GameState{}, err
		}
		log.Warn().Err(err).Str("room_code", roomCode).Msg("store unavailable on attach")
		if !errors.Is(err, roomstore.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", roomstore.ErrStoreUnavailable, err)
		}
		return models.GameState{}, err
	}

	var stale roomstore.Subscription
	var warning string
	s.bindLocked(current)
	if err := s.subscribeLocked(ctx); err != nil {
		log.Warn().Err(err).Str("room_code", roomCode).Msg("failed to subscribe to room")
		stale, warning = s.goOfflineLocked(), WarningSyncLost
	}

	state := s.state.Clone()
	s.release(&Update{State: state, Offline: s.offline, Warning: warning}, stale)
	return state, nil
}

// Commit merges patch into the local state and propagates it.
func (s *Synchronizer) Commit(ctx context.Context, patch models.Patch) (models.GameState, error) {
	return s.Update(ctx, func(models.GameState) (models.Patch, error) {
		return patch, nil
	})
}

// Update computes a patch from the freshest local state and commits it.
// fn runs with the synchronizer locked and must not call back into it.
// Store failures never surface here: they switch the synchronizer to the
// local channel instead.
func (s *Synchronizer) Update(ctx context.Context, fn func(current models.GameState) (models.Patch, error)) (models.GameState, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.GameState{}, ErrClosed
	}
	if !s.attached {
		s.mu.Unlock()
		return models.GameState{}, ErrNotAttached
	}

	current := s.state.Clone()
	patch, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return current, err
	}
	if len(patch) == 0 {
		s.mu.Unlock()
		return current, nil
	}
	if patch.Has(models.FieldRoomCode) {
		s.mu.Unlock()
		return current, ErrImmutableRoomCode
	}
	if err := patch.Validate(); err != nil {
		s.mu.Unlock()
		return current, err
	}

	next, err := models.Merge(s.state, patch)
	if err != nil {
		s.mu.Unlock()
		return current, fmt.Errorf("merge patch: %w", err)
	}

	var stale roomstore.Subscription
	var warning string
	if s.onlineLocked() {
		if err := s.remote.Send(ctx, s.roomCode, patch, next); err == nil {
			s.echoes++
		} else {
			log.Warn().
				Err(err).
				Str("room_code", s.roomCode).
				Strs("fields", patch.Fields()).
				Msg("store write failed, switching to local fallback")
			stale, warning = s.goOfflineLocked(), WarningSyncLost
		}
	}
	if !s.onlineLocked() {
		s.markDirtyLocked(patch)
		if err := s.local.Send(ctx, s.roomCode, patch, next); err != nil {
			log.Error().Err(err).Str("room_code", s.roomCode).Msg("failed to publish on local channel")
		}
	}

	s.state = next
	s.release(&Update{State: next.Clone(), Offline: s.offline, Warning: warning}, stale)
	return next.Clone(), nil
}

// State returns a copy of the current local state.
func (s *Synchronizer) State() models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

func (s *Synchronizer) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomCode
}

// Offline reports whether writes currently go to the local channel only.
func (s *Synchronizer) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline
}

// Watch registers fn for every later update. fn must not block or call
// back into the synchronizer. The returned cancel is idempotent.
func (s *Synchronizer) Watch(fn func(Update)) func() {
	s.watchersMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.watchersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.watchersMu.Lock()
			delete(s.watchers, id)
			s.watchersMu.Unlock()
		})
	}
}

// Close releases the store subscription, the local channel subscription
// and any pending reconnect probe.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelProbeLocked()
	sub := s.storeSub
	s.storeSub = nil
	localStop := s.localStop
	s.localStop = nil
	s.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if localStop != nil {
		localStop()
	}

	s.watchersMu.Lock()
	s.watchers = make(map[uint64]func(Update))
	s.watchersMu.Unlock()

	log.Debug().Str("room_code", s.roomCode).Str("session_id", s.id).Msg("synchronizer closed")
	return nil
}

func (s *Synchronizer) bindableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.attached {
		return ErrAlreadyAttached
	}
	return nil
}

func (s *Synchronizer) bindLocked(state models.GameState) {
	s.attached = true
	s.roomCode = state.RoomCode
	s.state = state

	if s.channel == nil {
		return
	}
	stop, err := s.channel.SubscribeEnvelopes(state.RoomCode, s.onLocal)
	if err != nil {
		log.Error().Err(err).Str("room_code", state.RoomCode).Msg("failed to subscribe to local channel")
		return
	}
	s.localStop = stop
}

// markDirtyLocked records patch for replay once the store is back. Only a
// synchronizer with a store ever replays.
func (s *Synchronizer) markDirtyLocked(patch models.Patch) {
	if s.store == nil {
		return
	}
	if s.dirty == nil {
		s.dirty = models.NewPatch()
	}
	for field, raw := range patch {
		s.dirty[field] = raw
	}
}

func (s *Synchronizer) onlineLocked() bool {
	return !s.offline && s.store != nil && s.roomCode != ""
}

func (s *Synchronizer) subscribeLocked(ctx context.Context) error {
	s.gen++
	gen := s.gen
	sub, err := s.store.Subscribe(ctx, s.roomCode, s.onStoreUpdate(gen), s.onStoreError(gen))
	if err != nil {
		return err
	}
	s.storeSub = sub
	s.echoes = 1 // the initial read
	return nil
}

// goOfflineLocked switches to the local channel and starts probing the
// store. The returned subscription must be cancelled after mu is released.
func (s *Synchronizer) goOfflineLocked() roomstore.Subscription {
	s.offline = true
	s.gen++
	stale := s.storeSub
	s.storeSub = nil
	s.attempts = 0
	s.scheduleProbeLocked()
	return stale
}

func (s *Synchronizer) onStoreUpdate(gen uint64) func(models.GameState) {
	return func(state models.GameState) {
		s.mu.Lock()
		if s.closed || s.offline || gen != s.gen {
			s.mu.Unlock()
			return
		}
		if state.RoomCode != s.roomCode {
			s.mu.Unlock()
			log.Warn().Str("room_code", s.roomCode).Str("got", state.RoomCode).Msg("ignoring store update for another room")
			return
		}
		// skip deliveries older than the echo of our latest write
		if s.echoes > 0 {
			s.echoes--
			if s.echoes > 0 {
				s.mu.Unlock()
				return
			}
		}
		s.state = state
		s.release(&Update{State: state.Clone(), Offline: false}, nil)
	}
}

// onStoreError hands off to another goroutine because the subscription
// cannot be cancelled from its own callback.
func (s *Synchronizer) onStoreError(gen uint64) func(error) {
	return func(err error) {
		go s.subscriptionLost(gen, err)
	}
}

func (s *Synchronizer) subscriptionLost(gen uint64, err error) {
	s.mu.Lock()
	if s.closed || s.offline || gen != s.gen {
		s.mu.Unlock()
		return
	}
	log.Warn().Err(err).Str("room_code", s.roomCode).Msg("store subscription lost, switching to local fallback")
	stale := s.goOfflineLocked()
	s.release(&Update{State: s.state.Clone(), Offline: true, Warning: WarningSyncLost}, stale)
}

func (s *Synchronizer) onLocal(env broadcast.Envelope) {
	if env.Origin == s.id {
		return
	}
	s.mu.Lock()
	if s.closed || !s.offline || env.State.RoomCode != s.roomCode {
		s.mu.Unlock()
		return
	}
	s.state = env.State
	s.release(&Update{State: env.State.Clone(), Offline: true}, nil)
}

// release unlocks mu, then delivers upd and cancels stale. Callers must
// hold mu.
func (s *Synchronizer) release(upd *Update, stale roomstore.Subscription) {
	if upd == nil {
		s.mu.Unlock()
	} else {
		s.notifyMu.Lock()
		s.mu.Unlock()
		s.dispatch(*upd)
		s.notifyMu.Unlock()
	}
	if stale != nil {
		stale.Cancel()
	}
}

func (s *Synchronizer) dispatch(upd Update) {
	s.watchersMu.Lock()
	fns := make([]func(Update), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.watchersMu.Unlock()

	for _, fn := range fns {
		fn(upd)
	}
}
