package roomstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// MemoryStore keeps room documents in process memory. Updates are echoed to
// subscribers asynchronously, like a remote store would. It can be switched
// into an unavailable state to exercise the offline path.
type MemoryStore struct {
	mu          sync.RWMutex
	docs        map[string][]byte
	subs        map[string]map[*memorySub]struct{}
	unavailable bool
	patches     int
}

type memorySub struct {
	*subscription
	updates chan models.GameState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		subs: make(map[string]map[*memorySub]struct{}),
	}
}

// SetUnavailable makes every subsequent call fail with ErrStoreUnavailable.
func (m *MemoryStore) SetUnavailable(unavailable bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = unavailable
}

// PatchCalls returns how many Patch calls reached the store, failed or not.
func (m *MemoryStore) PatchCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.patches
}

// DropSubscriptions fails every live subscription with ErrSubscriptionLost.
func (m *MemoryStore) DropSubscriptions() {
	for _, s := range m.detachAll() {
		s.fail(fmt.Errorf("memory store dropped subscription: %w", ErrSubscriptionLost))
		s.Cancel()
	}
}

func (m *MemoryStore) detachAll() []*memorySub {
	m.mu.Lock()
	var all []*memorySub
	for code, subs := range m.subs {
		for s := range subs {
			all = append(all, s)
		}
		delete(m.subs, code)
	}
	m.mu.Unlock()
	return all
}

func (m *MemoryStore) Create(ctx context.Context, roomCode string, initial models.GameState) error {
	raw, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomCode, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable {
		return fmt.Errorf("create room %s: %w", roomCode, ErrStoreUnavailable)
	}
	if _, exists := m.docs[roomCode]; exists {
		return fmt.Errorf("create room %s: %w", roomCode, ErrRoomExists)
	}
	m.docs[roomCode] = raw
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, roomCode string) (models.GameState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unavailable {
		return models.GameState{}, fmt.Errorf("get room %s: %w", roomCode, ErrStoreUnavailable)
	}
	doc, ok := m.docs[roomCode]
	if !ok {
		return models.GameState{}, fmt.Errorf("get room %s: %w", roomCode, ErrRoomNotFound)
	}
	return models.DecodeState(doc)
}

func (m *MemoryStore) Patch(ctx context.Context, roomCode string, patch models.Patch) error {
	m.mu.Lock()
	m.patches++
	if m.unavailable {
		m.mu.Unlock()
		return fmt.Errorf("patch room %s: %w", roomCode, ErrStoreUnavailable)
	}
	doc, ok := m.docs[roomCode]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("patch room %s: %w", roomCode, ErrRoomNotFound)
	}
	merged, err := models.MergeDocument(doc, patch)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.docs[roomCode] = merged
	targets := m.subscribersLocked(roomCode)
	m.mu.Unlock()

	state, err := models.DecodeState(merged)
	if err != nil {
		return err
	}
	for _, s := range targets {
		s.deliver(state)
	}
	return nil
}

func (m *MemoryStore) Subscribe(ctx context.Context, roomCode string, onUpdate func(models.GameState), onError func(error)) (Subscription, error) {
	m.mu.Lock()
	if m.unavailable {
		m.mu.Unlock()
		return nil, fmt.Errorf("subscribe room %s: %w", roomCode, ErrStoreUnavailable)
	}
	doc, ok := m.docs[roomCode]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("subscribe room %s: %w", roomCode, ErrRoomNotFound)
	}
	initial, err := models.DecodeState(doc)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	s := &memorySub{updates: make(chan models.GameState, 256)}
	s.subscription = newSubscription(onError, func() {
		m.mu.Lock()
		delete(m.subs[roomCode], s)
		m.mu.Unlock()
	})
	if m.subs[roomCode] == nil {
		m.subs[roomCode] = make(map[*memorySub]struct{})
	}
	m.subs[roomCode][s] = struct{}{}
	m.mu.Unlock()

	s.updates <- initial

	go func() {
		defer s.finish()
		for {
			select {
			case <-s.stop:
				return
			case state := <-s.updates:
				onUpdate(state)
			}
		}
	}()

	return s, nil
}

func (s *memorySub) deliver(state models.GameState) {
	select {
	case s.updates <- state:
	case <-s.stop:
	default:
		log.Warn().Str("room_code", state.RoomCode).Msg("memory store subscriber full, dropping update")
	}
}

func (m *MemoryStore) subscribersLocked(roomCode string) []*memorySub {
	out := make([]*memorySub, 0, len(m.subs[roomCode]))
	for s := range m.subs[roomCode] {
		out = append(out, s)
	}
	return out
}

func (m *MemoryStore) Close() error {
	for _, s := range m.detachAll() {
		s.Cancel()
	}
	return nil
}
