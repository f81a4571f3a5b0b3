package roomstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// KVConfig holds configuration for the JetStream key-value backend
type KVConfig struct {
	URL            string
	Bucket         string
	MaxReconnects  int
	ReconnectWait  time.Duration
	TTL            time.Duration // 0 keeps rooms until the bucket is purged
	PatchAttempts  int           // compare-and-set attempts per Patch
	RequestTimeout time.Duration
}

// DefaultKVConfig returns default key-value configuration
func DefaultKVConfig() KVConfig {
	return KVConfig{
		URL:            nats.DefaultURL,
		Bucket:         "TRIVIA_ROOMS",
		MaxReconnects:  -1, // Infinite
		ReconnectWait:  2 * time.Second,
		PatchAttempts:  5,
		RequestTimeout: 5 * time.Second,
	}
}

// KVStore keeps one entry per room in a JetStream KV bucket. Patches are
// read-merge-write with the entry revision as the expected last sequence.
type KVStore struct {
	nc  *nats.Conn
	kv  jetstream.KeyValue
	cfg KVConfig

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

// OpenKV connects to NATS and creates the bucket if it does not exist.
func OpenKV(ctx context.Context, cfg KVConfig) (*KVStore, error) {
	s := &KVStore{
		cfg:  cfg,
		subs: make(map[*subscription]struct{}),
	}

	opts := []nats.Option{
		nats.Name("trivia-room-store"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
			s.failAll(fmt.Errorf("nats disconnected: %w", ErrSubscriptionLost))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w: %w", ErrStoreUnavailable, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w: %w", ErrStoreUnavailable, err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Party trivia room documents",
		History:     1,
		TTL:         cfg.TTL,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w: %w", cfg.Bucket, ErrStoreUnavailable, err)
	}

	s.nc = nc
	s.kv = kv

	log.Info().Str("bucket", cfg.Bucket).Msg("connected to room key-value store")
	return s, nil
}

func (s *KVStore) Create(ctx context.Context, roomCode string, initial models.GameState) error {
	doc, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomCode, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if _, err := s.kv.Create(ctx, roomCode, doc); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return fmt.Errorf("create room %s: %w", roomCode, ErrRoomExists)
		}
		return fmt.Errorf("create room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}
	return nil
}

func (s *KVStore) Get(ctx context.Context, roomCode string) (models.GameState, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	entry, err := s.kv.Get(ctx, roomCode)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return models.GameState{}, fmt.Errorf("get room %s: %w", roomCode, ErrRoomNotFound)
		}
		return models.GameState{}, fmt.Errorf("get room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}
	return models.DecodeState(entry.Value())
}

// Patch retries when another writer changed the entry between read and write.
func (s *KVStore) Patch(ctx context.Context, roomCode string, patch models.Patch) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < s.cfg.PatchAttempts; attempt++ {
		entry, err := s.kv.Get(ctx, roomCode)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				return fmt.Errorf("patch room %s: %w", roomCode, ErrRoomNotFound)
			}
			return fmt.Errorf("patch room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
		}

		merged, err := models.MergeDocument(entry.Value(), patch)
		if err != nil {
			return fmt.Errorf("patch room %s: %w", roomCode, err)
		}

		_, err = s.kv.Update(ctx, roomCode, merged, entry.Revision())
		if err == nil {
			return nil
		}

		var apiErr *jetstream.APIError
		if !errors.As(err, &apiErr) {
			return fmt.Errorf("patch room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
		}
		lastErr = err
		log.Debug().
			Err(err).
			Int("attempt", attempt+1).
			Str("room_code", roomCode).
			Msg("revision conflict, retrying patch")
	}

	return fmt.Errorf("patch room %s failed after %d attempts: %w: %w", roomCode, s.cfg.PatchAttempts, ErrStoreUnavailable, lastErr)
}

// Subscribe watches the room key. The watcher replays the current value
// first, then every later put.
func (s *KVStore) Subscribe(ctx context.Context, roomCode string, onUpdate func(models.GameState), onError func(error)) (Subscription, error) {
	watchCtx, cancelWatch := context.WithCancel(context.Background())

	w, err := s.kv.Watch(watchCtx, roomCode)
	if err != nil {
		cancelWatch()
		return nil, fmt.Errorf("watch room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}

	var sub *subscription
	sub = newSubscription(onError, func() {
		if err := w.Stop(); err != nil {
			log.Debug().Err(err).Str("room_code", roomCode).Msg("stop watcher")
		}
		cancelWatch()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer sub.finish()
		for {
			select {
			case <-sub.stop:
				return
			case entry, ok := <-w.Updates():
				if !ok {
					sub.fail(fmt.Errorf("watcher for room %s closed: %w", roomCode, ErrSubscriptionLost))
					return
				}
				if entry == nil {
					// initial values delivered
					continue
				}
				if entry.Operation() != jetstream.KeyValuePut {
					log.Warn().Str("room_code", roomCode).Msg("room entry removed from store")
					continue
				}
				state, err := models.DecodeState(entry.Value())
				if err != nil {
					log.Warn().Err(err).Str("room_code", roomCode).Msg("dropping malformed room document")
					continue
				}
				onUpdate(state)
			}
		}
	}()

	return sub, nil
}

func (s *KVStore) failAll(err error) {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fail(err)
	}
}

func (s *KVStore) Close() error {
	s.mu.Lock()
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	if s.nc != nil {
		s.nc.Close()
	}
	return nil
}
