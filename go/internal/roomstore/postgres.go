package roomstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/sqlc-dev/pqtype"

	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/sqlutil"
)

// Schema creates the rooms table used by PostgresStore.
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

type PostgresConfig struct {
	DatabaseURL          string        // Postgres DSN, also used by the LISTEN connection
	NotifyChannel        string        // Channel name to LISTEN on
	MinReconnectInterval time.Duration // pq.Listener reconnect backoff bounds
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration
	FallbackInterval     time.Duration // How often to re-read in case a notify was missed; 0 disables
}

func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		NotifyChannel:        "trivia_rooms",
		MinReconnectInterval: 10 * time.Second,
		MaxReconnectInterval: time.Minute,
		PingInterval:         90 * time.Second,
		FallbackInterval:     30 * time.Second,
	}
}

// PostgresStore keeps each room as a JSONB document and fans out changes
// with LISTEN/NOTIFY. The notify payload is the room code; subscribers
// re-read the document when their room is named.
type PostgresStore struct {
	db  *sql.DB
	cfg PostgresConfig
}

// OpenPostgres connects and pings the database.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w: %w", ErrStoreUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w: %w", ErrStoreUnavailable, err)
	}
	return NewPostgresStore(db, cfg), nil
}

func NewPostgresStore(db *sql.DB, cfg PostgresConfig) *PostgresStore {
	return &PostgresStore{db: db, cfg: cfg}
}

func (p *PostgresStore) Create(ctx context.Context, roomCode string, initial models.GameState) error {
	doc, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", roomCode, err)
	}

	_, err = p.db.ExecContext(ctx,
		`INSERT INTO rooms (room_code, doc) VALUES ($1, $2::jsonb)`,
		roomCode, doc,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("create room %s: %w", roomCode, ErrRoomExists)
		}
		return fmt.Errorf("create room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, roomCode string) (models.GameState, error) {
	var doc pqtype.NullRawMessage
	err := p.db.QueryRowContext(ctx,
		`SELECT doc FROM rooms WHERE room_code = $1`,
		roomCode,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.GameState{}, fmt.Errorf("get room %s: %w", roomCode, ErrRoomNotFound)
		}
		return models.GameState{}, fmt.Errorf("get room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}
	if !doc.Valid {
		return models.GameState{}, fmt.Errorf("get room %s: %w", roomCode, ErrRoomNotFound)
	}
	return models.DecodeState(doc.RawMessage)
}

// Patch merges the top-level fields with jsonb || and notifies listeners in
// the same transaction, so a notification never precedes its write.
func (p *PostgresStore) Patch(ctx context.Context, roomCode string, patch models.Patch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}

	var notFound bool
	err = sqlutil.Run(ctx, p.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE rooms SET doc = doc || $2::jsonb, updated_at = now() WHERE room_code = $1`,
			roomCode, body,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			notFound = true
			return ErrRoomNotFound
		}
		_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, p.cfg.NotifyChannel, roomCode)
		return err
	})
	if notFound {
		return fmt.Errorf("patch room %s: %w", roomCode, ErrRoomNotFound)
	}
	if err != nil {
		return fmt.Errorf("patch room %s: %w: %w", roomCode, ErrStoreUnavailable, err)
	}
	return nil
}

// Subscribe opens a dedicated LISTEN connection for the room.
func (p *PostgresStore) Subscribe(ctx context.Context, roomCode string, onUpdate func(models.GameState), onError func(error)) (Subscription, error) {
	l := pq.NewListener(
		p.cfg.DatabaseURL,
		p.cfg.MinReconnectInterval,
		p.cfg.MaxReconnectInterval,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Str("room_code", roomCode).Msg("listener event")
			}
		},
	)
	if err := l.Listen(p.cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w: %w", ErrStoreUnavailable, err)
	}

	initial, err := p.Get(ctx, roomCode)
	if err != nil {
		l.Close()
		return nil, err
	}

	sub := newSubscription(onError, func() {
		if err := l.Close(); err != nil {
			log.Debug().Err(err).Str("room_code", roomCode).Msg("close listener")
		}
	})

	go p.listen(sub, l, roomCode, initial, onUpdate)

	log.Info().
		Str("channel", p.cfg.NotifyChannel).
		Str("room_code", roomCode).
		Msg("listening for room changes")

	return sub, nil
}

func (p *PostgresStore) listen(sub *subscription, l *pq.Listener, roomCode string, initial models.GameState, onUpdate func(models.GameState)) {
	defer sub.finish()

	onUpdate(initial)

	pingTicker := time.NewTicker(p.cfg.PingInterval)
	defer pingTicker.Stop()

	var fallback <-chan time.Time
	if p.cfg.FallbackInterval > 0 {
		fallbackTicker := time.NewTicker(p.cfg.FallbackInterval)
		defer fallbackTicker.Stop()
		fallback = fallbackTicker.C
	}

	reload := func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		state, err := p.Get(ctx, roomCode)
		if err != nil {
			sub.fail(fmt.Errorf("reload room %s: %w: %w", roomCode, ErrSubscriptionLost, err))
			return false
		}
		onUpdate(state)
		return true
	}

	for {
		select {
		case <-sub.stop:
			return
		case note := <-l.Notify:
			if note == nil {
				// nil notification means the LISTEN connection was lost
				sub.fail(fmt.Errorf("listener connection lost: %w", ErrSubscriptionLost))
				return
			}
			if note.Extra != roomCode {
				continue
			}
			if !reload() {
				return
			}
		case <-fallback:
			if !reload() {
				return
			}
		case <-pingTicker.C:
			if err := l.Ping(); err != nil {
				log.Error().Err(err).Str("room_code", roomCode).Msg("failed to ping listener")
			}
		}
	}
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}
