package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

const (
	subjectPrefix   = "trivia.local"
	fallbackSubject = subjectPrefix + ".lobby"
)

var ErrClosed = errors.New("local channel closed")

// Subject returns the broadcast subject for a room.
func Subject(roomCode string) string {
	if roomCode == "" {
		return fallbackSubject
	}
	return subjectPrefix + "." + roomCode
}

// Channel is the same-process fallback for state propagation. It runs an
// embedded NATS server that never opens a network listener, so messages
// cannot leave the device.
type Channel struct {
	ns   *server.Server
	conn *nats.Conn

	startupTimeout time.Duration
	serverName     string

	mu     sync.Mutex
	closed bool
}

// NewChannel starts the embedded server and connects to it in-process.
func NewChannel(opts ...ChannelOpt) (*Channel, error) {
	c := &Channel{
		startupTimeout: 10 * time.Second,
		serverName:     "trivia-local",
	}
	for _, opt := range opts {
		opt(c)
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: c.serverName,
		DontListen: true,
		NoSigs:     true,
		NoLog:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("create local nats server: %w", err)
	}

	ns.Start()
	if !ns.ReadyForConnections(c.startupTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("local nats server not ready for connections")
	}

	conn, err := nats.Connect(ns.ClientURL(), nats.InProcessServer(ns), nats.Name(c.serverName))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connect to local nats server: %w", err)
	}

	c.ns = ns
	c.conn = conn

	log.Debug().Str("server", c.serverName).Msg("local fallback channel started")
	return c, nil
}

// OriginHeader carries the id of the publishing session.
const OriginHeader = "Trivia-Origin"

// Envelope is a state received from the channel along with the id of the
// session that published it. Origin is empty for anonymous publishes.
type Envelope struct {
	Origin string
	State  models.GameState
}

// Publish broadcasts the full state to every subscriber of the room,
// including subscribers owned by the caller.
func (c *Channel) Publish(roomCode string, state models.GameState) error {
	return c.PublishFrom("", roomCode, state)
}

// PublishFrom is Publish with the publisher's session id attached.
func (c *Channel) PublishFrom(origin, roomCode string, state models.GameState) error {
	if c.isClosed() {
		return ErrClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	msg := nats.NewMsg(Subject(roomCode))
	msg.Data = data
	if origin != "" {
		msg.Header.Set(OriginHeader, origin)
	}
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	return nil
}

// Subscribe calls handler for every state published on the room, in order.
// The returned cancel function is safe to call more than once.
func (c *Channel) Subscribe(roomCode string, handler func(models.GameState)) (func(), error) {
	return c.SubscribeEnvelopes(roomCode, func(env Envelope) {
		handler(env.State)
	})
}

// SubscribeEnvelopes is Subscribe with the publisher's session id exposed.
func (c *Channel) SubscribeEnvelopes(roomCode string, handler func(Envelope)) (func(), error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	subject := Subject(roomCode)
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		state, err := models.DecodeState(msg.Data)
		if err != nil {
			log.Warn().Err(err).Str("subject", subject).Msg("dropping malformed local state")
			return
		}
		handler(Envelope{Origin: msg.Header.Get(OriginHeader), State: state})
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
				log.Debug().Err(err).Str("subject", subject).Msg("unsubscribe local channel")
			}
		})
	}, nil
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Flush waits until the server has processed everything published so far.
func (c *Channel) Flush() error {
	return c.conn.Flush()
}

// Close drains subscriptions and shuts the embedded server down.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.conn.Close()
	c.ns.Shutdown()
	c.ns.WaitForShutdown()

	log.Debug().Str("server", c.serverName).Msg("local fallback channel stopped")
	return nil
}
