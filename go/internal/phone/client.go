package phone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/gateway"
	"github.com/mcdev12/partytrivia/go/internal/models"
)

var ErrNotJoined = errors.New("phone has not joined a room")

// Profile is what a player types in before joining
type Profile struct {
	Name     string
	Age      int
	Language string
}

// Client is the phone-role controller for one room
type Client struct {
	serverURL string
	rpc       *gateway.RoomServiceClient
	identity  *Identity
	dialer    *websocket.Dialer

	mu       sync.Mutex
	roomCode string
	player   models.Player
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.rpc = gateway.NewRoomServiceClient(h, c.serverURL)
	}
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// NewClient talks to the server at serverURL. identity may be nil, in
// which case every join creates a new player.
func NewClient(serverURL string, identity *Identity, opts ...Option) *Client {
	serverURL = strings.TrimRight(serverURL, "/")
	c := &Client{
		serverURL: serverURL,
		rpc:       gateway.NewRoomServiceClient(&http.Client{Timeout: 30 * time.Second}, serverURL),
		identity:  identity,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ServerFromJoinURL splits a scanned join URL into server address and room
func ServerFromJoinURL(joinURL string) (serverURL, roomCode string, err error) {
	roomCode, err = gateway.RoomCodeFromURL(joinURL)
	if err != nil {
		return "", "", err
	}
	u, err := url.Parse(joinURL)
	if err != nil {
		return "", "", fmt.Errorf("parse join url: %w", err)
	}
	return u.Scheme + "://" + u.Host, roomCode, nil
}

// Join enters roomCode, reusing the player id remembered for it
func (c *Client) Join(ctx context.Context, roomCode string, profile Profile) (models.Player, models.GameState, error) {
	roomCode = normalizeCode(roomCode)

	var known string
	if c.identity != nil {
		id, ok, err := c.identity.PlayerID(roomCode)
		if err != nil {
			log.Warn().Err(err).Msg("failed to read saved identity")
		} else if ok {
			known = id
		}
	}

	resp, err := c.rpc.Join(ctx, gateway.JoinRequest{
		RoomCode: roomCode,
		Name:     profile.Name,
		Age:      profile.Age,
		Language: profile.Language,
		PlayerID: known,
	})
	if err != nil {
		return models.Player{}, models.GameState{}, fmt.Errorf("failed to join room %s: %w", roomCode, err)
	}

	if c.identity != nil && resp.Player.ID != known {
		if err := c.identity.Remember(roomCode, resp.Player.ID); err != nil {
			log.Warn().Err(err).Msg("failed to save identity")
		}
	}

	c.mu.Lock()
	c.roomCode = roomCode
	c.player = resp.Player
	c.mu.Unlock()

	log.Info().
		Str("room_code", roomCode).
		Str("player_id", resp.Player.ID).
		Bool("rejoined", known != "" && known == resp.Player.ID).
		Msg("joined room")
	return resp.Player, resp.State, nil
}

func (c *Client) Player() models.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

func (c *Client) RoomCode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomCode
}

// Answer submits this player's choice for the current question
func (c *Client) Answer(ctx context.Context, index int) (models.GameState, error) {
	room, player, err := c.joined()
	if err != nil {
		return models.GameState{}, err
	}
	resp, err := c.rpc.SubmitAnswer(ctx, room, player.ID, index)
	if err != nil {
		return models.GameState{}, err
	}
	return resp.State, nil
}

// PickTopic chooses the round topic. The server does not check who picks;
// the phone only offers it to the topic master.
func (c *Client) PickTopic(ctx context.Context, topic string) (models.GameState, error) {
	room, _, err := c.joined()
	if err != nil {
		return models.GameState{}, err
	}
	resp, err := c.rpc.SetTopic(ctx, room, topic)
	if err != nil {
		return models.GameState{}, err
	}
	return resp.State, nil
}

// Watch streams room envelopes to fn until ctx is done or the socket drops
func (c *Client) Watch(ctx context.Context, fn func(gateway.Envelope)) error {
	room, player, err := c.joined()
	if err != nil {
		return err
	}

	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/room"
	u.RawQuery = url.Values{"room": {room}, "player_id": {player.ID}}.Encode()

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to open room stream: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("room stream closed: %w", err)
		}
		var env gateway.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed envelope")
			continue
		}
		fn(env)
	}
}

func (c *Client) joined() (string, models.Player, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.roomCode == "" {
		return "", models.Player{}, ErrNotJoined
	}
	return c.roomCode, c.player, nil
}

// IsCode reports whether err carries the Connect code
func IsCode(err error, code connect.Code) bool {
	return err != nil && connect.CodeOf(err) == code
}
