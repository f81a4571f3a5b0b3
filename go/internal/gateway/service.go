package gateway

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"
)

// Service bundles the room registry with everything that exposes it:
// websocket fan-out, read-only HTTP views and the RoomService RPC.
type Service struct {
	connectionManager *ConnectionManager
	rooms             *Rooms
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	rpc               *RoomService
}

type Config struct {
	ConnectionConfig ConnectionConfig
	Rooms            RoomsConfig
	PublicURL        string
	QRSize           int
}

// NewService wires the gateway. Rooms are built by build so callers pick
// the store, channel and content stack.
func NewService(cfg Config, build func(out Broadcaster) (*Rooms, error)) (*Service, error) {
	connectionManager := NewConnectionManager(cfg.ConnectionConfig)
	rooms, err := build(connectionManager)
	if err != nil {
		return nil, err
	}
	return &Service{
		connectionManager: connectionManager,
		rooms:             rooms,
		wsHandler:         NewWebSocketHandler(connectionManager, rooms),
		stateHandler:      NewStateHandler(rooms, cfg.PublicURL, cfg.QRSize),
		rpc:               NewRoomService(rooms, cfg.PublicURL),
	}, nil
}

func (s *Service) Rooms() *Rooms { return s.rooms }

// Start runs the broadcast loop until ctx is done, then closes every room
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting room gateway")
	s.connectionManager.Start(ctx)
	return s.Stop()
}

func (s *Service) Stop() error {
	err := s.rooms.Close()
	if err != nil {
		log.Error().Err(err).Msg("failed to close rooms")
	}
	log.Info().Msg("room gateway stopped")
	return err
}

func (s *Service) RegisterRoutes(mux *http.ServeMux, opts ...connect.HandlerOption) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.Handle(NewRoomServiceHandler(s.rpc, opts...))
	log.Info().Msg("room gateway routes registered")
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
