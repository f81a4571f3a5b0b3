package gateway

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

const RoomServiceName = "trivia.v1.RoomService"

const (
	RoomServiceCreateRoomProcedure          = "/trivia.v1.RoomService/CreateRoom"
	RoomServiceGetStateProcedure            = "/trivia.v1.RoomService/GetState"
	RoomServiceJoinProcedure                = "/trivia.v1.RoomService/Join"
	RoomServiceToggleModeProcedure          = "/trivia.v1.RoomService/ToggleMode"
	RoomServiceStartWarmupProcedure         = "/trivia.v1.RoomService/StartWarmup"
	RoomServiceStartTopicSelectionProcedure = "/trivia.v1.RoomService/StartTopicSelection"
	RoomServiceSetTopicProcedure            = "/trivia.v1.RoomService/SetTopic"
	RoomServiceSubmitAnswerProcedure        = "/trivia.v1.RoomService/SubmitAnswer"
	RoomServiceRevealRoundProcedure         = "/trivia.v1.RoomService/RevealRound"
	RoomServiceRebuttalProcedure            = "/trivia.v1.RoomService/Rebuttal"
	RoomServiceEndRoundProcedure            = "/trivia.v1.RoomService/EndRound"
	RoomServiceSetPausedProcedure           = "/trivia.v1.RoomService/SetPaused"
)

// RoomServiceHandler is the server side of trivia.v1.RoomService
type RoomServiceHandler interface {
	CreateRoom(context.Context, *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error)
	GetState(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	Join(context.Context, *connect.Request[JoinRequest]) (*connect.Response[JoinResponse], error)
	ToggleMode(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	StartWarmup(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	StartTopicSelection(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	SetTopic(context.Context, *connect.Request[SetTopicRequest]) (*connect.Response[RoomResponse], error)
	SubmitAnswer(context.Context, *connect.Request[SubmitAnswerRequest]) (*connect.Response[RoomResponse], error)
	RevealRound(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	Rebuttal(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	EndRound(context.Context, *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error)
	SetPaused(context.Context, *connect.Request[SetPausedRequest]) (*connect.Response[RoomResponse], error)
}

// NewRoomServiceHandler mounts svc under /trivia.v1.RoomService/ using the
// JSON codec.
func NewRoomServiceHandler(svc RoomServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSONCodec()}, opts...)
	handlers := map[string]http.Handler{
		RoomServiceCreateRoomProcedure:          connect.NewUnaryHandler(RoomServiceCreateRoomProcedure, svc.CreateRoom, opts...),
		RoomServiceGetStateProcedure:            connect.NewUnaryHandler(RoomServiceGetStateProcedure, svc.GetState, opts...),
		RoomServiceJoinProcedure:                connect.NewUnaryHandler(RoomServiceJoinProcedure, svc.Join, opts...),
		RoomServiceToggleModeProcedure:          connect.NewUnaryHandler(RoomServiceToggleModeProcedure, svc.ToggleMode, opts...),
		RoomServiceStartWarmupProcedure:         connect.NewUnaryHandler(RoomServiceStartWarmupProcedure, svc.StartWarmup, opts...),
		RoomServiceStartTopicSelectionProcedure: connect.NewUnaryHandler(RoomServiceStartTopicSelectionProcedure, svc.StartTopicSelection, opts...),
		RoomServiceSetTopicProcedure:            connect.NewUnaryHandler(RoomServiceSetTopicProcedure, svc.SetTopic, opts...),
		RoomServiceSubmitAnswerProcedure:        connect.NewUnaryHandler(RoomServiceSubmitAnswerProcedure, svc.SubmitAnswer, opts...),
		RoomServiceRevealRoundProcedure:         connect.NewUnaryHandler(RoomServiceRevealRoundProcedure, svc.RevealRound, opts...),
		RoomServiceRebuttalProcedure:            connect.NewUnaryHandler(RoomServiceRebuttalProcedure, svc.Rebuttal, opts...),
		RoomServiceEndRoundProcedure:            connect.NewUnaryHandler(RoomServiceEndRoundProcedure, svc.EndRound, opts...),
		RoomServiceSetPausedProcedure:           connect.NewUnaryHandler(RoomServiceSetPausedProcedure, svc.SetPaused, opts...),
	}
	return "/" + RoomServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// RoomService implements RoomServiceHandler on top of the room registry
type RoomService struct {
	rooms     *Rooms
	publicURL string
}

func NewRoomService(rooms *Rooms, publicURL string) *RoomService {
	return &RoomService{rooms: rooms, publicURL: publicURL}
}

var _ RoomServiceHandler = (*RoomService)(nil)

// CreateRoom starts a room hosted by this process
func (s *RoomService) CreateRoom(ctx context.Context, req *connect.Request[CreateRoomRequest]) (*connect.Response[RoomResponse], error) {
	room, state, err := s.rooms.Create(ctx)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RoomResponse{
		State:   state,
		Offline: room.Sync.Offline(),
		JoinURL: JoinURL(s.publicURL, state.RoomCode),
	}), nil
}

func (s *RoomService) GetState(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	room, err := s.rooms.Open(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&RoomResponse{
		State:   room.Sync.State(),
		Offline: room.Sync.Offline(),
		JoinURL: JoinURL(s.publicURL, room.Code),
	}), nil
}

func (s *RoomService) Join(ctx context.Context, req *connect.Request[JoinRequest]) (*connect.Response[JoinResponse], error) {
	room, err := s.rooms.Open(ctx, req.Msg.RoomCode)
	if err != nil {
		return nil, connectError(err)
	}
	player, out, err := room.Controller.Join(ctx, game.JoinRequest{
		Name:     req.Msg.Name,
		Age:      req.Msg.Age,
		Language: req.Msg.Language,
		PlayerID: req.Msg.PlayerID,
	})
	s.rooms.Announce(out)
	if err != nil {
		return nil, connectError(err)
	}
	return connect.NewResponse(&JoinResponse{
		Player:    player,
		State:     out.State,
		Narration: out.Narration,
	}), nil
}

func (s *RoomService) ToggleMode(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.ToggleMode(ctx)
	})
}

func (s *RoomService) StartWarmup(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.StartWarmup(ctx)
	})
}

func (s *RoomService) StartTopicSelection(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.StartTopicSelection(ctx)
	})
}

func (s *RoomService) SetTopic(ctx context.Context, req *connect.Request[SetTopicRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.SetTopic(ctx, req.Msg.Topic)
	})
}

func (s *RoomService) SubmitAnswer(ctx context.Context, req *connect.Request[SubmitAnswerRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.SubmitAnswer(ctx, req.Msg.PlayerID, req.Msg.AnswerIndex)
	})
}

func (s *RoomService) RevealRound(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.RevealRound(ctx)
	})
}

func (s *RoomService) Rebuttal(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.Rebuttal(ctx)
	})
}

func (s *RoomService) EndRound(ctx context.Context, req *connect.Request[RoomRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.EndRound(ctx)
	})
}

func (s *RoomService) SetPaused(ctx context.Context, req *connect.Request[SetPausedRequest]) (*connect.Response[RoomResponse], error) {
	return s.act(ctx, req.Msg.RoomCode, func(c *game.Controller) (game.Outcome, error) {
		return c.SetPaused(ctx, req.Msg.Paused)
	})
}

// act runs one controller operation. Narration is announced even when the
// operation fails so the room hears about content failures.
func (s *RoomService) act(ctx context.Context, roomCode string, op func(*game.Controller) (game.Outcome, error)) (*connect.Response[RoomResponse], error) {
	room, err := s.rooms.Open(ctx, roomCode)
	if err != nil {
		return nil, connectError(err)
	}
	out, err := op(room.Controller)
	s.rooms.Announce(out)
	if err != nil {
		log.Debug().Err(err).Str("room_code", room.Code).Msg("room action rejected")
		return nil, connectError(err)
	}
	return connect.NewResponse(&RoomResponse{
		State:     out.State,
		Narration: out.Narration,
		Offline:   room.Sync.Offline(),
	}), nil
}

// connectError maps domain errors onto Connect codes
func connectError(err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, game.ErrPlayerNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, game.ErrInvalidPlayer), errors.Is(err, game.ErrInvalidAnswer),
		errors.Is(err, game.ErrInvalidTopic), errors.Is(err, statesync.ErrEmptyRoomCode):
		code = connect.CodeInvalidArgument
	case errors.Is(err, game.ErrInvalidTransition), errors.Is(err, game.ErrNoPlayers),
		errors.Is(err, game.ErrSuperseded):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, game.ErrContentProvider), errors.Is(err, game.ErrClosed),
		errors.Is(err, statesync.ErrClosed), errors.Is(err, ErrClosed),
		errors.Is(err, roomstore.ErrStoreUnavailable):
		code = connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	}
	return connect.NewError(code, err)
}
