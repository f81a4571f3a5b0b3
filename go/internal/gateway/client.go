package gateway

import (
	"context"
	"strings"

	"connectrpc.com/connect"
)

// RoomServiceClient calls trivia.v1.RoomService
type RoomServiceClient struct {
	createRoom          *connect.Client[CreateRoomRequest, RoomResponse]
	getState            *connect.Client[RoomRequest, RoomResponse]
	join                *connect.Client[JoinRequest, JoinResponse]
	toggleMode          *connect.Client[RoomRequest, RoomResponse]
	startWarmup         *connect.Client[RoomRequest, RoomResponse]
	startTopicSelection *connect.Client[RoomRequest, RoomResponse]
	setTopic            *connect.Client[SetTopicRequest, RoomResponse]
	submitAnswer        *connect.Client[SubmitAnswerRequest, RoomResponse]
	revealRound         *connect.Client[RoomRequest, RoomResponse]
	rebuttal            *connect.Client[RoomRequest, RoomResponse]
	endRound            *connect.Client[RoomRequest, RoomResponse]
	setPaused           *connect.Client[SetPausedRequest, RoomResponse]
}

func NewRoomServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *RoomServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSONCodec()}, opts...)
	return &RoomServiceClient{
		createRoom:          connect.NewClient[CreateRoomRequest, RoomResponse](httpClient, baseURL+RoomServiceCreateRoomProcedure, opts...),
		getState:            connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceGetStateProcedure, opts...),
		join:                connect.NewClient[JoinRequest, JoinResponse](httpClient, baseURL+RoomServiceJoinProcedure, opts...),
		toggleMode:          connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceToggleModeProcedure, opts...),
		startWarmup:         connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceStartWarmupProcedure, opts...),
		startTopicSelection: connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceStartTopicSelectionProcedure, opts...),
		setTopic:            connect.NewClient[SetTopicRequest, RoomResponse](httpClient, baseURL+RoomServiceSetTopicProcedure, opts...),
		submitAnswer:        connect.NewClient[SubmitAnswerRequest, RoomResponse](httpClient, baseURL+RoomServiceSubmitAnswerProcedure, opts...),
		revealRound:         connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceRevealRoundProcedure, opts...),
		rebuttal:            connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceRebuttalProcedure, opts...),
		endRound:            connect.NewClient[RoomRequest, RoomResponse](httpClient, baseURL+RoomServiceEndRoundProcedure, opts...),
		setPaused:           connect.NewClient[SetPausedRequest, RoomResponse](httpClient, baseURL+RoomServiceSetPausedProcedure, opts...),
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], msg *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *RoomServiceClient) CreateRoom(ctx context.Context) (*RoomResponse, error) {
	return call(ctx, c.createRoom, &CreateRoomRequest{})
}

func (c *RoomServiceClient) GetState(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.getState, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) Join(ctx context.Context, req JoinRequest) (*JoinResponse, error) {
	return call(ctx, c.join, &req)
}

func (c *RoomServiceClient) ToggleMode(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.toggleMode, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) StartWarmup(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.startWarmup, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) StartTopicSelection(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.startTopicSelection, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) SetTopic(ctx context.Context, roomCode, topic string) (*RoomResponse, error) {
	return call(ctx, c.setTopic, &SetTopicRequest{RoomCode: roomCode, Topic: topic})
}

func (c *RoomServiceClient) SubmitAnswer(ctx context.Context, roomCode, playerID string, answerIndex int) (*RoomResponse, error) {
	return call(ctx, c.submitAnswer, &SubmitAnswerRequest{RoomCode: roomCode, PlayerID: playerID, AnswerIndex: answerIndex})
}

func (c *RoomServiceClient) RevealRound(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.revealRound, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) Rebuttal(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.rebuttal, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) EndRound(ctx context.Context, roomCode string) (*RoomResponse, error) {
	return call(ctx, c.endRound, &RoomRequest{RoomCode: roomCode})
}

func (c *RoomServiceClient) SetPaused(ctx context.Context, roomCode string, paused bool) (*RoomResponse, error) {
	return call(ctx, c.setPaused, &SetPausedRequest{RoomCode: roomCode, Paused: paused})
}
