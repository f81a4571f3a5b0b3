package gateway

import "github.com/mcdev12/partytrivia/go/internal/models"

type CreateRoomRequest struct{}

type RoomRequest struct {
	RoomCode string `json:"roomCode"`
}

type JoinRequest struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Language string `json:"language,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
}

type SetTopicRequest struct {
	RoomCode string `json:"roomCode"`
	Topic    string `json:"topic"`
}

type SubmitAnswerRequest struct {
	RoomCode    string `json:"roomCode"`
	PlayerID    string `json:"playerId"`
	AnswerIndex int    `json:"answerIndex"`
}

type SetPausedRequest struct {
	RoomCode string `json:"roomCode"`
	Paused   bool   `json:"paused"`
}

// RoomResponse answers every action with the state it produced
type RoomResponse struct {
	State     models.GameState `json:"state"`
	Narration string           `json:"narration,omitempty"`
	Offline   bool             `json:"offline"`
	JoinURL   string           `json:"joinUrl,omitempty"`
}

type JoinResponse struct {
	Player    models.Player    `json:"player"`
	State     models.GameState `json:"state"`
	Narration string           `json:"narration,omitempty"`
}
