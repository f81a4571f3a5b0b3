package generative_client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// RoomContext is the part of the room the service sees.
type RoomContext struct {
	RoomCode string           `json:"roomCode"`
	Mode     models.Mode      `json:"mode"`
	Round    int              `json:"round"`
	History  []string         `json:"history"`
	Topic    string           `json:"topic,omitempty"`
	Players  []PlayerContext  `json:"players"`
	Question *models.Question `json:"question,omitempty"`
}

type PlayerContext struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Language string `json:"language"`
	Score    int    `json:"score"`
	Answer   string `json:"answer,omitempty"`
	Correct  *bool  `json:"correct,omitempty"`
}

type TopicsResponse struct {
	Topics []string `json:"topics"`
}

type QuestionRequest struct {
	Room  RoomContext `json:"room"`
	Topic string      `json:"topic"`
}

type RoastRequest struct {
	Room       RoomContext `json:"room"`
	IsRebuttal bool        `json:"isRebuttal"`
}

type RoastResponse struct {
	Text string `json:"text"`
}

type roomRequest struct {
	Room RoomContext `json:"room"`
}

// NewRoomContext strips a state down to what prompts need. Answers are
// resolved to option text so the service can roast them.
func NewRoomContext(state models.GameState) RoomContext {
	rc := RoomContext{
		RoomCode: state.RoomCode,
		Mode:     state.Mode,
		Round:    state.Round,
		History:  append([]string{}, state.History...),
		Topic:    state.Topic,
		Players:  make([]PlayerContext, 0, len(state.Players)),
		Question: state.CurrentQuestion,
	}
	for _, p := range state.Players {
		pc := PlayerContext{
			Name:     p.Name,
			Age:      p.Age,
			Language: p.PreferredLanguage,
			Score:    p.Score,
		}
		if q := state.CurrentQuestion; q != nil && p.LastAnswer != "" {
			if idx, err := strconv.Atoi(p.LastAnswer); err == nil && idx >= 0 && idx < len(q.Options) {
				correct := idx == q.CorrectIndex
				pc.Answer = q.Options[idx]
				pc.Correct = &correct
			}
		}
		rc.Players = append(rc.Players, pc)
	}
	return rc
}

func (c *GenerativeClient) GenerateWarmup(ctx context.Context, state models.GameState) (models.Warmup, error) {
	var out models.Warmup
	if err := c.PostJSON(ctx, WarmupEndpoint, roomRequest{Room: NewRoomContext(state)}, &out); err != nil {
		return models.Warmup{}, fmt.Errorf("failed to generate warmup: %w", err)
	}
	return out, nil
}

func (c *GenerativeClient) GenerateTopicOptions(ctx context.Context, state models.GameState) ([]string, error) {
	var out TopicsResponse
	if err := c.PostJSON(ctx, TopicsEndpoint, roomRequest{Room: NewRoomContext(state)}, &out); err != nil {
		return nil, fmt.Errorf("failed to generate topics: %w", err)
	}
	return out.Topics, nil
}

func (c *GenerativeClient) GenerateQuestion(ctx context.Context, state models.GameState, topic string) (models.Question, error) {
	var out models.Question
	req := QuestionRequest{Room: NewRoomContext(state), Topic: topic}
	if err := c.PostJSON(ctx, QuestionEndpoint, req, &out); err != nil {
		return models.Question{}, fmt.Errorf("failed to generate question: %w", err)
	}
	if err := out.Validate(); err != nil {
		return models.Question{}, fmt.Errorf("malformed question from service: %w", err)
	}
	return out, nil
}

func (c *GenerativeClient) GenerateRoast(ctx context.Context, state models.GameState, isRebuttal bool) (string, error) {
	var out RoastResponse
	req := RoastRequest{Room: NewRoomContext(state), IsRebuttal: isRebuttal}
	if err := c.PostJSON(ctx, RoastEndpoint, req, &out); err != nil {
		return "", fmt.Errorf("failed to generate roast: %w", err)
	}
	return out.Text, nil
}
