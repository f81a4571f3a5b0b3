package game

import (
	"context"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// ContentProvider generates everything the host says or asks. Any call may
// fail; the controller treats failures as recoverable.
type ContentProvider interface {
	GenerateWarmup(ctx context.Context, state models.GameState) (models.Warmup, error)
	GenerateTopicOptions(ctx context.Context, state models.GameState) ([]string, error)
	GenerateQuestion(ctx context.Context, state models.GameState, topic string) (models.Question, error)
	GenerateRoast(ctx context.Context, state models.GameState, isRebuttal bool) (string, error)
}

// Speaker voices narration. Calls are fire-and-forget.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// TopicOptionCount is how many topics the picker chooses from.
const TopicOptionCount = 4
