package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/models"
)

// Named pairs a provider with the name used in logs.
type Named struct {
	Name     string
	Provider game.ContentProvider
}

// Chain asks each provider in turn until one succeeds.
type Chain struct {
	providers []Named
}

func NewChain(providers ...Named) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) GenerateWarmup(ctx context.Context, state models.GameState) (models.Warmup, error) {
	return first(ctx, c, "warmup", func(p game.ContentProvider) (models.Warmup, error) {
		return p.GenerateWarmup(ctx, state)
	})
}

func (c *Chain) GenerateTopicOptions(ctx context.Context, state models.GameState) ([]string, error) {
	return first(ctx, c, "topic options", func(p game.ContentProvider) ([]string, error) {
		return p.GenerateTopicOptions(ctx, state)
	})
}

func (c *Chain) GenerateQuestion(ctx context.Context, state models.GameState, topic string) (models.Question, error) {
	return first(ctx, c, "question", func(p game.ContentProvider) (models.Question, error) {
		q, err := p.GenerateQuestion(ctx, state, topic)
		if err == nil {
			err = q.Validate()
		}
		return q, err
	})
}

func (c *Chain) GenerateRoast(ctx context.Context, state models.GameState, isRebuttal bool) (string, error) {
	return first(ctx, c, "roast", func(p game.ContentProvider) (string, error) {
		return p.GenerateRoast(ctx, state, isRebuttal)
	})
}

func first[T any](ctx context.Context, c *Chain, what string, call func(game.ContentProvider) (T, error)) (T, error) {
	var zero T
	var errs []error
	for _, named := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := call(named.Provider)
		if err == nil {
			return out, nil
		}
		log.Warn().Err(err).Str("provider", named.Name).Str("content", what).Msg("content provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", named.Name, err))
	}
	if len(errs) == 0 {
		return zero, fmt.Errorf("%s: no content providers configured", what)
	}
	return zero, errors.Join(errs...)
}
