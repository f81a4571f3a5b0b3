package content

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

type brokenProvider struct {
	err   error
	calls int
}

func (b *brokenProvider) GenerateWarmup(context.Context, models.GameState) (models.Warmup, error) {
	b.calls++
	return models.Warmup{}, b.err
}

func (b *brokenProvider) GenerateTopicOptions(context.Context, models.GameState) ([]string, error) {
	b.calls++
	return nil, b.err
}

func (b *brokenProvider) GenerateQuestion(context.Context, models.GameState, string) (models.Question, error) {
	b.calls++
	if b.err != nil {
		return models.Question{}, b.err
	}
	return models.Question{Text: "bad", Options: []string{"only one"}}, nil
}

func (b *brokenProvider) GenerateRoast(context.Context, models.GameState, bool) (string, error) {
	b.calls++
	return "", b.err
}

func TestChainFallsThrough(t *testing.T) {
	bank, err := ParseBank([]byte(smallBank), WithBankRandom(firstIndex))
	require.NoError(t, err)
	broken := &brokenProvider{err: errors.New("service down")}
	chain := NewChain(Named{Name: "generative", Provider: broken}, Named{Name: "bank", Provider: bank})
	ctx := context.Background()
	state := models.NewGameState("AB12")

	w, err := chain.GenerateWarmup(ctx, state)
	require.NoError(t, err)
	assert.Equal(t, "Cats or dogs?", w.Question)

	roast, err := chain.GenerateRoast(ctx, state, true)
	require.NoError(t, err)
	assert.Equal(t, "double ouch", roast)
	assert.Equal(t, 2, broken.calls)
}

func TestChainSkipsInvalidQuestions(t *testing.T) {
	bank, err := ParseBank([]byte(smallBank), WithBankRandom(firstIndex))
	require.NoError(t, err)
	chain := NewChain(Named{Name: "sloppy", Provider: &brokenProvider{}}, Named{Name: "bank", Provider: bank})

	q, err := chain.GenerateQuestion(context.Background(), models.NewGameState("AB12"), "Pizza")
	require.NoError(t, err)
	assert.Equal(t, "Margherita city?", q.Text)
}

func TestChainReportsEveryFailure(t *testing.T) {
	down := errors.New("down")
	chain := NewChain(Named{Name: "a", Provider: &brokenProvider{err: down}}, Named{Name: "b", Provider: &brokenProvider{err: down}})

	_, err := chain.GenerateTopicOptions(context.Background(), models.NewGameState("AB12"))
	require.Error(t, err)
	assert.ErrorIs(t, err, down)
	assert.Contains(t, err.Error(), "a: down")
	assert.Contains(t, err.Error(), "b: down")

	_, err = NewChain().GenerateRoast(context.Background(), models.NewGameState("AB12"), false)
	assert.Error(t, err)
}
