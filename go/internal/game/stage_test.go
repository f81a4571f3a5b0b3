package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from models.Stage
		ev   Event
		want models.Stage
	}{
		{models.StageLobby, EventStart, models.StageLoading},
		{models.StageLoading, EventWarmupReady, models.StageWarmup},
		{models.StageWarmup, EventChooseMaster, models.StageLoading},
		{models.StageLoading, EventTopicOptionsReady, models.StageSelectorReveal},
		{models.StageSelectorReveal, EventTimerElapsed, models.StageTopicSelection},
		{models.StageTopicSelection, EventTopicPicked, models.StageLoading},
		{models.StageLoading, EventQuestionReady, models.StageQuestion},
		{models.StageQuestion, EventReveal, models.StageLoading},
		{models.StageLoading, EventRoastReady, models.StageVotingResults},
		{models.StageVotingResults, EventScoreRound, models.StageReveal},
		{models.StageReveal, EventNextRound, models.StageLoading},
	}
	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		require.NoError(t, err, "%s on %s", tt.ev, tt.from)
		assert.Equal(t, tt.want, got)
	}
}

func TestNextRejectsJumps(t *testing.T) {
	for _, c := range []struct {
		from models.Stage
		ev   Event
	}{
		{models.StageLobby, EventScoreRound},
		{models.StageWarmup, EventToggleMode},
		{models.StageQuestion, EventTimerElapsed},
		{models.StageReveal, EventStart},
		{models.StageLoading, EventAnswer},
	} {
		_, err := Next(c.from, c.ev)
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", c.ev, c.from)
	}
}

func TestRevert(t *testing.T) {
	for _, origin := range []models.Stage{
		models.StageLobby, models.StageWarmup, models.StageTopicSelection, models.StageQuestion, models.StageReveal,
	} {
		got, err := Revert(origin)
		require.NoError(t, err)
		assert.Equal(t, origin, got)
	}

	_, err := Revert(models.StageVotingResults)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
