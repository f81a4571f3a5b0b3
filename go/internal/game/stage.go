package game

import (
	"fmt"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// Event is something that moves a room between stages.
type Event string

const (
	EventStart             Event = "start"
	EventWarmupReady       Event = "warmup_ready"
	EventChooseMaster      Event = "choose_master"
	EventTopicOptionsReady Event = "topic_options_ready"
	EventTimerElapsed      Event = "timer_elapsed"
	EventTopicPicked       Event = "topic_picked"
	EventQuestionReady     Event = "question_ready"
	EventReveal            Event = "reveal"
	EventRoastReady        Event = "roast_ready"
	EventScoreRound        Event = "score_round"
	EventNextRound         Event = "next_round"

	// events that keep the stage
	EventToggleMode Event = "toggle_mode"
	EventAnswer     Event = "answer"
	EventRebuttal   Event = "rebuttal"
)

var transitions = map[models.Stage]map[Event]models.Stage{
	models.StageLobby: {
		EventStart:      models.StageLoading,
		EventToggleMode: models.StageLobby,
	},
	models.StageWarmup: {
		EventChooseMaster: models.StageLoading,
	},
	models.StageSelectorReveal: {
		EventTimerElapsed: models.StageTopicSelection,
	},
	models.StageTopicSelection: {
		EventTopicPicked: models.StageLoading,
	},
	models.StageQuestion: {
		EventReveal: models.StageLoading,
		EventAnswer: models.StageQuestion,
	},
	models.StageVotingResults: {
		EventScoreRound: models.StageReveal,
		EventRebuttal:   models.StageVotingResults,
	},
	models.StageReveal: {
		EventNextRound: models.StageLoading,
	},
	models.StageLoading: {
		EventWarmupReady:       models.StageWarmup,
		EventTopicOptionsReady: models.StageSelectorReveal,
		EventQuestionReady:     models.StageQuestion,
		EventRoastReady:        models.StageVotingResults,
	},
}

// Next returns the stage reached from `from` on ev, or ErrInvalidTransition.
func Next(from models.Stage, ev Event) (models.Stage, error) {
	to, ok := transitions[from][ev]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// Revert returns the stage a room goes back to when content for a load that
// started at origin failed. Only stages with an edge into LOADING qualify.
func Revert(origin models.Stage) (models.Stage, error) {
	for _, to := range transitions[origin] {
		if to == models.StageLoading {
			return origin, nil
		}
	}
	return "", fmt.Errorf("%w: cannot revert loading to %s", ErrInvalidTransition, origin)
}

// Allowed reports whether ev is legal in stage.
func Allowed(stage models.Stage, ev Event) bool {
	_, ok := transitions[stage][ev]
	return ok
}
