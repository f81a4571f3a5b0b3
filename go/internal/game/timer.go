package game

import (
	"context"
	"errors"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

var errPaused = errors.New("room is paused")

// scheduleAutoAdvance arms the one-shot timer that moves SELECTOR_REVEAL to
// TOPIC_SELECTION for the given round, replacing any pending one.
func (c *Controller) scheduleAutoAdvance(round int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	timer := c.clock.NewTimer(c.cfg.AutoAdvance)
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelTimerLocked()
	c.advanceTimer = timer
	c.advanceCancel = cancel

	go func(t clockwork.Timer) {
		select {
		case <-t.Chan():
			c.autoAdvance(t, round)
		case <-ctx.Done():
			stopAndDrainTimer(t)
		}
	}(timer)

	log.Debug().Int("round", round).Dur("delay", c.cfg.AutoAdvance).Msg("scheduled auto-advance")
}

func (c *Controller) cancelAutoAdvance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
}

func (c *Controller) cancelTimerLocked() {
	if c.advanceTimer != nil {
		stopAndDrainTimer(c.advanceTimer)
		c.advanceTimer = nil
	}
	if c.advanceCancel != nil {
		c.advanceCancel()
		c.advanceCancel = nil
	}
}

// autoAdvance re-validates stage and round before moving on, so a timer
// that lost a race with a fresher transition does nothing.
func (c *Controller) autoAdvance(t clockwork.Timer, round int) {
	c.mu.Lock()
	if c.advanceTimer != t {
		c.mu.Unlock()
		return
	}
	c.advanceTimer = nil
	if c.advanceCancel != nil {
		c.advanceCancel()
		c.advanceCancel = nil
	}
	c.mu.Unlock()

	var picker models.Player
	state, err := c.sync.Update(context.Background(), func(cur models.GameState) (models.Patch, error) {
		if cur.Stage != models.StageSelectorReveal || cur.Round != round {
			return nil, ErrSuperseded
		}
		if cur.IsPaused {
			return nil, errPaused
		}
		to, err := Next(cur.Stage, EventTimerElapsed)
		if err != nil {
			return nil, err
		}
		picker, _ = cur.Player(cur.TopicPickerID)
		return models.NewPatch().Stage(to), nil
	})
	switch {
	case errors.Is(err, ErrSuperseded), errors.Is(err, errPaused):
		log.Debug().Err(err).Int("round", round).Msg("auto-advance skipped")
		return
	case err != nil:
		log.Error().Err(err).Int("round", round).Msg("auto-advance failed")
		return
	}

	out := c.outcome(state, NarrationTopicSelection, NarrationData{Picker: picker})
	if c.onOutcome != nil {
		c.onOutcome(out)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
