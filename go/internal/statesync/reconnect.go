package statesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
)

// scheduleProbeLocked arms a one-shot timer that retries the store. Each
// failed probe doubles the delay up to RetryMax; after RetryAttempts the
// synchronizer stays offline for the rest of the session.
func (s *Synchronizer) scheduleProbeLocked() {
	if s.store == nil || s.closed || s.cfg.RetryAttempts <= 0 {
		return
	}
	if s.attempts >= s.cfg.RetryAttempts {
		log.Warn().
			Str("room_code", s.roomCode).
			Int("attempts", s.attempts).
			Msg("giving up on store reconnect, staying on local fallback")
		return
	}

	delay := s.backoff(s.attempts)
	timer := s.clock.NewTimer(delay)
	ctx, cancel := context.WithCancel(context.Background())
	s.replaceProbeLocked(timer, cancel)

	go func(t clockwork.Timer) {
		select {
		case <-t.Chan():
			s.runProbe(ctx, t)
		case <-ctx.Done():
			stopAndDrainTimer(t)
		}
	}(timer)

	log.Debug().
		Str("room_code", s.roomCode).
		Dur("delay", delay).
		Int("attempt", s.attempts+1).
		Msg("scheduled store reconnect probe")
}

func (s *Synchronizer) backoff(attempt int) time.Duration {
	d := s.cfg.RetryInitial
	if d <= 0 {
		d = time.Second
	}
	for i := 0; i < attempt; i++ {
		d *= 2
		if s.cfg.RetryMax > 0 && d >= s.cfg.RetryMax {
			return s.cfg.RetryMax
		}
	}
	return d
}

func (s *Synchronizer) runProbe(ctx context.Context, t clockwork.Timer) {
	s.mu.Lock()
	if s.closed || !s.offline || s.probeTimer != t {
		s.mu.Unlock()
		return
	}
	if s.probeCancel != nil {
		defer s.probeCancel()
	}
	s.probeTimer = nil
	s.probeCancel = nil
	s.attempts++

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	if err := s.reconnectLocked(reqCtx); err != nil {
		log.Warn().
			Err(err).
			Str("room_code", s.roomCode).
			Int("attempt", s.attempts).
			Msg("store still unavailable")
		s.scheduleProbeLocked()
		s.mu.Unlock()
		return
	}

	s.offline = false
	s.attempts = 0
	log.Info().Str("room_code", s.roomCode).Msg("store reachable again, leaving local fallback")
	s.release(&Update{State: s.state.Clone(), Offline: false, Warning: WarningSyncRestored}, nil)
}

// reconnectLocked re-reads the stored room and replays only the fields
// written while offline on top of it, then opens a fresh subscription. A
// room that never reached the store is created from the local state.
func (s *Synchronizer) reconnectLocked(ctx context.Context) error {
	stored, err := s.store.Get(ctx, s.roomCode)
	switch {
	case errors.Is(err, roomstore.ErrRoomNotFound):
		if err := s.store.Create(ctx, s.roomCode, s.state); err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		stored = s.state
	case err != nil:
		return fmt.Errorf("read room: %w", err)
	case len(s.dirty) > 0:
		if err := s.store.Patch(ctx, s.roomCode, s.dirty); err != nil {
			return fmt.Errorf("replay offline writes: %w", err)
		}
		if stored, err = models.Merge(stored, s.dirty); err != nil {
			return fmt.Errorf("merge offline writes: %w", err)
		}
	}

	if err := s.subscribeLocked(ctx); err != nil {
		return fmt.Errorf("resubscribe: %w", err)
	}
	s.state = stored
	s.dirty = nil
	return nil
}

// replaceProbeLocked cancels any pending probe before storing the new one.
func (s *Synchronizer) replaceProbeLocked(t clockwork.Timer, cancel context.CancelFunc) {
	s.cancelProbeLocked()
	s.probeTimer = t
	s.probeCancel = cancel
}

func (s *Synchronizer) cancelProbeLocked() {
	if s.probeTimer != nil {
		stopAndDrainTimer(s.probeTimer)
		s.probeTimer = nil
	}
	if s.probeCancel != nil {
		s.probeCancel()
		s.probeCancel = nil
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
