package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// StateSync is the part of the synchronizer the controller writes through.
type StateSync interface {
	State() models.GameState
	Update(ctx context.Context, fn func(current models.GameState) (models.Patch, error)) (models.GameState, error)
}

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) clockwork.Timer
}

// Outcome is the result of a transition: the state it produced and what
// the host should say about it.
type Outcome struct {
	State     models.GameState
	Narration string
}

type Config struct {
	AutoAdvance    time.Duration // SELECTOR_REVEAL to TOPIC_SELECTION
	ContentTimeout time.Duration
	SpeechTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		AutoAdvance:    4 * time.Second,
		ContentTimeout: 20 * time.Second,
		SpeechTimeout:  30 * time.Second,
	}
}

// JoinRequest describes a phone joining a room. PlayerID is the id the
// phone remembered from an earlier join, if any.
type JoinRequest struct {
	Name     string
	Age      int
	Language string
	PlayerID string
}

type Option func(*Controller)

func WithClock(c Clock) Option {
	return func(ctrl *Controller) { ctrl.clock = c }
}

func WithSpeaker(s Speaker) Option {
	return func(ctrl *Controller) { ctrl.speaker = s }
}

func WithNarrator(n *Narrator) Option {
	return func(ctrl *Controller) { ctrl.narrator = n }
}

// WithRandom replaces the picker selection source. intn must return a
// value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(ctrl *Controller) { ctrl.intn = intn }
}

// WithOutcomeHandler receives outcomes that no caller is waiting for, such
// as the auto-advance into TOPIC_SELECTION.
func WithOutcomeHandler(fn func(Outcome)) Option {
	return func(ctrl *Controller) { ctrl.onOutcome = fn }
}

// Controller is the authoritative state machine for one room.
type Controller struct {
	sync      StateSync
	content   ContentProvider
	speaker   Speaker
	narrator  *Narrator
	clock     Clock
	cfg       Config
	intn      func(n int) int
	newID     func() string
	onOutcome func(Outcome)

	// loadSeq identifies the most recent entry into LOADING
	loadSeq atomic.Uint64

	mu            sync.Mutex
	closed        bool
	advanceTimer  clockwork.Timer
	advanceCancel context.CancelFunc
}

func NewController(syncer StateSync, content ContentProvider, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		sync:    syncer,
		content: content,
		clock:   clockwork.NewRealClock(),
		cfg:     cfg,
		intn:    rand.IntN,
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.narrator == nil {
		n, err := NewNarrator(nil)
		if err != nil {
			panic(fmt.Sprintf("default narration does not parse: %v", err))
		}
		c.narrator = n
	}
	return c
}

// Join adds a player, or returns the existing one when PlayerID is known.
func (c *Controller) Join(ctx context.Context, req JoinRequest) (models.Player, Outcome, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Player{}, Outcome{}, fmt.Errorf("%w: name is required", ErrInvalidPlayer)
	}
	if req.Age < 0 {
		return models.Player{}, Outcome{}, fmt.Errorf("%w: age must not be negative", ErrInvalidPlayer)
	}

	var player models.Player
	var rejoined bool
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if req.PlayerID != "" {
			if p, ok := cur.Player(req.PlayerID); ok {
				player, rejoined = p, true
				return nil, nil
			}
		}

		id := c.newID()
		for _, taken := cur.Player(id); taken; _, taken = cur.Player(id) {
			id = c.newID()
		}
		player = models.Player{
			ID:                id,
			Name:              name,
			Age:               req.Age,
			PreferredLanguage: NormalizeLanguage(req.Language),
			Traits:            []string{},
		}
		return models.NewPatch().Players(append(cur.Clone().Players, player)), nil
	})
	if err != nil {
		return models.Player{}, Outcome{}, fmt.Errorf("failed to join room: %w", err)
	}

	key := NarrationPlayerJoined
	if rejoined {
		key = NarrationPlayerRejoined
	}
	out := c.outcome(state, key, NarrationData{Player: player})

	log.Info().
		Str("room_code", state.RoomCode).
		Str("player_id", player.ID).
		Bool("rejoined", rejoined).
		Msg("player joined")
	return player, out, nil
}

// ToggleMode flips between FAMILY and PARTY. Only allowed in the lobby.
func (c *Controller) ToggleMode(ctx context.Context) (Outcome, error) {
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if _, err := Next(cur.Stage, EventToggleMode); err != nil {
			return nil, err
		}
		return models.NewPatch().Mode(cur.Mode.Toggle()), nil
	})
	if err != nil {
		return Outcome{State: state}, err
	}

	key := NarrationModeFamily
	if state.Mode == models.ModeParty {
		key = NarrationModeParty
	}
	return c.outcome(state, key, NarrationData{}), nil
}

// StartWarmup moves LOBBY through LOADING to WARMUP with an icebreaker.
func (c *Controller) StartWarmup(ctx context.Context) (Outcome, error) {
	loading, ticket, err := c.enterLoading(ctx, func(cur models.GameState) (Event, error) {
		return EventStart, nil
	})
	if err != nil {
		return Outcome{State: loading}, err
	}

	pctx, cancel := c.contentContext(ctx)
	warmup, err := c.content.GenerateWarmup(pctx, loading)
	cancel()
	if err == nil && strings.TrimSpace(warmup.Question) == "" {
		err = errors.New("empty warmup question")
	}
	if err != nil {
		return c.abortLoading(ctx, ticket, "warmup", err)
	}

	state, err := c.finishLoading(ctx, ticket, EventWarmupReady, func(cur models.GameState) models.Patch {
		return models.NewPatch().WarmupQuestion(&warmup)
	})
	if err != nil {
		return Outcome{State: state}, err
	}
	return c.outcome(state, NarrationWarmup, NarrationData{}), nil
}

// StartTopicSelection starts a round: a random topic master is drawn and
// offered topic options, then the room auto-advances to TOPIC_SELECTION.
func (c *Controller) StartTopicSelection(ctx context.Context) (Outcome, error) {
	var picker models.Player
	loading, ticket, err := c.enterLoading(ctx, func(cur models.GameState) (Event, error) {
		if len(cur.Players) == 0 {
			return "", ErrNoPlayers
		}
		ev := EventChooseMaster
		if cur.Stage == models.StageReveal {
			ev = EventNextRound
		}
		if !Allowed(cur.Stage, ev) {
			return ev, nil
		}
		picker = cur.Players[c.intn(len(cur.Players))]
		return ev, nil
	})
	if errors.Is(err, ErrNoPlayers) {
		return c.outcome(loading, NarrationNoPlayers, NarrationData{}), err
	}
	if err != nil {
		return Outcome{State: loading}, err
	}

	pctx, cancel := c.contentContext(ctx)
	options, err := c.content.GenerateTopicOptions(pctx, loading)
	cancel()
	if err == nil {
		options, err = cleanTopicOptions(options)
	}
	if err != nil {
		return c.abortLoading(ctx, ticket, "topic options", err)
	}

	state, err := c.finishLoading(ctx, ticket, EventTopicOptionsReady, func(cur models.GameState) models.Patch {
		return models.NewPatch().
			TopicOptions(options).
			TopicPickerID(picker.ID).
			Topic("").
			Round(cur.Round + 1)
	})
	if err != nil {
		return Outcome{State: state}, err
	}

	c.scheduleAutoAdvance(state.Round)

	log.Info().
		Str("room_code", state.RoomCode).
		Int("round", state.Round).
		Str("picker_id", picker.ID).
		Msg("topic master chosen")
	return c.outcome(state, NarrationSelectorReveal, NarrationData{Picker: picker}), nil
}

// SetTopic records the picked topic and loads its question.
func (c *Controller) SetTopic(ctx context.Context, topic string) (Outcome, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Outcome{State: c.sync.State()}, fmt.Errorf("%w: topic is empty", ErrInvalidTopic)
	}

	loading, ticket, err := c.enterLoading(ctx, func(cur models.GameState) (Event, error) {
		return EventTopicPicked, nil
	})
	if err != nil {
		return Outcome{State: loading}, err
	}

	pctx, cancel := c.contentContext(ctx)
	q, err := c.content.GenerateQuestion(pctx, loading, topic)
	cancel()
	if err == nil {
		err = q.Validate()
	}
	if err != nil {
		return c.abortLoading(ctx, ticket, "question", err)
	}

	state, err := c.finishLoading(ctx, ticket, EventQuestionReady, func(cur models.GameState) models.Patch {
		players := cur.Clone().Players
		for i := range players {
			players[i].LastAnswer = ""
		}
		return models.NewPatch().
			Topic(topic).
			History(append(cur.Clone().History, topic)).
			Players(players).
			Question(&q)
	})
	if err != nil {
		return Outcome{State: state}, err
	}
	return c.outcome(state, NarrationQuestion, NarrationData{}), nil
}

// SubmitAnswer records a player's choice. Players may change their answer
// until the round is revealed.
func (c *Controller) SubmitAnswer(ctx context.Context, playerID string, answerIndex int) (Outcome, error) {
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if _, err := Next(cur.Stage, EventAnswer); err != nil {
			return nil, err
		}
		if cur.CurrentQuestion == nil || answerIndex < 0 || answerIndex >= len(cur.CurrentQuestion.Options) {
			return nil, fmt.Errorf("%w: option %d", ErrInvalidAnswer, answerIndex)
		}
		players := cur.Clone().Players
		for i := range players {
			if players[i].ID == playerID {
				players[i].LastAnswer = strconv.Itoa(answerIndex)
				return models.NewPatch().Players(players), nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	})
	return Outcome{State: state}, err
}

// RevealRound asks the host to roast the answers and shows the votes.
func (c *Controller) RevealRound(ctx context.Context) (Outcome, error) {
	loading, ticket, err := c.enterLoading(ctx, func(cur models.GameState) (Event, error) {
		return EventReveal, nil
	})
	if err != nil {
		return Outcome{State: loading}, err
	}

	pctx, cancel := c.contentContext(ctx)
	roast, err := c.content.GenerateRoast(pctx, loading, false)
	cancel()
	if err == nil && strings.TrimSpace(roast) == "" {
		err = errors.New("empty roast")
	}
	if err != nil {
		return c.abortLoading(ctx, ticket, "roast", err)
	}

	state, err := c.finishLoading(ctx, ticket, EventRoastReady, func(cur models.GameState) models.Patch {
		return models.NewPatch().HostRoast(roast)
	})
	if err != nil {
		return Outcome{State: state}, err
	}
	return c.outcome(state, NarrationRoast, NarrationData{}), nil
}

// Rebuttal lets the host answer back while results are shown. The stage
// does not change.
func (c *Controller) Rebuttal(ctx context.Context) (Outcome, error) {
	current := c.sync.State()
	if _, err := Next(current.Stage, EventRebuttal); err != nil {
		return Outcome{State: current}, err
	}

	pctx, cancel := c.contentContext(ctx)
	roast, err := c.content.GenerateRoast(pctx, current, true)
	cancel()
	if err == nil && strings.TrimSpace(roast) == "" {
		err = errors.New("empty rebuttal")
	}
	if err != nil {
		log.Warn().Err(err).Str("room_code", current.RoomCode).Msg("rebuttal generation failed")
		return c.outcome(current, NarrationContentFailed, NarrationData{}), fmt.Errorf("%w: rebuttal: %w", ErrContentProvider, err)
	}

	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if cur.Stage != models.StageVotingResults {
			return nil, ErrSuperseded
		}
		return models.NewPatch().HostRoast(roast), nil
	})
	if err != nil {
		return Outcome{State: state}, err
	}
	return c.outcome(state, NarrationRoast, NarrationData{}), nil
}

// EndRound scores the round and reveals the answer.
func (c *Controller) EndRound(ctx context.Context) (Outcome, error) {
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		to, err := Next(cur.Stage, EventScoreRound)
		if err != nil {
			return nil, err
		}
		scored := ScoreRound(cur.Players, cur.CurrentQuestion, cur.TopicPickerID)
		return models.NewPatch().Players(scored).Stage(to), nil
	})
	if err != nil {
		return Outcome{State: state}, err
	}
	c.cancelAutoAdvance()

	data := NarrationData{}
	if leader, ok := Leader(state.Players); ok {
		data.Leader = &leader
	}
	return c.outcome(state, NarrationReveal, data), nil
}

// SetPaused sets the global pause flag. The auto-advance timer is held while
// paused and restarts on resume. Setting the flag it already has leaves any
// running countdown alone.
func (c *Controller) SetPaused(ctx context.Context, paused bool) (Outcome, error) {
	var changed bool
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if cur.IsPaused == paused {
			return nil, nil
		}
		changed = true
		return models.NewPatch().Paused(paused), nil
	})
	if err != nil {
		return Outcome{State: state}, err
	}

	if paused {
		if changed {
			c.cancelAutoAdvance()
		}
		return c.outcome(state, NarrationPaused, NarrationData{}), nil
	}
	if changed && state.Stage == models.StageSelectorReveal {
		c.scheduleAutoAdvance(state.Round)
	}
	return c.outcome(state, NarrationResumed, NarrationData{}), nil
}

// Close stops the auto-advance timer. Later calls to the controller still
// work but nothing is scheduled.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelTimerLocked()
}

type loadTicket struct {
	origin models.Stage
	seq    uint64
}

// enterLoading validates and commits the move into LOADING. pick returns
// the event to apply for the current stage.
func (c *Controller) enterLoading(ctx context.Context, pick func(cur models.GameState) (Event, error)) (models.GameState, loadTicket, error) {
	var ticket loadTicket
	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		ev, err := pick(cur)
		if err != nil {
			return nil, err
		}
		to, err := Next(cur.Stage, ev)
		if err != nil {
			return nil, err
		}
		ticket = loadTicket{origin: cur.Stage, seq: c.loadSeq.Add(1)}
		return models.NewPatch().Stage(to), nil
	})
	if err != nil {
		return state, ticket, err
	}
	c.cancelAutoAdvance()
	return state, ticket, nil
}

// finishLoading applies a content result unless something newer happened
// since the load began.
func (c *Controller) finishLoading(ctx context.Context, ticket loadTicket, ev Event, build func(cur models.GameState) models.Patch) (models.GameState, error) {
	return c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if cur.Stage != models.StageLoading || c.loadSeq.Load() != ticket.seq {
			return nil, ErrSuperseded
		}
		to, err := Next(cur.Stage, ev)
		if err != nil {
			return nil, err
		}
		return build(cur).Stage(to), nil
	})
}

// abortLoading puts the room back where the failed load started so the
// same action can be retried.
func (c *Controller) abortLoading(ctx context.Context, ticket loadTicket, what string, cause error) (Outcome, error) {
	log.Warn().Err(cause).Str("content", what).Str("origin", string(ticket.origin)).Msg("content generation failed")

	state, err := c.sync.Update(ctx, func(cur models.GameState) (models.Patch, error) {
		if cur.Stage != models.StageLoading || c.loadSeq.Load() != ticket.seq {
			return nil, ErrSuperseded
		}
		to, err := Revert(ticket.origin)
		if err != nil {
			return nil, err
		}
		return models.NewPatch().Stage(to), nil
	})
	if err != nil && !errors.Is(err, ErrSuperseded) {
		log.Error().Err(err).Msg("failed to revert loading stage")
	}

	out := c.outcome(state, NarrationContentFailed, NarrationData{Hint: retryHints[what]})
	return out, fmt.Errorf("%w: %s: %w", ErrContentProvider, what, cause)
}

// contentContext bounds a provider call. It is detached from the caller's
// cancellation so a dropped request cannot strand the room in LOADING.
func (c *Controller) contentContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if c.cfg.ContentTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, c.cfg.ContentTimeout)
}

func (c *Controller) outcome(state models.GameState, key string, data NarrationData) Outcome {
	data.State = state
	text := c.narrator.Render(key, data)
	c.speak(text)
	return Outcome{State: state, Narration: text}
}

// speak hands text to the speaker without waiting for it.
func (c *Controller) speak(text string) {
	if c.speaker == nil || text == "" {
		return
	}
	go func() {
		ctx := context.Background()
		if c.cfg.SpeechTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.cfg.SpeechTimeout)
			defer cancel()
		}
		if err := c.speaker.Speak(ctx, text); err != nil {
			log.Debug().Err(err).Msg("speech failed")
		}
	}()
}

func cleanTopicOptions(options []string) ([]string, error) {
	if len(options) != TopicOptionCount {
		return nil, fmt.Errorf("got %d topic options, want %d", len(options), TopicOptionCount)
	}
	out := make([]string, 0, len(options))
	for _, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return nil, errors.New("empty topic option")
		}
		out = append(out, o)
	}
	return out, nil
}
