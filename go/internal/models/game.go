package models

// Stage defines the phase of a room's game.
type Stage string

const (
	StageLobby          Stage = "LOBBY"
	StageLoading        Stage = "LOADING"
	StageWarmup         Stage = "WARMUP"
	StageSelectorReveal Stage = "SELECTOR_REVEAL"
	StageTopicSelection Stage = "TOPIC_SELECTION"
	StageQuestion       Stage = "QUESTION"
	StageVotingResults  Stage = "VOTING_RESULTS"
	StageReveal         Stage = "REVEAL"
)

// Mode defines the ruleset used to generate content.
type Mode string

const (
	ModeFamily Mode = "FAMILY"
	ModeParty  Mode = "PARTY"
)

// Toggle returns the other ruleset.
func (m Mode) Toggle() Mode {
	if m == ModeParty {
		return ModeFamily
	}
	return ModeParty
}

// Warmup is the icebreaker shown before the first round.
type Warmup struct {
	Question string `json:"question"`
	Hint     string `json:"hint"`
}

// GameState is the replicated document for one room.
type GameState struct {
	RoomCode        string    `json:"roomCode"`
	Stage           Stage     `json:"stage"`
	Mode            Mode      `json:"mode"`
	Players         []Player  `json:"players"`
	Round           int       `json:"round"`
	History         []string  `json:"history"`
	TopicOptions    []string  `json:"topicOptions"`
	Topic           string    `json:"topic"`
	TopicPickerID   string    `json:"topicPickerId"`
	CurrentQuestion *Question `json:"currentQuestion"`
	HostRoast       string    `json:"hostRoast"`
	WarmupQuestion  *Warmup   `json:"warmupQuestion"`
	IsPaused        bool      `json:"isPaused"`
}

// NewGameState returns the initial document for a freshly created room.
func NewGameState(roomCode string) GameState {
	return GameState{
		RoomCode:     roomCode,
		Stage:        StageLobby,
		Mode:         ModeFamily,
		Players:      []Player{},
		History:      []string{},
		TopicOptions: []string{},
	}
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s GameState) Clone() GameState {
	out := s
	out.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		out.Players[i] = p.Clone()
	}
	out.History = append([]string{}, s.History...)
	out.TopicOptions = append([]string{}, s.TopicOptions...)
	if s.CurrentQuestion != nil {
		q := s.CurrentQuestion.Clone()
		out.CurrentQuestion = &q
	}
	if s.WarmupQuestion != nil {
		w := *s.WarmupQuestion
		out.WarmupQuestion = &w
	}
	return out
}

// Player returns the player with the given id.
func (s GameState) Player(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}
