package gateway

import (
	"time"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// EnvelopeType tells websocket clients how to read an envelope
type EnvelopeType string

const (
	EnvelopeState     EnvelopeType = "state"
	EnvelopeNarration EnvelopeType = "narration"
	EnvelopeSync      EnvelopeType = "sync"
	EnvelopeAudio     EnvelopeType = "audio"
)

// Envelope is the only message shape written to websocket clients
type Envelope struct {
	Type      EnvelopeType      `json:"type"`
	RoomCode  string            `json:"roomCode"`
	Timestamp time.Time         `json:"timestamp"`
	State     *models.GameState `json:"state,omitempty"`
	Narration string            `json:"narration,omitempty"`
	Sync      *SyncStatus       `json:"sync,omitempty"`
	Audio     *AudioClip        `json:"audio,omitempty"`
}

// SyncStatus reports whether the room is replicated through the store
type SyncStatus struct {
	Offline bool   `json:"offline"`
	Warning string `json:"warning,omitempty"`
}

// AudioClip carries synthesized narration. Data is base64 in JSON.
type AudioClip struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
	Text        string `json:"text"`
}

func stateEnvelope(state models.GameState) *Envelope {
	s := state.Clone()
	return &Envelope{
		Type:      EnvelopeState,
		RoomCode:  state.RoomCode,
		Timestamp: time.Now().UTC(),
		State:     &s,
	}
}

func narrationEnvelope(roomCode, text string) *Envelope {
	return &Envelope{
		Type:      EnvelopeNarration,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
		Narration: text,
	}
}

func syncEnvelope(roomCode string, offline bool, warning string) *Envelope {
	return &Envelope{
		Type:      EnvelopeSync,
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
		Sync:      &SyncStatus{Offline: offline, Warning: warning},
	}
}
