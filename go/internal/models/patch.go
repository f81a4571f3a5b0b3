package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Top-level document fields. A Patch replaces whole fields, never parts of one.
const (
	FieldRoomCode        = "roomCode"
	FieldStage           = "stage"
	FieldMode            = "mode"
	FieldPlayers         = "players"
	FieldRound           = "round"
	FieldHistory         = "history"
	FieldTopicOptions    = "topicOptions"
	FieldTopic           = "topic"
	FieldTopicPickerID   = "topicPickerId"
	FieldCurrentQuestion = "currentQuestion"
	FieldHostRoast       = "hostRoast"
	FieldWarmupQuestion  = "warmupQuestion"
	FieldIsPaused        = "isPaused"
)

var knownFields = map[string]bool{
	FieldRoomCode: true, FieldStage: true, FieldMode: true, FieldPlayers: true,
	FieldRound: true, FieldHistory: true, FieldTopicOptions: true, FieldTopic: true,
	FieldTopicPickerID: true, FieldCurrentQuestion: true, FieldHostRoast: true,
	FieldWarmupQuestion: true, FieldIsPaused: true,
}

// Patch is a partial GameState keyed by top-level JSON field name.
// An explicit JSON null clears the field.
type Patch map[string]json.RawMessage

func NewPatch() Patch {
	return Patch{}
}

// set stores v under field. All values written through the typed setters
// are plain structs, slices and scalars, so encoding cannot fail.
func (p Patch) set(field string, v any) Patch {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode patch field %s: %v", field, err))
	}
	p[field] = raw
	return p
}

func (p Patch) Stage(s Stage) Patch            { return p.set(FieldStage, s) }
func (p Patch) Mode(m Mode) Patch              { return p.set(FieldMode, m) }
func (p Patch) Players(ps []Player) Patch      { return p.set(FieldPlayers, ps) }
func (p Patch) Round(r int) Patch              { return p.set(FieldRound, r) }
func (p Patch) History(h []string) Patch       { return p.set(FieldHistory, h) }
func (p Patch) TopicOptions(o []string) Patch  { return p.set(FieldTopicOptions, o) }
func (p Patch) Topic(t string) Patch           { return p.set(FieldTopic, t) }
func (p Patch) TopicPickerID(id string) Patch  { return p.set(FieldTopicPickerID, id) }
func (p Patch) HostRoast(r string) Patch       { return p.set(FieldHostRoast, r) }
func (p Patch) Paused(paused bool) Patch       { return p.set(FieldIsPaused, paused) }
func (p Patch) Question(q *Question) Patch     { return p.set(FieldCurrentQuestion, q) }
func (p Patch) WarmupQuestion(w *Warmup) Patch { return p.set(FieldWarmupQuestion, w) }

// Has reports whether the patch touches field.
func (p Patch) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// Fields returns the touched field names in sorted order.
func (p Patch) Fields() []string {
	fields := make([]string, 0, len(p))
	for f := range p {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Validate rejects fields that are not part of the document.
func (p Patch) Validate() error {
	for f := range p {
		if !knownFields[f] {
			return fmt.Errorf("unknown field %q in patch", f)
		}
	}
	return nil
}

// MergeDocument shallow-merges patch into a raw JSON document.
func MergeDocument(doc []byte, patch Patch) ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal document: %w", err)
		}
	}
	for k, v := range patch {
		fields[k] = v
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return merged, nil
}

// Merge returns a new state with the patch fields overwriting s.
func Merge(s GameState, patch Patch) (GameState, error) {
	if len(patch) == 0 {
		return s.Clone(), nil
	}
	doc, err := json.Marshal(s)
	if err != nil {
		return GameState{}, fmt.Errorf("marshal state: %w", err)
	}
	merged, err := MergeDocument(doc, patch)
	if err != nil {
		return GameState{}, err
	}
	return DecodeState(merged)
}

// DecodeState parses a stored document.
func DecodeState(doc []byte) (GameState, error) {
	var out GameState
	if err := json.Unmarshal(doc, &out); err != nil {
		return GameState{}, fmt.Errorf("unmarshal state: %w", err)
	}
	return out, nil
}
