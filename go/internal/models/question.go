package models

import (
	"errors"
	"fmt"
)

var ErrInvalidQuestion = errors.New("invalid question")

// Question is the active multiple-choice question of a round.
type Question struct {
	Text         string            `json:"text"`
	Translations map[string]string `json:"translations,omitempty"`
	Options      []string          `json:"options"`
	CorrectIndex int               `json:"correctIndex"`
	Explanation  string            `json:"explanation"`
}

// Validate enforces that the correct index points into the options.
func (q Question) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidQuestion)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: need at least 2 options, got %d", ErrInvalidQuestion, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
	}
	return nil
}

// TextFor returns the localized text for lang, falling back to Text.
func (q Question) TextFor(lang string) string {
	if t, ok := q.Translations[lang]; ok && t != "" {
		return t
	}
	return q.Text
}

func (q Question) Clone() Question {
	out := q
	out.Options = append([]string{}, q.Options...)
	if q.Translations != nil {
		out.Translations = make(map[string]string, len(q.Translations))
		for k, v := range q.Translations {
			out.Translations[k] = v
		}
	}
	return out
}
