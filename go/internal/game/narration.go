package game

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

// Narration template keys.
const (
	NarrationPlayerJoined   = "player_joined"
	NarrationPlayerRejoined = "player_rejoined"
	NarrationModeFamily     = "mode_family"
	NarrationModeParty      = "mode_party"
	NarrationWarmup         = "warmup"
	NarrationSelectorReveal = "selector_reveal"
	NarrationTopicSelection = "topic_selection"
	NarrationQuestion       = "question"
	NarrationRoast          = "roast"
	NarrationReveal         = "reveal"
	NarrationPaused         = "paused"
	NarrationResumed        = "resumed"
	NarrationNoPlayers      = "no_players"
	NarrationContentFailed  = "content_failed"
)

// DefaultNarration is used for every key not overridden in configuration.
var DefaultNarration = map[string]string{
	NarrationPlayerJoined:   `{{ .Player.Name | title }} has entered the studio!`,
	NarrationPlayerRejoined: `Welcome back, {{ .Player.Name | title }}.`,
	NarrationModeFamily:     `Family mode is on. Keep it wholesome, everyone.`,
	NarrationModeParty:      `Party mode is on. Things are about to get spicy.`,
	NarrationWarmup:         `Warm up time! {{ with .State.WarmupQuestion }}{{ .Question }}{{ end }}`,
	NarrationSelectorReveal: `Round {{ .State.Round }}. {{ .Picker.Name | title }}, you are the topic master!`,
	NarrationTopicSelection: `{{ .Picker.Name | title }}, choose wisely: {{ join ", " .State.TopicOptions }}.`,
	NarrationQuestion:       `{{ upper .State.Topic }}! {{ with .State.CurrentQuestion }}{{ .Text }}{{ end }}`,
	NarrationRoast:          `{{ .State.HostRoast }}`,
	NarrationReveal:         `{{ with .State.CurrentQuestion }}The answer was {{ index .Options .CorrectIndex }}. {{ end }}{{ with .Leader }}{{ .Name | title }} leads with {{ .Score }} points.{{ end }}`,
	NarrationPaused:         `Game paused.`,
	NarrationResumed:        `And we're back!`,
	NarrationNoPlayers:      `We need at least one player before we can start.`,
	NarrationContentFailed:  `Our writers dropped the script. {{ default "Try that again." .Hint }}`,
}

// retryHints finish the content_failed line for each kind of content.
var retryHints = map[string]string{
	"warmup":        "Let's try that icebreaker again.",
	"topic options": "Spin up the topics again.",
	"question":      "Pick that topic again for a fresh question.",
	"roast":         "Reveal again and I'll find my words.",
}

// NarrationData is what templates can reference.
type NarrationData struct {
	State  models.GameState
	Player models.Player
	Picker models.Player
	Leader *models.Player
	Hint   string
}

// Narrator renders host lines from templates.
type Narrator struct {
	templates map[string]*template.Template
}

// NewNarrator parses the defaults with overrides applied on top.
func NewNarrator(overrides map[string]string) (*Narrator, error) {
	n := &Narrator{templates: make(map[string]*template.Template)}
	for key, text := range DefaultNarration {
		if o, ok := overrides[key]; ok {
			text = o
		}
		tmpl, err := template.New(key).Funcs(sprig.TxtFuncMap()).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse narration %s: %w", key, err)
		}
		n.templates[key] = tmpl
	}
	for key := range overrides {
		if _, ok := DefaultNarration[key]; !ok {
			log.Warn().Str("key", key).Msg("ignoring unknown narration template")
		}
	}
	return n, nil
}

// Render executes the template for key. Failures are logged and yield "".
func (n *Narrator) Render(key string, data NarrationData) string {
	tmpl, ok := n.templates[key]
	if !ok {
		log.Warn().Str("key", key).Msg("no narration template")
		return ""
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to render narration")
		return ""
	}
	return strings.TrimSpace(buf.String())
}
