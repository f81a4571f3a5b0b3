package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

func TestNarratorOverrides(t *testing.T) {
	n, err := NewNarrator(map[string]string{
		NarrationPlayerJoined: `{{ upper .Player.Name }} is here`,
		"not_a_key":           `ignored`,
	})
	require.NoError(t, err)

	got := n.Render(NarrationPlayerJoined, NarrationData{Player: models.Player{Name: "ana"}})
	assert.Equal(t, "ANA is here", got)

	got = n.Render(NarrationPlayerRejoined, NarrationData{Player: models.Player{Name: "ana"}})
	assert.Equal(t, "Welcome back, Ana.", got)

	assert.Empty(t, n.Render("not_a_key", NarrationData{}))
}

func TestNarratorRejectsBadTemplate(t *testing.T) {
	_, err := NewNarrator(map[string]string{NarrationRoast: `{{ .State.HostRoast`})
	assert.Error(t, err)
}

func TestRevealNarrationWithoutQuestion(t *testing.T) {
	n, err := NewNarrator(nil)
	require.NoError(t, err)
	assert.Empty(t, n.Render(NarrationReveal, NarrationData{State: models.NewGameState("AB12")}))
}
