package game

import (
	"strconv"
	"strings"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

const (
	CorrectAnswerPoints = 100
	PickerBonusPoints   = 50
)

// ScoreRound returns a copy of players with this round's points added.
// The picker bonus only goes to a picker who also answered correctly.
func ScoreRound(players []models.Player, q *models.Question, pickerID string) []models.Player {
	out := make([]models.Player, len(players))
	for i, p := range players {
		out[i] = p.Clone()
	}
	if q == nil {
		return out
	}

	for i := range out {
		idx, err := strconv.Atoi(strings.TrimSpace(out[i].LastAnswer))
		if err != nil || idx != q.CorrectIndex {
			continue
		}
		out[i].Score += CorrectAnswerPoints
		if out[i].ID == pickerID {
			out[i].Score += PickerBonusPoints
		}
	}
	return out
}

// Leader returns the highest scorer, earliest joiner on ties.
func Leader(players []models.Player) (models.Player, bool) {
	if len(players) == 0 {
		return models.Player{}, false
	}
	best := players[0]
	for _, p := range players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}
	return best, true
}
