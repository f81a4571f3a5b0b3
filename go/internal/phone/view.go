package phone

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

const DefaultWidth = 40

// Prompt says what input the phone expects in a state
type Prompt int

const (
	PromptNone Prompt = iota
	PromptTopic
	PromptAnswer
)

// PromptFor decides what playerID may do right now
func PromptFor(state models.GameState, playerID string) Prompt {
	if state.IsPaused {
		return PromptNone
	}
	switch state.Stage {
	case models.StageTopicSelection:
		if state.TopicPickerID == playerID && len(state.TopicOptions) > 0 {
			return PromptTopic
		}
	case models.StageQuestion:
		if state.CurrentQuestion != nil {
			return PromptAnswer
		}
	}
	return PromptNone
}

// Render draws the phone screen for playerID, wrapped to width columns
func Render(state models.GameState, playerID string, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}

	var b strings.Builder
	me, _ := state.Player(playerID)
	fmt.Fprintf(&b, "Room %s | %s | %d pts\n", state.RoomCode, me.Name, me.Score)
	b.WriteString(strings.Repeat("-", width))
	b.WriteString("\n")

	if state.IsPaused {
		b.WriteString("Paused.\n")
		return b.String()
	}

	switch state.Stage {
	case models.StageLobby:
		fmt.Fprintf(&b, "Waiting for the host. %d in the room.\n", len(state.Players))
	case models.StageLoading:
		b.WriteString("The host is thinking...\n")
	case models.StageWarmup:
		if state.WarmupQuestion != nil {
			b.WriteString(wordwrap.String(state.WarmupQuestion.Question, width))
			b.WriteString("\n")
		}
	case models.StageSelectorReveal:
		if picker, ok := state.Player(state.TopicPickerID); ok {
			if picker.ID == playerID {
				b.WriteString("You are the topic master!\n")
			} else {
				fmt.Fprintf(&b, "%s is picking the topic.\n", picker.Name)
			}
		}
	case models.StageTopicSelection:
		if state.TopicPickerID != playerID {
			b.WriteString("Waiting for the topic...\n")
			break
		}
		b.WriteString("Pick a topic:\n")
		writeChoices(&b, state.TopicOptions, -1, width)
	case models.StageQuestion:
		q := state.CurrentQuestion
		if q == nil {
			break
		}
		fmt.Fprintf(&b, "Round %d: %s\n", state.Round, state.Topic)
		b.WriteString(wordwrap.String(q.Text, width))
		b.WriteString("\n")
		writeChoices(&b, q.Options, answerIndex(me), width)
	case models.StageVotingResults:
		b.WriteString(wordwrap.String(state.HostRoast, width))
		b.WriteString("\n")
	case models.StageReveal:
		if q := state.CurrentQuestion; q != nil && q.CorrectIndex >= 0 && q.CorrectIndex < len(q.Options) {
			b.WriteString(wordwrap.String("Answer: "+q.Options[q.CorrectIndex], width))
			b.WriteString("\n")
			if idx := answerIndex(me); idx == q.CorrectIndex {
				b.WriteString("You got it!\n")
			} else if idx >= 0 {
				b.WriteString("Not this time.\n")
			}
		}
	}
	return b.String()
}

func writeChoices(b *strings.Builder, options []string, chosen, width int) {
	for i, opt := range options {
		marker := " "
		if i == chosen {
			marker = "*"
		}
		prefix := fmt.Sprintf("%s%d) ", marker, i+1)
		wrapped := wordwrap.String(opt, width-len(prefix))
		indent := "\n" + strings.Repeat(" ", len(prefix))
		b.WriteString(prefix)
		b.WriteString(strings.ReplaceAll(wrapped, "\n", indent))
		b.WriteString("\n")
	}
}

func answerIndex(p models.Player) int {
	if p.LastAnswer == "" {
		return -1
	}
	idx, err := strconv.Atoi(p.LastAnswer)
	if err != nil {
		return -1
	}
	return idx
}
