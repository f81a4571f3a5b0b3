package content

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/partytrivia/go/internal/models"
)

var (
	ErrUnknownTopic = errors.New("unknown topic")
	ErrBankEmpty    = errors.New("question bank has nothing to offer")
)

// BankFile is the YAML layout of a question bank.
type BankFile struct {
	Warmups   []models.Warmup `yaml:"warmups"`
	Topics    []BankTopic     `yaml:"topics"`
	Roasts    []string        `yaml:"roasts"`
	Rebuttals []string        `yaml:"rebuttals"`
}

type BankTopic struct {
	Name      string         `yaml:"name"`
	PartyOnly bool           `yaml:"party_only"`
	Questions []BankQuestion `yaml:"questions"`
}

type BankQuestion struct {
	Text         string            `yaml:"text"`
	Translations map[string]string `yaml:"translations"`
	Options      []string          `yaml:"options"`
	CorrectIndex int               `yaml:"correct_index"`
	Explanation  string            `yaml:"explanation"`
}

func (q BankQuestion) question() models.Question {
	return models.Question{
		Text:         q.Text,
		Translations: q.Translations,
		Options:      append([]string{}, q.Options...),
		CorrectIndex: q.CorrectIndex,
		Explanation:  q.Explanation,
	}
}

// Bank serves pre-written content from a YAML file. It needs no network,
// which makes it the provider of last resort.
type Bank struct {
	file BankFile
	intn func(n int) int

	mu   sync.Mutex
	used map[string]bool // question texts already asked
}

type BankOpt func(*Bank)

// WithBankRandom replaces the random source. intn must return a value in [0, n).
func WithBankRandom(intn func(n int) int) BankOpt {
	return func(b *Bank) { b.intn = intn }
}

// LoadBank reads and validates a bank file.
func LoadBank(path string, opts ...BankOpt) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank: %w", err)
	}
	return ParseBank(data, opts...)
}

// ParseBank validates a bank from YAML bytes.
func ParseBank(data []byte, opts ...BankOpt) (*Bank, error) {
	var file BankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}
	for _, topic := range file.Topics {
		if strings.TrimSpace(topic.Name) == "" {
			return nil, errors.New("question bank topic without a name")
		}
		for i, q := range topic.Questions {
			if err := q.question().Validate(); err != nil {
				return nil, fmt.Errorf("topic %s question %d: %w", topic.Name, i, err)
			}
		}
	}

	b := &Bank{
		file: file,
		intn: rand.IntN,
		used: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Bank) GenerateWarmup(ctx context.Context, state models.GameState) (models.Warmup, error) {
	if len(b.file.Warmups) == 0 {
		return models.Warmup{}, fmt.Errorf("warmup: %w", ErrBankEmpty)
	}
	return b.file.Warmups[b.pick(len(b.file.Warmups))], nil
}

// GenerateTopicOptions prefers topics that have not been played yet.
func (b *Bank) GenerateTopicOptions(ctx context.Context, state models.GameState) ([]string, error) {
	var fresh, played []string
	for _, t := range b.topicsFor(state.Mode) {
		if slices.ContainsFunc(state.History, func(h string) bool { return strings.EqualFold(h, t.Name) }) {
			played = append(played, t.Name)
		} else {
			fresh = append(fresh, t.Name)
		}
	}

	b.shuffle(fresh)
	b.shuffle(played)
	options := append(fresh, played...)
	if len(options) < 4 {
		return nil, fmt.Errorf("topic options: have %d topics: %w", len(options), ErrBankEmpty)
	}
	return options[:4], nil
}

// GenerateQuestion returns an unasked question for the topic, recycling
// questions once all have been used.
func (b *Bank) GenerateQuestion(ctx context.Context, state models.GameState, topic string) (models.Question, error) {
	var found *BankTopic
	topics := b.topicsFor(state.Mode)
	for i := range topics {
		if strings.EqualFold(topics[i].Name, strings.TrimSpace(topic)) {
			found = &topics[i]
			break
		}
	}
	if found == nil {
		return models.Question{}, fmt.Errorf("%w: %s", ErrUnknownTopic, topic)
	}
	if len(found.Questions) == 0 {
		return models.Question{}, fmt.Errorf("topic %s: %w", found.Name, ErrBankEmpty)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var unused []BankQuestion
	for _, q := range found.Questions {
		if !b.used[q.Text] {
			unused = append(unused, q)
		}
	}
	if len(unused) == 0 {
		for _, q := range found.Questions {
			delete(b.used, q.Text)
		}
		unused = found.Questions
	}

	q := unused[b.intn(len(unused))]
	b.used[q.Text] = true
	return q.question(), nil
}

func (b *Bank) GenerateRoast(ctx context.Context, state models.GameState, isRebuttal bool) (string, error) {
	lines := b.file.Roasts
	if isRebuttal {
		lines = b.file.Rebuttals
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("roast: %w", ErrBankEmpty)
	}
	return lines[b.pick(len(lines))], nil
}

// topicsFor hides party-only topics from family games.
func (b *Bank) topicsFor(mode models.Mode) []BankTopic {
	if mode == models.ModeParty {
		return b.file.Topics
	}
	out := make([]BankTopic, 0, len(b.file.Topics))
	for _, t := range b.file.Topics {
		if !t.PartyOnly {
			out = append(out, t)
		}
	}
	return out
}

func (b *Bank) pick(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.intn(n)
}

func (b *Bank) shuffle(s []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(s) - 1; i > 0; i-- {
		j := b.intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
