package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/gateway"
	"github.com/mcdev12/partytrivia/go/internal/models"
	"github.com/mcdev12/partytrivia/go/internal/phone"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	name := flag.String("name", os.Getenv("PHONE_NAME"), "player name")
	age := flag.Int("age", envInt("PHONE_AGE", 0), "player age")
	lang := flag.String("lang", os.Getenv("PHONE_LANGUAGE"), "preferred language, e.g. en or pt-BR")
	width := flag.Int("width", phone.DefaultWidth, "screen width")
	identityPath := flag.String("identity", "", "identity file (default: user config dir)")
	flag.Parse()

	if flag.NArg() != 1 || *name == "" {
		fmt.Fprintln(os.Stderr, "usage: phone -name NAME [-age N] [-lang L] <join url>")
		os.Exit(2)
	}

	serverURL, roomCode, err := phone.ServerFromJoinURL(flag.Arg(0))
	if err != nil {
		log.Fatal().Err(err).Msg("invalid join url")
	}

	path := *identityPath
	if path == "" {
		if path, err = phone.DefaultIdentityPath(); err != nil {
			log.Fatal().Err(err).Msg("failed to locate identity file")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := phone.NewClient(serverURL, phone.NewIdentity(path))
	player, state, err := client.Join(ctx, roomCode, phone.Profile{Name: *name, Age: *age, Language: *lang})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to join")
	}

	screen := &screen{width: *width, playerID: player.ID}
	screen.show(state)

	go func() {
		err := client.Watch(ctx, func(env gateway.Envelope) {
			switch env.Type {
			case gateway.EnvelopeState:
				if env.State != nil {
					screen.show(*env.State)
				}
			case gateway.EnvelopeNarration:
				screen.say(env.Narration)
			case gateway.EnvelopeSync:
				if env.Sync != nil && env.Sync.Warning != "" {
					screen.say("[" + env.Sync.Warning + "]")
				}
			}
		})
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("lost connection to room")
		}
		cancel()
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			handleInput(ctx, client, screen, strings.TrimSpace(line))
		}
	}
}

func handleInput(ctx context.Context, client *phone.Client, s *screen, line string) {
	n, err := strconv.Atoi(line)
	if err != nil || n < 1 {
		s.say("enter the number of your choice")
		return
	}

	state := s.current()
	switch phone.PromptFor(state, client.Player().ID) {
	case phone.PromptTopic:
		if n > len(state.TopicOptions) {
			s.say("no such topic")
			return
		}
		_, err = client.PickTopic(ctx, state.TopicOptions[n-1])
	case phone.PromptAnswer:
		_, err = client.Answer(ctx, n-1)
	default:
		s.say("nothing to choose right now")
		return
	}
	if err != nil {
		s.say("rejected: " + err.Error())
	}
}

type screen struct {
	mu       sync.Mutex
	width    int
	playerID string
	state    models.GameState
}

func (s *screen) show(state models.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	fmt.Print("\n" + phone.Render(state, s.playerID, s.width))
}

func (s *screen) say(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Println("> " + text)
}

func (s *screen) current() models.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
