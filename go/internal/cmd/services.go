package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/clients"
	"github.com/mcdev12/partytrivia/go/clients/generative_client"
	"github.com/mcdev12/partytrivia/go/internal/assets"
	"github.com/mcdev12/partytrivia/go/internal/broadcast"
	"github.com/mcdev12/partytrivia/go/internal/content"
	"github.com/mcdev12/partytrivia/go/internal/game"
	"github.com/mcdev12/partytrivia/go/internal/gateway"
	"github.com/mcdev12/partytrivia/go/internal/roomstore"
	"github.com/mcdev12/partytrivia/go/internal/statesync"
)

// fallbackHeadroom is extra time a content call gets on top of
// CONTENT_TIMEOUT so the next provider in the chain can still answer.
const fallbackHeadroom = 5 * time.Second

type Services struct {
	Gateway *gateway.Service
	Channel *broadcast.Channel
	Store   roomstore.Store
}

func setupServices(ctx context.Context, cfg *Config) (*Services, error) {
	store, err := setupStore(ctx, cfg)
	if err != nil {
		// rooms still work on the local channel; the synchronizers never probe a nil store
		log.Error().Err(err).Str("backend", string(cfg.StoreBackend)).Msg("room store unavailable, continuing without it")
		store = nil
	}

	channel, err := broadcast.NewChannel(broadcast.WithServerName("partytrivia"))
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("failed to start local channel: %w", err)
	}

	provider, synth, err := setupContent(cfg)
	if err != nil {
		channel.Close()
		closeStore(store)
		return nil, err
	}

	gameCfg := game.DefaultConfig()
	gameCfg.AutoAdvance = cfg.AutoAdvance
	gameCfg.ContentTimeout = cfg.ContentTimeout
	if len(cfg.ContentSources) > 1 {
		gameCfg.ContentTimeout += fallbackHeadroom
	}

	syncCfg := statesync.DefaultConfig()
	syncCfg.RetryInitial = cfg.SyncRetryInitial
	syncCfg.RetryMax = cfg.SyncRetryMax
	syncCfg.RetryAttempts = cfg.SyncRetryAttempts

	gwCfg := gateway.Config{
		ConnectionConfig: gateway.DefaultConnectionConfig(),
		Rooms: gateway.RoomsConfig{
			Sync:      syncCfg,
			Game:      gameCfg,
			Narration: cfg.File.Narration,
		},
		PublicURL: cfg.PublicURL,
		QRSize:    gateway.DefaultQRSize,
	}

	var roomOpts []gateway.RoomsOption
	if synth != nil {
		roomOpts = append(roomOpts, gateway.WithSynthesizer(synth))
	}
	gw, err := gateway.NewService(gwCfg, func(out gateway.Broadcaster) (*gateway.Rooms, error) {
		return gateway.NewRooms(store, channel, provider, out, gwCfg.Rooms, roomOpts...)
	})
	if err != nil {
		channel.Close()
		closeStore(store)
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	return &Services{Gateway: gw, Channel: channel, Store: store}, nil
}

// setupContent builds the provider chain in priority order. The generative
// client doubles as the speech synthesizer when it is enabled.
func setupContent(cfg *Config) (game.ContentProvider, gateway.Synthesizer, error) {
	var providers []content.Named
	var synth gateway.Synthesizer

	for _, source := range cfg.ContentSources {
		switch source {
		case clients.ContentSourceGenerative:
			gen := generative_client.NewGenerativeClient(cfg.ContentAPIURL, cfg.ContentAPIKey, cfg.ContentTimeout)
			if cfg.File.Voice != "" {
				gen.SetVoice(cfg.File.Voice)
			}
			providers = append(providers, content.Named{Name: string(source), Provider: gen})
			synth = gen

		case clients.ContentSourceBank:
			bank, err := loadBank(cfg.QuestionBank)
			if err != nil {
				return nil, nil, err
			}
			providers = append(providers, content.Named{Name: string(source), Provider: bank})
		}
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	log.Info().Strs("providers", names).Msg("content providers configured")

	if len(providers) == 1 {
		return providers[0].Provider, synth, nil
	}
	return content.NewChain(providers...), synth, nil
}

func loadBank(path string) (*content.Bank, error) {
	if path == "" {
		return content.ParseBank(assets.QuestionBank)
	}
	bank, err := content.LoadBank(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load question bank %s: %w", path, err)
	}
	return bank, nil
}

// Close releases what setupServices opened. Rooms are closed by the
// gateway when its context ends.
func (s *Services) Close() error {
	var errs []error
	if err := s.Channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("local channel: %w", err))
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("room store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func closeStore(store roomstore.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close room store")
	}
}
