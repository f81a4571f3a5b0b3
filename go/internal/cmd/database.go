package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/partytrivia/go/internal/roomstore"
)

// setupStore opens the configured backend. STORE_BACKEND=none returns a
// nil Store and every room runs on the local channel only.
func setupStore(ctx context.Context, cfg *Config) (roomstore.Store, error) {
	switch cfg.StoreBackend {
	case StorePostgres:
		pgCfg := roomstore.DefaultPostgresConfig()
		pgCfg.DatabaseURL = cfg.Database.DSN()
		store, err := roomstore.OpenPostgres(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		log.Info().
			Str("database", cfg.Database.Database).
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Msg("connected to postgres room store")
		return store, nil

	case StoreNATS:
		kvCfg := roomstore.DefaultKVConfig()
		kvCfg.URL = cfg.NATSURL
		store, err := roomstore.OpenKV(ctx, kvCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("nats_url", cfg.NATSURL).Str("bucket", kvCfg.Bucket).Msg("connected to jetstream room store")
		return store, nil

	case StoreNone:
		log.Warn().Msg("no room store configured, rooms are local to this process")
		return nil, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
