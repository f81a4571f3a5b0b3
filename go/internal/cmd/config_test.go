package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/partytrivia/go/clients"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PUBLIC_URL", "LOG_LEVEL", "STORE_BACKEND", "CONTENT_PROVIDER", "CONTENT_TIMEOUT", "CONFIG_FILE", "QUESTION_BANK"} {
		t.Setenv(key, "")
	}

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, StoreNone, cfg.StoreBackend)
	assert.Equal(t, []clients.ContentSource{clients.ContentSourceGenerative, clients.ContentSourceBank}, cfg.ContentSources)
	assert.Equal(t, 20*time.Second, cfg.ContentTimeout)
	assert.Equal(t, 4*time.Second, cfg.AutoAdvance)
}

func TestLoadConfigFromEnvAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trivia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
narration:
  warmup: "Warm up, {{ len .State.Players }} of you!"
question_bank: /srv/bank.yaml
voice: butler
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("QUESTION_BANK", "")
	t.Setenv("STORE_BACKEND", "NATS")
	t.Setenv("CONTENT_PROVIDER", "bank")
	t.Setenv("CONTENT_TIMEOUT", "7s")
	t.Setenv("SYNC_RETRY_ATTEMPTS", "3")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, StoreNATS, cfg.StoreBackend)
	assert.Equal(t, []clients.ContentSource{clients.ContentSourceBank}, cfg.ContentSources)
	assert.Equal(t, 7*time.Second, cfg.ContentTimeout)
	assert.Equal(t, 3, cfg.SyncRetryAttempts)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "/srv/bank.yaml", cfg.QuestionBank)
	assert.Equal(t, "butler", cfg.File.Voice)
	assert.Contains(t, cfg.File.Narration, "warmup")
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONTENT_PROVIDER", "")

	t.Setenv("STORE_BACKEND", "redis")
	_, err := loadConfig()
	assert.Error(t, err)

	t.Setenv("STORE_BACKEND", "")
	t.Setenv("CONTENT_PROVIDER", "oracle")
	_, err = loadConfig()
	assert.Error(t, err)
}

func TestSetupContentBankOnly(t *testing.T) {
	cfg := &Config{ContentSources: []clients.ContentSource{clients.ContentSourceBank}}
	provider, synth, err := setupContent(cfg)
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Nil(t, synth)
}

func TestSetupContentChainWithSpeech(t *testing.T) {
	cfg := &Config{
		ContentSources: []clients.ContentSource{clients.ContentSourceGenerative, clients.ContentSourceBank},
		ContentTimeout: time.Second,
	}
	provider, synth, err := setupContent(cfg)
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.NotNil(t, synth)
}
