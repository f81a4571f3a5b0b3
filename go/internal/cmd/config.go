package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/partytrivia/go/clients"
	"github.com/mcdev12/partytrivia/go/internal/dbconfig"
)

type StoreBackend string

const (
	StorePostgres StoreBackend = "postgres"
	StoreNATS     StoreBackend = "nats"
	StoreNone     StoreBackend = "none"
)

// FileConfig is the optional YAML file named by CONFIG_FILE
type FileConfig struct {
	Narration    map[string]string `yaml:"narration"`
	QuestionBank string            `yaml:"question_bank"`
	Voice        string            `yaml:"voice"`
}

type Config struct {
	Port      string
	PublicURL string
	LogLevel  zerolog.Level

	StoreBackend StoreBackend
	NATSURL      string
	Database     dbconfig.Config

	ContentSources []clients.ContentSource
	ContentAPIURL  string
	ContentAPIKey  string
	ContentTimeout time.Duration
	AutoAdvance    time.Duration

	SyncRetryInitial  time.Duration
	SyncRetryMax      time.Duration
	SyncRetryAttempts int

	QuestionBank string
	File         FileConfig
}

func loadConfig() (*Config, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info")))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	backend := StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreNone))))
	switch backend {
	case StorePostgres, StoreNATS, StoreNone:
	default:
		return nil, fmt.Errorf("invalid STORE_BACKEND %q: want postgres, nats or none", backend)
	}

	sources, err := clients.ParseContentSources(getEnv("CONTENT_PROVIDER", "generative,bank"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONTENT_PROVIDER: %w", err)
	}

	port := getEnv("PORT", "8080")
	cfg := &Config{
		Port:              port,
		PublicURL:         getEnv("PUBLIC_URL", "http://localhost:"+port),
		LogLevel:          level,
		StoreBackend:      backend,
		NATSURL:           getEnv("NATS_URL", "nats://localhost:4222"),
		Database:          dbconfig.NewConfigFromEnv(),
		ContentSources:    sources,
		ContentAPIURL:     getEnv("CONTENT_API_URL", ""),
		ContentAPIKey:     getEnv("CONTENT_API_KEY", ""),
		ContentTimeout:    getEnvAsDuration("CONTENT_TIMEOUT", 20*time.Second),
		AutoAdvance:       getEnvAsDuration("AUTO_ADVANCE", 4*time.Second),
		SyncRetryInitial:  getEnvAsDuration("SYNC_RETRY_INITIAL", time.Second),
		SyncRetryMax:      getEnvAsDuration("SYNC_RETRY_MAX", 30*time.Second),
		SyncRetryAttempts: getEnvAsInt("SYNC_RETRY_ATTEMPTS", 8),
		QuestionBank:      getEnv("QUESTION_BANK", ""),
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		file, err := loadFileConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.File = *file
		if cfg.QuestionBank == "" {
			cfg.QuestionBank = file.QuestionBank
		}
	}
	return cfg, nil
}

func loadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
