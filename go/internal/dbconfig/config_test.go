package dbconfig

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	cfg := Config{
		Host:            "db",
		Port:            5433,
		User:            "trivia",
		Password:        "p@ss word",
		Database:        "rooms",
		SSLMode:         "disable",
		ApplicationName: "partytrivia",
		ConnectTimeout:  3 * time.Second,
	}
	assert.Equal(t,
		"postgres://trivia:p%40ss%20word@db:5433/rooms?application_name=partytrivia&connect_timeout=3&sslmode=disable",
		cfg.DSN())
	assert.NotContains(t, cfg.Redacted(), "word")
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "pg.internal")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("DB_NAME", "")

	cfg := NewConfigFromEnv()
	assert.Equal(t, "pg.internal", cfg.Host)
	assert.Equal(t, 5432, cfg.Port)
	assert.Equal(t, "partytrivia", cfg.Database)
	assert.Equal(t, 5*time.Second, cfg.ConnectTimeout)
}
