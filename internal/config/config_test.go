package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "TOKEN_TTL", "SESSION_IDLE_TIMEOUT", "COMPLETION_POLICY", "CORS_ORIGINS", "GRPC_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "./data/redstring.db", cfg.DBPath)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.IdleTimeout)
	assert.Equal(t, CompletionOverwrite, cfg.CompletionPolicy)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, ":50051", cfg.GRPCAddr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90")
	t.Setenv("COMPLETION_POLICY", "Monotonic")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 90*time.Second, cfg.IdleTimeout)
	assert.Equal(t, CompletionMonotonic, cfg.CompletionPolicy)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestUnknownPolicyFallsBack(t *testing.T) {
	t.Setenv("COMPLETION_POLICY", "sticky")
	assert.Equal(t, CompletionOverwrite, Load().CompletionPolicy)
}
