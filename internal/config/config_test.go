package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "anthropic", cfg.LLM.DefaultProvider)
	assert.Equal(t, 3, cfg.LLM.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.RetryMaxDelay)
	assert.Equal(t, 70.0, cfg.Eval.PassThreshold)
	assert.Equal(t, 10.0, cfg.Eval.CompareMargin)
	assert.Equal(t, 4, cfg.Eval.Workers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("TEST_PASS_THRESHOLD", "85")
	t.Setenv("LLM_RETRY_BASE_DELAY", "500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 85.0, cfg.Eval.PassThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.LLM.RetryBaseDelay)
}

func TestLoadRejectsBadInt(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRequiresDatabaseAndKey(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY or OPENAI_API_KEY")

	cfg.Database.URL = "postgres://localhost/forge"
	cfg.LLM.AnthropicKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestAddr(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "127.0.0.1", Port: 8080}}
	assert.Equal(t, "127.0.0.1:8080", cfg.Addr())
}
