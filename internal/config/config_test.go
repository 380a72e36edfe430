package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.StoreKind)
	assert.Equal(t, 8080, cfg.DashboardPort)
	assert.Equal(t, "memory", cfg.AgentRegistryBackend)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTFLOW_STORE_KIND", "postgres")
	t.Setenv("AGENTFLOW_DASHBOARD_PORT", "9090")
	t.Setenv("AGENT_REGISTRY_BACKEND", "redis")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.StoreKind)
	assert.Equal(t, 9090, cfg.DashboardPort)
	assert.Equal(t, "redis", cfg.AgentRegistryBackend)
}

func TestLoad_InvalidIntReturnsError(t *testing.T) {
	clearEnv(t)
	t.Setenv("AGENTFLOW_DASHBOARD_PORT", "not-a-number")

	_, err := Load()
	assert.Error(t, err)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AGENTFLOW_STORE_KIND", "AGENTFLOW_STORE_DSN", "AGENT_REGISTRY_BACKEND",
		"AGENTFLOW_REDIS_ADDR", "AGENTFLOW_DASHBOARD_PORT", "AGENTFLOW_CHAT_PORT",
		"AGENTFLOW_MLFLOW_PORT", "AGENTFLOW_MLFLOW_URI", "AGENTFLOW_NO_CHAT",
		"AGENTFLOW_WEBHOOK_SECRET", "AGENTFLOW_WEBHOOK_WORKERS",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
		"ANTHROPIC_MODEL", "OPENAI_MODEL", "GOOGLE_MODEL",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		require.NoError(t, os.Unsetenv(key))
	}
}
