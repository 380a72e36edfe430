// Package config resolves process-level settings (ports, store backend,
// provider credentials, logging) from the environment, loading a local
// .env file first (grounded in
// codeready-toolchain-tarsy/cmd/tarsy/main.go's godotenv.Load-then-flags
// pattern). Runtime environment variables always win over .env values,
// which is godotenv's default behavior.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the typed, fully-resolved process configuration. It is built
// once via Load and passed to constructors explicitly; nothing here is a
// singleton.
type Config struct {
	// StoreKind selects the run repository backend: "memory", "sqlite",
	// or "postgres".
	StoreKind string
	// StoreDSN is the sqlite file path or postgres connection string,
	// depending on StoreKind. Ignored for "memory".
	StoreDSN string

	// AgentRegistryBackend selects agentreg's backend: "memory" or
	// "redis".
	AgentRegistryBackend string
	RedisAddr            string

	DashboardPort int
	ChatPort      int
	MLflowPort    int
	MLflowURI     string
	NoChat        bool

	WebhookSecret  string
	WebhookWorkers int

	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string

	// AnthropicModel/OpenAIModel/GoogleModel override each provider's
	// built-in default model; empty means let the provider choose.
	AnthropicModel string
	OpenAIModel    string
	GoogleModel    string

	LogLevel  string
	LogFormat string
}

// defaults mirrors spec §6's documented CLI/HTTP defaults.
func defaults() Config {
	return Config{
		StoreKind:            "sqlite",
		StoreDSN:             "configurable_agents.db",
		AgentRegistryBackend: "memory",
		RedisAddr:            "localhost:6379",
		DashboardPort:        8080,
		ChatPort:             8081,
		MLflowPort:           5000,
		WebhookWorkers:       4,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// Load reads .env from the current working directory (if present, it is
// not an error if absent) and resolves Config from the environment,
// falling back to documented defaults for anything unset.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()
	cfg.StoreKind = getString("AGENTFLOW_STORE_KIND", cfg.StoreKind)
	cfg.StoreDSN = getString("AGENTFLOW_STORE_DSN", cfg.StoreDSN)
	cfg.AgentRegistryBackend = getString("AGENT_REGISTRY_BACKEND", cfg.AgentRegistryBackend)
	cfg.RedisAddr = getString("AGENTFLOW_REDIS_ADDR", cfg.RedisAddr)

	var err error
	if cfg.DashboardPort, err = getInt("AGENTFLOW_DASHBOARD_PORT", cfg.DashboardPort); err != nil {
		return Config{}, err
	}
	if cfg.ChatPort, err = getInt("AGENTFLOW_CHAT_PORT", cfg.ChatPort); err != nil {
		return Config{}, err
	}
	if cfg.MLflowPort, err = getInt("AGENTFLOW_MLFLOW_PORT", cfg.MLflowPort); err != nil {
		return Config{}, err
	}
	cfg.MLflowURI = getString("AGENTFLOW_MLFLOW_URI", cfg.MLflowURI)
	cfg.NoChat = getBool("AGENTFLOW_NO_CHAT", cfg.NoChat)

	cfg.WebhookSecret = getString("AGENTFLOW_WEBHOOK_SECRET", cfg.WebhookSecret)
	if cfg.WebhookWorkers, err = getInt("AGENTFLOW_WEBHOOK_WORKERS", cfg.WebhookWorkers); err != nil {
		return Config{}, err
	}

	cfg.AnthropicAPIKey = getString("ANTHROPIC_API_KEY", cfg.AnthropicAPIKey)
	cfg.OpenAIAPIKey = getString("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.GoogleAPIKey = getString("GOOGLE_API_KEY", cfg.GoogleAPIKey)
	cfg.AnthropicModel = getString("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.OpenAIModel = getString("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GoogleModel = getString("GOOGLE_MODEL", cfg.GoogleModel)

	cfg.LogLevel = getString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getString("LOG_FORMAT", cfg.LogFormat)

	return cfg, nil
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}
