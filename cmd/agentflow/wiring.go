package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/configurable-agents/engine/agentreg"
	"github.com/configurable-agents/engine/declaration"
	"github.com/configurable-agents/engine/expstore"
	"github.com/configurable-agents/engine/expstore/mlflowclient"
	"github.com/configurable-agents/engine/internal/config"
	"github.com/configurable-agents/engine/internal/obslog"
	"github.com/configurable-agents/engine/llm"
	"github.com/configurable-agents/engine/llm/anthropic"
	llmecho "github.com/configurable-agents/engine/llm/echo"
	"github.com/configurable-agents/engine/llm/google"
	"github.com/configurable-agents/engine/llm/openai"
	"github.com/configurable-agents/engine/node"
	"github.com/configurable-agents/engine/state"
	"github.com/configurable-agents/engine/store"
	"github.com/configurable-agents/engine/store/memory"
	"github.com/configurable-agents/engine/store/postgres"
	"github.com/configurable-agents/engine/store/sqlite"
	"github.com/configurable-agents/engine/tool"
	"github.com/configurable-agents/engine/validate"
	"github.com/configurable-agents/engine/webhook"
)

// newLogger builds the process-wide logger from cfg, shared by every
// subcommand so CLI runs and supervised children log identically.
func newLogger(cfg config.Config) *obslog.Logger {
	format := obslog.FormatConsole
	if strings.EqualFold(cfg.LogFormat, "json") {
		format = obslog.FormatJSON
	}
	return obslog.New(cfg.LogLevel, format)
}

// openStore opens the run repository backend cfg.StoreKind names. Callers
// that open a sqlite/postgres handle are responsible for closing it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.StoreKind {
	case "memory":
		return memory.New(), func() {}, nil
	case "postgres":
		st, err := postgres.Open(ctx, cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return st, func() { st.Close() }, nil
	default:
		st, err := sqlite.Open(cfg.StoreDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, func() { st.Close() }, nil
	}
}

// buildExecutor wires one llm.Provider per configured vendor, keyed by
// the provider name declarations reference in llm_ref.provider. When no
// API key is configured for a vendor, its name is left unregistered; a
// declaration that names it fails at run time with "no LLM provider
// registered", same as an unknown name. "default" resolves to the echo
// provider when no vendor key is configured, so config-free runs
// (`validate`, tests, CI) still work end to end without network calls;
// otherwise it resolves to one of the configured vendors (which one is
// not defined when several are configured).
func buildExecutor(cfg config.Config) *node.Executor {
	providers := map[string]llm.Provider{}
	if cfg.AnthropicAPIKey != "" {
		providers["anthropic"] = anthropic.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	if cfg.GoogleAPIKey != "" {
		providers["google"] = google.New(cfg.GoogleAPIKey, cfg.GoogleModel)
	}

	if len(providers) == 0 {
		providers["default"] = &llmecho.Provider{}
	} else if _, ok := providers["default"]; !ok {
		for _, p := range providers {
			providers["default"] = p
			break
		}
	}

	return &node.Executor{Providers: providers, Tools: tool.NewRegistry()}
}

// newAgentRegistry selects agentreg's backend per
// cfg.AgentRegistryBackend.
func newAgentRegistry(cfg config.Config) *agentreg.Registry {
	if cfg.AgentRegistryBackend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return agentreg.New(agentreg.NewRedisBackend(client), nil)
	}
	return agentreg.New(agentreg.NewMemoryBackend(), nil)
}

// newExperimentStore selects expstore's backend: the MLflow-compatible
// HTTP client when a tracking URI is configured, otherwise an in-process
// memory store (offline runs, tests).
func newExperimentStore(cfg config.Config) expstore.Store {
	if cfg.MLflowURI != "" {
		return expstore.NewGuard(mlflowclient.New(cfg.MLflowURI, nil))
	}
	return expstore.NewGuard(expstore.NewMemoryStore())
}

// loadedWorkflow bundles a parsed declaration with its compiled state
// builder and the verbatim source bytes a RunRecord's ConfigSnapshot
// needs.
type loadedWorkflow struct {
	Declaration *declaration.Declaration
	Builder     *state.Builder
	Source      string
}

// loadWorkflow reads, parses, and semantically validates path, returning
// everything engine.Execute and store.RunRecord.ConfigSnapshot need.
func loadWorkflow(path string) (loadedWorkflow, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return loadedWorkflow{}, fmt.Errorf("read declaration %s: %w", path, err)
	}
	d, err := declaration.Load(path)
	if err != nil {
		return loadedWorkflow{}, err
	}
	if err := validate.Validate(d); err != nil {
		return loadedWorkflow{}, err
	}
	builder, err := state.NewBuilder(d)
	if err != nil {
		return loadedWorkflow{}, fmt.Errorf("compile state builder: %w", err)
	}
	return loadedWorkflow{Declaration: d, Builder: builder, Source: string(raw)}, nil
}

// discoverWorkflows globs every *.yaml/*.yml/*.json declaration under
// dir and compiles it into a webhook.Lookup table, keyed by
// flow.name — the lookup both the webhook dispatcher and the
// dashboard's agent-execute route need to turn a workflow name back
// into a runnable Declaration+Builder pair. Unparseable files are
// skipped with a logged warning rather than failing the whole ui
// command: one bad declaration in the directory shouldn't block every
// other workflow from being servable.
func discoverWorkflows(dir string, logger *obslog.Logger) (webhook.Lookup, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read workflows dir %s: %w", dir, err)
	}

	workflows := make(map[string]webhook.Workflow)
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		lw, err := loadWorkflow(path)
		if err != nil {
			logger.Error("skipping invalid workflow declaration", "path", path, "error", err)
			continue
		}
		workflows[lw.Declaration.Flow.Name] = webhook.Workflow{Declaration: lw.Declaration, Builder: lw.Builder}
	}

	return func(name string) (webhook.Workflow, bool) {
		wf, ok := workflows[name]
		return wf, ok
	}, nil
}

// parseInputs turns a repeated --input k=v flag slice into the inputs map
// engine.Execute expects. Every value is a string; declarations whose
// state fields need another type rely on C4's type coercion rules at
// MakeState time.
func parseInputs(pairs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --input %q: expected key=value", p)
		}
		inputs[k] = v
	}
	return inputs, nil
}
