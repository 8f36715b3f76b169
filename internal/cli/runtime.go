package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"triagecopilot/internal/cache"
	"triagecopilot/internal/classify"
	"triagecopilot/internal/corpus"
	"triagecopilot/internal/llm"
	"triagecopilot/internal/model"
	"triagecopilot/internal/refine"
	"triagecopilot/internal/retrieve"
	"triagecopilot/internal/store"
	"triagecopilot/internal/triage"
	"triagecopilot/internal/worker"
)

// components bundles the wired triage core for command handlers.
type components struct {
	Config     *model.Config
	Store      *store.Store
	Retriever  *retrieve.Retriever
	Refiner    *refine.Refiner
	Classifier *classify.Classifier
	Pipeline   *triage.Pipeline
	Logger     *slog.Logger
}

// newLogger builds the process logger. Verbose mode lowers the level to
// debug; output goes to stderr so report JSON on stdout stays clean.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveAPIKeys fills in provider credentials from the environment when the
// config does not carry them.
func resolveAPIKeys(cfg *model.Config) error {
	if cfg.LLM.Provider == "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		// Ollama doesn't need an API key
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// buildComponents wires the triage core from configuration. A provider or
// embedder that cannot be built degrades to nil: rules and keyword retrieval
// keep working without external capabilities.
func buildComponents(cfg *model.Config) (*components, error) {
	logger := newLogger()

	if err := resolveAPIKeys(cfg); err != nil {
		return nil, err
	}

	llmCfg := llm.ConfigFromModel(cfg.LLM, cfg.Retrieval.EmbeddingModel)

	provider, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("configure llm provider: %w", err)
	}
	embedder, err := llm.NewEmbedder(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("configure embedder: %w", err)
	}

	var embedCache cache.Cache
	if cfg.Retrieval.CacheTTL > 0 {
		home, err := os.UserHomeDir()
		if err == nil {
			dir := filepath.Join(home, ".triagecopilot", "cache")
			embedCache = cache.NewLayeredCache(cfg.Retrieval.CacheTTL, dir, cfg.Retrieval.CacheTTL)
		} else {
			embedCache = cache.NewMemoryCache(cfg.Retrieval.CacheTTL, cfg.Retrieval.CacheTTL)
		}
	}

	limiter := worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst)

	st := store.New()
	retriever := retrieve.NewRetriever(worker.NewPacedEmbedder(embedder, limiter), embedCache, cfg.Retrieval, logger)
	refiner := refine.NewRefiner(provider, cfg.LLM.Model, logger)
	classifier := classify.NewClassifier(provider, cfg.LLM.Model, logger)
	pipeline := triage.NewPipeline(st, retriever, refiner, cfg, logger)

	return &components{
		Config:     cfg,
		Store:      st,
		Retriever:  retriever,
		Refiner:    refiner,
		Classifier: classifier,
		Pipeline:   pipeline,
		Logger:     logger,
	}, nil
}

// loadCorpus seeds the document store from the configured corpus directory.
func (c *components) loadCorpus(dir string) error {
	if dir == "" {
		dir = c.Config.Corpus.Dir
	}
	if dir == "" {
		return nil
	}

	docs, err := corpus.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	for _, d := range docs {
		c.Store.CreateDocument(model.NewDocument(d))
	}
	c.Logger.Info("corpus loaded", "dir", dir, "documents", len(docs))
	return nil
}
