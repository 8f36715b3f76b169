package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// initViperEnv mirrors the environment wiring initConfig performs, without
// touching the home-directory config search.
func initViperEnv(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.SetEnvPrefix("TRIAGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

func TestLoadConfig_EnvOverridesDefaults(t *testing.T) {
	initViperEnv(t)

	t.Setenv("TRIAGE_LLM_PROVIDER", "ollama")
	t.Setenv("TRIAGE_LLM_ENABLED", "true")
	t.Setenv("TRIAGE_RETRIEVAL_STRATEGY", "similarity")
	t.Setenv("TRIAGE_RETRIEVAL_CACHE_TTL", "30m")
	t.Setenv("TRIAGE_BATCH_WORKERS", "8")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected provider ollama, got %q", cfg.LLM.Provider)
	}
	if !cfg.LLM.Enabled {
		t.Error("expected TRIAGE_LLM_ENABLED to enable the LLM")
	}
	if cfg.Retrieval.Strategy != "similarity" {
		t.Errorf("expected strategy similarity, got %q", cfg.Retrieval.Strategy)
	}
	if cfg.Retrieval.CacheTTL != 30*time.Minute {
		t.Errorf("expected cache TTL 30m, got %v", cfg.Retrieval.CacheTTL)
	}
	if cfg.Batch.Workers != 8 {
		t.Errorf("expected 8 batch workers, got %d", cfg.Batch.Workers)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	initViperEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "llm:\n  provider: openai\n  model: gpt-4o-mini\nserver:\n  addr: \":9999\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("read config: %v", err)
	}

	t.Setenv("TRIAGE_LLM_PROVIDER", "anthropic")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("expected env to override file provider, got %q", cfg.LLM.Provider)
	}
	// File values without env overrides survive.
	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("expected file model to apply, got %q", cfg.LLM.Model)
	}
	if cfg.Server.Addr != ":9999" {
		t.Errorf("expected file addr to apply, got %q", cfg.Server.Addr)
	}
}

func TestLoadConfig_UnsetEnvLeavesDefaults(t *testing.T) {
	initViperEnv(t)

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}

	if cfg.Retrieval.Strategy != "keyword" {
		t.Errorf("expected default strategy keyword, got %q", cfg.Retrieval.Strategy)
	}
	if cfg.Batch.Workers != 4 {
		t.Errorf("expected default 4 batch workers, got %d", cfg.Batch.Workers)
	}
}
