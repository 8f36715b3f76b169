package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"triagecopilot/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage triagecopilot configuration",
	Long: `Manage triagecopilot configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (TRIAGE_*)
3. Config file (~/.triagecopilot/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging the config file and TRIAGE_* environment variables over the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Println(string(yamlData))
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (TRIAGE_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)")
		fmt.Println("  3. Config file (~/.triagecopilot/config.yaml)")
		fmt.Println("  4. Defaults")

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.triagecopilot/config.yaml with all available options documented.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.triagecopilot"
		configPath := configDir + "/config.yaml"

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'triagecopilot config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		header := `# Triagecopilot Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (TRIAGE_*)
#   3. This config file
#   4. Built-in defaults

`
		if _, err := f.WriteString(header); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		if _, err := f.Write(yamlData); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		footer := `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
		if _, err := f.WriteString(footer); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  triagecopilot config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

// loadConfig resolves the effective configuration: compiled-in defaults,
// then the config file (if any), then TRIAGE_* environment variables.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// configEnvKeys are the dotted config keys that can be overridden through
// the environment, e.g. TRIAGE_LLM_PROVIDER or TRIAGE_RETRIEVAL_STRATEGY.
var configEnvKeys = []string{
	"llm.enabled", "llm.provider", "llm.model", "llm.api_key", "llm.base_url",
	"llm.timeout", "llm.max_tokens", "llm.requests_per_second", "llm.burst",
	"llm.http_proxy", "llm.https_proxy", "llm.no_proxy",
	"retrieval.strategy", "retrieval.candidate_floor", "retrieval.citable_floor",
	"retrieval.limit", "retrieval.embedding_model", "retrieval.cache_ttl",
	"classifier.use_fallback", "corpus.dir", "server.addr", "batch.workers",
}

// applyEnvOverrides lays TRIAGE_* environment variables over cfg. Keys are
// bound explicitly so IsSet reflects the environment; an unset or empty
// variable leaves the file/default value untouched.
func applyEnvOverrides(cfg *model.Config) {
	for _, key := range configEnvKeys {
		_ = viper.BindEnv(key)
	}

	setString := func(key string, dst *string) {
		if viper.IsSet(key) {
			*dst = viper.GetString(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if viper.IsSet(key) {
			*dst = viper.GetBool(key)
		}
	}
	setInt := func(key string, dst *int) {
		if viper.IsSet(key) {
			*dst = viper.GetInt(key)
		}
	}
	setFloat := func(key string, dst *float64) {
		if viper.IsSet(key) {
			*dst = viper.GetFloat64(key)
		}
	}

	setBool("llm.enabled", &cfg.LLM.Enabled)
	setString("llm.provider", &cfg.LLM.Provider)
	setString("llm.model", &cfg.LLM.Model)
	setString("llm.api_key", &cfg.LLM.APIKey)
	setString("llm.base_url", &cfg.LLM.BaseURL)
	setInt("llm.timeout", &cfg.LLM.Timeout)
	setInt("llm.max_tokens", &cfg.LLM.MaxTokens)
	setFloat("llm.requests_per_second", &cfg.LLM.RequestsPerSecond)
	setInt("llm.burst", &cfg.LLM.Burst)
	setString("llm.http_proxy", &cfg.LLM.HTTPProxy)
	setString("llm.https_proxy", &cfg.LLM.HTTPSProxy)
	setString("llm.no_proxy", &cfg.LLM.NoProxy)

	setString("retrieval.strategy", &cfg.Retrieval.Strategy)
	setFloat("retrieval.candidate_floor", &cfg.Retrieval.CandidateFloor)
	setFloat("retrieval.citable_floor", &cfg.Retrieval.CitableFloor)
	setInt("retrieval.limit", &cfg.Retrieval.Limit)
	setString("retrieval.embedding_model", &cfg.Retrieval.EmbeddingModel)
	if viper.IsSet("retrieval.cache_ttl") {
		cfg.Retrieval.CacheTTL = viper.GetDuration("retrieval.cache_ttl")
	}

	setBool("classifier.use_fallback", &cfg.Classifier.UseFallback)
	setString("corpus.dir", &cfg.Corpus.Dir)
	setString("server.addr", &cfg.Server.Addr)
	setInt("batch.workers", &cfg.Batch.Workers)
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
