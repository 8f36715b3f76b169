package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"triagecopilot/internal/retrieve"
)

var (
	searchCorpusDir  string
	searchLimit      int
	searchSimilarity bool
	searchLLM        bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the guidance corpus for a free-text query",
	Long: `Search runs the citation engine directly over a guidance corpus,
for checking what an analysis run would cite.

Example:
  triagecopilot search "missing required field" --corpus ./guidance
  triagecopilot search "AE date inconsistency" --corpus ./guidance --similarity --llm-provider openai`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchCorpusDir, "corpus", "", "guidance corpus directory (YAML files)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum hits to return (default from config)")
	searchCmd.Flags().BoolVar(&searchSimilarity, "similarity", false, "use similarity retrieval (requires an embedding capability)")
	searchCmd.Flags().BoolVar(&searchLLM, "llm", false, "configure the LLM provider for embeddings")
	searchCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	searchCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg, searchLLM || searchSimilarity)

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	if err := c.loadCorpus(searchCorpusDir); err != nil {
		return err
	}

	docs := c.Store.ListDocuments()
	if len(docs) == 0 {
		return fmt.Errorf("no guidance documents loaded; use --corpus or set corpus.dir in the config")
	}

	strategy := retrieve.Strategy(cfg.Retrieval.Strategy)
	if searchSimilarity {
		strategy = retrieve.StrategySimilarity
	}

	hits, used := c.Retriever.Search(ctx, args[0], docs, searchLimit, strategy)

	if verbose {
		fmt.Fprintf(os.Stderr, "Searched %d documents using %s retrieval\n", len(docs), used)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"strategy": used,
		"hits":     hits,
	})
}
