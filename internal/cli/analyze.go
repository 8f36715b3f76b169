package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"triagecopilot/internal/model"
)

var (
	analyzeTimeout    time.Duration
	analyzeCorpusDir  string
	analyzeLLM        bool
	analyzeSimilarity bool
	llmProvider       string
	llmModel          string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <issue.json>",
	Short: "Analyze a single issue and print the resulting run",
	Long: `Analyze reads one issue definition from a JSON file, classifies it,
runs the triage pipeline (rules, retrieval, optional LLM refinement), and
prints the resulting run as JSON.

Example:
  triagecopilot analyze issue.json
  triagecopilot analyze issue.json --corpus ./guidance --similarity
  triagecopilot analyze issue.json --llm --llm-provider openai --llm-model gpt-4o-mini`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

// classifyCmd represents the classify command
var classifyCmd = &cobra.Command{
	Use:   "classify <issue.json>",
	Short: "Classify a single issue as deterministic or llm_required",
	Long: `Classify reads one issue definition from a JSON file and prints the
classification result: the issue type, confidence band, method, and reason.

Example:
  triagecopilot classify issue.json
  triagecopilot classify issue.json --llm`,
	Args: cobra.ExactArgs(1),
	RunE: runClassify,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(classifyCmd)

	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 2*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().StringVar(&analyzeCorpusDir, "corpus", "", "guidance corpus directory (YAML files)")
	analyzeCmd.Flags().BoolVar(&analyzeSimilarity, "similarity", false, "force similarity retrieval for this run")

	// LLM flags
	analyzeCmd.Flags().BoolVar(&analyzeLLM, "llm", false, "enable LLM refinement for this run")
	analyzeCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	analyzeCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")

	classifyCmd.Flags().BoolVar(&analyzeLLM, "llm", false, "allow LLM fallback on low-confidence classifications")
	classifyCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	classifyCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// readIssueFile reads one IssueCreate definition from a JSON file.
func readIssueFile(path string) (model.IssueCreate, error) {
	var c model.IssueCreate
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read issue file: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse issue file: %w", err)
	}
	if c.Domain == "" {
		return c, fmt.Errorf("issue file: domain is required")
	}
	return c, nil
}

// applyLLMFlags folds the per-command LLM flags into the config.
func applyLLMFlags(cfg *model.Config, enabled bool) {
	if !enabled {
		return
	}
	cfg.LLM.Enabled = true
	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	create, err := readIssueFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg, analyzeLLM)

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	if err := c.loadCorpus(analyzeCorpusDir); err != nil {
		return err
	}

	issue := model.NewIssue(create)
	result := c.Classifier.ClassifyWithFallback(ctx, create, analyzeLLM && cfg.Classifier.UseFallback)
	issue.IssueType = result.IssueType
	c.Store.CreateIssue(issue)

	if verbose {
		fmt.Fprintf(os.Stderr, "Issue %s classified as %s (%s)\n", issue.IssueID, result.IssueType, result.Confidence)
	}

	req := model.AnalyzeRequest{}
	if cmd.Flags().Changed("similarity") {
		req.UseSimilarity = &analyzeSimilarity
	}
	if cmd.Flags().Changed("llm") {
		req.UseLLM = &analyzeLLM
	}

	run, err := c.Pipeline.Run(ctx, issue, req)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	create, err := readIssueFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg, analyzeLLM)

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}

	result := c.Classifier.ClassifyWithFallback(ctx, create, analyzeLLM)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
