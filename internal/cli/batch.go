package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"triagecopilot/internal/model"
	"triagecopilot/internal/triage"
	"triagecopilot/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	expectedFile string
	batchCorpus  string
	batchLLM     bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <issues.jsonl>",
	Short: "Triage multiple issues from a JSON Lines file in parallel",
	Long: `Batch triages many issues concurrently:
- Read issue definitions from a JSON Lines file (one JSON object per line)
- Classify, store, and analyze each issue through a bounded worker pool
- Write one run report per issue to the output directory
- Optionally score the runs against a labelled expectation file

Example:
  triagecopilot batch issues.jsonl
  triagecopilot batch issues.jsonl --concurrency 8 --output-dir ./reports
  triagecopilot batch issues.jsonl --corpus ./guidance --expected labels.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./triage-reports", "output directory for run reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&batchCorpus, "corpus", "", "guidance corpus directory (YAML files)")
	batchCmd.Flags().StringVar(&expectedFile, "expected", "", "labelled expectations file for the scorecard (JSON)")

	// LLM flags
	batchCmd.Flags().BoolVar(&batchLLM, "llm", false, "enable LLM refinement")
	batchCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	batchCmd.Flags().StringVar(&llmModel, "llm-model", "gpt-4o-mini", "LLM model name")
}

// expectedLabel is one entry of the --expected file, keyed by subject id
// because issue ids are assigned at load time.
type expectedLabel struct {
	SubjectID string         `json:"subject_id"`
	Action    model.Action   `json:"action"`
	Severity  model.Severity `json:"severity"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg, batchLLM)
	cfg.Batch.Workers = concurrency

	c, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	if err := c.loadCorpus(batchCorpus); err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Input file: %s\n", file)
	fmt.Fprintf(os.Stderr, "Workers:    %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "Output dir: %s\n", outputDir)
	if cfg.LLM.Enabled {
		fmt.Fprintf(os.Stderr, "LLM:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	}
	fmt.Fprintln(os.Stderr)

	processor := worker.NewBatchProcessor(c.Pipeline, c.Store, concurrency)

	issues, results, err := processor.ProcessFile(ctx, file, model.AnalyzeRequest{})
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != "" {
			failureCount++
			fmt.Fprintf(os.Stderr, "FAIL %s (%s): %s\n", result.IssueID, result.SubjectID, result.Error)
			continue
		}
		successCount++

		reportPath := filepath.Join(outputDir, result.IssueID.String()+".json")
		if err := writeReport(reportPath, result); err != nil {
			fmt.Fprintf(os.Stderr, "FAIL %s: write report: %v\n", result.IssueID, err)
			continue
		}

		rec := result.Run.Recommendation
		fmt.Fprintf(os.Stderr, "OK   %s (%s): %s/%s rule=%v\n",
			result.IssueID, result.SubjectID, rec.Severity, rec.Action, rec.ToolResults["rule_fired"])
	}

	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "Total:    %d issues\n", len(results))
	fmt.Fprintf(os.Stderr, "Success:  %d\n", successCount)
	fmt.Fprintf(os.Stderr, "Failures: %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "Output:   %s\n", outputDir)

	if expectedFile != "" {
		card, err := scoreBatch(c, issues, expectedFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, card.String())
	}

	return nil
}

func writeReport(path string, result *worker.TriageResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// scoreBatch reads the labelled expectations and scores the stored runs
// against them.
func scoreBatch(c *components, issues []model.Issue, path string) (triage.Scorecard, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return triage.Scorecard{}, fmt.Errorf("read expectations: %w", err)
	}

	var labels []expectedLabel
	if err := json.Unmarshal(data, &labels); err != nil {
		return triage.Scorecard{}, fmt.Errorf("parse expectations: %w", err)
	}

	// Labels key by subject id; map them to the ids assigned at load time.
	expectations := make([]triage.Expectation, 0, len(labels))
	for _, label := range labels {
		for _, issue := range issues {
			if issue.SubjectID == label.SubjectID {
				expectations = append(expectations, triage.Expectation{
					IssueID:  issue.IssueID,
					Action:   label.Action,
					Severity: label.Severity,
				})
				break
			}
		}
	}

	return triage.Score(c.Store.AllRuns(), expectations), nil
}
