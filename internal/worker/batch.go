package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"triagecopilot/internal/classify"
	"triagecopilot/internal/model"
	"triagecopilot/internal/store"
)

// Runner runs one analysis for a stored issue.
type Runner interface {
	Run(ctx context.Context, issue model.Issue, req model.AnalyzeRequest) (model.AgentRun, error)
}

// TriageJob analyzes one issue.
type TriageJob struct {
	Issue   model.Issue
	Request model.AnalyzeRequest
	Runner  Runner
}

// Execute runs the analysis and captures the outcome.
func (j *TriageJob) Execute(ctx context.Context) *TriageResult {
	run, err := j.Runner.Run(ctx, j.Issue, j.Request)
	if err != nil {
		return &TriageResult{
			IssueID:   j.Issue.IssueID,
			SubjectID: j.Issue.SubjectID,
			Error:     err.Error(),
		}
	}
	return &TriageResult{
		IssueID:   j.Issue.IssueID,
		SubjectID: j.Issue.SubjectID,
		Run:       &run,
	}
}

// TriageResult is the per-issue entry of a batch report.
type TriageResult struct {
	IssueID   uuid.UUID       `json:"issue_id"`
	SubjectID string          `json:"subject_id,omitempty"`
	Run       *model.AgentRun `json:"run,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// BatchProcessor triages many issues concurrently through a bounded pool.
type BatchProcessor struct {
	runner      Runner
	store       *store.Store
	concurrency int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(runner Runner, st *store.Store, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		store:       st,
		concurrency: concurrency,
	}
}

// ProcessIssues triages the given stored issues concurrently. Result order
// is completion order.
func (b *BatchProcessor) ProcessIssues(ctx context.Context, issues []model.Issue, req model.AnalyzeRequest) []*TriageResult {
	if len(issues) == 0 {
		return []*TriageResult{}
	}

	pool := NewPool[*TriageResult](b.concurrency)
	pool.Start()

	// Submission runs concurrently with result draining: the pool's queue
	// and results buffers are bounded, so a batch larger than both would
	// block Submit before Wait ever started reading.
	go func() {
		for _, issue := range issues {
			pool.Submit(&TriageJob{
				Issue:   issue,
				Request: req,
				Runner:  b.runner,
			})
		}
		pool.Close()
	}()

	return pool.Wait()
}

// ProcessFile reads issues from a JSON Lines file, classifies and stores
// them, and triages them concurrently. The stored issues are returned
// alongside the results so callers can score them afterwards.
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, req model.AnalyzeRequest) ([]model.Issue, []*TriageResult, error) {
	creates, err := ReadIssuesFromFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read issues: %w", err)
	}

	issues := make([]model.Issue, 0, len(creates))
	for _, c := range creates {
		issue := model.NewIssue(c)
		issue.IssueType = classify.Classify(c).IssueType
		b.store.CreateIssue(issue)
		issues = append(issues, issue)
	}

	return issues, b.ProcessIssues(ctx, issues, req), nil
}

// ReadIssuesFromFile reads issue definitions from a JSON Lines file, one
// JSON object per line. Empty lines and #-comments are skipped.
func ReadIssuesFromFile(filePath string) ([]model.IssueCreate, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var creates []model.IssueCreate
	lineNo := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var c model.IssueCreate
		if err := json.Unmarshal([]byte(line), &c); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if c.Domain == "" {
			return nil, fmt.Errorf("line %d: domain is required", lineNo)
		}
		creates = append(creates, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return creates, nil
}
