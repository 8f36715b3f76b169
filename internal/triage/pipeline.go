// Package triage orchestrates one analysis run: deterministic rules, then
// evidence retrieval, then optional LLM refinement. Each run is recorded as
// an immutable AgentRun; re-analysis appends, never overwrites.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"triagecopilot/internal/model"
	"triagecopilot/internal/refine"
	"triagecopilot/internal/retrieve"
	"triagecopilot/internal/rules"
	"triagecopilot/internal/store"
	"triagecopilot/internal/worker"
)

// Pipeline wires the three analysis stages together over a shared store.
type Pipeline struct {
	store     *store.Store
	retriever *retrieve.Retriever
	refiner   *refine.Refiner
	limiter   *worker.Limiter
	config    *model.Config
	logger    *slog.Logger
}

// NewPipeline creates a pipeline. The limiter paces outbound refinement
// calls; a non-positive requests-per-second setting disables pacing.
func NewPipeline(st *store.Store, r *retrieve.Retriever, ref *refine.Refiner, cfg *model.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     st,
		retriever: r,
		refiner:   ref,
		limiter:   worker.NewLimiter(cfg.LLM.RequestsPerSecond, cfg.LLM.Burst),
		config:    cfg,
		logger:    logger,
	}
}

// Run analyzes one issue and appends the resulting run to the store.
//
// The deterministic stages always complete: rules are total and retrieval
// degrades transparently. Refinement failures are tolerated inside the
// refiner, so the only error paths here are context cancellation while
// waiting on the rate limiter and a store append for an unknown issue.
func (p *Pipeline) Run(ctx context.Context, issue model.Issue, req model.AnalyzeRequest) (model.AgentRun, error) {
	rec := rules.Analyze(issue)

	ruleFired, _ := rec.ToolResults["rule_fired"].(string)
	query := BuildDocQuery(issue.Domain, ruleFired, issue.Description)

	strategy := p.pickStrategy(issue, req)
	hits, used := p.retriever.Search(ctx, query, p.store.ListDocuments(), p.config.Retrieval.Limit, strategy)
	citable := p.retriever.Citable(hits, used)

	rec.Citations = make([]string, 0, len(citable))
	for _, h := range citable {
		rec.Citations = append(rec.Citations, h.DocID.String())
	}
	rec.ToolResults["rag_method"] = string(used)
	rec.ToolResults["citation_hits"] = auditHits(hits)

	if p.shouldRefine(issue, req) {
		rec.ToolResults["llm_requested"] = true
		if err := p.limiter.Wait(ctx, worker.CapabilityLLM); err != nil {
			return model.AgentRun{}, fmt.Errorf("waiting for llm rate limit: %w", err)
		}
		rec = p.refiner.Refine(ctx, issue, rec, req.LLMModel)
	}

	rulesVersion := req.RulesVersion
	if rulesVersion == "" {
		rulesVersion = model.DefaultRulesVersion
	}
	if req.ReplayOfRunID != nil {
		rec.ToolResults["replay_of_run_id"] = req.ReplayOfRunID.String()
	}

	run := model.AgentRun{
		RunID:          uuid.New(),
		IssueID:        issue.IssueID,
		CreatedAt:      time.Now().UTC(),
		RulesVersion:   rulesVersion,
		Strategy:       string(used),
		ReplayOfRunID:  req.ReplayOfRunID,
		Recommendation: rec,
	}
	if err := p.store.AppendRun(run); err != nil {
		return model.AgentRun{}, err
	}

	p.logger.Info("analysis run complete",
		"issue_id", issue.IssueID,
		"run_id", run.RunID,
		"rule_fired", ruleFired,
		"strategy", used,
		"citations", len(rec.Citations))
	return run, nil
}

// pickStrategy resolves the retrieval strategy. Request override wins, then
// issues classified as needing nuanced reasoning get similarity search, then
// the configured default applies. Similarity still degrades to keyword inside
// the retriever when no embedding capability exists.
func (p *Pipeline) pickStrategy(issue model.Issue, req model.AnalyzeRequest) retrieve.Strategy {
	if req.UseSimilarity != nil {
		if *req.UseSimilarity {
			return retrieve.StrategySimilarity
		}
		return retrieve.StrategyKeyword
	}
	if issue.IssueType == model.TypeLLMRequired {
		return retrieve.StrategySimilarity
	}
	if p.config.Retrieval.Strategy == string(retrieve.StrategySimilarity) {
		return retrieve.StrategySimilarity
	}
	return retrieve.StrategyKeyword
}

// shouldRefine resolves refinement gating with the same precedence as
// strategy selection: request override, then issue type, then global config.
func (p *Pipeline) shouldRefine(issue model.Issue, req model.AnalyzeRequest) bool {
	if req.UseLLM != nil {
		return *req.UseLLM
	}
	if issue.IssueType == model.TypeLLMRequired {
		return true
	}
	return p.config.LLM.Enabled
}

// auditHits flattens retrieval hits into plain maps for the audit bag. All
// returned hits are recorded, not just the citable ones, so the refinement
// prompt and reviewers can see near-misses.
func auditHits(hits []model.DocumentHit) []map[string]any {
	out := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]any{
			"doc_id":  h.DocID.String(),
			"title":   h.Title,
			"source":  h.Source,
			"score":   h.Score,
			"snippet": h.Snippet,
		})
	}
	return out
}
