package model

import (
	"time"

	"github.com/google/uuid"
)

// AgentRun is one immutable analysis run for an issue. New analysis produces
// a new run record, never an in-place edit.
type AgentRun struct {
	RunID          uuid.UUID      `json:"run_id"`
	IssueID        uuid.UUID      `json:"issue_id"`
	CreatedAt      time.Time      `json:"created_at"`
	RulesVersion   string         `json:"rules_version"`
	Strategy       string         `json:"retrieval_strategy"`
	ReplayOfRunID  *uuid.UUID     `json:"replay_of_run_id,omitempty"`
	Recommendation Recommendation `json:"recommendation"`
}

// AnalyzeRequest carries per-run options. Nil pointer fields mean "no
// request-level override": the global configuration applies, which in turn
// falls back to the compiled-in default.
type AnalyzeRequest struct {
	RulesVersion  string     `json:"rules_version"`
	ReplayOfRunID *uuid.UUID `json:"replay_of_run_id,omitempty"`

	// UseLLM overrides refinement gating for this run.
	UseLLM *bool `json:"use_llm,omitempty"`
	// UseSimilarity overrides the retrieval strategy for this run.
	UseSimilarity *bool `json:"use_similarity,omitempty"`
	// LLMModel overrides the refinement model identifier for this run.
	LLMModel string `json:"llm_model,omitempty"`
}

// DefaultRulesVersion labels the compiled-in deterministic rule set.
const DefaultRulesVersion = "v0.1"

// DecisionType is what a human reviewer did with a run's recommendation.
type DecisionType string

const (
	DecisionAccept DecisionType = "accept"
	DecisionEdit   DecisionType = "edit"
	DecisionReject DecisionType = "reject"
)

// DecisionCreate is the input for recording a reviewer decision on a run.
type DecisionCreate struct {
	RunID       uuid.UUID    `json:"run_id"`
	Type        DecisionType `json:"decision_type"`
	FinalAction Action       `json:"final_action"`
	FinalText   string       `json:"final_text,omitempty"`
	Reviewer    string       `json:"reviewer"`
	Reason      string       `json:"reason,omitempty"`
}

// Decision is a stored reviewer decision, tied to an existing run.
type Decision struct {
	DecisionID  uuid.UUID    `json:"decision_id"`
	IssueID     uuid.UUID    `json:"issue_id"`
	RunID       uuid.UUID    `json:"run_id"`
	CreatedAt   time.Time    `json:"created_at"`
	Type        DecisionType `json:"decision_type"`
	FinalAction Action       `json:"final_action"`
	FinalText   string       `json:"final_text,omitempty"`
	Reviewer    string       `json:"reviewer"`
	Reason      string       `json:"reason,omitempty"`
}
