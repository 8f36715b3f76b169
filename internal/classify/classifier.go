// Package classify decides whether an issue can be handled deterministically
// or needs nuanced reasoning, using layered keyword and structural scoring
// with an optional external tie-break for low-confidence cases.
//
// The rule-based path is pure and never fails; the external fallback is
// explicitly flagged and any failure in it silently reverts to the
// rule-based result.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"triagecopilot/internal/llm"
	"triagecopilot/internal/model"
)

// Confidence tiers for a classification.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Classification methods.
const (
	MethodRuleBased   = "rule_based"
	MethodLLMFallback = "llm_fallback"
)

// Scoring weights and thresholds. The high threshold is checked against the
// raw accumulators; the medium thresholds against the net score.
const (
	weightEvidenceAmbiguity    = 0.5
	weightStructuralComplexity = 0.3
	weightComplexityIndicator  = 0.4
	weightSimplePattern        = 0.3
	weightDomainRule           = 0.6

	highThreshold   = 0.8
	mediumThreshold = 0.3
)

// Result is the handling-mode decision for one issue.
type Result struct {
	IssueType  model.IssueType `json:"issue_type"`
	Confidence string          `json:"confidence"` // high, medium, low
	Method     string          `json:"method"`     // rule_based, llm_fallback
	Reason     string          `json:"reason"`
	// Score is the net score: negative favors deterministic handling,
	// positive favors escalation.
	Score float64 `json:"score"`
}

// Classify runs the pure rule-based classification.
//
// Evaluation order is fixed: escalation keyword short-circuit, deterministic
// pattern short-circuit, structural scoring, domain refinement, then the
// threshold decision.
func Classify(c model.IssueCreate) Result {
	descLower := strings.ToLower(c.Description)

	// Step 1a: explicit escalation keywords take absolute priority.
	for _, kw := range escalationKeywords {
		if strings.Contains(descLower, kw) {
			return Result{
				IssueType:  model.TypeLLMRequired,
				Confidence: ConfidenceHigh,
				Method:     MethodRuleBased,
				Reason:     fmt.Sprintf("Explicit complexity keyword: %q", kw),
				Score:      1.0,
			}
		}
	}

	// Step 1b: explicit deterministic patterns, with per-pattern exclusions.
	for _, pattern := range deterministicPatterns {
		if strings.Contains(descLower, pattern) && isSimpleDeterministicPattern(pattern, descLower) {
			return Result{
				IssueType:  model.TypeDeterministic,
				Confidence: ConfidenceHigh,
				Method:     MethodRuleBased,
				Reason:     fmt.Sprintf("Deterministic pattern: %q", pattern),
				Score:      -1.0,
			}
		}
	}

	// Step 2: structural scoring from independent signals.
	var escalationScore, deterministicScore float64
	var matched []string

	if reason := assessEvidenceAmbiguity(c.EvidencePayload, descLower); reason != "" {
		escalationScore += weightEvidenceAmbiguity
		matched = append(matched, "Evidence ambiguity: "+reason)
	}

	if reason := assessStructuralComplexity(c.Description, descLower); reason != "" {
		escalationScore += weightStructuralComplexity
		matched = append(matched, reason)
	}

	for _, indicator := range complexityIndicators {
		if strings.Contains(descLower, indicator) {
			escalationScore += weightComplexityIndicator
			matched = append(matched, fmt.Sprintf("Complexity indicator: %q", indicator))
		}
	}

	for _, pattern := range simplePatterns {
		if strings.Contains(descLower, pattern) {
			deterministicScore += weightSimplePattern
			matched = append(matched, fmt.Sprintf("Simple pattern: %q", pattern))
		}
	}

	// Step 3: domain-specific refinement.
	if kind, reason := applyDomainRules(c.Domain, descLower); kind != "" {
		label := fmt.Sprintf("Domain-specific (%s): %s", c.Domain, reason)
		if kind == model.TypeLLMRequired {
			escalationScore += weightDomainRule
		} else {
			deterministicScore += weightDomainRule
		}
		matched = append(matched, label)
	}

	// Step 4: threshold decision on the accumulators and net score. The
	// escalation check is coded first and must remain first.
	net := escalationScore - deterministicScore
	reason := strings.Join(matched, "; ")

	if escalationScore >= highThreshold {
		if reason == "" {
			reason = "Multiple complexity indicators"
		}
		return Result{model.TypeLLMRequired, ConfidenceHigh, MethodRuleBased, reason, net}
	}
	if deterministicScore >= highThreshold {
		if reason == "" {
			reason = "Multiple deterministic indicators"
		}
		return Result{model.TypeDeterministic, ConfidenceHigh, MethodRuleBased, reason, net}
	}
	if net > mediumThreshold {
		if reason == "" {
			reason = "Moderate complexity indicators"
		}
		return Result{model.TypeLLMRequired, ConfidenceMedium, MethodRuleBased, reason, net}
	}
	if net < -mediumThreshold {
		if reason == "" {
			reason = "Moderate deterministic indicators"
		}
		return Result{model.TypeDeterministic, ConfidenceMedium, MethodRuleBased, reason, net}
	}

	// Default-safe: deterministic at low confidence, which makes the issue
	// eligible for the external tie-break.
	return Result{
		IssueType:  model.TypeDeterministic,
		Confidence: ConfidenceLow,
		Method:     MethodRuleBased,
		Reason:     "No clear indicators, defaulting to deterministic",
		Score:      net,
	}
}

// assessEvidenceAmbiguity checks the payload and description for signals
// that interpretation is required. Returns a reason, or "" if none.
func assessEvidenceAmbiguity(payload map[string]any, descLower string) string {
	if strings.Contains(descLower, "conflicts") || strings.Contains(descLower, "differs") {
		return "Conflicting values in evidence"
	}

	if rows, ok := payload["rows"].([]any); ok && len(rows) > 1 {
		if strings.Contains(descLower, "assess") || strings.Contains(descLower, "determine") {
			return "Multiple rows requiring assessment"
		}
	}

	if _, hasStart := payload["start_date"]; hasStart {
		if _, hasEnd := payload["end_date"]; hasEnd {
			for _, word := range []string{"conflict", "reconciliation", "timeline"} {
				if strings.Contains(descLower, word) {
					return "Date conflicts in evidence"
				}
			}
		}
	}

	if _, hasRef := payload["reference"]; hasRef {
		if _, hasVal := payload["value"]; hasVal {
			if strings.Contains(descLower, "differs") || strings.Contains(descLower, "discrepancy") {
				return "Value-reference discrepancy"
			}
		}
	}

	return ""
}

// assessStructuralComplexity flags long multi-clause descriptions, explicit
// questions and conditional language. Returns a reason, or "" if none.
func assessStructuralComplexity(description, descLower string) string {
	descLen := len(description)

	// Very short descriptions are usually simple.
	if descLen < 20 {
		return ""
	}

	if descLen > 100 {
		clauseCount := strings.Count(descLower, ".") +
			strings.Count(descLower, ";") +
			strings.Count(descLower, " and ") +
			strings.Count(descLower, " or ")

		if clauseCount >= 3 && !containsAnyPattern(descLower, deterministicPatterns) {
			return fmt.Sprintf("Long description (%d chars) with %d clauses", descLen, clauseCount)
		}
	}

	if strings.Contains(description, "?") {
		return "Description contains questions (uncertainty indicator)"
	}

	conditionalCount := 0
	for _, word := range conditionalWords {
		if strings.Contains(descLower, word) {
			conditionalCount++
		}
	}
	if conditionalCount >= 2 {
		return fmt.Sprintf("Multiple conditional phrases (%d) indicating uncertainty", conditionalCount)
	}

	return ""
}

func containsAnyPattern(descLower string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(descLower, p) {
			return true
		}
	}
	return false
}

// applyDomainRules returns the refinement kind and reason for the first
// matching domain pattern; escalation patterns are checked first.
func applyDomainRules(domain model.IssueDomain, descLower string) (model.IssueType, string) {
	rules, ok := domainRules[domain]
	if !ok {
		return "", ""
	}
	for _, pattern := range rules.escalation {
		if strings.Contains(descLower, pattern) {
			return model.TypeLLMRequired, fmt.Sprintf("Domain-specific pattern: %q", pattern)
		}
	}
	for _, pattern := range rules.deterministic {
		if strings.Contains(descLower, pattern) {
			return model.TypeDeterministic, fmt.Sprintf("Domain-specific pattern: %q", pattern)
		}
	}
	return "", ""
}

// Classifier wraps the rule-based path with the optional external tie-break.
type Classifier struct {
	provider llm.Provider // nil when the fallback capability is disabled
	model    string
	logger   *slog.Logger
}

// NewClassifier builds a classifier. A nil provider disables the fallback;
// the rule-based path is always available.
func NewClassifier(provider llm.Provider, modelName string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, model: modelName, logger: logger}
}

// ClassifyWithFallback runs rule-based classification and, when the result
// is low confidence and allowFallback is set, consults the external
// capability to break the tie. Any fallback failure reverts silently to the
// rule-based result: this method never returns an error.
func (c *Classifier) ClassifyWithFallback(ctx context.Context, ic model.IssueCreate, allowFallback bool) Result {
	result := Classify(ic)
	if result.Confidence != ConfidenceLow || !allowFallback || c.provider == nil {
		return result
	}

	fallback, err := c.classifyExternal(ctx, ic)
	if err != nil {
		c.logger.Warn("classifier fallback failed, keeping rule-based result", "error", err)
		return result
	}
	return fallback
}

// classificationReply is the constrained JSON shape the external capability
// must return.
type classificationReply struct {
	Classification string `json:"classification"`
	Reason         string `json:"reason"`
}

func (c *Classifier) classifyExternal(ctx context.Context, ic model.IssueCreate) (Result, error) {
	resp, err := c.provider.Generate(ctx, llm.GenerateRequest{
		System: "You are a clinical data quality analyst. Classify issues as either " +
			"'deterministic' (can be handled by simple rules) or 'llm_required' " +
			"(needs nuanced analysis). Respond with JSON only.",
		Prompt:    buildClassificationPrompt(ic),
		Model:     c.model,
		ForceJSON: true,
	})
	if err != nil {
		return Result{}, err
	}

	var reply classificationReply
	if err := json.Unmarshal([]byte(resp.Content), &reply); err != nil {
		return Result{}, fmt.Errorf("malformed classification reply: %w", err)
	}
	if reply.Classification == "" {
		return Result{}, fmt.Errorf("classification reply missing classification field")
	}

	issueType := model.TypeDeterministic
	if strings.ToLower(reply.Classification) == string(model.TypeLLMRequired) {
		issueType = model.TypeLLMRequired
	}
	reason := reply.Reason
	if reason == "" {
		reason = "LLM classification"
	}
	return Result{
		IssueType:  issueType,
		Confidence: ConfidenceHigh,
		Method:     MethodLLMFallback,
		Reason:     reason,
	}, nil
}

func buildClassificationPrompt(ic model.IssueCreate) string {
	evidenceJSON := "{}"
	if ic.EvidencePayload != nil {
		if b, err := json.MarshalIndent(ic.EvidencePayload, "", "  "); err == nil {
			evidenceJSON = string(b)
		}
	}
	fields := "N/A"
	if len(ic.Fields) > 0 {
		fields = strings.Join(ic.Fields, ", ")
	}

	return fmt.Sprintf(`Classify this clinical data quality issue.

Issue Details:
- Domain: %s
- Subject ID: %s
- Fields: %s
- Description: %s
- Evidence: %s

Classification Options:
1. "deterministic": Simple, rule-based issues (missing fields, date inconsistencies, out-of-range values, duplicates)
2. "llm_required": Complex issues requiring clinical judgment, ambiguity resolution, or nuanced analysis

Respond with JSON:
{
  "classification": "deterministic" or "llm_required",
  "reason": "Brief explanation of why this classification was chosen"
}`, ic.Domain, ic.SubjectID, fields, ic.Description, evidenceJSON)
}
