// Package refine implements the optional enhancement stage: it takes the
// deterministic recommendation plus retrieved citations, asks an external
// text-generation capability for a constrained JSON refinement, and merges
// the returned fields back in.
//
// The deterministic recommendation stays the auditable source of truth.
// Severity and action are never merged from the refiner, and any failure in
// prompt construction, the external call, or response parsing silently
// returns the original recommendation: callers detect "no enhancement" by
// the absence of the llm_enhanced marker in tool_results, never by an error.
package refine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"triagecopilot/internal/llm"
	"triagecopilot/internal/model"
)

// Audit keys recorded in tool_results on a successful merge.
const (
	KeyEnhanced           = "llm_enhanced"
	KeyModel              = "llm_model"
	KeyRationaleOriginal  = "llm_rationale_original"
	KeyConfidenceOriginal = "llm_confidence_original"
)

const systemPrompt = "You are a clinical data quality analyst. Provide structured, evidence-based recommendations."

// Refiner wraps the external refinement capability.
type Refiner struct {
	provider llm.Provider // nil disables refinement entirely
	model    string
	logger   *slog.Logger
}

// NewRefiner builds a refiner. A nil provider makes Refine a no-op.
func NewRefiner(provider llm.Provider, modelName string, logger *slog.Logger) *Refiner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refiner{provider: provider, model: modelName, logger: logger}
}

// Enabled reports whether a refinement capability is configured.
func (r *Refiner) Enabled() bool {
	return r.provider != nil
}

// refinement is the constrained JSON shape the capability must return.
// Pointer fields distinguish "structurally absent" (keep the deterministic
// value) from "present but empty" (deliberate override).
type refinement struct {
	Rationale   *string   `json:"rationale_enhanced"`
	Confidence  *float64  `json:"confidence_adjusted"`
	DraftMsg    *string   `json:"draft_message_enhanced"`
	MissingInfo *[]string `json:"missing_info_enhanced"`
}

func (ref refinement) empty() bool {
	return ref.Rationale == nil && ref.Confidence == nil && ref.DraftMsg == nil && ref.MissingInfo == nil
}

// Refine enhances a deterministic recommendation. modelOverride takes
// precedence over the configured model. On any failure the original
// recommendation is returned unchanged.
func (r *Refiner) Refine(ctx context.Context, issue model.Issue, rec model.Recommendation, modelOverride string) model.Recommendation {
	if r.provider == nil {
		return rec
	}

	modelName := modelOverride
	if modelName == "" {
		modelName = r.model
	}

	resp, err := r.provider.Generate(ctx, llm.GenerateRequest{
		System:    systemPrompt,
		Prompt:    BuildPrompt(issue, rec),
		Model:     modelName,
		ForceJSON: true,
	})
	if err != nil {
		r.logger.Warn("refinement call failed, keeping deterministic recommendation", "error", err)
		return rec
	}

	var ref refinement
	if err := json.Unmarshal([]byte(resp.Content), &ref); err != nil {
		r.logger.Warn("refinement reply was not valid JSON, keeping deterministic recommendation", "error", err)
		return rec
	}

	// A reply that supplies none of the recognized fields is a no-op even
	// though the call itself succeeded.
	if ref.empty() {
		r.logger.Warn("refinement reply had no enhancement fields, keeping deterministic recommendation")
		return rec
	}

	return merge(rec, ref, modelName)
}

// merge applies the field-level merge policy. Severity and action always come
// from the deterministic recommendation; merged confidence is clamped to
// [0,1]; the pre-merge rationale and confidence are preserved under audit
// keys.
func merge(rec model.Recommendation, ref refinement, modelName string) model.Recommendation {
	out := rec.Clone()

	if ref.Rationale != nil {
		out.Rationale = *ref.Rationale
	}
	if ref.Confidence != nil {
		out.Confidence = clamp01(*ref.Confidence)
	}
	if ref.DraftMsg != nil {
		out.DraftMessage = *ref.DraftMsg
	}
	if ref.MissingInfo != nil {
		out.MissingInfo = *ref.MissingInfo
	}

	out.ToolResults[KeyEnhanced] = true
	out.ToolResults[KeyModel] = modelName
	out.ToolResults[KeyRationaleOriginal] = rec.Rationale
	out.ToolResults[KeyConfidenceOriginal] = rec.Confidence

	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BuildPrompt constructs the refinement prompt with grounding discipline:
// the capability is told whether citations exist, warned when every citation
// has a low similarity score, and instructed to say plainly when no relevant
// guidance was found rather than inventing content.
func BuildPrompt(issue model.Issue, rec model.Recommendation) string {
	ruleFired := "FALLBACK"
	if tag, ok := rec.ToolResults["rule_fired"].(string); ok && tag != "" {
		ruleFired = tag
	}

	fields := "N/A"
	if len(issue.Fields) > 0 {
		fields = strings.Join(issue.Fields, ", ")
	}

	draft := rec.DraftMessage
	if draft == "" {
		draft = "N/A"
	}

	var b strings.Builder

	fmt.Fprintf(&b, `You are analyzing clinical data quality issues in a data management system.
Messages will be sent to site investigators (QUERY_SITE) or used as internal notes (DATA_FIX).
These are technical query notes, NOT emails - they should be direct and concise.

Issue Details:
- Domain: %s
- Subject ID: %s
- Fields: %s
- Description: %s%s

Deterministic Analysis:
- Rule fired: %s
- Current recommendation: %s
- Current severity: %s
- Current confidence: %.2f
- Current rationale: %s
- Current draft message: %s%s
`,
		issue.Domain, issue.SubjectID, fields, issue.Description, evidenceDetails(issue),
		ruleFired, rec.Action, rec.Severity, rec.Confidence, rec.Rationale, draft,
		citationInfo(rec),
	)

	b.WriteString(`
CRITICAL RULES:
- ONLY use information from the guidance documents (citations) provided above.
- DO NOT invent, assume, or make up information not found in the guidance documents.
- If no guidance documents are provided, explicitly state "No relevant guidance information found in retrieved documents".

Respond with JSON containing any of:
- "rationale_enhanced": a more detailed, context-aware rationale (2-3 sentences) explaining WHY this action is recommended, grounded only in the guidance above.
- "confidence_adjusted": adjusted confidence score (0.0-1.0) based on your analysis.
- "draft_message_enhanced": an improved draft message. Include the subject ID, domain and field names; incorporate actual evidence values when available; professional, direct tone with no email greetings or closings; 2-3 sentences maximum.
- "missing_info_enhanced": list of specific missing information that would improve the analysis.

Severity and action are fixed by the deterministic analysis and must not be changed.`)

	return b.String()
}

// evidenceDetails summarizes the non-empty evidence payload fields that help
// message generation, skipping oversized values so the prompt stays bounded.
func evidenceDetails(issue model.Issue) string {
	if len(issue.EvidencePayload) == 0 {
		return ""
	}

	fields := make(map[string]any)
	for key, val := range issue.EvidencePayload {
		if val == nil || val == "" {
			continue
		}
		if s := fmt.Sprintf("%v", val); len(s) <= 500 {
			fields[key] = val
		}
	}
	if len(fields) == 0 {
		return ""
	}

	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return ""
	}
	return "\n\nEvidence Details (from source data):\n" + string(data) +
		"\n\nUse these evidence values when generating the draft message."
}

// citationHit mirrors the tool_results["citation_hits"] entries recorded by
// the triage pipeline.
type citationHit struct {
	Title  string
	Source string
	Score  float64
}

// citationInfo renders the retrieved-guidance section of the prompt,
// including the low-relevance warning and the no-guidance instruction.
func citationInfo(rec model.Recommendation) string {
	if len(rec.Citations) == 0 {
		return "\n\nNO GUIDANCE DOCUMENTS FOUND: no relevant guidance documents were retrieved for this issue. " +
			"You MUST explicitly state in your rationale and draft message that no relevant guidance was found. " +
			"DO NOT make up guidance or recommendations."
	}

	hits := citationHits(rec)
	if len(hits) == 0 {
		return fmt.Sprintf("\n\nCitations: %d document(s) retrieved (details not available).", len(rec.Citations))
	}

	var b strings.Builder
	b.WriteString("\n\nRetrieved Guidance Documents (Citations):\n")
	lowRelevance := 0
	for i, h := range hits {
		if i >= 3 {
			break
		}
		scoreStr := ""
		if h.Score > 0 && h.Score <= 1 {
			scoreStr = fmt.Sprintf(" (similarity: %.1f%%)", h.Score*100)
			if h.Score < 0.40 {
				lowRelevance++
			}
		}
		fmt.Fprintf(&b, "%d. %s (%s)%s\n", i+1, h.Title, h.Source, scoreStr)
	}

	shown := len(hits)
	if shown > 3 {
		shown = 3
	}
	if lowRelevance == shown && shown > 0 {
		b.WriteString("\nWARNING: all retrieved documents have low similarity scores (<40%) and may not be relevant. Treat them as non-authoritative and state that no relevant guidance was found.")
	}
	b.WriteString("\nBase your recommendations and draft message ONLY on the guidance documents above.")

	return b.String()
}

func citationHits(rec model.Recommendation) []citationHit {
	raw, ok := rec.ToolResults["citation_hits"]
	if !ok {
		return nil
	}

	var out []citationHit
	switch hits := raw.(type) {
	case []map[string]any:
		for _, h := range hits {
			out = append(out, hitFromMap(h))
		}
	case []any:
		for _, item := range hits {
			if h, ok := item.(map[string]any); ok {
				out = append(out, hitFromMap(h))
			}
		}
	}
	return out
}

func hitFromMap(h map[string]any) citationHit {
	hit := citationHit{}
	if v, ok := h["title"].(string); ok {
		hit.Title = v
	}
	if v, ok := h["source"].(string); ok {
		hit.Source = v
	}
	switch v := h["score"].(type) {
	case float64:
		hit.Score = v
	case float32:
		hit.Score = float64(v)
	}
	return hit
}
