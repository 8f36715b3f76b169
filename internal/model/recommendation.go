package model

// Action is the recommended next step for an issue.
type Action string

const (
	ActionQuerySite     Action = "QUERY_SITE"
	ActionDataFix       Action = "DATA_FIX"
	ActionMedicalReview Action = "MEDICAL_REVIEW"
	ActionIgnore        Action = "IGNORE"
	ActionOther         Action = "OTHER"
)

// Severity ranks how urgent an issue appears to be.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Recommendation is the structured output of an analysis run.
//
// Severity and action are set exactly once by the deterministic rule engine
// and are never altered by the refinement stage. Only rationale, confidence,
// missing info and the draft message are refinable.
type Recommendation struct {
	Severity   Severity `json:"severity"`
	Action     Action   `json:"action"`
	Confidence float64  `json:"confidence"` // in [0,1]
	Rationale  string   `json:"rationale"`

	// MissingInfo makes uncertainty explicit: what would improve confidence.
	MissingInfo []string `json:"missing_info"`

	// Citations holds document IDs of retrieved guidance.
	Citations []string `json:"citations"`

	// ToolResults is a bounded, structured audit bag explaining which
	// signals fired. Never the full evidence payload.
	ToolResults map[string]any `json:"tool_results"`

	// DraftMessage is optional human-editable text (site query or internal
	// note). Empty when no message applies.
	DraftMessage string `json:"draft_message,omitempty"`
}

// Clone returns a deep-enough copy for the refinement stage: tool results
// and slices are copied so the deterministic recommendation stays immutable.
func (r Recommendation) Clone() Recommendation {
	out := r
	out.MissingInfo = append([]string(nil), r.MissingInfo...)
	out.Citations = append([]string(nil), r.Citations...)
	out.ToolResults = make(map[string]any, len(r.ToolResults))
	for k, v := range r.ToolResults {
		out.ToolResults[k] = v
	}
	return out
}
