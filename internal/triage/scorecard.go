package triage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"triagecopilot/internal/model"
)

// Expectation is a labelled ground-truth outcome for one issue, used to
// measure rule-set agreement over a labelled batch.
type Expectation struct {
	IssueID  uuid.UUID      `json:"issue_id"`
	Action   model.Action   `json:"action"`
	Severity model.Severity `json:"severity"`
}

// Scorecard aggregates agreement between the latest run of each labelled
// issue and its expectation.
type Scorecard struct {
	Total           int `json:"total"`
	Missing         int `json:"missing"` // labelled issues with no run
	ActionMatches   int `json:"action_matches"`
	SeverityMatches int `json:"severity_matches"`
	BothMatch       int `json:"both_match"`
}

// ActionRate is the fraction of scored issues whose recommended action
// matched the label.
func (s Scorecard) ActionRate() float64 {
	scored := s.Total - s.Missing
	if scored == 0 {
		return 0
	}
	return float64(s.ActionMatches) / float64(scored)
}

// SeverityRate is the fraction of scored issues whose recommended severity
// matched the label.
func (s Scorecard) SeverityRate() float64 {
	scored := s.Total - s.Missing
	if scored == 0 {
		return 0
	}
	return float64(s.SeverityMatches) / float64(scored)
}

// String renders a short human-readable summary.
func (s Scorecard) String() string {
	var b strings.Builder
	scored := s.Total - s.Missing
	fmt.Fprintf(&b, "scored %d/%d labelled issues\n", scored, s.Total)
	fmt.Fprintf(&b, "action agreement:   %d/%d (%.0f%%)\n", s.ActionMatches, scored, s.ActionRate()*100)
	fmt.Fprintf(&b, "severity agreement: %d/%d (%.0f%%)\n", s.SeverityMatches, scored, s.SeverityRate()*100)
	fmt.Fprintf(&b, "full agreement:     %d/%d", s.BothMatch, scored)
	return b.String()
}

// Score compares the latest run per issue against the labelled expectations.
// Labelled issues without any run are counted as missing rather than wrong,
// so a partial batch still yields a meaningful rate.
func Score(runsByIssue map[uuid.UUID][]model.AgentRun, expected []Expectation) Scorecard {
	card := Scorecard{Total: len(expected)}
	for _, exp := range expected {
		runs := runsByIssue[exp.IssueID]
		if len(runs) == 0 {
			card.Missing++
			continue
		}
		latest := runs[len(runs)-1].Recommendation
		actionOK := latest.Action == exp.Action
		severityOK := latest.Severity == exp.Severity
		if actionOK {
			card.ActionMatches++
		}
		if severityOK {
			card.SeverityMatches++
		}
		if actionOK && severityOK {
			card.BothMatch++
		}
	}
	return card
}
