// Package rules implements the deterministic rule engine: an ordered chain
// of independent rules that converts an issue plus its evidence into a
// severity/action/confidence/rationale tuple with structured supporting
// signals.
//
// The engine is the auditable source of truth for every analysis run. It is
// a total function over well-typed issues: unparseable sub-values degrade to
// "not detected", never to an error. First match wins, and the evaluation
// order is load-bearing: changing it changes behavior on ambiguous inputs.
package rules

import (
	"strings"
	"time"

	"triagecopilot/internal/evidence"
	"triagecopilot/internal/model"
)

// Stable rule tags recorded in tool_results["rule_fired"].
const (
	RuleDateInconsistency = "AE_DATE_INCONSISTENCY"
	RuleMissingField      = "MISSING_CRITICAL_FIELD"
	RuleOutOfRange        = "OUT_OF_RANGE"
	RuleDuplicate         = "DUPLICATE_RECORD"
	RuleFallback          = "FALLBACK"
)

// maxReportedValues caps the offending values copied into tool_results; the
// true total count is still reported.
const maxReportedValues = 5

type draftKind int

const (
	draftNone draftKind = iota
	draftQuerySite
	draftDataFix
)

// outcome is the tagged result a rule produces when it fires.
type outcome struct {
	severity    model.Severity
	action      model.Action
	confidence  float64
	rationale   string
	draft       draftKind
	missingInfo []string
}

// rule pairs a predicate with its outcome. The predicate returns the
// specific signals that triggered it, for the audit bag.
type rule struct {
	tag     string
	match   func(s *scan) (bool, map[string]any)
	outcome outcome
}

// scan holds the derived views of one issue, computed once per analysis.
type scan struct {
	issue       model.Issue
	descLower   string
	start, end  *time.Time
	dateSignals evidence.DateSignals
	numeric     []evidence.NumericSignal
}

func newScan(issue model.Issue) *scan {
	s := &scan{
		issue:     issue,
		descLower: strings.ToLower(issue.Description),
	}
	s.start, s.end, s.dateSignals = evidence.ExtractDates(issue.EvidencePayload)
	s.numeric = evidence.ExtractNumericSignals(issue.EvidencePayload)
	return s
}

func (s *scan) containsAll(needles ...string) bool {
	for _, n := range needles {
		if !strings.Contains(s.descLower, n) {
			return false
		}
	}
	return true
}

// ruleSet is the compiled-in, ordered rule chain. It is never mutated at
// runtime.
var ruleSet = []rule{
	{
		tag: RuleDateInconsistency,
		match: func(s *scan) (bool, map[string]any) {
			keywordHit := s.containsAll("end", "before", "start")
			computedHit := s.start != nil && s.end != nil && s.end.Before(*s.start)
			if !keywordHit && !computedHit {
				return false, nil
			}
			return true, map[string]any{
				"keyword_match":      keywordHit,
				"parsed_start_found": s.start != nil,
				"parsed_end_found":   s.end != nil,
				"end_before_start":   computedHit,
				"date_candidates":    s.dateSignals,
			}
		},
		outcome: outcome{
			severity:   model.SeverityHigh,
			action:     model.ActionQuerySite,
			confidence: 0.9,
			rationale:  "Potential AE date inconsistency: end appears to be before start.",
			draft:      draftQuerySite,
		},
	},
	{
		tag: RuleMissingField,
		match: func(s *scan) (bool, map[string]any) {
			keywordHit := strings.Contains(s.descLower, "missing")
			evidenceHit := evidence.HasMissingValue(s.issue.EvidencePayload)
			if !keywordHit && !evidenceHit {
				return false, nil
			}
			return true, map[string]any{
				"keyword_match":          keywordHit,
				"missing_value_detected": evidenceHit,
			}
		},
		outcome: outcome{
			severity:   model.SeverityMedium,
			action:     model.ActionDataFix,
			confidence: 0.7,
			rationale:  "Missing value(s) detected for one or more critical fields.",
			draft:      draftDataFix,
		},
	},
	{
		tag: RuleOutOfRange,
		match: func(s *scan) (bool, map[string]any) {
			keywordHit := strings.Contains(s.descLower, "out of range")
			var offending []evidence.NumericSignal
			for _, sig := range s.numeric {
				if isOutOfRange(sig.KeyPath, sig.Value) {
					offending = append(offending, sig)
				}
			}
			if !keywordHit && len(offending) == 0 {
				return false, nil
			}
			reported := offending
			if len(reported) > maxReportedValues {
				reported = reported[:maxReportedValues]
			}
			return true, map[string]any{
				"keyword_match":       keywordHit,
				"out_of_range_values": reported,
				"out_of_range_count":  len(offending),
			}
		},
		outcome: outcome{
			severity:   model.SeverityMedium,
			action:     model.ActionQuerySite,
			confidence: 0.7,
			rationale:  "Potential out-of-range value(s) detected in evidence.",
			draft:      draftQuerySite,
		},
	},
	{
		tag: RuleDuplicate,
		match: func(s *scan) (bool, map[string]any) {
			if !strings.Contains(s.descLower, "duplicate") {
				return false, nil
			}
			return true, map[string]any{"keyword_match": true}
		},
		outcome: outcome{
			severity:   model.SeverityLow,
			action:     model.ActionDataFix,
			confidence: 0.6,
			rationale:  "Possible duplicate record indicated by the issue description.",
			draft:      draftDataFix,
		},
	},
	{
		tag: RuleFallback,
		match: func(s *scan) (bool, map[string]any) {
			return true, map[string]any{"keyword_match": false}
		},
		outcome: outcome{
			severity:   model.SeverityLow,
			action:     model.ActionMedicalReview,
			confidence: 0.3,
			rationale:  "Insufficient deterministic signals to make a strong recommendation.",
			draft:      draftNone,
			missingInfo: []string{
				"Confirm which records/visits are impacted.",
				"Provide relevant start/end dates or measurement values.",
				"Confirm the expected rule/specification for this check.",
			},
		},
	},
}

// Analyze runs the ordered rule chain and returns a recommendation. It never
// fails for a well-typed issue and calling it twice on an unchanged issue
// yields an identical result.
func Analyze(issue model.Issue) model.Recommendation {
	s := newScan(issue)
	for _, r := range ruleSet {
		matched, signals := r.match(s)
		if !matched {
			continue
		}
		return buildRecommendation(issue, r, signals)
	}
	// Unreachable: the fallback rule always matches.
	return buildRecommendation(issue, ruleSet[len(ruleSet)-1], map[string]any{"keyword_match": false})
}

func buildRecommendation(issue model.Issue, r rule, signals map[string]any) model.Recommendation {
	var draft string
	switch r.outcome.draft {
	case draftQuerySite:
		draft = BuildQuerySiteMessage(issue)
	case draftDataFix:
		draft = BuildDataFixMessage(issue)
	}

	missing := append([]string{}, r.outcome.missingInfo...)

	return model.Recommendation{
		Severity:    r.outcome.severity,
		Action:      r.outcome.action,
		Confidence:  r.outcome.confidence,
		Rationale:   r.outcome.rationale,
		MissingInfo: missing,
		Citations:   []string{},
		ToolResults: map[string]any{
			"rule_fired": r.tag,
			"signals":    signals,
			"evidence_summary": map[string]any{
				"subject_id": issue.SubjectID,
				"fields":     issue.Fields,
			},
		},
		DraftMessage: draft,
	}
}
