package triage

import (
	"strings"

	"triagecopilot/internal/model"
	"triagecopilot/internal/rules"
)

// BuildDocQuery builds the retrieval query for an analysis run. Richer
// queries with context retrieve better than bare keywords, so the issue's
// domain is combined with a phrase keyed off the deterministic rule that
// fired; when no rule-specific phrase applies the issue description is
// appended to give the similarity strategy more signal.
func BuildDocQuery(domain model.IssueDomain, ruleFired, description string) string {
	base := strings.TrimSpace(string(domain))

	switch ruleFired {
	case rules.RuleDateInconsistency:
		return base + " adverse event date start end inconsistency"
	case rules.RuleMissingField:
		return base + " missing required field data quality"
	case rules.RuleOutOfRange:
		return base + " out of range limits validation"
	case rules.RuleDuplicate:
		return base + " duplicate record de-duplication data quality"
	case rules.RuleFallback:
		if description != "" {
			return strings.TrimSpace(base + " " + description)
		}
		return base + " data quality issue"
	}

	if description != "" {
		return strings.TrimSpace(base + " " + description)
	}
	return base
}
