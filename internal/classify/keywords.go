package classify

import (
	"strings"

	"triagecopilot/internal/model"
)

// The keyword tables below are compiled-in and ordered; they are never
// mutated at runtime. Matching is case-insensitive substring containment
// against the issue description.

// escalationKeywords strongly indicate that nuanced reasoning is required.
// Checked first: a hit short-circuits everything else.
var escalationKeywords = []string{
	// explicit review requirements
	"requires review",
	"requires manual",
	"requires medical",
	"manual review",
	"medical review",
	"clinical review",
	// ambiguity indicators
	"complex",
	"ambiguous",
	"unclear",
	"unclear if",
	"may be",
	"suspected",
	// context and judgment requirements
	"clinical significance",
	"significance unclear",
	"context needed",
	"clinical context",
	"medical judgment",
	// discrepancy and conflict indicators
	"discrepancy",
	"discrepancy vs",
	"differs from",
	"conflicts",
	"reconciliation",
	// assessment requirements
	"assess if",
	"determine if",
	"need to assess",
	"need to determine",
	// non-standard situations
	"uncommon",
	"not in standard",
	"not standard",
	"not in dictionary",
	"not found in",
	// multiple/related conditions
	"multiple related",
	"related conditions",
}

// deterministicPatterns strongly indicate rule-based handling, subject to
// the per-pattern exclusion checks in isSimpleDeterministicPattern.
var deterministicPatterns = []string{
	// missing data
	"missing",
	"missing required",
	"missing field",
	// range validation
	"out of range",
	"outside range",
	"outside limits",
	// data type/format issues
	"invalid",
	"invalid format",
	"invalid date",
	"invalid value",
	// simple date consistency
	"before start",
	"after end",
	"end before start",
	"end date is before start",
	// duplicates
	"duplicate",
	"duplicate record",
	"duplicate entry",
	// unit consistency (simple cases)
	"inconsistent units",
	// partial/incomplete data (simple cases)
	"partial date",
	"incomplete",
}

// complexityIndicators suggest complexity but are less definitive; each hit
// adds 0.4 to the escalation score.
var complexityIndicators = []string{
	"timeline conflicts",
	"date reconciliation",
	"impact on",
	"affects",
	"calculations",
	"bmi",
	"combination product",
	"coding issue",
}

// simplePatterns suggest simple deterministic handling; each hit adds 0.3 to
// the deterministic score.
var simplePatterns = []string{
	"required field",
	"field required",
	"value required",
}

// conditionalWords flag uncertainty when two or more appear.
var conditionalWords = []string{"if", "whether", "may", "might", "could", "possibly"}

// domainRules refine classification per issue domain, applied after the
// general rules. The tables are deliberately asymmetric: some domains only
// define escalation patterns, reflecting which domains commonly need nuance.
type domainRuleSet struct {
	escalation    []string
	deterministic []string
}

var domainRules = map[model.IssueDomain]domainRuleSet{
	model.DomainAE: {
		escalation: []string{
			"multiple related",
			"single or multiple",
			"related conditions",
			"clinical significance",
			"timeline conflicts",
			"date reconciliation",
		},
		deterministic: []string{
			"end before start",
			"end date is before start",
		},
	},
	model.DomainLB: {
		escalation: []string{
			"discrepancy vs",
			"differs from",
			"clinical significance",
			"significance unclear",
		},
		// Simple out-of-range is handled by the general pattern with its
		// exclusion check.
	},
	model.DomainDM: {
		escalation: []string{
			"impact on",
			"affects",
			"calculations",
			"bmi",
		},
	},
	model.DomainCM: {
		escalation: []string{
			"not in standard",
			"not standard",
			"uncommon",
			"manual review",
			"requires manual",
			"requires review",
			"combination product",
			"not in dictionary",
			"coding issue",
		},
	},
}

// isSimpleDeterministicPattern applies exclusion logic: some patterns are
// simple or complex depending on context.
func isSimpleDeterministicPattern(pattern, descLower string) bool {
	switch pattern {
	case "out of range":
		// Out-of-range with clinical significance concerns needs judgment.
		return !strings.Contains(descLower, "significance")
	case "inconsistent units":
		// Unit inconsistencies that affect calculations need judgment.
		return !strings.Contains(descLower, "impact") &&
			!strings.Contains(descLower, "affects") &&
			!strings.Contains(descLower, "calculations")
	default:
		return true
	}
}
