package rules

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"triagecopilot/internal/evidence"
	"triagecopilot/internal/model"
)

func makeIssue(description string, payload map[string]any) model.Issue {
	return model.NewIssue(model.IssueCreate{
		Source:          model.SourceEditCheck,
		Domain:          model.DomainAE,
		SubjectID:       "SUBJ-001",
		Fields:          []string{"AESTDTC", "AEENDTC"},
		Description:     description,
		EvidencePayload: payload,
	})
}

func ruleFired(t *testing.T, rec model.Recommendation) string {
	t.Helper()
	tag, ok := rec.ToolResults["rule_fired"].(string)
	if !ok {
		t.Fatalf("tool_results missing rule_fired: %+v", rec.ToolResults)
	}
	return tag
}

func TestAnalyze_DateInconsistencyScenario(t *testing.T) {
	issue := makeIssue("AE end date is before start date", map[string]any{
		"start_date": "2024-01-15",
		"end_date":   "2024-01-10",
	})

	rec := Analyze(issue)

	if rec.Severity != model.SeverityHigh {
		t.Errorf("severity = %s, want HIGH", rec.Severity)
	}
	if rec.Action != model.ActionQuerySite {
		t.Errorf("action = %s, want QUERY_SITE", rec.Action)
	}
	if rec.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", rec.Confidence)
	}
	if got := ruleFired(t, rec); got != RuleDateInconsistency {
		t.Errorf("rule_fired = %s, want %s", got, RuleDateInconsistency)
	}
	if rec.DraftMessage == "" {
		t.Error("expected a site query draft message")
	}
}

func TestAnalyze_DateInconsistencyFromEvidenceOnly(t *testing.T) {
	// No keyword trigger; only computed end < start.
	issue := makeIssue("dates look odd", map[string]any{
		"start_date": "2024-01-15T00:00:00Z",
		"end_date":   "2024-01-10T00:00:00Z",
	})

	rec := Analyze(issue)

	if got := ruleFired(t, rec); got != RuleDateInconsistency {
		t.Fatalf("rule_fired = %s, want %s", got, RuleDateInconsistency)
	}
	signals := rec.ToolResults["signals"].(map[string]any)
	if signals["keyword_match"] != false {
		t.Error("expected keyword_match=false")
	}
	if signals["end_before_start"] != true {
		t.Error("expected end_before_start=true")
	}
}

func TestAnalyze_RulePrecedence_DateBeatsMissing(t *testing.T) {
	// Matches both the date-inconsistency keywords and the missing keyword;
	// rule 1 must win.
	issue := makeIssue("end date is before start date and AESER is missing", map[string]any{
		"AESER": nil,
	})

	rec := Analyze(issue)

	if got := ruleFired(t, rec); got != RuleDateInconsistency {
		t.Errorf("rule_fired = %s, want %s (rule order is load-bearing)", got, RuleDateInconsistency)
	}
}

func TestAnalyze_MissingFieldScenario(t *testing.T) {
	issue := makeIssue("Missing required field AESER", map[string]any{
		"AESER": nil,
	})

	rec := Analyze(issue)

	if rec.Severity != model.SeverityMedium || rec.Action != model.ActionDataFix || rec.Confidence != 0.7 {
		t.Errorf("got %s/%s/%v, want MEDIUM/DATA_FIX/0.7", rec.Severity, rec.Action, rec.Confidence)
	}
	if got := ruleFired(t, rec); got != RuleMissingField {
		t.Errorf("rule_fired = %s, want %s", got, RuleMissingField)
	}
}

func TestAnalyze_OutOfRangeKeywordOnly(t *testing.T) {
	// LBORRES does not match any vital pattern and 4.2 is inside the generic
	// bounds, so only the keyword fires the rule.
	issue := makeIssue("Lab value out of range", map[string]any{
		"LBORRES": 4.2,
	})

	rec := Analyze(issue)

	if got := ruleFired(t, rec); got != RuleOutOfRange {
		t.Fatalf("rule_fired = %s, want %s", got, RuleOutOfRange)
	}
	signals := rec.ToolResults["signals"].(map[string]any)
	if signals["keyword_match"] != true {
		t.Error("expected keyword_match=true")
	}
	if signals["out_of_range_count"] != 0 {
		t.Errorf("expected no out-of-range values, got %v", signals["out_of_range_count"])
	}
}

func TestAnalyze_OutOfRangeComputedCapsReportedValues(t *testing.T) {
	payload := map[string]any{}
	for _, key := range []string{"hr_1", "hr_2", "hr_3", "hr_4", "hr_5", "hr_6", "hr_7"} {
		payload[key] = 300.0
	}
	issue := makeIssue("vitals check", payload)

	rec := Analyze(issue)

	if got := ruleFired(t, rec); got != RuleOutOfRange {
		t.Fatalf("rule_fired = %s, want %s", got, RuleOutOfRange)
	}
	signals := rec.ToolResults["signals"].(map[string]any)
	if signals["out_of_range_count"] != 7 {
		t.Errorf("expected true count 7, got %v", signals["out_of_range_count"])
	}
	reported := signals["out_of_range_values"].([]evidence.NumericSignal)
	if len(reported) != 5 {
		t.Errorf("expected reported values capped at 5, got %d", len(reported))
	}
}

func TestAnalyze_DuplicateScenario(t *testing.T) {
	issue := makeIssue("Duplicate entry for visit 3", map[string]any{"visit": "3"})

	rec := Analyze(issue)

	if rec.Severity != model.SeverityLow || rec.Action != model.ActionDataFix || rec.Confidence != 0.6 {
		t.Errorf("got %s/%s/%v, want LOW/DATA_FIX/0.6", rec.Severity, rec.Action, rec.Confidence)
	}
	if got := ruleFired(t, rec); got != RuleDuplicate {
		t.Errorf("rule_fired = %s, want %s", got, RuleDuplicate)
	}
}

func TestAnalyze_Fallback(t *testing.T) {
	issue := makeIssue("please have a look at this subject", map[string]any{"note": "ok"})

	rec := Analyze(issue)

	if rec.Severity != model.SeverityLow || rec.Action != model.ActionMedicalReview || rec.Confidence != 0.3 {
		t.Errorf("got %s/%s/%v, want LOW/MEDICAL_REVIEW/0.3", rec.Severity, rec.Action, rec.Confidence)
	}
	if got := ruleFired(t, rec); got != RuleFallback {
		t.Errorf("rule_fired = %s, want %s", got, RuleFallback)
	}
	if rec.DraftMessage != "" {
		t.Error("fallback must not produce a draft message")
	}
	if len(rec.MissingInfo) != 3 {
		t.Errorf("expected 3 missing-info prompts, got %d", len(rec.MissingInfo))
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	issue := makeIssue("AE end date is before start date", map[string]any{
		"start_date": "2024-01-15",
		"end_date":   "2024-01-10",
		"rows":       []any{map[string]any{"hr": 500.0}},
	})

	first := Analyze(issue)
	second := Analyze(issue)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Analyze is not deterministic (-first +second):\n%s", diff)
	}
}

func TestAnalyze_NeverPanicsOnHostilePayloads(t *testing.T) {
	payloads := []map[string]any{
		nil,
		{},
		{"start_date": 12345, "end_date": []any{"x"}},
		{"deep": map[string]any{"deeper": map[string]any{"deepest": []any{nil, "", map[string]any{"hr": "fast"}}}}},
	}
	for i, p := range payloads {
		issue := makeIssue("", p)
		rec := Analyze(issue)
		if rec.Confidence < 0 || rec.Confidence > 1 {
			t.Errorf("payload %d: confidence out of bounds: %v", i, rec.Confidence)
		}
	}
}

func TestIsOutOfRange_Boundaries(t *testing.T) {
	tests := []struct {
		path  string
		value float64
		want  bool
	}{
		{"vitals.hr", 30, false},
		{"vitals.hr", 220, false},
		{"vitals.hr", 29, true},
		{"vitals.hr", 221, true},
		{"pulse_rate", 250, true},
		{"sysbp", 49, true},
		{"sysbp", 50, false},
		{"dbp", 151, true},
		{"temp_c", 43, false},
		{"temp_c", 43.1, true},
		{"LBORRES", 4.2, false},
		{"LBORRES", 2_000_000, true},
		{"LBORRES", -2_000_000, true},
	}
	for _, tt := range tests {
		if got := isOutOfRange(tt.path, tt.value); got != tt.want {
			t.Errorf("isOutOfRange(%q, %v) = %v, want %v", tt.path, tt.value, got, tt.want)
		}
	}
}

func TestBuildMessages(t *testing.T) {
	issue := makeIssue("End before start", nil)

	query := BuildQuerySiteMessage(issue)
	if !strings.HasPrefix(query, "Subject SUBJ-001") {
		t.Errorf("query message should lead with the subject, got %q", query)
	}

	issue.Fields = nil
	fix := BuildDataFixMessage(issue)
	if want := "(unspecified fields)"; !strings.Contains(fix, want) {
		t.Errorf("expected %q in %q", want, fix)
	}
}
