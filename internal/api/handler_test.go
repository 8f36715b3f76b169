package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"triagecopilot/internal/classify"
	"triagecopilot/internal/model"
	"triagecopilot/internal/refine"
	"triagecopilot/internal/retrieve"
	"triagecopilot/internal/store"
	"triagecopilot/internal/triage"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	cfg := model.DefaultConfig()
	st := store.New()
	retriever := retrieve.NewRetriever(nil, nil, cfg.Retrieval, nil)
	refiner := refine.NewRefiner(nil, "", nil)
	pipeline := triage.NewPipeline(st, retriever, refiner, cfg, nil)
	classifier := classify.NewClassifier(nil, "", nil)
	h := NewHandler(st, pipeline, classifier, retriever, cfg, nil)
	return NewRouter(h), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return out
}

type issueResponse struct {
	Issue          model.Issue     `json:"issue"`
	Classification classify.Result `json:"classification"`
}

func createTestIssue(t *testing.T, r *gin.Engine) model.Issue {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/issues", model.IssueCreate{
		Source:      model.SourceEditCheck,
		Domain:      model.DomainVS,
		SubjectID:   "SUBJ-010",
		Fields:      []string{"VSORRES"},
		Description: "Weight value missing at visit 2",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("creating issue: status %d body %s", w.Code, w.Body.String())
	}
	return decode[issueResponse](t, w).Issue
}

func TestCreateIssue(t *testing.T) {
	r, st := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/issues", model.IssueCreate{
		Source:      model.SourceManual,
		Domain:      model.DomainAE,
		SubjectID:   "SUBJ-001",
		Description: "AE end date before start date",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := decode[issueResponse](t, w)
	if resp.Issue.Status != model.StatusOpen {
		t.Errorf("Expected open status, got %s", resp.Issue.Status)
	}
	if resp.Classification.IssueType == "" {
		t.Error("Expected classification on create")
	}
	if _, err := st.GetIssue(resp.Issue.IssueID); err != nil {
		t.Errorf("Expected issue persisted: %v", err)
	}
	if resp.Issue.IssueType != resp.Classification.IssueType {
		t.Errorf("Expected stored issue type %s to match classification %s",
			resp.Issue.IssueType, resp.Classification.IssueType)
	}
}

func TestCreateIssue_Validation(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		name string
		body model.IssueCreate
	}{
		{"unknown domain", model.IssueCreate{Domain: "XX", Description: "something"}},
		{"empty description", model.IssueCreate{Domain: model.DomainAE, Description: "  "}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/issues", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", w.Code)
			}
		})
	}
}

func TestGetIssue_NotFound(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/issues/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/issues/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", w.Code)
	}
}

func TestListIssues_Filter(t *testing.T) {
	r, _ := newTestRouter(t)
	createTestIssue(t, r)

	w := doJSON(t, r, http.MethodGet, "/issues?domain=VS", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if issues := decode[[]model.Issue](t, w); len(issues) != 1 {
		t.Errorf("Expected 1 VS issue, got %d", len(issues))
	}

	w = doJSON(t, r, http.MethodGet, "/issues?domain=AE", nil)
	if issues := decode[[]model.Issue](t, w); len(issues) != 0 {
		t.Errorf("Expected no AE issues, got %d", len(issues))
	}
}

func TestUpdateIssueStatus(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPatch, "/issues/"+issue.IssueID.String(), gin.H{"status": "closed"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[model.Issue](t, w); got.Status != model.StatusClosed {
		t.Errorf("Expected closed, got %s", got.Status)
	}

	w = doJSON(t, r, http.MethodPatch, "/issues/"+issue.IssueID.String(), gin.H{"status": "bogus"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", w.Code)
	}
}

func TestAnalyzeAndListRuns(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	run := decode[model.AgentRun](t, w)
	if run.Recommendation.Action != model.ActionDataFix {
		t.Errorf("Expected DATA_FIX, got %s", run.Recommendation.Action)
	}
	if run.RulesVersion != model.DefaultRulesVersion {
		t.Errorf("Expected default rules version, got %q", run.RulesVersion)
	}

	w = doJSON(t, r, http.MethodGet, "/issues/"+issue.IssueID.String()+"/runs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	runs := decode[[]model.AgentRun](t, w)
	if len(runs) != 1 || runs[0].RunID != run.RunID {
		t.Errorf("Expected the run to be listed, got %v", runs)
	}
}

func TestAnalyze_ReplayValidation(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze",
		gin.H{"replay_of_run_id": uuid.NewString()})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown replay run, got %d", w.Code)
	}

	// A run belonging to a different issue cannot be replayed.
	other := createTestIssue(t, r)
	w = doJSON(t, r, http.MethodPost, "/issues/"+other.IssueID.String()+"/analyze", nil)
	otherRun := decode[model.AgentRun](t, w)

	w = doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze",
		gin.H{"replay_of_run_id": otherRun.RunID.String()})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for cross-issue replay, got %d", w.Code)
	}
}

func TestAnalyze_Replay(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze", nil)
	prior := decode[model.AgentRun](t, w)

	w = doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze",
		gin.H{"replay_of_run_id": prior.RunID.String()})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	replay := decode[model.AgentRun](t, w)
	if replay.ReplayOfRunID == nil || *replay.ReplayOfRunID != prior.RunID {
		t.Errorf("Expected replay link to %s, got %v", prior.RunID, replay.ReplayOfRunID)
	}
	if replay.Strategy != prior.Strategy {
		t.Errorf("Expected replay to reuse strategy %q, got %q", prior.Strategy, replay.Strategy)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	r, st := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/classify", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[issueResponse](t, w)
	if resp.Classification.Method != classify.MethodRuleBased {
		t.Errorf("Expected rule_based classification, got %s", resp.Classification.Method)
	}

	stored, err := st.GetIssue(issue.IssueID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if stored.IssueType != resp.Classification.IssueType {
		t.Errorf("Expected stored type updated to %s, got %s", resp.Classification.IssueType, stored.IssueType)
	}
}

func TestDecisionFlow(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze", nil)
	run := decode[model.AgentRun](t, w)

	w = doJSON(t, r, http.MethodPost, "/runs/"+run.RunID.String()+"/decision", gin.H{
		"decision_type": "accept",
		"final_action":  "DATA_FIX",
		"reviewer":      "reviewer-1",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	decision := decode[model.Decision](t, w)
	if decision.IssueID != issue.IssueID || decision.RunID != run.RunID {
		t.Errorf("Expected decision tied to issue %s run %s, got %+v", issue.IssueID, run.RunID, decision)
	}

	// Recording a decision marks the issue triaged.
	w = doJSON(t, r, http.MethodGet, "/issues/"+issue.IssueID.String(), nil)
	if got := decode[model.Issue](t, w); got.Status != model.StatusTriaged {
		t.Errorf("Expected triaged, got %s", got.Status)
	}

	w = doJSON(t, r, http.MethodGet, "/decisions", nil)
	if decisions := decode[[]model.Decision](t, w); len(decisions) != 1 {
		t.Errorf("Expected 1 decision listed, got %d", len(decisions))
	}
}

func TestDecision_Validation(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)
	w := doJSON(t, r, http.MethodPost, "/issues/"+issue.IssueID.String()+"/analyze", nil)
	run := decode[model.AgentRun](t, w)

	w = doJSON(t, r, http.MethodPost, "/runs/"+uuid.NewString()+"/decision", gin.H{
		"decision_type": "accept", "final_action": "DATA_FIX", "reviewer": "r",
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown run, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/runs/"+run.RunID.String()+"/decision", gin.H{
		"decision_type": "maybe", "final_action": "DATA_FIX", "reviewer": "r",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown decision type, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/runs/"+run.RunID.String()+"/decision", gin.H{
		"decision_type": "accept", "final_action": "DATA_FIX",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing reviewer, got %d", w.Code)
	}
}

func TestDocuments(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/documents", model.DocumentCreate{
		Title:   "Missing data policy",
		Source:  "DRP",
		Tags:    []string{"missing"},
		Content: "Required fields must be populated or queried within 5 days.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	doc := decode[model.Document](t, w)

	w = doJSON(t, r, http.MethodPost, "/documents", model.DocumentCreate{Title: "empty"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty content, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/documents", nil)
	if docs := decode[[]model.Document](t, w); len(docs) != 1 {
		t.Errorf("Expected 1 document, got %d", len(docs))
	}

	w = doJSON(t, r, http.MethodGet, "/documents/search?q=missing+required+fields", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var search struct {
		Strategy string              `json:"strategy"`
		Hits     []model.DocumentHit `json:"hits"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &search); err != nil {
		t.Fatalf("decoding search response: %v", err)
	}
	if search.Strategy != "keyword" {
		t.Errorf("Expected keyword strategy, got %q", search.Strategy)
	}
	if len(search.Hits) != 1 || search.Hits[0].DocID != doc.DocID {
		t.Errorf("Expected the seeded document as the hit, got %v", search.Hits)
	}

	w = doJSON(t, r, http.MethodGet, "/documents/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 when q is missing, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/documents/search?q=x&strategy=magic", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown strategy, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if body := decode[map[string]string](t, w); body["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", body)
	}
}

func TestListRuns_Empty(t *testing.T) {
	r, _ := newTestRouter(t)
	issue := createTestIssue(t, r)

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/issues/%s/runs", issue.IssueID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if runs := decode[[]model.AgentRun](t, w); len(runs) != 0 {
		t.Errorf("Expected no runs, got %d", len(runs))
	}
}
