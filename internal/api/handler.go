// Package api exposes the triage core over HTTP: issue intake, analysis
// runs, reviewer decisions, and guidance-document management.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"triagecopilot/internal/classify"
	"triagecopilot/internal/model"
	"triagecopilot/internal/retrieve"
	"triagecopilot/internal/store"
	"triagecopilot/internal/triage"
)

// Handler wires HTTP handlers to the triage core.
type Handler struct {
	Store      *store.Store
	Pipeline   *triage.Pipeline
	Classifier *classify.Classifier
	Retriever  *retrieve.Retriever
	Config     *model.Config
	Logger     *slog.Logger
}

// NewHandler constructs a Handler.
func NewHandler(st *store.Store, p *triage.Pipeline, cl *classify.Classifier, r *retrieve.Retriever, cfg *model.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: st, Pipeline: p, Classifier: cl, Retriever: r, Config: cfg, Logger: logger}
}

// RegisterRoutes attaches all routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/issues", h.createIssue)
	rg.GET("/issues", h.listIssues)
	rg.GET("/issues/:id", h.getIssue)
	rg.PATCH("/issues/:id", h.updateIssue)
	rg.POST("/issues/:id/classify", h.classifyIssue)
	rg.POST("/issues/:id/analyze", h.analyzeIssue)
	rg.GET("/issues/:id/runs", h.listRuns)
	rg.POST("/runs/:id/decision", h.createDecision)
	rg.GET("/decisions", h.listDecisions)
	rg.POST("/documents", h.createDocument)
	rg.GET("/documents", h.listDocuments)
	rg.GET("/documents/search", h.searchDocuments)
	rg.GET("/healthz", h.health)
}

var knownDomains = map[model.IssueDomain]bool{
	model.DomainDM: true, model.DomainVS: true, model.DomainLB: true,
	model.DomainAE: true, model.DomainCM: true,
	model.DomainCommercial: true, model.DomainMedical: true,
}

func (h *Handler) createIssue(c *gin.Context) {
	var req model.IssueCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if !knownDomains[req.Domain] {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "unknown domain")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "description is required")
		return
	}

	issue := model.NewIssue(req)
	result := h.Classifier.ClassifyWithFallback(c.Request.Context(), req, h.Config.Classifier.UseFallback)
	issue.IssueType = result.IssueType
	h.Store.CreateIssue(issue)

	c.JSON(http.StatusCreated, gin.H{
		"issue":          issue,
		"classification": result,
	})
}

func (h *Handler) listIssues(c *gin.Context) {
	domain := model.IssueDomain(c.Query("domain"))
	status := model.IssueStatus(c.Query("status"))
	c.JSON(http.StatusOK, h.Store.ListIssues(domain, status))
}

func (h *Handler) getIssue(c *gin.Context) {
	issue, ok := h.issueFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, issue)
}

type updateIssueRequest struct {
	Status model.IssueStatus `json:"status"`
}

func (h *Handler) updateIssue(c *gin.Context) {
	issue, ok := h.issueFromPath(c)
	if !ok {
		return
	}

	var req updateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	switch req.Status {
	case model.StatusOpen, model.StatusTriaged, model.StatusClosed:
	default:
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "unknown status")
		return
	}

	updated, err := h.Store.UpdateIssueStatus(issue.IssueID, req.Status)
	if err != nil {
		respondError(c, h.Logger, http.StatusNotFound, "not_found", "issue not found")
		return
	}
	c.JSON(http.StatusOK, updated)
}

type classifyRequest struct {
	UseFallback *bool `json:"use_fallback"`
}

func (h *Handler) classifyIssue(c *gin.Context) {
	issue, ok := h.issueFromPath(c)
	if !ok {
		return
	}

	var req classifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
	}
	allowFallback := h.Config.Classifier.UseFallback
	if req.UseFallback != nil {
		allowFallback = *req.UseFallback
	}

	result := h.Classifier.ClassifyWithFallback(c.Request.Context(), model.IssueCreate{
		Source:          issue.Source,
		Domain:          issue.Domain,
		SubjectID:       issue.SubjectID,
		Fields:          issue.Fields,
		Description:     issue.Description,
		EvidencePayload: issue.EvidencePayload,
	}, allowFallback)

	updated, err := h.Store.SetIssueType(issue.IssueID, result.IssueType)
	if err != nil {
		respondError(c, h.Logger, http.StatusNotFound, "not_found", "issue not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":          updated,
		"classification": result,
	})
}

func (h *Handler) analyzeIssue(c *gin.Context) {
	issue, ok := h.issueFromPath(c)
	if !ok {
		return
	}

	var req model.AnalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
			return
		}
	}

	if req.ReplayOfRunID != nil {
		prior, err := h.Store.GetRun(*req.ReplayOfRunID)
		if err != nil {
			respondError(c, h.Logger, http.StatusNotFound, "not_found", "replay run not found")
			return
		}
		if prior.IssueID != issue.IssueID {
			respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "replay run belongs to a different issue")
			return
		}
		// A replay re-executes the prior run's recorded options unless the
		// request overrides them.
		if req.RulesVersion == "" {
			req.RulesVersion = prior.RulesVersion
		}
		if req.UseSimilarity == nil {
			sim := prior.Strategy == string(retrieve.StrategySimilarity)
			req.UseSimilarity = &sim
		}
	}

	run, err := h.Pipeline.Run(c.Request.Context(), issue, req)
	if err != nil {
		respondError(c, h.Logger, http.StatusInternalServerError, "internal_error", "analysis failed")
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *Handler) listRuns(c *gin.Context) {
	issue, ok := h.issueFromPath(c)
	if !ok {
		return
	}
	runs, err := h.Store.ListRuns(issue.IssueID)
	if err != nil {
		respondError(c, h.Logger, http.StatusNotFound, "not_found", "issue not found")
		return
	}
	c.JSON(http.StatusOK, runs)
}

type decisionRequest struct {
	Type        model.DecisionType `json:"decision_type"`
	FinalAction model.Action       `json:"final_action"`
	FinalText   string             `json:"final_text"`
	Reviewer    string             `json:"reviewer"`
	Reason      string             `json:"reason"`
}

func (h *Handler) createDecision(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid run id")
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	switch req.Type {
	case model.DecisionAccept, model.DecisionEdit, model.DecisionReject:
	default:
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "unknown decision type")
		return
	}
	if strings.TrimSpace(req.Reviewer) == "" {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "reviewer is required")
		return
	}

	decision, err := h.Store.CreateDecision(model.DecisionCreate{
		RunID:       runID,
		Type:        req.Type,
		FinalAction: req.FinalAction,
		FinalText:   req.FinalText,
		Reviewer:    req.Reviewer,
		Reason:      req.Reason,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, h.Logger, http.StatusNotFound, "not_found", "run not found")
			return
		}
		respondError(c, h.Logger, http.StatusInternalServerError, "internal_error", "failed to record decision")
		return
	}
	c.JSON(http.StatusCreated, decision)
}

func (h *Handler) listDecisions(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.ListDecisions())
}

func (h *Handler) createDocument(c *gin.Context) {
	var req model.DocumentCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "content is required")
		return
	}

	doc := model.NewDocument(req)
	h.Store.CreateDocument(doc)
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	c.JSON(http.StatusOK, h.Store.ListDocuments())
}

func (h *Handler) searchDocuments(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "q is required")
		return
	}

	limit := h.Config.Retrieval.Limit
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	strategy := retrieve.Strategy(h.Config.Retrieval.Strategy)
	if v := c.Query("strategy"); v != "" {
		switch retrieve.Strategy(v) {
		case retrieve.StrategyKeyword, retrieve.StrategySimilarity:
			strategy = retrieve.Strategy(v)
		default:
			respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "unknown strategy")
			return
		}
	}

	hits, used := h.Retriever.Search(c.Request.Context(), query, h.Store.ListDocuments(), limit, strategy)
	c.JSON(http.StatusOK, gin.H{
		"strategy": used,
		"hits":     hits,
	})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// issueFromPath resolves the :id path parameter to a stored issue, writing
// the error response itself on failure.
func (h *Handler) issueFromPath(c *gin.Context) (model.Issue, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, h.Logger, http.StatusBadRequest, "validation_error", "invalid issue id")
		return model.Issue{}, false
	}
	issue, err := h.Store.GetIssue(id)
	if err != nil {
		respondError(c, h.Logger, http.StatusNotFound, "not_found", "issue not found")
		return model.Issue{}, false
	}
	return issue, true
}
