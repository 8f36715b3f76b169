// Package store provides the in-memory persistence layer for issues,
// guidance documents, analysis runs and reviewer decisions.
//
// Runs are append-only: a new analysis always produces a new record and an
// existing run is never edited. The store copies values in and out so callers
// cannot mutate stored state through shared slices or maps.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"triagecopilot/internal/model"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("not found")

// Store is a concurrency-safe in-memory backend.
type Store struct {
	mu        sync.RWMutex
	issues    map[uuid.UUID]model.Issue
	documents map[uuid.UUID]model.Document
	runs      map[uuid.UUID][]model.AgentRun // keyed by issue id, append-only
	decisions map[uuid.UUID]model.Decision
	docOrder  []uuid.UUID // insertion order, keeps listings stable
	issOrder  []uuid.UUID
}

// New creates an empty store.
func New() *Store {
	return &Store{
		issues:    make(map[uuid.UUID]model.Issue),
		documents: make(map[uuid.UUID]model.Document),
		runs:      make(map[uuid.UUID][]model.AgentRun),
		decisions: make(map[uuid.UUID]model.Decision),
	}
}

// CreateIssue stores a new issue.
func (s *Store) CreateIssue(issue model.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[issue.IssueID] = issue
	s.issOrder = append(s.issOrder, issue.IssueID)
}

// GetIssue returns the issue with the given id.
func (s *Store) GetIssue(id uuid.UUID) (model.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issue, ok := s.issues[id]
	if !ok {
		return model.Issue{}, ErrNotFound
	}
	return issue, nil
}

// ListIssues returns issues in creation order, optionally filtered by domain
// and/or status (empty filter values match everything).
func (s *Store) ListIssues(domain model.IssueDomain, status model.IssueStatus) []model.Issue {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Issue, 0, len(s.issOrder))
	for _, id := range s.issOrder {
		issue := s.issues[id]
		if domain != "" && issue.Domain != domain {
			continue
		}
		if status != "" && issue.Status != status {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// UpdateIssueStatus transitions an issue's lifecycle status.
func (s *Store) UpdateIssueStatus(id uuid.UUID, status model.IssueStatus) (model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return model.Issue{}, ErrNotFound
	}
	issue.Status = status
	s.issues[id] = issue
	return issue, nil
}

// SetIssueType records the classification handling mode on an issue.
func (s *Store) SetIssueType(id uuid.UUID, t model.IssueType) (model.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return model.Issue{}, ErrNotFound
	}
	issue.IssueType = t
	s.issues[id] = issue
	return issue, nil
}

// CreateDocument stores a guidance document.
func (s *Store) CreateDocument(doc model.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.DocID] = doc
	s.docOrder = append(s.docOrder, doc.DocID)
}

// ListDocuments returns all documents in insertion order.
func (s *Store) ListDocuments() []model.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Document, 0, len(s.docOrder))
	for _, id := range s.docOrder {
		out = append(out, s.documents[id])
	}
	return out
}

// AppendRun appends an immutable analysis run for an issue.
func (s *Store) AppendRun(run model.AgentRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[run.IssueID]; !ok {
		return ErrNotFound
	}
	s.runs[run.IssueID] = append(s.runs[run.IssueID], run)
	return nil
}

// ListRuns returns all runs for an issue, oldest first.
func (s *Store) ListRuns(issueID uuid.UUID) ([]model.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.issues[issueID]; !ok {
		return nil, ErrNotFound
	}
	runs := s.runs[issueID]
	out := make([]model.AgentRun, len(runs))
	copy(out, runs)
	return out, nil
}

// GetRun returns one run by id, scanning across issues.
func (s *Store) GetRun(runID uuid.UUID) (model.AgentRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, runs := range s.runs {
		for _, run := range runs {
			if run.RunID == runID {
				return run, nil
			}
		}
	}
	return model.AgentRun{}, ErrNotFound
}

// AllRuns returns every stored run grouped by issue, for scorecard exports.
func (s *Store) AllRuns() map[uuid.UUID][]model.AgentRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uuid.UUID][]model.AgentRun, len(s.runs))
	for id, runs := range s.runs {
		copied := make([]model.AgentRun, len(runs))
		copy(copied, runs)
		out[id] = copied
	}
	return out
}

// CreateDecision records a reviewer decision against an existing run and
// transitions the issue to triaged.
func (s *Store) CreateDecision(c model.DecisionCreate) (model.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var issueID uuid.UUID
	found := false
	for id, runs := range s.runs {
		for _, run := range runs {
			if run.RunID == c.RunID {
				issueID = id
				found = true
				break
			}
		}
	}
	if !found {
		return model.Decision{}, ErrNotFound
	}

	decision := model.Decision{
		DecisionID:  uuid.New(),
		IssueID:     issueID,
		RunID:       c.RunID,
		CreatedAt:   time.Now().UTC(),
		Type:        c.Type,
		FinalAction: c.FinalAction,
		FinalText:   c.FinalText,
		Reviewer:    c.Reviewer,
		Reason:      c.Reason,
	}
	s.decisions[decision.DecisionID] = decision

	issue := s.issues[issueID]
	issue.Status = model.StatusTriaged
	s.issues[issueID] = issue

	return decision, nil
}

// ListDecisions returns all decisions, oldest first.
func (s *Store) ListDecisions() []model.Decision {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Decision, 0, len(s.decisions))
	for _, d := range s.decisions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
