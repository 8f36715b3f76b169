package model

import (
	"time"

	"github.com/google/uuid"
)

// IssueSource identifies where an issue came from.
type IssueSource string

const (
	SourceManual    IssueSource = "manual"
	SourceEditCheck IssueSource = "edit_check"
	SourceListing   IssueSource = "listing"
)

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusOpen    IssueStatus = "open"    // created, not yet analyzed
	StatusTriaged IssueStatus = "triaged" // a decision has been recorded
	StatusClosed  IssueStatus = "closed"  // resolved/ignored, no further work
)

// IssueDomain is the clinical data area an issue belongs to.
type IssueDomain string

const (
	DomainDM         IssueDomain = "DM" // demographics
	DomainVS         IssueDomain = "VS" // vital signs
	DomainLB         IssueDomain = "LB" // labs
	DomainAE         IssueDomain = "AE" // adverse events
	DomainCM         IssueDomain = "CM" // concomitant medications
	DomainCommercial IssueDomain = "COMMERCIAL"
	DomainMedical    IssueDomain = "MEDICAL"
)

// IssueType is the handling mode decided by classification.
type IssueType string

const (
	TypeDeterministic IssueType = "deterministic" // rule-based handling suffices
	TypeLLMRequired   IssueType = "llm_required"  // needs nuanced reasoning
)

// IssueCreate is the client-supplied portion of an issue. System-managed
// fields (id, timestamps, status) are assigned at creation.
type IssueCreate struct {
	Source      IssueSource    `json:"source"`
	Domain      IssueDomain    `json:"domain"`
	SubjectID   string         `json:"subject_id"`
	Fields      []string       `json:"fields"`
	Description string         `json:"description"`
	// EvidencePayload is opaque JSON-like data. The triage core never assumes
	// a fixed schema, it only heuristically scans it.
	EvidencePayload map[string]any `json:"evidence_payload"`
}

// Issue is the stored unit of triage work.
type Issue struct {
	IssueID   uuid.UUID   `json:"issue_id"`
	CreatedAt time.Time   `json:"created_at"`
	Status    IssueStatus `json:"status"`
	IssueType IssueType   `json:"issue_type"`

	Source          IssueSource    `json:"source"`
	Domain          IssueDomain    `json:"domain"`
	SubjectID       string         `json:"subject_id"`
	Fields          []string       `json:"fields"`
	Description     string         `json:"description"`
	EvidencePayload map[string]any `json:"evidence_payload"`
}

// NewIssue builds a stored Issue from client input. The issue type defaults
// to deterministic until classification runs.
func NewIssue(c IssueCreate) Issue {
	return Issue{
		IssueID:         uuid.New(),
		CreatedAt:       time.Now().UTC(),
		Status:          StatusOpen,
		IssueType:       TypeDeterministic,
		Source:          c.Source,
		Domain:          c.Domain,
		SubjectID:       c.SubjectID,
		Fields:          c.Fields,
		Description:     c.Description,
		EvidencePayload: c.EvidencePayload,
	}
}
