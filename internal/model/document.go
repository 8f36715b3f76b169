package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentCreate is the input for ingesting a guidance document: a SOP, a
// data review plan excerpt, an edit check spec, a query-writing memo.
type DocumentCreate struct {
	Title   string   `json:"title" yaml:"title"`
	Source  string   `json:"source" yaml:"source"` // e.g. "DRP", "SOP", "spec"
	Tags    []string `json:"tags" yaml:"tags"`
	Content string   `json:"content" yaml:"content"`
}

// Document is a stored guidance corpus entry.
type Document struct {
	DocID     uuid.UUID `json:"doc_id"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Tags      []string  `json:"tags"`
	Content   string    `json:"content"`
}

// NewDocument builds a stored Document from ingest input.
func NewDocument(c DocumentCreate) Document {
	return Document{
		DocID:     uuid.New(),
		CreatedAt: time.Now().UTC(),
		Title:     c.Title,
		Source:    c.Source,
		Tags:      c.Tags,
		Content:   c.Content,
	}
}

// DocumentHit is one retrieval result.
//
// Score is comparable within one retrieval call only: keyword scores are
// integer term-overlap counts, embedding scores are cosine similarities in
// [0,1]. A ranked list never mixes strategies.
type DocumentHit struct {
	DocID   uuid.UUID `json:"doc_id"`
	Title   string    `json:"title"`
	Source  string    `json:"source"`
	Score   float64   `json:"score"`
	Snippet string    `json:"snippet"`
}
