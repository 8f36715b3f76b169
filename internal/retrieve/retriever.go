// Package retrieve implements the citation engine: given a free-text query
// and a corpus of guidance documents, it returns the top-k most relevant
// documents with a relevance score and a short snippet.
//
// Two interchangeable strategies are provided. Keyword matching counts query
// term occurrences and is always available. Similarity search embeds the
// query and documents and ranks by cosine similarity; it is preferred when an
// embedding capability is configured, and falls back to keyword matching
// transparently on any failure. The caller is always told which strategy was
// actually used, for audit.
package retrieve

import (
	"context"
	"log/slog"
	"strings"

	"triagecopilot/internal/cache"
	"triagecopilot/internal/llm"
	"triagecopilot/internal/model"
)

// Strategy identifies how a ranked list was produced. Scores are comparable
// within one strategy only: keyword scores are term-overlap counts, similarity
// scores are cosine similarities in [0,1].
type Strategy string

const (
	StrategyKeyword    Strategy = "keyword"
	StrategySimilarity Strategy = "similarity"
)

// Retriever ranks guidance documents against queries.
type Retriever struct {
	embedder llm.Embedder // nil when no embedding capability is configured
	cache    cache.Cache  // nil disables embedding reuse
	config   model.RetrievalConfig
	logger   *slog.Logger
}

// NewRetriever creates a retriever. A nil embedder restricts it to the
// keyword strategy; a nil cache means embeddings are computed fresh per call.
func NewRetriever(embedder llm.Embedder, c cache.Cache, cfg model.RetrievalConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		cache:    c,
		config:   cfg,
		logger:   logger,
	}
}

// Search returns the top-limit hits for the query, together with the strategy
// that actually produced them. It never fails: any similarity-path error
// degrades transparently to keyword matching.
func (r *Retriever) Search(ctx context.Context, query string, docs []model.Document, limit int, strategy Strategy) ([]model.DocumentHit, Strategy) {
	if limit <= 0 {
		limit = r.config.Limit
	}
	if limit <= 0 {
		limit = 3
	}
	if query == "" || len(docs) == 0 {
		return []model.DocumentHit{}, effectiveStrategy(strategy, r.embedder)
	}

	if strategy == StrategySimilarity {
		if r.embedder == nil {
			r.logger.Warn("similarity retrieval requested but no embedding capability configured, falling back to keyword")
			return KeywordSearch(query, docs, limit), StrategyKeyword
		}
		hits, err := r.similaritySearch(ctx, query, docs, limit)
		if err != nil {
			r.logger.Warn("similarity retrieval failed, falling back to keyword", "error", err)
			return KeywordSearch(query, docs, limit), StrategyKeyword
		}
		return hits, StrategySimilarity
	}

	return KeywordSearch(query, docs, limit), StrategyKeyword
}

// Citable filters similarity hits down to the ones strong enough to surface
// as citations. Hits between the candidate floor and the citable floor were
// computed but are treated as noise; when every hit falls below the citable
// floor the query has no relevant guidance and the result is empty. Keyword
// hits have no comparable floor and pass through unchanged.
func (r *Retriever) Citable(hits []model.DocumentHit, strategy Strategy) []model.DocumentHit {
	if strategy != StrategySimilarity {
		return hits
	}
	floor := r.config.CitableFloor
	citable := make([]model.DocumentHit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= floor {
			citable = append(citable, h)
		}
	}
	return citable
}

func effectiveStrategy(requested Strategy, embedder llm.Embedder) Strategy {
	if requested == StrategySimilarity && embedder != nil {
		return StrategySimilarity
	}
	return StrategyKeyword
}

// docText concatenates the searchable parts of a document, matching what the
// embedding and keyword scorers both see.
func docText(doc model.Document) string {
	return doc.Title + "\n" + doc.Source + "\n" + strings.Join(doc.Tags, " ") + "\n" + doc.Content
}
