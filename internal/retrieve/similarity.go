package retrieve

import (
	"context"
	"fmt"
	"math"
	"sort"

	"triagecopilot/internal/cache"
	"triagecopilot/internal/model"
)

// similaritySearch embeds the query and every document, ranks by cosine
// similarity, and retains only documents at or above the candidate floor.
// Errors propagate to the caller, which falls back to keyword matching.
func (r *Retriever) similaritySearch(ctx context.Context, query string, docs []model.Document, limit int) ([]model.DocumentHit, error) {
	queryVectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(queryVectors))
	}
	queryVector := queryVectors[0]

	docVectors, err := r.embedDocuments(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}

	floor := r.config.CandidateFloor
	hits := make([]model.DocumentHit, 0, len(docs))
	for i, doc := range docs {
		score := cosineSimilarity(queryVector, docVectors[i])
		if score < floor {
			continue
		}
		hits = append(hits, model.DocumentHit{
			DocID:   doc.DocID,
			Title:   doc.Title,
			Source:  doc.Source,
			Score:   score,
			Snippet: ExtractSnippet(doc.Content, query),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// embedDocuments returns one vector per document, reusing cached vectors
// where available so a stable corpus is only embedded once per model.
func (r *Retriever) embedDocuments(ctx context.Context, docs []model.Document) ([][]float32, error) {
	vectors := make([][]float32, len(docs))

	var missingTexts []string
	var missingIdx []int

	for i, doc := range docs {
		text := docText(doc)
		if r.cache != nil {
			key := cache.EmbeddingKey(r.config.EmbeddingModel, text)
			if v, found := r.cache.Get(key); found {
				vectors[i] = v
				continue
			}
		}
		missingTexts = append(missingTexts, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missingTexts) > 0 {
		fresh, err := r.embedder.Embed(ctx, missingTexts)
		if err != nil {
			return nil, err
		}
		if len(fresh) != len(missingTexts) {
			return nil, fmt.Errorf("expected %d vectors, got %d", len(missingTexts), len(fresh))
		}
		for j, v := range fresh {
			i := missingIdx[j]
			vectors[i] = v
			if r.cache != nil {
				key := cache.EmbeddingKey(r.config.EmbeddingModel, missingTexts[j])
				if err := r.cache.Set(key, v, r.config.CacheTTL); err != nil {
					r.logger.Warn("failed to cache embedding", "error", err)
				}
			}
		}
	}

	return vectors, nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score 0 rather than erroring.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
