package retrieve

import (
	"sort"
	"strings"

	"triagecopilot/internal/model"
)

// KeywordSearch scores each document by counting how many whitespace-split
// query terms occur (case-insensitive, substring match) in its concatenated
// title, source, tags and content. Documents with score zero are dropped.
// This is the always-available baseline strategy.
func KeywordSearch(query string, docs []model.Document, limit int) []model.DocumentHit {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []model.DocumentHit{}
	}

	hits := make([]model.DocumentHit, 0, len(docs))
	for _, doc := range docs {
		haystack := strings.ToLower(docText(doc))
		score := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, model.DocumentHit{
			DocID:   doc.DocID,
			Title:   doc.Title,
			Source:  doc.Source,
			Score:   float64(score),
			Snippet: ExtractSnippet(doc.Content, query),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
