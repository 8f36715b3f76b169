package retrieve

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"triagecopilot/internal/cache"
	"triagecopilot/internal/model"
)

// mockEmbedder implements llm.Embedder with fixed per-text vectors.
type mockEmbedder struct {
	vectors map[string][]float32
	deflt   []float32
	err     error
	calls   int
}

func (m *mockEmbedder) Name() string { return "mock" }

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := m.deflt
		for needle, vec := range m.vectors {
			if strings.Contains(t, needle) {
				v = vec
				break
			}
		}
		out[i] = v
	}
	return out, nil
}

// unitVector returns a 2D unit vector whose cosine similarity against (1,0)
// is exactly the given score.
func unitVector(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score))}
}

func testConfig() model.RetrievalConfig {
	return model.RetrievalConfig{
		Strategy:       "similarity",
		CandidateFloor: 0.35,
		CitableFloor:   0.40,
		Limit:          3,
		EmbeddingModel: "test-model",
		CacheTTL:       time.Minute,
	}
}

func testDocs() []model.Document {
	return []model.Document{
		model.NewDocument(model.DocumentCreate{
			Title:   "AE Date Handling SOP",
			Source:  "SOP",
			Tags:    []string{"AE", "dates"},
			Content: "Adverse event end dates must not precede start dates. Query the site for clarification when the order is inconsistent.",
		}),
		model.NewDocument(model.DocumentCreate{
			Title:   "Lab Range Review Guide",
			Source:  "DRP",
			Tags:    []string{"LB"},
			Content: "Laboratory values outside the reference range require review against protocol limits before a query is raised.",
		}),
		model.NewDocument(model.DocumentCreate{
			Title:   "Demographics Entry Spec",
			Source:  "spec",
			Tags:    []string{"DM"},
			Content: "Demographics fields are captured once at screening.",
		}),
	}
}

func TestKeywordSearch_RanksByTermOverlap(t *testing.T) {
	docs := testDocs()
	hits := KeywordSearch("adverse event date inconsistency query", docs, 3)

	if len(hits) == 0 {
		t.Fatal("Expected keyword hits")
	}
	if hits[0].Title != "AE Date Handling SOP" {
		t.Errorf("Expected AE SOP first, got %q", hits[0].Title)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Error("Expected hits sorted by descending score")
		}
	}
	if hits[0].Snippet == "" {
		t.Error("Expected a snippet for the top hit")
	}
}

func TestKeywordSearch_EmptyCorpus(t *testing.T) {
	hits := KeywordSearch("anything", nil, 3)
	if len(hits) != 0 {
		t.Errorf("Expected no hits for empty corpus, got %d", len(hits))
	}
}

func TestKeywordSearch_NoMatchDropped(t *testing.T) {
	hits := KeywordSearch("zzzz qqqq", testDocs(), 3)
	if len(hits) != 0 {
		t.Errorf("Expected score-zero documents to be dropped, got %d hits", len(hits))
	}
}

func TestSearch_SimilarityStrategy(t *testing.T) {
	embedder := &mockEmbedder{
		vectors: map[string][]float32{
			"Adverse event": unitVector(0.9),  // strong match
			"Laboratory":    unitVector(0.37), // candidate, below citable floor
			"Demographics":  unitVector(0.1),  // below candidate floor
		},
		deflt: unitVector(1.0), // query vector
	}
	r := NewRetriever(embedder, nil, testConfig(), nil)

	hits, used := r.Search(context.Background(), "adverse event date inconsistency", testDocs(), 3, StrategySimilarity)
	if used != StrategySimilarity {
		t.Fatalf("Expected similarity strategy, got %s", used)
	}

	// Demographics (0.1) is below the candidate floor and must be absent.
	if len(hits) != 2 {
		t.Fatalf("Expected 2 candidate hits, got %d", len(hits))
	}
	if hits[0].Title != "AE Date Handling SOP" {
		t.Errorf("Expected AE SOP first, got %q", hits[0].Title)
	}

	// The 0.37 hit is computed but not citable.
	citable := r.Citable(hits, used)
	if len(citable) != 1 {
		t.Fatalf("Expected 1 citable hit, got %d", len(citable))
	}
	if citable[0].Title != "AE Date Handling SOP" {
		t.Errorf("Unexpected citable hit: %q", citable[0].Title)
	}
}

func TestSearch_AllBelowCitableFloor(t *testing.T) {
	// Best score 0.36: above the candidate floor, below the citable floor.
	// The query must be treated as having no relevant guidance.
	embedder := &mockEmbedder{deflt: unitVector(0.36)}
	embedder.vectors = map[string][]float32{"adverse": unitVector(1.0)}

	r := NewRetriever(embedder, nil, testConfig(), nil)
	hits, used := r.Search(context.Background(), "adverse", testDocs(), 3, StrategySimilarity)
	if used != StrategySimilarity {
		t.Fatalf("Expected similarity strategy, got %s", used)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 candidate hits, got %d", len(hits))
	}

	citable := r.Citable(hits, used)
	if len(citable) != 0 {
		t.Errorf("Expected zero citable hits, got %d", len(citable))
	}
}

func TestSearch_FallbackOnEmbedderError(t *testing.T) {
	embedder := &mockEmbedder{err: errors.New("embedding backend down")}
	r := NewRetriever(embedder, nil, testConfig(), nil)

	hits, used := r.Search(context.Background(), "adverse event query", testDocs(), 3, StrategySimilarity)
	if used != StrategyKeyword {
		t.Fatalf("Expected keyword fallback, got %s", used)
	}
	if len(hits) == 0 {
		t.Error("Expected keyword hits from fallback")
	}
}

func TestSearch_FallbackWithoutEmbedder(t *testing.T) {
	r := NewRetriever(nil, nil, testConfig(), nil)

	hits, used := r.Search(context.Background(), "adverse event query", testDocs(), 3, StrategySimilarity)
	if used != StrategyKeyword {
		t.Fatalf("Expected keyword fallback, got %s", used)
	}
	if len(hits) == 0 {
		t.Error("Expected keyword hits from fallback")
	}
}

func TestSearch_EmptyCorpusNeverErrors(t *testing.T) {
	r := NewRetriever(nil, nil, testConfig(), nil)
	hits, _ := r.Search(context.Background(), "any query", nil, 3, StrategyKeyword)
	if len(hits) != 0 {
		t.Errorf("Expected empty result for empty corpus, got %d", len(hits))
	}
}

func TestSearch_EmbeddingCacheReuse(t *testing.T) {
	embedder := &mockEmbedder{deflt: unitVector(0.9)}
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	r := NewRetriever(embedder, c, testConfig(), nil)

	docs := testDocs()
	ctx := context.Background()

	r.Search(ctx, "adverse", docs, 3, StrategySimilarity)
	firstCalls := embedder.calls // one query call + one doc batch

	r.Search(ctx, "adverse", docs, 3, StrategySimilarity)
	// Second search should only embed the query: document vectors are cached.
	if embedder.calls != firstCalls+1 {
		t.Errorf("Expected exactly one extra embed call for the query, got %d extra", embedder.calls-firstCalls)
	}
}

func TestExtractSnippet_WindowAndEllipsis(t *testing.T) {
	prefix := strings.Repeat("x", 100)
	suffix := strings.Repeat("y", 300)
	content := prefix + " inconsistency " + suffix

	snippet := ExtractSnippet(content, "date inconsistency")

	if !strings.HasPrefix(snippet, "...") {
		t.Error("Expected leading ellipsis when the window starts mid-document")
	}
	if !strings.HasSuffix(snippet, "...") {
		t.Error("Expected trailing ellipsis when the window ends mid-document")
	}
	if !strings.Contains(snippet, "inconsistency") {
		t.Error("Expected snippet to contain the matched term")
	}
}

func TestExtractSnippet_NoMatchReturnsLeading(t *testing.T) {
	content := "Short guidance document about something else entirely."
	snippet := ExtractSnippet(content, "zz qq")
	if snippet != content {
		t.Errorf("Expected leading content, got %q", snippet)
	}
}

func TestExtractSnippet_ShortTokensIgnored(t *testing.T) {
	// Tokens of length <= 2 must not anchor the window.
	content := "an ae value " + strings.Repeat("z", 300)
	snippet := ExtractSnippet(content, "ae an")
	if !strings.HasPrefix(snippet, "an ae value") {
		t.Errorf("Expected leading-content fallback, got %q", snippet)
	}
}
