package worker

import (
	"context"
	"testing"
)

type stubEmbedder struct {
	calls int
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	vectors := make([][]float32, len(texts))
	for i := range vectors {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func TestPacedEmbedder_Delegates(t *testing.T) {
	stub := &stubEmbedder{}
	paced := NewPacedEmbedder(stub, NewLimiter(0, 0))

	vectors, err := paced.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Errorf("expected 2 vectors, got %d", len(vectors))
	}
	if stub.calls != 1 {
		t.Errorf("expected 1 delegate call, got %d", stub.calls)
	}
}

func TestPacedEmbedder_NilStaysNil(t *testing.T) {
	if NewPacedEmbedder(nil, NewLimiter(0, 0)) != nil {
		t.Error("expected nil embedder to stay nil")
	}
}

func TestPacedEmbedder_LimiterErrorSkipsCall(t *testing.T) {
	stub := &stubEmbedder{}
	paced := NewPacedEmbedder(stub, NewLimiter(0.001, 1))

	if _, err := paced.Embed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("first call should pass within the burst: %v", err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := paced.Embed(cancelled, []string{"b"}); err == nil {
		t.Error("expected error waiting on an exhausted limiter with a cancelled context")
	}
	if stub.calls != 1 {
		t.Errorf("expected embedder untouched after limiter error, got %d calls", stub.calls)
	}
}
