package worker

import (
	"context"

	"triagecopilot/internal/llm"
)

// PacedEmbedder wraps an embedding capability so every call waits on the
// rate limiter under CapabilityEmbed.
type PacedEmbedder struct {
	embedder llm.Embedder
	limiter  *Limiter
}

// NewPacedEmbedder paces an embedder. A nil embedder stays nil so callers
// keep the "nil embedder disables similarity retrieval" contract.
func NewPacedEmbedder(embedder llm.Embedder, limiter *Limiter) llm.Embedder {
	if embedder == nil {
		return nil
	}
	return &PacedEmbedder{embedder: embedder, limiter: limiter}
}

func (p *PacedEmbedder) Name() string {
	return p.embedder.Name()
}

func (p *PacedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.limiter.Wait(ctx, CapabilityEmbed); err != nil {
		return nil, err
	}
	return p.embedder.Embed(ctx, texts)
}
