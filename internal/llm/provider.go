package llm

import (
	"context"

	"triagecopilot/internal/model"
)

// Provider defines the interface for text-generation capabilities used by the
// recommendation refiner and the classifier fallback.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Generate produces a completion for a structured prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// Embedder defines the interface for the embedding capability used by
// similarity retrieval. When no embedder is available, retrieval falls back
// to keyword matching.
type Embedder interface {
	// Name returns the embedder name
	Name() string

	// Embed encodes texts into fixed-length vectors, one per input, in order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerateRequest contains the input for a generation call
type GenerateRequest struct {
	// System is the system-level instruction (role, constraints)
	System string

	// Prompt is the user-level prompt
	Prompt string

	// Model is the specific model to use (provider-specific); empty means
	// the configured default
	Model string

	// MaxTokens limits the response length
	MaxTokens int

	// ForceJSON requests a JSON-only response where the provider supports
	// constrained output; providers without native support rely on the
	// prompt instructions alone
	ForceJSON bool
}

// GenerateResponse contains the provider's output
type GenerateResponse struct {
	// Content is the generated text
	Content string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// EmbeddingModel for the similarity retrieval capability
	EmbeddingModel string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "", // Disabled by default
		Model:     "",
		Timeout:   30,
		MaxTokens: 1000,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(cfg model.LLMConfig, embeddingModel string) Config {
	return Config{
		Provider:       cfg.Provider,
		Model:          cfg.Model,
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		EmbeddingModel: embeddingModel,
		Timeout:        cfg.Timeout,
		MaxTokens:      cfg.MaxTokens,
		HTTPProxy:      cfg.HTTPProxy,
		HTTPSProxy:     cfg.HTTPSProxy,
		NoProxy:        cfg.NoProxy,
	}
}