package llm

import "testing"

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if provider != nil {
		t.Error("Expected nil provider when disabled")
	}
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider(Config{Provider: "skynet"})
	if err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestNewProvider_KnownProviders(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"openai", Config{Provider: "openai", APIKey: "test-key"}},
		{"anthropic", Config{Provider: "anthropic", APIKey: "test-key"}},
		{"claude alias", Config{Provider: "claude", APIKey: "test-key"}},
		{"ollama", Config{Provider: "ollama"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.config)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if provider == nil {
				t.Fatal("Expected provider, got nil")
			}
		})
	}
}

func TestNewEmbedder_NoEmbeddingCapability(t *testing.T) {
	// Anthropic exposes no embeddings API: similarity retrieval must be able
	// to detect the absent capability and fall back to keyword matching.
	embedder, err := NewEmbedder(Config{Provider: "anthropic", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if embedder != nil {
		t.Error("Expected nil embedder for anthropic")
	}

	embedder, err = NewEmbedder(Config{Provider: ""})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if embedder != nil {
		t.Error("Expected nil embedder when disabled")
	}
}

func TestNewEmbedder_OpenAI(t *testing.T) {
	embedder, err := NewEmbedder(Config{Provider: "openai", APIKey: "test-key"})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if embedder == nil {
		t.Fatal("Expected embedder, got nil")
	}
	if embedder.Name() != "openai" {
		t.Errorf("Expected embedder name 'openai', got '%s'", embedder.Name())
	}
}
