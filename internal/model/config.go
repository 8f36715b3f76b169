package model

import "time"

// Config holds all runtime configuration for the triage copilot.
//
// Precedence (highest first): per-request overrides carried on
// AnalyzeRequest, then CLI flags, then environment variables (TRIAGE_*),
// then the config file, then these compiled-in defaults.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Server     ServerConfig     `yaml:"server"`
	Batch      BatchConfig      `yaml:"batch"`
}

// LLMConfig configures the external text-generation capability used by the
// refiner and the classifier fallback.
type LLMConfig struct {
	// Enabled gates automatic refinement. Even when false, a per-request
	// override can force a one-off refinement.
	Enabled bool `yaml:"enabled"`

	// Provider name: "openai", "anthropic", "ollama", "" (disabled).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`

	Timeout   int `yaml:"timeout"` // seconds per external call
	MaxTokens int `yaml:"max_tokens"`

	// RequestsPerSecond/Burst pace outbound calls to the capability.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`

	// Proxy settings for locked-down environments.
	HTTPProxy  string `yaml:"http_proxy,omitempty"`
	HTTPSProxy string `yaml:"https_proxy,omitempty"`
	NoProxy    string `yaml:"no_proxy,omitempty"`
}

// RetrievalConfig configures the citation engine.
type RetrievalConfig struct {
	// Strategy is the default: "similarity" or "keyword". Similarity falls
	// back to keyword when no embedding capability is available.
	Strategy string `yaml:"strategy"`

	// CandidateFloor is the minimum cosine similarity for a document to be
	// retained at all; CitableFloor is the stricter floor a hit must reach
	// to be surfaced as a citation. Hits in between are treated as noise.
	CandidateFloor float64 `yaml:"candidate_floor"`
	CitableFloor   float64 `yaml:"citable_floor"`

	Limit          int    `yaml:"limit"`
	EmbeddingModel string `yaml:"embedding_model"`

	// CacheTTL bounds how long document embeddings are reused. Zero disables
	// the cache.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// ClassifierConfig configures the optional external tie-break for
// low-confidence classifications.
type ClassifierConfig struct {
	UseFallback bool `yaml:"use_fallback"`
}

// CorpusConfig locates seed guidance documents.
type CorpusConfig struct {
	Dir string `yaml:"dir,omitempty"` // directory of YAML document files
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// BatchConfig configures batch triage.
type BatchConfig struct {
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the compiled-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Enabled:           false,
			Provider:          "",
			Model:             "",
			Timeout:           30,
			MaxTokens:         1000,
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Retrieval: RetrievalConfig{
			Strategy:       "keyword",
			CandidateFloor: 0.35,
			CitableFloor:   0.40,
			Limit:          3,
			EmbeddingModel: "text-embedding-3-small",
			CacheTTL:       time.Hour,
		},
		Classifier: ClassifierConfig{
			UseFallback: false,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Batch: BatchConfig{
			Workers: 4,
		},
	}
}
