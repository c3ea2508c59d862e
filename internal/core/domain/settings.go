package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an embedding service provider.
type AIProvider string

// Available embedding providers.
const (
	// AIProviderOllama is a local or self-hosted Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI API or any compatible server
	// (e.g. HuggingFace text-embeddings-inference).
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI-compatible API"
	default:
		return unknownDescription
	}
}

// Metric is the similarity metric of a vector index.
type Metric string

// Supported similarity metrics.
const (
	MetricCosine     Metric = "cosine"
	MetricDotProduct Metric = "dotproduct"
	MetricEuclidean  Metric = "euclidean"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricDotProduct, MetricEuclidean:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// IndexBackend selects the vector index implementation.
type IndexBackend string

// Available vector index backends.
const (
	// IndexBackendMemory keeps vectors in process memory.
	IndexBackendMemory IndexBackend = "memory"

	// IndexBackendBolt stores vectors in an embedded bbolt file.
	IndexBackendBolt IndexBackend = "bolt"

	// IndexBackendQdrant uses a Qdrant server over REST.
	IndexBackendQdrant IndexBackend = "qdrant"

	// IndexBackendPinecone uses a Pinecone serverless index over REST.
	IndexBackendPinecone IndexBackend = "pinecone"
)

// IsValid returns true if the backend is recognised.
func (b IndexBackend) IsValid() bool {
	switch b {
	case IndexBackendMemory, IndexBackendBolt, IndexBackendQdrant, IndexBackendPinecone:
		return true
	default:
		return false
	}
}

// IsRemote returns true if the backend is a network service.
func (b IndexBackend) IsRemote() bool {
	return b == IndexBackendQdrant || b == IndexBackendPinecone
}

// String returns the string representation.
func (b IndexBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b IndexBackend) Description() string {
	switch b {
	case IndexBackendMemory:
		return "In-memory (not persisted)"
	case IndexBackendBolt:
		return "Embedded bbolt file"
	case IndexBackendQdrant:
		return "Qdrant (REST)"
	case IndexBackendPinecone:
		return "Pinecone serverless"
	default:
		return unknownDescription
	}
}

// SegmentStrategy selects how text is split into chunks.
type SegmentStrategy string

// Available segmentation strategies.
const (
	// SegmentWindow is a fixed-size sliding window with overlap.
	SegmentWindow SegmentStrategy = "window"

	// SegmentSemantic splits where embedding similarity between
	// neighbouring sentence groups drops.
	SegmentSemantic SegmentStrategy = "semantic"
)

// IsValid returns true if the strategy is recognised.
func (s SegmentStrategy) IsValid() bool {
	return s == SegmentWindow || s == SegmentSemantic
}

// String returns the string representation.
func (s SegmentStrategy) String() string {
	return string(s)
}

// LedgerBackend selects where ingestion runs are recorded.
type LedgerBackend string

// Available ledger backends.
const (
	LedgerMemory LedgerBackend = "memory"
	LedgerSQLite LedgerBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b LedgerBackend) IsValid() bool {
	return b == LedgerMemory || b == LedgerSQLite
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string

	// BatchSize bounds the number of texts sent per provider request.
	BatchSize int

	// Timeout bounds a single provider request.
	Timeout time.Duration
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the implementation.
	Backend IndexBackend

	// Name is the index (collection) name.
	Name string

	// Namespace partitions unrelated data sets within the index.
	Namespace string

	// Dimension is the vector size; it must match the embedding model.
	Dimension int

	// Metric is the similarity metric.
	Metric Metric

	// Cloud and Region locate a serverless index (Pinecone).
	Cloud  string
	Region string

	// URL is the server address (Qdrant) or control plane (Pinecone).
	URL string

	// APIKey authenticates against remote backends.
	APIKey string

	// Path is the bbolt database file.
	Path string

	// UploadBatchSize is the number of records per upsert call.
	UploadBatchSize int

	// Timeout bounds a single remote request.
	Timeout time.Duration
}

// SegmenterSettings holds chunking configuration.
type SegmenterSettings struct {
	// Strategy selects the segmentation algorithm.
	Strategy SegmentStrategy

	// ChunkSize is the window size in characters.
	ChunkSize int

	// ChunkOverlap is the overlap between windows in characters.
	ChunkOverlap int

	// BreakpointPercentile is the semantic split sensitivity (0-100].
	BreakpointPercentile float64

	// BufferSize is the number of neighbouring sentences grouped on each side.
	BufferSize int
}

// QuerySettings holds query defaults.
type QuerySettings struct {
	// TopK is the default number of results.
	TopK int
}

// FetchSettings holds document download configuration.
type FetchSettings struct {
	// Timeout bounds a single download.
	Timeout time.Duration

	// MaxBytes caps the downloaded body size.
	MaxBytes int64

	// RateLimit is the sustained downloads per second. Zero disables limiting.
	RateLimit float64

	// Burst is the rate limiter bucket size.
	Burst int

	// AuthBaseURL restricts authenticated fetches to URLs under this prefix.
	AuthBaseURL string

	// TokenURL, ClientID and ClientSecret configure OAuth2 client credentials.
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// HasAuth returns true when client credentials are configured.
func (f FetchSettings) HasAuth() bool {
	return f.TokenURL != "" && f.ClientID != "" && f.ClientSecret != ""
}

// LedgerSettings holds ingestion ledger configuration.
type LedgerSettings struct {
	// Backend selects the implementation.
	Backend LedgerBackend

	// DataDir is where the sqlite database is stored.
	DataDir string
}

// LockSettings holds cross-process ingestion lock configuration.
type LockSettings struct {
	// RedisURL enables the redis lock when non-empty.
	RedisURL string

	// TTL bounds how long a crashed holder blocks other processes.
	TTL time.Duration
}

// Settings holds all pipeline settings.
type Settings struct {
	Embedding EmbeddingSettings
	Index     VectorIndexSettings
	Segmenter SegmenterSettings
	Query     QuerySettings
	Fetch     FetchSettings
	Ledger    LedgerSettings
	Lock      LockSettings
}

// DefaultSettings returns settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     "nomic-embed-text",
			BatchSize: 96,
			Timeout:   60 * time.Second,
		},
		Index: VectorIndexSettings{
			Backend:         IndexBackendMemory,
			Name:            "fhir-mcp-server",
			Namespace:       "fhir-papers",
			Dimension:       768,
			Metric:          MetricCosine,
			Cloud:           "aws",
			Region:          "us-east-1",
			UploadBatchSize: 96,
			Timeout:         30 * time.Second,
		},
		Segmenter: SegmenterSettings{
			Strategy:             SegmentWindow,
			ChunkSize:            1000,
			ChunkOverlap:         200,
			BreakpointPercentile: 95,
			BufferSize:           1,
		},
		Query: QuerySettings{
			TopK: DefaultTopK,
		},
		Fetch: FetchSettings{
			Timeout:  60 * time.Second,
			MaxBytes: 50 << 20,
			Burst:    1,
		},
		Ledger: LedgerSettings{
			Backend: LedgerMemory,
		},
		Lock: LockSettings{
			TTL: 10 * time.Minute,
		},
	}
}

// Validate checks that the settings are usable.
//
//nolint:gocyclo // Flat list of independent checks
func (s Settings) Validate() error {
	if !s.Embedding.Provider.IsValid() {
		return fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidInput, s.Embedding.Provider)
	}
	if s.Embedding.Model == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	if s.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", ErrInvalidInput)
	}
	if !s.Index.Backend.IsValid() {
		return fmt.Errorf("%w: unknown index backend %q", ErrInvalidInput, s.Index.Backend)
	}
	if s.Index.Dimension <= 0 {
		return fmt.Errorf("%w: index dimension must be positive", ErrInvalidInput)
	}
	if !s.Index.Metric.IsValid() {
		return fmt.Errorf("%w: unknown metric %q", ErrInvalidInput, s.Index.Metric)
	}
	if s.Index.Namespace == "" {
		return fmt.Errorf("%w: index namespace is required", ErrInvalidInput)
	}
	if s.Index.UploadBatchSize <= 0 {
		return fmt.Errorf("%w: upload batch size must be positive", ErrInvalidInput)
	}
	if s.Index.Backend.IsRemote() && s.Index.Name == "" {
		return fmt.Errorf("%w: index name is required for %s", ErrInvalidInput, s.Index.Backend)
	}
	if !s.Segmenter.Strategy.IsValid() {
		return fmt.Errorf("%w: unknown segmenter %q", ErrInvalidInput, s.Segmenter.Strategy)
	}
	if s.Segmenter.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive", ErrInvalidInput)
	}
	if s.Segmenter.ChunkOverlap < 0 || s.Segmenter.ChunkOverlap >= s.Segmenter.ChunkSize {
		return fmt.Errorf("%w: chunk overlap must be in [0, chunk size)", ErrInvalidInput)
	}
	if s.Segmenter.BreakpointPercentile <= 0 || s.Segmenter.BreakpointPercentile > 100 {
		return fmt.Errorf("%w: breakpoint percentile must be in (0, 100]", ErrInvalidInput)
	}
	if s.Segmenter.BufferSize < 0 {
		return fmt.Errorf("%w: buffer size must not be negative", ErrInvalidInput)
	}
	if s.Query.TopK < 1 {
		return fmt.Errorf("%w: top_k must be at least 1", ErrInvalidInput)
	}
	if !s.Ledger.Backend.IsValid() {
		return fmt.Errorf("%w: unknown ledger backend %q", ErrInvalidInput, s.Ledger.Backend)
	}
	return nil
}

// AllIndexBackends returns all available vector index backends.
func AllIndexBackends() []IndexBackend {
	return []IndexBackend{
		IndexBackendMemory,
		IndexBackendBolt,
		IndexBackendQdrant,
		IndexBackendPinecone,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		// Biomedical models served through OpenAI-compatible servers
		"NeuML/pubmedbert-base-embeddings": 768,
	}
}
