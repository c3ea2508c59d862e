package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAIProvider_IsValid tests all valid and invalid providers
func TestAIProvider_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider AIProvider
		expected bool
	}{
		{"ollama is valid", AIProviderOllama, true},
		{"openai is valid", AIProviderOpenAI, true},
		{"empty string is invalid", AIProvider(""), false},
		{"anthropic is invalid", AIProvider("anthropic"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.provider.IsValid())
		})
	}
}

func TestAIProvider_Description(t *testing.T) {
	assert.Equal(t, "Ollama (local)", AIProviderOllama.Description())
	assert.Equal(t, "OpenAI-compatible API", AIProviderOpenAI.Description())
	assert.Equal(t, "Unknown", AIProvider("x").Description())
}

func TestIndexBackend(t *testing.T) {
	for _, b := range AllIndexBackends() {
		assert.True(t, b.IsValid(), b)
		assert.NotEqual(t, "Unknown", b.Description(), b)
	}
	assert.False(t, IndexBackend("cassandra").IsValid())
	assert.Equal(t, "Unknown", IndexBackend("cassandra").Description())

	assert.True(t, IndexBackendQdrant.IsRemote())
	assert.True(t, IndexBackendPinecone.IsRemote())
	assert.False(t, IndexBackendBolt.IsRemote())
	assert.False(t, IndexBackendMemory.IsRemote())
}

func TestEnums_IsValid(t *testing.T) {
	assert.True(t, MetricCosine.IsValid())
	assert.True(t, MetricDotProduct.IsValid())
	assert.True(t, MetricEuclidean.IsValid())
	assert.False(t, Metric("manhattan").IsValid())

	assert.True(t, SegmentWindow.IsValid())
	assert.True(t, SegmentSemantic.IsValid())
	assert.False(t, SegmentStrategy("sentence").IsValid())

	assert.True(t, LedgerMemory.IsValid())
	assert.True(t, LedgerSQLite.IsValid())
	assert.False(t, LedgerBackend("postgres").IsValid())
}

func TestFetchSettings_HasAuth(t *testing.T) {
	assert.False(t, FetchSettings{}.HasAuth())
	assert.False(t, FetchSettings{TokenURL: "t", ClientID: "id"}.HasAuth())
	assert.True(t, FetchSettings{TokenURL: "t", ClientID: "id", ClientSecret: "s"}.HasAuth())
}

func TestDefaultSettings_AreValid(t *testing.T) {
	s := DefaultSettings()

	require.NoError(t, s.Validate())
	assert.Equal(t, AIProviderOllama, s.Embedding.Provider)
	assert.Equal(t, IndexBackendMemory, s.Index.Backend)
	assert.Equal(t, "fhir-papers", s.Index.Namespace)
	assert.Equal(t, DefaultTopK, s.Query.TopK)
	assert.Equal(t, EmbeddingDimensions()[s.Embedding.Model], s.Index.Dimension)
}

// TestSettings_Validate tests each rejected configuration
func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Settings)
	}{
		{"unknown provider", func(s *Settings) { s.Embedding.Provider = "x" }},
		{"missing model", func(s *Settings) { s.Embedding.Model = "" }},
		{"zero embedding batch", func(s *Settings) { s.Embedding.BatchSize = 0 }},
		{"unknown backend", func(s *Settings) { s.Index.Backend = "x" }},
		{"zero dimension", func(s *Settings) { s.Index.Dimension = 0 }},
		{"unknown metric", func(s *Settings) { s.Index.Metric = "x" }},
		{"missing namespace", func(s *Settings) { s.Index.Namespace = "" }},
		{"zero upload batch", func(s *Settings) { s.Index.UploadBatchSize = 0 }},
		{"remote index without name", func(s *Settings) {
			s.Index.Backend = IndexBackendQdrant
			s.Index.Name = ""
		}},
		{"unknown segmenter", func(s *Settings) { s.Segmenter.Strategy = "x" }},
		{"zero chunk size", func(s *Settings) { s.Segmenter.ChunkSize = 0 }},
		{"overlap equal to size", func(s *Settings) { s.Segmenter.ChunkOverlap = s.Segmenter.ChunkSize }},
		{"negative overlap", func(s *Settings) { s.Segmenter.ChunkOverlap = -1 }},
		{"percentile above 100", func(s *Settings) { s.Segmenter.BreakpointPercentile = 101 }},
		{"zero percentile", func(s *Settings) { s.Segmenter.BreakpointPercentile = 0 }},
		{"negative buffer", func(s *Settings) { s.Segmenter.BufferSize = -1 }},
		{"zero top_k", func(s *Settings) { s.Query.TopK = 0 }},
		{"unknown ledger", func(s *Settings) { s.Ledger.Backend = "x" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(&s)
			assert.ErrorIs(t, s.Validate(), ErrInvalidInput)
		})
	}
}

func TestDefaultEmbeddingModels(t *testing.T) {
	models := DefaultEmbeddingModels()
	for _, p := range []AIProvider{AIProviderOllama, AIProviderOpenAI} {
		model, ok := models[p]
		require.True(t, ok, p)
		assert.Contains(t, EmbeddingDimensions(), model)
	}
}
