package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

func TestQueryService_NotIngested(t *testing.T) {
	f := newIngestFixture(t, 1000, 96)

	results, err := f.query.Query(context.Background(), domain.QueryRequest{DocumentID: "doc-999", Text: "anything", TopK: 5})
	require.Error(t, err)
	assert.Nil(t, results)

	var notIngested *domain.NotIngestedError
	require.ErrorAs(t, err, &notIngested)
	assert.Equal(t, "doc-999", notIngested.DocumentID)
	assert.ErrorIs(t, err, domain.ErrNotIngested)
	assert.NotErrorIs(t, err, domain.ErrVectorIndexUnavailable)
	assert.Empty(t, f.embedder.batchSizes())
	assert.Equal(t, 1, f.metrics.queries[outcomeNotIngested])
}

func TestQueryService_ScopedToDocument(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 4, 96)
	f.fetcher.add("https://example.org/1.txt", "", "aaaabbbbcccc")
	f.fetcher.add("https://example.org/2.txt", "", "aaaaaaaaaaaa")

	_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/1.txt"))
	require.NoError(t, err)
	_, err = f.service.Ingest(ctx, textDoc("doc-2", "https://example.org/2.txt"))
	require.NoError(t, err)

	results, err := f.query.Query(ctx, domain.QueryRequest{DocumentID: "doc-1", Text: "aaaa"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, "doc-1", r.DocumentID)
	}
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)

	results, err = f.query.Query(ctx, domain.QueryRequest{DocumentID: "doc-2", Text: "aaaa", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	// Equal scores fall back to chunk order.
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, 1, results[1].ChunkIndex)
}

func TestQueryService_InvalidRequests(t *testing.T) {
	f := newIngestFixture(t, 1000, 96)
	tests := []struct {
		name string
		req  domain.QueryRequest
	}{
		{"missing document id", domain.QueryRequest{Text: "heart"}},
		{"blank document id", domain.QueryRequest{DocumentID: "  ", Text: "heart"}},
		{"blank text", domain.QueryRequest{DocumentID: "doc-1", Text: " \n"}},
		{"negative top_k", domain.QueryRequest{DocumentID: "doc-1", Text: "heart", TopK: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.query.Query(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
	assert.Equal(t, len(tests), f.metrics.queries[outcomeInvalid])
}

func TestQueryService_DefaultTopK(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1, 96)
	f.fetcher.add("https://example.org/a.txt", "", "abcabcabcabcabc")
	_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/a.txt"))
	require.NoError(t, err)

	results, err := f.query.Query(ctx, domain.QueryRequest{DocumentID: "doc-1", Text: "a"})
	require.NoError(t, err)
	assert.Len(t, results, domain.DefaultTopK)

	custom := NewQueryService(f.embedder, f.index, QueryConfig{Namespace: testNamespace, DefaultTopK: 3})
	results, err = custom.Query(ctx, domain.QueryRequest{DocumentID: "doc-1", Text: "a"})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestQueryService_DropsForeignResults(t *testing.T) {
	index := &leakyIndex{results: []domain.SearchResult{
		{RecordID: "0-doc-1", DocumentID: "doc-1", ChunkIndex: 0, Score: 0.9},
		{RecordID: "0-doc-2", DocumentID: "doc-2", ChunkIndex: 0, Score: 0.8},
		{RecordID: "1-doc-1", DocumentID: "doc-1", ChunkIndex: 1, Score: 0.7},
	}}
	svc := NewQueryService(&mockEmbedder{}, index, QueryConfig{Namespace: testNamespace})

	results, err := svc.Query(context.Background(), domain.QueryRequest{DocumentID: "doc-1", Text: "a"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "0-doc-1", results[0].RecordID)
	assert.Equal(t, "1-doc-1", results[1].RecordID)
}

func TestQueryService_FillsPartialMetadata(t *testing.T) {
	index := &leakyIndex{results: []domain.SearchResult{
		{RecordID: "3-doc-1", ChunkIndex: -1, Text: "partial", Score: 0.9},
		{RecordID: "bad", ChunkIndex: -1, Score: 0.5},
	}}
	svc := NewQueryService(&mockEmbedder{}, index, QueryConfig{Namespace: testNamespace})

	results, err := svc.Query(context.Background(), domain.QueryRequest{DocumentID: "doc-1", Text: "a"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.Equal(t, 3, results[0].ChunkIndex)
}
