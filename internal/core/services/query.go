package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driving"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryConfig holds the scalar settings of the query path.
type QueryConfig struct {
	// Namespace is the vector index partition to search.
	Namespace string

	// DefaultTopK is used when a request leaves TopK at zero.
	DefaultTopK int
}

// QueryService answers similarity queries scoped to one document.
// It has no side effects: a missing document is reported, never ingested.
type QueryService struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex

	namespace   string
	defaultTopK int
	opts        options
}

// NewQueryService creates a new query service.
func NewQueryService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	cfg QueryConfig,
	opts ...Option,
) *QueryService {
	topK := cfg.DefaultTopK
	if topK < 1 {
		topK = domain.DefaultTopK
	}
	return &QueryService{
		embedder:    embedder,
		index:       index,
		namespace:   cfg.Namespace,
		defaultTopK: topK,
		opts:        buildOptions(opts),
	}
}

// Query returns passages of req.DocumentID ordered by descending score.
func (s *QueryService) Query(ctx context.Context, req domain.QueryRequest) ([]domain.SearchResult, error) {
	start := time.Now()
	results, err := s.query(ctx, req)

	outcome := outcomeOK
	var notIngested *domain.NotIngestedError
	switch {
	case errors.As(err, &notIngested):
		outcome = outcomeNotIngested
	case errors.Is(err, domain.ErrInvalidInput):
		outcome = outcomeInvalid
	case err != nil:
		outcome = outcomeFailed
	}
	s.opts.metrics.ObserveQuery(outcome, time.Since(start), len(results))
	return results, err
}

func (s *QueryService) query(ctx context.Context, req domain.QueryRequest) ([]domain.SearchResult, error) {
	documentID := req.DocumentID
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}
	topK := req.TopK
	switch {
	case topK < 0:
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", domain.ErrInvalidInput, topK)
	case topK == 0:
		topK = s.defaultTopK
	}

	present, err := s.index.Exists(ctx, s.namespace, domain.PresenceRecordID(documentID))
	if err != nil {
		return nil, domain.NewIndexError("exists", s.namespace, err)
	}
	if !present {
		logger.Debug("Document %s not ingested", documentID)
		return nil, &domain.NotIngestedError{DocumentID: documentID}
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{req.Text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &domain.EmbeddingUnavailableError{
			Model: s.embedder.ModelName(),
			Err:   fmt.Errorf("got %d embeddings for 1 query", len(vectors)),
		}
	}

	raw, err := s.index.Search(ctx, s.namespace, vectors[0], topK, domain.DocumentFilter(documentID))
	if err != nil {
		return nil, domain.NewIndexError("search", s.namespace, err)
	}

	results := make([]domain.SearchResult, 0, len(raw))
	for _, r := range raw {
		fillFromRecordID(&r)
		if r.DocumentID != documentID {
			logger.Warn("Dropping result %s outside document %s", r.RecordID, documentID)
			continue
		}
		results = append(results, r)
	}
	if len(results) > topK {
		results = results[:topK]
	}
	logger.Debug("Query on %s returned %d results", documentID, len(results))
	return results, nil
}

// fillFromRecordID recovers the document id and chunk index from the record
// id when the index returned partial metadata.
func fillFromRecordID(r *domain.SearchResult) {
	if r.DocumentID != "" && r.ChunkIndex >= 0 {
		return
	}
	idx, docID, err := domain.ParseRecordID(r.RecordID)
	if err != nil {
		return
	}
	if r.DocumentID == "" {
		r.DocumentID = docID
	}
	if r.ChunkIndex < 0 {
		r.ChunkIndex = idx
	}
}
