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

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// DefaultUploadBatchSize is the number of records per upsert when unset.
const DefaultUploadBatchSize = 96

// IngestionConfig holds the scalar settings of the ingestion pipeline.
type IngestionConfig struct {
	// Namespace is the vector index partition documents are written to.
	Namespace string

	// UploadBatchSize is the number of chunks embedded and upserted together.
	UploadBatchSize int
}

// IngestionService fetches, decodes, chunks, embeds and uploads documents.
// At most one ingestion per document runs at a time in this process.
type IngestionService struct {
	fetcher   driven.Fetcher
	decoders  driven.DecoderRegistry
	segmenter driven.Segmenter
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	ledger    driven.IngestionLedger

	namespace string
	batchSize int
	opts      options
	flights   *flightGroup
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	fetcher driven.Fetcher,
	decoders driven.DecoderRegistry,
	segmenter driven.Segmenter,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	ledger driven.IngestionLedger,
	cfg IngestionConfig,
	opts ...Option,
) *IngestionService {
	batchSize := cfg.UploadBatchSize
	if batchSize <= 0 {
		batchSize = DefaultUploadBatchSize
	}
	return &IngestionService{
		fetcher:   fetcher,
		decoders:  decoders,
		segmenter: segmenter,
		embedder:  embedder,
		index:     index,
		ledger:    ledger,
		namespace: cfg.Namespace,
		batchSize: batchSize,
		opts:      buildOptions(opts),
		flights:   newFlightGroup(),
	}
}

// Ingest runs the pipeline for a document. Concurrent calls for the same
// document join the in-flight run and share its result. The run is detached
// from ctx: if ctx ends first the caller gets ctx.Err() while the run continues.
func (s *IngestionService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	if err := req.Document.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	detached := context.WithoutCancel(ctx)
	res, shared, err := s.flights.do(ctx, req.Document.ID, func() (*domain.IngestResult, error) {
		return s.ingest(detached, req)
	})

	if shared {
		s.opts.metrics.IncCoalesced()
		logger.Debug("Joined in-flight ingestion of %s", req.Document.ID)
		if res != nil {
			joined := *res
			joined.Coalesced = true
			res = &joined
		}
	} else {
		chunks := 0
		if res != nil {
			chunks = res.Chunks
		}
		s.opts.metrics.ObserveIngestion(ingestOutcome(res, err), time.Since(start), chunks)
	}
	return res, err
}

func ingestOutcome(res *domain.IngestResult, err error) string {
	switch {
	case err == nil && res != nil:
		return string(res.Outcome)
	case errors.Is(err, domain.ErrIngestionInProgress):
		return outcomeInProgress
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	default:
		return outcomeFailed
	}
}

// ingest is the body of one single-flight run.
//
//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestionService) ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	doc := req.Document
	logger.Section("Ingestion " + doc.ID)

	// 1. Cross-process exclusion
	if s.opts.lock != nil {
		release, ok, err := s.opts.lock.TryAcquire(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("acquire ingestion lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: document %q", domain.ErrIngestionInProgress, doc.ID)
		}
		defer func() {
			if err := release(ctx); err != nil {
				logger.Warn("Failed to release ingestion lock for %s: %v", doc.ID, err)
			}
		}()
	}

	// 2. Skip documents that are already present
	if !req.Force {
		present, err := s.index.Exists(ctx, s.namespace, domain.PresenceRecordID(doc.ID))
		if err != nil {
			return nil, domain.NewIndexError("exists", s.namespace, err)
		}
		if present {
			logger.Info("Document %s already present, skipping", doc.ID)
			return &domain.IngestResult{
				DocumentID: doc.ID,
				Outcome:    domain.IngestOutcomeAlreadyPresent,
			}, nil
		}
	}

	now := s.opts.now()
	run := &domain.IngestionRun{
		ID:         s.opts.newID(),
		DocumentID: doc.ID,
		SourceURL:  doc.SourceURL,
		State:      domain.IngestionNotStarted,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	s.save(ctx, run)

	// 3. Fetch
	if err := s.advance(ctx, run, domain.IngestionFetching); err != nil {
		return nil, err
	}
	fetched, err := s.fetcher.Fetch(ctx, doc.SourceURL)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}
	logger.Debug("Fetched %d bytes from %s (content type %q)", len(fetched.Content), doc.SourceURL, fetched.ContentType)

	// 4. Decode
	if err := s.advance(ctx, run, domain.IngestionDecoding); err != nil {
		return nil, err
	}
	run.Format = ResolveFormat(doc.Format, fetched.ContentType, doc.SourceURL)
	text, err := s.decoders.Decode(ctx, fetched.Content, run.Format)
	if err != nil {
		return nil, s.fail(ctx, run, err)
	}

	// 5. Chunk
	if err := s.advance(ctx, run, domain.IngestionChunking); err != nil {
		return nil, err
	}
	texts, err := s.segmenter.Segment(ctx, text)
	if err != nil {
		return nil, s.fail(ctx, run, fmt.Errorf("segment: %w", err))
	}
	run.Chunks = len(texts)
	logger.Debug("Segmented %s into %d chunks with %s", doc.ID, len(texts), s.segmenter.Name())

	// 6. Embed and upload in batches; chunk 0 goes out with the first batch
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		if err := s.advance(ctx, run, domain.IngestionEmbedding); err != nil {
			return nil, err
		}
		if err := s.uploadBatch(ctx, doc, texts[start:end], start); err != nil {
			return nil, s.fail(ctx, run, err)
		}
		run.Uploaded = end
		if err := s.advance(ctx, run, domain.IngestionUploading); err != nil {
			return nil, err
		}
	}

	if err := s.advance(ctx, run, domain.IngestionDone); err != nil {
		return nil, err
	}
	logger.Info("Ingested %s: %d chunks (run %s)", doc.ID, run.Chunks, run.ID)

	return &domain.IngestResult{
		DocumentID: doc.ID,
		RunID:      run.ID,
		Outcome:    domain.IngestOutcomeIngested,
		Chunks:     run.Chunks,
	}, nil
}

// uploadBatch embeds one batch of chunk texts and upserts their records.
// offset is the chunk index of texts[0].
func (s *IngestionService) uploadBatch(ctx context.Context, doc domain.Document, texts []string, offset int) error {
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return &domain.EmbeddingUnavailableError{
			Model: s.embedder.ModelName(),
			Err:   fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(texts)),
		}
	}

	records := make([]domain.VectorRecord, len(texts))
	for i, text := range texts {
		chunk := domain.Chunk{DocumentID: doc.ID, Index: offset + i, Text: text}
		records[i] = domain.NewVectorRecord(chunk, doc.SourceURL, vectors[i])
	}
	logger.Debug("Upserting chunks %d-%d of %s", offset, offset+len(texts)-1, doc.ID)
	return domain.NewIndexError("upsert", s.namespace, s.index.Upsert(ctx, s.namespace, records))
}

// advance moves run to next and records the transition.
func (s *IngestionService) advance(ctx context.Context, run *domain.IngestionRun, next domain.IngestionState) error {
	if !run.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, run.State, next)
	}
	logger.Debug("Run %s: %s -> %s", run.ID, run.State, next)
	run.State = next
	run.UpdatedAt = s.opts.now()
	if next.IsTerminal() {
		finished := run.UpdatedAt
		run.FinishedAt = &finished
	}
	s.save(ctx, run)
	return nil
}

// fail records the failure on the run and returns cause.
func (s *IngestionService) fail(ctx context.Context, run *domain.IngestionRun, cause error) error {
	run.Error = cause.Error()
	if err := s.advance(ctx, run, domain.IngestionFailed); err != nil {
		return errors.Join(cause, err)
	}
	logger.Warn("Ingestion of %s failed: %v", run.DocumentID, cause)
	return cause
}

// save persists the run. Ledger failures are logged, never fatal.
func (s *IngestionService) save(ctx context.Context, run *domain.IngestionRun) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.SaveRun(ctx, *run); err != nil {
		logger.Warn("Failed to record ingestion run %s: %v", run.ID, err)
	}
}

// Status reports whether a document is present and its latest run.
func (s *IngestionService) Status(ctx context.Context, documentID string) (*domain.DocumentStatus, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}

	present, err := s.index.Exists(ctx, s.namespace, domain.PresenceRecordID(documentID))
	if err != nil {
		return nil, domain.NewIndexError("exists", s.namespace, err)
	}
	status := &domain.DocumentStatus{
		DocumentID: documentID,
		Present:    present,
		InFlight:   s.flights.inFlight(documentID),
	}

	if s.ledger != nil {
		run, err := s.ledger.LatestRun(ctx, documentID)
		switch {
		case err == nil:
			status.LastRun = run
		case !errors.Is(err, domain.ErrNotFound):
			return nil, fmt.Errorf("latest run: %w", err)
		}
	}
	return status, nil
}

// ResolveFormat picks the effective document format: the declared format,
// then the response Content-Type, then the URL extension. A declared but
// unknown format is kept so decoding reports it; empty means unresolved.
func ResolveFormat(declared domain.Format, contentType, sourceURL string) domain.Format {
	if declared != "" {
		if f, ok := domain.ParseFormat(string(declared)); ok {
			return f
		}
		return declared
	}
	if f, ok := domain.ParseFormat(contentType); ok {
		return f
	}
	if f, ok := domain.FormatFromURL(sourceURL); ok {
		return f
	}
	return ""
}
