package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/storage/memory"
	vectormemory "github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/memory"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders"
	"github.com/the-momentum/fhir-mcp-server/internal/segmenters/window"
)

const testNamespace = "fhir-papers"

type ingestFixture struct {
	fetcher  *mockFetcher
	embedder *mockEmbedder
	index    *vectormemory.Index
	ledger   *memory.IngestionLedger
	metrics  *mockMetrics
	service  *IngestionService
	query    *QueryService
}

func newIngestFixture(t *testing.T, chunkSize, batchSize int, opts ...Option) *ingestFixture {
	t.Helper()
	index, err := vectormemory.New(4, domain.MetricCosine)
	require.NoError(t, err)

	f := &ingestFixture{
		fetcher:  newMockFetcher(),
		embedder: &mockEmbedder{},
		index:    index,
		ledger:   memory.NewIngestionLedger(),
		metrics:  newMockMetrics(),
	}
	opts = append([]Option{WithMetrics(f.metrics)}, opts...)
	f.service = NewIngestionService(
		f.fetcher,
		decoders.NewDefaultRegistry(),
		window.New(window.WithChunkSize(chunkSize), window.WithOverlap(0)),
		f.embedder,
		index,
		f.ledger,
		IngestionConfig{Namespace: testNamespace, UploadBatchSize: batchSize},
		opts...,
	)
	f.query = NewQueryService(f.embedder, index, QueryConfig{Namespace: testNamespace}, WithMetrics(f.metrics))
	return f
}

func textDoc(id, url string) domain.IngestRequest {
	return domain.IngestRequest{Document: domain.Document{ID: id, SourceURL: url}}
}

func TestIngestionService_SingleChunkScenario(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")

	present, err := f.index.Exists(ctx, testNamespace, "0-doc-1")
	require.NoError(t, err)
	assert.False(t, present)

	res, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestOutcomeIngested, res.Outcome)
	assert.Equal(t, 1, res.Chunks)
	assert.NotEmpty(t, res.RunID)
	assert.False(t, res.Coalesced)

	present, err = f.index.Exists(ctx, testNamespace, "0-doc-1")
	require.NoError(t, err)
	assert.True(t, present)

	results, err := f.query.Query(ctx, domain.QueryRequest{DocumentID: "doc-1", Text: "A", TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].ChunkIndex)
	assert.Equal(t, "0-doc-1", results[0].RecordID)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	assert.Equal(t, "https://example.org/u", results[0].SourceURL)
	assert.Equal(t, "A. B. C.", results[0].Text)
}

func TestIngestionService_LedgerRecordsRun(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain; charset=utf-8", "A. B. C.")

	res, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	require.NoError(t, err)

	run, err := f.ledger.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionDone, run.State)
	assert.Equal(t, domain.FormatText, run.Format)
	assert.Equal(t, 1, run.Chunks)
	assert.Equal(t, 1, run.Uploaded)
	assert.Empty(t, run.Error)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, 1, f.metrics.ingestions[outcomeIngested])
}

func TestIngestionService_ConcurrentCallsShareOneRun(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")
	f.fetcher.gate = make(chan struct{})
	f.fetcher.started = make(chan struct{}, 1)

	const callers = 5
	results := make([]*domain.IngestResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	}()
	<-f.fetcher.started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
		}(i)
	}
	require.Eventually(t, func() bool {
		return f.service.flights.waiting("doc-1") == callers-1
	}, 2*time.Second, 5*time.Millisecond)

	close(f.fetcher.gate)
	wg.Wait()

	coalesced := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.IngestOutcomeIngested, results[i].Outcome)
		assert.Equal(t, results[0].RunID, results[i].RunID)
		if results[i].Coalesced {
			coalesced++
		}
	}
	assert.Equal(t, callers-1, coalesced)
	assert.Equal(t, int32(1), f.fetcher.calls.Load())
	assert.Len(t, f.embedder.batchSizes(), 1)
	assert.Equal(t, callers-1, f.metrics.coalesced)
	assert.False(t, f.service.flights.inFlight("doc-1"))
}

func TestIngestionService_SkipsPresentDocument(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")

	_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	require.NoError(t, err)

	res, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	require.NoError(t, err)
	assert.Equal(t, domain.IngestOutcomeAlreadyPresent, res.Outcome)
	assert.Empty(t, res.RunID)
	assert.Equal(t, int32(1), f.fetcher.calls.Load())

	t.Run("force re-ingests and overwrites", func(t *testing.T) {
		req := textDoc("doc-1", "https://example.org/u")
		req.Force = true
		res, err := f.service.Ingest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.IngestOutcomeIngested, res.Outcome)
		assert.Equal(t, int32(2), f.fetcher.calls.Load())
		assert.Equal(t, 1, f.index.Count(testNamespace))
	})
}

func TestIngestionService_UnsupportedFormatNeverEmbeds(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/doc.xml", "application/xml", "<a>A</a>")

	req := textDoc("doc-x", "https://example.org/doc.xml")
	req.Document.Format = "xml"
	_, err := f.service.Ingest(ctx, req)

	var unsupported *domain.UnsupportedFormatError
	require.ErrorAs(t, err, &unsupported)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)
	assert.Equal(t, domain.Format("xml"), unsupported.Format)
	assert.Empty(t, f.embedder.batchSizes())

	run, err := f.ledger.LatestRun(ctx, "doc-x")
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionFailed, run.State)
	assert.Contains(t, run.Error, "xml")
	assert.Equal(t, 1, f.metrics.ingestions[outcomeFailed])
}

func TestIngestionService_UploadsInBatches(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 10, 10)
	f.fetcher.add("https://example.org/long.txt", "", strings.Repeat("abcde", 50))

	res, err := f.service.Ingest(ctx, textDoc("doc-long", "https://example.org/long.txt"))
	require.NoError(t, err)
	assert.Equal(t, 25, res.Chunks)
	assert.Equal(t, []int{10, 10, 5}, f.embedder.batchSizes())
	assert.Equal(t, 25, f.index.Count(testNamespace))

	for _, id := range []string{"0-doc-long", "9-doc-long", "10-doc-long", "24-doc-long"} {
		ok, err := f.index.Exists(ctx, testNamespace, id)
		require.NoError(t, err)
		assert.True(t, ok, id)
	}
	ok, err := f.index.Exists(ctx, testNamespace, "25-doc-long")
	require.NoError(t, err)
	assert.False(t, ok)

	run, err := f.ledger.LatestRun(ctx, "doc-long")
	require.NoError(t, err)
	assert.Equal(t, 25, run.Uploaded)
}

func TestIngestionService_EmptyDocument(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/empty.txt", "text/plain", "")

	res, err := f.service.Ingest(ctx, textDoc("doc-empty", "https://example.org/empty.txt"))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Empty(t, f.embedder.batchSizes())

	status, err := f.service.Status(ctx, "doc-empty")
	require.NoError(t, err)
	assert.False(t, status.Present)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, domain.IngestionDone, status.LastRun.State)
}

func TestIngestionService_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("fetch error", func(t *testing.T) {
		f := newIngestFixture(t, 1000, 96)
		_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/missing"))

		var fetchErr *domain.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, 404, fetchErr.StatusCode)

		run, err := f.ledger.LatestRun(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, domain.IngestionFailed, run.State)
	})

	t.Run("embedding unavailable", func(t *testing.T) {
		f := newIngestFixture(t, 1000, 96)
		f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")
		f.embedder.err = &domain.EmbeddingUnavailableError{Model: "mock", Err: errors.New("no weights")}

		_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)

		present, err := f.index.Exists(ctx, testNamespace, "0-doc-1")
		require.NoError(t, err)
		assert.False(t, present)
	})

	t.Run("invalid document", func(t *testing.T) {
		f := newIngestFixture(t, 1000, 96)
		_, err := f.service.Ingest(ctx, textDoc("", "https://example.org/u"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, err = f.service.Ingest(ctx, textDoc("doc-1", ""))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, int32(0), f.fetcher.calls.Load())
	})

	t.Run("decode error", func(t *testing.T) {
		f := newIngestFixture(t, 1000, 96)
		f.fetcher.add("https://example.org/bad.json", "application/json", "{not json")

		_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/bad.json"))
		assert.ErrorIs(t, err, domain.ErrDecodeFailed)
	})
}

func TestIngestionService_LockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	lock := &mockLock{held: map[string]bool{"doc-1": true}}
	f := newIngestFixture(t, 1000, 96, WithLock(lock))
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")
	f.fetcher.add("https://example.org/v", "text/plain", "B.")

	_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	assert.ErrorIs(t, err, domain.ErrIngestionInProgress)
	assert.Equal(t, int32(0), f.fetcher.calls.Load())
	assert.Equal(t, 1, f.metrics.ingestions[outcomeInProgress])

	_, err = f.service.Ingest(ctx, textDoc("doc-2", "https://example.org/v"))
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2"}, lock.released)
}

func TestIngestionService_CallerCancellationDoesNotAbortRun(t *testing.T) {
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")
	f.fetcher.gate = make(chan struct{})
	f.fetcher.started = make(chan struct{}, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
		done <- err
	}()
	<-f.fetcher.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(f.fetcher.gate)
	require.Eventually(t, func() bool {
		ok, err := f.index.Exists(context.Background(), testNamespace, "0-doc-1")
		return err == nil && ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIngestionService_Status(t *testing.T) {
	ctx := context.Background()
	f := newIngestFixture(t, 1000, 96)
	f.fetcher.add("https://example.org/u", "text/plain", "A. B. C.")

	status, err := f.service.Status(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, status.Present)
	assert.False(t, status.InFlight)
	assert.Nil(t, status.LastRun)

	_, err = f.service.Ingest(ctx, textDoc("doc-1", "https://example.org/u"))
	require.NoError(t, err)

	status, err = f.service.Status(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, status.Present)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, domain.IngestionDone, status.LastRun.State)
	assert.False(t, status.Incomplete())

	_, err = f.service.Status(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name        string
		declared    domain.Format
		contentType string
		url         string
		want        domain.Format
	}{
		{"declared wins", "csv", "application/pdf", "https://x/a.pdf", domain.FormatCSV},
		{"declared alias", "TEXT", "", "", domain.FormatText},
		{"declared unknown kept", "xml", "text/plain", "", domain.Format("xml")},
		{"content type", "", "application/pdf", "https://x/download", domain.FormatPDF},
		{"content type with params", "", "text/csv; charset=utf-8", "", domain.FormatCSV},
		{"url extension", "", "application/octet-stream", "https://x/a.json?v=1", domain.FormatJSON},
		{"unresolved", "", "", "https://x/download", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveFormat(tt.declared, tt.contentType, tt.url))
		})
	}
}
