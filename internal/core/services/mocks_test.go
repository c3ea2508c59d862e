package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// mockFetcher serves documents from memory. When gate is set, Fetch signals
// started and blocks until gate is closed.
type mockFetcher struct {
	docs    map[string]*driven.FetchedDocument
	err     error
	gate    chan struct{}
	started chan struct{}
	calls   atomic.Int32
}

func newMockFetcher() *mockFetcher {
	return &mockFetcher{docs: make(map[string]*driven.FetchedDocument)}
}

func (m *mockFetcher) add(url, contentType, body string) {
	m.docs[url] = &driven.FetchedDocument{Content: []byte(body), ContentType: contentType}
}

func (m *mockFetcher) Fetch(_ context.Context, url string) (*driven.FetchedDocument, error) {
	m.calls.Add(1)
	if m.gate != nil {
		if m.started != nil {
			select {
			case m.started <- struct{}{}:
			default:
			}
		}
		<-m.gate
	}
	if m.err != nil {
		return nil, m.err
	}
	doc, ok := m.docs[url]
	if !ok {
		return nil, &domain.FetchError{URL: url, StatusCode: 404}
	}
	return doc, nil
}

// mockEmbedder maps text to a 4-dimensional letter-frequency vector.
type mockEmbedder struct {
	mu      sync.Mutex
	batches []int
	err     error
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := []float32{0.1, 0, 0, 0}
	for _, r := range text {
		switch r {
		case 'A', 'a':
			v[1]++
		case 'B', 'b':
			v[2]++
		case 'C', 'c':
			v[3]++
		}
	}
	return v
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := m.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.batches = append(m.batches, len(texts))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *mockEmbedder) batchSizes() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.batches...)
}

func (m *mockEmbedder) Dimensions() int              { return 4 }
func (m *mockEmbedder) ModelName() string            { return "mock" }
func (m *mockEmbedder) Ping(_ context.Context) error { return nil }
func (m *mockEmbedder) Close() error                 { return nil }

// mockLock refuses documents listed in held.
type mockLock struct {
	mu       sync.Mutex
	held     map[string]bool
	released []string
}

func (m *mockLock) TryAcquire(_ context.Context, documentID string) (func(context.Context) error, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[documentID] {
		return nil, false, nil
	}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released = append(m.released, documentID)
		return nil
	}, true, nil
}

// mockMetrics counts observations by outcome.
type mockMetrics struct {
	mu         sync.Mutex
	ingestions map[string]int
	queries    map[string]int
	coalesced  int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{ingestions: make(map[string]int), queries: make(map[string]int)}
}

func (m *mockMetrics) ObserveIngestion(outcome string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingestions[outcome]++
}

func (m *mockMetrics) ObserveQuery(outcome string, _ time.Duration, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[outcome]++
}

func (m *mockMetrics) IncCoalesced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coalesced++
}

// leakyIndex returns canned search results regardless of the filter.
type leakyIndex struct {
	results []domain.SearchResult
}

func (l *leakyIndex) Upsert(context.Context, string, []domain.VectorRecord) error { return nil }
func (l *leakyIndex) Exists(context.Context, string, string) (bool, error)         { return true, nil }
func (l *leakyIndex) Dimension() int                                               { return 4 }
func (l *leakyIndex) Close() error                                                 { return nil }

func (l *leakyIndex) Search(context.Context, string, []float32, int, domain.Filter) ([]domain.SearchResult, error) {
	return l.results, nil
}
