package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure IngestionLedger implements the interface.
var _ driven.IngestionLedger = (*IngestionLedger)(nil)

// IngestionLedger is an in-memory implementation of driven.IngestionLedger.
// Runs are lost when the process exits.
type IngestionLedger struct {
	mu    sync.RWMutex
	runs  map[string]domain.IngestionRun
	order map[string]int
	seq   int
}

// NewIngestionLedger creates a new in-memory ingestion ledger.
func NewIngestionLedger() *IngestionLedger {
	return &IngestionLedger{
		runs:  make(map[string]domain.IngestionRun),
		order: make(map[string]int),
	}
}

// SaveRun stores or updates a run.
func (l *IngestionLedger) SaveRun(_ context.Context, run domain.IngestionRun) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.order[run.ID]; !ok {
		l.seq++
		l.order[run.ID] = l.seq
	}
	l.runs[run.ID] = run
	return nil
}

// GetRun retrieves a run by ID.
func (l *IngestionLedger) GetRun(_ context.Context, runID string) (*domain.IngestionRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &run, nil
}

// LatestRun returns the most recently started run for a document.
func (l *IngestionLedger) LatestRun(ctx context.Context, documentID string) (*domain.IngestionRun, error) {
	runs, err := l.ListRuns(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, domain.ErrNotFound
	}
	return &runs[0], nil
}

// ListRuns returns a document's runs, newest first.
func (l *IngestionLedger) ListRuns(_ context.Context, documentID string) ([]domain.IngestionRun, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var runs []domain.IngestionRun
	for _, run := range l.runs {
		if run.DocumentID == documentID {
			runs = append(runs, run)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return l.order[runs[i].ID] > l.order[runs[j].ID]
	})
	return runs, nil
}
