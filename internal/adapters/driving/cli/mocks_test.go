package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/storage/memory"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driving"
)

// Ensure mocks implement the interfaces.
var (
	_ driving.IngestionService = (*mockIngestionService)(nil)
	_ driving.QueryService     = (*mockQueryService)(nil)
)

type mockIngestionService struct {
	requests  []domain.IngestRequest
	result    *domain.IngestResult
	status    *domain.DocumentStatus
	err       error
	statusErr error
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &domain.IngestResult{
		DocumentID: req.Document.ID,
		RunID:      "run-1",
		Outcome:    domain.IngestOutcomeIngested,
		Chunks:     3,
	}, nil
}

func (m *mockIngestionService) Status(_ context.Context, documentID string) (*domain.DocumentStatus, error) {
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if m.status != nil {
		return m.status, nil
	}
	return &domain.DocumentStatus{DocumentID: documentID}, nil
}

type mockQueryService struct {
	requests []domain.QueryRequest
	results  []domain.SearchResult
	err      error
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) ([]domain.SearchResult, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

// setupTestServices installs mock services and an in-memory config store,
// restoring the previous globals when the test ends.
func setupTestServices(t *testing.T) (*mockIngestionService, *mockQueryService) {
	t.Helper()

	prevStore, prevIngest, prevQuery := configStore, ingestionService, queryService
	prevMetrics, prevClose := metricsHandler, closeServices

	ingest := &mockIngestionService{}
	query := &mockQueryService{}
	configStore = memory.NewConfigStore()
	ingestionService = ingest
	queryService = query
	metricsHandler = nil
	closeServices = nil
	resetFlags(rootCmd)

	t.Cleanup(func() {
		configStore, ingestionService, queryService = prevStore, prevIngest, prevQuery
		metricsHandler, closeServices = prevMetrics, prevClose
		resetFlags(rootCmd)
	})
	return ingest, query
}

// resetFlags restores every flag to its default, since cobra keeps parsed
// values between Execute calls.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// execute runs the root command with args and returns the combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}
