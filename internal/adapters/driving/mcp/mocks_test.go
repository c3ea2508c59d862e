package mcp

import (
	"context"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	result  *domain.IngestResult
	status  *domain.DocumentStatus
	err     error
	lastReq domain.IngestRequest
	lastID  string
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockIngestionService) Status(_ context.Context, documentID string) (*domain.DocumentStatus, error) {
	m.lastID = documentID
	return m.status, m.err
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	results []domain.SearchResult
	err     error
	lastReq domain.QueryRequest
}

func (m *mockQueryService) Query(_ context.Context, req domain.QueryRequest) ([]domain.SearchResult, error) {
	m.lastReq = req
	return m.results, m.err
}

func newTestServer(ingest *mockIngestionService, query *mockQueryService) (*Server, error) {
	return NewServer(&Ports{Ingestion: ingest, Query: query})
}
