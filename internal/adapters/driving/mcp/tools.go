package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// AddDocumentInput is the input schema for the add_document tool.
type AddDocumentInput struct {
	URL        string `json:"url" jsonschema:"URL of the document content, e.g. a FHIR Attachment url"`
	DocumentID string `json:"document_id" jsonschema:"stable id of the FHIR DocumentReference the content belongs to"`
	Format     string `json:"format,omitempty" jsonschema:"document format: pdf, txt, csv or json; resolved from the response when omitted"`
	Force      bool   `json:"force,omitempty" jsonschema:"re-ingest even if the document is already present"`
}

// AddDocumentOutput is the output schema for the add_document tool.
type AddDocumentOutput struct {
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
	Chunks     int    `json:"chunks"`
	RunID      string `json:"run_id,omitempty"`
	Message    string `json:"message"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"natural-language question about the document"`
	DocumentID string `json:"document_id" jsonschema:"id of a document previously added with add_document"`
	TopK       int    `json:"top_k,omitempty" jsonschema:"maximum number of passages to return (default 10)"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	RecordID   string  `json:"record_id"`
	DocumentID string  `json:"document_id"`
	SourceURL  string  `json:"source_url,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// DocumentStatusInput is the input schema for the document_status tool.
type DocumentStatusInput struct {
	DocumentID string `json:"document_id" jsonschema:"id of the document to inspect"`
}

// DocumentStatusOutput is the output schema for the document_status tool.
type DocumentStatusOutput struct {
	DocumentID string     `json:"document_id"`
	Present    bool       `json:"present"`
	InFlight   bool       `json:"in_flight"`
	Incomplete bool       `json:"incomplete"`
	LastRun    *RunOutput `json:"last_run,omitempty"`
}

// RunOutput summarises an ingestion run.
type RunOutput struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Format     string `json:"format,omitempty"`
	Chunks     int    `json:"chunks"`
	Uploaded   int    `json:"uploaded"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name: "add_document",
		Description: "Download a document (PDF, plain text, CSV or JSON) attached to a FHIR resource and index it " +
			"for search. Documents already present are skipped unless force is set.",
	}, s.handleAddDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name: "search",
		Description: "Search the passages of one previously added document. " +
			"Fails with a not-added message when add_document has not been called for the document.",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "document_status",
		Description: "Report whether a document is indexed and the state of its latest ingestion run.",
	}, s.handleDocumentStatus)
}

// handleAddDocument handles the add_document tool invocation.
func (s *Server) handleAddDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AddDocumentInput,
) (*mcp.CallToolResult, AddDocumentOutput, error) {
	req := domain.IngestRequest{
		Document: domain.Document{
			SourceURL: strings.TrimSpace(input.URL),
			ID:        strings.TrimSpace(input.DocumentID),
			Format:    domain.Format(strings.TrimSpace(input.Format)),
		},
		Force: input.Force,
	}

	res, err := s.ports.Ingestion.Ingest(ctx, req)
	if err != nil {
		return nil, AddDocumentOutput{}, newToolError(err)
	}

	output := AddDocumentOutput{
		Status:     string(res.Outcome),
		DocumentID: res.DocumentID,
		Chunks:     res.Chunks,
		RunID:      res.RunID,
	}
	switch res.Outcome {
	case domain.IngestOutcomeAlreadyPresent:
		output.Message = fmt.Sprintf("Document %s is already indexed.", res.DocumentID)
	default:
		output.Message = fmt.Sprintf("Document %s added with %d chunks.", res.DocumentID, res.Chunks)
	}
	return nil, output, nil
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Query.Query(ctx, domain.QueryRequest{
		DocumentID: strings.TrimSpace(input.DocumentID),
		Text:       input.Query,
		TopK:       input.TopK,
	})
	if err != nil {
		return nil, SearchOutput{}, newToolError(err)
	}

	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			RecordID:   results[i].RecordID,
			DocumentID: results[i].DocumentID,
			SourceURL:  results[i].SourceURL,
			ChunkIndex: results[i].ChunkIndex,
			Text:       results[i].Text,
			Score:      results[i].Score,
		}
	}

	return nil, output, nil
}

// handleDocumentStatus handles the document_status tool invocation.
func (s *Server) handleDocumentStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	status, err := s.ports.Ingestion.Status(ctx, strings.TrimSpace(input.DocumentID))
	if err != nil {
		return nil, DocumentStatusOutput{}, newToolError(err)
	}
	return nil, statusOutput(status), nil
}

func statusOutput(status *domain.DocumentStatus) DocumentStatusOutput {
	out := DocumentStatusOutput{
		DocumentID: status.DocumentID,
		Present:    status.Present,
		InFlight:   status.InFlight,
		Incomplete: status.Incomplete(),
	}
	if run := status.LastRun; run != nil {
		out.LastRun = &RunOutput{
			ID:        run.ID,
			State:     run.State.String(),
			Format:    run.Format.String(),
			Chunks:    run.Chunks,
			Uploaded:  run.Uploaded,
			Error:     run.Error,
			StartedAt: run.StartedAt.UTC().Format(time.RFC3339),
		}
		if run.FinishedAt != nil {
			out.LastRun.FinishedAt = run.FinishedAt.UTC().Format(time.RFC3339)
		}
	}
	return out
}
