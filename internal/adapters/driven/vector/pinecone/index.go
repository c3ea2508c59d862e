// Package pinecone provides a vector index backed by a Pinecone serverless
// index over the REST API. The index is created on open if it does not exist.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/rank"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultControlURL   = "https://api.pinecone.io"
	DefaultTimeout      = 30 * time.Second
	DefaultReadyTimeout = 2 * time.Minute
	DefaultPollInterval = time.Second

	apiVersion = "2024-07"
)

var errNotFound = errors.New("not found")

// Config holds configuration for the Pinecone index.
type Config struct {
	// APIKey is the Pinecone API key (required).
	APIKey string

	// ControlURL is the control plane address (default: https://api.pinecone.io).
	ControlURL string

	// Name is the index name.
	Name string

	// Dimension and Metric are used to create the index and must match an
	// existing one.
	Dimension int
	Metric    domain.Metric

	// Cloud and Region place a newly created serverless index.
	Cloud  string
	Region string

	// Timeout is the per-request timeout (default: 30s).
	Timeout time.Duration

	// ReadyTimeout bounds the wait for a new index to become ready.
	ReadyTimeout time.Duration

	// PollInterval is the delay between readiness checks.
	PollInterval time.Duration
}

// Index is a Pinecone-backed vector index.
type Index struct {
	client    *http.Client
	apiKey    string
	host      string
	dimension int
	metric    domain.Metric
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Open resolves the index host, creating the index and waiting for it to
// become ready when it does not exist.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: pinecone API key is required", domain.ErrInvalidInput)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: pinecone index name is required", domain.ErrInvalidInput)
	}
	if !cfg.Metric.IsValid() {
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, cfg.Metric)
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.ReadyTimeout == 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	idx := &Index{
		client:    &http.Client{Timeout: cfg.Timeout},
		apiKey:    cfg.APIKey,
		dimension: cfg.Dimension,
		metric:    cfg.Metric,
	}

	desc, err := idx.describeOrCreate(ctx, cfg)
	if err != nil {
		return nil, domain.NewIndexError("open", "", err)
	}
	if desc.Dimension != cfg.Dimension {
		return nil, domain.NewIndexError("open", "", fmt.Errorf("%w: index %s has %d dimensions, configured %d",
			domain.ErrDimensionMismatch, cfg.Name, desc.Dimension, cfg.Dimension))
	}
	idx.host = hostURL(desc.Host)
	return idx, nil
}

func (i *Index) describeOrCreate(ctx context.Context, cfg Config) (*indexDescription, error) {
	control := strings.TrimRight(cfg.ControlURL, "/")
	describeURL := control + "/indexes/" + url.PathEscape(cfg.Name)

	var desc indexDescription
	err := i.do(ctx, http.MethodGet, describeURL, nil, &desc)
	if err == nil {
		return &desc, nil
	}
	if !errors.Is(err, errNotFound) {
		return nil, fmt.Errorf("describe index: %w", err)
	}

	logger.Info("pinecone: creating index %s (%d dimensions, %s)", cfg.Name, cfg.Dimension, cfg.Metric)
	create := map[string]any{
		"name":      cfg.Name,
		"dimension": cfg.Dimension,
		"metric":    string(cfg.Metric),
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  cfg.Cloud,
				"region": cfg.Region,
			},
		},
	}
	if err := i.do(ctx, http.MethodPost, control+"/indexes", create, &desc); err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	deadline := time.Now().Add(cfg.ReadyTimeout)
	for !desc.Status.Ready {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("index %s not ready after %s", cfg.Name, cfg.ReadyTimeout)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.PollInterval):
		}
		if err := i.do(ctx, http.MethodGet, describeURL, nil, &desc); err != nil {
			return nil, fmt.Errorf("describe index: %w", err)
		}
	}
	return &desc, nil
}

func hostURL(host string) string {
	host = strings.TrimRight(host, "/")
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

type vector struct {
	ID       string         `json:"id"`
	Values   []float32      `json:"values"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Upsert writes the records to the namespace.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	vectors := make([]vector, 0, len(records))
	for _, r := range records {
		if len(r.Values) != i.dimension {
			return domain.NewIndexError("upsert", namespace, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Values), i.dimension))
		}
		vectors = append(vectors, vector{
			ID:     r.ID,
			Values: r.Values,
			Metadata: map[string]any{
				domain.FieldDocumentID: r.Metadata.DocumentID,
				domain.FieldSourceURL:  r.Metadata.SourceURL,
				domain.FieldChunkIndex: r.Metadata.ChunkIndex,
				domain.FieldText:       r.Metadata.Text,
			},
		})
	}
	if len(vectors) == 0 {
		return nil
	}

	body := map[string]any{"vectors": vectors, "namespace": namespace}
	return domain.NewIndexError("upsert", namespace, i.do(ctx, http.MethodPost, i.host+"/vectors/upsert", body, nil))
}

type match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Search queries the namespace with an equality filter on metadata.
func (i *Index) Search(ctx context.Context, namespace string, query []float32, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if len(query) != i.dimension {
		return nil, domain.NewIndexError("search", namespace, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), i.dimension))
	}
	if topK <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"namespace":       namespace,
		"vector":          query,
		"topK":            topK,
		"includeMetadata": true,
	}
	if len(filter) > 0 {
		body["filter"] = metadataFilter(filter)
	}

	var resp struct {
		Matches []match `json:"matches"`
	}
	if err := i.do(ctx, http.MethodPost, i.host+"/query", body, &resp); err != nil {
		return nil, domain.NewIndexError("search", namespace, err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		score := m.Score
		if i.metric == domain.MetricEuclidean {
			// Pinecone reports the distance itself for euclidean.
			score = -score
		}
		results = append(results, resultFromMatch(m, score))
	}
	return rank.Top(results, topK), nil
}

func metadataFilter(filter domain.Filter) map[string]any {
	out := make(map[string]any, len(filter))
	for field, value := range filter {
		var v any = value
		if field == domain.FieldChunkIndex {
			if n, err := strconv.Atoi(value); err == nil {
				v = n
			}
		}
		out[field] = map[string]any{"$eq": v}
	}
	return out
}

func resultFromMatch(m match, score float64) domain.SearchResult {
	r := domain.SearchResult{RecordID: m.ID, ChunkIndex: -1, Score: score}
	r.DocumentID, _ = m.Metadata[domain.FieldDocumentID].(string)
	r.SourceURL, _ = m.Metadata[domain.FieldSourceURL].(string)
	r.Text, _ = m.Metadata[domain.FieldText].(string)
	if v, ok := m.Metadata[domain.FieldChunkIndex].(float64); ok {
		r.ChunkIndex = int(v)
	}
	return r
}

// Exists fetches the record by ID.
func (i *Index) Exists(ctx context.Context, namespace, recordID string) (bool, error) {
	q := url.Values{}
	q.Set("ids", recordID)
	q.Set("namespace", namespace)

	var resp struct {
		Vectors map[string]json.RawMessage `json:"vectors"`
	}
	if err := i.do(ctx, http.MethodGet, i.host+"/vectors/fetch?"+q.Encode(), nil, &resp); err != nil {
		return false, domain.NewIndexError("exists", namespace, err)
	}
	_, ok := resp.Vectors[recordID]
	return ok, nil
}

// Dimension returns the vector size.
func (i *Index) Dimension() int {
	return i.dimension
}

// Close releases idle connections.
func (i *Index) Close() error {
	i.client.CloseIdleConnections()
	return nil
}

// do sends a JSON request and decodes the JSON response into out when set.
func (i *Index) do(ctx context.Context, method, target string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", i.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)

	resp, err := i.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pinecone %s %s failed (status %d): %s", method, req.URL.Path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
