// Package qdrant provides a vector index backed by a Qdrant server over its
// REST API. Namespaces share one collection and are kept apart by a payload
// field that every query filters on.
package qdrant

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

	"github.com/google/uuid"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/rank"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default configuration values.
const (
	DefaultURL     = "http://localhost:6333"
	DefaultTimeout = 15 * time.Second
)

// Payload keys added next to the record metadata.
const (
	payloadNamespace = "namespace"
	payloadRecordID  = "record_id"
)

// errNotFound marks a 404 from the server.
var errNotFound = errors.New("not found")

// Config holds configuration for the Qdrant index.
type Config struct {
	// URL is the server address (default: http://localhost:6333).
	URL string

	// APIKey is sent as the api-key header when set.
	APIKey string

	// Collection is the collection name.
	Collection string

	// Dimension is the vector size.
	Dimension int

	// Metric is the similarity metric used when creating the collection.
	Metric domain.Metric

	// Timeout is the request timeout (default: 15s).
	Timeout time.Duration
}

// Index is a Qdrant-backed vector index.
type Index struct {
	client     *http.Client
	url        string
	apiKey     string
	collection string
	dimension  int
	metric     domain.Metric
}

// Open connects to Qdrant and creates the collection if it does not exist.
// An existing collection with a different vector size is rejected.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant collection is required", domain.ErrInvalidInput)
	}
	if _, err := distanceFor(cfg.Metric); err != nil {
		return nil, err
	}

	idx := &Index{
		client:     &http.Client{Timeout: cfg.Timeout},
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metric:     cfg.Metric,
	}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, domain.NewIndexError("open", "", err)
	}
	return idx, nil
}

func distanceFor(metric domain.Metric) (string, error) {
	switch metric {
	case domain.MetricCosine:
		return "Cosine", nil
	case domain.MetricDotProduct:
		return "Dot", nil
	case domain.MetricEuclidean:
		return "Euclid", nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", domain.ErrInvalidInput, metric)
	}
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (i *Index) ensureCollection(ctx context.Context) error {
	var info collectionInfo
	err := i.do(ctx, http.MethodGet, i.collectionPath(""), nil, &info)
	switch {
	case err == nil:
		if size := info.Result.Config.Params.Vectors.Size; size != i.dimension {
			return fmt.Errorf("%w: collection %s has %d dimensions, configured %d",
				domain.ErrDimensionMismatch, i.collection, size, i.dimension)
		}
		return nil
	case errors.Is(err, errNotFound):
		distance, _ := distanceFor(i.metric)
		body := map[string]any{
			"vectors": map[string]any{
				"size":     i.dimension,
				"distance": distance,
			},
		}
		if err := i.do(ctx, http.MethodPut, i.collectionPath(""), body, nil); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		return i.do(ctx, http.MethodPut, i.collectionPath("/index?wait=true"), map[string]any{
			"field_name":   payloadNamespace,
			"field_schema": "keyword",
		}, nil)
	default:
		return err
	}
}

// PointID maps a namespaced record ID to the UUID Qdrant stores it under.
func PointID(namespace, recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"/"+recordID)).String()
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes the records and waits for the write to be applied.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	points := make([]point, 0, len(records))
	for _, r := range records {
		if len(r.Values) != i.dimension {
			return domain.NewIndexError("upsert", namespace, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Values), i.dimension))
		}
		points = append(points, point{
			ID:     PointID(namespace, r.ID),
			Vector: r.Values,
			Payload: map[string]any{
				payloadNamespace:       namespace,
				payloadRecordID:        r.ID,
				domain.FieldDocumentID: r.Metadata.DocumentID,
				domain.FieldSourceURL:  r.Metadata.SourceURL,
				domain.FieldChunkIndex: r.Metadata.ChunkIndex,
				domain.FieldText:       r.Metadata.Text,
			},
		})
	}
	if len(points) == 0 {
		return nil
	}

	err := i.do(ctx, http.MethodPut, i.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil)
	return domain.NewIndexError("upsert", namespace, err)
}

type scoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// Search queries the collection restricted to the namespace and filter.
func (i *Index) Search(ctx context.Context, namespace string, query []float32, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if len(query) != i.dimension {
		return nil, domain.NewIndexError("search", namespace, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), i.dimension))
	}
	if topK <= 0 {
		return nil, nil
	}

	body := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
		"filter":       map[string]any{"must": conditions(namespace, filter)},
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := i.do(ctx, http.MethodPost, i.collectionPath("/points/search"), body, &resp); err != nil {
		return nil, domain.NewIndexError("search", namespace, err)
	}

	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		score := p.Score
		if i.metric == domain.MetricEuclidean {
			// Qdrant reports the distance itself for Euclid.
			score = -score
		}
		results = append(results, resultFromPayload(p.Payload, score))
	}
	return rank.Top(results, topK), nil
}

func conditions(namespace string, filter domain.Filter) []map[string]any {
	must := []map[string]any{matchCondition(payloadNamespace, namespace)}
	for field, value := range filter {
		var v any = value
		if field == domain.FieldChunkIndex {
			if n, err := strconv.Atoi(value); err == nil {
				v = n
			}
		}
		must = append(must, matchCondition(field, v))
	}
	return must
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

// resultFromPayload tolerates missing fields.
func resultFromPayload(payload map[string]any, score float64) domain.SearchResult {
	r := domain.SearchResult{ChunkIndex: -1, Score: score}
	r.RecordID, _ = payload[payloadRecordID].(string)
	r.DocumentID, _ = payload[domain.FieldDocumentID].(string)
	r.SourceURL, _ = payload[domain.FieldSourceURL].(string)
	r.Text, _ = payload[domain.FieldText].(string)
	if v, ok := payload[domain.FieldChunkIndex].(float64); ok {
		r.ChunkIndex = int(v)
	}
	return r
}

// Exists looks the point up by ID.
func (i *Index) Exists(ctx context.Context, namespace, recordID string) (bool, error) {
	err := i.do(ctx, http.MethodGet, i.collectionPath("/points/"+PointID(namespace, recordID)), nil, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errNotFound):
		return false, nil
	default:
		return false, domain.NewIndexError("exists", namespace, err)
	}
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

func (i *Index) collectionPath(suffix string) string {
	return i.url + "/collections/" + url.PathEscape(i.collection) + suffix
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
	if i.apiKey != "" {
		req.Header.Set("api-key", i.apiKey)
	}

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
		return fmt.Errorf("qdrant %s %s failed (status %d): %s", method, req.URL.Path, resp.StatusCode, string(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
