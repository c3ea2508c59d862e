package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/embedding"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/fetch/httpfetch"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/lock/redislock"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/metrics/prom"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/storage/memory"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/storage/sqlite"
	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driving"
	"github.com/the-momentum/fhir-mcp-server/internal/core/services"
	"github.com/the-momentum/fhir-mcp-server/internal/decoders"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
	"github.com/the-momentum/fhir-mcp-server/internal/segmenters"
)

// app holds the wired pipeline and the resources it must release.
type app struct {
	ingestion driving.IngestionService
	query     driving.QueryService
	metrics   *prom.Metrics
	closers   []io.Closer
}

// newApp is replaced in tests.
var newApp = buildApp

// buildApp opens every backend named by settings and wires the services.
//
//nolint:gocyclo // Sequential wiring with cleanup on each failure
func buildApp(ctx context.Context, settings domain.Settings, dataPath string) (*app, error) {
	logger.Section("Wiring")
	a := &app{metrics: prom.New()}

	embedder, err := embedding.New(settings.Embedding, settings.Index.Dimension)
	if err != nil {
		return nil, fmt.Errorf("embedding: %w", err)
	}
	a.closers = append(a.closers, embedder)
	logger.Debug("embedding: %s model %s", settings.Embedding.Provider, settings.Embedding.Model)

	indexSettings := settings.Index
	if indexSettings.Backend == domain.IndexBackendBolt && indexSettings.Path == "" {
		indexSettings.Path = filepath.Join(dataPath, "vectors.db")
	}
	index, err := vector.Open(ctx, indexSettings)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("vector index: %w", err)
	}
	a.closers = append(a.closers, index)
	logger.Debug("index: %s namespace %s", indexSettings.Backend, indexSettings.Namespace)

	segmenter, err := segmenters.New(settings.Segmenter, embedder)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("segmenter: %w", err)
	}

	fetcher := httpfetch.New(settings.Fetch)
	a.closers = append(a.closers, fetcher)

	var ledger driven.IngestionLedger
	switch settings.Ledger.Backend {
	case domain.LedgerSQLite:
		store, err := sqlite.NewStore(dataPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ledger: %w", err)
		}
		a.closers = append(a.closers, store)
		ledger = store.IngestionLedger()
	default:
		ledger = memory.NewIngestionLedger()
	}

	opts := []services.Option{services.WithMetrics(a.metrics)}
	if settings.Lock.RedisURL != "" {
		lock, err := redislock.Open(ctx, settings.Lock)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("ingestion lock: %w", err)
		}
		a.closers = append(a.closers, lock)
		opts = append(opts, services.WithLock(lock))
		logger.Debug("lock: redis")
	}

	a.ingestion = services.NewIngestionService(
		fetcher,
		decoders.NewDefaultRegistry(),
		segmenter,
		embedder,
		index,
		ledger,
		services.IngestionConfig{
			Namespace:       settings.Index.Namespace,
			UploadBatchSize: settings.Index.UploadBatchSize,
		},
		opts...,
	)
	a.query = services.NewQueryService(
		embedder,
		index,
		services.QueryConfig{
			Namespace:   settings.Index.Namespace,
			DefaultTopK: settings.Query.TopK,
		},
		services.WithMetrics(a.metrics),
	)

	return a, nil
}

// Close releases resources in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
