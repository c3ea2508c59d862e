// Package bolt provides a persistent embedded vector index on bbolt.
// Each namespace is a bucket of JSON-encoded records; search is brute force.
package bolt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/the-momentum/fhir-mcp-server/internal/adapters/driven/vector/rank"
	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

var (
	bucketMeta      = []byte("meta")
	keyDimension    = []byte("dimension")
	keyMetric       = []byte("metric")
	namespacePrefix = "ns:"
)

// storedRecord is the on-disk form of a vector record.
type storedRecord struct {
	Values   []float32             `json:"values"`
	Metadata domain.RecordMetadata `json:"metadata"`
}

// Index is a vector index stored in a single bbolt file.
type Index struct {
	db        *bbolt.DB
	dimension int
	score     rank.Scorer
}

// Open opens or creates the index file at path. An existing file created
// with a different dimension or metric is rejected.
func Open(path string, dimension int, metric domain.Metric) (*Index, error) {
	score, err := rank.ScorerFor(metric)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, domain.NewIndexError("open", "", fmt.Errorf("create directory: %w", err))
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, domain.NewIndexError("open", "", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return checkOrStore(b, dimension, metric)
	})
	if err != nil {
		db.Close()
		return nil, domain.NewIndexError("open", "", err)
	}

	return &Index{db: db, dimension: dimension, score: score}, nil
}

func checkOrStore(b *bbolt.Bucket, dimension int, metric domain.Metric) error {
	stored := b.Get(keyDimension)
	if stored == nil {
		if err := b.Put(keyDimension, []byte(strconv.Itoa(dimension))); err != nil {
			return err
		}
		return b.Put(keyMetric, []byte(metric))
	}

	d, err := strconv.Atoi(string(stored))
	if err != nil {
		return fmt.Errorf("corrupt dimension %q: %w", stored, err)
	}
	if d != dimension {
		return fmt.Errorf("%w: index file has %d dimensions, configured %d", domain.ErrDimensionMismatch, d, dimension)
	}
	if m := string(b.Get(keyMetric)); m != string(metric) {
		return fmt.Errorf("%w: index file uses metric %q, configured %q", domain.ErrInvalidInput, m, metric)
	}
	return nil
}

func bucketName(namespace string) []byte {
	return []byte(namespacePrefix + namespace)
}

// Upsert writes all records in one transaction.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return domain.NewIndexError("upsert", namespace, err)
	}
	for _, r := range records {
		if len(r.Values) != i.dimension {
			return domain.NewIndexError("upsert", namespace, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Values), i.dimension))
		}
	}

	err := i.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketName(namespace))
		if err != nil {
			return err
		}
		for _, r := range records {
			data, err := json.Marshal(storedRecord{Values: r.Values, Metadata: r.Metadata})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	return domain.NewIndexError("upsert", namespace, err)
}

// Search scans the namespace bucket and ranks matching records.
func (i *Index) Search(ctx context.Context, namespace string, query []float32, topK int, filter domain.Filter) ([]domain.SearchResult, error) {
	if len(query) != i.dimension {
		return nil, domain.NewIndexError("search", namespace, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), i.dimension))
	}

	var results []domain.SearchResult
	err := i.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(namespace))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r storedRecord
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("record %s: %w", k, err)
			}
			if !filter.Matches(r.Metadata) {
				return nil
			}
			results = append(results, domain.ResultFromRecord(string(k), r.Metadata, i.score(query, r.Values)))
			return nil
		})
	})
	if err != nil {
		return nil, domain.NewIndexError("search", namespace, err)
	}
	return rank.Top(results, topK), nil
}

// Exists reports whether the record key is present.
func (i *Index) Exists(ctx context.Context, namespace, recordID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewIndexError("exists", namespace, err)
	}
	var found bool
	err := i.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName(namespace))
		found = b != nil && b.Get([]byte(recordID)) != nil
		return nil
	})
	if err != nil {
		return false, domain.NewIndexError("exists", namespace, err)
	}
	return found, nil
}

// Dimension returns the vector size.
func (i *Index) Dimension() int {
	return i.dimension
}

// Close closes the database file.
func (i *Index) Close() error {
	if err := i.db.Close(); err != nil && !errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return err
	}
	return nil
}
