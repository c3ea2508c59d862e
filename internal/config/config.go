// Package config resolves pipeline settings from built-in defaults, the
// persisted config store and FHIR_MCP_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// EnvPrefix prefixes environment overrides. "index.namespace" is read from
// FHIR_MCP_INDEX_NAMESPACE.
const EnvPrefix = "FHIR_MCP"

// Configuration keys.
const (
	KeyEmbeddingProvider  = "embedding.provider"
	KeyEmbeddingModel     = "embedding.model"
	KeyEmbeddingBaseURL   = "embedding.base_url"
	KeyEmbeddingAPIKey    = "embedding.api_key"
	KeyEmbeddingBatchSize = "embedding.batch_size"
	KeyEmbeddingTimeout   = "embedding.timeout"

	KeyIndexBackend         = "index.backend"
	KeyIndexName            = "index.name"
	KeyIndexNamespace       = "index.namespace"
	KeyIndexDimension       = "index.dimension"
	KeyIndexMetric          = "index.metric"
	KeyIndexCloud           = "index.cloud"
	KeyIndexRegion          = "index.region"
	KeyIndexURL             = "index.url"
	KeyIndexAPIKey          = "index.api_key"
	KeyIndexPath            = "index.path"
	KeyIndexUploadBatchSize = "index.upload_batch_size"
	KeyIndexTimeout         = "index.timeout"

	KeySegmenterStrategy   = "segmenter.strategy"
	KeySegmenterChunkSize  = "segmenter.chunk_size"
	KeySegmenterOverlap    = "segmenter.chunk_overlap"
	KeySegmenterPercentile = "segmenter.breakpoint_percentile"
	KeySegmenterBufferSize = "segmenter.buffer_size"

	KeyQueryTopK = "query.top_k"

	KeyFetchTimeout      = "fetch.timeout"
	KeyFetchMaxBytes     = "fetch.max_bytes"
	KeyFetchRateLimit    = "fetch.rate_limit"
	KeyFetchBurst        = "fetch.burst"
	KeyFetchAuthBaseURL  = "fetch.auth_base_url"
	KeyFetchTokenURL     = "fetch.token_url"
	KeyFetchClientID     = "fetch.client_id"
	KeyFetchClientSecret = "fetch.client_secret"

	KeyLedgerBackend = "ledger.backend"
	KeyLedgerDataDir = "ledger.data_dir"

	KeyLockRedisURL = "lock.redis_url"
	KeyLockTTL      = "lock.ttl"
)

// Defaults returns the default value of every known key.
func Defaults() map[string]any {
	d := domain.DefaultSettings()
	return map[string]any{
		KeyEmbeddingProvider:  string(d.Embedding.Provider),
		KeyEmbeddingModel:     d.Embedding.Model,
		KeyEmbeddingBaseURL:   d.Embedding.BaseURL,
		KeyEmbeddingAPIKey:    d.Embedding.APIKey,
		KeyEmbeddingBatchSize: d.Embedding.BatchSize,
		KeyEmbeddingTimeout:   d.Embedding.Timeout,

		KeyIndexBackend:         string(d.Index.Backend),
		KeyIndexName:            d.Index.Name,
		KeyIndexNamespace:       d.Index.Namespace,
		KeyIndexDimension:       d.Index.Dimension,
		KeyIndexMetric:          string(d.Index.Metric),
		KeyIndexCloud:           d.Index.Cloud,
		KeyIndexRegion:          d.Index.Region,
		KeyIndexURL:             d.Index.URL,
		KeyIndexAPIKey:          d.Index.APIKey,
		KeyIndexPath:            d.Index.Path,
		KeyIndexUploadBatchSize: d.Index.UploadBatchSize,
		KeyIndexTimeout:         d.Index.Timeout,

		KeySegmenterStrategy:   string(d.Segmenter.Strategy),
		KeySegmenterChunkSize:  d.Segmenter.ChunkSize,
		KeySegmenterOverlap:    d.Segmenter.ChunkOverlap,
		KeySegmenterPercentile: d.Segmenter.BreakpointPercentile,
		KeySegmenterBufferSize: d.Segmenter.BufferSize,

		KeyQueryTopK: d.Query.TopK,

		KeyFetchTimeout:      d.Fetch.Timeout,
		KeyFetchMaxBytes:     d.Fetch.MaxBytes,
		KeyFetchRateLimit:    d.Fetch.RateLimit,
		KeyFetchBurst:        d.Fetch.Burst,
		KeyFetchAuthBaseURL:  d.Fetch.AuthBaseURL,
		KeyFetchTokenURL:     d.Fetch.TokenURL,
		KeyFetchClientID:     d.Fetch.ClientID,
		KeyFetchClientSecret: d.Fetch.ClientSecret,

		KeyLedgerBackend: string(d.Ledger.Backend),
		KeyLedgerDataDir: d.Ledger.DataDir,

		KeyLockRedisURL: d.Lock.RedisURL,
		KeyLockTTL:      d.Lock.TTL,
	}
}

// KnownKeys returns every configuration key in sorted order.
func KnownKeys() []string {
	defaults := Defaults()
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsKnown reports whether key is a configuration key.
func IsKnown(key string) bool {
	_, ok := Defaults()[key]
	return ok
}

// IsSecret reports whether the key holds a credential that should be masked.
func IsSecret(key string) bool {
	return strings.HasSuffix(key, "api_key") || strings.HasSuffix(key, "secret") || key == KeyLockRedisURL
}

// EnvName returns the environment variable that overrides key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// LoadDotEnv loads environment variables from .env files without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
		logger.Debug("Loaded environment from %s", p)
	}
	return nil
}

// newViper layers defaults, store values and the environment.
func newViper(store driven.ConfigStore) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	if store != nil {
		stored := make(map[string]any)
		for _, k := range store.Keys() {
			if !IsKnown(k) {
				logger.Warn("Ignoring unknown config key %q in %s", k, store.Path())
				continue
			}
			val, _ := store.Get(k)
			section, name, _ := strings.Cut(k, ".")
			table, ok := stored[section].(map[string]any)
			if !ok {
				table = make(map[string]any)
				stored[section] = table
			}
			table[name] = val
		}
		if err := v.MergeConfigMap(stored); err != nil {
			return nil, fmt.Errorf("merge %s: %w", store.Path(), err)
		}
	}
	return v, nil
}

// Load resolves and validates the settings. store may be nil.
func Load(store driven.ConfigStore) (domain.Settings, error) {
	v, err := newViper(store)
	if err != nil {
		return domain.Settings{}, err
	}

	s := domain.Settings{
		Embedding: domain.EmbeddingSettings{
			Provider:  domain.AIProvider(strings.ToLower(v.GetString(KeyEmbeddingProvider))),
			Model:     v.GetString(KeyEmbeddingModel),
			BaseURL:   v.GetString(KeyEmbeddingBaseURL),
			APIKey:    v.GetString(KeyEmbeddingAPIKey),
			BatchSize: v.GetInt(KeyEmbeddingBatchSize),
			Timeout:   v.GetDuration(KeyEmbeddingTimeout),
		},
		Index: domain.VectorIndexSettings{
			Backend:         domain.IndexBackend(strings.ToLower(v.GetString(KeyIndexBackend))),
			Name:            v.GetString(KeyIndexName),
			Namespace:       v.GetString(KeyIndexNamespace),
			Dimension:       v.GetInt(KeyIndexDimension),
			Metric:          domain.Metric(strings.ToLower(v.GetString(KeyIndexMetric))),
			Cloud:           v.GetString(KeyIndexCloud),
			Region:          v.GetString(KeyIndexRegion),
			URL:             v.GetString(KeyIndexURL),
			APIKey:          v.GetString(KeyIndexAPIKey),
			Path:            v.GetString(KeyIndexPath),
			UploadBatchSize: v.GetInt(KeyIndexUploadBatchSize),
			Timeout:         v.GetDuration(KeyIndexTimeout),
		},
		Segmenter: domain.SegmenterSettings{
			Strategy:             domain.SegmentStrategy(strings.ToLower(v.GetString(KeySegmenterStrategy))),
			ChunkSize:            v.GetInt(KeySegmenterChunkSize),
			ChunkOverlap:         v.GetInt(KeySegmenterOverlap),
			BreakpointPercentile: v.GetFloat64(KeySegmenterPercentile),
			BufferSize:           v.GetInt(KeySegmenterBufferSize),
		},
		Query: domain.QuerySettings{
			TopK: v.GetInt(KeyQueryTopK),
		},
		Fetch: domain.FetchSettings{
			Timeout:      v.GetDuration(KeyFetchTimeout),
			MaxBytes:     v.GetInt64(KeyFetchMaxBytes),
			RateLimit:    v.GetFloat64(KeyFetchRateLimit),
			Burst:        v.GetInt(KeyFetchBurst),
			AuthBaseURL:  v.GetString(KeyFetchAuthBaseURL),
			TokenURL:     v.GetString(KeyFetchTokenURL),
			ClientID:     v.GetString(KeyFetchClientID),
			ClientSecret: v.GetString(KeyFetchClientSecret),
		},
		Ledger: domain.LedgerSettings{
			Backend: domain.LedgerBackend(strings.ToLower(v.GetString(KeyLedgerBackend))),
			DataDir: v.GetString(KeyLedgerDataDir),
		},
		Lock: domain.LockSettings{
			RedisURL: v.GetString(KeyLockRedisURL),
			TTL:      v.GetDuration(KeyLockTTL),
		},
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// Value returns the effective value of key as a string.
func Value(store driven.ConfigStore, key string) (string, error) {
	if !IsKnown(key) {
		return "", fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	v, err := newViper(store)
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// ParseValue converts a command-line string to the type of key's default,
// so the stored TOML keeps integers and floats as numbers. Durations are
// validated and stored as strings such as "30s".
func ParseValue(key, raw string) (any, error) {
	def, ok := Defaults()[key]
	if !ok {
		return nil, fmt.Errorf("%w: unknown config key %q", domain.ErrInvalidInput, key)
	}
	raw = strings.TrimSpace(raw)

	switch def.(type) {
	case int, int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be an integer", domain.ErrInvalidInput, key)
		}
		return n, nil
	case float64:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
		}
		return f, nil
	case time.Duration:
		if _, err := time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("%w: %s must be a duration such as 30s", domain.ErrInvalidInput, key)
		}
		return raw, nil
	default:
		return raw, nil
	}
}
