// Package redislock provides a cross-process ingestion lock on redis.
//
// A lock is a key set with SET NX PX holding a random token. Release deletes
// the key only while it still holds that token, so an expired lock taken
// over by another process is never removed by the previous holder.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
	"github.com/the-momentum/fhir-mcp-server/internal/core/ports/driven"
	"github.com/the-momentum/fhir-mcp-server/internal/logger"
)

// Ensure Lock implements the interface.
var _ driven.IngestionLock = (*Lock)(nil)

// DefaultTTL bounds how long a crashed holder blocks other processes.
const DefaultTTL = 10 * time.Minute

// DefaultPrefix is prepended to document IDs to form lock keys.
const DefaultPrefix = "fhir-mcp:ingest:"

const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Client is the subset of redis commands the lock needs.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// Lock is a redis-backed driven.IngestionLock.
type Lock struct {
	client Client
	ttl    time.Duration
	prefix string
}

// New creates a lock on an existing client.
func New(client Client, ttl time.Duration) *Lock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lock{client: client, ttl: ttl, prefix: DefaultPrefix}
}

// Open connects to the redis server at settings.RedisURL.
func Open(ctx context.Context, settings domain.LockSettings) (*Lock, error) {
	opts, err := redis.ParseURL(settings.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %w", domain.ErrInvalidInput, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	logger.Debug("Ingestion lock using redis at %s", opts.Addr)
	return New(client, settings.TTL), nil
}

// TryAcquire takes the lock for documentID without waiting.
func (l *Lock) TryAcquire(ctx context.Context, documentID string) (func(context.Context) error, bool, error) {
	key := l.prefix + documentID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis set %s: %w", key, err)
	}
	if !ok {
		logger.Debug("Ingestion lock %s held by another process", key)
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("redis release %s: %w", key, err)
		}
		if n == 0 {
			logger.Warn("Ingestion lock %s expired before release", key)
		}
		return nil
	}
	return release, true, nil
}

// Close closes the redis client.
func (l *Lock) Close() error {
	return l.client.Close()
}
