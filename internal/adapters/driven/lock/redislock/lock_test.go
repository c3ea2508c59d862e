package redislock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// fakeClient emulates SET NX and the compare-and-delete script in memory.
type fakeClient struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	err    error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeClient) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if script != releaseScript {
		return redis.NewCmdResult(nil, errors.New("unexpected script"))
	}
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	lock := New(client, time.Minute)

	release, ok, err := lock.TryAcquire(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, client.ttls[DefaultPrefix+"doc-1"])

	_, ok, err = lock.TryAcquire(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = lock.TryAcquire(ctx, "doc-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, release(ctx))
	_, ok, err = lock.TryAcquire(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLock_ReleaseKeepsForeignToken(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	lock := New(client, 0)

	release, ok, err := lock.TryAcquire(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultTTL, client.ttls[DefaultPrefix+"doc-1"])

	// Simulate expiry followed by another process taking the lock.
	client.values[DefaultPrefix+"doc-1"] = "other-token"

	require.NoError(t, release(ctx))
	assert.Equal(t, "other-token", client.values[DefaultPrefix+"doc-1"])
}

func TestLock_RedisError(t *testing.T) {
	client := newFakeClient()
	client.err = errors.New("connection refused")
	lock := New(client, time.Minute)

	_, ok, err := lock.TryAcquire(context.Background(), "doc-1")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

func TestLock_Close(t *testing.T) {
	client := newFakeClient()
	require.NoError(t, New(client, time.Minute).Close())
	assert.True(t, client.closed)
}

func TestOpen_InvalidURL(t *testing.T) {
	_, err := Open(context.Background(), domain.LockSettings{RedisURL: "http://not-redis"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
