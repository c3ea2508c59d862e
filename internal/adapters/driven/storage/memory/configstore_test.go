package memory

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore(t *testing.T) {
	store := NewConfigStore()
	require.NotNil(t, store)
	assert.Empty(t, store.Keys())
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Load())

	seeded := NewConfigStore(map[string]any{"index.namespace": "fhir-papers"})
	assert.Equal(t, "fhir-papers", seeded.GetString("index.namespace"))
}

func TestConfigStore_SetGetUnset(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("key1", "original"))
	require.NoError(t, store.Set("key1", "updated"))

	val, ok := store.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "updated", val)

	require.NoError(t, store.Unset("key1"))
	_, ok = store.Get("key1")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":     "value",
		"int":     42,
		"int64":   int64(7),
		"float":   95.5,
		"wrongly": true,
	})

	tests := []struct {
		key       string
		wantStr   string
		wantInt   int
		wantFloat float64
	}{
		{"str", "value", 0, 0},
		{"int", "", 42, 42},
		{"int64", "", 7, 7},
		{"float", "", 95, 95.5},
		{"wrongly", "", 0, 0},
		{"missing", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.wantStr, store.GetString(tt.key))
			assert.Equal(t, tt.wantInt, store.GetInt(tt.key))
			assert.Equal(t, tt.wantFloat, store.GetFloat(tt.key))
		})
	}
}

func TestConfigStore_KeysSorted(t *testing.T) {
	store := NewConfigStore(map[string]any{"b.x": 1, "a.y": 2, "c": 3})
	assert.Equal(t, []string{"a.y", "b.x", "c"}, store.Keys())
}

func TestConfigStore_ConcurrentAccess(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("k", i)
			store.GetInt("k")
			store.Keys()
		}()
	}
	wg.Wait()
}
