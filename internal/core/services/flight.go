package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/the-momentum/fhir-mcp-server/internal/core/domain"
)

// flightCall is an in-flight ingestion. done is closed once res and err are set.
type flightCall struct {
	done    chan struct{}
	res     *domain.IngestResult
	err     error
	waiters int
}

// flightGroup coalesces concurrent ingestions of the same document.
// A key absent from calls is idle; a present key is in flight. Once the
// work finishes the key is removed, so later calls start a fresh run.
type flightGroup struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

func newFlightGroup() *flightGroup {
	return &flightGroup{calls: make(map[string]*flightCall)}
}

// do runs fn for key unless a run is already in flight, in which case the
// caller waits for that run's result and shared is true. fn runs on its own
// goroutine and always completes; a caller whose ctx ends stops waiting
// and receives ctx.Err().
func (g *flightGroup) do(
	ctx context.Context, key string, fn func() (*domain.IngestResult, error),
) (res *domain.IngestResult, shared bool, err error) {
	g.mu.Lock()
	c, ok := g.calls[key]
	if ok {
		c.waiters++
	} else {
		c = &flightCall{done: make(chan struct{})}
		g.calls[key] = c
		go g.run(key, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
		return c.res, ok, c.err
	case <-ctx.Done():
		return nil, ok, ctx.Err()
	}
}

func (g *flightGroup) run(key string, c *flightCall, fn func() (*domain.IngestResult, error)) {
	defer func() {
		if r := recover(); r != nil {
			c.res, c.err = nil, fmt.Errorf("ingestion of %q panicked: %v", key, r)
		}
		g.mu.Lock()
		delete(g.calls, key)
		g.mu.Unlock()
		close(c.done)
	}()
	c.res, c.err = fn()
}

// inFlight reports whether key currently has a running ingestion.
func (g *flightGroup) inFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.calls[key]
	return ok
}

// waiting returns the number of callers that joined the in-flight run for key.
func (g *flightGroup) waiting(key string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.calls[key]; ok {
		return c.waiters
	}
	return 0
}
