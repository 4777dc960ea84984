// Package checkpoint persists pagination cursors per run and collection so
// an interrupted migration restarts where it left off. Checkpoints are
// advisory: losing one only means redoing idempotent work.
package checkpoint

import (
	"context"
	"sync"
)

type Store interface {
	Get(ctx context.Context, runID, collection string) (int, error)
	Set(ctx context.Context, runID, collection string, offset int) error
}

// Memory keeps checkpoints in process memory; the fallback when no redis
// address is configured, and the test double.
type Memory struct {
	mu      sync.Mutex
	offsets map[string]int
}

func NewMemory() *Memory {
	return &Memory{offsets: make(map[string]int)}
}

func (m *Memory) Get(_ context.Context, runID, collection string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offsets[runID+":"+collection], nil
}

func (m *Memory) Set(_ context.Context, runID, collection string, offset int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[runID+":"+collection] = offset
	return nil
}
