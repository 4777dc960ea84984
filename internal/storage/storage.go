// Package storage is the object-storage contract for binary attachments
// referenced by orders and HR documents: list by prefix, download, upload
// with content type, delete by path.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type Object struct {
	Path        string
	Data        []byte
	ContentType string
}

type Store interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Download(ctx context.Context, path string) (Object, error)
	Upload(ctx context.Context, obj Object) error
	Delete(ctx context.Context, path string) error
}

// Memory is the in-process implementation used by tests. FailPaths makes
// named paths fail on download, for exercising partial-failure handling.
type Memory struct {
	mu        sync.Mutex
	objects   map[string]Object
	FailPaths map[string]bool
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	paths := make([]string, 0, len(m.objects))
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *Memory) Download(_ context.Context, path string) (Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPaths[path] {
		return Object{}, fmt.Errorf("download %s: injected failure", path)
	}
	obj, ok := m.objects[path]
	if !ok {
		return Object{}, fmt.Errorf("download %s: not found", path)
	}
	return obj, nil
}

func (m *Memory) Upload(_ context.Context, obj Object) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[obj.Path] = obj
	return nil
}

func (m *Memory) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}
