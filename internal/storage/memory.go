package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

type memObject struct {
	data    []byte
	version uint64
}

// Memory is a process-local backend. Tokens are per-object version numbers.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
	clock   uint64
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Name() string {
	return "memory"
}

func (m *Memory) List(ctx context.Context, prefix string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for key := range m.objects {
		name, isFolder, ok := childOf(prefix, key)
		if !ok {
			continue
		}
		seen[name] = seen[name] || isFolder
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{name, seen[name]})
	}
	return entries, nil
}

func (m *Memory) Read(ctx context.Context, path string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return Blob{}, err
	}
	path, err := cleanPath(path)
	if err != nil {
		return Blob{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[path]
	if !ok {
		return Blob{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return Blob{data, strconv.FormatUint(obj.version, 10)}, nil
}

func (m *Memory) Write(ctx context.Context, path string, data []byte, mode WriteMode, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, exists := m.objects[path]
	switch mode {
	case CreateOnly:
		if exists {
			return fmt.Errorf("%s: %w", path, ErrConflict)
		}
	case UpdateOnly:
		if !exists {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		if token != "" && token != strconv.FormatUint(obj.version, 10) {
			return fmt.Errorf("%s: stale token: %w", path, ErrConflict)
		}
	default:
		return fmt.Errorf("unknown write mode %d", mode)
	}
	m.clock++
	stored := make([]byte, len(data))
	copy(stored, data)
	m.objects[path] = memObject{stored, m.clock}
	return nil
}

func (m *Memory) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := cleanPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; !ok {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	delete(m.objects, path)
	return nil
}
