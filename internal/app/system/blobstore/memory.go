package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-process Store. The exported switches inject failures so
// callers can exercise their best-effort and all-or-nothing paths.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	failPuts    bool
	failDeletes bool
	unreachable bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

// FailPuts makes every subsequent Put fail.
func (m *Memory) FailPuts(v bool) {
	m.mu.Lock()
	m.failPuts = v
	m.mu.Unlock()
}

// FailDeletes makes every subsequent Delete fail.
func (m *Memory) FailDeletes(v bool) {
	m.mu.Lock()
	m.failDeletes = v
	m.mu.Unlock()
}

// Unreachable makes reads fail as if the backend could not be contacted.
func (m *Memory) Unreachable(v bool) {
	m.mu.Lock()
	m.unreachable = v
	m.mu.Unlock()
}

// Remove drops a blob behind the caller's back, simulating an object deleted
// directly in storage.
func (m *Memory) Remove(key string) {
	m.mu.Lock()
	delete(m.blobs, key)
	m.mu.Unlock()
}

// Ping fails while the store is marked unreachable.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return fmt.Errorf("%w: unreachable", ErrStorage)
	}
	return nil
}

// Len returns the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

func (m *Memory) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: read upload: %v", ErrStorage, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPuts {
		return fmt.Errorf("%w: put %q rejected", ErrStorage, key)
	}
	m.blobs[key] = data
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return nil, fmt.Errorf("%w: backend unreachable", ErrStorage)
	}
	data, ok := m.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDeletes {
		return fmt.Errorf("%w: delete %q rejected", ErrStorage, key)
	}
	delete(m.blobs, key)
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.unreachable {
		return false
	}
	_, ok := m.blobs[key]
	return ok
}
