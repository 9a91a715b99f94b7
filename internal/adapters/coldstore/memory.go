package coldstore

import (
	"context"
	"fmt"
	"sync"
)

// MemoryArchive implements Archive in memory. Used by tests; FailNext
// injects write failures to exercise archival retry behavior.
type MemoryArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
	fail    error
}

// NewMemoryArchive creates an empty in-memory archive.
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string][]byte)}
}

// Put implements Archive.Put. Duplicate keys keep the first body and report
// ErrObjectExists, matching the create-only semantics of the real store.
func (a *MemoryArchive) Put(ctx context.Context, key string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail != nil {
		err := a.fail
		a.fail = nil
		return fmt.Errorf("%w: %w", ErrPutFailed, err)
	}
	if _, exists := a.objects[key]; exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, key)
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	a.objects[key] = cp
	return nil
}

// FailNext makes the next Put return err.
func (a *MemoryArchive) FailNext(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

// Get returns a stored object body and whether it exists.
func (a *MemoryArchive) Get(key string) ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	body, ok := a.objects[key]
	return body, ok
}

// Keys returns all stored object keys.
func (a *MemoryArchive) Keys() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of stored objects.
func (a *MemoryArchive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.objects)
}
