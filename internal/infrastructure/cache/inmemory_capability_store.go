package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/erpcore/internal/domain/integration"
)

// entry represents cached capabilities with expiration
type entry struct {
	caps      integration.Capabilities
	expiresAt time.Time
}

// InMemoryCapabilityStore implements CapabilityStore using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryCapabilityStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryCapabilityStore creates a new in-memory capability store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryCapabilityStore() *InMemoryCapabilityStore {
	return newInMemoryCapabilityStore(time.Now, 5*time.Minute)
}

func newInMemoryCapabilityStore(now func() time.Time, cleanupEvery time.Duration) *InMemoryCapabilityStore {
	store := &InMemoryCapabilityStore{
		entries:  make(map[string]entry),
		now:      now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop(cleanupEvery)

	return store
}

// Get returns the cached capabilities or ErrCacheMiss
func (s *InMemoryCapabilityStore) Get(_ context.Context, key string) (integration.Capabilities, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return integration.Capabilities{}, ErrCacheMiss
	}
	return cloneCapabilities(e.caps), nil
}

// Set stores capabilities with a TTL. A non-positive TTL uses DefaultCapabilityTTL.
func (s *InMemoryCapabilityStore) Set(_ context.Context, key string, caps integration.Capabilities, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{caps: cloneCapabilities(caps), expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete removes an entry; deleting an absent key is not an error
func (s *InMemoryCapabilityStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemoryCapabilityStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryCapabilityStore) cleanupLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes expired entries from the store
func (s *InMemoryCapabilityStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryCapabilityStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func cloneCapabilities(c integration.Capabilities) integration.Capabilities {
	c.AuthTypes = append([]integration.AuthType(nil), c.AuthTypes...)
	return c
}

// Ensure InMemoryCapabilityStore implements CapabilityStore
var _ CapabilityStore = (*InMemoryCapabilityStore)(nil)
