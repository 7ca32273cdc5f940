package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process maps. It backs tests and
// lets the service run without Redis at reduced durability.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	sets   map[string]map[string]struct{}
	queues map[string][]string
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: make(map[string]memoryEntry),
		sets:   make(map[string]map[string]struct{}),
		queues: make(map[string][]string),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}
	s.mu.Lock()
	s.values[key] = memoryEntry{data: data, expiresAt: time.Now().Add(effectiveTTL(ttl))}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string, dest any) (bool, error) {
	s.mu.RLock()
	entry, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.values, key)
		s.mu.Unlock()
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dest); err != nil {
		return false, fmt.Errorf("unmarshal value for %s: %w", key, err)
	}
	return true, nil
}

func (s *MemoryStore) PutBytes(_ context.Context, key string, value []byte, ttl time.Duration) error {
	copied := make([]byte, len(value))
	copy(copied, value)
	s.mu.Lock()
	s.values[key] = memoryEntry{data: copied, expiresAt: time.Now().Add(effectiveTTL(ttl))}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func (s *MemoryStore) AddToSet(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveFromSet(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.sets[key]; ok {
		delete(set, member)
	}
	return nil
}

func (s *MemoryStore) InSet(_ context.Context, key, member string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sets[key][member]
	return ok, nil
}

func (s *MemoryStore) SetCard(_ context.Context, key string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[key]), nil
}

func (s *MemoryStore) PushQueue(_ context.Context, key, member string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[key] = append(s.queues[key], member)
	return len(s.queues[key]), nil
}

func (s *MemoryStore) PopQueue(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[key]
	if len(queue) == 0 {
		return "", false, nil
	}
	head := queue[0]
	s.queues[key] = queue[1:]
	return head, true, nil
}

func (s *MemoryStore) RemoveFromQueue(_ context.Context, key, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.queues[key]
	filtered := queue[:0]
	for _, m := range queue {
		if m != member {
			filtered = append(filtered, m)
		}
	}
	s.queues[key] = filtered
	return nil
}

func (s *MemoryStore) QueueList(_ context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	queue := s.queues[key]
	copied := make([]string, len(queue))
	copy(copied, queue)
	return copied, nil
}
