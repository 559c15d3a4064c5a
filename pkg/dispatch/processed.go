package dispatch

import (
	"container/list"
	"sync"
)

// DefaultProcessedCapacity bounds the processed-message set.
const DefaultProcessedCapacity = 1000

// ProcessedSet remembers recently dispatched message keys. It is a FIFO
// set: once full, the oldest key is evicted.
type ProcessedSet struct {
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	mu       sync.Mutex
}

// NewProcessedSet creates a set holding at most capacity keys.
func NewProcessedSet(capacity int) *ProcessedSet {
	if capacity <= 0 {
		capacity = DefaultProcessedCapacity
	}
	return &ProcessedSet{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity+1),
	}
}

// Key builds the dedup key of a message.
func Key(chat, id string) string {
	return chat + "_" + id
}

// Add inserts key and reports whether it was new. A repeated key does not
// refresh its position.
func (s *ProcessedSet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; exists {
		return false
	}

	s.entries[key] = s.order.PushBack(key)
	if s.order.Len() > s.capacity {
		oldest := s.order.Front()
		s.order.Remove(oldest)
		delete(s.entries, oldest.Value.(string))
	}
	return true
}

// Contains reports whether key is present.
func (s *ProcessedSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.entries[key]
	return exists
}

// Len returns the number of keys held.
func (s *ProcessedSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// Capacity returns the maximum number of keys.
func (s *ProcessedSet) Capacity() int {
	return s.capacity
}
