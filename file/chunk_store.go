package file

import "sync"

// ChunkStore retains the exact encoded payload sent for each chunk index so a
// replay puts identical bytes on the wire.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[int]string
}

// NewChunkStore creates an empty store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{chunks: make(map[int]string)}
}

// Put records the payload for index, replacing any earlier one.
func (s *ChunkStore) Put(index int, payload string) {
	s.mu.Lock()
	s.chunks[index] = payload
	s.mu.Unlock()
}

// Get returns the payload retained for index.
func (s *ChunkStore) Get(index int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	payload, ok := s.chunks[index]
	return payload, ok
}

// Len returns the number of retained chunks.
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Clear drops every retained chunk.
func (s *ChunkStore) Clear() {
	s.mu.Lock()
	s.chunks = make(map[int]string)
	s.mu.Unlock()
}
