package progress

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used when no database is configured.
// Bookmarks do not survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	bookmarks map[string]Bookmark
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookmarks: make(map[string]Bookmark)}
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, document string, lastPage int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarks[document] = Bookmark{
		Document:  document,
		LastPage:  lastPage,
		UpdatedAt: time.Now().UTC(),
	}
	return nil
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, document string) (Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookmarks[document]
	if !ok {
		return Bookmark{}, ErrNotFound
	}
	return b, nil
}

// Close implements Store.
func (s *MemoryStore) Close() {}
