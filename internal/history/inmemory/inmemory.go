package inmemory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/askdb/internal/history"
)

const maxEntries = 1000

type Store struct {
	mu      sync.RWMutex
	entries []history.Entry // newest first
}

func New() *Store {
	return &Store{}
}

func (s *Store) Add(_ context.Context, e history.Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append([]history.Entry{e}, s.entries...)
	if len(s.entries) > maxEntries {
		s.entries = s.entries[:maxEntries]
	}
	return nil
}

func (s *Store) Recent(_ context.Context, limit int) ([]history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]history.Entry, limit)
	copy(out, s.entries[:limit])
	return out, nil
}
