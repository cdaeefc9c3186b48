package memory

import (
	"context"
	"sync"

	"github.com/NordCoder/pingboard/internal/domain/snapshot"
)

var _ snapshot.Store = (*Store)(nil)

// Store keeps values in process memory; nothing survives a restart.
type Store struct {
	mu sync.RWMutex
	kv map[string][]byte
}

func New() *Store { return &Store{kv: make(map[string][]byte)} }

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.kv[key]
	if !ok {
		return nil, snapshot.ErrEmpty
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.kv[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.kv, key)
	s.mu.Unlock()
	return nil
}

func (s *Store) Close() error { return nil }
