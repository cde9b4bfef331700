// Package memory is a volatile credential store.
package memory

import (
	"context"
	"sync"

	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"
)

type Store struct {
	mu    sync.RWMutex
	slots []wiegand.Credential
}

// New returns a store of capacity empty slots.
func New(capacity int) *Store {
	return &Store{slots: make([]wiegand.Credential, capacity)}
}

func (s *Store) Capacity() int {
	return len(s.slots)
}

func (s *Store) Read(_ context.Context, index int) (wiegand.Credential, error) {
	if err := storage.CheckIndex(index, len(s.slots)); err != nil {
		return wiegand.Credential{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[index], nil
}

func (s *Store) Write(_ context.Context, index int, c wiegand.Credential) error {
	if err := storage.CheckIndex(index, len(s.slots)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[index] = c
	return nil
}

func (s *Store) Close() error { return nil }
