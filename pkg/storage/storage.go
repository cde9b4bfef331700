// Package storage is the credential store of the controller.
//
// A store is a fixed number of slots, each holding one Wiegand 26 credential.
// The empty credential (facility 0, user 0) marks a free slot.
package storage

import (
	"context"
	"errors"
	"fmt"

	"dorbo/pkg/wiegand"
)

// ErrIndexOutOfRange is returned for a slot index outside [0, Capacity).
var ErrIndexOutOfRange = errors.New("index out of range")

// Store is a fixed size array of credential slots.
type Store interface {
	// Capacity returns the number of slots.
	Capacity() int
	Read(ctx context.Context, index int) (wiegand.Credential, error)
	Write(ctx context.Context, index int, c wiegand.Credential) error
	Close() error
}

// Finder is implemented by stores with a faster lookup than a scan of all slots.
type Finder interface {
	Find(ctx context.Context, c wiegand.Credential) (int, bool, error)
}

// CheckIndex returns ErrIndexOutOfRange if index is not a slot of a store with
// the given capacity.
func CheckIndex(index, capacity int) error {
	if index < 0 || index >= capacity {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, capacity)
	}
	return nil
}

// List returns the credentials of all slots.
func List(ctx context.Context, s Store) ([]wiegand.Credential, error) {
	list := make([]wiegand.Credential, s.Capacity())
	for i := range list {
		c, err := s.Read(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("read slot %d: %w", i, err)
		}
		list[i] = c
	}
	return list, nil
}

// Clear writes the empty credential to every slot.
func Clear(ctx context.Context, s Store) error {
	for i := 0; i < s.Capacity(); i++ {
		if err := s.Write(ctx, i, wiegand.Credential{}); err != nil {
			return fmt.Errorf("clear slot %d: %w", i, err)
		}
	}
	return nil
}

// Find returns the first slot holding c.
// The empty credential marks free slots and is never found.
func Find(ctx context.Context, s Store, c wiegand.Credential) (int, bool, error) {
	if c.IsZero() {
		return 0, false, nil
	}
	if f, ok := s.(Finder); ok {
		return f.Find(ctx, c)
	}

	for i := 0; i < s.Capacity(); i++ {
		candidate, err := s.Read(ctx, i)
		if err != nil {
			return 0, false, fmt.Errorf("read slot %d: %w", i, err)
		}
		if candidate == c {
			return i, true, nil
		}
	}
	return 0, false, nil
}
