// Package eeprom stores credentials in a byte image, the layout of the
// controller's EEPROM: slot i occupies the 3 bytes at offset 3*i, facility
// code first, then the user number big endian. Parity bits are not stored.
package eeprom

import (
	"context"
	"fmt"
	"os"
	"sync"

	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"

	"github.com/womat/debug"
)

// RecordSize is the number of bytes per slot.
const RecordSize = 3

type Store struct {
	capacity int

	mu   sync.Mutex
	file *os.File
}

// Open opens the image at path, creating it if it doesn't exist.
// A new or short image is padded with empty slots.
func Open(path string, capacity int) (*Store, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("eeprom: invalid capacity %d", capacity)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("eeprom: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("eeprom: %w", err)
	}

	size := int64(capacity * RecordSize)
	if fi.Size() < size {
		debug.InfoLog.Printf("eeprom: extending image %q from %d to %d bytes", path, fi.Size(), size)
		if err = f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("eeprom: %w", err)
		}
	}

	return &Store{capacity: capacity, file: f}, nil
}

func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) Read(_ context.Context, index int) (wiegand.Credential, error) {
	if err := storage.CheckIndex(index, s.capacity); err != nil {
		return wiegand.Credential{}, err
	}

	var b [RecordSize]byte
	s.mu.Lock()
	_, err := s.file.ReadAt(b[:], int64(index*RecordSize))
	s.mu.Unlock()
	if err != nil {
		return wiegand.Credential{}, fmt.Errorf("eeprom: read slot %d: %w", index, err)
	}

	return decode(b), nil
}

// Write stores c in slot index. Like the EEPROM it is not synced and the
// write is best effort.
func (s *Store) Write(_ context.Context, index int, c wiegand.Credential) error {
	if err := storage.CheckIndex(index, s.capacity); err != nil {
		return err
	}

	b := encode(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.WriteAt(b[:], int64(index*RecordSize)); err != nil {
		return fmt.Errorf("eeprom: write slot %d: %w", index, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		debug.ErrorLog.Printf("eeprom: sync: %v", err)
	}
	return s.file.Close()
}

func encode(c wiegand.Credential) [RecordSize]byte {
	return [RecordSize]byte{c.Facility, byte(c.User >> 8), byte(c.User)}
}

func decode(b [RecordSize]byte) wiegand.Credential {
	return wiegand.Credential{Facility: b[0], User: uint16(b[1])<<8 | uint16(b[2])}
}
