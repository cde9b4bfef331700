package eeprom

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"dorbo/pkg/storage"
	"dorbo/pkg/storage/storagetest"
	"dorbo/pkg/wiegand"
)

func openTemp(t *testing.T, capacity int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "eeprom.bin"), capacity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, capacity int) storage.Store {
		return openTemp(t, capacity)
	})
}

func TestImageLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	s, err := Open(path, 4)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Write(context.Background(), 1, wiegand.Credential{Facility: 103, User: 26441})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// 26441 = 0x6749
	want := []byte{0, 0, 0, 103, 0x67, 0x49, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected image % x", b)
	}
}

func TestReopenKeepsCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")
	ctx := context.Background()
	c := wiegand.Credential{Facility: 44, User: 12312}

	s, err := Open(path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Write(ctx, 9, c)
	s.Close()

	// a larger capacity extends the image with empty slots
	s, err = Open(path, 20)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if got, _ := s.Read(ctx, 9); got != c {
		t.Fatalf("expected %v, got %v", c, got)
	}
	if got, _ := s.Read(ctx, 19); !got.IsZero() {
		t.Fatalf("extended slot not empty: %v", got)
	}
}

func TestOpen_InvalidCapacity(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "eeprom.bin"), 0); err == nil {
		t.Fatalf("expected error for capacity 0")
	}
}
