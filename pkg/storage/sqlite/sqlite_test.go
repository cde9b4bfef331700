package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"dorbo/pkg/storage"
	"dorbo/pkg/storage/storagetest"
	"dorbo/pkg/wiegand"
)

func openTemp(t *testing.T, path string, capacity int) *Store {
	t.Helper()
	s, err := Open(context.Background(), path, capacity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, capacity int) storage.Store {
		return openTemp(t, filepath.Join(t.TempDir(), "dorbo.db"), capacity)
	})
}

func TestReopenKeepsCredentials(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "dorbo.db")
	c := wiegand.Credential{Facility: 7, User: 4242}

	s, err := Open(ctx, path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Write(ctx, 5, c); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// migrations are applied once, the data survives
	s = openTemp(t, path, 10)
	if got, err := s.Read(ctx, 5); err != nil || got != c {
		t.Fatalf("expected %v, got %v (%v)", c, got, err)
	}
}

func TestFind_IgnoresSlotsBeyondCapacity(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dorbo.db")
	c := wiegand.Credential{Facility: 9, User: 99}

	s, err := Open(ctx, path, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Write(ctx, 8, c)
	s.Close()

	s = openTemp(t, path, 5)
	if _, ok, err := s.Find(ctx, c); err != nil || ok {
		t.Fatalf("found credential beyond capacity (%v)", err)
	}
}

func TestWrite_CanceledContext(t *testing.T) {
	s := openTemp(t, filepath.Join(t.TempDir(), "dorbo.db"), 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Write(ctx, 0, wiegand.Credential{Facility: 1, User: 1}); err == nil {
		t.Fatalf("expected error for canceled context")
	}
}

func TestWrite_AfterClose(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "dorbo.db"), 3)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err = s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err = s.Write(ctx, 0, wiegand.Credential{Facility: 1, User: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}

	// a second Close must not panic
	s.Close()
}
