// Package storagetest checks that a storage.Store behaves like a fixed array of
// credential slots.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"dorbo/pkg/storage"
	"dorbo/pkg/wiegand"
)

// Open returns a new, empty store of the given capacity.
type Open func(t *testing.T, capacity int) storage.Store

// Run runs the store tests against the stores returned by open.
func Run(t *testing.T, open Open) {
	t.Run("empty", func(t *testing.T) { testEmpty(t, open) })
	t.Run("read write", func(t *testing.T) { testReadWrite(t, open) })
	t.Run("out of range", func(t *testing.T) { testOutOfRange(t, open) })
	t.Run("clear", func(t *testing.T) { testClear(t, open) })
	t.Run("find", func(t *testing.T) { testFind(t, open) })
}

func testEmpty(t *testing.T, open Open) {
	s := open(t, 5)
	if s.Capacity() != 5 {
		t.Fatalf("expected capacity 5, got %d", s.Capacity())
	}

	list, err := storage.List(context.Background(), s)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i, c := range list {
		if !c.IsZero() {
			t.Fatalf("slot %d of a new store holds %v", i, c)
		}
	}
}

func testReadWrite(t *testing.T, open Open) {
	ctx := context.Background()
	s := open(t, 100)

	want := map[int]wiegand.Credential{
		0:  {Facility: 103, User: 26441},
		3:  {Facility: 255, User: 65535},
		42: {Facility: 0, User: 1},
		99: {Facility: 1, User: 0},
	}
	for i, c := range want {
		if err := s.Write(ctx, i, c); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}

	// overwrite
	if err := s.Write(ctx, 3, wiegand.Credential{Facility: 44, User: 12312}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want[3] = wiegand.Credential{Facility: 44, User: 12312}

	for i := 0; i < s.Capacity(); i++ {
		got, err := s.Read(ctx, i)
		if err != nil {
			t.Fatalf("Read(%d): %v", i, err)
		}
		if got != want[i] {
			t.Fatalf("slot %d: expected %v, got %v", i, want[i], got)
		}
	}
}

func testOutOfRange(t *testing.T, open Open) {
	ctx := context.Background()
	s := open(t, 3)

	for _, i := range []int{-1, 3, 1000} {
		if _, err := s.Read(ctx, i); !errors.Is(err, storage.ErrIndexOutOfRange) {
			t.Errorf("Read(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
		if err := s.Write(ctx, i, wiegand.Credential{Facility: 1, User: 1}); !errors.Is(err, storage.ErrIndexOutOfRange) {
			t.Errorf("Write(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
}

func testClear(t *testing.T, open Open) {
	ctx := context.Background()
	s := open(t, 10)

	for i := 0; i < 10; i++ {
		if err := s.Write(ctx, i, wiegand.Credential{Facility: uint8(i), User: uint16(1000 + i)}); err != nil {
			t.Fatalf("Write(%d): %v", i, err)
		}
	}
	if err := storage.Clear(ctx, s); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	list, err := storage.List(ctx, s)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i, c := range list {
		if !c.IsZero() {
			t.Fatalf("slot %d not cleared: %v", i, c)
		}
	}
}

func testFind(t *testing.T, open Open) {
	ctx := context.Background()
	s := open(t, 10)

	c := wiegand.Credential{Facility: 103, User: 26441}
	s.Write(ctx, 7, c)
	s.Write(ctx, 4, c)
	s.Write(ctx, 2, wiegand.Credential{Facility: 103, User: 26442})

	i, ok, err := storage.Find(ctx, s, c)
	if err != nil || !ok || i != 4 {
		t.Fatalf("expected slot 4, got %d %v %v", i, ok, err)
	}

	if _, ok, _ := storage.Find(ctx, s, wiegand.Credential{Facility: 104, User: 26441}); ok {
		t.Fatalf("found a credential that is not stored")
	}

	// free slots hold the empty credential, it must never grant access
	if _, ok, _ := storage.Find(ctx, s, wiegand.Credential{}); ok {
		t.Fatalf("empty credential found")
	}
}
