package memory

import (
	"testing"

	"dorbo/pkg/storage"
	"dorbo/pkg/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T, capacity int) storage.Store {
		return New(capacity)
	})
}
