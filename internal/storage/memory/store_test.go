package memory_test

import (
	"testing"

	"github.com/fidde/codesnip/internal/storage"
	"github.com/fidde/codesnip/internal/storage/memory"
	"github.com/fidde/codesnip/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return memory.New()
	})
}
