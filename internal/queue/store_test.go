package queue_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/quizvideo/api/internal/queue"
)

func TestStoreSetGetDelete(t *testing.T) {
	store := queue.NewStore()

	if _, ok := store.Get("missing"); ok {
		t.Error("expected miss for unknown id")
	}

	store.Set("a", queue.Queued{})
	state, ok := store.Get("a")
	if !ok {
		t.Fatal("expected record for a")
	}
	if state.Status() != queue.StatusQueued {
		t.Errorf("expected queued, got %s", state.Status())
	}

	store.Set("a", queue.InProgress{Progress: 0.5})
	state, _ = store.Get("a")
	if state.Status() != queue.StatusInProgress {
		t.Errorf("expected in-progress after replace, got %s", state.Status())
	}

	store.Delete("a")
	if _, ok := store.Get("a"); ok {
		t.Error("expected record to be gone after delete")
	}
	// Deleting twice is safe
	store.Delete("a")
}

func TestStoreListInsertionOrder(t *testing.T) {
	store := queue.NewStore()
	store.Set("a", queue.Queued{})
	store.Set("b", queue.Queued{})
	store.Set("c", queue.Queued{})
	store.Delete("b")

	entries := store.List()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != "a" || entries[1].ID != "c" {
		t.Errorf("expected [a c], got [%s %s]", entries[0].ID, entries[1].ID)
	}

	// Replacing a record keeps its slot; re-adding a deleted id appends.
	store.Set("a", queue.Failed{})
	store.Set("b", queue.Queued{})
	entries = store.List()
	if entries[0].ID != "a" || entries[1].ID != "c" || entries[2].ID != "b" {
		t.Errorf("unexpected order: %v", entries)
	}
}

func TestStoreReplace(t *testing.T) {
	store := queue.NewStore()

	if _, ok := store.Replace("missing", func(prev queue.State) queue.State {
		return queue.InProgress{}
	}); ok {
		t.Error("Replace must not create records for unknown ids")
	}
	if _, ok := store.Get("missing"); ok {
		t.Error("Replace on unknown id must leave the store untouched")
	}

	store.Set("a", queue.Queued{})
	prev, ok := store.Replace("a", func(prev queue.State) queue.State {
		return queue.InProgress{Input: prev.(queue.Queued).Input}
	})
	if !ok {
		t.Fatal("expected replace to succeed")
	}
	if prev.Status() != queue.StatusQueued {
		t.Errorf("expected previous record to be queued, got %s", prev.Status())
	}
	state, _ := store.Get("a")
	if state.Status() != queue.StatusInProgress {
		t.Errorf("expected in-progress, got %s", state.Status())
	}
}

func TestStoreUpdate(t *testing.T) {
	store := queue.NewStore()

	if _, ok := store.Update("missing", func(prev queue.State) queue.State {
		return nil
	}); ok {
		t.Error("Update must not act on unknown ids")
	}

	store.Set("a", queue.Queued{})
	store.Set("b", queue.Queued{})

	// Returning the previous record leaves the store untouched.
	store.Update("a", func(prev queue.State) queue.State { return prev })
	if state, _ := store.Get("a"); state.Status() != queue.StatusQueued {
		t.Errorf("expected queued, got %s", state.Status())
	}

	// Returning a new record installs it in place.
	prev, ok := store.Update("a", func(prev queue.State) queue.State {
		return queue.InProgress{Input: prev.(queue.Queued).Input}
	})
	if !ok || prev.Status() != queue.StatusQueued {
		t.Fatalf("expected takeover from queued, got %v %v", prev, ok)
	}
	if state, _ := store.Get("a"); state.Status() != queue.StatusInProgress {
		t.Errorf("expected in-progress, got %s", state.Status())
	}

	// Returning nil deletes the record and frees its slot.
	if _, ok := store.Update("b", func(prev queue.State) queue.State {
		return nil
	}); !ok {
		t.Fatal("expected delete-update to report the record")
	}
	if _, ok := store.Get("b"); ok {
		t.Error("expected record to be gone after delete-update")
	}
	entries := store.List()
	if len(entries) != 1 || entries[0].ID != "a" {
		t.Errorf("unexpected entries after delete-update: %v", entries)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := queue.NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := fmt.Sprintf("job-%d-%d", n, j)
				store.Set(id, queue.Queued{})
				store.Get(id)
				store.List()
			}
		}(i)
	}
	wg.Wait()

	if got := len(store.List()); got != 800 {
		t.Errorf("expected 800 records, got %d", got)
	}
}
