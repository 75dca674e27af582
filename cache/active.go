package cache

import "sync/atomic"

// storeSlot boxes the interface so it fits an atomic.Pointer.
type storeSlot struct {
	store Store
}

var active atomic.Pointer[storeSlot]

func init() {
	active.Store(&storeSlot{store: NewMemoryStore()})
}

// Active returns the process-wide store used by memoizers built without an
// explicit store. It starts as a MemoryStore.
func Active() Store {
	return active.Load().store
}

// SetActive replaces the process-wide store. Entries of the previous store
// are not migrated. Calls already in flight keep the store they started with.
func SetActive(s Store) error {
	if s == nil {
		return ErrNilStore
	}
	active.Store(&storeSlot{store: s})
	return nil
}
