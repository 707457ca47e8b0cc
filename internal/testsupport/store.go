package testsupport

import (
	"context"
	"testing"

	"darkroom/internal/config"
	"darkroom/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// Enqueue creates a pending archive job for tests using the provided store.
func Enqueue(t testing.TB, st *store.Store, galleryID, hash string) *store.Ticket {
	t.Helper()

	ticket, err := st.EnqueueArchiveJob(context.Background(), galleryID, hash, store.EnqueueOptions{
		MaxAttempts: 3,
	})
	if err != nil {
		t.Fatalf("store.EnqueueArchiveJob: %v", err)
	}
	return ticket
}
