package testutil

import (
	"testing"

	"github.com/nexusmail/nexusmail/internal/secure"
	"github.com/nexusmail/nexusmail/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations
// applied and a throwaway encryption key. It automatically closes the
// store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	cipher, err := secure.NewCipher("test-secret")
	if err != nil {
		t.Fatalf("creating test cipher: %v", err)
	}

	s, err := store.NewSQLiteStore(":memory:", cipher)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}
