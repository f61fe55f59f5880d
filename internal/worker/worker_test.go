package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hkdb/threadline/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func TestTickNoAccountsReturnsFalse(t *testing.T) {
	db := newTestDB(t)
	w := New(db, nil, nil, nil, nil)

	require.False(t, w.tick())
}

func TestWakeIsNonBlocking(t *testing.T) {
	db := newTestDB(t)
	w := New(db, nil, nil, nil, nil)

	w.Wake()
	w.Wake() // second wakeup while the first is still pending must not block
}

func TestStartStopWithNoAccounts(t *testing.T) {
	db := newTestDB(t)
	w := New(db, nil, nil, nil, nil)

	w.Start(context.Background())

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return promptly")
	}
}
