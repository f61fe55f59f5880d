package actionqueue

import (
	"path/filepath"
	"testing"

	"github.com/hkdb/threadline/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, 1000))
	return db
}

func TestRunNextSkipsWhenReadOnly(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetReadOnlyMode(true))
	require.NoError(t, db.EnqueueAction(&store.ActionQueueEntry{
		AccountID: "me@example.com", ActionType: store.ActionAddFlags, Payload: "{}", MaxRetries: 3, CreatedAt: 1,
	}))

	d := New(db, nil, nil)
	ran, err := d.RunNext("me@example.com")
	require.NoError(t, err)
	require.False(t, ran)

	action, err := db.NextPendingAction("me@example.com")
	require.NoError(t, err)
	require.NotNil(t, action)
}

func TestRunNextSkipsWhenOnboardingOpen(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SeedOnboardingTasks("me@example.com", 1))
	require.NoError(t, db.EnqueueAction(&store.ActionQueueEntry{
		AccountID: "me@example.com", ActionType: store.ActionAddFlags, Payload: "{}", MaxRetries: 3, CreatedAt: 1,
	}))

	d := New(db, nil, nil)
	ran, err := d.RunNext("me@example.com")
	require.NoError(t, err)
	require.False(t, ran)
}

func TestRunNextNoopWhenQueueEmpty(t *testing.T) {
	db := newTestDB(t)

	d := New(db, nil, nil)
	ran, err := d.RunNext("me@example.com")
	require.NoError(t, err)
	require.False(t, ran)
}

func TestExecuteUnknownActionTypeFails(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.EnqueueAction(&store.ActionQueueEntry{
		AccountID: "me@example.com", ActionType: "bogus", Payload: "{}", MaxRetries: 1, CreatedAt: 1,
	}))

	d := New(db, nil, nil)
	ran, err := d.RunNext("me@example.com")
	require.NoError(t, err)
	require.True(t, ran)

	failed, err := db.ListActionsByStatus("me@example.com", store.ActionFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}
