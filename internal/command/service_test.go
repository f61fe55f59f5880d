package command

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
	return db
}

func TestInitSyncEngineSeedsOnboardingAndIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := New(db, nil, nil)

	cfg := AccountConfig{ID: "me@example.com", Email: "me@example.com", Host: "imap.example.com", Port: 993, TLS: true}
	require.NoError(t, svc.InitSyncEngine(cfg))
	require.NoError(t, svc.InitSyncEngine(cfg))

	status, err := svc.GetSyncStatus(cfg.ID)
	require.NoError(t, err)
	require.Equal(t, StatePending, status.State)
	require.Equal(t, store.TaskTrustNetwork, status.CurrentTask)
}

func TestInitSyncEngineRejectsWhenReadOnly(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetReadOnlyMode(true))
	svc := New(db, nil, nil)

	err := svc.InitSyncEngine(AccountConfig{ID: "me@example.com", Email: "me@example.com", Host: "imap.example.com", Port: 993})
	require.Error(t, err)
}

func TestGetSyncStatusIdleWithoutOnboarding(t *testing.T) {
	db := newTestDB(t)
	now := int64(1000)
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, now))
	svc := New(db, nil, nil)

	status, err := svc.GetSyncStatus("me@example.com")
	require.NoError(t, err)
	require.Equal(t, StateIdle, status.State)
}

func TestGetSyncStatusSyncedOnceOnboardingDone(t *testing.T) {
	db := newTestDB(t)
	now := int64(1000)
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, now))
	require.NoError(t, db.SeedOnboardingTasks("me@example.com", now))
	for _, task := range store.OnboardingSequence {
		require.NoError(t, db.SetTaskStatus("me@example.com", task, store.TaskDone, now))
	}

	svc := New(db, nil, nil)
	status, err := svc.GetSyncStatus("me@example.com")
	require.NoError(t, err)
	require.Equal(t, StateSynced, status.State)
}

func TestResolveAccountRequiresIDWithMultipleAccounts(t *testing.T) {
	db := newTestDB(t)
	now := int64(1000)
	require.NoError(t, db.CreateAccount("a@example.com", "a@example.com", "imap.example.com", 993, true, now))
	require.NoError(t, db.CreateAccount("b@example.com", "b@example.com", "imap.example.com", 993, true, now))
	svc := New(db, nil, nil)

	_, err := svc.GetSyncStatus("")
	require.Error(t, err)
}

func TestMarkConversationReadRejectsWhenReadOnly(t *testing.T) {
	db := newTestDB(t)
	now := int64(1000)
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, now))
	require.NoError(t, db.SetReadOnlyMode(true))
	svc := New(db, nil, nil)

	err := svc.MarkConversationRead("me@example.com", "conv1")
	require.Error(t, err)
}

func TestDropAndResyncReseedsOnboarding(t *testing.T) {
	db := newTestDB(t)
	now := int64(1000)
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, now))
	require.NoError(t, db.SeedOnboardingTasks("me@example.com", now))
	for _, task := range store.OnboardingSequence {
		require.NoError(t, db.SetTaskStatus("me@example.com", task, store.TaskDone, now))
	}

	svc := New(db, nil, nil)
	require.NoError(t, svc.DropAndResync("me@example.com"))

	status, err := svc.GetSyncStatus("me@example.com")
	require.NoError(t, err)
	require.Equal(t, StatePending, status.State)
}
