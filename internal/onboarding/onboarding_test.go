package onboarding

import (
	"path/filepath"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/hkdb/threadline/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *store.DB {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, 1000))
	return db
}

func TestRecipientAddressesExcludesSelfAndDedups(t *testing.T) {
	env := &imap.Envelope{
		To: []imap.Address{
			{Mailbox: "alice", Host: "example.com"},
			{Mailbox: "me", Host: "example.com"},
		},
		Cc: []imap.Address{
			{Mailbox: "alice", Host: "example.com"},
			{Mailbox: "bob", Host: "example.com"},
		},
	}
	got := recipientAddresses(env, []string{"me@example.com"})
	require.ElementsMatch(t, []string{"alice@example.com", "bob@example.com"}, got)
}

func TestRecipientAddressesNilEnvelope(t *testing.T) {
	require.Nil(t, recipientAddresses(nil, nil))
}

func TestConnectionHistoryWorkListCrossesAddressesAndFolders(t *testing.T) {
	db := newTestDB(t)

	conv := &store.Conversation{
		ID: "c1", AccountID: "me@example.com",
		ParticipantKey: "alice@example.com\nbob@example.com",
		Classification: store.ClassConnections,
		TotalCount:     1,
	}
	require.NoError(t, db.ReplaceConversations("me@example.com", []*store.Conversation{conv}))
	require.NoError(t, db.UpsertFolderSync("me@example.com", "INBOX"))
	require.NoError(t, db.UpsertFolderSync("me@example.com", "Archive"))

	pairs, err := connectionHistoryWorkList(db, "me@example.com")
	require.NoError(t, err)
	require.Len(t, pairs, 4)
}

func TestConnectionHistoryWorkListEmptyWithNoConnections(t *testing.T) {
	db := newTestDB(t)
	pairs, err := connectionHistoryWorkList(db, "me@example.com")
	require.NoError(t, err)
	require.Empty(t, pairs)
}

func TestFilterUnknownUIDsSkipsCachedMessages(t *testing.T) {
	db := newTestDB(t)
	msg := &store.Message{
		AccountID: "me@example.com", Folder: "INBOX", UID: 42,
		ToAddresses: "[]", CcAddresses: "[]", BccAddresses: "[]",
		ReferencesIDs: "[]", IMAPFlags: "[]",
	}
	require.NoError(t, db.UpsertMessage(msg))

	got, err := filterUnknownUIDs(db, "me@example.com", "INBOX", []uint32{42, 43})
	require.NoError(t, err)
	require.Equal(t, []uint32{43}, got)
}
