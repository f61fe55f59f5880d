package conversation

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

func insertMessage(t *testing.T, db *store.DB, m *store.Message) {
	t.Helper()
	if m.ToAddresses == "" {
		m.ToAddresses = "[]"
	}
	if m.CcAddresses == "" {
		m.CcAddresses = "[]"
	}
	if m.BccAddresses == "" {
		m.BccAddresses = "[]"
	}
	if m.ReferencesIDs == "" {
		m.ReferencesIDs = "[]"
	}
	if m.IMAPFlags == "" {
		m.IMAPFlags = "[]"
	}
	require.NoError(t, db.UpsertMessage(m))
}

func TestRebuildGroupsReplyChainIntoOneConversation(t *testing.T) {
	db := newTestDB(t)

	insertMessage(t, db, &store.Message{
		ID: "m1", AccountID: "me@example.com", MessageID: "<1@x>", UID: 1, Folder: "INBOX",
		Date: 1000, FromAddress: "alice@example.com", ToAddresses: `["me@example.com"]`,
		Subject: strPtr("Hi"), FetchedAt: 1000,
	})
	insertMessage(t, db, &store.Message{
		ID: "m2", AccountID: "me@example.com", MessageID: "<2@x>", UID: 2, Folder: "INBOX",
		Date: 2000, FromAddress: "me@example.com", ToAddresses: `["alice@example.com"]`,
		Subject: strPtr("Re: Hi"), InReplyTo: strPtr("<1@x>"), FetchedAt: 2000,
	})

	n, err := Rebuild(db, "me@example.com")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	m1, err := db.GetMessage("m1")
	require.NoError(t, err)
	m2, err := db.GetMessage("m2")
	require.NoError(t, err)
	require.NotNil(t, m1.ThreadID)
	require.NotNil(t, m2.ThreadID)
	require.Equal(t, *m1.ThreadID, *m2.ThreadID)
	require.Equal(t, m1.ConversationID, m2.ConversationID)

	conv, err := db.GetConversation("me@example.com", m1.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Equal(t, 2, conv.TotalCount)
	require.EqualValues(t, 2000, conv.LastMessageDate)
}

func TestRebuildSeparatesUnrelatedMessagesIntoDistinctConversations(t *testing.T) {
	db := newTestDB(t)

	insertMessage(t, db, &store.Message{
		ID: "m1", AccountID: "me@example.com", MessageID: "<1@x>", UID: 1, Folder: "INBOX",
		Date: 1000, FromAddress: "alice@example.com", FetchedAt: 1000,
	})
	insertMessage(t, db, &store.Message{
		ID: "m2", AccountID: "me@example.com", MessageID: "<2@x>", UID: 2, Folder: "INBOX",
		Date: 2000, FromAddress: "bob@example.com", FetchedAt: 2000,
	})

	n, err := Rebuild(db, "me@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestRebuildMarksUnreadCountFromSeenFlag(t *testing.T) {
	db := newTestDB(t)

	insertMessage(t, db, &store.Message{
		ID: "m1", AccountID: "me@example.com", MessageID: "<1@x>", UID: 1, Folder: "INBOX",
		Date: 1000, FromAddress: "alice@example.com", IMAPFlags: `["\\Seen"]`, FetchedAt: 1000,
	})
	insertMessage(t, db, &store.Message{
		ID: "m2", AccountID: "me@example.com", MessageID: "<2@x>", UID: 2, Folder: "INBOX",
		Date: 2000, FromAddress: "alice@example.com", FetchedAt: 2000,
	})

	_, err := Rebuild(db, "me@example.com")
	require.NoError(t, err)

	m2, err := db.GetMessage("m2")
	require.NoError(t, err)
	conv, err := db.GetConversation("me@example.com", m2.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.Equal(t, 1, conv.UnreadCount)
}

func TestRebuildMarksIsImportantFromAnyMessage(t *testing.T) {
	db := newTestDB(t)

	insertMessage(t, db, &store.Message{
		ID: "m1", AccountID: "me@example.com", MessageID: "<1@x>", UID: 1, Folder: "INBOX",
		Date: 1000, FromAddress: "alice@example.com", FetchedAt: 1000,
	})
	insertMessage(t, db, &store.Message{
		ID: "m2", AccountID: "me@example.com", MessageID: "<2@x>", UID: 2, Folder: "INBOX",
		Date: 2000, FromAddress: "alice@example.com", IsImportant: true, FetchedAt: 2000,
	})

	_, err := Rebuild(db, "me@example.com")
	require.NoError(t, err)

	m1, err := db.GetMessage("m1")
	require.NoError(t, err)
	conv, err := db.GetConversation("me@example.com", m1.ConversationID)
	require.NoError(t, err)
	require.NotNil(t, conv)
	require.True(t, conv.IsImportant)
}

func TestRebuildWithNoMessagesClearsConversations(t *testing.T) {
	db := newTestDB(t)

	n, err := Rebuild(db, "me@example.com")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestAssignThreadsComputesParticipantChangeDiff(t *testing.T) {
	messages := []*store.Message{
		{ID: "m1", MessageID: "<1@x>", Date: 1000, FromAddress: "alice@example.com", ToAddresses: `["me@example.com"]`},
		{ID: "m2", MessageID: "<2@x>", Date: 2000, FromAddress: "alice@example.com", ToAddresses: `["me@example.com","carol@example.com"]`, InReplyTo: strPtr("<1@x>")},
	}
	assignments, err := assignThreads(messages, []string{"me@example.com"})
	require.NoError(t, err)
	require.Nil(t, assignments["m1"].participantChanges)

	second := assignments["m2"].participantChanges
	require.NotNil(t, second)
	require.Contains(t, *second, "carol@example.com")
}

func strPtr(s string) *string { return &s }
