package steadystate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hkdb/threadline/internal/store"
	"github.com/rs/zerolog"
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

type fakeClassifier struct {
	verdict bool
	calls   int
}

func (f *fakeClassifier) Classify(context.Context, string, string, string) (bool, error) {
	f.calls++
	return f.verdict, nil
}

func TestModifiersAllowExcludeNewsletters(t *testing.T) {
	db := newTestDB(t)
	newsletter := "newsletter"
	m := &store.Message{AccountID: "me@example.com", FromAddress: "a@b.com", Classification: &newsletter}
	allow, err := modifiersAllow(db, m, &store.SkillModifiers{ExcludeNewsletters: true})
	require.NoError(t, err)
	require.False(t, allow)
}

func TestModifiersAllowHasAttachments(t *testing.T) {
	db := newTestDB(t)
	m := &store.Message{AccountID: "me@example.com", FromAddress: "a@b.com", HasAttachments: false}
	allow, err := modifiersAllow(db, m, &store.SkillModifiers{HasAttachments: true})
	require.NoError(t, err)
	require.False(t, allow)
}

func TestModifiersAllowRecentSixMonths(t *testing.T) {
	db := newTestDB(t)
	old := time.Now().Add(-365 * 24 * time.Hour).UnixMilli()
	m := &store.Message{AccountID: "me@example.com", FromAddress: "a@b.com", Date: old}
	allow, err := modifiersAllow(db, m, &store.SkillModifiers{RecentSixMonths: true})
	require.NoError(t, err)
	require.False(t, allow)
}

func TestModifiersAllowOnlyKnownSendersRequiresEntity(t *testing.T) {
	db := newTestDB(t)
	m := &store.Message{AccountID: "me@example.com", FromAddress: "stranger@example.com"}
	allow, err := modifiersAllow(db, m, &store.SkillModifiers{OnlyKnownSenders: true})
	require.NoError(t, err)
	require.False(t, allow)

	now := time.Now().UnixMilli()
	require.NoError(t, db.UpsertEntity(&store.Entity{
		AccountID: "me@example.com", Email: "stranger@example.com",
		TrustLevel: store.TrustContact, Source: store.SourceManual, FirstSeen: now,
	}))
	allow, err = modifiersAllow(db, m, &store.SkillModifiers{OnlyKnownSenders: true})
	require.NoError(t, err)
	require.True(t, allow)
}

func TestRunSkillBatchMatchesAndAdvancesCursor(t *testing.T) {
	db := newTestDB(t)
	insertMessage(t, db, &store.Message{
		ID: "m1", AccountID: "me@example.com", UID: 1, Folder: "INBOX",
		Date: time.Now().UnixMilli(), FromAddress: "alice@example.com", FetchedAt: 1000,
	})
	insertMessage(t, db, &store.Message{
		ID: "m2", AccountID: "me@example.com", UID: 2, Folder: "INBOX",
		Date: time.Now().UnixMilli(), FromAddress: "bob@example.com", FetchedAt: 1000,
	})
	require.NoError(t, db.UpsertFolderSync("me@example.com", "INBOX"))

	skill := &store.Skill{ID: "s1", AccountID: "me@example.com", Name: "vip", Prompt: "is this urgent?", Modifiers: "{}", Model: "gpt"}
	require.NoError(t, db.CreateSkill(skill))

	clf := &fakeClassifier{verdict: true}
	log := zerolog.Nop()
	require.NoError(t, runSkillBatch(db, "me@example.com", skill, []string{"INBOX"}, clf, log))
	require.Equal(t, 2, clf.calls)

	matches, err := db.MessagesMatchingSkill(skill.ID)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	cursor, err := db.GetSkillCursor(skill.ID, "INBOX")
	require.NoError(t, err)
	require.NotNil(t, cursor)
	require.EqualValues(t, 2, cursor.HighestClassifiedUID)
}

func TestRunSkillBatchResetsOnRevisionChange(t *testing.T) {
	db := newTestDB(t)
	skill := &store.Skill{ID: "s1", AccountID: "me@example.com", Name: "vip", Prompt: "v1", Modifiers: "{}", Model: "gpt"}
	require.NoError(t, db.CreateSkill(skill))
	require.NoError(t, db.ResetSkillCursor(skill.ID, "INBOX", "stale-revision"))
	require.NoError(t, db.RecordSkillMatch(skill.ID, "old-message", time.Now().UnixMilli()))

	log := zerolog.Nop()
	require.NoError(t, runSkillBatch(db, "me@example.com", skill, []string{"INBOX"}, &fakeClassifier{}, log))

	matches, err := db.MessagesMatchingSkill(skill.ID)
	require.NoError(t, err)
	require.Empty(t, matches)

	cursor, err := db.GetSkillCursor(skill.ID, "INBOX")
	require.NoError(t, err)
	wantRev := store.ComputeSkillRevision(skill.Prompt, skill.Modifiers, skill.Model)
	require.NotNil(t, cursor)
	require.Equal(t, wantRev, cursor.SkillRev)
}
