package carddavimport

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/hkdb/threadline/internal/store"
	"github.com/stretchr/testify/require"
)

const sampleVCard = "BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:Jane Doe\r\n" +
	"EMAIL:Jane.Doe@Example.com\r\n" +
	"EMAIL:jane@work.example.com\r\n" +
	"END:VCARD\r\n" +
	"BEGIN:VCARD\r\n" +
	"VERSION:3.0\r\n" +
	"FN:No Email Person\r\n" +
	"END:VCARD\r\n"

func TestDecodeExtractsNamesAndLowercasesEmails(t *testing.T) {
	contacts, err := Decode(strings.NewReader(sampleVCard))
	require.NoError(t, err)
	require.Len(t, contacts, 1)

	c := contacts[0]
	require.Equal(t, "Jane Doe", c.Name)
	require.Len(t, c.Emails, 2)
	require.Equal(t, "jane.doe@example.com", c.Emails[0])
}

func TestImportUpsertsOneEntityPerEmailAtContactTrust(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())
	require.NoError(t, db.CreateAccount("me@example.com", "me@example.com", "imap.example.com", 993, true, 1000))

	contacts, err := Decode(strings.NewReader(sampleVCard))
	require.NoError(t, err)

	count, err := Import(db, "me@example.com", contacts, 1000)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	entity, err := db.GetEntity("me@example.com", "jane.doe@example.com")
	require.NoError(t, err)
	require.NotNil(t, entity)
	require.Equal(t, store.TrustContact, entity.TrustLevel)
	require.Equal(t, store.SourceCardDAVImport, entity.Source)
}
