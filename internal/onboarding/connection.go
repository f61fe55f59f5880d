// Package onboarding implements the three fixed onboarding tasks (spec.md
// §4.8) that run once per account before it graduates to steady state:
// trust_network, historical_fetch, connection_history.
package onboarding

import (
	"fmt"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/store"
	"github.com/hkdb/threadline/internal/syncerr"
)

// conn bundles an open IMAP session with the account's self-address list,
// the shared connection setup every onboarding task starts with.
type conn struct {
	sess       *imapadapter.Session
	selfEmails []string
}

// connect loads credentials, decrypts the password, opens the IMAP
// session, and loads the self-address list (the account's own email plus
// any entity already trusted at the user/alias level).
func connect(credStore *credentials.Store, db *store.DB, accountID string) (*conn, error) {
	creds, err := credStore.Resolve(accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	sess, err := imapadapter.Dial(*creds)
	if err != nil {
		return nil, syncerr.New(syncerr.KindNetwork, "onboarding.connect", err)
	}

	selfEntities, err := db.ListEntitiesByTrust(accountID, store.TrustUser, store.TrustAlias)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("load self emails: %w", err)
	}
	selfEmails := make([]string, 0, len(selfEntities)+1)
	selfEmails = append(selfEmails, creds.Email)
	for _, e := range selfEntities {
		selfEmails = append(selfEmails, e.Email)
	}

	return &conn{sess: sess, selfEmails: selfEmails}, nil
}

func (c *conn) close() {
	c.sess.Close()
}
