// Package steadystate implements the three per-tick steady-state tasks
// (spec.md §4.9) that run for every onboarded account once it has no
// pending onboarding work: incremental_sync, flag_resync, skill_classify.
package steadystate

import (
	"fmt"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/store"
	"github.com/hkdb/threadline/internal/syncerr"
)

type conn struct {
	sess       *imapadapter.Session
	selfEmails []string
}

func connect(credStore *credentials.Store, db *store.DB, accountID string) (*conn, error) {
	creds, err := credStore.Resolve(accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}

	sess, err := imapadapter.Dial(*creds)
	if err != nil {
		return nil, syncerr.New(syncerr.KindNetwork, "steadystate.connect", err)
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
