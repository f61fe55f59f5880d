package actionqueue

import (
	"fmt"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/syncerr"
)

// conn is a short-lived IMAP session opened for one action, dropped
// immediately after — spec.md §5: "IMAP sessions are not pooled across
// tasks, each task opens its own session and drops it when finished."
type conn struct {
	sess *imapadapter.Session
}

func connect(credStore *credentials.Store, accountID string) (*conn, error) {
	creds, err := credStore.Resolve(accountID)
	if err != nil {
		return nil, fmt.Errorf("resolve credentials: %w", err)
	}
	sess, err := imapadapter.Dial(*creds)
	if err != nil {
		return nil, syncerr.New(syncerr.KindNetwork, "actionqueue.connect", err)
	}
	return &conn{sess: sess}, nil
}

func (c *conn) close() {
	c.sess.Close()
}
