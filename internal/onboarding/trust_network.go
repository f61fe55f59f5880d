package onboarding

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/pipeline"
	"github.com/hkdb/threadline/internal/store"
)

// sentRecipientBatchSize is the "up to 500 UIDs" trust_network fetches per
// tick, per spec.md §4.8.
const sentRecipientBatchSize = 500

// RunTrustNetwork runs one bounded batch of the trust_network task: on the
// first tick it seeds the self entity, then every tick fetches the next
// batch of Sent UIDs above the stored cursor and upserts recipients as
// connection entities. Returns true if the task completed (no more UIDs).
func RunTrustNetwork(credStore *credentials.Store, db *store.DB, accountID string) (bool, error) {
	log := logging.WithComponent("onboarding.trust_network")

	task, err := db.GetTask(accountID, store.TaskTrustNetwork)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, fmt.Errorf("trust_network: task not seeded for account %s", accountID)
	}

	c, err := connect(credStore, db, accountID)
	if err != nil {
		return false, err
	}
	defer c.close()

	now := time.Now().UnixMilli()

	if task.Cursor == "" {
		if err := seedSelfEntity(db, accountID, now); err != nil {
			return false, err
		}
	}

	folders, err := c.sess.ListFolders(context.Background())
	if err != nil {
		return false, fmt.Errorf("list folders: %w", err)
	}
	sentFolder := imapadapter.FindSentFolder(folders)
	if sentFolder == "" {
		log.Warn().Str("account_id", accountID).Msg("no Sent folder found, trust_network has nothing to scan")
		if err := db.SetTaskStatus(accountID, store.TaskTrustNetwork, store.TaskDone, now); err != nil {
			return false, err
		}
		return true, nil
	}

	if _, err := c.sess.Select(sentFolder); err != nil {
		return false, fmt.Errorf("select sent folder: %w", err)
	}

	cursor := parseCursorUID(task.Cursor)
	uids, err := c.sess.SearchUIDsAfter(cursor)
	if err != nil {
		return false, fmt.Errorf("search sent uids: %w", err)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > sentRecipientBatchSize {
		uids = uids[:sentRecipientBatchSize]
	}

	if len(uids) == 0 {
		if err := db.SetTaskStatus(accountID, store.TaskTrustNetwork, store.TaskDone, now); err != nil {
			return false, err
		}
		if _, err := pipeline.ProcessChanges(db, accountID, nil); err != nil {
			return false, err
		}
		return true, nil
	}

	raws, err := c.sess.FetchEnvelopes(uids)
	if err != nil {
		return false, fmt.Errorf("fetch sent envelopes: %w", err)
	}

	var maxUID uint32
	for _, rm := range raws {
		if rm.UID > maxUID {
			maxUID = rm.UID
		}
		for _, addr := range recipientAddresses(rm.Envelope, c.selfEmails) {
			e := &store.Entity{
				AccountID:  accountID,
				Email:      addr,
				TrustLevel: store.TrustConnection,
				Source:     store.SourceSentScan,
				FirstSeen:  now,
				LastSeen:   &now,
				SentCount:  1,
			}
			if err := db.UpsertEntity(e); err != nil {
				return false, fmt.Errorf("upsert connection entity: %w", err)
			}
		}
	}

	if maxUID > 0 {
		if err := db.SetTaskCursor(accountID, store.TaskTrustNetwork, strconv.FormatUint(uint64(maxUID), 10), now); err != nil {
			return false, err
		}
	}

	log.Debug().Str("account_id", accountID).Int("count", len(raws)).Msg("trust_network batch processed")
	return false, nil
}

func seedSelfEntity(db *store.DB, accountID string, now int64) error {
	return db.UpsertEntity(&store.Entity{
		AccountID:  accountID,
		Email:      accountID,
		TrustLevel: store.TrustUser,
		Source:     store.SourceSelf,
		FirstSeen:  now,
		LastSeen:   &now,
		SentCount:  0,
	})
}

func parseCursorUID(cursor string) uint32 {
	if cursor == "" {
		return 0
	}
	n, err := strconv.ParseUint(cursor, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

// recipientAddresses extracts To+Cc addresses from an envelope, excluding
// self, lowercased and deduplicated.
func recipientAddresses(env *imap.Envelope, selfEmails []string) []string {
	if env == nil {
		return nil
	}
	self := make(map[string]struct{}, len(selfEmails))
	for _, e := range selfEmails {
		self[strings.ToLower(e)] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(addrs []imap.Address) {
		for _, a := range addrs {
			addr := strings.ToLower(strings.TrimSpace(a.Mailbox + "@" + a.Host))
			if addr == "@" || addr == "" {
				continue
			}
			if _, isSelf := self[addr]; isSelf {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}
	add(env.To)
	add(env.Cc)
	return out
}
