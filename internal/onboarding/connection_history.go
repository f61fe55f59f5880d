package onboarding

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/ingest"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/pipeline"
	"github.com/hkdb/threadline/internal/store"
)

// connectionHistoryBatchSize matches historical_fetch's per-batch UID cap.
const connectionHistoryBatchSize = 200

// historyPair is one (address, folder) unit of connection_history's work
// list, recomputed fresh every tick from the current connections set.
type historyPair struct {
	address string
	folder  string
}

// RunConnectionHistory runs one bounded batch of connection_history: walks
// every (address, folder) pair for conversations classified "connections",
// searching and ingesting back-history with no date bound (spec.md §4.8),
// resuming from the task's cursor position. Returns true when every pair
// has been tried and none produced new UIDs to fetch.
func RunConnectionHistory(credStore *credentials.Store, db *store.DB, accountID string) (bool, error) {
	log := logging.WithComponent("onboarding.connection_history")

	task, err := db.GetTask(accountID, store.TaskConnectionHistory)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, fmt.Errorf("connection_history: task not seeded for account %s", accountID)
	}

	pairs, err := connectionHistoryWorkList(db, accountID)
	if err != nil {
		return false, err
	}
	if len(pairs) == 0 {
		if err := db.SetTaskStatus(accountID, store.TaskConnectionHistory, store.TaskDone, time.Now().UnixMilli()); err != nil {
			return false, err
		}
		return true, nil
	}

	c, err := connect(credStore, db, accountID)
	if err != nil {
		return false, err
	}
	defer c.close()

	now := time.Now().UnixMilli()
	start := parseCursorUID(task.Cursor)
	pos := int(start)
	if pos >= len(pairs) {
		pos = 0
	}

	for i := pos; i < len(pairs); i++ {
		pair := pairs[i]

		if _, err := c.sess.Select(pair.folder); err != nil {
			log.Warn().Err(err).Str("folder", pair.folder).Msg("select failed, skipping folder for this pair")
			continue
		}

		uids, err := c.sess.SearchConnectionHistory(pair.address)
		if err != nil {
			return false, fmt.Errorf("search connection history for %s in %s: %w", pair.address, pair.folder, err)
		}

		uids, err = filterUnknownUIDs(db, accountID, pair.folder, uids)
		if err != nil {
			return false, err
		}
		if len(uids) == 0 {
			continue
		}

		sort.Slice(uids, func(a, b int) bool { return uids[a] < uids[b] })
		if len(uids) > connectionHistoryBatchSize {
			uids = uids[:connectionHistoryBatchSize]
		}

		result, err := ingest.Batch(c.sess, db, accountID, pair.folder, uids, c.selfEmails)
		if err != nil {
			return false, fmt.Errorf("ingest connection history batch: %w", err)
		}

		nextPos := i
		if len(uids) < connectionHistoryBatchSize {
			nextPos = i + 1
		}
		if err := db.SetTaskCursor(accountID, store.TaskConnectionHistory, strconv.Itoa(nextPos), now); err != nil {
			return false, err
		}

		log.Debug().Str("account_id", accountID).Str("address", pair.address).Str("folder", pair.folder).
			Int("count", result.Inserted).Msg("connection_history batch ingested")

		if _, err := pipeline.ProcessChanges(db, accountID, nil); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := db.SetTaskStatus(accountID, store.TaskConnectionHistory, store.TaskDone, now); err != nil {
		return false, err
	}
	return true, nil
}

// connectionHistoryWorkList builds the (address, folder) product: every
// non-self address appearing in a "connections"-classified conversation,
// crossed with every folder this account has a sync cursor for.
func connectionHistoryWorkList(db *store.DB, accountID string) ([]historyPair, error) {
	conversations, err := db.ListConversations(accountID, store.ClassConnections)
	if err != nil {
		return nil, fmt.Errorf("list connections conversations: %w", err)
	}
	seen := make(map[string]struct{})
	var addresses []string
	for _, conv := range conversations {
		for _, addr := range strings.Split(conv.ParticipantKey, "\n") {
			if addr == "" || addr == "__self__" {
				continue
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			addresses = append(addresses, addr)
		}
	}
	sort.Strings(addresses)

	folderRows, err := db.ListFolderSync(accountID)
	if err != nil {
		return nil, fmt.Errorf("list folder sync: %w", err)
	}
	folders := make([]string, 0, len(folderRows))
	for _, f := range folderRows {
		folders = append(folders, f.Folder)
	}
	sort.Strings(folders)

	pairs := make([]historyPair, 0, len(addresses)*len(folders))
	for _, addr := range addresses {
		for _, folder := range folders {
			pairs = append(pairs, historyPair{address: addr, folder: folder})
		}
	}
	return pairs, nil
}

// filterUnknownUIDs drops UIDs already cached locally for (account, folder).
func filterUnknownUIDs(db *store.DB, accountID, folder string, uids []uint32) ([]uint32, error) {
	out := make([]uint32, 0, len(uids))
	for _, uid := range uids {
		exists, err := db.MessageExistsByUID(accountID, folder, uid)
		if err != nil {
			return nil, err
		}
		if !exists {
			out = append(out, uid)
		}
	}
	return out, nil
}
