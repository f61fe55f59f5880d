package steadystate

import (
	"fmt"
	"sort"
	"time"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/ingest"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/pipeline"
	"github.com/hkdb/threadline/internal/store"
)

// reseedBatchSize caps one tick's worth of fetching for a folder that was
// just reset by a UIDVALIDITY change — steady state has no historical_fetch
// pass to lean on, so it rebuilds its own baseline a bounded batch at a
// time, same as every other task in the tick loop.
const reseedBatchSize = 500

// RunIncrementalSync fetches every new message across every synced folder
// that historical_fetch has already reached (spec.md §4.9). Unlike
// onboarding's historical_fetch, there's no artificial per-tick batch cap
// on a folder's new-mail tail: SEARCH UID highest_uid+1:* is normally small
// between ticks. The exception is a folder just reset by a UIDVALIDITY
// change (highest_uid back at 0): that one rebuilds its baseline in capped
// batches like any other bounded unit of work.
func RunIncrementalSync(credStore *credentials.Store, db *store.DB, accountID string, emitter events.Emitter) error {
	log := logging.WithComponent("steadystate.incremental_sync")
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	folders, err := db.ListFolderSync(accountID)
	if err != nil {
		return err
	}

	var anyNew bool
	var c *conn
	defer func() {
		if c != nil {
			c.close()
		}
	}()

	for _, folder := range folders {
		if folder.SyncStatus == store.FolderPending {
			continue
		}

		if c == nil {
			c, err = connect(credStore, db, accountID)
			if err != nil {
				return err
			}
		}

		status, err := c.sess.Select(folder.Folder)
		if err != nil {
			log.Warn().Err(err).Str("folder", folder.Folder).Msg("select failed, skipping folder this tick")
			continue
		}
		if folder.UIDValidity != 0 && status.UIDValidity != folder.UIDValidity {
			log.Warn().Str("account_id", accountID).Str("folder", folder.Folder).
				Msg("UIDVALIDITY changed, resetting folder and cached messages")
			if err := db.ResetFolderForUIDValidityChange(accountID, folder.Folder, status.UIDValidity, time.Now().UnixMilli()); err != nil {
				return err
			}
			continue
		}
		if folder.UIDValidity == 0 {
			if err := db.SetUIDValidity(accountID, folder.Folder, status.UIDValidity); err != nil {
				return err
			}
		}

		uids, err := c.sess.SearchUIDsAfter(folder.HighestUID)
		if err != nil {
			return fmt.Errorf("search %s after %d: %w", folder.Folder, folder.HighestUID, err)
		}
		if len(uids) == 0 {
			continue
		}
		if folder.HighestUID == 0 {
			sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
			if len(uids) > reseedBatchSize {
				uids = uids[:reseedBatchSize]
			}
		}

		result, err := ingest.Batch(c.sess, db, accountID, folder.Folder, uids, c.selfEmails)
		if err != nil {
			return fmt.Errorf("ingest incremental batch for %s: %w", folder.Folder, err)
		}
		if result.MaxUID > folder.HighestUID {
			if err := db.AdvanceHighestUID(accountID, folder.Folder, result.MaxUID, time.Now().UnixMilli()); err != nil {
				return err
			}
		}

		log.Debug().Str("account_id", accountID).Str("folder", folder.Folder).
			Int("count", result.Inserted).Msg("incremental_sync batch ingested")
		anyNew = true
	}

	if anyNew {
		if _, err := pipeline.ProcessChanges(db, accountID, emitter); err != nil {
			return err
		}
	}
	return nil
}
