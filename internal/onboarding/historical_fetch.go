package onboarding

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/ingest"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/pipeline"
	"github.com/hkdb/threadline/internal/store"
)

// historicalBatchSize is the "up to 200 UIDs" historical_fetch fetches per
// folder per tick, per spec.md §4.8.
const historicalBatchSize = 200

// historicalLookback is the 365-day SEARCH SINCE window historical_fetch
// bounds its backfill to.
const historicalLookback = 365 * 24 * time.Hour

const seededMarker = "seeded"

// RunHistoricalFetch runs one bounded batch of historical_fetch: on first
// tick it discovers and seeds a folder cursor per sync candidate, then each
// tick advances the oldest-last-synced in-progress folder by one batch.
// Returns true when every folder has reached "done".
func RunHistoricalFetch(credStore *credentials.Store, db *store.DB, accountID string, emitOK bool) (bool, error) {
	log := logging.WithComponent("onboarding.historical_fetch")

	task, err := db.GetTask(accountID, store.TaskHistoricalFetch)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, fmt.Errorf("historical_fetch: task not seeded for account %s", accountID)
	}

	c, err := connect(credStore, db, accountID)
	if err != nil {
		return false, err
	}
	defer c.close()

	now := time.Now().UnixMilli()

	if task.Cursor == "" {
		if err := seedHistoricalFolders(c, db, accountID, now); err != nil {
			return false, err
		}
		if err := db.SetTaskCursor(accountID, store.TaskHistoricalFetch, seededMarker, now); err != nil {
			return false, err
		}
	}

	inProgress, err := db.ListFoldersByStatus(accountID, store.FolderInProgress)
	if err != nil {
		return false, err
	}
	if len(inProgress) == 0 {
		if err := db.SetTaskStatus(accountID, store.TaskHistoricalFetch, store.TaskDone, now); err != nil {
			return false, err
		}
		return true, nil
	}

	folder := inProgress[0]
	status, err := c.sess.Select(folder.Folder)
	if err != nil {
		return false, fmt.Errorf("select %s: %w", folder.Folder, err)
	}
	if folder.UIDValidity != 0 && status.UIDValidity != folder.UIDValidity {
		log.Warn().Str("account_id", accountID).Str("folder", folder.Folder).
			Msg("UIDVALIDITY changed, resetting folder and cached messages")
		if err := db.ResetFolderForUIDValidityChange(accountID, folder.Folder, status.UIDValidity, now); err != nil {
			return false, err
		}
		return false, nil
	}
	if folder.UIDValidity == 0 {
		if err := db.SetUIDValidity(accountID, folder.Folder, status.UIDValidity); err != nil {
			return false, err
		}
	}

	since := time.Now().Add(-historicalLookback)
	uids, err := c.sess.SearchUIDsSince(since)
	if err != nil {
		return false, fmt.Errorf("search %s since %s: %w", folder.Folder, since, err)
	}

	if folder.LowestUID > 0 {
		below := uids[:0]
		for _, u := range uids {
			if u < folder.LowestUID {
				below = append(below, u)
			}
		}
		uids = below
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > historicalBatchSize {
		uids = uids[:historicalBatchSize]
	}

	if len(uids) == 0 {
		if err := db.SetFolderStatus(accountID, folder.Folder, store.FolderDone); err != nil {
			return false, err
		}
		log.Debug().Str("account_id", accountID).Str("folder", folder.Folder).Msg("folder exhausted, marked done")
		return false, nil
	}

	result, err := ingest.Batch(c.sess, db, accountID, folder.Folder, uids, c.selfEmails)
	if err != nil {
		return false, fmt.Errorf("ingest batch for %s: %w", folder.Folder, err)
	}

	if err := db.AdvanceLowestUID(accountID, folder.Folder, result.MinUID, now); err != nil {
		return false, err
	}
	if folder.HighestUID == 0 {
		if err := db.AdvanceHighestUID(accountID, folder.Folder, result.MaxUID, now); err != nil {
			return false, err
		}
	}

	log.Debug().Str("account_id", accountID).Str("folder", folder.Folder).Int("count", result.Inserted).Msg("historical_fetch batch ingested")

	if emitOK {
		if _, err := pipeline.ProcessChanges(db, accountID, nil); err != nil {
			return false, err
		}
	}
	return false, nil
}

func seedHistoricalFolders(c *conn, db *store.DB, accountID string, now int64) error {
	folders, err := c.sess.ListFolders(context.Background())
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	candidates := imapadapter.SyncCandidates(folders)

	statuses, err := c.sess.BulkStatus(context.Background(), candidates)
	if err != nil {
		return fmt.Errorf("bulk status: %w", err)
	}

	for _, name := range candidates {
		if err := db.UpsertFolderSync(accountID, name); err != nil {
			return err
		}
		if err := db.SetFolderStatus(accountID, name, store.FolderInProgress); err != nil {
			return err
		}
		if st, ok := statuses[name]; ok {
			if err := db.SetUIDValidity(accountID, name, st.UIDValidity); err != nil {
				return err
			}
		}
	}
	return nil
}
