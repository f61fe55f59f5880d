package steadystate

import (
	"fmt"

	"github.com/hkdb/threadline/internal/builder"
	"github.com/hkdb/threadline/internal/conversation"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
)

// flagResyncBatchSize is the "walk locally-known UIDs in batches of 500"
// size spec.md §4.9 gives flag_resync.
const flagResyncBatchSize = 500

// RunFlagResync refreshes cached flags (and the Gmail-label-derived
// is_important bit that rides along with them) for every synced folder,
// then rebuilds conversations once if anything actually changed — flag
// drift alone never needs reclassification, only a refreshed unread count.
func RunFlagResync(credStore *credentials.Store, db *store.DB, accountID string, emitter events.Emitter) error {
	log := logging.WithComponent("steadystate.flag_resync")
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	folders, err := db.ListFolderSync(accountID)
	if err != nil {
		return err
	}

	var anyChanged bool
	var c *conn
	defer func() {
		if c != nil {
			c.close()
		}
	}()

	for _, folder := range folders {
		if folder.HighestUID == 0 {
			continue
		}

		allUIDs, err := db.GetAllUIDs(accountID, folder.Folder)
		if err != nil {
			return err
		}
		if len(allUIDs) == 0 {
			continue
		}

		if c == nil {
			c, err = connect(credStore, db, accountID)
			if err != nil {
				return err
			}
		}
		if _, err := c.sess.Select(folder.Folder); err != nil {
			log.Warn().Err(err).Str("folder", folder.Folder).Msg("select failed, skipping folder this tick")
			continue
		}

		for start := 0; start < len(allUIDs); start += flagResyncBatchSize {
			end := start + flagResyncBatchSize
			if end > len(allUIDs) {
				end = len(allUIDs)
			}
			batch := allUIDs[start:end]

			snapshots, err := c.sess.FetchFlags(batch)
			if err != nil {
				return fmt.Errorf("fetch flags for %s: %w", folder.Folder, err)
			}

			updates := make([]store.FlagUpdate, 0, len(snapshots))
			for uid, snap := range snapshots {
				merged := builder.MergedFlags(snap.Flags, snap.GmailLabels)
				updates = append(updates, store.FlagUpdate{
					AccountID:   accountID,
					Folder:      folder.Folder,
					UID:         uid,
					Flags:       builder.CanonicalFlags(snap.Flags, snap.GmailLabels),
					IsImportant: builder.IsImportantFlag(merged),
				})
			}

			changed, err := db.UpdateFlagsBatch(updates)
			if err != nil {
				return fmt.Errorf("update flags batch for %s: %w", folder.Folder, err)
			}
			if changed > 0 {
				anyChanged = true
				log.Debug().Str("account_id", accountID).Str("folder", folder.Folder).
					Int("changed", changed).Msg("flag_resync updated cached flags")
			}
		}
	}

	if anyChanged {
		count, err := conversation.Rebuild(db, accountID)
		if err != nil {
			return err
		}
		emitter.EmitStatus(events.Status{Phase: events.PhaseRebuilding, Message: "rebuilding conversations after flag resync"})
		emitter.EmitConversationsUpdated(events.ConversationsUpdated{AccountID: accountID, Count: count})
	}
	return nil
}
