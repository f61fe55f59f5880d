package store

import (
	"database/sql"
	"fmt"
)

// UpsertFolderSync creates a folder cursor row if absent; does nothing if
// one already exists (seeding is idempotent, callers mutate fields with the
// Advance* helpers below).
func (db *DB) UpsertFolderSync(accountID, folder string) error {
	_, err := db.Exec(`
		INSERT INTO folder_sync (account_id, folder, uid_validity, highest_uid, lowest_uid, sync_status, last_sync)
		VALUES (?, ?, 0, 0, 0, ?, NULL)
		ON CONFLICT(account_id, folder) DO NOTHING`,
		accountID, folder, FolderPending)
	if err != nil {
		return fmt.Errorf("upsert folder sync: %w", err)
	}
	return nil
}

// GetFolderSync returns the cursor for (accountID, folder), or nil.
func (db *DB) GetFolderSync(accountID, folder string) (*FolderSync, error) {
	var f FolderSync
	err := db.Get(&f, `
		SELECT account_id, folder, uid_validity, highest_uid, lowest_uid, sync_status, last_sync
		FROM folder_sync WHERE account_id = ? AND folder = ?`, accountID, folder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get folder sync: %w", err)
	}
	return &f, nil
}

// ListFolderSync returns every folder cursor for an account.
func (db *DB) ListFolderSync(accountID string) ([]*FolderSync, error) {
	var out []*FolderSync
	err := db.Select(&out, `
		SELECT account_id, folder, uid_validity, highest_uid, lowest_uid, sync_status, last_sync
		FROM folder_sync WHERE account_id = ? ORDER BY folder`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list folder sync: %w", err)
	}
	return out, nil
}

// ListFoldersByStatus returns folder cursors matching a status, ordered by
// last_sync ascending (oldest-synced first, NULLs first) so historical_fetch
// can pick "the oldest-last-synced in-progress folder" per spec.md §4.8.
func (db *DB) ListFoldersByStatus(accountID, status string) ([]*FolderSync, error) {
	var out []*FolderSync
	err := db.Select(&out, `
		SELECT account_id, folder, uid_validity, highest_uid, lowest_uid, sync_status, last_sync
		FROM folder_sync
		WHERE account_id = ? AND sync_status = ?
		ORDER BY last_sync IS NOT NULL, last_sync ASC`, accountID, status)
	if err != nil {
		return nil, fmt.Errorf("list folders by status: %w", err)
	}
	return out, nil
}

// SetFolderStatus transitions a folder's sync_status.
func (db *DB) SetFolderStatus(accountID, folder, status string) error {
	_, err := db.Exec(`UPDATE folder_sync SET sync_status = ? WHERE account_id = ? AND folder = ?`,
		status, accountID, folder)
	if err != nil {
		return fmt.Errorf("set folder status: %w", err)
	}
	return nil
}

// SetUIDValidity records a (possibly changed) UIDVALIDITY for a folder. A
// change signals the mailbox was recreated; the caller is responsible for
// deleting the folder's cached messages and resetting its cursor.
func (db *DB) SetUIDValidity(accountID, folder string, uidValidity uint32) error {
	_, err := db.Exec(`UPDATE folder_sync SET uid_validity = ? WHERE account_id = ? AND folder = ?`,
		uidValidity, accountID, folder)
	if err != nil {
		return fmt.Errorf("set uid validity: %w", err)
	}
	return nil
}

// AdvanceHighestUID raises highest_uid (the tailing watermark) if newHigh is
// greater than the current value, and stamps last_sync.
func (db *DB) AdvanceHighestUID(accountID, folder string, newHigh uint32, now int64) error {
	_, err := db.Exec(`
		UPDATE folder_sync SET highest_uid = MAX(highest_uid, ?), last_sync = ?
		WHERE account_id = ? AND folder = ?`, newHigh, now, accountID, folder)
	if err != nil {
		return fmt.Errorf("advance highest uid: %w", err)
	}
	return nil
}

// AdvanceLowestUID lowers lowest_uid (the historical backfill watermark) if
// newLow is smaller than the current value (0 means "not yet set").
func (db *DB) AdvanceLowestUID(accountID, folder string, newLow uint32, now int64) error {
	_, err := db.Exec(`
		UPDATE folder_sync SET
			lowest_uid = CASE WHEN lowest_uid = 0 THEN ? ELSE MIN(lowest_uid, ?) END,
			last_sync = ?
		WHERE account_id = ? AND folder = ?`, newLow, newLow, now, accountID, folder)
	if err != nil {
		return fmt.Errorf("advance lowest uid: %w", err)
	}
	return nil
}

// ResetFolderForUIDValidityChange clears a folder's cursor and deletes its
// cached messages for the UIDVALIDITY-changed case (SPEC_FULL.md's
// "supplemented features"): the mailbox was recreated, so every prior UID
// is meaningless. Status goes back to in_progress rather than pending — a
// recreated mailbox gets exactly the same treatment as a freshly discovered
// one, and both historical_fetch's in-progress folder loop and steady
// state's incremental_sync (highest_uid == 0 signals a fresh reseed) know
// how to pick an in_progress folder back up.
func (db *DB) ResetFolderForUIDValidityChange(accountID, folder string, newUIDValidity uint32, now int64) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("reset folder: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE account_id = ? AND imap_folder = ?`, accountID, folder); err != nil {
		return fmt.Errorf("reset folder delete messages: %w", err)
	}
	if _, err := tx.Exec(`
		UPDATE folder_sync SET uid_validity = ?, highest_uid = 0, lowest_uid = 0, sync_status = ?, last_sync = ?
		WHERE account_id = ? AND folder = ?`, newUIDValidity, FolderInProgress, now, accountID, folder); err != nil {
		return fmt.Errorf("reset folder update cursor: %w", err)
	}
	return tx.Commit()
}
