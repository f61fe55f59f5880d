package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// UpsertMessage inserts a message row, generating its synthetic id if unset.
// The unique index on (account_id, imap_folder, imap_uid) makes the insert
// idempotent: a conflicting insert for a UID we've already cached is
// silently ignored, because the server's folder+UID is the source of truth
// (spec.md §4.1) and flag/label drift is reconciled separately by
// flag_resync, not by re-inserting the envelope. The partial unique index on
// (account_id, message_id) gives cross-folder Message-ID dedup the same
// treatment.
func (db *DB) UpsertMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := db.NamedExec(`
		INSERT INTO messages (
			id, account_id, message_id, imap_uid, imap_folder, date,
			from_address, from_name, to_addresses, cc_addresses, bcc_addresses,
			subject, body_text, body_html, size_bytes, has_attachments,
			in_reply_to, references_ids, imap_flags, fetched_at,
			classification, is_important, distilled_text, processed_at,
			participant_key, conversation_id, thread_id, participant_changes
		) VALUES (
			:id, :account_id, :message_id, :imap_uid, :imap_folder, :date,
			:from_address, :from_name, :to_addresses, :cc_addresses, :bcc_addresses,
			:subject, :body_text, :body_html, :size_bytes, :has_attachments,
			:in_reply_to, :references_ids, :imap_flags, :fetched_at,
			:classification, :is_important, :distilled_text, :processed_at,
			:participant_key, :conversation_id, :thread_id, :participant_changes
		)
		ON CONFLICT(account_id, imap_folder, imap_uid) DO NOTHING
	`, m)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// InsertMessagesBatch upserts a batch of messages inside one transaction,
// per spec.md §5's "message inserts within a batch occur inside one
// transaction" ordering guarantee.
func (db *DB) InsertMessagesBatch(messages []*Message) error {
	if len(messages) == 0 {
		return nil
	}
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("insert messages batch: %w", err)
	}
	defer tx.Rollback()

	for _, m := range messages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if _, err := tx.NamedExec(`
			INSERT INTO messages (
				id, account_id, message_id, imap_uid, imap_folder, date,
				from_address, from_name, to_addresses, cc_addresses, bcc_addresses,
				subject, body_text, body_html, size_bytes, has_attachments,
				in_reply_to, references_ids, imap_flags, fetched_at,
				classification, is_important, distilled_text, processed_at,
				participant_key, conversation_id, thread_id, participant_changes
			) VALUES (
				:id, :account_id, :message_id, :imap_uid, :imap_folder, :date,
				:from_address, :from_name, :to_addresses, :cc_addresses, :bcc_addresses,
				:subject, :body_text, :body_html, :size_bytes, :has_attachments,
				:in_reply_to, :references_ids, :imap_flags, :fetched_at,
				:classification, :is_important, :distilled_text, :processed_at,
				:participant_key, :conversation_id, :thread_id, :participant_changes
			)
			ON CONFLICT(account_id, imap_folder, imap_uid) DO NOTHING
		`, m); err != nil {
			return fmt.Errorf("insert messages batch %s: %w", m.ID, err)
		}
	}
	return tx.Commit()
}

// GetAllUIDs returns every locally cached UID for a folder.
func (db *DB) GetAllUIDs(accountID, folder string) ([]uint32, error) {
	var out []uint32
	err := db.Select(&out, `
		SELECT imap_uid FROM messages WHERE account_id = ? AND imap_folder = ?`, accountID, folder)
	if err != nil {
		return nil, fmt.Errorf("get all uids: %w", err)
	}
	return out, nil
}

// MessagesAboveUID returns up to limit cached messages in a folder with
// uid > afterUID, ascending — skill_classify's forward direction.
func (db *DB) MessagesAboveUID(accountID, folder string, afterUID uint32, limit int) ([]*Message, error) {
	var out []*Message
	err := db.Select(&out, `
		SELECT * FROM messages WHERE account_id = ? AND imap_folder = ? AND imap_uid > ?
		ORDER BY imap_uid ASC LIMIT ?`, accountID, folder, afterUID, limit)
	if err != nil {
		return nil, fmt.Errorf("messages above uid: %w", err)
	}
	return out, nil
}

// MessagesBelowUID returns up to limit cached messages in a folder with
// uid < beforeUID (or every message when beforeUID is 0), descending —
// skill_classify's backward backfill direction.
func (db *DB) MessagesBelowUID(accountID, folder string, beforeUID uint32, limit int) ([]*Message, error) {
	var out []*Message
	var err error
	if beforeUID == 0 {
		err = db.Select(&out, `
			SELECT * FROM messages WHERE account_id = ? AND imap_folder = ?
			ORDER BY imap_uid DESC LIMIT ?`, accountID, folder, limit)
	} else {
		err = db.Select(&out, `
			SELECT * FROM messages WHERE account_id = ? AND imap_folder = ? AND imap_uid < ?
			ORDER BY imap_uid DESC LIMIT ?`, accountID, folder, beforeUID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("messages below uid: %w", err)
	}
	return out, nil
}

// DeleteByFolder removes every cached message for a folder (used on
// UIDVALIDITY change).
func (db *DB) DeleteByFolder(accountID, folder string) error {
	if _, err := db.Exec(`DELETE FROM messages WHERE account_id = ? AND imap_folder = ?`, accountID, folder); err != nil {
		return fmt.Errorf("delete by folder: %w", err)
	}
	return nil
}

// MessageExistsByID reports whether a message with this Message-ID is
// already cached for the account, used by connection_history to filter
// already-known UIDs before fetching.
func (db *DB) MessageExistsByID(accountID, messageID string) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var exists bool
	err := db.Get(&exists, `SELECT EXISTS(SELECT 1 FROM messages WHERE account_id = ? AND message_id = ?)`,
		accountID, messageID)
	if err != nil {
		return false, fmt.Errorf("message exists by id: %w", err)
	}
	return exists, nil
}

// MessageExistsByUID reports whether (account, folder, uid) is cached.
func (db *DB) MessageExistsByUID(accountID, folder string, uid uint32) (bool, error) {
	var exists bool
	err := db.Get(&exists, `
		SELECT EXISTS(SELECT 1 FROM messages WHERE account_id = ? AND imap_folder = ? AND imap_uid = ?)`,
		accountID, folder, uid)
	if err != nil {
		return false, fmt.Errorf("message exists by uid: %w", err)
	}
	return exists, nil
}

// FlagUpdate is one server-observed flag change for a cached message.
type FlagUpdate struct {
	AccountID   string
	Folder      string
	UID         uint32
	Flags       string // sorted JSON array, canonical IMAP atom form
	IsImportant bool
}

// UpdateFlagsBatch persists server-observed flag changes in one transaction,
// but only for rows whose stored imap_flags actually differ — this is the
// diff flag_resync performs (spec.md §4.9). is_important is kept in lockstep
// since it's derived from the Gmail Important label carried in imap_flags.
func (db *DB) UpdateFlagsBatch(updates []FlagUpdate) (changed int, err error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("update flags batch: %w", err)
	}
	defer tx.Rollback()

	for _, u := range updates {
		res, err := tx.Exec(`
			UPDATE messages SET imap_flags = ?, is_important = ?
			WHERE account_id = ? AND imap_folder = ? AND imap_uid = ? AND imap_flags != ?`,
			u.Flags, u.IsImportant, u.AccountID, u.Folder, u.UID, u.Flags)
		if err != nil {
			return 0, fmt.Errorf("update flags batch exec: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			changed++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

// UnprocessedMessages returns messages with processed_at IS NULL for an
// account, oldest first, capped at limit — the classify+distill work list.
func (db *DB) UnprocessedMessages(accountID string, limit int) ([]*Message, error) {
	var out []*Message
	err := db.Select(&out, `
		SELECT * FROM messages WHERE account_id = ? AND processed_at IS NULL
		ORDER BY date ASC LIMIT ?`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("unprocessed messages: %w", err)
	}
	return out, nil
}

// MarkProcessed writes back a message's classification, confidence-derived
// importance, and distilled preview, stamping processed_at.
func (db *DB) MarkProcessed(id, classification string, isImportant bool, distilled string, now int64) error {
	_, err := db.Exec(`
		UPDATE messages SET classification = ?, is_important = ?, distilled_text = ?, processed_at = ?
		WHERE id = ?`, classification, isImportant, distilled, now, id)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// ReclassifyAccount nulls processed_at for every message in an account, so
// the next process_changes pass re-runs classify+distill+rebuild.
func (db *DB) ReclassifyAccount(accountID string) error {
	if _, err := db.Exec(`UPDATE messages SET processed_at = NULL WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("reclassify account: %w", err)
	}
	return nil
}

// MessagesForThreading returns every message for an account ordered by
// date, the input to the conversation rebuilder's union-find pass.
func (db *DB) MessagesForThreading(accountID string) ([]*Message, error) {
	var out []*Message
	err := db.Select(&out, `SELECT * FROM messages WHERE account_id = ? ORDER BY date ASC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("messages for threading: %w", err)
	}
	return out, nil
}

// UpdateThreadFields writes back the thread id, participant key,
// conversation id, and participant-changes diff computed for one message.
func (db *DB) UpdateThreadFields(id, threadID, participantKey, conversationID string, participantChanges *string) error {
	_, err := db.Exec(`
		UPDATE messages SET thread_id = ?, participant_key = ?, conversation_id = ?, participant_changes = ?
		WHERE id = ?`, threadID, participantKey, conversationID, participantChanges, id)
	if err != nil {
		return fmt.Errorf("update thread fields: %w", err)
	}
	return nil
}

// MessagesByConversation returns every message in a conversation ordered by
// date, for get_cached_conversation_messages.
func (db *DB) MessagesByConversation(accountID, conversationID string) ([]*Message, error) {
	var out []*Message
	err := db.Select(&out, `
		SELECT * FROM messages WHERE account_id = ? AND conversation_id = ? ORDER BY date ASC`,
		accountID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("messages by conversation: %w", err)
	}
	return out, nil
}

// GetMessage returns a single message by id, or nil.
func (db *DB) GetMessage(id string) (*Message, error) {
	var m Message
	err := db.Get(&m, `SELECT * FROM messages WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}
