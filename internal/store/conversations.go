package store

import (
	"database/sql"
	"fmt"
)

// ReplaceConversations atomically replaces every conversation row for an
// account with rows, per spec.md §4.6 phase 2 ("replace all conversations
// rows for the account in one transaction"). User flags live in the
// separate conversation_flags table (SPEC_FULL.md's Open Question
// decision) and are untouched here, so a rebuild can never clobber them.
func (db *DB) ReplaceConversations(accountID string, rows []*Conversation) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("replace conversations: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversations WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("replace conversations delete: %w", err)
	}

	for _, c := range rows {
		if _, err := tx.NamedExec(`
			INSERT INTO conversations (
				id, account_id, participant_key, participant_names, classification,
				last_message_date, last_message_preview, unread_count, total_count,
				is_important, updated_at
			) VALUES (
				:id, :account_id, :participant_key, :participant_names, :classification,
				:last_message_date, :last_message_preview, :unread_count, :total_count,
				:is_important, :updated_at
			)`, c); err != nil {
			return fmt.Errorf("replace conversations insert %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ListConversations returns conversations for a tab: "connections",
// "others", or "all", joined with user flags, newest first.
func (db *DB) ListConversations(accountID, tab string) ([]*Conversation, error) {
	query := `
		SELECT c.id, c.account_id, c.participant_key, c.participant_names, c.classification,
		       c.last_message_date, c.last_message_preview, c.unread_count, c.total_count,
		       c.is_important, c.updated_at,
		       COALESCE(f.is_muted, 0) AS is_muted,
		       COALESCE(f.is_pinned, 0) AS is_pinned
		FROM conversations c
		LEFT JOIN conversation_flags f ON f.account_id = c.account_id AND f.conversation_id = c.id
		WHERE c.account_id = ?`
	args := []any{accountID}
	switch tab {
	case ClassConnections:
		query += " AND c.classification = ?"
		args = append(args, ClassConnections)
	case ClassOthers:
		query += " AND c.classification = ?"
		args = append(args, ClassOthers)
	case "all", "":
		// no extra filter
	default:
		query += " AND c.classification = ?"
		args = append(args, tab)
	}
	query += " ORDER BY c.last_message_date DESC"

	var out []*Conversation
	if err := db.Select(&out, query, args...); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// GetConversation returns one conversation by id, joined with user flags.
func (db *DB) GetConversation(accountID, conversationID string) (*Conversation, error) {
	var c Conversation
	err := db.Get(&c, `
		SELECT c.id, c.account_id, c.participant_key, c.participant_names, c.classification,
		       c.last_message_date, c.last_message_preview, c.unread_count, c.total_count,
		       c.is_important, c.updated_at,
		       COALESCE(f.is_muted, 0) AS is_muted,
		       COALESCE(f.is_pinned, 0) AS is_pinned
		FROM conversations c
		LEFT JOIN conversation_flags f ON f.account_id = c.account_id AND f.conversation_id = c.id
		WHERE c.account_id = ? AND c.id = ?`, accountID, conversationID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return &c, nil
}

// SetConversationFlags upserts the user-settable flags for a conversation.
func (db *DB) SetConversationFlags(f *ConversationFlags) error {
	_, err := db.NamedExec(`
		INSERT INTO conversation_flags (account_id, conversation_id, is_muted, is_pinned, updated_at)
		VALUES (:account_id, :conversation_id, :is_muted, :is_pinned, :updated_at)
		ON CONFLICT(account_id, conversation_id) DO UPDATE SET
			is_muted = excluded.is_muted,
			is_pinned = excluded.is_pinned,
			updated_at = excluded.updated_at`, f)
	if err != nil {
		return fmt.Errorf("set conversation flags: %w", err)
	}
	return nil
}

// MarkConversationRead sets unread_count to 0 locally (a local-only cache
// update per spec.md §6; the real IMAP \Seen change is queued separately
// through the action queue by the caller).
func (db *DB) MarkConversationRead(accountID, conversationID string) error {
	_, err := db.Exec(`
		UPDATE conversations SET unread_count = 0 WHERE account_id = ? AND id = ?`,
		accountID, conversationID)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return nil
}
