package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// EnqueueAction records a queued offline intent, generating its id if unset.
func (db *DB) EnqueueAction(a *ActionQueueEntry) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = ActionPending
	}
	_, err := db.NamedExec(`
		INSERT INTO action_queue (
			id, account_id, action_type, payload, status, retry_count, max_retries, created_at, completed_at, error
		) VALUES (
			:id, :account_id, :action_type, :payload, :status, :retry_count, :max_retries, :created_at, :completed_at, :error
		)`, a)
	if err != nil {
		return fmt.Errorf("enqueue action: %w", err)
	}
	return nil
}

// NextPendingAction returns the oldest pending action for an account, or nil
// if the queue is empty. The dispatcher processes one at a time (spec.md
// §4.11) so callers must call SetActionInProgress before acting on it.
func (db *DB) NextPendingAction(accountID string) (*ActionQueueEntry, error) {
	var a ActionQueueEntry
	err := db.Get(&a, `
		SELECT id, account_id, action_type, payload, status, retry_count, max_retries, created_at, completed_at, error
		FROM action_queue
		WHERE account_id = ? AND status = ?
		ORDER BY created_at ASC LIMIT 1`, accountID, ActionPending)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending action: %w", err)
	}
	return &a, nil
}

// SetActionInProgress claims an action before dispatch attempts it.
func (db *DB) SetActionInProgress(id string) error {
	_, err := db.Exec(`UPDATE action_queue SET status = ? WHERE id = ?`, ActionInProgress, id)
	if err != nil {
		return fmt.Errorf("set action in progress: %w", err)
	}
	return nil
}

// CompleteAction marks an action completed, stamping completed_at.
func (db *DB) CompleteAction(id string, now int64) error {
	_, err := db.Exec(`
		UPDATE action_queue SET status = ?, completed_at = ?, error = NULL WHERE id = ?`,
		ActionCompleted, now, id)
	if err != nil {
		return fmt.Errorf("complete action: %w", err)
	}
	return nil
}

// FailAction increments retry_count and records the error; once retry_count
// reaches max_retries it transitions to "failed" instead of back to
// "pending", so the dispatcher stops retrying it forever.
func (db *DB) FailAction(id, errMsg string) error {
	_, err := db.Exec(`
		UPDATE action_queue SET
			retry_count = retry_count + 1,
			error = ?,
			status = CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE ? END
		WHERE id = ?`, errMsg, ActionFailed, ActionPending, id)
	if err != nil {
		return fmt.Errorf("fail action: %w", err)
	}
	return nil
}

// ListActionsByStatus returns every queued action for an account matching a
// status, oldest first.
func (db *DB) ListActionsByStatus(accountID, status string) ([]*ActionQueueEntry, error) {
	var out []*ActionQueueEntry
	err := db.Select(&out, `
		SELECT id, account_id, action_type, payload, status, retry_count, max_retries, created_at, completed_at, error
		FROM action_queue WHERE account_id = ? AND status = ? ORDER BY created_at ASC`, accountID, status)
	if err != nil {
		return nil, fmt.Errorf("list actions by status: %w", err)
	}
	return out, nil
}

// HasPendingActions reports whether an account has any unresolved action,
// used to decide scheduling priority against steady-state tasks.
func (db *DB) HasPendingActions(accountID string) (bool, error) {
	var exists bool
	err := db.Get(&exists, `
		SELECT EXISTS(SELECT 1 FROM action_queue WHERE account_id = ? AND status IN (?, ?))`,
		accountID, ActionPending, ActionInProgress)
	if err != nil {
		return false, fmt.Errorf("has pending actions: %w", err)
	}
	return exists, nil
}
