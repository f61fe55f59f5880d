package store

import (
	"database/sql"
	"fmt"
)

// SeedOnboardingTasks inserts the fixed {trust_network, historical_fetch,
// connection_history} sequence for an account if it has none yet.
func (db *DB) SeedOnboardingTasks(accountID string, now int64) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("seed onboarding tasks: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.Get(&count, "SELECT COUNT(*) FROM onboarding_tasks WHERE account_id = ?", accountID); err != nil {
		return fmt.Errorf("seed onboarding tasks count: %w", err)
	}
	if count > 0 {
		return tx.Commit()
	}

	for _, name := range OnboardingSequence {
		if _, err := tx.Exec(`
			INSERT INTO onboarding_tasks (account_id, task_name, status, cursor, updated_at)
			VALUES (?, ?, ?, '', ?)`, accountID, name, TaskPending, now); err != nil {
			return fmt.Errorf("seed onboarding task %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// ListOnboardingTasks returns every task for an account in the fixed
// sequence order (not DB row order, which is unspecified).
func (db *DB) ListOnboardingTasks(accountID string) ([]*OnboardingTask, error) {
	var rows []*OnboardingTask
	if err := db.Select(&rows, `
		SELECT account_id, task_name, status, cursor, updated_at
		FROM onboarding_tasks WHERE account_id = ?`, accountID); err != nil {
		return nil, fmt.Errorf("list onboarding tasks: %w", err)
	}

	byName := make(map[string]*OnboardingTask, len(rows))
	for _, r := range rows {
		byName[r.TaskName] = r
	}
	ordered := make([]*OnboardingTask, 0, len(rows))
	for _, name := range OnboardingSequence {
		if t, ok := byName[name]; ok {
			ordered = append(ordered, t)
		}
	}
	return ordered, nil
}

// NextPendingTask returns the first non-done task for an account, in fixed
// sequence order, or nil if every seeded task is done.
func (db *DB) NextPendingTask(accountID string) (*OnboardingTask, error) {
	tasks, err := db.ListOnboardingTasks(accountID)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Status != TaskDone {
			return t, nil
		}
	}
	return nil, nil
}

// AccountsWithOpenOnboarding returns ids of accounts that have at least one
// onboarding task not in the "done" state.
func (db *DB) AccountsWithOpenOnboarding() ([]string, error) {
	var ids []string
	err := db.Select(&ids, `
		SELECT DISTINCT account_id FROM onboarding_tasks WHERE status != ?`, TaskDone)
	if err != nil {
		return nil, fmt.Errorf("accounts with open onboarding: %w", err)
	}
	return ids, nil
}

// HasOpenOnboarding reports whether an account has any onboarding task not
// yet done — the action queue dispatcher's per-account gate (spec.md §4.11:
// "the queue runs only when no onboarding task for the account is in
// progress").
func (db *DB) HasOpenOnboarding(accountID string) (bool, error) {
	var exists bool
	err := db.Get(&exists, `
		SELECT EXISTS(SELECT 1 FROM onboarding_tasks WHERE account_id = ? AND status != ?)`,
		accountID, TaskDone)
	if err != nil {
		return false, fmt.Errorf("has open onboarding: %w", err)
	}
	return exists, nil
}

// AllOnboardedAccountIDs returns accounts that have zero onboarding tasks
// left in a non-done state — the steady-state candidate set.
func (db *DB) AllOnboardedAccountIDs() ([]string, error) {
	var ids []string
	err := db.Select(&ids, `
		SELECT id FROM accounts a
		WHERE NOT EXISTS (
			SELECT 1 FROM onboarding_tasks t
			WHERE t.account_id = a.id AND t.status != ?
		)`, TaskDone)
	if err != nil {
		return nil, fmt.Errorf("all onboarded account ids: %w", err)
	}
	return ids, nil
}

// SetTaskStatus updates a task's status and updated_at.
func (db *DB) SetTaskStatus(accountID, taskName, status string, now int64) error {
	_, err := db.Exec(`
		UPDATE onboarding_tasks SET status = ?, updated_at = ?
		WHERE account_id = ? AND task_name = ?`, status, now, accountID, taskName)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	return nil
}

// SetTaskCursor updates a task's free-form cursor (and marks in_progress).
func (db *DB) SetTaskCursor(accountID, taskName, cursor string, now int64) error {
	_, err := db.Exec(`
		UPDATE onboarding_tasks SET cursor = ?, status = ?, updated_at = ?
		WHERE account_id = ? AND task_name = ?`, cursor, TaskInProgress, now, accountID, taskName)
	if err != nil {
		return fmt.Errorf("set task cursor: %w", err)
	}
	return nil
}

// GetTask returns one task row, or nil.
func (db *DB) GetTask(accountID, taskName string) (*OnboardingTask, error) {
	var t OnboardingTask
	err := db.Get(&t, `
		SELECT account_id, task_name, status, cursor, updated_at
		FROM onboarding_tasks WHERE account_id = ? AND task_name = ?`, accountID, taskName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}
