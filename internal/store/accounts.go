package store

import (
	"database/sql"
	"fmt"
)

// CreateAccount inserts a new account row. id and email are the same value
// (the account's primary address); created_at is stamped by the caller so
// tests can control it.
func (db *DB) CreateAccount(id, email, host string, port int, tls bool, createdAt int64) error {
	_, err := db.Exec(
		`INSERT INTO accounts (id, email, host, port, tls, created_at) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, email, host, port, tls, createdAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetAccount returns the account by id, or nil if it doesn't exist.
func (db *DB) GetAccount(id string) (*Account, error) {
	var a Account
	err := db.Get(&a, "SELECT id, email, host, port, tls, created_at FROM accounts WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// ListAccounts returns every account, ordered by creation time.
func (db *DB) ListAccounts() ([]*Account, error) {
	var out []*Account
	if err := db.Select(&out, "SELECT id, email, host, port, tls, created_at FROM accounts ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// DeleteAccount removes the account row. Every child table cascades via
// ON DELETE CASCADE, so this is the only statement drop_and_resync needs
// to run to wipe an account's cache clean (spec.md §8 invariant 6).
func (db *DB) DeleteAccount(id string) error {
	if _, err := db.Exec("DELETE FROM accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	return nil
}
