package store

import (
	"database/sql"
	"fmt"
)

// SetCredentialFallback upserts an account's encrypted password, used only
// when the OS keyring is unavailable (see internal/credentials).
func (db *DB) SetCredentialFallback(accountID, encryptedPassword string) error {
	_, err := db.Exec(`
		INSERT INTO credential_fallback (account_id, encrypted_password) VALUES (?, ?)
		ON CONFLICT(account_id) DO UPDATE SET encrypted_password = excluded.encrypted_password`,
		accountID, encryptedPassword)
	if err != nil {
		return fmt.Errorf("set credential fallback: %w", err)
	}
	return nil
}

// GetCredentialFallback returns the stored encrypted password, or "" if none.
func (db *DB) GetCredentialFallback(accountID string) (string, error) {
	var encrypted string
	err := db.Get(&encrypted, `SELECT encrypted_password FROM credential_fallback WHERE account_id = ?`, accountID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential fallback: %w", err)
	}
	return encrypted, nil
}

// ClearCredentialFallback deletes an account's encrypted fallback password.
func (db *DB) ClearCredentialFallback(accountID string) error {
	if _, err := db.Exec(`DELETE FROM credential_fallback WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("clear credential fallback: %w", err)
	}
	return nil
}
