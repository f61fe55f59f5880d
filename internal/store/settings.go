package store

import "fmt"

// ReadOnlyModeKey is the settings row toggled by the read-only-mode command
// short-circuit (spec.md §6): while set, mutating commands are refused and
// actionqueue dispatch is suppressed; onboarding and steady-state tasks still
// fetch and cache.
const ReadOnlyModeKey = "read_only_mode"

// GetSetting returns a stored value, or "" if unset.
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.Get(&value, `SELECT value FROM settings WHERE key = ?`, key)
	if err != nil {
		return "", nil // no distinct not-found error: unset settings default to zero value
	}
	return value, nil
}

// SetSetting upserts a key/value pair.
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting: %w", err)
	}
	return nil
}

// IsReadOnlyMode reports whether read-only mode is currently enabled.
func (db *DB) IsReadOnlyMode() (bool, error) {
	v, err := db.GetSetting(ReadOnlyModeKey)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

// SetReadOnlyMode toggles read-only mode.
func (db *DB) SetReadOnlyMode(enabled bool) error {
	v := "false"
	if enabled {
		v = "true"
	}
	return db.SetSetting(ReadOnlyModeKey, v)
}
