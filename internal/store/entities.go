package store

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// UpsertEntity inserts a trust-network row or, if one already exists for
// (account_id, email), raises its trust level (never lowers it) and bumps
// last_seen/sent_count. The server-observed recipient/sender is the source
// of truth; conflicting inserts from a lower-trust source are ignored
// (spec.md §4.1's idempotent-upsert contract). The trust-level comparison
// is done in Go rather than SQL so it doesn't depend on a custom SQLite
// function being registered with the driver.
func (db *DB) UpsertEntity(e *Entity) error {
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("upsert entity: %w", err)
	}
	defer tx.Rollback()

	var existing Entity
	err = tx.Get(&existing, `
		SELECT account_id, email, trust_level, source, first_seen, last_seen, sent_count, metadata
		FROM entities WHERE account_id = ? AND email = ?`, e.AccountID, e.Email)

	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.NamedExec(`
			INSERT INTO entities (account_id, email, trust_level, source, first_seen, last_seen, sent_count, metadata)
			VALUES (:account_id, :email, :trust_level, :source, :first_seen, :last_seen, :sent_count, :metadata)`,
			e); err != nil {
			return fmt.Errorf("upsert entity insert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("upsert entity lookup: %w", err)
	default:
		newLevel := existing.TrustLevel
		if trustLevelRank[e.TrustLevel] > trustLevelRank[existing.TrustLevel] {
			newLevel = e.TrustLevel
		}
		lastSeen := existing.LastSeen
		if e.LastSeen != nil {
			lastSeen = e.LastSeen
		}
		if _, err := tx.Exec(`
			UPDATE entities SET trust_level = ?, last_seen = ?, sent_count = sent_count + ?
			WHERE account_id = ? AND email = ?`,
			newLevel, lastSeen, e.SentCount, e.AccountID, e.Email); err != nil {
			return fmt.Errorf("upsert entity update: %w", err)
		}
	}

	return tx.Commit()
}

// trustLevelRank orders trust levels so UpsertEntity can compute a max
// without ever downgrading an existing record.
var trustLevelRank = map[string]int{
	TrustUser:       3,
	TrustAlias:      2,
	TrustConnection: 1,
	TrustContact:    0,
}

// GetEntity returns the trust record for (accountID, email), or nil.
func (db *DB) GetEntity(accountID, email string) (*Entity, error) {
	var e Entity
	err := db.Get(&e, `
		SELECT account_id, email, trust_level, source, first_seen, last_seen, sent_count, metadata
		FROM entities WHERE account_id = ? AND email = ?`, accountID, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return &e, nil
}

// TrustLevelOf is a convenience used heavily by the classifier's Trust tier:
// it returns "" when the account has no record for the address at all.
func (db *DB) TrustLevelOf(accountID, email string) (string, error) {
	var level string
	err := db.Get(&level, "SELECT trust_level FROM entities WHERE account_id = ? AND email = ?", accountID, email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("trust level of: %w", err)
	}
	return level, nil
}

// ListEntitiesByTrust returns every entity at any of the given trust
// levels, used by the conversation rebuilder to resolve the account's own
// addresses (user/alias) for participant-key exclusion.
func (db *DB) ListEntitiesByTrust(accountID string, levels ...string) ([]*Entity, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT account_id, email, trust_level, source, first_seen, last_seen, sent_count, metadata
		FROM entities WHERE account_id = ? AND trust_level IN (?)`, accountID, levels)
	if err != nil {
		return nil, fmt.Errorf("list entities by trust: %w", err)
	}
	query = db.Rebind(query)
	var out []*Entity
	if err := db.Select(&out, query, args...); err != nil {
		return nil, fmt.Errorf("list entities by trust: %w", err)
	}
	return out, nil
}

// ConnectionAddresses returns every address trusted at the "connection"
// level, used by onboarding's connection_history task.
func (db *DB) ConnectionAddresses(accountID string) ([]string, error) {
	var out []string
	err := db.Select(&out, "SELECT email FROM entities WHERE account_id = ? AND trust_level = ?", accountID, TrustConnection)
	if err != nil {
		return nil, fmt.Errorf("connection addresses: %w", err)
	}
	return out, nil
}

// SearchEntities does a case-insensitive substring match on email/metadata,
// backing the search_entities command.
func (db *DB) SearchEntities(accountID, query string, limit int) ([]*Entity, error) {
	var out []*Entity
	err := db.Select(&out, `
		SELECT account_id, email, trust_level, source, first_seen, last_seen, sent_count, metadata
		FROM entities
		WHERE account_id = ? AND email LIKE '%' || ? || '%'
		ORDER BY sent_count DESC, last_seen DESC
		LIMIT ?`, accountID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search entities: %w", err)
	}
	return out, nil
}
