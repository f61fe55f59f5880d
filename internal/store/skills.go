package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ComputeSkillRevision derives the short revision hash a skill's prompt and
// modifiers are pinned to. skill_classify compares this against a cursor's
// stored skill_rev and resets the cursor on mismatch (spec.md §4.9), so any
// edit to the prompt or modifiers reclassifies from scratch.
func ComputeSkillRevision(prompt, modifiers, model string) string {
	sum := sha256.Sum256([]byte(prompt + "\x00" + modifiers + "\x00" + model))
	return hex.EncodeToString(sum[:])[:16]
}

// CreateSkill inserts a new skill, generating its id and revision.
func (db *DB) CreateSkill(s *Skill) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Revision = ComputeSkillRevision(s.Prompt, s.Modifiers, s.Model)
	_, err := db.NamedExec(`
		INSERT INTO skills (id, account_id, name, prompt, modifiers, model, enabled, revision, created_at, updated_at)
		VALUES (:id, :account_id, :name, :prompt, :modifiers, :model, :enabled, :revision, :created_at, :updated_at)`, s)
	if err != nil {
		return fmt.Errorf("create skill: %w", err)
	}
	return nil
}

// UpdateSkill rewrites a skill's editable fields and recomputes its
// revision; callers do not need to touch cursors directly, since
// skill_classify detects the revision change itself.
func (db *DB) UpdateSkill(s *Skill) error {
	s.Revision = ComputeSkillRevision(s.Prompt, s.Modifiers, s.Model)
	_, err := db.Exec(`
		UPDATE skills SET name = ?, prompt = ?, modifiers = ?, model = ?, enabled = ?, revision = ?, updated_at = ?
		WHERE id = ?`, s.Name, s.Prompt, s.Modifiers, s.Model, s.Enabled, s.Revision, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("update skill: %w", err)
	}
	return nil
}

// GetSkill returns one skill by id, or nil.
func (db *DB) GetSkill(id string) (*Skill, error) {
	var s Skill
	err := db.Get(&s, `
		SELECT id, account_id, name, prompt, modifiers, model, enabled, revision, created_at, updated_at
		FROM skills WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill: %w", err)
	}
	return &s, nil
}

// ListEnabledSkills returns every enabled skill for an account, the work
// list skill_classify iterates over each tick.
func (db *DB) ListEnabledSkills(accountID string) ([]*Skill, error) {
	var out []*Skill
	err := db.Select(&out, `
		SELECT id, account_id, name, prompt, modifiers, model, enabled, revision, created_at, updated_at
		FROM skills WHERE account_id = ? AND enabled = 1`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list enabled skills: %w", err)
	}
	return out, nil
}

// DeleteSkill removes a skill; its cursors and matches cascade.
func (db *DB) DeleteSkill(id string) error {
	if _, err := db.Exec(`DELETE FROM skills WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	return nil
}

// GetSkillCursor returns the cursor for (skillID, folder), or nil.
func (db *DB) GetSkillCursor(skillID, folder string) (*SkillCursor, error) {
	var c SkillCursor
	err := db.Get(&c, `
		SELECT skill_id, folder, skill_rev, highest_classified_uid, lowest_classified_uid
		FROM skill_cursors WHERE skill_id = ? AND folder = ?`, skillID, folder)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get skill cursor: %w", err)
	}
	return &c, nil
}

// ResetSkillCursor (re)seeds a cursor at the given revision with both
// watermarks cleared, for a fresh skill or one whose revision changed.
func (db *DB) ResetSkillCursor(skillID, folder, skillRev string) error {
	_, err := db.Exec(`
		INSERT INTO skill_cursors (skill_id, folder, skill_rev, highest_classified_uid, lowest_classified_uid)
		VALUES (?, ?, ?, 0, 0)
		ON CONFLICT(skill_id, folder) DO UPDATE SET
			skill_rev = excluded.skill_rev,
			highest_classified_uid = 0,
			lowest_classified_uid = 0`, skillID, folder, skillRev)
	if err != nil {
		return fmt.Errorf("reset skill cursor: %w", err)
	}
	return nil
}

// AdvanceSkillCursor raises the forward watermark and lowers the backward
// watermark for a cursor after a classify batch completes.
func (db *DB) AdvanceSkillCursor(skillID, folder string, newHigh, newLow uint32) error {
	_, err := db.Exec(`
		UPDATE skill_cursors SET
			highest_classified_uid = MAX(highest_classified_uid, ?),
			lowest_classified_uid = CASE WHEN lowest_classified_uid = 0 THEN ? ELSE MIN(lowest_classified_uid, ?) END
		WHERE skill_id = ? AND folder = ?`, newHigh, newLow, newLow, skillID, folder)
	if err != nil {
		return fmt.Errorf("advance skill cursor: %w", err)
	}
	return nil
}

// RecordSkillMatch records that a skill matched one message. Per spec.md
// §4.9, skill_matches only ever pairs a skill with messages it matched —
// a "false" verdict from the LLM simply records nothing.
func (db *DB) RecordSkillMatch(skillID, messageID string, now int64) error {
	_, err := db.Exec(`
		INSERT INTO skill_matches (skill_id, message_id, matched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(skill_id, message_id) DO UPDATE SET matched_at = excluded.matched_at`,
		skillID, messageID, now)
	if err != nil {
		return fmt.Errorf("record skill match: %w", err)
	}
	return nil
}

// MessagesMatchingSkill returns ids of messages the skill has matched.
func (db *DB) MessagesMatchingSkill(skillID string) ([]string, error) {
	var out []string
	err := db.Select(&out, `SELECT message_id FROM skill_matches WHERE skill_id = ?`, skillID)
	if err != nil {
		return nil, fmt.Errorf("messages matching skill: %w", err)
	}
	return out, nil
}

// ClearSkillMatches deletes every match for a skill, used when its revision
// changes and cursors reset.
func (db *DB) ClearSkillMatches(skillID string) error {
	if _, err := db.Exec(`DELETE FROM skill_matches WHERE skill_id = ?`, skillID); err != nil {
		return fmt.Errorf("clear skill matches: %w", err)
	}
	return nil
}
