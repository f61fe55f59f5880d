package store

// Migration is one forward-only, additive schema change. Migrations never
// drop or rename columns/tables (spec.md §4.1); a later migration only adds.
type Migration struct {
	Version int
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		SQL: `
			CREATE TABLE accounts (
				id         TEXT PRIMARY KEY, -- primary email address
				email      TEXT NOT NULL UNIQUE,
				host       TEXT NOT NULL DEFAULT '',
				port       INTEGER NOT NULL DEFAULT 993,
				tls        INTEGER NOT NULL DEFAULT 1,
				created_at INTEGER NOT NULL
			);

			-- Encrypted fallback for the account password, used only when the OS
			-- keyring is unavailable. The decrypted password itself never lives
			-- here; see internal/credentials.
			CREATE TABLE credential_fallback (
				account_id         TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
				encrypted_password TEXT NOT NULL
			);

			-- Trust network: one row per (account, email) the account has ever
			-- corresponded with, used by the classifier's Trust tier.
			CREATE TABLE entities (
				account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				email       TEXT NOT NULL,
				trust_level TEXT NOT NULL, -- user | alias | contact | connection
				source      TEXT NOT NULL, -- self | sent_scan | manual | carddav_import
				first_seen  INTEGER NOT NULL,
				last_seen   INTEGER,
				sent_count  INTEGER NOT NULL DEFAULT 0,
				metadata    TEXT, -- free-form JSON
				PRIMARY KEY (account_id, email)
			);

			CREATE INDEX idx_entities_account_trust ON entities(account_id, trust_level);

			-- Per-folder sync cursor.
			CREATE TABLE folder_sync (
				account_id   TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				folder       TEXT NOT NULL,
				uid_validity INTEGER NOT NULL DEFAULT 0,
				highest_uid  INTEGER NOT NULL DEFAULT 0, -- tailing watermark
				lowest_uid   INTEGER NOT NULL DEFAULT 0, -- historical backfill watermark
				sync_status  TEXT NOT NULL DEFAULT 'pending', -- pending | in_progress | done
				last_sync    INTEGER,
				PRIMARY KEY (account_id, folder)
			);

			-- Onboarding task cursors: trust_network, historical_fetch, connection_history.
			CREATE TABLE onboarding_tasks (
				account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				task_name  TEXT NOT NULL,
				status     TEXT NOT NULL DEFAULT 'pending', -- pending | in_progress | done
				cursor     TEXT NOT NULL DEFAULT '',
				updated_at INTEGER NOT NULL,
				PRIMARY KEY (account_id, task_name)
			);

			-- Message cache: one row per server UID in one folder.
			CREATE TABLE messages (
				id               TEXT PRIMARY KEY,
				account_id       TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				message_id       TEXT NOT NULL DEFAULT '', -- RFC 5322 Message-ID, may be empty
				imap_uid         INTEGER NOT NULL,
				imap_folder      TEXT NOT NULL,
				date             INTEGER NOT NULL DEFAULT 0,
				from_address     TEXT NOT NULL DEFAULT '',
				from_name        TEXT,
				to_addresses     TEXT NOT NULL DEFAULT '[]', -- sorted JSON array
				cc_addresses     TEXT NOT NULL DEFAULT '[]',
				bcc_addresses    TEXT NOT NULL DEFAULT '[]',
				subject          TEXT,
				body_text        TEXT,
				body_html        TEXT,
				size_bytes       INTEGER,
				has_attachments  INTEGER NOT NULL DEFAULT 0,
				in_reply_to      TEXT,
				references_ids   TEXT NOT NULL DEFAULT '[]', -- sorted-stable JSON array
				imap_flags       TEXT NOT NULL DEFAULT '[]', -- sorted JSON array
				fetched_at       INTEGER NOT NULL,
				classification   TEXT, -- chat | newsletter | automated | transactional | unknown
				is_important     INTEGER NOT NULL DEFAULT 0,
				distilled_text   TEXT,
				processed_at     INTEGER,
				participant_key  TEXT NOT NULL DEFAULT '',
				conversation_id  TEXT NOT NULL DEFAULT '',
				thread_id        TEXT,
				participant_changes TEXT, -- JSON diff vs previous message in thread, or NULL

				UNIQUE (account_id, imap_folder, imap_uid)
			);

			-- Cross-folder dedup by Message-ID, only enforced when non-empty.
			CREATE UNIQUE INDEX idx_messages_account_msgid ON messages(account_id, message_id)
				WHERE message_id != '';

			CREATE INDEX idx_messages_account ON messages(account_id);
			CREATE INDEX idx_messages_conversation ON messages(conversation_id);
			CREATE INDEX idx_messages_thread ON messages(thread_id);
			CREATE INDEX idx_messages_unprocessed ON messages(account_id) WHERE processed_at IS NULL;
			CREATE INDEX idx_messages_folder_uid ON messages(account_id, imap_folder, imap_uid);

			-- Derived materialized conversation view, fully rebuilt by
			-- conversation.Rebuild (spec.md §4.6). id is deterministic from
			-- participant_key so rebuilds are idempotent.
			CREATE TABLE conversations (
				id                    TEXT PRIMARY KEY,
				account_id            TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				participant_key       TEXT NOT NULL,
				participant_names     TEXT NOT NULL DEFAULT '{}', -- JSON object address->name
				classification        TEXT NOT NULL, -- connections | others | automated
				last_message_date     INTEGER NOT NULL,
				last_message_preview  TEXT,
				unread_count          INTEGER NOT NULL DEFAULT 0,
				total_count           INTEGER NOT NULL DEFAULT 0,
				is_important          INTEGER NOT NULL DEFAULT 0,
				updated_at            INTEGER NOT NULL
			);

			CREATE INDEX idx_conversations_account ON conversations(account_id, classification);
			CREATE INDEX idx_conversations_date ON conversations(account_id, last_message_date DESC);

			-- User flags on a conversation, held in a side table so that full
			-- rebuilds of "conversations" can never clobber them (spec.md §9,
			-- resolved in SPEC_FULL.md's Open Question Decisions). is_important
			-- is not here: it's a phase-2 aggregation of message state, written
			-- fresh into conversations on every rebuild like classification is.
			CREATE TABLE conversation_flags (
				account_id      TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				conversation_id TEXT NOT NULL,
				is_muted        INTEGER NOT NULL DEFAULT 0,
				is_pinned       INTEGER NOT NULL DEFAULT 0,
				updated_at      INTEGER NOT NULL,
				PRIMARY KEY (account_id, conversation_id)
			);

			-- Offline intent queue: flag changes, moves, sends.
			CREATE TABLE action_queue (
				id           TEXT PRIMARY KEY,
				account_id   TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				action_type  TEXT NOT NULL, -- add_flags | remove_flags | move | copy | send
				payload      TEXT NOT NULL, -- JSON
				status       TEXT NOT NULL DEFAULT 'pending', -- pending | in_progress | completed | failed
				retry_count  INTEGER NOT NULL DEFAULT 0,
				max_retries  INTEGER NOT NULL DEFAULT 5,
				created_at   INTEGER NOT NULL,
				completed_at INTEGER,
				error        TEXT
			);

			CREATE INDEX idx_action_queue_pending ON action_queue(account_id, status);

			-- Skills: user-defined LLM classification prompts.
			CREATE TABLE skills (
				id          TEXT PRIMARY KEY,
				account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				name        TEXT NOT NULL,
				prompt      TEXT NOT NULL DEFAULT '',
				modifiers   TEXT NOT NULL DEFAULT '{}', -- JSON: excludeNewsletters, onlyKnownSenders, ...
				model       TEXT NOT NULL DEFAULT '',
				enabled     INTEGER NOT NULL DEFAULT 1,
				revision    TEXT NOT NULL DEFAULT '', -- sha256(prompt+modifiers+model)[:16]
				created_at  INTEGER NOT NULL,
				updated_at  INTEGER NOT NULL
			);

			CREATE TABLE skill_cursors (
				skill_id             TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
				folder               TEXT NOT NULL,
				skill_rev            TEXT NOT NULL,
				highest_classified_uid INTEGER NOT NULL DEFAULT 0,
				lowest_classified_uid  INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (skill_id, folder)
			);

			CREATE TABLE skill_matches (
				skill_id   TEXT NOT NULL REFERENCES skills(id) ON DELETE CASCADE,
				message_id TEXT NOT NULL,
				matched_at INTEGER NOT NULL,
				PRIMARY KEY (skill_id, message_id)
			);

			-- Process-wide persisted settings (read-only mode, etc.).
			CREATE TABLE settings (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);
		`,
	},
}
