package store

// Account is the root entity; every other table cascades off its id, which
// is the account's primary email address. Host/port/tls are the connection
// config half of the credential interface (spec.md §6); the password half
// is held separately by internal/credentials.
type Account struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Host      string `db:"host"`
	Port      int    `db:"port"`
	TLS       bool   `db:"tls"`
	CreatedAt int64  `db:"created_at"`
}

// Message is the cache of one server UID in one folder (spec.md §3).
type Message struct {
	ID                 string  `db:"id"`
	AccountID          string  `db:"account_id"`
	MessageID          string  `db:"message_id"`
	UID                uint32  `db:"imap_uid"`
	Folder             string  `db:"imap_folder"`
	Date               int64   `db:"date"`
	FromAddress        string  `db:"from_address"`
	FromName           *string `db:"from_name"`
	ToAddresses        string  `db:"to_addresses"`
	CcAddresses        string  `db:"cc_addresses"`
	BccAddresses       string  `db:"bcc_addresses"`
	Subject            *string `db:"subject"`
	BodyText           *string `db:"body_text"`
	BodyHTML           *string `db:"body_html"`
	SizeBytes          *int64  `db:"size_bytes"`
	HasAttachments     bool    `db:"has_attachments"`
	InReplyTo          *string `db:"in_reply_to"`
	ReferencesIDs      string  `db:"references_ids"`
	IMAPFlags          string  `db:"imap_flags"`
	FetchedAt          int64   `db:"fetched_at"`
	Classification     *string `db:"classification"`
	IsImportant        bool    `db:"is_important"`
	DistilledText      *string `db:"distilled_text"`
	ProcessedAt        *int64  `db:"processed_at"`
	ParticipantKey     string  `db:"participant_key"`
	ConversationID     string  `db:"conversation_id"`
	ThreadID           *string `db:"thread_id"`
	ParticipantChanges *string `db:"participant_changes"`
}

// Entity is a trust-network record: one (account, email) pair.
type Entity struct {
	AccountID  string  `db:"account_id"`
	Email      string  `db:"email"`
	TrustLevel string  `db:"trust_level"` // user | alias | contact | connection
	Source     string  `db:"source"`      // self | sent_scan | manual | carddav_import
	FirstSeen  int64   `db:"first_seen"`
	LastSeen   *int64  `db:"last_seen"`
	SentCount  int     `db:"sent_count"`
	Metadata   *string `db:"metadata"`
}

const (
	TrustUser       = "user"
	TrustAlias      = "alias"
	TrustContact    = "contact"
	TrustConnection = "connection"

	SourceSelf          = "self"
	SourceSentScan      = "sent_scan"
	SourceManual        = "manual"
	SourceCardDAVImport = "carddav_import"
)

// FolderSync is the per-folder cursor (spec.md §3).
type FolderSync struct {
	AccountID   string `db:"account_id"`
	Folder      string `db:"folder"`
	UIDValidity uint32 `db:"uid_validity"`
	HighestUID  uint32 `db:"highest_uid"`
	LowestUID   uint32 `db:"lowest_uid"`
	SyncStatus  string `db:"sync_status"` // pending | in_progress | done
	LastSync    *int64 `db:"last_sync"`
}

const (
	FolderPending    = "pending"
	FolderInProgress = "in_progress"
	FolderDone       = "done"
)

// OnboardingTask is one named, resumable onboarding activity.
type OnboardingTask struct {
	AccountID string `db:"account_id"`
	TaskName  string `db:"task_name"`
	Status    string `db:"status"` // pending | in_progress | done
	Cursor    string `db:"cursor"`
	UpdatedAt int64  `db:"updated_at"`
}

const (
	TaskTrustNetwork      = "trust_network"
	TaskHistoricalFetch   = "historical_fetch"
	TaskConnectionHistory = "connection_history"

	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// OnboardingSequence is the fixed order new accounts are seeded with.
var OnboardingSequence = []string{TaskTrustNetwork, TaskHistoricalFetch, TaskConnectionHistory}

// Conversation is the derived materialized view (spec.md §3/§4.6).
type Conversation struct {
	ID                  string `db:"id"`
	AccountID           string `db:"account_id"`
	ParticipantKey      string `db:"participant_key"`
	ParticipantNames    string `db:"participant_names"` // JSON object address->name
	Classification      string `db:"classification"`    // connections | others | automated
	LastMessageDate     int64  `db:"last_message_date"`
	LastMessagePreview  *string `db:"last_message_preview"`
	UnreadCount         int    `db:"unread_count"`
	TotalCount          int    `db:"total_count"`
	IsImportant         bool   `db:"is_important"` // phase-2 aggregate, written fresh on every rebuild
	UpdatedAt           int64  `db:"updated_at"`

	// Joined in from conversation_flags; never written by a rebuild.
	IsMuted  bool `db:"is_muted"`
	IsPinned bool `db:"is_pinned"`
}

const (
	ClassConnections = "connections"
	ClassOthers      = "others"
	ClassAutomated   = "automated"
)

// ConversationFlags holds the user-settable flags that survive a rebuild.
type ConversationFlags struct {
	AccountID      string `db:"account_id"`
	ConversationID string `db:"conversation_id"`
	IsMuted        bool   `db:"is_muted"`
	IsPinned       bool   `db:"is_pinned"`
	UpdatedAt      int64  `db:"updated_at"`
}

// ActionQueueEntry is one queued offline intent.
type ActionQueueEntry struct {
	ID          string  `db:"id"`
	AccountID   string  `db:"account_id"`
	ActionType  string  `db:"action_type"`
	Payload     string  `db:"payload"`
	Status      string  `db:"status"` // pending | in_progress | completed | failed
	RetryCount  int     `db:"retry_count"`
	MaxRetries  int     `db:"max_retries"`
	CreatedAt   int64   `db:"created_at"`
	CompletedAt *int64  `db:"completed_at"`
	Error       *string `db:"error"`
}

const (
	ActionAddFlags    = "add_flags"
	ActionRemoveFlags = "remove_flags"
	ActionMove        = "move"
	ActionCopy        = "copy"
	ActionSend        = "send"

	ActionPending    = "pending"
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"
	ActionFailed     = "failed"
)

// Skill is a user-defined LLM classification prompt with its modifier set.
type Skill struct {
	ID        string `db:"id"`
	AccountID string `db:"account_id"`
	Name      string `db:"name"`
	Prompt    string `db:"prompt"`
	Modifiers string `db:"modifiers"` // JSON
	Model     string `db:"model"`
	Enabled   bool   `db:"enabled"`
	Revision  string `db:"revision"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// SkillModifiers is the decoded form of Skill.Modifiers.
type SkillModifiers struct {
	ExcludeNewsletters bool `json:"excludeNewsletters"`
	OnlyKnownSenders   bool `json:"onlyKnownSenders"`
	HasAttachments     bool `json:"hasAttachments"`
	RecentSixMonths    bool `json:"recentSixMonths"`
	ExcludeAutoReplies bool `json:"excludeAutoReplies"`
}

// SkillCursor is a per-folder classify cursor for one skill revision.
type SkillCursor struct {
	SkillID              string `db:"skill_id"`
	Folder               string `db:"folder"`
	SkillRev             string `db:"skill_rev"`
	HighestClassifiedUID uint32 `db:"highest_classified_uid"`
	LowestClassifiedUID  uint32 `db:"lowest_classified_uid"`
}
