// Package command is the external command surface spec.md §6 names: the
// fixed set of operations the UI transport invokes on the sync core. Every
// mutating command checks read-only mode before touching the store or IMAP;
// read-only commands never do.
package command

import (
	"fmt"
	"time"

	"github.com/hkdb/threadline/internal/conversation"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
	"github.com/hkdb/threadline/internal/syncerr"
	"github.com/hkdb/threadline/internal/worker"
	"github.com/rs/zerolog"
)

// Service is the command surface, bound to one store/worker pair. A single
// Service instance serves every account the store knows about.
type Service struct {
	db      *store.DB
	worker  *worker.Worker
	emitter events.Emitter
	log     zerolog.Logger
}

// New builds a Service. emitter may be nil (events.NoopEmitter is used).
func New(db *store.DB, w *worker.Worker, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	return &Service{db: db, worker: w, emitter: emitter, log: logging.WithComponent("command")}
}

// requireWritable is the read-only-mode gate every mutating command checks
// before doing any work (spec.md §6).
func (s *Service) requireWritable() error {
	readOnly, err := s.db.IsReadOnlyMode()
	if err != nil {
		return err
	}
	if readOnly {
		return syncerr.ErrReadOnlyMode
	}
	return nil
}

// resolveAccount looks up accountID, or — if empty — the sole configured
// account. Ambiguity with more than one account configured and no id given
// is InvalidInput, not a guess.
func (s *Service) resolveAccount(accountID string) (*store.Account, error) {
	if accountID != "" {
		acc, err := s.db.GetAccount(accountID)
		if err != nil {
			return nil, err
		}
		if acc == nil {
			return nil, syncerr.New(syncerr.KindAccountNotFound, "command", fmt.Errorf("account %q not found", accountID))
		}
		return acc, nil
	}

	accounts, err := s.db.ListAccounts()
	if err != nil {
		return nil, err
	}
	switch len(accounts) {
	case 0:
		return nil, syncerr.New(syncerr.KindAccountNotFound, "command", fmt.Errorf("no account configured"))
	case 1:
		return accounts[0], nil
	default:
		return nil, syncerr.New(syncerr.KindInvalidInput, "command", fmt.Errorf("account is required when more than one account is configured"))
	}
}

// AccountConfig is what InitSyncEngine needs to create a brand-new account
// row; the password half of the credential interface is stored separately
// by internal/credentials, never here.
type AccountConfig struct {
	ID    string
	Email string
	Host  string
	Port  int
	TLS   bool
}

// InitSyncEngine ensures the account row exists, seeds the fixed onboarding
// sequence, and signals the worker to wake (spec.md §6). Calling it again
// for an already-initialized account is a no-op past the initial insert —
// SeedOnboardingTasks only seeds tasks that don't already exist.
func (s *Service) InitSyncEngine(cfg AccountConfig) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	if cfg.ID == "" || cfg.Host == "" {
		return syncerr.New(syncerr.KindInvalidInput, "init_sync_engine", fmt.Errorf("account id and host are required"))
	}

	now := time.Now().UnixMilli()
	if err := s.db.CreateAccount(cfg.ID, cfg.Email, cfg.Host, cfg.Port, cfg.TLS, now); err != nil {
		return err
	}
	if err := s.db.SeedOnboardingTasks(cfg.ID, now); err != nil {
		return err
	}

	s.log.Info().Str("account_id", cfg.ID).Msg("sync engine initialized")
	s.wake()
	return nil
}

// SyncNow signals the worker to wake immediately instead of waiting out its
// current poll interval (spec.md §6). It touches neither the store nor
// IMAP, so it is not gated by read-only mode.
func (s *Service) SyncNow() {
	s.wake()
}

func (s *Service) wake() {
	if s.worker != nil {
		s.worker.Wake()
	}
}

// SyncState is the derived state get_sync_status reports.
type SyncState string

const (
	// StateIdle means the account has no onboarding tasks seeded at all —
	// init_sync_engine was never called (or the account was just dropped).
	StateIdle SyncState = "idle"
	// StatePending means the first onboarding task not yet done has not
	// started — queued, waiting for the worker's next tick. This includes the
	// gap between one task finishing and the next one starting.
	StatePending SyncState = "pending"
	// StateSyncing means an onboarding task is actively in progress, or the
	// account's action queue has work still pending.
	StateSyncing SyncState = "syncing"
	// StateSynced means onboarding finished and nothing is queued.
	StateSynced SyncState = "synced"
)

// SyncStatus is the get_sync_status response shape (spec.md §6).
type SyncStatus struct {
	State            SyncState
	CurrentTask      string
	ProgressCurrent  int
	ProgressTotal    int
}

// GetSyncStatus derives {state, current_task?, progress_current,
// progress_total} for one account from its onboarding task table and
// action queue, per spec.md §6.
func (s *Service) GetSyncStatus(accountID string) (*SyncStatus, error) {
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.db.ListOnboardingTasks(acc.ID)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return &SyncStatus{State: StateIdle}, nil
	}

	var current *store.OnboardingTask
	for _, t := range tasks {
		if t.Status != store.TaskDone {
			current = t
			break
		}
	}

	if current == nil {
		pending, err := s.db.HasPendingActions(acc.ID)
		if err != nil {
			return nil, err
		}
		if pending {
			return &SyncStatus{State: StateSyncing}, nil
		}
		return &SyncStatus{State: StateSynced}, nil
	}

	progressCurrent, progressTotal, err := s.taskProgress(acc.ID, current)
	if err != nil {
		return nil, err
	}

	state := StatePending
	if current.Status == store.TaskInProgress {
		state = StateSyncing
	}
	return &SyncStatus{
		State:           state,
		CurrentTask:     current.TaskName,
		ProgressCurrent: progressCurrent,
		ProgressTotal:   progressTotal,
	}, nil
}

// taskProgress reports (done, total) folders for historical_fetch, the one
// onboarding task with real per-folder granularity; the other two tasks
// only ever have a single step, so they report 0/1 pending or 1/1 done.
func (s *Service) taskProgress(accountID string, task *store.OnboardingTask) (int, int, error) {
	if task.TaskName != store.TaskHistoricalFetch {
		if task.Status == store.TaskDone {
			return 1, 1, nil
		}
		return 0, 1, nil
	}

	folders, err := s.db.ListFolderSync(accountID)
	if err != nil {
		return 0, 0, err
	}
	if len(folders) == 0 {
		return 0, 1, nil
	}
	done := 0
	for _, f := range folders {
		if f.SyncStatus == store.FolderDone {
			done++
		}
	}
	return done, len(folders), nil
}

// GetCachedConversations returns the cached conversation list for one tab
// (spec.md §6).
func (s *Service) GetCachedConversations(accountID, tab string) ([]*store.Conversation, error) {
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	switch tab {
	case store.ClassConnections, store.ClassOthers, "all":
	default:
		return nil, syncerr.New(syncerr.KindInvalidInput, "get_cached_conversations", fmt.Errorf("unknown tab %q", tab))
	}
	return s.db.ListConversations(acc.ID, tab)
}

// GetCachedConversationMessages returns every cached message belonging to
// one conversation, oldest first (spec.md §6).
func (s *Service) GetCachedConversationMessages(accountID, conversationID string) ([]*store.Message, error) {
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	return s.db.MessagesByConversation(acc.ID, conversationID)
}

// RebuildConversations drops and recomputes every conversation row for one
// account from its cached messages (spec.md §4.6/§6), then emits
// conversations-updated.
func (s *Service) RebuildConversations(accountID string) (int, error) {
	if err := s.requireWritable(); err != nil {
		return 0, err
	}
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return 0, err
	}

	count, err := conversation.Rebuild(s.db, acc.ID)
	if err != nil {
		return 0, err
	}
	s.emitter.EmitConversationsUpdated(events.ConversationsUpdated{AccountID: acc.ID, Count: count})
	return count, nil
}

// Reclassify nulls out processed_at for every cached message so the next
// tick's classify+distill+rebuild pass reruns against every message
// (spec.md §6).
func (s *Service) Reclassify(accountID string) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return err
	}
	if err := s.db.ReclassifyAccount(acc.ID); err != nil {
		return err
	}
	s.wake()
	return nil
}

// DropAndResync deletes the account row (cascading away every cached
// message, conversation, and cursor), recreates it, re-seeds onboarding,
// and wakes the worker (spec.md §6).
func (s *Service) DropAndResync(accountID string) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return err
	}

	if err := s.db.DeleteAccount(acc.ID); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if err := s.db.CreateAccount(acc.ID, acc.Email, acc.Host, acc.Port, acc.TLS, now); err != nil {
		return err
	}
	if err := s.db.SeedOnboardingTasks(acc.ID, now); err != nil {
		return err
	}

	s.log.Info().Str("account_id", acc.ID).Msg("account dropped and re-seeded for full resync")
	s.wake()
	return nil
}

// MarkConversationRead is a local-only cache update (spec.md §6): it never
// touches the server directly. A caller that also wants the server-side
// \Seen flag set must separately enqueue an add_flags action.
func (s *Service) MarkConversationRead(accountID, conversationID string) error {
	if err := s.requireWritable(); err != nil {
		return err
	}
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return err
	}
	return s.db.MarkConversationRead(acc.ID, conversationID)
}

// SearchEntities searches the trust-network entity table by email/name
// substring (spec.md §6).
func (s *Service) SearchEntities(accountID, query string, limit int) ([]*store.Entity, error) {
	acc, err := s.resolveAccount(accountID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.db.SearchEntities(acc.ID, query, limit)
}
