package onboarding

import (
	"fmt"

	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
)

// RunNext seeds the fixed onboarding sequence if an account has none yet,
// then dispatches one bounded batch to its first non-done task (spec.md
// §4.7 steps 2-3). Returns true if that dispatch finished the task.
func RunNext(credStore *credentials.Store, db *store.DB, accountID string, now int64) (taskDone bool, err error) {
	log := logging.WithComponent("onboarding")

	if err := db.SeedOnboardingTasks(accountID, now); err != nil {
		return false, err
	}

	task, err := db.NextPendingTask(accountID)
	if err != nil {
		return false, err
	}
	if task == nil {
		return true, nil
	}

	log.Debug().Str("account_id", accountID).Str("task", task.TaskName).Msg("dispatching onboarding task")

	switch task.TaskName {
	case store.TaskTrustNetwork:
		return RunTrustNetwork(credStore, db, accountID)
	case store.TaskHistoricalFetch:
		return RunHistoricalFetch(credStore, db, accountID, true)
	case store.TaskConnectionHistory:
		return RunConnectionHistory(credStore, db, accountID)
	default:
		return false, fmt.Errorf("onboarding: unknown task %q", task.TaskName)
	}
}
