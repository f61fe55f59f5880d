package steadystate

import (
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/skillmatch"
	"github.com/hkdb/threadline/internal/store"
)

// RunAll runs incremental_sync, flag_resync, and skill_classify for one
// onboarded account, in that order — spec.md §4.7 step 1's steady-state
// path runs all three for every onboarded account in a single tick, unlike
// onboarding's strictly-one-task-per-tick dispatch.
func RunAll(credStore *credentials.Store, db *store.DB, accountID string, emitter events.Emitter, classifier skillmatch.Classifier) error {
	if err := RunIncrementalSync(credStore, db, accountID, emitter); err != nil {
		return err
	}
	if err := RunFlagResync(credStore, db, accountID, emitter); err != nil {
		return err
	}
	if err := RunSkillClassify(db, accountID, classifier); err != nil {
		return err
	}
	return nil
}
