// Package worker runs the single cooperative task loop (spec.md §4.7) that
// drives onboarding and steady-state work for every account in the store.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hkdb/threadline/internal/actionqueue"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/mailer"
	"github.com/hkdb/threadline/internal/onboarding"
	"github.com/hkdb/threadline/internal/skillmatch"
	"github.com/hkdb/threadline/internal/steadystate"
	"github.com/hkdb/threadline/internal/store"
	"github.com/rs/zerolog"
)

const (
	minPollInterval = 2 * time.Second
	maxPollInterval = 60 * time.Second

	// actionQueueDrainLimit bounds how many queued actions one account gets
	// dispatched per tick, so a large backlog can't starve steady-state sync
	// for every other onboarded account.
	actionQueueDrainLimit = 20
)

// Worker owns the single cooperative tick loop. One tick does at most one
// bounded unit of onboarding work, or a full steady-state pass across every
// onboarded account, never both.
type Worker struct {
	db         *store.DB
	credStore  *credentials.Store
	emitter    events.Emitter
	classifier skillmatch.Classifier
	actions    *actionqueue.Dispatcher
	log        zerolog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	runningMu sync.Mutex

	wakeup   chan struct{}
	interval time.Duration
}

// New builds a Worker. emitter and classifier may be nil (NoopEmitter and
// NoopClassifier are substituted). mailerFor resolves the SMTP collaborator
// per account for action-queue Send rows; nil is fine for deployments that
// never enqueue a Send action.
func New(db *store.DB, credStore *credentials.Store, emitter events.Emitter, classifier skillmatch.Classifier, mailerFor func(accountID string) mailer.Mailer) *Worker {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	if classifier == nil {
		classifier = skillmatch.NoopClassifier{}
	}
	return &Worker{
		db:         db,
		credStore:  credStore,
		emitter:    emitter,
		classifier: classifier,
		actions:    actionqueue.New(db, credStore, mailerFor),
		log:        logging.WithComponent("worker"),
		wakeup:     make(chan struct{}, 1),
		interval:   minPollInterval,
	}
}

// Start launches the tick loop in the background. Safe to call once; a
// second call while already running is a no-op.
func (w *Worker) Start(ctx context.Context) {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	if w.running {
		w.log.Warn().Msg("worker already running")
		return
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.running = true

	w.wg.Add(1)
	go w.run()

	w.log.Info().Msg("task loop started")
}

// Stop signals shutdown and waits for the in-flight batch to finish.
func (w *Worker) Stop() {
	w.runningMu.Lock()
	defer w.runningMu.Unlock()
	if !w.running {
		return
	}
	w.cancel()
	w.wg.Wait()
	w.running = false
	w.log.Info().Msg("task loop stopped")
}

// Wake requests an immediate next tick instead of waiting out the current
// poll interval. Non-blocking: a pending wakeup is enough, a second one is
// dropped.
func (w *Worker) Wake() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for {
		didWork := w.tick()
		if didWork {
			w.interval = minPollInterval
		} else {
			w.interval = minDuration(w.interval*2, maxPollInterval)
		}

		select {
		case <-w.ctx.Done():
			return
		case <-w.wakeup:
		case <-time.After(w.interval):
		}
	}
}

// tick performs step 1-4 of spec.md §4.7: one account's one onboarding
// batch if any account has open onboarding, else one full steady-state pass
// across every onboarded account. Returns whether any work was actually
// done, for the caller's backoff decision.
func (w *Worker) tick() bool {
	pending, err := w.db.AccountsWithOpenOnboarding()
	if err != nil {
		w.log.Error().Err(err).Msg("list accounts with open onboarding")
		return false
	}

	if len(pending) > 0 {
		accountID := pending[0]
		_, err := onboarding.RunNext(w.credStore, w.db, accountID, time.Now().UnixMilli())
		if err != nil {
			w.log.Error().Err(err).Str("account_id", accountID).Msg("onboarding batch failed")
			return false
		}
		return true
	}

	accounts, err := w.db.AllOnboardedAccountIDs()
	if err != nil {
		w.log.Error().Err(err).Msg("list onboarded accounts")
		return false
	}
	if len(accounts) == 0 {
		return false
	}

	var didWork bool
	for _, accountID := range accounts {
		if w.ctx.Err() != nil {
			return didWork
		}

		// Queued local edits dispatch before the steady-state passes: a
		// user action (mark read, move, send) should reach the server
		// before the next incremental_sync/flag_resync round observes the
		// folder, not after (spec.md §4.11 gates the queue on onboarding
		// only, not on steady-state ordering).
		for i := 0; i < actionQueueDrainLimit; i++ {
			ran, err := w.actions.RunNext(accountID)
			if err != nil {
				w.log.Error().Err(err).Str("account_id", accountID).Msg("action queue dispatch failed")
				break
			}
			if !ran {
				break
			}
			didWork = true
		}

		if err := steadystate.RunAll(w.credStore, w.db, accountID, w.emitter, w.classifier); err != nil {
			w.log.Error().Err(err).Str("account_id", accountID).Msg("steady-state pass failed")
			continue
		}
		didWork = true
	}
	return didWork
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
