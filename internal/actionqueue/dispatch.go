// Package actionqueue is the dispatcher for C11: it drains queued offline
// intents (flag changes, moves, sends) one row at a time, executing the
// IMAP or SMTP operation and advancing the row's status per spec.md §4.11.
package actionqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/hkdb/threadline/internal/credentials"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/mailer"
	"github.com/hkdb/threadline/internal/store"
	"github.com/rs/zerolog"
)

// Dispatcher drains one account's action queue, one row at a time.
type Dispatcher struct {
	db        *store.DB
	credStore *credentials.Store
	mailerFor func(accountID string) mailer.Mailer
	log       zerolog.Logger
}

// New builds a Dispatcher. mailerFor may be nil, in which case every Send
// action fails with "no SMTP relay configured" rather than panicking —
// accounts that never enqueue a Send action are unaffected.
func New(db *store.DB, credStore *credentials.Store, mailerFor func(accountID string) mailer.Mailer) *Dispatcher {
	return &Dispatcher{
		db:        db,
		credStore: credStore,
		mailerFor: mailerFor,
		log:       logging.WithComponent("actionqueue"),
	}
}

// RunNext claims and executes one pending action for accountID. Returns
// false when there was nothing to do or the queue is gated off (open
// onboarding, read-only mode); true when a row was attempted.
func (d *Dispatcher) RunNext(accountID string) (bool, error) {
	readOnly, err := d.db.IsReadOnlyMode()
	if err != nil {
		return false, err
	}
	if readOnly {
		return false, nil
	}

	openOnboarding, err := d.db.HasOpenOnboarding(accountID)
	if err != nil {
		return false, err
	}
	if openOnboarding {
		return false, nil
	}

	action, err := d.db.NextPendingAction(accountID)
	if err != nil {
		return false, err
	}
	if action == nil {
		return false, nil
	}

	if err := d.db.SetActionInProgress(action.ID); err != nil {
		return false, err
	}

	execErr := d.execute(accountID, action)
	if execErr == nil {
		if err := d.db.CompleteAction(action.ID, time.Now().UnixMilli()); err != nil {
			return true, err
		}
		return true, nil
	}

	d.log.Warn().Err(execErr).Str("account_id", accountID).Str("action_id", action.ID).
		Str("action_type", action.ActionType).Msg("action failed")
	if err := d.db.FailAction(action.ID, execErr.Error()); err != nil {
		return true, err
	}
	return true, nil
}

func (d *Dispatcher) execute(accountID string, action *store.ActionQueueEntry) error {
	switch action.ActionType {
	case store.ActionAddFlags, store.ActionRemoveFlags:
		return d.executeFlags(accountID, action)
	case store.ActionMove, store.ActionCopy:
		return d.executeMove(accountID, action)
	case store.ActionSend:
		return d.executeSend(accountID, action)
	default:
		return fmt.Errorf("unknown action type %q", action.ActionType)
	}
}

func (d *Dispatcher) executeFlags(accountID string, action *store.ActionQueueEntry) error {
	var p FlagsPayload
	if err := json.Unmarshal([]byte(action.Payload), &p); err != nil {
		return fmt.Errorf("decode flags payload: %w", err)
	}

	c, err := connect(d.credStore, accountID)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.sess.Select(p.Folder); err != nil {
		return fmt.Errorf("select %s: %w", p.Folder, err)
	}

	flags := make([]imap.Flag, len(p.Flags))
	for i, f := range p.Flags {
		flags[i] = imap.Flag(f)
	}

	// AddFlags/RemoveFlags are inherently additive/subtractive (spec.md
	// §4.11), so replaying the same STORE twice is harmless — no extra
	// idempotency guard needed here.
	if action.ActionType == store.ActionAddFlags {
		return c.sess.AddFlags(p.UIDs, flags)
	}
	return c.sess.RemoveFlags(p.UIDs, flags)
}

func (d *Dispatcher) executeMove(accountID string, action *store.ActionQueueEntry) error {
	var p MovePayload
	if err := json.Unmarshal([]byte(action.Payload), &p); err != nil {
		return fmt.Errorf("decode move payload: %w", err)
	}

	c, err := connect(d.credStore, accountID)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.sess.Select(p.Folder); err != nil {
		return fmt.Errorf("select %s: %w", p.Folder, err)
	}

	// Move/Copy tolerate target duplicates (spec.md §4.11): a retry that
	// re-copies an already-moved message just leaves a harmless duplicate
	// in the destination, which incremental_sync will pick up once and
	// flag_resync will never need to reconcile away.
	if action.ActionType == store.ActionMove {
		return c.sess.Move(p.UIDs, p.DestFolder)
	}
	return c.sess.Copy(p.UIDs, p.DestFolder)
}

func (d *Dispatcher) executeSend(accountID string, action *store.ActionQueueEntry) error {
	var p SendPayload
	if err := json.Unmarshal([]byte(action.Payload), &p); err != nil {
		return fmt.Errorf("decode send payload: %w", err)
	}
	if p.MessageID == "" {
		return fmt.Errorf("send payload missing message_id")
	}

	sentFolder := p.SentFolder
	if sentFolder == "" {
		sentFolder = "Sent"
	}

	c, err := connect(d.credStore, accountID)
	if err != nil {
		return err
	}
	defer c.close()

	if _, err := c.sess.Select(sentFolder); err != nil {
		return fmt.Errorf("select %s: %w", sentFolder, err)
	}

	// Send is guarded by the extracted Message-Id (spec.md §4.11): if a
	// prior attempt delivered the mail but crashed before CompleteAction
	// ran, the retry finds it already sitting in Sent and skips redelivery.
	existing, err := c.sess.SearchByMessageID(p.MessageID)
	if err != nil {
		return fmt.Errorf("search existing message-id: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	var m mailer.Mailer = mailer.NoopMailer{}
	if d.mailerFor != nil {
		if resolved := d.mailerFor(accountID); resolved != nil {
			m = resolved
		}
	}

	msg := mailer.Message{
		MessageID:  p.MessageID,
		From:       p.From,
		To:         p.To,
		Cc:         p.Cc,
		Subject:    p.Subject,
		BodyText:   p.BodyText,
		BodyHTML:   p.BodyHTML,
		InReplyTo:  p.InReplyTo,
		References: p.References,
	}
	if err := m.Send(context.Background(), msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	if err := c.sess.AppendMessage(sentFolder, []imap.Flag{imap.FlagSeen}, msg.Date, mailer.Compose(msg)); err != nil {
		return fmt.Errorf("append to %s: %w", sentFolder, err)
	}
	return nil
}
