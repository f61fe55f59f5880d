package imapadapter

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// AddFlags applies the STORE +FLAGS action queue entries use for read/
// unread, starred, and similar flag mutations.
func (s *Session) AddFlags(uids []uint32, flags []imap.Flag) error {
	return s.storeFlags(uids, imap.StoreFlagsAdd, flags)
}

// RemoveFlags applies STORE -FLAGS.
func (s *Session) RemoveFlags(uids []uint32, flags []imap.Flag) error {
	return s.storeFlags(uids, imap.StoreFlagsDel, flags)
}

func (s *Session) storeFlags(uids []uint32, op imap.StoreFlagsOp, flags []imap.Flag) error {
	if len(uids) == 0 {
		return nil
	}
	uidSet := uidSetOf(uids)
	storeOptions := &imap.StoreFlags{Op: op, Flags: flags}
	fetchCmd := s.client.Store(uidSet, storeOptions, nil)
	defer fetchCmd.Close()
	for fetchCmd.Next() != nil {
	}
	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}
	return nil
}

// Move relocates messages to another mailbox, using the IMAP MOVE extension
// when advertised and falling back to COPY+STORE \Deleted+EXPUNGE otherwise.
func (s *Session) Move(uids []uint32, destMailbox string) error {
	if len(uids) == 0 {
		return nil
	}
	uidSet := uidSetOf(uids)
	if s.HasCap(imap.CapMove) {
		if _, err := s.client.Move(uidSet, destMailbox).Wait(); err != nil {
			return fmt.Errorf("move to %s: %w", destMailbox, err)
		}
		return nil
	}
	if err := s.Copy(uids, destMailbox); err != nil {
		return err
	}
	if err := s.AddFlags(uids, []imap.Flag{imap.FlagDeleted}); err != nil {
		return fmt.Errorf("mark deleted after copy: %w", err)
	}
	if err := s.client.Expunge().Close(); err != nil {
		return fmt.Errorf("expunge after move: %w", err)
	}
	return nil
}

// AppendMessage stores a raw RFC 5322 message into a mailbox, used to file a
// sent message into Sent after successful SMTP submission (no IMAP server
// does this automatically on a client's behalf).
func (s *Session) AppendMessage(mailbox string, flags []imap.Flag, date time.Time, msg []byte) error {
	options := &imap.AppendOptions{Flags: flags}
	if !date.IsZero() {
		options.Time = date
	}
	appendCmd := s.client.Append(mailbox, int64(len(msg)), options)
	if _, err := appendCmd.Write(msg); err != nil {
		return fmt.Errorf("append write: %w", err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("append close: %w", err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("append to %s: %w", mailbox, err)
	}
	return nil
}

// Copy duplicates messages into another mailbox, leaving the originals.
func (s *Session) Copy(uids []uint32, destMailbox string) error {
	if len(uids) == 0 {
		return nil
	}
	uidSet := uidSetOf(uids)
	if _, err := s.client.Copy(uidSet, destMailbox).Wait(); err != nil {
		return fmt.Errorf("copy to %s: %w", destMailbox, err)
	}
	return nil
}
