package imapadapter

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// SearchUIDsSince is the historical_fetch window search: SINCE <date>,
// bounded to the 365-day lookback spec.md §4.8 specifies.
func (s *Session) SearchUIDsSince(since time.Time) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Since: since,
	}
	return s.runUIDSearch(criteria)
}

// SearchUIDsAfter is the incremental_sync search: every UID greater than the
// last seen UID, expressed as the range highest_uid+1:*.
func (s *Session) SearchUIDsAfter(highestUID uint32) ([]uint32, error) {
	uidSet := imap.UIDSet{}
	uidSet.AddRange(imap.UID(highestUID+1), 0)
	data, err := s.client.UIDSearch(&imap.SearchCriteria{UID: []imap.UIDSet{uidSet}}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("search after uid %d: %w", highestUID, err)
	}
	// "*" is the largest UID in the mailbox, so highest_uid+1:* still matches
	// that message when nothing newer exists; drop anything not above it.
	out := make([]uint32, 0, len(data.AllUIDs()))
	for _, u := range data.AllUIDs() {
		if uint32(u) > highestUID {
			out = append(out, uint32(u))
		}
	}
	return out, nil
}

// SearchConnectionHistory is connection_history's unbounded search: OR FROM
// <addr> TO <addr>, with no date bound (spec.md §9's documented asymmetry
// against historical_fetch's 365-day window).
func (s *Session) SearchConnectionHistory(address string) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Or: [][2]imap.SearchCriteria{
			{
				{Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: address}}},
				{Header: []imap.SearchCriteriaHeaderField{{Key: "To", Value: address}}},
			},
		},
	}
	return s.runUIDSearch(criteria)
}

// SearchByMessageID finds messages in the selected mailbox carrying the given
// Message-Id header, the action queue's guard against re-sending a message
// whose Send action already succeeded on a previous dispatch attempt.
func (s *Session) SearchByMessageID(messageID string) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{{Key: "Message-Id", Value: messageID}},
	}
	return s.runUIDSearch(criteria)
}

func (s *Session) runUIDSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return toUint32s(data.AllUIDs()), nil
}

func toUint32s(uids []imap.UID) []uint32 {
	out := make([]uint32, len(uids))
	for i, u := range uids {
		out[i] = uint32(u)
	}
	return out
}
