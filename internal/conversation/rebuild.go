// Package conversation rebuilds the materialized conversations view from
// the messages table (spec.md §4.6): thread detection via union-find over
// Message-ID/In-Reply-To/References, then per-conversation aggregation.
package conversation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hkdb/threadline/internal/builder"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
)

func normalizeLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// participantChange is the added/removed diff recorded on a message when
// its thread's live participant set shifts mid-conversation.
type participantChange struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Rebuild runs the full two-phase rebuild for one account: thread
// assignment writes back to messages, then conversations are replaced in
// one transaction. This is the only update mode — incremental steady-state
// sync just re-runs it (spec.md §4.6).
func Rebuild(db *store.DB, accountID string) (int, error) {
	log := logging.WithComponent("conversation")

	messages, err := db.MessagesForThreading(accountID)
	if err != nil {
		return 0, fmt.Errorf("rebuild: load messages: %w", err)
	}
	if len(messages) == 0 {
		if err := db.ReplaceConversations(accountID, nil); err != nil {
			return 0, fmt.Errorf("rebuild: clear conversations: %w", err)
		}
		return 0, nil
	}

	selfEmails, err := selfEmailsFor(db, accountID)
	if err != nil {
		return 0, err
	}

	assignments, err := assignThreads(messages, selfEmails)
	if err != nil {
		return 0, fmt.Errorf("rebuild: assign threads: %w", err)
	}

	for _, m := range messages {
		a := assignments[m.ID]
		if err := db.UpdateThreadFields(m.ID, a.threadID, a.participantKey, a.conversationID, a.participantChanges); err != nil {
			return 0, fmt.Errorf("rebuild: write thread fields for %s: %w", m.ID, err)
		}
		// Keep the in-memory copy consistent so phase 2 aggregates against
		// the freshly computed assignment rather than stale values.
		m.ThreadID = &a.threadID
		m.ParticipantKey = a.participantKey
		m.ConversationID = a.conversationID
	}

	conversations, err := aggregate(db, accountID, messages)
	if err != nil {
		return 0, fmt.Errorf("rebuild: aggregate: %w", err)
	}

	if err := db.ReplaceConversations(accountID, conversations); err != nil {
		return 0, fmt.Errorf("rebuild: replace conversations: %w", err)
	}

	log.Debug().Str("account_id", accountID).Int("messages", len(messages)).Int("conversations", len(conversations)).
		Msg("conversation rebuild complete")
	return len(conversations), nil
}

func selfEmailsFor(db *store.DB, accountID string) ([]string, error) {
	entities, err := db.ListEntitiesByTrust(accountID, store.TrustUser, store.TrustAlias)
	if err != nil {
		return nil, fmt.Errorf("self emails: %w", err)
	}
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Email)
	}
	return out, nil
}

type threadAssignment struct {
	threadID           string
	participantKey     string
	conversationID     string
	participantChanges *string
}

// assignThreads is phase 1: union-find over Message-ID/In-Reply-To/
// References, then per-thread participant aggregation and per-message
// participant-change diffing.
func assignThreads(messages []*store.Message, selfEmails []string) (map[string]threadAssignment, error) {
	uf := newUnionFind()
	for _, m := range messages {
		if m.MessageID == "" {
			continue
		}
		if m.InReplyTo != nil && *m.InReplyTo != "" {
			uf.union(m.MessageID, *m.InReplyTo)
		}
		for _, ref := range decodeStringList(m.ReferencesIDs) {
			if ref != "" {
				uf.union(m.MessageID, ref)
			}
		}
	}

	threads := make(map[string][]*store.Message)
	for _, m := range messages {
		var root string
		if m.MessageID == "" {
			root = m.ID
		} else {
			root = uf.find(m.MessageID)
		}
		threads[root] = append(threads[root], m)
	}

	out := make(map[string]threadAssignment, len(messages))
	for root, msgs := range threads {
		threadID := builder.ComputeThreadID(root)

		participants := make(map[string]struct{})
		for _, m := range msgs {
			for _, p := range collectParticipants(m, selfEmails) {
				participants[p] = struct{}{}
			}
		}
		participantKey := joinSorted(participants)
		if participantKey == "" {
			participantKey = "__self__"
		}
		conversationID := builder.ComputeConversationID(participantKey)

		sort.Slice(msgs, func(i, j int) bool { return msgs[i].Date < msgs[j].Date })

		var prev map[string]struct{}
		for i, m := range msgs {
			current := toSet(collectParticipants(m, selfEmails))
			var changesJSON *string
			if i > 0 {
				added := setDifference(current, prev)
				removed := setDifference(prev, current)
				if len(added) > 0 || len(removed) > 0 {
					b, err := json.Marshal(participantChange{Added: added, Removed: removed})
					if err != nil {
						return nil, fmt.Errorf("marshal participant changes: %w", err)
					}
					s := string(b)
					changesJSON = &s
				}
			}
			out[m.ID] = threadAssignment{
				threadID:           threadID,
				participantKey:     participantKey,
				conversationID:     conversationID,
				participantChanges: changesJSON,
			}
			prev = current
		}
	}
	return out, nil
}

func collectParticipants(m *store.Message, selfEmails []string) []string {
	selfSet := make(map[string]struct{}, len(selfEmails))
	for _, e := range selfEmails {
		selfSet[normalizeLower(e)] = struct{}{}
	}
	var out []string
	add := func(addr string) {
		addr = normalizeLower(addr)
		if addr == "" {
			return
		}
		if _, isSelf := selfSet[addr]; isSelf {
			return
		}
		out = append(out, addr)
	}
	add(m.FromAddress)
	for _, a := range decodeStringList(m.ToAddresses) {
		add(a)
	}
	for _, a := range decodeStringList(m.CcAddresses) {
		add(a)
	}
	return out
}

func decodeStringList(jsonStr string) []string {
	if jsonStr == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(jsonStr), &out)
	return out
}

func toSet(addrs []string) map[string]struct{} {
	s := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		s[a] = struct{}{}
	}
	return s
}

func setDifference(a, b map[string]struct{}) []string {
	var out []string
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func joinSorted(set map[string]struct{}) string {
	if len(set) == 0 {
		return ""
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	result := out[0]
	for _, k := range out[1:] {
		result += "\n" + k
	}
	return result
}
