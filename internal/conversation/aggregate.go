package conversation

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hkdb/threadline/internal/classifier"
	"github.com/hkdb/threadline/internal/distiller"
	"github.com/hkdb/threadline/internal/store"
)

// builderState accumulates per-conversation aggregates across messages,
// mirroring phase 2's SQL aggregation (spec.md §4.6).
type builderState struct {
	accountID          string
	participantKey     string
	participantNames   map[string]string // address -> most-recent non-null from_name
	lastMessageDate    int64
	lastMessageSubject *string
	lastMessageBody    *string
	unreadCount        int
	totalCount         int
	hasChat            bool
	hasTrusted         bool
	hasImportant       bool
}

// aggregate is phase 2: group the (already thread-assigned) messages by
// conversation_id and build one Conversation row per group.
func aggregate(db *store.DB, accountID string, messages []*store.Message) ([]*store.Conversation, error) {
	states := make(map[string]*builderState)
	order := make([]string, 0)

	trustCache := make(map[string]string)
	trustOf := func(addr string) (string, error) {
		if addr == "" {
			return "", nil
		}
		if level, ok := trustCache[addr]; ok {
			return level, nil
		}
		level, err := db.TrustLevelOf(accountID, addr)
		if err != nil {
			return "", err
		}
		trustCache[addr] = level
		return level, nil
	}

	for _, m := range messages {
		st, ok := states[m.ConversationID]
		if !ok {
			st = &builderState{
				accountID:        accountID,
				participantKey:   m.ParticipantKey,
				participantNames: make(map[string]string),
			}
			states[m.ConversationID] = st
			order = append(order, m.ConversationID)
		}

		st.totalCount++
		if !hasFlag(m.IMAPFlags, "\\Seen") {
			st.unreadCount++
		}
		if m.IsImportant {
			st.hasImportant = true
		}

		if m.FromAddress != "" && m.FromName != nil && *m.FromName != "" {
			st.participantNames[m.FromAddress] = *m.FromName
		}

		level, err := trustOf(m.FromAddress)
		if err != nil {
			return nil, fmt.Errorf("trust lookup for %s: %w", m.FromAddress, err)
		}
		if level == store.TrustContact || level == store.TrustConnection {
			st.hasTrusted = true
		}

		class := messageClassification(m)
		if class == classifier.Chat {
			st.hasChat = true
		}

		if m.Date >= st.lastMessageDate {
			st.lastMessageDate = m.Date
			st.lastMessageSubject = m.Subject
			st.lastMessageBody = previewBody(m)
		}
	}

	out := make([]*store.Conversation, 0, len(order))
	now := time.Now().UnixMilli()
	for _, convID := range order {
		st := states[convID]

		namesJSON, err := json.Marshal(st.participantNames)
		if err != nil {
			return nil, fmt.Errorf("marshal participant names: %w", err)
		}

		var preview *string
		switch {
		case st.lastMessageSubject != nil && *st.lastMessageSubject != "":
			preview = st.lastMessageSubject
		case st.lastMessageBody != nil:
			preview = st.lastMessageBody
		}

		class := store.ClassAutomated
		switch {
		case st.hasChat && st.hasTrusted:
			class = store.ClassConnections
		case st.hasChat:
			class = store.ClassOthers
		}

		out = append(out, &store.Conversation{
			ID:                 convID,
			AccountID:          accountID,
			ParticipantKey:     st.participantKey,
			ParticipantNames:   string(namesJSON),
			Classification:     class,
			LastMessageDate:    st.lastMessageDate,
			LastMessagePreview: preview,
			UnreadCount:        st.unreadCount,
			TotalCount:         st.totalCount,
			IsImportant:        st.hasImportant,
			UpdatedAt:          now,
		})
	}
	return out, nil
}

// messageClassification prefers the cached classifier verdict but falls
// back to a live classification for rows that haven't been processed yet
// (e.g. mid-onboarding, before skill_classify or the initial pass runs).
func messageClassification(m *store.Message) classifier.Classification {
	if m.Classification != nil && *m.Classification != "" {
		return classifier.Classification(*m.Classification)
	}
	result := classifier.Classify(classifier.Input{
		FromAddress: m.FromAddress,
		Subject:     stringOrEmpty(m.Subject),
		InReplyTo:   stringOrEmpty(m.InReplyTo),
		BodyText:    stringOrEmpty(m.BodyText),
		References:  decodeStringList(m.ReferencesIDs),
	})
	return result.Classification
}

func previewBody(m *store.Message) *string {
	if m.DistilledText != nil && *m.DistilledText != "" {
		return m.DistilledText
	}
	switch {
	case m.BodyText != nil && *m.BodyText != "":
		s := distiller.Distill(*m.BodyText, distiller.DefaultMaxLen)
		return &s
	case m.BodyHTML != nil && *m.BodyHTML != "":
		s := distiller.FromHTML(*m.BodyHTML, distiller.DefaultMaxLen)
		return &s
	default:
		return nil
	}
}

func hasFlag(flagsJSON, flag string) bool {
	for _, f := range decodeStringList(flagsJSON) {
		if f == flag {
			return true
		}
	}
	return false
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
