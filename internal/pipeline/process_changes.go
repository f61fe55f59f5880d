// Package pipeline implements process_changes (spec.md §4.8): classify any
// unprocessed message, distill previews, then rebuild conversations. Both
// onboarding and steady-state tasks run this after every batch so the UI
// sees steady progress.
package pipeline

import (
	"encoding/json"
	"time"

	"github.com/hkdb/threadline/internal/classifier"
	"github.com/hkdb/threadline/internal/conversation"
	"github.com/hkdb/threadline/internal/distiller"
	"github.com/hkdb/threadline/internal/events"
	"github.com/hkdb/threadline/internal/logging"
	"github.com/hkdb/threadline/internal/store"
)

// unprocessedBatchSize bounds one classify+distill pass so process_changes
// stays a bounded unit of work like every other batch in the tick loop.
const unprocessedBatchSize = 200

// ProcessChanges classifies and distills up to unprocessedBatchSize of an
// account's unprocessed messages (oldest first), then rebuilds its conversations, emitting progress events along
// the way. Returns the number of conversations after rebuild.
func ProcessChanges(db *store.DB, accountID string, emitter events.Emitter) (int, error) {
	log := logging.WithComponent("pipeline")
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	emitter.EmitStatus(events.Status{Phase: events.PhaseClassifying, Message: "classifying messages"})
	messages, err := db.UnprocessedMessages(accountID, unprocessedBatchSize)
	if err != nil {
		return 0, err
	}

	now := time.Now().UnixMilli()
	for _, m := range messages {
		trust, err := db.TrustLevelOf(accountID, m.FromAddress)
		if err != nil {
			return 0, err
		}

		result := classifier.Classify(classifier.Input{
			FromAddress: m.FromAddress,
			Subject:     stringOrEmpty(m.Subject),
			InReplyTo:   stringOrEmpty(m.InReplyTo),
			References:  decodeStringList(m.ReferencesIDs),
			BodyText:    stringOrEmpty(m.BodyText),
			SenderTrust: trustLevelOf(trust),
		})

		emitter.EmitStatus(events.Status{Phase: events.PhaseDistilling, Message: "distilling message preview"})
		distilled := previewFor(m)

		if err := db.MarkProcessed(m.ID, string(result.Classification), m.IsImportant, distilled, now); err != nil {
			return 0, err
		}
	}

	if len(messages) > 0 {
		log.Debug().Str("account_id", accountID).Int("count", len(messages)).Msg("classified and distilled batch")
	}

	emitter.EmitStatus(events.Status{Phase: events.PhaseRebuilding, Message: "rebuilding conversations"})
	count, err := conversation.Rebuild(db, accountID)
	if err != nil {
		return 0, err
	}
	emitter.EmitConversationsUpdated(events.ConversationsUpdated{AccountID: accountID, Count: count})
	return count, nil
}

func previewFor(m *store.Message) string {
	switch {
	case m.BodyText != nil && *m.BodyText != "":
		return distiller.Distill(*m.BodyText, distiller.DefaultMaxLen)
	case m.BodyHTML != nil && *m.BodyHTML != "":
		return distiller.FromHTML(*m.BodyHTML, distiller.DefaultMaxLen)
	default:
		return ""
	}
}

func trustLevelOf(level string) classifier.TrustLevel {
	switch level {
	case store.TrustUser, store.TrustAlias:
		return classifier.TrustUserOrAlias
	case store.TrustContact:
		return classifier.TrustContactLevel
	case store.TrustConnection:
		return classifier.TrustConnectionLevel
	default:
		return classifier.TrustNone
	}
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func decodeStringList(jsonStr string) []string {
	if jsonStr == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return nil
	}
	return out
}
