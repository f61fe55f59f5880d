// Package builder turns a parsed IMAP envelope into the canonical message
// row the rest of the engine operates on (spec.md §4.3): addresses
// lowercased and sorted, flags sorted, participant key and conversation id
// derived, dates parsed tolerantly.
package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/google/uuid"
	"github.com/hkdb/threadline/internal/imapadapter"
	"github.com/hkdb/threadline/internal/store"
)

// imapDateLayout is the IMAP internaldate format, used as a fallback when a
// Date header doesn't parse as RFC 2822.
const imapDateLayout = "02-Jan-2006 15:04:05 -0700"

// Input is everything one raw fetched message needs to become a canonical
// Message row.
type Input struct {
	AccountID   string
	Folder      string
	Raw         imapadapter.RawMessage
	References  []string
	BodyText    *string
	BodyHTML    *string
	SelfEmails  []string
}

// Build produces a canonical store.Message from a raw fetched envelope.
func Build(in Input) *store.Message {
	env := in.Raw.Envelope

	from := firstAddress(env)
	fromEmail := normalizeEmail(from.Mailbox, from.Host)
	fromName := nonEmptyPtr(from.Name)

	to := addressList(envAddresses(env, addressTo))
	cc := addressList(envAddresses(env, addressCc))
	bcc := addressList(envAddresses(env, addressBcc))

	participantKey := ComputeParticipantKey(fromEmail, to, cc, in.SelfEmails)
	conversationID := ComputeConversationID(participantKey)

	flags := mergeGmailLabels(flagStrings(in.Raw.Flags), in.Raw.GmailLabels)
	isImportant := containsFlag(flags, "Important")

	var subject *string
	if env != nil && env.Subject != "" {
		s := env.Subject
		subject = &s
	}

	var messageID string
	if env != nil {
		messageID = strings.Trim(env.MessageID, "<>")
	}

	var inReplyTo *string
	if env != nil && env.InReplyTo != "" {
		v := strings.Trim(env.InReplyTo, "<>")
		inReplyTo = &v
	}

	refs := make([]string, 0, len(in.References))
	for _, r := range in.References {
		refs = append(refs, strings.Trim(r, "<>"))
	}

	var date int64
	if env != nil && !env.Date.IsZero() {
		date = env.Date.UnixMilli()
	}
	if date == 0 && !in.Raw.InternalDate.IsZero() {
		date = in.Raw.InternalDate.UnixMilli()
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		AccountID:      in.AccountID,
		MessageID:      messageID,
		UID:            in.Raw.UID,
		Folder:         in.Folder,
		Date:           date,
		FromAddress:    fromEmail,
		FromName:       fromName,
		ToAddresses:    toJSONSorted(to),
		CcAddresses:    toJSONSorted(cc),
		BccAddresses:   toJSONSorted(bcc),
		Subject:        subject,
		BodyText:       in.BodyText,
		BodyHTML:       in.BodyHTML,
		HasAttachments: in.Raw.HasAttachments,
		InReplyTo:      inReplyTo,
		ReferencesIDs:  toJSONSorted(nil, refs),
		IMAPFlags:      toJSONSorted(flags),
		IsImportant:    isImportant,
		FetchedAt:      time.Now().UnixMilli(),
		ParticipantKey: participantKey,
		ConversationID: conversationID,
	}
	if in.Raw.Size > 0 {
		size := in.Raw.Size
		msg.SizeBytes = &size
	}
	return msg
}

// ComputeParticipantKey implements spec.md §4.3 step 4: union of from/to/cc,
// lowercased, self-addresses removed, sorted, deduplicated, newline-joined.
// Empty yields the literal "__self__".
func ComputeParticipantKey(from string, to, cc, selfEmails []string) string {
	selfSet := make(map[string]struct{}, len(selfEmails))
	for _, e := range selfEmails {
		selfSet[strings.ToLower(e)] = struct{}{}
	}

	seen := make(map[string]struct{})
	var participants []string
	add := func(addr string) {
		addr = strings.ToLower(strings.TrimSpace(addr))
		if addr == "" {
			return
		}
		if _, isSelf := selfSet[addr]; isSelf {
			return
		}
		if _, dup := seen[addr]; dup {
			return
		}
		seen[addr] = struct{}{}
		participants = append(participants, addr)
	}

	add(from)
	for _, a := range to {
		add(a)
	}
	for _, a := range cc {
		add(a)
	}

	if len(participants) == 0 {
		return "__self__"
	}
	sort.Strings(participants)
	return strings.Join(participants, "\n")
}

// ComputeConversationID is the first 16 hex chars of SHA-256(participantKey).
func ComputeConversationID(participantKey string) string {
	return shortHash(participantKey)
}

// ComputeThreadID is the first 16 hex chars of SHA-256(threadRootID), used
// by internal/conversation once it has resolved each message's thread root.
func ComputeThreadID(threadRootID string) string {
	return shortHash(threadRootID)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

// ParseDateHeader parses a raw Date header value the way spec.md §4.3 step 6
// requires: RFC 2822 first, then the IMAP internaldate format, else 0. The
// go-imap ENVELOPE response already parses Date for us (used in Build
// above); this is kept for callers working from a raw header string, such as
// a re-parse of a malformed envelope.
func ParseDateHeader(raw string) int64 {
	if t, err := time.Parse(time.RFC1123Z, raw); err == nil {
		return t.UnixMilli()
	}
	if t, err := time.Parse(time.RFC1123, raw); err == nil {
		return t.UnixMilli()
	}
	if t, err := time.Parse(imapDateLayout, raw); err == nil {
		return t.UnixMilli()
	}
	return 0
}

// flagStrings renders flags in their canonical IMAP atom form (e.g. \Seen,
// \Flagged, or a bare keyword) — go-imap already hands these back verbatim,
// so no further normalization is needed beyond the string conversion.
func flagStrings(flags []imap.Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, string(f))
	}
	return out
}

// knownGmailSystemLabels are the X-GM-LABELS system labels that alias an
// IMAP flag or mailbox rather than naming a real user label.
var knownGmailSystemLabels = map[string]struct{}{
	"\\Inbox": {}, "\\Sent": {}, "\\Trash": {}, "\\Spam": {},
	"\\Draft": {}, "\\Starred": {}, "\\Important": {},
}

// mergeGmailLabels folds X-GM-LABELS into the flag list (SPEC_FULL.md's
// open-question decision): known system labels lose their leading
// backslash so they read as plain words rather than clashing with IMAP's
// own backslash-prefixed flags; unrecognized (user) labels are kept
// byte-for-byte.
func mergeGmailLabels(flags, labels []string) []string {
	out := append([]string{}, flags...)
	for _, l := range labels {
		if _, known := knownGmailSystemLabels[l]; known {
			out = append(out, strings.TrimPrefix(l, "\\"))
			continue
		}
		out = append(out, l)
	}
	return out
}

// containsFlag reports whether name appears in flags.
func containsFlag(flags []string, name string) bool {
	for _, f := range flags {
		if f == name {
			return true
		}
	}
	return false
}

// MergedFlags folds a fresh flag fetch's IMAP flags and Gmail labels into
// the same merged representation Build uses, before sorting/JSON-encoding —
// for callers (steady-state's flag_resync) that need both the JSON form for
// storage and the Important check from one fetch.
func MergedFlags(flags []imap.Flag, gmailLabels []string) []string {
	return mergeGmailLabels(flagStrings(flags), gmailLabels)
}

// CanonicalFlags renders the same Gmail-label-merged, sorted JSON flag
// representation Build uses, for callers that only have a fresh flag fetch
// and need a value comparable against a stored IMAPFlags column.
func CanonicalFlags(flags []imap.Flag, gmailLabels []string) string {
	return toJSONSorted(MergedFlags(flags, gmailLabels))
}

// IsImportantFlag reports whether a merged flag list (as produced by
// MergedFlags) carries the Gmail Important label.
func IsImportantFlag(flags []string) bool {
	return containsFlag(flags, "Important")
}

func toJSONSorted(lists ...[]string) string {
	var all []string
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.Strings(all)
	if all == nil {
		all = []string{}
	}
	b, _ := json.Marshal(all)
	return string(b)
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type addrKind int

const (
	addressTo addrKind = iota
	addressCc
	addressBcc
)

func envAddresses(env *imap.Envelope, kind addrKind) []imap.Address {
	if env == nil {
		return nil
	}
	switch kind {
	case addressTo:
		return env.To
	case addressCc:
		return env.Cc
	case addressBcc:
		return env.Bcc
	}
	return nil
}

func firstAddress(env *imap.Envelope) imap.Address {
	if env == nil || len(env.From) == 0 {
		return imap.Address{}
	}
	return env.From[0]
}

func normalizeEmail(mailbox, host string) string {
	if mailbox == "" && host == "" {
		return ""
	}
	return strings.ToLower(mailbox + "@" + host)
}

func addressList(addrs []imap.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, normalizeEmail(a.Mailbox, a.Host))
	}
	return out
}
