// Package classifier assigns one of {chat, newsletter, automated,
// transactional, unknown} to a message from weighted signals across six
// analysis tiers (spec.md §4.4). The keyword and domain tables below are
// reproduced verbatim from the source classifier; they are most of this
// package's correctness.
package classifier

import (
	"strings"
)

type Classification string

const (
	Chat          Classification = "chat"
	Newsletter    Classification = "newsletter"
	Automated     Classification = "automated"
	Transactional Classification = "transactional"
	Unknown       Classification = "unknown"
)

// TrustLevel is the sender's standing in the trust network (spec.md §4.2),
// fed in by the caller rather than looked up here — this package has no
// store dependency.
type TrustLevel int

const (
	TrustNone TrustLevel = iota
	TrustUserOrAlias
	TrustContactLevel
	TrustConnectionLevel
)

// Headers carries the subset of RFC headers that sharpen classification
// when the caller has them available (not every fetch path parses full
// headers). A nil Headers means Tier 1 is skipped.
type Headers struct {
	AutoSubmitted   string
	HasListID       bool
	HasListUnsub    bool
	HasFeedbackID   bool
	Precedence      string
	XMailer         string
	ReturnPath      string
}

// Input is everything the classifier needs for one message.
type Input struct {
	FromAddress string
	Subject     string
	InReplyTo   string
	References  []string
	BodyText    string
	SenderTrust TrustLevel
	Headers     *Headers
}

// Result is the classification outcome plus the reasons that produced it,
// kept for diagnostics and surfaced nowhere user-facing today.
type Result struct {
	Classification Classification
	Confidence     float64
	Reasons        []string
}

type signal struct {
	class  Classification
	weight float64
	reason string
}

// Classify runs all six tiers and aggregates their signals.
func Classify(in Input) Result {
	var signals []signal

	fromLower := strings.ToLower(in.FromAddress)
	subjectLower := strings.ToLower(in.Subject)

	if in.Headers != nil {
		analyzeHeaders(in.Headers, &signals)
	}
	analyzeSender(fromLower, &signals)
	analyzeTrust(in.SenderTrust, &signals)
	if subjectLower != "" {
		analyzeSubject(subjectLower, &signals)
	}
	if in.BodyText != "" {
		analyzeContent(strings.ToLower(in.BodyText), &signals)
	}
	analyzeThreading(in.InReplyTo, in.References, &signals)

	return aggregate(signals)
}

// -- Tier 1: RFC headers -----------------------------------------------

func analyzeHeaders(h *Headers, out *[]signal) {
	if h.AutoSubmitted != "" && strings.ToLower(h.AutoSubmitted) != "no" {
		*out = append(*out, signal{Automated, 1.5, "Auto-Submitted: " + h.AutoSubmitted})
		return
	}
	if h.HasListID {
		*out = append(*out, signal{Newsletter, 1.5, "List-Id header present (RFC 2919)"})
	}
	if h.HasListUnsub {
		*out = append(*out, signal{Newsletter, 1.2, "List-Unsubscribe header present (RFC 2369)"})
	}
	if h.HasFeedbackID {
		*out = append(*out, signal{Newsletter, 1.0, "Feedback-ID header present (bulk sender)"})
	}
	switch strings.ToLower(strings.TrimSpace(h.Precedence)) {
	case "bulk", "list":
		*out = append(*out, signal{Newsletter, 1.0, "Precedence: " + h.Precedence})
	case "junk":
		*out = append(*out, signal{Automated, 0.8, "Precedence: junk"})
	}
	if h.XMailer != "" {
		m := strings.ToLower(h.XMailer)
		for _, name := range marketingMailers {
			if strings.Contains(m, name) {
				*out = append(*out, signal{Newsletter, 0.8, "X-Mailer indicates marketing platform: " + h.XMailer})
				break
			}
		}
	}
	if h.ReturnPath != "" {
		rp := strings.ToLower(h.ReturnPath)
		if strings.Contains(rp, "bounce") || strings.Contains(rp, "noreply") {
			*out = append(*out, signal{Automated, 0.5, "Return-Path suggests automated sender"})
		}
	}
}

// -- Tier 2: sender ------------------------------------------------------

func analyzeSender(fromLower string, out *[]signal) {
	if automatedSenders[fromLower] {
		*out = append(*out, signal{Automated, 1.3, "Known automated sender: " + fromLower})
		return
	}

	local := fromLower
	if i := strings.Index(fromLower, "@"); i >= 0 {
		local = fromLower[:i]
	}
	for _, pattern := range noreplyLocalParts {
		if strings.Contains(local, pattern) {
			*out = append(*out, signal{Automated, 0.7, "Sender local part matches noreply pattern: " + pattern})
			break
		}
	}

	domain := fromLower
	if i := strings.LastIndex(fromLower, "@"); i >= 0 {
		domain = fromLower[i+1:]
	}
	switch {
	case domainMatches(domain, marketingESPDomains):
		*out = append(*out, signal{Newsletter, 1.0, "From domain matches marketing ESP: " + domain})
	case domainMatches(domain, transactionalESPDomains):
		*out = append(*out, signal{Transactional, 0.7, "From domain matches transactional ESP: " + domain})
	case domainMatches(domain, mixedESPDomains):
		*out = append(*out, signal{Newsletter, 0.3, "From domain matches mixed-use ESP: " + domain})
	}
}

func domainMatches(domain string, set map[string]bool) bool {
	if set[domain] {
		return true
	}
	for known := range set {
		if strings.HasSuffix(domain, "."+known) {
			return true
		}
	}
	return false
}

// -- Tier 3: trust network -----------------------------------------------

func analyzeTrust(trust TrustLevel, out *[]signal) {
	switch trust {
	case TrustConnectionLevel:
		*out = append(*out, signal{Chat, 1.5, "Sender is a known connection (sent folder scan)"})
	case TrustContactLevel:
		*out = append(*out, signal{Chat, 1.2, "Sender is a known contact"})
	}
}

// -- Tier 4: subject ------------------------------------------------------

func analyzeSubject(subjectLower string, out *[]signal) {
	for _, kw := range transactionalSubjectKeywords {
		if strings.Contains(subjectLower, kw) {
			*out = append(*out, signal{Transactional, 0.7, "Subject contains transactional keyword: " + kw})
			break
		}
	}
	for _, kw := range automatedSubjectKeywords {
		if strings.Contains(subjectLower, kw) {
			*out = append(*out, signal{Automated, 0.6, "Subject contains automated keyword: " + kw})
			break
		}
	}
	for _, kw := range newsletterSubjectKeywords {
		if strings.Contains(subjectLower, kw) {
			*out = append(*out, signal{Newsletter, 0.5, "Subject contains newsletter keyword: " + kw})
			break
		}
	}
	for _, prefix := range calendarPrefixes {
		if strings.HasPrefix(subjectLower, prefix) {
			*out = append(*out, signal{Automated, 0.9, "Calendar event format: starts with " + prefix})
			break
		}
	}
	if bracketPos := strings.Index(subjectLower, "]"); strings.HasPrefix(subjectLower, "[") && bracketPos > 1 && bracketPos < 60 {
		after := subjectLower[bracketPos+1:]
		for _, verb := range notificationVerbs {
			if strings.Contains(after, verb) {
				*out = append(*out, signal{Automated, 0.7, "Bracketed prefix with notification verb: " + verb})
				break
			}
		}
	}
}

// -- Tier 5: content ------------------------------------------------------

func analyzeContent(textLower string, out *[]signal) {
	if strings.Contains(textLower, "unsubscribe") || strings.Contains(textLower, "opt-out") ||
		strings.Contains(textLower, "opt out") || strings.Contains(textLower, "email preferences") ||
		strings.Contains(textLower, "manage your subscription") {
		*out = append(*out, signal{Newsletter, 0.6, "Body contains unsubscribe/opt-out language"})
	}
	if strings.Contains(textLower, "view in browser") || strings.Contains(textLower, "view this email in") ||
		strings.Contains(textLower, "view as a web") {
		*out = append(*out, signal{Newsletter, 0.5, "Body contains \"view in browser\" text"})
	}
	for _, phrase := range transactionalPhrases {
		if strings.Contains(textLower, phrase) {
			*out = append(*out, signal{Transactional, 0.5, "Body contains transactional phrase: " + phrase})
			break
		}
	}
}

// -- Tier 6: threading -----------------------------------------------------

func analyzeThreading(inReplyTo string, references []string, out *[]signal) {
	if inReplyTo != "" {
		*out = append(*out, signal{Chat, 0.8, "Message is a reply (In-Reply-To header present)"})
	}
	switch {
	case len(references) >= 3:
		*out = append(*out, signal{Chat, 1.0, "Deep conversation thread"})
	case len(references) >= 1:
		*out = append(*out, signal{Chat, 0.5, "Part of a conversation thread"})
	}
}

// -- Aggregation -----------------------------------------------------------

// classOrder breaks ties deterministically in favor of Chat, matching
// spec.md §4.4's classifier bias.
var classOrder = []Classification{Chat, Automated, Newsletter, Transactional, Unknown}

type scoredClass struct {
	class Classification
	score float64
}

func aggregate(signals []signal) Result {
	if len(signals) == 0 {
		return Result{
			Classification: Chat,
			Confidence:     0.52,
			Reasons:        []string{"No classification signals detected; defaulting to chat"},
		}
	}

	totals := make(map[Classification]float64)
	reasons := make([]string, 0, len(signals))
	for _, s := range signals {
		totals[s.class] += s.weight
		reasons = append(reasons, s.reason)
	}

	ranked := make([]scoredClass, 0, len(totals))
	for _, class := range classOrder {
		if score, ok := totals[class]; ok {
			ranked = append(ranked, scoredClass{class, score})
		}
	}
	// classOrder already lists Chat first, so a stable sort on score alone
	// keeps Chat as the tie-break winner among equal scores.
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && ranked[j].score > ranked[j-1].score; j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}

	winner := ranked[0].class
	winnerScore := ranked[0].score
	var runnerUpScore float64
	if len(ranked) > 1 {
		runnerUpScore = ranked[1].score
	}

	margin := winnerScore - runnerUpScore
	var confidence float64
	switch {
	case margin > 2.0:
		confidence = 0.95
	case margin > 1.2:
		confidence = 0.88
	case margin > 0.7:
		confidence = 0.78
	case margin > 0.3:
		confidence = 0.65
	default:
		confidence = 0.52
	}

	return Result{Classification: winner, Confidence: confidence, Reasons: reasons}
}
