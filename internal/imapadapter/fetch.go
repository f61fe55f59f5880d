package imapadapter

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// MaxMessageSize caps how much of a single BODY[] literal gets read into
// memory, guarding against a server advertising an implausible RFC822Size.
const MaxMessageSize = 32 << 20 // 32 MiB

// RawMessage is everything round trip 1 of the three-round-trip fetch
// pattern (spec.md §4.8) produces for one UID.
type RawMessage struct {
	UID            uint32
	Envelope       *imap.Envelope
	Flags          []imap.Flag
	GmailLabels    []string
	InternalDate   time.Time
	Size           int64
	TextPart       *textPartInfo
	HTMLPart       *textPartInfo
	HasAttachments bool
}

// TextPath and HTMLPath expose just the BODYSTRUCTURE path of each leaf, for
// callers (FetchBodyParts) that only need to request the section.
func (rm RawMessage) TextPath() []int {
	if rm.TextPart == nil {
		return nil
	}
	return rm.TextPart.Path
}

func (rm RawMessage) HTMLPath() []int {
	if rm.HTMLPart == nil {
		return nil
	}
	return rm.HTMLPart.Path
}

// FetchEnvelopes is round trip 1: (UID FLAGS ENVELOPE BODYSTRUCTURE
// [X-GM-LABELS]). Per-item parse failures are logged and skipped by the
// caller rather than aborting the batch (C2's tolerant collection policy,
// spec.md §7).
func (s *Session) FetchEnvelopes(uids []uint32) ([]RawMessage, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	uidSet := uidSetOf(uids)

	options := &imap.FetchOptions{
		UID:           true,
		Flags:         true,
		Envelope:      true,
		BodyStructure: &imap.FetchItemBodyStructure{},
		InternalDate:  true,
		RFC822Size:    true,
	}
	if s.SupportsGmailExt() {
		options.GmailLabels = true
	}

	fetchCmd := s.client.Fetch(uidSet, options)
	defer fetchCmd.Close()

	var out []RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		rm := RawMessage{}
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				rm.UID = uint32(data.UID)
			case imapclient.FetchItemDataEnvelope:
				rm.Envelope = data.Envelope
			case imapclient.FetchItemDataFlags:
				rm.Flags = data.Flags
			case imapclient.FetchItemDataInternalDate:
				rm.InternalDate = data.Time
			case imapclient.FetchItemDataRFC822Size:
				rm.Size = data.Size
			case imapclient.FetchItemDataBodyStructure:
				if data.BodyStructure != nil {
					rm.TextPart, rm.HTMLPart, rm.HasAttachments = selectTextParts(data.BodyStructure)
				}
			case imapclient.FetchItemDataGmailLabels:
				rm.GmailLabels = data.Labels
			}
		}
		if rm.UID == 0 {
			s.log.Warn().Msg("envelope fetch returned item with no UID, skipping")
			continue
		}
		out = append(out, rm)
	}
	return out, nil
}

// FetchReferences is round trip 2: (UID BODY.PEEK[HEADER.FIELDS
// (References)]), returning the raw unfolded header text per UID.
func (s *Session) FetchReferences(uids []uint32) (map[uint32]string, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	uidSet := uidSetOf(uids)

	options := &imap.FetchOptions{
		UID: true,
		BodySection: []*imap.FetchItemBodySection{
			{Specifier: imap.PartSpecifierHeader, HeaderFields: []string{"References"}, Peek: true},
		},
	}

	fetchCmd := s.client.Fetch(uidSet, options)
	defer fetchCmd.Close()

	out := make(map[uint32]string)
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		var uid uint32
		var text string
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				uid = uint32(data.UID)
			case imapclient.FetchItemDataBodySection:
				if data.Literal != nil {
					raw, err := io.ReadAll(io.LimitReader(data.Literal, MaxMessageSize))
					if err != nil {
						s.log.Warn().Err(err).Msg("failed to read references header, skipping item")
						continue
					}
					text = string(raw)
				}
			}
		}
		if uid != 0 {
			out[uid] = text
		}
	}
	return out, nil
}

// FetchBodyParts is round trip 3: for each distinct BODYSTRUCTURE path seen
// in the batch, (UID BODY.PEEK[<path>]). It fetches every requested path for
// every UID in one command and returns raw bytes keyed by (uid, path).
func (s *Session) FetchBodyParts(uids []uint32, paths [][]int) (map[uint32]map[string][]byte, error) {
	if len(uids) == 0 || len(paths) == 0 {
		return nil, nil
	}
	uidSet := uidSetOf(uids)

	sections := make([]*imap.FetchItemBodySection, 0, len(paths))
	specs := make([]string, 0, len(paths))
	for _, p := range paths {
		spec := pathSpecifier(p)
		specs = append(specs, spec)
		part := p
		if len(part) == 0 {
			// A single-part message's body is section 1; an empty Part
			// would request BODY[], the whole message with its headers.
			part = []int{1}
		}
		sections = append(sections, &imap.FetchItemBodySection{Part: part, Peek: true})
	}

	options := &imap.FetchOptions{UID: true, BodySection: sections}
	fetchCmd := s.client.Fetch(uidSet, options)
	defer fetchCmd.Close()

	out := make(map[uint32]map[string][]byte)
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		var uid uint32
		parts := make(map[string][]byte)
		sectionIdx := 0
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				uid = uint32(data.UID)
			case imapclient.FetchItemDataBodySection:
				if data.Literal == nil {
					sectionIdx++
					continue
				}
				raw, err := io.ReadAll(io.LimitReader(data.Literal, MaxMessageSize))
				if err != nil {
					s.log.Warn().Err(err).Msg("failed to read body part, skipping item")
					sectionIdx++
					continue
				}
				spec := specFor(specs, sectionIdx, data)
				parts[spec] = raw
				sectionIdx++
			}
		}
		if uid != 0 {
			out[uid] = parts
		}
	}
	return out, nil
}

// specFor recovers which requested section a streamed body-section item
// corresponds to. go-imap v2 echoes the requested Section back on the
// FetchItemDataBodySection, which is the authoritative match; the running
// index is only a fallback for servers that omit it.
func specFor(specs []string, fallbackIdx int, data imapclient.FetchItemDataBodySection) string {
	if data.Section != nil {
		return pathSpecifier(data.Section.Part)
	}
	if fallbackIdx < len(specs) {
		return specs[fallbackIdx]
	}
	return fmt.Sprintf("%d", fallbackIdx+1)
}

// FetchFlags is the batched flag-resync fetch: (UID FLAGS [X-GM-LABELS]).
// FlagSnapshot is one UID's current flags, plus its Gmail labels when the
// server supports the extension (nil otherwise).
type FlagSnapshot struct {
	Flags       []imap.Flag
	GmailLabels []string
}

func (s *Session) FetchFlags(uids []uint32) (map[uint32]FlagSnapshot, error) {
	if len(uids) == 0 {
		return nil, nil
	}
	uidSet := uidSetOf(uids)
	options := &imap.FetchOptions{UID: true, Flags: true}
	if s.SupportsGmailExt() {
		options.GmailLabels = true
	}

	fetchCmd := s.client.Fetch(uidSet, options)
	defer fetchCmd.Close()

	out := make(map[uint32]FlagSnapshot)
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		var uid uint32
		var snap FlagSnapshot
		for {
			item := msg.Next()
			if item == nil {
				break
			}
			switch data := item.(type) {
			case imapclient.FetchItemDataUID:
				uid = uint32(data.UID)
			case imapclient.FetchItemDataFlags:
				snap.Flags = data.Flags
			case imapclient.FetchItemDataGmailLabels:
				snap.GmailLabels = data.Labels
			}
		}
		if uid != 0 {
			out[uid] = snap
		}
	}
	return out, nil
}

func uidSetOf(uids []uint32) imap.UIDSet {
	set := imap.UIDSet{}
	for _, u := range uids {
		set.AddNum(imap.UID(u))
	}
	return set
}
