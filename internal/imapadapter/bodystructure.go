package imapadapter

import (
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
)

// bodyPart is one leaf MIME part worth fetching: a text/plain or text/html
// part, or anything that counts as an attachment.
type bodyPart struct {
	Path       []int
	MediaType  string // e.g. "text/plain"
	Encoding   string // Content-Transfer-Encoding: 7bit, 8bit, base64, quoted-printable, ...
	Charset    string
	Attachment bool
}

// walkBodyStructure flattens a BODYSTRUCTURE tree into its leaf parts,
// depth-first, numbering paths the way IMAP BODY[<path>] section specifiers
// expect (1-indexed, dotted for nested multiparts).
func walkBodyStructure(bs imap.BodyStructure) []bodyPart {
	var out []bodyPart
	var walk func(part imap.BodyStructure, path []int)
	walk = func(part imap.BodyStructure, path []int) {
		switch p := part.(type) {
		case *imap.BodyStructureMultiPart:
			for i, child := range p.Children {
				walk(child, append(append([]int{}, path...), i+1))
			}
		case *imap.BodyStructureSinglePart:
			mediaType := p.Type + "/" + p.Subtype
			attachment := false
			if disp := p.Disposition(); disp != nil {
				attachment = strings.EqualFold(disp.Value, "attachment")
			}
			if !attachment && p.Type != "text" && p.Type != "multipart" {
				attachment = true
			}
			out = append(out, bodyPart{
				Path:       append([]int{}, path...),
				MediaType:  mediaType,
				Encoding:   p.Encoding,
				Charset:    p.Params["charset"],
				Attachment: attachment,
			})
		}
	}
	walk(bs, nil)
	return out
}

// textPartInfo carries what the body decoder needs for one leaf part: its
// path and the Content-Transfer-Encoding/charset to reverse.
type textPartInfo struct {
	Path     []int
	Encoding string
	Charset  string
}

// selectTextParts picks the best text/plain and text/html leaf, and reports
// whether any non-text leaf (a genuine attachment) exists.
func selectTextParts(bs imap.BodyStructure) (text, html *textPartInfo, hasAttachments bool) {
	for _, part := range walkBodyStructure(bs) {
		part := part
		switch {
		case part.MediaType == "text/plain" && text == nil:
			text = &textPartInfo{Path: part.Path, Encoding: part.Encoding, Charset: part.Charset}
		case part.MediaType == "text/html" && html == nil:
			html = &textPartInfo{Path: part.Path, Encoding: part.Encoding, Charset: part.Charset}
		case part.Attachment:
			hasAttachments = true
		}
	}
	return
}

// PathSpecifier renders a BODYSTRUCTURE path as an IMAP section specifier,
// e.g. [1, 2] -> "1.2". A nil path (the message has a single top-level part)
// renders as "1". Exported so callers building FetchBodyParts' path
// argument can key their own result lookups the same way specFor does.
func PathSpecifier(path []int) string {
	if len(path) == 0 {
		return "1"
	}
	s := ""
	for i, p := range path {
		if i > 0 {
			s += "."
		}
		s += strconv.Itoa(p)
	}
	return s
}

func pathSpecifier(path []int) string { return PathSpecifier(path) }
