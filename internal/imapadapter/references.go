package imapadapter

import (
	"strings"
)

// ParseReferencesHeader extracts Message-IDs from the raw, possibly folded
// header text returned by round trip 2's HEADER.FIELDS (References) fetch.
func ParseReferencesHeader(headerText string) []string {
	var unfolded strings.Builder
	for _, line := range strings.Split(headerText, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			unfolded.WriteByte(' ')
			unfolded.WriteString(strings.TrimSpace(line))
		} else if unfolded.Len() > 0 {
			unfolded.WriteByte(' ')
			unfolded.WriteString(line)
		} else {
			unfolded.WriteString(line)
		}
	}

	text := unfolded.String()
	lower := strings.ToLower(text)
	pos := strings.Index(lower, "references:")
	if pos < 0 {
		return nil
	}
	value := text[pos+len("references:"):]

	var out []string
	for _, tok := range strings.Fields(value) {
		if strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">") && len(tok) > 1 {
			out = append(out, tok[1:len(tok)-1])
		}
	}
	return out
}
