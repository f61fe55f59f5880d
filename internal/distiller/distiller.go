// Package distiller collapses a message body into a short chat-style
// preview (spec.md §4.5): quotes and signatures stripped, forwarded-message
// markers stopped at, blank runs collapsed, then truncated to a UTF-8-safe
// boundary.
package distiller

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DefaultMaxLen is the default preview length, matching the source
// distiller's 200-character budget.
const DefaultMaxLen = 200

var forwardedMarkers = []string{
	"---------- forwarded message",
	"begin forwarded message",
}

var htmlSanitizer = bluemonday.StrictPolicy()

// FromHTML strips all markup via a strict sanitizer policy before handing
// the result to Distill, for messages with only an HTML body part.
func FromHTML(html string, maxLen int) string {
	text := htmlSanitizer.Sanitize(html)
	return Distill(text, maxLen)
}

// Distill implements spec.md §4.5's preview algorithm.
func Distill(body string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	lines := strings.Split(body, "\n")
	var clean []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "--" {
			break
		}
		if strings.HasPrefix(line, ">") {
			continue
		}
		if strings.HasSuffix(trimmed, ":") || strings.HasSuffix(trimmed, "wrote:") {
			if next, ok := nextNonEmpty(lines, i+1); ok && strings.HasPrefix(next, ">") {
				continue
			}
		}
		if isForwardedMarker(trimmed) {
			clean = append(clean, "[Forwarded]")
			break
		}
		clean = append(clean, trimmed)
	}

	result := collapseBlankRuns(clean)
	return truncate(result, maxLen)
}

func nextNonEmpty(lines []string, from int) (string, bool) {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i], true
		}
	}
	return "", false
}

func isForwardedMarker(trimmed string) bool {
	lower := strings.ToLower(trimmed)
	for _, marker := range forwardedMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	return false
}

func collapseBlankRuns(lines []string) string {
	var b strings.Builder
	prevBlank := false
	for _, line := range lines {
		if line == "" {
			if !prevBlank && b.Len() > 0 {
				b.WriteByte(' ')
			}
			prevBlank = true
			continue
		}
		if b.Len() > 0 && !prevBlank {
			b.WriteByte(' ')
		}
		b.WriteString(line)
		prevBlank = false
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, maxLen int) string {
	if len([]rune(s)) <= maxLen {
		return s
	}
	runes := []rune(s)
	truncated := strings.TrimRight(string(runes[:maxLen]), " ")
	return truncated + "…"
}
