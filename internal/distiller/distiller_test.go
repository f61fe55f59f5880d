package distiller

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDistillSimpleMessage(t *testing.T) {
	got := Distill("Hey, are you free for lunch tomorrow?", DefaultMaxLen)
	require.Equal(t, "Hey, are you free for lunch tomorrow?", got)
}

func TestDistillStripsQuotes(t *testing.T) {
	body := "Sounds good!\n\n> On Feb 8, 2026, Alice wrote:\n> Let's meet at noon"
	require.Equal(t, "Sounds good!", Distill(body, DefaultMaxLen))
}

func TestDistillStripsSignature(t *testing.T) {
	body := "See you there!\n\n--\nBrian\nCEO, Acme Corp"
	require.Equal(t, "See you there!", Distill(body, DefaultMaxLen))
}

func TestDistillStripsForwarded(t *testing.T) {
	body := "FYI see below\n\n---------- Forwarded message ----------\nFrom: Alice\nSubject: Hi\n\nOriginal content"
	require.Equal(t, "FYI see below [Forwarded]", Distill(body, DefaultMaxLen))
}

func TestDistillTruncation(t *testing.T) {
	body := strings.Repeat("a", 300)
	result := Distill(body, DefaultMaxLen)
	require.LessOrEqual(t, len([]rune(result)), 201)
	require.True(t, strings.HasSuffix(result, "…"))
}

func TestDistillAttributionLineBeforeQuote(t *testing.T) {
	body := "Lyder godt!\n\nDen 8. feb. 2026 kl. 12:00 skrev Martin:\n> Vi ses i morgen"
	require.Equal(t, "Lyder godt!", Distill(body, DefaultMaxLen))
}

func TestDistillEmptyBody(t *testing.T) {
	require.Equal(t, "", Distill("", DefaultMaxLen))
}

func TestFromHTMLStripsMarkup(t *testing.T) {
	got := FromHTML("<p>Hello <b>world</b></p>", DefaultMaxLen)
	require.Equal(t, "Hello world", got)
}
