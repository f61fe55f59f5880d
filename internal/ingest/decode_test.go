package ingest

import (
	"bytes"
	"encoding/base64"
	"mime/quotedprintable"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeBodyPlain7bit(t *testing.T) {
	got := decodeBody([]byte("hello world"), "7bit", "")
	require.Equal(t, "hello world", got)
}

func TestDecodeBodyQuotedPrintable(t *testing.T) {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	w.Write([]byte("café au lait"))
	w.Close()

	got := decodeBody(buf.Bytes(), "quoted-printable", "utf-8")
	require.Equal(t, "café au lait", got)
}

func TestDecodeBodyBase64(t *testing.T) {
	raw := "hello from base64"
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))
	got := decodeBody([]byte(encoded), "base64", "utf-8")
	require.Equal(t, raw, got)
}

func TestDecodeBodyBase64WithFoldedWhitespace(t *testing.T) {
	raw := "this line is long enough to fold across more than one output line"
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))
	folded := encoded[:len(encoded)/2] + "\r\n" + encoded[len(encoded)/2:]
	got := decodeBody([]byte(folded), "base64", "")
	require.Equal(t, raw, got)
}

func TestDecodeBody8bitPassesThrough(t *testing.T) {
	got := decodeBody([]byte("plain ascii text"), "8bit", "us-ascii")
	require.Equal(t, "plain ascii text", got)
}

func TestDecodeCharsetEmptyDeclaredFallsBackToValidUTF8(t *testing.T) {
	got := decodeCharset([]byte("already valid utf-8"), "")
	require.Equal(t, "already valid utf-8", got)
}

func TestDecodeCharsetUnknownCharsetDoesNotPanic(t *testing.T) {
	got := decodeCharset([]byte("some bytes"), "not-a-real-charset")
	require.NotEmpty(t, got)
}
