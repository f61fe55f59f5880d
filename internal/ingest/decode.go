package ingest

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"
	"unicode/utf8"

	msgcharset "github.com/emersion/go-message/charset"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

// decodeBody reverses a BODY[<path>] leaf's Content-Transfer-Encoding and
// then its declared charset, producing UTF-8 text. Per spec.md §6, 7bit,
// 8bit, binary, base64, and quoted-printable transfer encodings are
// supported; any other declared charset is decoded best-effort and never
// fails the caller — undecodable bytes just come through as the raw text.
func decodeBody(raw []byte, encoding, declaredCharset string) string {
	switch strings.ToLower(encoding) {
	case "quoted-printable":
		if decoded, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw))); err == nil {
			raw = decoded
		}
	case "base64":
		cleaned := make([]byte, 0, len(raw))
		for _, b := range raw {
			if b == '\r' || b == '\n' || b == ' ' || b == '\t' {
				continue
			}
			cleaned = append(cleaned, b)
		}
		if decoded, err := base64.StdEncoding.DecodeString(string(cleaned)); err == nil {
			raw = decoded
		}
	}
	return decodeCharset(raw, declaredCharset)
}

// decodeCharset converts content to UTF-8 using the declared charset,
// falling back to content-sniffed autodetection when the declared charset
// is empty, unrecognized, or the content isn't actually valid under it.
func decodeCharset(content []byte, declaredCharset string) string {
	if declaredCharset == "" || strings.EqualFold(declaredCharset, "utf-8") || strings.EqualFold(declaredCharset, "us-ascii") {
		if utf8.Valid(content) {
			return string(content)
		}
		if enc, _, err := charset.DetermineEncoding(content, "text/plain"); err == nil {
			if decoded, err := enc.NewDecoder().Bytes(content); err == nil {
				return string(decoded)
			}
		}
		return string(content)
	}

	if reader, err := msgcharset.Reader(declaredCharset, bytes.NewReader(content)); err == nil {
		if decoded, err := io.ReadAll(reader); err == nil {
			return string(decoded)
		}
	}

	// go-message doesn't cover every IANA name senders declare (GB2312,
	// Big5 variants, etc). htmlindex's broader table catches those.
	if enc, err := htmlindex.Get(declaredCharset); err == nil {
		if decoded, err := enc.NewDecoder().Bytes(content); err == nil {
			return string(decoded)
		}
	}
	return string(content)
}
