package unsubscribe

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/teemow/listunsub/internal/mailbox"
)

// HeaderListUnsubscribe is the header carrying unsubscribe targets (RFC 2369).
const HeaderListUnsubscribe = "List-Unsubscribe"

// Intent is a parsed mailto target.
type Intent struct {
	Address string
	Subject string
	Body    string
}

// ExtractMailto returns the first mailto target of the message's
// List-Unsubscribe header with the surrounding angle brackets removed.
// The header name is matched case-insensitively and repeated headers are
// searched in order. ok is false when no header lists a mailto target.
func ExtractMailto(headers []mailbox.Header) (target string, ok bool) {
	for _, h := range headers {
		if !strings.EqualFold(h.Name, HeaderListUnsubscribe) {
			continue
		}
		for _, part := range strings.Split(h.Value, ",") {
			if !strings.Contains(part, "mailto") {
				continue
			}
			return strings.Trim(part, "<> \t\r\n"), true
		}
	}
	return "", false
}

// ParseMailto splits a mailto URI into its address and the optional
// subject and body query values. Absent values are returned as "".
func ParseMailto(uri string) (Intent, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return Intent{}, fmt.Errorf("invalid mailto URI %q: %w", uri, err)
	}
	if !strings.EqualFold(u.Scheme, "mailto") {
		return Intent{}, fmt.Errorf("invalid mailto URI %q: scheme is %q", uri, u.Scheme)
	}

	addr := u.Opaque
	if addr == "" {
		addr = u.Path
	}
	if unescaped, err := url.PathUnescape(addr); err == nil {
		addr = unescaped
	}
	if addr == "" {
		return Intent{}, fmt.Errorf("invalid mailto URI %q: no address", uri)
	}
	// The address becomes a To header; a line break would end the header.
	if strings.IndexFunc(addr, unicode.IsControl) >= 0 {
		return Intent{}, fmt.Errorf("invalid mailto URI %q: control character in address", uri)
	}

	return Intent{
		Address: addr,
		Subject: queryValue(u.RawQuery, "subject"),
		Body:    queryValue(u.RawQuery, "body"),
	}, nil
}

// queryValue returns the first non-empty value of key in rawQuery. Unlike
// url.ParseQuery a malformed escape does not discard the value; it is kept
// as written.
func queryValue(rawQuery, key string) string {
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if unquote(k) != key || v == "" {
			continue
		}
		return unquote(v)
	}
	return ""
}

// unquote decodes form-style escapes: '+' is a space and %XX a byte.
// Escapes that are not two hex digits are copied unchanged.
func unquote(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 < len(s) {
				if dec, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
					b.Write(dec)
					i += 2
					continue
				}
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
