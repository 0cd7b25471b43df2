// Package gateway routes flat shell-style command strings to registered
// domain handlers. It is the single entry point the agent runtime uses to
// execute tool calls: one input line in, one text response out.
package gateway

import (
	"strings"
)

func isQuote(b byte) bool {
	return b == '"' || b == '\''
}

// StripQuotes trims the argument string and removes exactly one layer of
// matching quotes ('"' or '\''). A string that starts with a quote character
// but does not end with the same character is returned as-is, so content
// that merely begins with a quote is never truncated. Embedded delimiter
// quotes are not escapable; that is a known limitation of the command
// surface, not something this parser papers over.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// SplitTwoQuoted parses two individually quoted arguments out of raw, e.g.
// `"My Show" "https://feed.example.com/rss"`. The first quoted span becomes
// the first argument. The remainder, trimmed, must itself be a single quoted
// span whose closing quote matches its opening quote and is the literal last
// character of the remainder; the entire interior (including embedded
// newlines) becomes the second argument. Any other shape fails the parse as
// a whole.
func SplitTwoQuoted(raw string) (string, string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || !isQuote(raw[0]) {
		return "", "", false
	}

	quote := raw[0]
	end := strings.IndexByte(raw[1:], quote)
	if end < 0 {
		return "", "", false
	}
	first := raw[1 : 1+end]

	rest := strings.TrimSpace(raw[end+2:])
	if len(rest) < 2 || !isQuote(rest[0]) {
		return "", "", false
	}
	if rest[len(rest)-1] != rest[0] {
		return "", "", false
	}
	second := rest[1 : len(rest)-1]

	return first, second, true
}
