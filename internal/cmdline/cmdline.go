// Package cmdline splits and assembles command-line argument strings with
// double-quote awareness. It exists so user-supplied flag strings, resolver
// output, and shell-chained command lines all round-trip through one set of
// quoting rules instead of ad hoc string splitting at each call site.
package cmdline

import "strings"

// Tokenize splits raw into arguments on unquoted whitespace. A double quote
// toggles a quoted region in which whitespace is literal; a backslash
// immediately before a quote emits a literal quote without toggling. Quote
// characters themselves are never part of a token. An unterminated quoted
// region runs to the end of the input. Tokenize never fails; malformed
// input degrades to best-effort tokens.
func Tokenize(raw string) []string {
	tokens := make([]string, 0, 8)
	var cur strings.Builder
	inQuotes := false
	started := false

	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '\\' && i+1 < len(raw) && raw[i+1] == '"':
			cur.WriteByte('"')
			started = true
			i++
		case c == '"':
			inQuotes = !inQuotes
			started = true
		case !inQuotes && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			flush()
		default:
			cur.WriteByte(c)
			started = true
		}
	}
	flush()

	return tokens
}

// QuoteIfNeeded wraps tok in double quotes when it contains whitespace or a
// quote, escaping embedded quotes as \". Tokens that need no quoting are
// returned unchanged. An empty token renders as "" so it survives a
// tokenize round trip.
func QuoteIfNeeded(tok string) string {
	if tok == "" {
		return `""`
	}
	if !strings.ContainsAny(tok, " \t\n\r\"") {
		return tok
	}
	var b strings.Builder
	b.Grow(len(tok) + 2)
	b.WriteByte('"')
	for i := 0; i < len(tok); i++ {
		if tok[i] == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(tok[i])
	}
	b.WriteByte('"')
	return b.String()
}

// Join renders tokens as a single command-line string, quoting each token
// as needed. It is the inverse of Tokenize for tokens without embedded
// quotes.
func Join(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = QuoteIfNeeded(tok)
	}
	return strings.Join(quoted, " ")
}
