// Package sanitize turns raw user text into the safe HTML fragment stored
// on a post. The output vocabulary is fixed: text, the five character
// entities, <br /> separators and greentext spans. Nothing else survives.
package sanitize

import "strings"

const (
	greentextOpen  = `<span class="greentext">`
	greentextClose = `</span>`
	lineBreak      = `<br />`
)

// entities the escaper emits. Occurrences in the input pass through
// untouched, which makes escaping a fixed point: escape(escape(x)) ==
// escape(x). A naive escaper would re-escape its own '&' output and break
// idempotence.
var entities = [...]string{"&amp;", "&lt;", "&gt;", "&#34;", "&#39;"}

// markup the sanitizer itself emits; also passes through unchanged.
var ownMarkup = [...]string{lineBreak, greentextOpen, greentextClose}

// Sanitize escapes markup-significant characters, wraps quote lines
// (those beginning with &gt; after escaping) in greentext spans, and joins
// lines with <br />. Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(raw string) string {
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = escape(strings.TrimSuffix(line, "\r"))
		if strings.HasPrefix(line, "&gt;") {
			line = greentextOpen + line + greentextClose
		}
		lines[i] = line
	}
	return strings.Join(lines, lineBreak)
}

func escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch s[i] {
		case '&':
			if tok := prefixOf(s[i:], entities[:]); tok != "" {
				b.WriteString(tok)
				i += len(tok)
				continue
			}
			b.WriteString("&amp;")
		case '<':
			if tok := prefixOf(s[i:], ownMarkup[:]); tok != "" {
				b.WriteString(tok)
				i += len(tok)
				continue
			}
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&#34;")
		case '\'':
			b.WriteString("&#39;")
		default:
			b.WriteByte(s[i])
		}
		i++
	}
	return b.String()
}

func prefixOf(s string, tokens []string) string {
	for _, tok := range tokens {
		if strings.HasPrefix(s, tok) {
			return tok
		}
	}
	return ""
}
