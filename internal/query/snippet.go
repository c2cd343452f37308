package query

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// PromptText is shown in place of a query when no filter is chosen.
const PromptText = "Please select options below to begin building a query..."

// Snippet renders the predicate as a markdown code block declaring a
// sample_query variable. One clause gives a single line; several clauses give
// a parenthesised block with one clause per line.
func (p Predicate) Snippet() string {
	var b strings.Builder
	b.WriteString("```\n")
	switch len(p.Clauses) {
	case 0:
		b.WriteString(PromptText)
		b.WriteString("\n")
	case 1:
		b.WriteString("sample_query = ")
		b.WriteString(pyRepr(p.Clauses[0].String()))
		b.WriteString("\n")
	default:
		b.WriteString("sample_query = (\n")
		last := len(p.Clauses) - 1
		for i, c := range p.Clauses {
			line := c.String()
			if i < last {
				line += " and "
			}
			b.WriteString("    ")
			b.WriteString(pyRepr(line))
			b.WriteString("\n")
		}
		b.WriteString(")\n")
	}
	b.WriteString("```\n")
	return b.String()
}

// SampleSetsSnippet renders the markdown telling the user how to declare the
// selected sample sets in an analysis. It is empty for no selection.
func SampleSetsSnippet(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("To use these sample sets in your analysis, declare a variable like this:\n")
	b.WriteString("```\n")
	b.WriteString("sample_sets = [\n")
	for _, id := range ids {
		b.WriteString("    ")
		b.WriteString(pyRepr(id))
		b.WriteString(",\n")
	}
	b.WriteString("]\n")
	b.WriteString("```\n")
	return b.String()
}

func pyStrList(values []string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = pyRepr(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func pyIntList(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// pyRepr quotes s the way Python's repr does for str: single quotes unless
// the string contains a single quote and no double quote. Non-printable
// code points are escaped as \xhh, \uhhhh or \Uhhhhhhhh.
func pyRepr(s string) string {
	quote := byte('\'')
	if strings.IndexByte(s, '\'') >= 0 && strings.IndexByte(s, '"') < 0 {
		quote = '"'
	}

	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			b.WriteString(`\x`)
			b.WriteString(hex2(byte(r)))
		case r < utf8.RuneSelf || unicode.IsPrint(r):
			b.WriteRune(r)
		case r <= 0xff:
			fmt.Fprintf(&b, `\x%02x`, r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			fmt.Fprintf(&b, `\U%08x`, r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

func hex2(c byte) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[c>>4], digits[c&0x0f]})
}
