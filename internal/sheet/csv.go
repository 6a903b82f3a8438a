// Package sheet turns raw Google Sheets CSV exports into normalized lead
// candidates: line-level CSV parsing, template-driven header resolution, and
// row normalization.
package sheet

import "strings"

// ParseLine parses one physical CSV line into its ordered field values,
// honoring RFC4180-style quoting: a double quote opens/closes a quoted field,
// a doubled quote inside quotes is a literal quote, and commas inside quotes
// are not separators.
//
// The parser is strictly line-by-line on text already split on \r\n or \n; it
// never re-assembles a logical record across physical lines, so embedded
// newlines inside a quoted field are not supported. An empty line yields a
// single empty field; callers treat that as an empty row and skip it.
func ParseLine(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}

	return append(fields, cur.String())
}

// EncodeLine serializes field values back to one CSV line, quoting only
// fields that need it. ParseLine(EncodeLine(fields)) round-trips the values.
func EncodeLine(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		if strings.ContainsAny(f, ",\"\n") {
			parts[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		} else {
			parts[i] = f
		}
	}
	return strings.Join(parts, ",")
}

// SplitLines splits raw CSV text into physical lines on \r\n or \n and drops
// a single trailing empty line left by a final newline.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
