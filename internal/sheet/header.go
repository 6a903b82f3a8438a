package sheet

import "strings"

// NotFound marks a semantic field absent from the header row.
const NotFound = -1

// ColumnIndex maps each semantic field to its header column, or NotFound.
type ColumnIndex map[Field]int

// ResolveHeader maps a sheet's heading row to column indices using the
// template's rules. Synonyms are tried in priority order; within one synonym
// the leftmost matching header wins.
func ResolveHeader(headers []string, tmpl Template) ColumnIndex {
	idx := make(ColumnIndex, len(tmpl.Fields))
	for f, rule := range tmpl.Fields {
		idx[f] = matchColumn(headers, rule)
	}
	return idx
}

func matchColumn(headers []string, rule Rule) int {
	for _, syn := range rule.Synonyms {
		syn = strings.ToLower(syn)
		for i, h := range headers {
			if strings.Contains(strings.ToLower(strings.TrimSpace(h)), syn) {
				return i
			}
		}
	}
	for _, lit := range rule.Literals {
		for i, h := range headers {
			if strings.Contains(h, lit) {
				return i
			}
		}
	}
	return NotFound
}
