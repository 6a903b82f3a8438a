package sheet

import (
	"regexp"
	"strings"
	"time"
)

// maxMissingTrailing is how many trailing columns a data row may be short of
// the header before it is considered too malformed to trust.
const maxMissingTrailing = 2

// Candidate is one normalized sheet row: the resolved semantic fields plus
// the full attribute bag of every non-empty column, kept for traceability.
type Candidate struct {
	RowNumber int `json:"row_number"`

	FullName     string `json:"full_name"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
	State        string `json:"state,omitempty"`
	Category     string `json:"category,omitempty"`
	BusinessType string `json:"business_type,omitempty"`
	AssignedTo   string `json:"assigned_to,omitempty"`

	CreatedTime *time.Time `json:"created_time,omitempty"`
	CreatedRaw  string     `json:"created_raw,omitempty"` // verbatim sheet value

	Extra map[string]string `json:"extra,omitempty"`
}

// createdLayouts are tried in order when parsing the sheet's created-time
// column. Facebook lead form exports use the first two.
var createdLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
}

var nonWordOrSpace = regexp.MustCompile(`[^\w\s]`)

// SanitizeHeader turns a raw header into an attribute-bag key: non-word,
// non-space characters become underscores and the result is trimmed.
func SanitizeHeader(h string) string {
	return strings.TrimSpace(nonWordOrSpace.ReplaceAllString(h, "_"))
}

// Normalize converts one data row into a candidate lead, or reports skip.
// Rows where every field is blank are skipped. Rows more than
// maxMissingTrailing fields short of the header are skipped as malformed;
// shorter gaps are right-padded with empty strings.
func Normalize(row []string, headers []string, idx ColumnIndex, rowNumber int) (*Candidate, bool) {
	if allBlank(row) {
		return nil, false
	}
	if len(row) < len(headers)-maxMissingTrailing {
		return nil, false
	}
	for len(row) < len(headers) {
		row = append(row, "")
	}

	get := func(f Field) string {
		i, ok := idx[f]
		if !ok || i == NotFound || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	c := &Candidate{
		RowNumber:    rowNumber,
		FullName:     get(FieldFullName),
		Email:        get(FieldEmail),
		State:        get(FieldState),
		Category:     get(FieldCategory),
		BusinessType: get(FieldBusinessType),
		AssignedTo:   get(FieldAssignedTo),
	}

	// Lead form exports prefix phone values with a literal "p:".
	c.Phone = strings.TrimPrefix(get(FieldPhone), "p:")

	// Created time comes from the sheet, never the import clock. Keep the
	// raw value verbatim when no layout matches.
	if raw := get(FieldCreatedTime); raw != "" {
		c.CreatedRaw = raw
		for _, layout := range createdLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				c.CreatedTime = &t
				break
			}
		}
	}

	// The attribute bag keeps every non-empty column, semantic duplicates
	// included, keyed by sanitized header.
	c.Extra = make(map[string]string, len(headers))
	for i, h := range headers {
		if i >= len(row) {
			break
		}
		key := SanitizeHeader(h)
		val := strings.TrimSpace(row[i])
		if key == "" || val == "" {
			continue
		}
		c.Extra[key] = val
	}
	if len(c.Extra) == 0 {
		c.Extra = nil
	}

	return c, true
}

// CreatedFragment returns the created-time string used in row-based external
// keys: the parsed date when available, otherwise the raw sheet value.
func (c *Candidate) CreatedFragment() string {
	if c.CreatedTime != nil {
		return c.CreatedTime.Format("2006-01-02")
	}
	return c.CreatedRaw
}

func allBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
