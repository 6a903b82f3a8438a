package sheet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeaders = []string{"Full Name", "Phone Number", "Created Time"}

func testIndex(t *testing.T) ColumnIndex {
	t.Helper()
	idx := ResolveHeader(testHeaders, DefaultTemplate())
	require.Equal(t, 0, idx[FieldFullName])
	require.Equal(t, 1, idx[FieldPhone])
	require.Equal(t, 2, idx[FieldCreatedTime])
	return idx
}

func TestNormalize_BasicRow(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"Asha", "9876543210", "2024-01-05"}, testHeaders, idx, 1)
	require.True(t, ok)

	assert.Equal(t, "Asha", c.FullName)
	assert.Equal(t, "9876543210", c.Phone)
	require.NotNil(t, c.CreatedTime)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), c.CreatedTime.UTC())
	assert.Equal(t, 1, c.RowNumber)
}

func TestNormalize_AllBlankRowSkipped(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"", "", ""}, testHeaders, idx, 2)
	assert.False(t, ok)
	assert.Nil(t, c)

	c, ok = Normalize([]string{"  ", "\t", " "}, testHeaders, idx, 3)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestNormalize_PadsUpToTwoMissingTrailingFields(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"Asha", "9876543210"}, testHeaders, idx, 1)
	require.True(t, ok)
	assert.Equal(t, "Asha", c.FullName)
	assert.Nil(t, c.CreatedTime)
	assert.Empty(t, c.CreatedRaw)

	c, ok = Normalize([]string{"Asha"}, testHeaders, idx, 1)
	require.True(t, ok)
	assert.Equal(t, "Asha", c.FullName)
	assert.Empty(t, c.Phone)
}

func TestNormalize_DiscardsRowsMoreThanTwoShort(t *testing.T) {
	headers := []string{"Full Name", "Phone Number", "Created Time", "Email", "State"}
	idx := ResolveHeader(headers, DefaultTemplate())

	_, ok := Normalize([]string{"Asha", "9876543210"}, headers, idx, 1)
	assert.False(t, ok, "three fields short of a five-column header is malformed")

	_, ok = Normalize([]string{"Asha", "9876543210", "2024-01-05"}, headers, idx, 1)
	assert.True(t, ok, "exactly two short is padded")
}

func TestNormalize_StripsPhonePrefix(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"Asha", "p:+919876543210", "2024-01-05"}, testHeaders, idx, 1)
	require.True(t, ok)
	assert.Equal(t, "+919876543210", c.Phone)
}

func TestNormalize_UnparseableCreatedTimeKeptRaw(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"Asha", "9876543210", "next tuesday"}, testHeaders, idx, 1)
	require.True(t, ok)
	assert.Nil(t, c.CreatedTime)
	assert.Equal(t, "next tuesday", c.CreatedRaw)
	assert.Equal(t, "next tuesday", c.CreatedFragment())
}

func TestNormalize_CreatedFragmentFromParsedDate(t *testing.T) {
	idx := testIndex(t)

	c, ok := Normalize([]string{"Asha", "9876543210", "2024-01-05T10:30:00"}, testHeaders, idx, 1)
	require.True(t, ok)
	require.NotNil(t, c.CreatedTime)
	assert.Equal(t, "2024-01-05", c.CreatedFragment())
}

func TestNormalize_ExtraBagKeepsEveryNonEmptyColumn(t *testing.T) {
	headers := []string{"Full Name", "Phone Number", "Budget (INR)?", "Notes"}
	idx := ResolveHeader(headers, DefaultTemplate())

	c, ok := Normalize([]string{"Asha", "9876543210", "50k", ""}, headers, idx, 1)
	require.True(t, ok)

	// Semantic duplicates stay in the bag for traceability; empty values and
	// punctuation-heavy headers are sanitized.
	assert.Equal(t, "Asha", c.Extra["Full Name"])
	assert.Equal(t, "9876543210", c.Extra["Phone Number"])
	assert.Equal(t, "50k", c.Extra["Budget _INR__"])
	_, hasNotes := c.Extra["Notes"]
	assert.False(t, hasNotes, "empty values are not kept")
}

func TestSanitizeHeader(t *testing.T) {
	assert.Equal(t, "Budget _INR__", SanitizeHeader("Budget (INR)?"))
	assert.Equal(t, "Full Name", SanitizeHeader("  Full Name  "))
	assert.Equal(t, "a_b", SanitizeHeader("a/b"))
}
