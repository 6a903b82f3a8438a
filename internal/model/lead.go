// Package model defines the CRM domain types shared by the stores, the
// ingestion engine, and the HTTP API.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"
)

// ContactStatus is the coarse outcome of the last outreach attempt.
type ContactStatus string

const (
	ContactNotContacted ContactStatus = "not_contacted"
	ContactAttempted    ContactStatus = "attempted"
	ContactReached      ContactStatus = "reached"
	ContactUnreachable  ContactStatus = "unreachable"
)

// InterestLevel is the self-reported or inferred buying interest of a lead.
type InterestLevel string

const (
	InterestUnknown InterestLevel = "unknown"
	InterestLow     InterestLevel = "low"
	InterestMedium  InterestLevel = "medium"
	InterestHigh    InterestLevel = "high"
)

// Lead is the central CRM entity: one prospective customer, originating from
// a spreadsheet row or manual entry. Contact fields come from the sheet and
// stay sheet-authoritative until IsManaged flips; the CRM overlay fields
// (stage, quality, assignment, contact tracking) are human-owned from the start.
type Lead struct {
	ID          string `json:"id"`
	ExternalKey string `json:"external_key"`

	// Sheet-sourced contact fields.
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	WhatsApp     string     `json:"whatsapp"`
	Email        string     `json:"email,omitempty"`
	State        string     `json:"state,omitempty"`
	Category     string     `json:"category,omitempty"`
	BusinessType string     `json:"business_type,omitempty"`
	CreatedTime  *time.Time `json:"created_time,omitempty"`
	CreatedRaw   string     `json:"created_raw,omitempty"` // original sheet value when unparseable

	// Provenance.
	SheetSource string            `json:"sheet_source"`
	RowNumber   *int              `json:"row_number,omitempty"` // nil for manually entered leads
	Extra       map[string]string `json:"extra,omitempty"`      // every other sheet column, sanitized header -> value

	// CRM overlay.
	IsManaged     bool          `json:"is_managed"`
	CurrentStatus string        `json:"current_status,omitempty"` // legacy coarse status
	Stage         Stage         `json:"lead_stage"`
	Quality       Quality       `json:"lead_quality"`
	ContactStatus ContactStatus `json:"contact_status"`
	InterestLevel InterestLevel `json:"interest_level"`
	AssignedTo    string        `json:"assigned_to,omitempty"`
	LastContactAt *time.Time    `json:"last_contact_at,omitempty"`
	FollowUpAt    *time.Time    `json:"follow_up_at,omitempty"`

	ImportedAt time.Time `json:"imported_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// minKeyDigits is the minimum phone digit count for a phone-based external key.
// Shorter values are treated as junk (extension fragments, placeholders).
const minKeyDigits = 10

// ExternalKey derives the deterministic upsert key for a sheet row. One
// canonical policy: rows with a usable phone key by (sheet, phone digits) so
// re-imports and quick-imports of the same contact converge; phoneless rows
// fall back to (sheet, row number, created-time fragment).
func ExternalKey(sheetSource, phone string, rowNumber int, created string) string {
	if digits := PhoneDigits(phone); len(digits) >= minKeyDigits {
		return fmt.Sprintf("%s_phone_%s", sheetSource, digits)
	}
	frag := strings.TrimSpace(created)
	if len(frag) > 10 {
		frag = frag[:10]
	}
	if frag == "" {
		return fmt.Sprintf("%s_row_%d", sheetSource, rowNumber)
	}
	return fmt.Sprintf("%s_row_%d_%s", sheetSource, rowNumber, frag)
}

// PhoneDigits normalizes a raw phone value to its significant digits.
// It prefers a proper E.164 parse (default region IN, matching the source
// sheets) and falls back to stripping non-digit characters.
func PhoneDigits(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if num, err := phonenumbers.Parse(raw, "IN"); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.GetNationalSignificantNumber(num)
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
