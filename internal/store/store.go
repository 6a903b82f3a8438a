// Package store persists leads, notes, status history, and per-sheet sync
// watermarks. Two backends implement the same interface: Postgres via pgx for
// deployments, SQLite for local single-binary use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Stage       model.Stage   `json:"stage,omitempty"`
	Quality     model.Quality `json:"quality,omitempty"`
	AssignedTo  string        `json:"assigned_to,omitempty"`
	SheetSource string        `json:"sheet_source,omitempty"`
	Managed     *bool         `json:"managed,omitempty"`
	// Search matches name, phone, or email, case-insensitive substring.
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// CRMUpdate is a partial update of a lead's human-owned overlay. Nil fields
// are left untouched.
type CRMUpdate struct {
	Stage         *model.Stage
	Quality       *model.Quality
	ContactStatus *model.ContactStatus
	InterestLevel *model.InterestLevel
	CurrentStatus *string
	AssignedTo    *string
	LastContactAt *time.Time
	FollowUpAt    *time.Time
	IsManaged     *bool
}

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	GetLeadByKey(ctx context.Context, externalKey string) (*model.Lead, error)
	InsertLead(ctx context.Context, lead *model.Lead) error
	// UpdateLeadContact refreshes the sheet-sourced contact fields of the
	// lead identified by lead.ExternalKey. CRM overlay fields are untouched.
	UpdateLeadContact(ctx context.Context, lead *model.Lead) error
	UpdateLeadCRM(ctx context.Context, leadID string, upd CRMUpdate) error
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	// BulkUpsertLeads upserts a batch keyed on external_key and returns the
	// number of rows written.
	BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error)
	ListAssignees(ctx context.Context) ([]string, error)

	// Notes and stage history
	AddNote(ctx context.Context, note *model.LeadNote) error
	ListNotes(ctx context.Context, leadID string) ([]model.LeadNote, error)
	AddStatusHistory(ctx context.Context, entry *model.StatusHistory) error
	ListStatusHistory(ctx context.Context, leadID string) ([]model.StatusHistory, error)

	// Sync watermarks
	GetSyncMetadata(ctx context.Context, sheetName string) (*model.SyncMetadata, error)
	UpsertSyncMetadata(ctx context.Context, meta *model.SyncMetadata) error
	ResetSyncMetadata(ctx context.Context, sheetName string) error
	ListSyncMetadata(ctx context.Context) ([]model.SyncMetadata, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
