package model

import "time"

// SyncMetadata is the per-sheet sync watermark: the highest spreadsheet row
// already processed, plus bookkeeping. LastRowNumber is monotonically
// non-decreasing across successful syncs except when explicitly reset.
type SyncMetadata struct {
	SheetID            string     `json:"sheet_id"`
	SheetName          string     `json:"sheet_name"`
	LastRowNumber      int        `json:"last_row_number"`
	LastSyncAt         *time.Time `json:"last_sync_at,omitempty"`
	TotalRowsProcessed int        `json:"total_rows_processed"`
}

// LeadNote is a free-text note on a lead. Append-only.
type LeadNote struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusHistory records one stage transition on a lead. Append-only.
type StatusHistory struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Actor     string    `json:"actor"`
	OldStage  Stage     `json:"old_stage,omitempty"`
	NewStage  Stage     `json:"new_stage"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
