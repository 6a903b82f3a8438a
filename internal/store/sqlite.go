package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id              TEXT PRIMARY KEY,
	external_key    TEXT NOT NULL UNIQUE,

	full_name       TEXT NOT NULL DEFAULT '',
	phone           TEXT NOT NULL DEFAULT '',
	whatsapp        TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	state           TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	business_type   TEXT NOT NULL DEFAULT '',
	created_time    DATETIME,
	created_raw     TEXT NOT NULL DEFAULT '',

	sheet_source    TEXT NOT NULL DEFAULT '',
	row_number      INTEGER,
	extra           TEXT,

	is_managed      INTEGER NOT NULL DEFAULT 0,
	current_status  TEXT NOT NULL DEFAULT '',
	stage           TEXT NOT NULL DEFAULT 'new',
	quality         TEXT NOT NULL DEFAULT 'cold',
	contact_status  TEXT NOT NULL DEFAULT 'not_contacted',
	interest_level  TEXT NOT NULL DEFAULT 'unknown',
	assigned_to     TEXT NOT NULL DEFAULT '',
	last_contact_at DATETIME,
	follow_up_at    DATETIME,

	imported_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_notes (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS status_history (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	actor      TEXT NOT NULL DEFAULT '',
	old_stage  TEXT NOT NULL DEFAULT '',
	new_stage  TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS sync_metadata (
	sheet_name           TEXT PRIMARY KEY,
	sheet_id             TEXT NOT NULL DEFAULT '',
	last_row_number      INTEGER NOT NULL DEFAULT 0,
	last_sync_at         DATETIME,
	total_rows_processed INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_leads_stage ON leads(stage);
CREATE INDEX IF NOT EXISTS idx_leads_quality ON leads(quality);
CREATE INDEX IF NOT EXISTS idx_leads_assigned_to ON leads(assigned_to);
CREATE INDEX IF NOT EXISTS idx_leads_sheet_source ON leads(sheet_source);
CREATE INDEX IF NOT EXISTS idx_lead_notes_lead_id ON lead_notes(lead_id);
CREATE INDEX IF NOT EXISTS idx_status_history_lead_id ON status_history(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteLeadColumns = `id, external_key, full_name, phone, whatsapp, email, state, category,
	business_type, created_time, created_raw, sheet_source, row_number, extra,
	is_managed, current_status, stage, quality, contact_status, interest_level,
	assigned_to, last_contact_at, follow_up_at, imported_at, updated_at`

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var createdTime, lastContactAt, followUpAt sql.NullTime
	var rowNumber sql.NullInt64
	var extraJSON sql.NullString

	err := row.Scan(
		&l.ID, &l.ExternalKey, &l.FullName, &l.Phone, &l.WhatsApp, &l.Email,
		&l.State, &l.Category, &l.BusinessType, &createdTime, &l.CreatedRaw,
		&l.SheetSource, &rowNumber, &extraJSON,
		&l.IsManaged, &l.CurrentStatus, &l.Stage, &l.Quality, &l.ContactStatus,
		&l.InterestLevel, &l.AssignedTo, &lastContactAt, &followUpAt,
		&l.ImportedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan lead")
	}

	if createdTime.Valid {
		t := createdTime.Time
		l.CreatedTime = &t
	}
	if lastContactAt.Valid {
		t := lastContactAt.Time
		l.LastContactAt = &t
	}
	if followUpAt.Valid {
		t := followUpAt.Time
		l.FollowUpAt = &t
	}
	if rowNumber.Valid {
		n := int(rowNumber.Int64)
		l.RowNumber = &n
	}
	if extraJSON.Valid && extraJSON.String != "" {
		if err := json.Unmarshal([]byte(extraJSON.String), &l.Extra); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal extra")
		}
	}
	return &l, nil
}

func sqliteExtra(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, eris.Wrap(err, "marshal extra")
	}
	return string(data), nil
}

func (s *SQLiteStore) GetLeadByKey(ctx context.Context, externalKey string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE external_key = ?`,
		externalKey,
	)
	return scanSQLiteLead(row)
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.ImportedAt.IsZero() {
		lead.ImportedAt = now
	}
	lead.UpdatedAt = now

	extraJSON, err := sqliteExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert lead")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (`+sqliteLeadColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.ExternalKey, lead.FullName, lead.Phone, lead.WhatsApp,
		lead.Email, lead.State, lead.Category, lead.BusinessType,
		lead.CreatedTime, lead.CreatedRaw, lead.SheetSource, lead.RowNumber,
		extraJSON, lead.IsManaged, lead.CurrentStatus, string(lead.Stage),
		string(lead.Quality), string(lead.ContactStatus), string(lead.InterestLevel),
		lead.AssignedTo, lead.LastContactAt, lead.FollowUpAt,
		lead.ImportedAt, lead.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert lead %s", lead.ExternalKey)
}

func (s *SQLiteStore) UpdateLeadContact(ctx context.Context, lead *model.Lead) error {
	extraJSON, err := sqliteExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "sqlite: update lead contact")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET
			full_name = ?, phone = ?, whatsapp = ?, email = ?, state = ?,
			category = ?, business_type = ?, created_time = ?, created_raw = ?,
			row_number = ?, extra = ?, updated_at = ?
		 WHERE external_key = ?`,
		lead.FullName, lead.Phone, lead.WhatsApp, lead.Email, lead.State,
		lead.Category, lead.BusinessType, lead.CreatedTime, lead.CreatedRaw,
		lead.RowNumber, extraJSON, time.Now().UTC(), lead.ExternalKey,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead contact %s", lead.ExternalKey)
	}
	return checkRowsAffected(res, "lead", lead.ExternalKey)
}

func (s *SQLiteStore) UpdateLeadCRM(ctx context.Context, leadID string, upd CRMUpdate) error {
	var sets []string
	var args []any
	add := func(col string, val any) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if upd.Stage != nil {
		add("stage", string(*upd.Stage))
	}
	if upd.Quality != nil {
		add("quality", string(*upd.Quality))
	}
	if upd.ContactStatus != nil {
		add("contact_status", string(*upd.ContactStatus))
	}
	if upd.InterestLevel != nil {
		add("interest_level", string(*upd.InterestLevel))
	}
	if upd.CurrentStatus != nil {
		add("current_status", *upd.CurrentStatus)
	}
	if upd.AssignedTo != nil {
		add("assigned_to", *upd.AssignedTo)
	}
	if upd.LastContactAt != nil {
		add("last_contact_at", *upd.LastContactAt)
	}
	if upd.FollowUpAt != nil {
		add("follow_up_at", *upd.FollowUpAt)
	}
	if upd.IsManaged != nil {
		add("is_managed", *upd.IsManaged)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", time.Now().UTC())

	args = append(args, leadID)
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE leads SET %s WHERE id = ?", strings.Join(sets, ", ")),
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead crm %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	if filter.Quality != "" {
		query += ` AND quality = ?`
		args = append(args, string(filter.Quality))
	}
	if filter.AssignedTo != "" {
		query += ` AND assigned_to = ?`
		args = append(args, filter.AssignedTo)
	}
	if filter.SheetSource != "" {
		query += ` AND sheet_source = ?`
		args = append(args, filter.SheetSource)
	}
	if filter.Managed != nil {
		query += ` AND is_managed = ?`
		args = append(args, *filter.Managed)
	}
	if filter.Search != "" {
		query += ` AND (full_name LIKE ? OR phone LIKE ? OR email LIKE ?)`
		p := "%" + filter.Search + "%"
		args = append(args, p, p, p)
	}

	query += ` ORDER BY imported_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk upsert begin")
	}
	defer tx.Rollback() //nolint:errcheck

	// Conflict updates touch only the sheet-sourced contact fields; the CRM
	// overlay of existing leads is never overwritten by a re-import.
	// is_managed ratchets forward: an import can manage a lead but never
	// un-manage one.
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leads (`+sqliteLeadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_key) DO UPDATE SET
			full_name = excluded.full_name,
			phone = excluded.phone,
			whatsapp = excluded.whatsapp,
			email = excluded.email,
			state = excluded.state,
			category = excluded.category,
			business_type = excluded.business_type,
			created_time = excluded.created_time,
			created_raw = excluded.created_raw,
			row_number = excluded.row_number,
			extra = excluded.extra,
			is_managed = (excluded.is_managed OR leads.is_managed),
			updated_at = excluded.updated_at`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk upsert prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var written int64
	for _, l := range leads {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		importedAt := l.ImportedAt
		if importedAt.IsZero() {
			importedAt = now
		}
		extraJSON, err := sqliteExtra(l.Extra)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk upsert %s", l.ExternalKey)
		}
		if _, err := stmt.ExecContext(ctx,
			l.ID, l.ExternalKey, l.FullName, l.Phone, l.WhatsApp, l.Email,
			l.State, l.Category, l.BusinessType, l.CreatedTime, l.CreatedRaw,
			l.SheetSource, l.RowNumber, extraJSON, l.IsManaged,
			l.CurrentStatus, string(l.Stage), string(l.Quality),
			string(l.ContactStatus), string(l.InterestLevel), l.AssignedTo,
			l.LastContactAt, l.FollowUpAt, importedAt, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: bulk upsert %s", l.ExternalKey)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: bulk upsert commit")
	}
	return written, nil
}

func (s *SQLiteStore) ListAssignees(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT assigned_to FROM leads WHERE assigned_to <> '' ORDER BY assigned_to`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignees")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignee")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list assignees iterate")
}

func (s *SQLiteStore) AddNote(ctx context.Context, note *model.LeadNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lead_notes (id, lead_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.LeadID, note.Author, note.Body, note.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: add note for lead %s", note.LeadID)
}

func (s *SQLiteStore) ListNotes(ctx context.Context, leadID string) ([]model.LeadNote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, author, body, created_at FROM lead_notes
		 WHERE lead_id = ? ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notes")
	}
	defer rows.Close()

	var notes []model.LeadNote
	for rows.Next() {
		var n model.LeadNote
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: list notes iterate")
}

func (s *SQLiteStore) AddStatusHistory(ctx context.Context, entry *model.StatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_history (id, lead_id, actor, old_stage, new_stage, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.LeadID, entry.Actor, string(entry.OldStage),
		string(entry.NewStage), entry.Reason, entry.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: add status history for lead %s", entry.LeadID)
}

func (s *SQLiteStore) ListStatusHistory(ctx context.Context, leadID string) ([]model.StatusHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, actor, old_stage, new_stage, reason, created_at
		 FROM status_history WHERE lead_id = ? ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list status history")
	}
	defer rows.Close()

	var entries []model.StatusHistory
	for rows.Next() {
		var e model.StatusHistory
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Actor, &e.OldStage, &e.NewStage, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status history")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list status history iterate")
}

func (s *SQLiteStore) GetSyncMetadata(ctx context.Context, sheetName string) (*model.SyncMetadata, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed
		 FROM sync_metadata WHERE sheet_name = ?`,
		sheetName,
	)

	var m model.SyncMetadata
	var lastSyncAt sql.NullTime
	err := row.Scan(&m.SheetName, &m.SheetID, &m.LastRowNumber, &lastSyncAt, &m.TotalRowsProcessed)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get sync metadata")
	}
	if lastSyncAt.Valid {
		t := lastSyncAt.Time
		m.LastSyncAt = &t
	}
	return &m, nil
}

func (s *SQLiteStore) UpsertSyncMetadata(ctx context.Context, meta *model.SyncMetadata) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_metadata (sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(sheet_name) DO UPDATE SET
			sheet_id = excluded.sheet_id,
			last_row_number = excluded.last_row_number,
			last_sync_at = excluded.last_sync_at,
			total_rows_processed = excluded.total_rows_processed`,
		meta.SheetName, meta.SheetID, meta.LastRowNumber, meta.LastSyncAt, meta.TotalRowsProcessed,
	)
	return eris.Wrapf(err, "sqlite: upsert sync metadata %s", meta.SheetName)
}

func (s *SQLiteStore) ResetSyncMetadata(ctx context.Context, sheetName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_metadata SET last_row_number = 0, last_sync_at = NULL WHERE sheet_name = ?`,
		sheetName,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: reset sync metadata %s", sheetName)
	}
	return checkRowsAffected(res, "sync metadata", sheetName)
}

func (s *SQLiteStore) ListSyncMetadata(ctx context.Context) ([]model.SyncMetadata, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed
		 FROM sync_metadata ORDER BY sheet_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync metadata")
	}
	defer rows.Close()

	var metas []model.SyncMetadata
	for rows.Next() {
		var m model.SyncMetadata
		var lastSyncAt sql.NullTime
		if err := rows.Scan(&m.SheetName, &m.SheetID, &m.LastRowNumber, &lastSyncAt, &m.TotalRowsProcessed); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync metadata")
		}
		if lastSyncAt.Valid {
			t := lastSyncAt.Time
			m.LastSyncAt = &t
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "sqlite: list sync metadata iterate")
}

// checkRowsAffected turns a zero-row update into ErrNotFound.
func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
