package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/db"
	"github.com/sells-group/leadsync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const leadColumns = `id, external_key, full_name, phone, whatsapp, email, state, category,
	business_type, created_time, created_raw, sheet_source, row_number, extra,
	is_managed, current_status, stage, quality, contact_status, interest_level,
	assigned_to, last_contact_at, follow_up_at, imported_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var extraJSON []byte

	err := row.Scan(
		&l.ID, &l.ExternalKey, &l.FullName, &l.Phone, &l.WhatsApp, &l.Email,
		&l.State, &l.Category, &l.BusinessType, &l.CreatedTime, &l.CreatedRaw,
		&l.SheetSource, &l.RowNumber, &extraJSON,
		&l.IsManaged, &l.CurrentStatus, &l.Stage, &l.Quality, &l.ContactStatus,
		&l.InterestLevel, &l.AssignedTo, &l.LastContactAt, &l.FollowUpAt,
		&l.ImportedAt, &l.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}

	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &l.Extra); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal extra")
		}
	}
	return &l, nil
}

func marshalExtra(extra map[string]string) (any, error) {
	if len(extra) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(extra)
	if err != nil {
		return nil, eris.Wrap(err, "marshal extra")
	}
	return data, nil
}

func (s *PostgresStore) GetLeadByKey(ctx context.Context, externalKey string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE external_key = $1`,
		externalKey,
	)
	return scanLead(row)
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if lead.ImportedAt.IsZero() {
		lead.ImportedAt = now
	}
	lead.UpdatedAt = now

	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "postgres: insert lead")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (`+leadColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
		lead.ID, lead.ExternalKey, lead.FullName, lead.Phone, lead.WhatsApp,
		lead.Email, lead.State, lead.Category, lead.BusinessType,
		lead.CreatedTime, lead.CreatedRaw, lead.SheetSource, lead.RowNumber,
		extraJSON, lead.IsManaged, lead.CurrentStatus, lead.Stage, lead.Quality,
		lead.ContactStatus, lead.InterestLevel, lead.AssignedTo,
		lead.LastContactAt, lead.FollowUpAt, lead.ImportedAt, lead.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: insert lead %s", lead.ExternalKey)
}

func (s *PostgresStore) UpdateLeadContact(ctx context.Context, lead *model.Lead) error {
	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "postgres: update lead contact")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET
			full_name = $1, phone = $2, whatsapp = $3, email = $4, state = $5,
			category = $6, business_type = $7, created_time = $8,
			created_raw = $9, row_number = $10, extra = $11, updated_at = now()
		 WHERE external_key = $12`,
		lead.FullName, lead.Phone, lead.WhatsApp, lead.Email, lead.State,
		lead.Category, lead.BusinessType, lead.CreatedTime, lead.CreatedRaw,
		lead.RowNumber, extraJSON, lead.ExternalKey,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead contact %s", lead.ExternalKey)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateLeadCRM(ctx context.Context, leadID string, upd CRMUpdate) error {
	var sets []string
	var args []any
	add := func(col string, val any) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Stage != nil {
		add("stage", *upd.Stage)
	}
	if upd.Quality != nil {
		add("quality", *upd.Quality)
	}
	if upd.ContactStatus != nil {
		add("contact_status", *upd.ContactStatus)
	}
	if upd.InterestLevel != nil {
		add("interest_level", *upd.InterestLevel)
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
	sets = append(sets, "updated_at = now()")

	args = append(args, leadID)
	query := fmt.Sprintf("UPDATE leads SET %s WHERE id = $%d",
		strings.Join(sets, ", "), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead crm %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Stage != "" {
		query += ` AND stage = ` + arg(filter.Stage)
	}
	if filter.Quality != "" {
		query += ` AND quality = ` + arg(filter.Quality)
	}
	if filter.AssignedTo != "" {
		query += ` AND assigned_to = ` + arg(filter.AssignedTo)
	}
	if filter.SheetSource != "" {
		query += ` AND sheet_source = ` + arg(filter.SheetSource)
	}
	if filter.Managed != nil {
		query += ` AND is_managed = ` + arg(*filter.Managed)
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		query += fmt.Sprintf(` AND (full_name ILIKE %s OR phone ILIKE %s OR email ILIKE %s)`, p, p, p)
	}

	query += ` ORDER BY imported_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

// bulkLeadColumns are the columns written by BulkUpsertLeads. The id column
// is omitted so new rows pick up the table default.
var bulkLeadColumns = []string{
	"external_key", "full_name", "phone", "whatsapp", "email", "state",
	"category", "business_type", "created_time", "created_raw", "sheet_source",
	"row_number", "extra", "is_managed", "current_status", "stage", "quality",
	"contact_status", "interest_level", "assigned_to", "imported_at", "updated_at",
}

// bulkLeadUpdateColumns restricts conflict updates to the sheet-sourced
// contact fields so re-imports never clobber the human-owned CRM overlay.
var bulkLeadUpdateColumns = []string{
	"full_name", "phone", "whatsapp", "email", "state", "category",
	"business_type", "created_time", "created_raw", "row_number", "extra",
	"updated_at",
}

// bulkLeadUpdateExprs ratchets is_managed forward on conflict: an import can
// manage a lead but never un-manage one.
var bulkLeadUpdateExprs = []string{
	`"is_managed" = EXCLUDED."is_managed" OR leads."is_managed"`,
}

func (s *PostgresStore) BulkUpsertLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for _, l := range leads {
		extraJSON, err := marshalExtra(l.Extra)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: bulk upsert %s", l.ExternalKey)
		}
		importedAt := l.ImportedAt
		if importedAt.IsZero() {
			importedAt = now
		}
		rows = append(rows, []any{
			l.ExternalKey, l.FullName, l.Phone, l.WhatsApp, l.Email, l.State,
			l.Category, l.BusinessType, l.CreatedTime, l.CreatedRaw,
			l.SheetSource, l.RowNumber, extraJSON, l.IsManaged,
			l.CurrentStatus, l.Stage, l.Quality, l.ContactStatus,
			l.InterestLevel, l.AssignedTo, importedAt, now,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      bulkLeadColumns,
		ConflictKeys: []string{"external_key"},
		UpdateCols:   bulkLeadUpdateColumns,
		UpdateExprs:  bulkLeadUpdateExprs,
	}, rows)
	return n, eris.Wrap(err, "postgres: bulk upsert leads")
}

func (s *PostgresStore) ListAssignees(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT assigned_to FROM leads WHERE assigned_to <> '' ORDER BY assigned_to`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignees")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignee")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "postgres: list assignees iterate")
}

func (s *PostgresStore) AddNote(ctx context.Context, note *model.LeadNote) error {
	if note.ID == "" {
		note.ID = uuid.New().String()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lead_notes (id, lead_id, author, body, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		note.ID, note.LeadID, note.Author, note.Body, note.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: add note for lead %s", note.LeadID)
}

func (s *PostgresStore) ListNotes(ctx context.Context, leadID string) ([]model.LeadNote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, author, body, created_at FROM lead_notes
		 WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notes")
	}
	defer rows.Close()

	var notes []model.LeadNote
	for rows.Next() {
		var n model.LeadNote
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: list notes iterate")
}

func (s *PostgresStore) AddStatusHistory(ctx context.Context, entry *model.StatusHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO status_history (id, lead_id, actor, old_stage, new_stage, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.LeadID, entry.Actor, entry.OldStage, entry.NewStage,
		entry.Reason, entry.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: add status history for lead %s", entry.LeadID)
}

func (s *PostgresStore) ListStatusHistory(ctx context.Context, leadID string) ([]model.StatusHistory, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, actor, old_stage, new_stage, reason, created_at
		 FROM status_history WHERE lead_id = $1 ORDER BY created_at DESC`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list status history")
	}
	defer rows.Close()

	var entries []model.StatusHistory
	for rows.Next() {
		var e model.StatusHistory
		if err := rows.Scan(&e.ID, &e.LeadID, &e.Actor, &e.OldStage, &e.NewStage, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status history")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list status history iterate")
}

func (s *PostgresStore) GetSyncMetadata(ctx context.Context, sheetName string) (*model.SyncMetadata, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed
		 FROM sync_metadata WHERE sheet_name = $1`,
		sheetName,
	)

	var m model.SyncMetadata
	err := row.Scan(&m.SheetName, &m.SheetID, &m.LastRowNumber, &m.LastSyncAt, &m.TotalRowsProcessed)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get sync metadata")
	}
	return &m, nil
}

func (s *PostgresStore) UpsertSyncMetadata(ctx context.Context, meta *model.SyncMetadata) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sync_metadata (sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (sheet_name) DO UPDATE SET
			sheet_id = EXCLUDED.sheet_id,
			last_row_number = EXCLUDED.last_row_number,
			last_sync_at = EXCLUDED.last_sync_at,
			total_rows_processed = EXCLUDED.total_rows_processed`,
		meta.SheetName, meta.SheetID, meta.LastRowNumber, meta.LastSyncAt, meta.TotalRowsProcessed,
	)
	return eris.Wrapf(err, "postgres: upsert sync metadata %s", meta.SheetName)
}

func (s *PostgresStore) ResetSyncMetadata(ctx context.Context, sheetName string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_metadata SET last_row_number = 0, last_sync_at = NULL WHERE sheet_name = $1`,
		sheetName,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: reset sync metadata %s", sheetName)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSyncMetadata(ctx context.Context) ([]model.SyncMetadata, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT sheet_name, sheet_id, last_row_number, last_sync_at, total_rows_processed
		 FROM sync_metadata ORDER BY sheet_name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync metadata")
	}
	defer rows.Close()

	var metas []model.SyncMetadata
	for rows.Next() {
		var m model.SyncMetadata
		if err := rows.Scan(&m.SheetName, &m.SheetID, &m.LastRowNumber, &m.LastSyncAt, &m.TotalRowsProcessed); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync metadata")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "postgres: list sync metadata iterate")
}
