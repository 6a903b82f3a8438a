package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

var leadColumnNames = []string{
	"id", "external_key", "full_name", "phone", "whatsapp", "email", "state",
	"category", "business_type", "created_time", "created_raw", "sheet_source",
	"row_number", "extra", "is_managed", "current_status", "stage", "quality",
	"contact_status", "interest_level", "assigned_to", "last_contact_at",
	"follow_up_at", "imported_at", "updated_at",
}

func TestGetLeadByKey(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()
	rowNum := 7

	mock.ExpectQuery(`SELECT .* FROM leads WHERE external_key = \$1`).
		WithArgs("sheet_1_food_phone_9876543210").
		WillReturnRows(pgxmock.NewRows(leadColumnNames).AddRow(
			"lead-1", "sheet_1_food_phone_9876543210", "Asha", "9876543210", "",
			"asha@example.com", "TS", "Restaurant", "", (*time.Time)(nil), "",
			"sheet_1_food", &rowNum, []byte(`{"City":"Hyderabad"}`),
			false, "", model.StageNew, model.QualityCold,
			model.ContactNotContacted, model.InterestUnknown, "",
			(*time.Time)(nil), (*time.Time)(nil), now, now,
		))

	lead, err := s.GetLeadByKey(context.Background(), "sheet_1_food_phone_9876543210")
	require.NoError(t, err)

	assert.Equal(t, "Asha", lead.FullName)
	assert.Equal(t, model.StageNew, lead.Stage)
	require.NotNil(t, lead.RowNumber)
	assert.Equal(t, 7, *lead.RowNumber)
	assert.Equal(t, "Hyderabad", lead.Extra["City"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLeadByKey_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE external_key = \$1`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows(leadColumnNames))

	_, err := s.GetLeadByKey(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadCRM_BuildsPartialSet(t *testing.T) {
	s, mock := newMockStore(t)

	stage := model.StageQualified
	quality := model.QualityHot

	mock.ExpectExec(`UPDATE leads SET stage = \$1, quality = \$2, updated_at = now\(\) WHERE id = \$3`).
		WithArgs(stage, quality, "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateLeadCRM(context.Background(), "lead-1", CRMUpdate{
		Stage:   &stage,
		Quality: &quality,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadCRM_NoFieldsIsNoop(t *testing.T) {
	s, mock := newMockStore(t)

	err := s.UpdateLeadCRM(context.Background(), "lead-1", CRMUpdate{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLeadContact_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE leads SET`).
		WithArgs("Asha", "9876543210", "", "", "", "", "", (*time.Time)(nil), "",
			(*int)(nil), nil, "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateLeadContact(context.Background(), &model.Lead{
		ExternalKey: "missing",
		FullName:    "Asha",
		Phone:       "9876543210",
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSyncMetadata(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT INTO sync_metadata .* ON CONFLICT \(sheet_name\) DO UPDATE`).
		WithArgs("sheet_1_food", "doc-a", 42, &now, 100).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertSyncMetadata(context.Background(), &model.SyncMetadata{
		SheetName:          "sheet_1_food",
		SheetID:            "doc-a",
		LastRowNumber:      42,
		LastSyncAt:         &now,
		TotalRowsProcessed: 100,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetSyncMetadata_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE sync_metadata SET last_row_number = 0`).
		WithArgs("ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.ResetSyncMetadata(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkUpsertLeads_RestrictsConflictUpdateToContactFields(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_leads"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_leads"}, bulkLeadColumns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "leads" .* ON CONFLICT \("external_key"\) DO UPDATE SET "full_name" = EXCLUDED\."full_name".*"is_managed" = EXCLUDED\."is_managed" OR leads\."is_managed"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.BulkUpsertLeads(context.Background(), []model.Lead{
		{ExternalKey: "sheet_1_food_phone_9876543210", FullName: "Asha", Phone: "9876543210"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
