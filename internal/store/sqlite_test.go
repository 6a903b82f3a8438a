package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testLead(key string) *model.Lead {
	rowNum := 2
	created := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	return &model.Lead{
		ExternalKey:   key,
		FullName:      "Asha",
		Phone:         "9876543210",
		Email:         "asha@example.com",
		State:         "TS",
		Category:      "Restaurant",
		CreatedTime:   &created,
		SheetSource:   "sheet_1_food",
		RowNumber:     &rowNum,
		Extra:         map[string]string{"City": "Hyderabad"},
		Stage:         model.StageNew,
		Quality:       model.QualityCold,
		ContactStatus: model.ContactNotContacted,
		InterestLevel: model.InterestUnknown,
	}
}

func TestSQLite_InsertAndGetLead(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lead := testLead("sheet_1_food_phone_9876543210")
	require.NoError(t, s.InsertLead(ctx, lead))
	assert.NotEmpty(t, lead.ID)

	got, err := s.GetLeadByKey(ctx, lead.ExternalKey)
	require.NoError(t, err)
	assert.Equal(t, "Asha", got.FullName)
	assert.Equal(t, model.StageNew, got.Stage)
	require.NotNil(t, got.RowNumber)
	assert.Equal(t, 2, *got.RowNumber)
	assert.Equal(t, "Hyderabad", got.Extra["City"])
	require.NotNil(t, got.CreatedTime)
	assert.Equal(t, 2024, got.CreatedTime.UTC().Year())

	_, err = s.GetLeadByKey(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateLeadContactPreservesCRMOverlay(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lead := testLead("k1")
	require.NoError(t, s.InsertLead(ctx, lead))

	stage := model.StageQualified
	managed := true
	require.NoError(t, s.UpdateLeadCRM(ctx, lead.ID, CRMUpdate{Stage: &stage, IsManaged: &managed}))

	refreshed := testLead("k1")
	refreshed.FullName = "Asha Reddy"
	refreshed.Phone = "9876500000"
	require.NoError(t, s.UpdateLeadContact(ctx, refreshed))

	got, err := s.GetLeadByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Reddy", got.FullName)
	assert.Equal(t, "9876500000", got.Phone)
	assert.Equal(t, model.StageQualified, got.Stage, "crm overlay survives contact refresh")
	assert.True(t, got.IsManaged)
}

func TestSQLite_UpdateLeadCRM_NotFound(t *testing.T) {
	s := newTestSQLite(t)

	stage := model.StageWon
	err := s.UpdateLeadCRM(context.Background(), "ghost", CRMUpdate{Stage: &stage})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_BulkUpsertLeads(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	first := testLead("k1")
	require.NoError(t, s.InsertLead(ctx, first))

	stage := model.StageWon
	managed := true
	require.NoError(t, s.UpdateLeadCRM(ctx, first.ID, CRMUpdate{Stage: &stage, IsManaged: &managed}))

	reimport := *testLead("k1")
	reimport.FullName = "Asha Updated"
	reimport.Stage = model.StageNew
	fresh := *testLead("k2")
	fresh.Phone = "9123456789"

	n, err := s.BulkUpsertLeads(ctx, []model.Lead{reimport, fresh})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := s.GetLeadByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Asha Updated", got.FullName, "contact fields refreshed")
	assert.Equal(t, model.StageWon, got.Stage, "crm overlay untouched by re-import")
	assert.True(t, got.IsManaged)

	_, err = s.GetLeadByKey(ctx, "k2")
	require.NoError(t, err)
}

func TestSQLite_BulkUpsertPromotesManaged(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	discovered := testLead("k1")
	require.NoError(t, s.InsertLead(ctx, discovered))

	// A user acts on the previously discovered row: the import marks it
	// managed even though the sync already inserted it.
	managed := *testLead("k1")
	managed.IsManaged = true
	_, err := s.BulkUpsertLeads(ctx, []model.Lead{managed})
	require.NoError(t, err)

	got, err := s.GetLeadByKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.IsManaged, "import promotes the lead to managed")

	// A later plain re-import never demotes it.
	_, err = s.BulkUpsertLeads(ctx, []model.Lead{*testLead("k1")})
	require.NoError(t, err)

	got, err = s.GetLeadByKey(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, got.IsManaged, "managed only ratchets forward")
}

func TestSQLite_ListLeadsFilters(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	a := testLead("k1")
	a.AssignedTo = "ravi"
	a.Stage = model.StageQualified
	require.NoError(t, s.InsertLead(ctx, a))

	b := testLead("k2")
	b.FullName = "Bhanu"
	b.SheetSource = "sheet_2_gym"
	require.NoError(t, s.InsertLead(ctx, b))

	leads, err := s.ListLeads(ctx, LeadFilter{Stage: model.StageQualified})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "k1", leads[0].ExternalKey)

	leads, err = s.ListLeads(ctx, LeadFilter{SheetSource: "sheet_2_gym"})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Bhanu", leads[0].FullName)

	leads, err = s.ListLeads(ctx, LeadFilter{Search: "bhan"})
	require.NoError(t, err)
	require.Len(t, leads, 1)

	assignees, err := s.ListAssignees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ravi"}, assignees)
}

func TestSQLite_NotesAndHistory(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lead := testLead("k1")
	require.NoError(t, s.InsertLead(ctx, lead))

	require.NoError(t, s.AddNote(ctx, &model.LeadNote{
		LeadID: lead.ID, Author: "ravi", Body: "called, asked to ring back tomorrow",
	}))
	notes, err := s.ListNotes(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "ravi", notes[0].Author)

	require.NoError(t, s.AddStatusHistory(ctx, &model.StatusHistory{
		LeadID:   lead.ID,
		Actor:    "ravi",
		OldStage: model.StageNew,
		NewStage: model.StageContacted,
	}))
	history, err := s.ListStatusHistory(ctx, lead.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StageContacted, history[0].NewStage)
}

func TestSQLite_SyncMetadataLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	_, err := s.GetSyncMetadata(ctx, "sheet_1_food")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC()
	meta := &model.SyncMetadata{
		SheetName:          "sheet_1_food",
		SheetID:            "doc-a",
		LastRowNumber:      42,
		LastSyncAt:         &now,
		TotalRowsProcessed: 100,
	}
	require.NoError(t, s.UpsertSyncMetadata(ctx, meta))

	got, err := s.GetSyncMetadata(ctx, "sheet_1_food")
	require.NoError(t, err)
	assert.Equal(t, 42, got.LastRowNumber)
	require.NotNil(t, got.LastSyncAt)

	// Last write wins.
	meta.LastRowNumber = 50
	require.NoError(t, s.UpsertSyncMetadata(ctx, meta))
	got, err = s.GetSyncMetadata(ctx, "sheet_1_food")
	require.NoError(t, err)
	assert.Equal(t, 50, got.LastRowNumber)

	require.NoError(t, s.ResetSyncMetadata(ctx, "sheet_1_food"))
	got, err = s.GetSyncMetadata(ctx, "sheet_1_food")
	require.NoError(t, err)
	assert.Equal(t, 0, got.LastRowNumber)
	assert.Nil(t, got.LastSyncAt)

	metas, err := s.ListSyncMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, metas, 1)

	assert.ErrorIs(t, s.ResetSyncMetadata(ctx, "ghost"), ErrNotFound)
}
