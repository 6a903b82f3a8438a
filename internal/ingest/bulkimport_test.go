package ingest

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/sheet"
)

func importLeads(n int) []model.Lead {
	leads := make([]model.Lead, n)
	for i := range leads {
		leads[i] = model.Lead{
			SheetSource: "quick_import",
			FullName:    "Lead",
			Phone:       "98765000" + string(rune('0'+i%10)) + string(rune('0'+i/10%10)),
		}
	}
	return leads
}

func TestImport_Batches(t *testing.T) {
	st := newFakeStore()
	im := NewImporter(st, 2)

	report, err := im.Import(context.Background(), importLeads(5), ImportOptions{})
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Equal(t, 5, report.RecordsProcessed)
	assert.Empty(t, report.Errors)
	require.Len(t, st.bulkBatches, 3, "5 leads in batches of 2")
	assert.Len(t, st.bulkBatches[0], 2)
	assert.Len(t, st.bulkBatches[2], 1)
}

func TestImport_DerivesKeysAndDefaults(t *testing.T) {
	st := newFakeStore()
	im := NewImporter(st, 100)

	report, err := im.Import(context.Background(), []model.Lead{
		{SheetSource: "quick_import", FullName: "Asha", Phone: "9876543210"},
	}, ImportOptions{})
	require.NoError(t, err)
	require.True(t, report.Success)

	lead, err := st.GetLeadByKey(context.Background(), "quick_import_phone_9876543210")
	require.NoError(t, err)
	assert.Equal(t, model.StageNew, lead.Stage)
	assert.Equal(t, model.QualityCold, lead.Quality)
	assert.Equal(t, model.ContactNotContacted, lead.ContactStatus)
	assert.False(t, lead.IsManaged)
}

func TestImport_MarkAsManaged(t *testing.T) {
	st := newFakeStore()
	im := NewImporter(st, 100)

	_, err := im.Import(context.Background(), []model.Lead{
		{SheetSource: "quick_import", Phone: "9876543210"},
	}, ImportOptions{MarkAsManaged: true})
	require.NoError(t, err)

	lead, err := st.GetLeadByKey(context.Background(), "quick_import_phone_9876543210")
	require.NoError(t, err)
	assert.True(t, lead.IsManaged)
}

func TestImport_AssignToRandomCoversAllAssignees(t *testing.T) {
	st := newFakeStore()
	st.assignees = []string{"kiran", "ravi"}
	im := NewImporter(st, 100)

	leads := importLeads(4)
	leads[0].AssignedTo = "meena" // explicit assignment wins

	_, err := im.Import(context.Background(), leads, ImportOptions{AssignToRandom: true})
	require.NoError(t, err)

	counts := map[string]int{}
	for _, batch := range st.bulkBatches {
		for _, l := range batch {
			counts[l.AssignedTo]++
		}
	}
	assert.Equal(t, 1, counts["meena"])
	// Round-robin from a random start splits the remaining three 2/1.
	assert.Equal(t, 3, counts["kiran"]+counts["ravi"])
	assert.GreaterOrEqual(t, counts["kiran"], 1)
	assert.GreaterOrEqual(t, counts["ravi"], 1)
}

func TestImport_BatchFailureIsolated(t *testing.T) {
	st := newFakeStore()
	st.bulkErr = eris.New("copy failed")
	im := NewImporter(st, 100)

	report, err := im.Import(context.Background(), importLeads(3), ImportOptions{})
	require.NoError(t, err)

	assert.False(t, report.Success, "a failed batch leaves the import unsuccessful")
	assert.Equal(t, 0, report.RecordsProcessed)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "batch 1-3")
}

func TestImportCSV(t *testing.T) {
	st := newFakeStore()
	im := NewImporter(st, 100)

	csv := "Full Name,Phone Number,Created Time\n" +
		"Asha,9876543210,2024-01-05\n" +
		"Bhanu,9123456789,2024-01-06\n"

	report, err := im.ImportCSV(context.Background(), "quick_import", csv, sheet.DefaultTemplate(), ImportOptions{MarkAsManaged: true})
	require.NoError(t, err)
	assert.Equal(t, 2, report.RecordsProcessed)

	lead, err := st.GetLeadByKey(context.Background(), "quick_import_phone_9876543210")
	require.NoError(t, err)
	assert.Equal(t, "Asha", lead.FullName)
	assert.True(t, lead.IsManaged)
}
