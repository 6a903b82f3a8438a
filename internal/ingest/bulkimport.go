package ingest

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/sheet"
	"github.com/sells-group/leadsync/internal/store"
)

// ImportOptions controls a bulk import.
type ImportOptions struct {
	// AssignToRandom distributes unassigned leads across the known
	// assignees round-robin from a random starting point.
	AssignToRandom bool `json:"assignToRandom"`
	// MarkAsManaged flags every imported lead as human-owned, protecting it
	// from subsequent sheet syncs.
	MarkAsManaged bool `json:"markAsManaged"`
}

// Importer writes externally supplied leads to the store in batches.
type Importer struct {
	store     store.Store
	batchSize int
	log       *zap.Logger
}

// NewImporter creates an Importer writing batches of batchSize leads.
func NewImporter(st store.Store, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Importer{
		store:     st,
		batchSize: batchSize,
		log:       zap.L().With(zap.String("component", "ingest.import")),
	}
}

// Import upserts the given leads in batches keyed on external key. Leads
// without an external key get one derived from their sheet source, phone,
// and row number. A failing batch is reported and the rest continue.
func (im *Importer) Import(ctx context.Context, leads []model.Lead, opts ImportOptions) (*Report, error) {
	report := &Report{Success: true}
	if len(leads) == 0 {
		return report, nil
	}

	var assignees []string
	if opts.AssignToRandom {
		var err error
		assignees, err = im.store.ListAssignees(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: list assignees")
		}
	}
	next := 0
	if len(assignees) > 0 {
		next = rand.IntN(len(assignees))
	}

	for i := range leads {
		l := &leads[i]
		if l.ExternalKey == "" {
			rowNum := i + 1
			if l.RowNumber != nil {
				rowNum = *l.RowNumber
			}
			l.ExternalKey = model.ExternalKey(l.SheetSource, l.Phone, rowNum, l.CreatedRaw)
		}
		if l.Stage == "" {
			l.Stage = model.StageNew
		}
		if l.Quality == "" {
			l.Quality = model.QualityCold
		}
		if l.ContactStatus == "" {
			l.ContactStatus = model.ContactNotContacted
		}
		if l.InterestLevel == "" {
			l.InterestLevel = model.InterestUnknown
		}
		if opts.MarkAsManaged {
			l.IsManaged = true
		}
		if opts.AssignToRandom && l.AssignedTo == "" && len(assignees) > 0 {
			l.AssignedTo = assignees[next%len(assignees)]
			next++
		}
	}

	for start := 0; start < len(leads); start += im.batchSize {
		end := min(start+im.batchSize, len(leads))
		batch := leads[start:end]

		n, err := im.store.BulkUpsertLeads(ctx, batch)
		if err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("batch %d-%d: %s", start+1, end, err.Error()))
			im.log.Error("import batch failed",
				zap.Int("from", start+1),
				zap.Int("to", end),
				zap.Error(err),
			)
			continue
		}
		report.RecordsProcessed += len(batch)
		report.RecordsAdded += int(n)
	}

	report.Success = len(report.Errors) == 0
	im.log.Info("bulk import finished",
		zap.Int("leads", len(leads)),
		zap.Int("processed", report.RecordsProcessed),
		zap.Int("batchErrors", len(report.Errors)),
	)
	return report, nil
}

// ImportCSV parses raw CSV text through the normalization pipeline and
// imports the resulting leads under the given sheet source.
func (im *Importer) ImportCSV(ctx context.Context, sheetSource, csvText string, tmpl sheet.Template, opts ImportOptions) (*Report, error) {
	candidates, err := ParseCSV(csvText, tmpl)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: import csv")
	}

	leads := make([]model.Lead, 0, len(candidates))
	for i := range candidates {
		leads = append(leads, *LeadFromCandidate(sheetSource, &candidates[i]))
	}
	return im.Import(ctx, leads, opts)
}
