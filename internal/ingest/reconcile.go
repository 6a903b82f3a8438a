// Package ingest reconciles sheet rows into the lead store: full pipeline
// sync, read-only new-row checks, and batched bulk imports.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/sheet"
	"github.com/sells-group/leadsync/internal/store"
)

// ReconcileOptions controls one reconciliation pass over a sheet's rows.
type ReconcileOptions struct {
	// Full reprocesses every row regardless of the stored watermark.
	Full bool
	// MarkManaged marks newly inserted leads as managed. Full-sweep initial
	// imports set it so the sheet's history is visible in the default list
	// views; the new-lead discovery path leaves inserts unmanaged until a
	// human acts on them.
	MarkManaged bool
}

// Result summarizes one reconciliation pass.
type Result struct {
	Processed int      `json:"recordsProcessed"`
	Added     int      `json:"recordsAdded"`
	Updated   int      `json:"recordsUpdated"`
	Errors    []string `json:"errors"`
}

// Reconciler applies normalized sheet rows to the lead store.
type Reconciler struct {
	store store.Store
	log   *zap.Logger
}

// NewReconciler creates a Reconciler backed by the given store.
func NewReconciler(st store.Store) *Reconciler {
	return &Reconciler{
		store: st,
		log:   zap.L().With(zap.String("component", "ingest.reconcile")),
	}
}

// Reconcile upserts the candidates of one sheet into the store and advances
// the sheet's watermark. Row failures are isolated: the failing row is
// reported in Result.Errors and the pass continues.
func (r *Reconciler) Reconcile(ctx context.Context, sheetName, sheetID string, candidates []sheet.Candidate, opts ReconcileOptions) (*Result, error) {
	meta, err := r.store.GetSyncMetadata(ctx, sheetName)
	if eris.Is(err, store.ErrNotFound) {
		meta = &model.SyncMetadata{SheetName: sheetName, SheetID: sheetID}
	} else if err != nil {
		return nil, eris.Wrapf(err, "ingest: load watermark for %s", sheetName)
	}

	watermark := meta.LastRowNumber
	if opts.Full {
		watermark = 0
	}

	res := &Result{}
	maxRow := meta.LastRowNumber

	for i := range candidates {
		c := &candidates[i]
		if c.RowNumber > maxRow {
			maxRow = c.RowNumber
		}
		if c.RowNumber <= watermark {
			continue
		}

		if err := r.reconcileRow(ctx, sheetName, c, opts, res); err != nil {
			res.Errors = append(res.Errors,
				fmt.Sprintf("%s row %d: %s", sheetName, c.RowNumber, err.Error()))
			r.log.Warn("row reconcile failed",
				zap.String("sheet", sheetName),
				zap.Int("row", c.RowNumber),
				zap.Error(err),
			)
		}
		res.Processed++
	}

	now := time.Now().UTC()
	meta.SheetID = sheetID
	meta.LastRowNumber = maxRow
	meta.LastSyncAt = &now
	meta.TotalRowsProcessed += res.Processed
	if err := r.store.UpsertSyncMetadata(ctx, meta); err != nil {
		return nil, eris.Wrapf(err, "ingest: advance watermark for %s", sheetName)
	}

	r.log.Info("sheet reconciled",
		zap.String("sheet", sheetName),
		zap.Int("processed", res.Processed),
		zap.Int("added", res.Added),
		zap.Int("updated", res.Updated),
		zap.Int("rowErrors", len(res.Errors)),
		zap.Int("watermark", maxRow),
	)
	return res, nil
}

func (r *Reconciler) reconcileRow(ctx context.Context, sheetName string, c *sheet.Candidate, opts ReconcileOptions, res *Result) error {
	key := model.ExternalKey(sheetName, c.Phone, c.RowNumber, c.CreatedFragment())

	existing, err := r.store.GetLeadByKey(ctx, key)
	if eris.Is(err, store.ErrNotFound) {
		lead := LeadFromCandidate(sheetName, c)
		lead.IsManaged = opts.MarkManaged
		if err := r.store.InsertLead(ctx, lead); err != nil {
			return err
		}
		res.Added++
		return nil
	}
	if err != nil {
		return err
	}

	// Managed leads are human-owned; no sync mode rewrites their contact
	// fields.
	if existing.IsManaged {
		return nil
	}

	lead := LeadFromCandidate(sheetName, c)
	lead.ExternalKey = key
	if err := r.store.UpdateLeadContact(ctx, lead); err != nil {
		return err
	}
	res.Updated++
	return nil
}

// LeadFromCandidate builds a new lead from a normalized sheet row with the
// default CRM overlay.
func LeadFromCandidate(sheetName string, c *sheet.Candidate) *model.Lead {
	rowNum := c.RowNumber
	return &model.Lead{
		ExternalKey:   model.ExternalKey(sheetName, c.Phone, c.RowNumber, c.CreatedFragment()),
		FullName:      c.FullName,
		Phone:         c.Phone,
		WhatsApp:      c.Phone,
		Email:         c.Email,
		State:         c.State,
		Category:      c.Category,
		BusinessType:  c.BusinessType,
		CreatedTime:   c.CreatedTime,
		CreatedRaw:    c.CreatedRaw,
		SheetSource:   sheetName,
		RowNumber:     &rowNum,
		Extra:         c.Extra,
		Stage:         model.StageNew,
		Quality:       model.QualityCold,
		ContactStatus: model.ContactNotContacted,
		InterestLevel: model.InterestUnknown,
		AssignedTo:    c.AssignedTo,
	}
}
