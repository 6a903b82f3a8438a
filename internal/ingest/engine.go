package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/config"
	"github.com/sells-group/leadsync/internal/fetcher"
	"github.com/sells-group/leadsync/internal/sheet"
	"github.com/sells-group/leadsync/internal/store"
)

// Report aggregates a sync run across all configured sheets.
type Report struct {
	Success          bool     `json:"success"`
	RecordsProcessed int      `json:"recordsProcessed"`
	RecordsAdded     int      `json:"recordsAdded"`
	RecordsUpdated   int      `json:"recordsUpdated"`
	Errors           []string `json:"errors"`
}

// Engine drives the fetch -> parse -> normalize -> reconcile pipeline for
// every configured sheet.
type Engine struct {
	store     store.Store
	fetch     fetcher.Fetcher
	sheets    []config.SheetRef
	templates sheet.Templates
	sync      config.SyncConfig
	log       *zap.Logger
}

// NewEngine creates an Engine over the given store and fetcher.
func NewEngine(st store.Store, f fetcher.Fetcher, sheets []config.SheetRef, templates sheet.Templates, syncCfg config.SyncConfig) *Engine {
	return &Engine{
		store:     st,
		fetch:     f,
		sheets:    sheets,
		templates: templates,
		sync:      syncCfg,
		log:       zap.L().With(zap.String("component", "ingest.engine")),
	}
}

// Sync runs one reconciliation pass over every configured sheet. A sheet
// that fails to download or parse is reported in Errors and the remaining
// sheets still run. Success means the error list is empty.
func (e *Engine) Sync(ctx context.Context, full bool) *Report {
	return e.syncRefs(ctx, e.sheets, full)
}

// SyncSheets syncs only the requested sheets. A request naming a configured
// sheet runs with the configured ref; a request carrying its own document id
// runs as an ad-hoc sheet. Requests with neither are reported in Errors
// without blocking the rest.
func (e *Engine) SyncSheets(ctx context.Context, requested []config.SheetRef, full bool) *Report {
	if len(requested) == 0 {
		return e.Sync(ctx, full)
	}

	byName := make(map[string]config.SheetRef, len(e.sheets))
	for _, ref := range e.sheets {
		byName[ref.Name] = ref
	}

	var refs []config.SheetRef
	var rejected []string
	for _, req := range requested {
		if req.Name == "" {
			rejected = append(rejected, fmt.Sprintf("%s: sheet_name is required", req.ID))
			continue
		}
		if ref, ok := byName[req.Name]; ok {
			if req.ID != "" && req.ID != ref.ID {
				rejected = append(rejected,
					fmt.Sprintf("%s: sheet id %s does not match the configured document", req.Name, req.ID))
				continue
			}
			refs = append(refs, ref)
			continue
		}
		if req.ID == "" {
			rejected = append(rejected, fmt.Sprintf("%s: not configured and no sheet id supplied", req.Name))
			continue
		}
		refs = append(refs, req)
	}

	report := e.syncRefs(ctx, refs, full)
	report.Errors = append(report.Errors, rejected...)
	report.Success = len(report.Errors) == 0
	return report
}

func (e *Engine) syncRefs(ctx context.Context, refs []config.SheetRef, full bool) *Report {
	report := &Report{}

	for _, ref := range refs {
		res, err := e.syncSheet(ctx, ref, full)
		if err != nil {
			report.Errors = append(report.Errors,
				fmt.Sprintf("%s: %s", ref.Name, err.Error()))
			e.log.Error("sheet sync failed",
				zap.String("sheet", ref.Name),
				zap.Error(err),
			)
			continue
		}
		report.RecordsProcessed += res.Processed
		report.RecordsAdded += res.Added
		report.RecordsUpdated += res.Updated
		report.Errors = append(report.Errors, res.Errors...)
	}

	report.Success = len(report.Errors) == 0
	return report
}

func (e *Engine) syncSheet(ctx context.Context, ref config.SheetRef, full bool) (*Result, error) {
	candidates, err := e.fetchCandidates(ctx, ref)
	if err != nil {
		return nil, err
	}

	rec := NewReconciler(e.store)
	return rec.Reconcile(ctx, ref.Name, ref.ID, candidates, ReconcileOptions{
		Full:        full,
		MarkManaged: full && e.sync.FullManaged,
	})
}

// fetchCandidates downloads a sheet's CSV export and normalizes its data
// rows. Row numbers are 1-based over data rows, excluding the header.
func (e *Engine) fetchCandidates(ctx context.Context, ref config.SheetRef) ([]sheet.Candidate, error) {
	url := fetcher.SheetCSVURL(ref.ID, ref.GID)
	body, err := e.fetch.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch sheet %s", ref.Name)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "read sheet %s", ref.Name)
	}

	return ParseCSV(string(data), e.templates.ForSheet(ref.Name))
}

// ParseCSV turns raw CSV text into normalized candidates using the given
// header template.
func ParseCSV(text string, tmpl sheet.Template) ([]sheet.Candidate, error) {
	lines := sheet.SplitLines(text)
	if len(lines) == 0 {
		return nil, eris.New("empty csv")
	}

	headers := sheet.ParseLine(lines[0])
	idx := sheet.ResolveHeader(headers, tmpl)

	var candidates []sheet.Candidate
	for i, line := range lines[1:] {
		row := sheet.ParseLine(line)
		c, ok := sheet.Normalize(row, headers, idx, i+1)
		if !ok {
			continue
		}
		candidates = append(candidates, *c)
	}
	return candidates, nil
}
