package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/fetcher"
	"github.com/sells-group/leadsync/internal/ingest"
	"github.com/sells-group/leadsync/internal/sheet"
	"github.com/sells-group/leadsync/internal/store"
)

// openStore opens the configured store backend.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.Path)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// buildEngine wires the fetcher, templates, and configured sheets into a
// sync engine.
func buildEngine(st store.Store) (*ingest.Engine, error) {
	sheets := cfg.Sheets.Configured()
	if len(sheets) == 0 {
		return nil, eris.New("no sheets configured; set sheets.primary.id and sheets.primary.name")
	}

	templates, err := sheet.LoadTemplates(cfg.Sheets.TemplatePath)
	if err != nil {
		return nil, eris.Wrap(err, "load header templates")
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
	})

	return ingest.NewEngine(st, f, sheets, templates, cfg.Sync), nil
}
