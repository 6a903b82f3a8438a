// Package server exposes the sync pipeline over HTTP: manual and cron-gated
// sync triggers, a read-only new-row check, bulk import, and watermark status.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/config"
	"github.com/sells-group/leadsync/internal/ingest"
	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

// Syncer triggers reconciliation passes and read-only checks.
type Syncer interface {
	Sync(ctx context.Context, full bool) *ingest.Report
	SyncSheets(ctx context.Context, refs []config.SheetRef, full bool) *ingest.Report
	CheckNew(ctx context.Context) (*ingest.CheckReport, error)
}

// Importer writes externally supplied leads in batches.
type Importer interface {
	Import(ctx context.Context, leads []model.Lead, opts ingest.ImportOptions) (*ingest.Report, error)
}

// Server holds the HTTP handler dependencies.
type Server struct {
	engine    Syncer
	importer  Importer
	store     store.Store
	cronToken string
	log       *zap.Logger
}

// New creates a Server.
func New(engine Syncer, importer Importer, st store.Store, cronToken string) *Server {
	return &Server{
		engine:    engine,
		importer:  importer,
		store:     st,
		cronToken: cronToken,
		log:       zap.L().With(zap.String("component", "server")),
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/sync", s.handleSync)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Post("/cron/sync", s.handleCronSync)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/check-new", s.handleCheckNew)
			r.Post("/import", s.handleImport)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type syncRequest struct {
	Sheets []struct {
		SheetName string `json:"sheet_name"`
		SheetID   string `json:"sheet_id"`
	} `json:"sheets"`
	Full bool `json:"full"`
}

// handleSync runs a reconciliation pass. Partial failures still return 200;
// the report carries the per-row and per-sheet errors.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var refs []config.SheetRef
	for _, sh := range req.Sheets {
		if sh.SheetName == "" && sh.SheetID == "" {
			continue
		}
		refs = append(refs, config.SheetRef{Name: sh.SheetName, ID: sh.SheetID})
	}

	report := s.engine.SyncSheets(r.Context(), refs, req.Full)
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCheckNew(w http.ResponseWriter, r *http.Request) {
	report, err := s.engine.CheckNew(r.Context())
	if err != nil {
		s.log.Error("check-new failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type importRequest struct {
	Rows           []model.Lead `json:"rows"`
	AssignToRandom bool         `json:"assignToRandom"`
	MarkAsManaged  bool         `json:"markAsManaged"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Rows) == 0 {
		writeError(w, http.StatusBadRequest, "rows is required")
		return
	}

	report, err := s.importer.Import(r.Context(), req.Rows, ingest.ImportOptions{
		AssignToRandom: req.AssignToRandom,
		MarkAsManaged:  req.MarkAsManaged,
	})
	if err != nil {
		s.log.Error("import failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	metas, err := s.store.ListSyncMetadata(r.Context())
	if err != nil {
		s.log.Error("sync status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sheets": metas})
}

// handleCronSync is the unauthenticated-surface trigger for schedulers. The
// bearer token is checked before any work starts.
func (s *Server) handleCronSync(w http.ResponseWriter, r *http.Request) {
	if s.cronToken == "" {
		writeError(w, http.StatusServiceUnavailable, "cron sync disabled: no token configured")
		return
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronToken)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	report := s.engine.Sync(r.Context(), false)
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
