package ingest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/model"
	"github.com/sells-group/leadsync/internal/store"
)

// fakeStore is an in-memory store.Store for pipeline tests.
type fakeStore struct {
	mu        sync.Mutex
	leads     map[string]*model.Lead // by external key
	byID      map[string]*model.Lead
	meta      map[string]*model.SyncMetadata
	assignees []string

	insertErr      map[string]error // external key -> error
	bulkErr        error
	bulkBatches    [][]model.Lead
	contactUpdates int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:     make(map[string]*model.Lead),
		byID:      make(map[string]*model.Lead),
		meta:      make(map[string]*model.SyncMetadata),
		insertErr: make(map[string]error),
	}
}

func (f *fakeStore) GetLeadByKey(_ context.Context, key string) (*model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.leads[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (f *fakeStore) InsertLead(_ context.Context, lead *model.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.insertErr[lead.ExternalKey]; err != nil {
		return err
	}
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	cp := *lead
	f.leads[lead.ExternalKey] = &cp
	f.byID[lead.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateLeadContact(_ context.Context, lead *model.Lead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.leads[lead.ExternalKey]
	if !ok {
		return store.ErrNotFound
	}
	existing.FullName = lead.FullName
	existing.Phone = lead.Phone
	existing.Email = lead.Email
	existing.State = lead.State
	existing.Category = lead.Category
	existing.BusinessType = lead.BusinessType
	existing.CreatedTime = lead.CreatedTime
	existing.CreatedRaw = lead.CreatedRaw
	existing.RowNumber = lead.RowNumber
	existing.Extra = lead.Extra
	f.contactUpdates++
	return nil
}

func (f *fakeStore) UpdateLeadCRM(_ context.Context, leadID string, upd store.CRMUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.byID[leadID]
	if !ok {
		return store.ErrNotFound
	}
	if upd.Stage != nil {
		l.Stage = *upd.Stage
	}
	if upd.Quality != nil {
		l.Quality = *upd.Quality
	}
	if upd.IsManaged != nil {
		l.IsManaged = *upd.IsManaged
	}
	if upd.AssignedTo != nil {
		l.AssignedTo = *upd.AssignedTo
	}
	return nil
}

func (f *fakeStore) ListLeads(_ context.Context, _ store.LeadFilter) ([]model.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Lead
	for _, l := range f.leads {
		out = append(out, *l)
	}
	return out, nil
}

func (f *fakeStore) BulkUpsertLeads(_ context.Context, leads []model.Lead) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return 0, f.bulkErr
	}
	f.bulkBatches = append(f.bulkBatches, append([]model.Lead(nil), leads...))
	for i := range leads {
		cp := leads[i]
		if cp.ID == "" {
			cp.ID = uuid.New().String()
		}
		f.leads[cp.ExternalKey] = &cp
		f.byID[cp.ID] = &cp
	}
	return int64(len(leads)), nil
}

func (f *fakeStore) ListAssignees(_ context.Context) ([]string, error) {
	return f.assignees, nil
}

func (f *fakeStore) AddNote(_ context.Context, _ *model.LeadNote) error { return nil }
func (f *fakeStore) ListNotes(_ context.Context, _ string) ([]model.LeadNote, error) {
	return nil, nil
}
func (f *fakeStore) AddStatusHistory(_ context.Context, _ *model.StatusHistory) error { return nil }
func (f *fakeStore) ListStatusHistory(_ context.Context, _ string) ([]model.StatusHistory, error) {
	return nil, nil
}

func (f *fakeStore) GetSyncMetadata(_ context.Context, sheetName string) (*model.SyncMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[sheetName]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) UpsertSyncMetadata(_ context.Context, meta *model.SyncMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *meta
	f.meta[meta.SheetName] = &cp
	return nil
}

func (f *fakeStore) ResetSyncMetadata(_ context.Context, sheetName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meta[sheetName]
	if !ok {
		return store.ErrNotFound
	}
	m.LastRowNumber = 0
	m.LastSyncAt = nil
	return nil
}

func (f *fakeStore) ListSyncMetadata(_ context.Context) ([]model.SyncMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.SyncMetadata
	for _, m := range f.meta {
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeStore) Migrate(_ context.Context) error { return nil }
func (f *fakeStore) Close() error                    { return nil }

var _ store.Store = (*fakeStore)(nil)

// fakeFetcher serves canned CSV bodies by URL.
type fakeFetcher struct {
	pages map[string]string
	errs  map[string]error
}

func (f *fakeFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, eris.Errorf("no fixture for %s", url)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}
