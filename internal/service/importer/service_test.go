package importer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/mapping"
	"github.com/ignite/sheet-importer/internal/pkg/distlock"
	"github.com/ignite/sheet-importer/internal/service/importer"
	"github.com/ignite/sheet-importer/internal/service/template"
	"github.com/ignite/sheet-importer/internal/tabular"
)

// memSessions is an in-memory session repository for unit testing.
type memSessions struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ImportSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[uuid.UUID]*domain.ImportSession)}
}

func (m *memSessions) Create(_ context.Context, s *domain.ImportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[cp.ID] = &cp
	return nil
}

func (m *memSessions) Get(_ context.Context, orgID, id uuid.UUID) (*domain.ImportSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.OrganizationID != orgID {
		return nil, importer.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) Update(_ context.Context, s *domain.ImportSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return importer.ErrSessionNotFound
	}
	cp := *s
	m.sessions[cp.ID] = &cp
	return nil
}

func (m *memSessions) List(_ context.Context, orgID uuid.UUID, f importer.ListFilter) ([]domain.ImportSession, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ImportSession
	for _, s := range m.sessions {
		if s.OrganizationID == orgID {
			out = append(out, *s)
		}
	}
	return out, len(out), nil
}

// memTemplates satisfies the template source contract.
type memTemplates struct {
	templates map[uuid.UUID]*domain.MappingTemplate
}

func (m *memTemplates) Get(_ context.Context, orgID, id uuid.UUID) (*domain.MappingTemplate, error) {
	t, ok := m.templates[id]
	if !ok || t.OrganizationID != orgID {
		return nil, template.ErrNotFound
	}
	return t, nil
}

// memContacts records inserts and can fail selected emails or everything.
type memContacts struct {
	mu         sync.Mutex
	records    []map[string]string
	failEmails map[string]bool
	failAll    bool
}

func (m *memContacts) Insert(_ context.Context, _, _ uuid.UUID, record map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll || m.failEmails[record["email"]] {
		return fmt.Errorf("connection refused")
	}
	m.records = append(m.records, record)
	return nil
}

// memStore is an in-memory object store.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
}

func newMemStore() *memStore { return &memStore{objects: make(map[string][]byte)} }

func (m *memStore) Put(_ context.Context, key string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

// fakeLock implements distlock.DistLock with a configurable outcome.
type fakeLock struct{ held bool }

func (l *fakeLock) Acquire(context.Context) (bool, error) { return !l.held, nil }
func (l *fakeLock) Release(context.Context) error         { return nil }

type testEnv struct {
	svc        *importer.Service
	sessions   *memSessions
	contacts   *memContacts
	store      *memStore
	orgID      uuid.UUID
	templateID uuid.UUID
	lockHeld   bool
}

func newTestEnv(t *testing.T, rules []domain.FieldRule) *testEnv {
	t.Helper()
	env := &testEnv{
		sessions:   newMemSessions(),
		contacts:   &memContacts{failEmails: make(map[string]bool)},
		store:      newMemStore(),
		orgID:      uuid.New(),
		templateID: uuid.New(),
	}
	templates := &memTemplates{templates: map[uuid.UUID]*domain.MappingTemplate{
		env.templateID: {
			ID:             env.templateID,
			OrganizationID: env.orgID,
			Name:           "Standard contacts",
			Version:        1,
			Rules:          rules,
		},
	}}
	env.svc = importer.NewService(
		env.sessions, templates, env.contacts, env.store,
		mapping.DefaultCatalog(),
		func(string, time.Duration) distlock.DistLock { return &fakeLock{held: env.lockHeld} },
	)
	return env
}

func defaultRules() []domain.FieldRule {
	return []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{TargetField: "first_name", SourceField: "Name"},
		{
			TargetField: "birthdate",
			SourceField: "DOB",
			Processing: domain.Processing{
				Function: domain.FuncExtractDate,
				Params:   json.RawMessage(`{"format":"DD.MM.YYYY"}`),
			},
		},
	}
}

func TestInitiate(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, err := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}
	if session.Status != domain.SessionInitiated {
		t.Errorf("expected status initiated, got %s", session.Status)
	}
	if session.Name == "" {
		t.Error("expected a default session name")
	}

	if _, err := env.svc.Initiate(ctx, env.orgID, uuid.New(), "", nil); !errors.Is(err, importer.ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
	if _, err := env.svc.Initiate(ctx, env.orgID, uuid.Nil, "", nil); !errors.Is(err, importer.ErrMissingTemplate) {
		t.Errorf("expected ErrMissingTemplate, got %v", err)
	}
}

func TestStageAndCommitCleanLifecycle(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, err := env.svc.Initiate(ctx, env.orgID, env.templateID, "Q3 import", nil)
	if err != nil {
		t.Fatalf("Initiate failed: %v", err)
	}

	file := []byte("Email,Name,DOB\n" +
		"alice@example.com,Alice,31.12.1990\n" +
		"bob@example.com,Bob,01.06.1985\n")
	staged, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv")
	if err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	if staged.Session.Status != domain.SessionPreviewReady {
		t.Errorf("expected preview_ready, got %s", staged.Session.Status)
	}
	stats := staged.Statistics
	if stats.TotalRowsInFile != 2 || stats.RowsSuccessfullyPreviewed != 2 || stats.RowsFailedPreview != 0 {
		t.Errorf("unexpected preview stats: %+v", stats)
	}
	if !stats.Validation.AllRequiredFound {
		t.Errorf("expected template to validate: %+v", stats.Validation)
	}
	if staged.Session.FileKey == "" {
		t.Error("expected file key recorded on session")
	}
	if _, ok := env.store.objects[staged.Session.FileKey]; !ok {
		t.Error("staged file not written to object store")
	}
	if stats.SampleRows[0].Record["birthdate"] != "1990-12-31" {
		t.Errorf("date not canonicalized in preview: %v", stats.SampleRows[0].Record)
	}

	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Session.Status != domain.SessionCompleted {
		t.Errorf("expected completed, got %s", committed.Session.Status)
	}
	if committed.Statistics.RowsSuccessfullyImported != 2 {
		t.Errorf("expected 2 imports, got %d", committed.Statistics.RowsSuccessfullyImported)
	}
	if len(env.contacts.records) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(env.contacts.records))
	}
	if env.contacts.records[0]["birthdate"] != "1990-12-31" {
		t.Errorf("persisted record not canonicalized: %v", env.contacts.records[0])
	}
}

func TestStageOversizeFileLeavesSessionUntouched(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	big := bytes.Repeat([]byte("a"), tabular.MaxFileSize+1)

	_, err := env.svc.Stage(ctx, env.orgID, session.ID, big, "huge.csv")
	if !errors.Is(err, tabular.ErrSizeLimit) {
		t.Fatalf("expected ErrSizeLimit, got %v", err)
	}

	after, _ := env.svc.Get(ctx, env.orgID, session.ID)
	if after.Status != domain.SessionInitiated {
		t.Errorf("size rejection must not move the session, got %s", after.Status)
	}
	if len(env.store.objects) != 0 {
		t.Error("oversize file must not reach the object store")
	}
}

func TestStageTemplateMismatchIsRecoverable(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)

	// File lacks the DOB column the template reads.
	_, err := env.svc.Stage(ctx, env.orgID, session.ID,
		[]byte("Email,Name\na@example.com,Alice\n"), "short.csv")
	var mismatch *importer.TemplateMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TemplateMismatchError, got %v", err)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0].SourceField != "DOB" {
		t.Errorf("unexpected missing fields: %+v", mismatch.Missing)
	}

	after, _ := env.svc.Get(ctx, env.orgID, session.ID)
	if after.Status != domain.SessionProcessingFailed {
		t.Fatalf("expected processing_failed, got %s", after.Status)
	}

	// The failure is recoverable: a corrected upload on the same session
	// moves it forward.
	staged, err := env.svc.Stage(ctx, env.orgID, session.ID,
		[]byte("Email,Name,DOB\na@example.com,Alice,31.12.1990\n"), "fixed.csv")
	if err != nil {
		t.Fatalf("re-stage failed: %v", err)
	}
	if staged.Session.Status != domain.SessionPreviewReady {
		t.Errorf("expected preview_ready after re-stage, got %s", staged.Session.Status)
	}
}

func TestStageUnparseableFileFailsSession(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	_, err := env.svc.Stage(ctx, env.orgID, session.ID, []byte{0x50, 0x4b, 0x00, 0x01}, "archive.zip")
	if !errors.Is(err, tabular.ErrNotTabular) {
		t.Fatalf("expected ErrNotTabular, got %v", err)
	}

	after, _ := env.svc.Get(ctx, env.orgID, session.ID)
	if after.Status != domain.SessionProcessingFailed {
		t.Errorf("expected processing_failed, got %s", after.Status)
	}
	if after.StatusDetails == "" {
		t.Error("expected failure recorded in status details")
	}
}

func TestStagePutFailureIsStorageError(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	env.store.putErr = fmt.Errorf("bucket unavailable")

	_, err := env.svc.Stage(ctx, env.orgID, session.ID,
		[]byte("Email,Name,DOB\na@example.com,Alice,31.12.1990\n"), "contacts.csv")
	var storageErr *importer.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	after, _ := env.svc.Get(ctx, env.orgID, session.ID)
	if after.Status != domain.SessionProcessingFailed {
		t.Errorf("expected processing_failed, got %s", after.Status)
	}
}

func TestCommitPartial(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\n" +
		"alice@example.com,Alice,31.12.1990\n" +
		"bob@example.com,Bob,not-a-date\n" +
		"carol@example.com,Carol,05.05.1995\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Session.Status != domain.SessionPartial {
		t.Errorf("expected partial, got %s", committed.Session.Status)
	}
	stats := committed.Statistics
	if stats.RowsSuccessfullyImported != 2 || stats.RowsFailed != 1 {
		t.Errorf("unexpected commit stats: %+v", stats)
	}
	if stats.ErrorSummary.ErrorsByType[string(domain.ErrTypeFormat)] != 1 {
		t.Errorf("expected one format_error, got %v", stats.ErrorSummary.ErrorsByType)
	}
}

func TestCommitCountsSkippedRows(t *testing.T) {
	env := newTestEnv(t, []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
	})
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	// The second row has notes but no email; its normalized record is
	// empty, so it is skipped rather than imported or failed.
	file := []byte("Email,Notes\nalice@example.com,fine\n,no address here\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Session.Status != domain.SessionCompleted {
		t.Errorf("expected completed, got %s", committed.Session.Status)
	}
	stats := committed.Statistics
	if stats.RowsSuccessfullyImported != 1 || stats.RowsSkipped != 1 || stats.RowsFailed != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestCommitFinalizedRulesOverrideTemplate(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	// The caller finalized a different rule set after preview: drop the
	// birthdate mapping, add a source default.
	finalized := []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{TargetField: "source", SourceField: "Source", DefaultValue: "spreadsheet"},
	}
	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, finalized)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Session.Status != domain.SessionCompleted {
		t.Errorf("expected completed, got %s", committed.Session.Status)
	}
	rec := env.contacts.records[0]
	if rec["source"] != "spreadsheet" {
		t.Errorf("expected default applied, got %v", rec)
	}
	if _, ok := rec["birthdate"]; ok {
		t.Error("dropped rule must not produce a field")
	}
}

func TestCommitRequiresActiveRules(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	inert := []domain.FieldRule{{TargetField: "email", SourceField: ""}}
	if _, err := env.svc.Commit(ctx, env.orgID, session.ID, inert); !errors.Is(err, importer.ErrNoRules) {
		t.Errorf("expected ErrNoRules, got %v", err)
	}
}

func TestCommitAllInsertsFailedIsSystemic(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n" +
		"bob@example.com,Bob,01.06.1985\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	env.contacts.failAll = true
	_, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	var storageErr *importer.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}

	after, _ := env.svc.Get(ctx, env.orgID, session.ID)
	if after.Status != domain.SessionFailed {
		t.Errorf("expected failed, got %s", after.Status)
	}
}

func TestCommitSingleInsertFailureIsPartial(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n" +
		"bob@example.com,Bob,01.06.1985\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	env.contacts.failEmails["bob@example.com"] = true
	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if committed.Session.Status != domain.SessionPartial {
		t.Errorf("expected partial, got %s", committed.Session.Status)
	}
	if committed.Statistics.RowsFailed != 1 {
		t.Errorf("expected 1 failed row, got %d", committed.Statistics.RowsFailed)
	}
	if committed.Statistics.ErrorSummary.ErrorsByType[string(domain.ErrTypeStorage)] != 1 {
		t.Errorf("expected one storage_error, got %v", committed.Statistics.ErrorSummary.ErrorsByType)
	}
}

func TestCommitStorageErrorSamplesRespectTunedCap(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	env.svc.Tune(0, 0, 1)
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n" +
		"bob@example.com,Bob,01.06.1985\n" +
		"carol@example.com,Carol,05.05.1995\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	env.contacts.failEmails["bob@example.com"] = true
	env.contacts.failEmails["carol@example.com"] = true
	committed, err := env.svc.Commit(ctx, env.orgID, session.ID, nil)
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	summary := committed.Statistics.ErrorSummary
	if summary.TotalErrors != 2 || summary.ErrorsByType[string(domain.ErrTypeStorage)] != 2 {
		t.Errorf("all failures must be counted: %+v", summary)
	}
	if len(summary.DetailedErrors) != 1 {
		t.Errorf("detailed errors must honor the tuned cap, got %d", len(summary.DetailedErrors))
	}
}

func TestInvalidTransitions(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)

	// Commit before staging.
	if _, err := env.svc.Commit(ctx, env.orgID, session.ID, nil); !errors.Is(err, importer.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	if _, err := env.svc.Commit(ctx, env.orgID, session.ID, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Both operations are refused on a terminal session.
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "again.csv"); !errors.Is(err, importer.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on staged terminal session, got %v", err)
	}
	if _, err := env.svc.Commit(ctx, env.orgID, session.ID, nil); !errors.Is(err, importer.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on recommit, got %v", err)
	}
}

func TestSessionBusy(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	env.lockHeld = true

	file := []byte("Email,Name,DOB\nalice@example.com,Alice,31.12.1990\n")
	if _, err := env.svc.Stage(ctx, env.orgID, session.ID, file, "contacts.csv"); !errors.Is(err, importer.ErrSessionBusy) {
		t.Errorf("expected ErrSessionBusy, got %v", err)
	}
}

func TestGetScopedToOrganization(t *testing.T) {
	env := newTestEnv(t, defaultRules())
	ctx := context.Background()

	session, _ := env.svc.Initiate(ctx, env.orgID, env.templateID, "", nil)
	if _, err := env.svc.Get(ctx, uuid.New(), session.ID); !errors.Is(err, importer.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for foreign org, got %v", err)
	}
}
