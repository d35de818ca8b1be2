package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/mapping"
	"github.com/ignite/sheet-importer/internal/pkg/distlock"
	"github.com/ignite/sheet-importer/internal/pkg/logger"
	"github.com/ignite/sheet-importer/internal/service/template"
	"github.com/ignite/sheet-importer/internal/tabular"
)

// LockFactory builds a distributed lock for one session key. A nil factory
// disables the overlap guard (single-process deployments).
type LockFactory func(key string, ttl time.Duration) distlock.DistLock

// TemplateSource resolves mapping templates; satisfied by the template
// service.
type TemplateSource interface {
	Get(ctx context.Context, orgID, id uuid.UUID) (*domain.MappingTemplate, error)
}

// lockTTL bounds how long a crashed stage/commit can keep a session busy.
const lockTTL = 10 * time.Minute

// Service is the import lifecycle manager. Each stage and commit call is
// synchronous: it fully ingests, transforms, and (on commit) persists
// before returning. Stage and commit on one session are serialized through
// a distributed lock; overlapping calls get ErrSessionBusy.
type Service struct {
	sessions    SessionRepository
	templates   TemplateSource
	contacts    ContactRepository
	files       ObjectStore
	catalog     *mapping.Catalog
	engine      *mapping.Engine
	newLock     LockFactory
	previewCap  int
	maxFileSize int
}

// NewService creates the lifecycle manager.
func NewService(
	sessions SessionRepository,
	templates TemplateSource,
	contacts ContactRepository,
	files ObjectStore,
	catalog *mapping.Catalog,
	newLock LockFactory,
) *Service {
	return &Service{
		sessions:    sessions,
		templates:   templates,
		contacts:    contacts,
		files:       files,
		catalog:     catalog,
		engine:      mapping.NewEngine(catalog),
		newLock:     newLock,
		previewCap:  tabular.DefaultPreviewCap,
		maxFileSize: tabular.MaxFileSize,
	}
}

// Tune applies configured pipeline limits. Zero values keep the defaults;
// the file size cap cannot exceed the tabulator's hard ceiling.
func (s *Service) Tune(maxFileSizeMB, previewCap, errorSampleCap int) {
	if maxFileSizeMB > 0 && maxFileSizeMB*1024*1024 <= tabular.MaxFileSize {
		s.maxFileSize = maxFileSizeMB * 1024 * 1024
	}
	if previewCap > 0 {
		s.previewCap = previewCap
	}
	if errorSampleCap > 0 {
		s.engine.SetErrorSampleCap(errorSampleCap)
	}
}

// StageStatistics is the preview payload returned by a successful stage.
type StageStatistics struct {
	TotalRowsInFile           int                       `json:"total_rows_in_file"`
	RowsSuccessfullyPreviewed int                       `json:"rows_successfully_previewed"`
	RowsFailedPreview         int                       `json:"rows_failed_preview"`
	SampleRows                []mapping.RowOutcome      `json:"sample_rows"`
	ErrorSummary              domain.ErrorSummary       `json:"error_summary"`
	FileHeaders               []string                  `json:"file_headers"`
	Validation                *mapping.ValidationResult `json:"validation"`
}

// StageResult bundles the preview statistics with the updated session.
type StageResult struct {
	Statistics StageStatistics
	Session    *domain.ImportSession
}

// CommitStatistics is the final accounting of a commit pass.
type CommitStatistics struct {
	TotalProcessedRows       int                 `json:"total_processed_rows"`
	RowsSuccessfullyImported int                 `json:"rows_successfully_imported"`
	RowsFailed               int                 `json:"rows_failed"`
	RowsSkipped              int                 `json:"rows_skipped"`
	ErrorSummary             domain.ErrorSummary `json:"error_summary"`
}

// CommitResult bundles commit statistics with the updated session.
type CommitResult struct {
	Statistics CommitStatistics
	Session    *domain.ImportSession
}

// Initiate creates a new import session in status initiated. The template
// must resolve within the organization.
func (s *Service) Initiate(ctx context.Context, orgID, templateID uuid.UUID, customName string, initiatedBy *uuid.UUID) (*domain.ImportSession, error) {
	if templateID == uuid.Nil {
		return nil, ErrMissingTemplate
	}

	tpl, err := s.templates.Get(ctx, orgID, templateID)
	if err != nil {
		if errors.Is(err, template.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	name := customName
	if name == "" {
		name = fmt.Sprintf("%s import %s", tpl.Name, time.Now().Format("2006-01-02 15:04"))
	}

	session := &domain.ImportSession{
		ID:             uuid.New(),
		OrganizationID: orgID,
		InitiatedBy:    initiatedBy,
		TemplateID:     &templateID,
		Name:           name,
		Status:         domain.SessionInitiated,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	logger.Info("import session initiated",
		"session_id", session.ID.String(), "template_id", templateID.String())
	return session, nil
}

// Stage ingests an uploaded file against the session's template, producing
// a bounded preview with per-cell error reporting. It requires the session
// to be in initiated or processing_failed; a parse, validation, or storage
// failure moves it to processing_failed (recoverable: the caller may
// re-upload on the same session). Files over the size limit are rejected
// before any parsing and leave the session status untouched.
func (s *Service) Stage(ctx context.Context, orgID, sessionID uuid.UUID, fileBytes []byte, fileName string) (*StageResult, error) {
	session, err := s.sessions.Get(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.Stageable() {
		return nil, fmt.Errorf("%w: cannot stage in status %s", ErrInvalidTransition, session.Status)
	}
	if session.TemplateID == nil {
		return nil, ErrMissingTemplate
	}

	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Size violations reject the upload outright; the session stays where
	// it was so the caller can retry with a smaller file.
	if len(fileBytes) > s.maxFileSize {
		return nil, fmt.Errorf("%w (got %d bytes)", tabular.ErrSizeLimit, len(fileBytes))
	}

	tpl, err := s.templates.Get(ctx, orgID, *session.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}

	rs, err := s.catalog.CompileRules(tpl.Rules)
	if err != nil {
		return nil, s.failStage(ctx, session, fmt.Errorf("template rules: %w", err))
	}

	table, err := tabular.Parse(fileBytes, s.previewCap)
	if err != nil {
		return nil, s.failStage(ctx, session, err)
	}

	validation := mapping.ValidateTemplate(tpl.Rules, table.Fields)
	if !validation.AllRequiredFound {
		return nil, s.failStage(ctx, session, &TemplateMismatchError{Missing: validation.MissingFields})
	}

	key := fileKey(orgID, sessionID, fileName)
	if err := s.files.Put(ctx, key, fileBytes); err != nil {
		return nil, s.failStage(ctx, session, &StorageError{Op: "put", Err: err})
	}

	res := s.engine.Run(table, rs)

	next, err := nextStatus(session.Status, eventStageSucceeded)
	if err != nil {
		return nil, err
	}
	session.Status = next
	session.FileName = fileName
	session.FileKey = key
	session.TotalRowsInFile = table.TotalRows
	session.RowsSuccessfullyPreviewed = res.RowsOK
	session.RowsFailedPreview = res.RowsFailed
	session.ErrorSummary = &res.Summary
	session.StatusDetails = fmt.Sprintf("previewed %d of %d rows from %q",
		table.PreviewRows, table.TotalRows, fileName)

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("persist staged session: %w", err)
	}

	logger.Info("import session staged",
		"session_id", sessionID.String(), "file", fileName,
		"total_rows", table.TotalRows, "preview_errors", res.Summary.TotalErrors)

	return &StageResult{
		Statistics: StageStatistics{
			TotalRowsInFile:           table.TotalRows,
			RowsSuccessfullyPreviewed: res.RowsOK,
			RowsFailedPreview:         res.RowsFailed,
			SampleRows:                res.Outcomes,
			ErrorSummary:              res.Summary,
			FileHeaders:               table.Fields,
			Validation:                validation,
		},
		Session: session,
	}, nil
}

// Commit re-runs the rule engine over the full staged file using the
// caller-finalized rule set (which may differ from the template after
// preview edits) and persists every row that normalizes cleanly. Partial
// success is a valid terminal state: rows are inserted individually, not
// in one all-or-nothing transaction, so good rows survive bad ones.
func (s *Service) Commit(ctx context.Context, orgID, sessionID uuid.UUID, finalizedRules []domain.FieldRule) (*CommitResult, error) {
	session, err := s.sessions.Get(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.Committable() {
		return nil, fmt.Errorf("%w: cannot commit in status %s", ErrInvalidTransition, session.Status)
	}

	release, err := s.acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	rules := finalizedRules
	if len(rules) == 0 {
		if session.TemplateID == nil {
			return nil, ErrMissingTemplate
		}
		tpl, err := s.templates.Get(ctx, orgID, *session.TemplateID)
		if err != nil {
			return nil, fmt.Errorf("resolve template: %w", err)
		}
		rules = tpl.Rules
	}

	rs, err := s.catalog.CompileRules(rules)
	if err != nil {
		return nil, fmt.Errorf("finalized rules: %w", err)
	}
	if rs.Len() == 0 {
		return nil, ErrNoRules
	}

	fileBytes, err := s.files.Get(ctx, session.FileKey)
	if err != nil {
		return nil, s.failCommit(ctx, session, &StorageError{Op: "get", Err: err})
	}

	table, err := tabular.Parse(fileBytes, 0)
	if err != nil {
		return nil, s.failCommit(ctx, session, fmt.Errorf("re-parse staged file: %w", err))
	}

	res := s.engine.Run(table, rs)

	var imported, skipped, insertFailed, attempted int
	for _, outcome := range res.Outcomes {
		if !outcome.OK {
			continue // already counted in RowsFailed
		}
		if len(outcome.Record) == 0 {
			skipped++
			continue
		}
		attempted++
		if err := s.contacts.Insert(ctx, orgID, sessionID, outcome.Record); err != nil {
			insertFailed++
			res.Summary.TotalErrors++
			res.Summary.RowsWithErrors++
			res.Summary.ErrorsByType[string(domain.ErrTypeStorage)]++
			if len(res.Summary.DetailedErrors) < s.engine.ErrorSampleCap() {
				res.Summary.DetailedErrors = append(res.Summary.DetailedErrors, domain.RowError{
					RowNumber:    outcome.RowNumber,
					ErrorType:    domain.ErrTypeStorage,
					ErrorMessage: err.Error(),
				})
			}
			continue
		}
		imported++
	}

	rowsFailed := res.RowsFailed + insertFailed

	// Every attempted insert failing is a systemic outage, not bad data.
	if attempted > 0 && imported == 0 {
		return nil, s.failCommit(ctx, session,
			&StorageError{Op: "insert", Err: fmt.Errorf("all %d insert attempts failed", attempted)})
	}

	ev := eventCommitClean
	if rowsFailed > 0 {
		ev = eventCommitPartial
	}
	next, err := nextStatus(session.Status, ev)
	if err != nil {
		return nil, err
	}
	session.Status = next
	session.RowsSuccessfullyImported = imported
	session.RowsFailed = rowsFailed
	session.RowsSkipped = skipped
	session.ErrorSummary = &res.Summary
	session.StatusDetails = fmt.Sprintf("imported %d of %d rows (%d failed, %d skipped)",
		imported, table.TotalRows, rowsFailed, skipped)

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("persist committed session: %w", err)
	}

	logger.Info("import session committed",
		"session_id", sessionID.String(), "status", string(session.Status),
		"imported", imported, "failed", rowsFailed, "skipped", skipped)

	return &CommitResult{
		Statistics: CommitStatistics{
			TotalProcessedRows:       table.TotalRows,
			RowsSuccessfullyImported: imported,
			RowsFailed:               rowsFailed,
			RowsSkipped:              skipped,
			ErrorSummary:             res.Summary,
		},
		Session: session,
	}, nil
}

// Get returns a single session.
func (s *Service) Get(ctx context.Context, orgID, id uuid.UUID) (*domain.ImportSession, error) {
	return s.sessions.Get(ctx, orgID, id)
}

// List returns sessions matching the filter plus the total count.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]domain.ImportSession, int, error) {
	return s.sessions.List(ctx, orgID, f)
}

// failStage moves the session to processing_failed with the failure
// recorded in status_details, then returns the original error. The state
// is recoverable: the caller may stage another file on the same session.
func (s *Service) failStage(ctx context.Context, session *domain.ImportSession, cause error) error {
	next, terr := nextStatus(session.Status, eventStageFailed)
	if terr != nil {
		return terr
	}
	session.Status = next
	session.StatusDetails = cause.Error()
	if uerr := s.sessions.Update(ctx, session); uerr != nil {
		logger.Error("persist failed stage", "session_id", session.ID.String(), "error", uerr.Error())
	}
	logger.Warn("import stage failed", "session_id", session.ID.String(), "error", cause.Error())
	return cause
}

// failCommit moves the session to the terminal failed state on a systemic
// commit failure and returns the original error.
func (s *Service) failCommit(ctx context.Context, session *domain.ImportSession, cause error) error {
	next, terr := nextStatus(session.Status, eventCommitFailed)
	if terr != nil {
		return terr
	}
	session.Status = next
	session.StatusDetails = cause.Error()
	if uerr := s.sessions.Update(ctx, session); uerr != nil {
		logger.Error("persist failed commit", "session_id", session.ID.String(), "error", uerr.Error())
	}
	logger.Warn("import commit failed", "session_id", session.ID.String(), "error", cause.Error())
	return cause
}

// acquire takes the per-session busy lock. The returned release func is
// always safe to call.
func (s *Service) acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	if s.newLock == nil {
		return func() {}, nil
	}
	lock := s.newLock("import:session:"+sessionID.String(), lockTTL)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	if !ok {
		return nil, ErrSessionBusy
	}

	// TTL-based locks stay live under a slow commit by extending at half
	// the TTL until release.
	stop := make(chan struct{})
	if ext, isExt := lock.(distlock.Extender); isExt {
		go keepLockAlive(ctx, ext, sessionID, lockTTL, stop)
	}

	return func() {
		close(stop)
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			logger.Warn("release session lock", "session_id", sessionID.String(), "error", rerr.Error())
		}
	}, nil
}

// keepLockAlive extends the session lock while a long stage or commit runs,
// so the TTL only expires holds whose process actually died.
func keepLockAlive(ctx context.Context, ext distlock.Extender, sessionID uuid.UUID, ttl time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(ttl / 2)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if err := ext.Extend(ctx, ttl); err != nil {
				logger.Warn("extend session lock", "session_id", sessionID.String(), "error", err.Error())
			}
		}
	}
}

func fileKey(orgID, sessionID uuid.UUID, fileName string) string {
	return fmt.Sprintf("imports/%s/%s/%s", orgID, sessionID, fileName)
}
