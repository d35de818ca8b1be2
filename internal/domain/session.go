package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle states of an import session.
type SessionStatus string

const (
	SessionInitiated SessionStatus = "initiated"
	// SessionFileUploaded is the legacy alias some call sites use for
	// preview_ready; the two are interchangeable when checking whether a
	// session may be committed.
	SessionFileUploaded     SessionStatus = "file_uploaded"
	SessionPreviewReady     SessionStatus = "preview_ready"
	SessionProcessingFailed SessionStatus = "processing_failed"
	SessionCompleted        SessionStatus = "completed"
	SessionPartial          SessionStatus = "partial"
	SessionFailed           SessionStatus = "failed"
)

// IsTerminal returns true once the session has reached a final state.
// processing_failed is NOT terminal: the caller may re-upload a file.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionPartial || s == SessionFailed
}

// Stageable reports whether a file may be staged against the session.
func (s SessionStatus) Stageable() bool {
	return s == SessionInitiated || s == SessionProcessingFailed
}

// Committable reports whether the session may be committed.
func (s SessionStatus) Committable() bool {
	return s == SessionPreviewReady || s == SessionFileUploaded
}

// ImportSession is one run of the import wizard. It is created on initiate,
// mutated only by the lifecycle manager at stage transitions, and retained
// forever as audit history (the pipeline never deletes sessions).
type ImportSession struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID uuid.UUID  `json:"organization_id" db:"organization_id"`
	InitiatedBy    *uuid.UUID `json:"initiated_by" db:"initiated_by"`
	TemplateID     *uuid.UUID `json:"template_id" db:"template_id"`
	Name           string     `json:"name" db:"name"`

	FileName string `json:"file_name" db:"file_name"`
	FileKey  string `json:"file_key" db:"file_key"`

	Status        SessionStatus `json:"status" db:"status"`
	StatusDetails string        `json:"status_details" db:"status_details"`

	TotalRowsInFile           int `json:"total_rows_in_file" db:"total_rows_in_file"`
	RowsSuccessfullyPreviewed int `json:"rows_successfully_previewed" db:"rows_successfully_previewed"`
	RowsFailedPreview         int `json:"rows_failed_preview" db:"rows_failed_preview"`
	RowsSuccessfullyImported  int `json:"rows_successfully_imported" db:"rows_successfully_imported"`
	RowsFailed                int `json:"rows_failed" db:"rows_failed"`
	RowsSkipped               int `json:"rows_skipped" db:"rows_skipped"`

	ErrorSummary *ErrorSummary `json:"error_summary,omitempty" db:"error_summary"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RowErrorType classifies a single cell transformation failure.
type RowErrorType string

const (
	ErrTypeFormat     RowErrorType = "format_error"
	ErrTypeNoMatch    RowErrorType = "no_match"
	ErrTypeOutOfRange RowErrorType = "out_of_range"
	ErrTypeStorage    RowErrorType = "storage_error"
)

// RowError describes one failed cell. Row errors are never persisted
// individually; they are aggregated into an ErrorSummary.
type RowError struct {
	RowNumber     int          `json:"row_number_in_file"`
	FieldName     string       `json:"field_name"`
	OriginalValue string       `json:"original_value"`
	ErrorType     RowErrorType `json:"error_type"`
	ErrorMessage  string       `json:"error_message"`
}

// ErrorSummary aggregates row errors for one processing pass: counts by
// type plus a bounded sample of detailed entries.
type ErrorSummary struct {
	TotalErrors    int            `json:"total_errors"`
	RowsWithErrors int            `json:"rows_with_errors"`
	ErrorsByType   map[string]int `json:"errors_by_type"`
	DetailedErrors []RowError     `json:"detailed_errors"`
}
