package mapping

import (
	"strings"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/tabular"
)

// DefaultErrorSampleCap bounds the detailed_errors list in an ErrorSummary.
const DefaultErrorSampleCap = 25

// Engine evaluates compiled rule sets against tabulated rows. Preview and
// commit share the exact per-row logic and differ only in fan-out: preview
// runs over the capped preview rows, commit over the full row set.
type Engine struct {
	catalog        *Catalog
	errorSampleCap int
}

// NewEngine creates an engine bound to an immutable target-field catalog.
func NewEngine(catalog *Catalog) *Engine {
	return &Engine{catalog: catalog, errorSampleCap: DefaultErrorSampleCap}
}

// SetErrorSampleCap overrides the bound on sampled detailed errors.
func (e *Engine) SetErrorSampleCap(n int) {
	if n > 0 {
		e.errorSampleCap = n
	}
}

// ErrorSampleCap returns the active bound so callers that append their own
// errors to a summary stay within the same limit.
func (e *Engine) ErrorSampleCap() int { return e.errorSampleCap }

// RowOutcome is the result of evaluating one row: the normalized record plus
// any per-cell errors. OK is false when at least one cell failed; the rest
// of the record is still resolved best-effort so error samples stay
// informative.
type RowOutcome struct {
	RowNumber int               `json:"row_number"`
	Record    map[string]string `json:"record"`
	Errors    []domain.RowError `json:"errors,omitempty"`
	OK        bool              `json:"ok"`
}

// Result is the aggregate of one engine pass over a table.
type Result struct {
	Outcomes   []RowOutcome
	RowsOK     int
	RowsFailed int
	Summary    domain.ErrorSummary
}

// ApplyRow evaluates every active rule against a single row.
//
// Per rule: a blank source cell falls back to the configured default and
// skips the transformation; otherwise the processing function runs and a
// failure is recorded as a RowError for that field while the remaining
// rules keep evaluating. Target fields with no bound rule (or a blank cell
// and no default) are omitted from the record, never synthesized.
func (e *Engine) ApplyRow(row tabular.Row, rs *RuleSet) (map[string]string, []domain.RowError) {
	record := make(map[string]string, rs.Len())
	var rowErrs []domain.RowError

	for _, rule := range rs.rules {
		raw := row.Cells[rule.source]
		if strings.TrimSpace(raw) == "" {
			if rule.defaultValue != "" {
				record[rule.target] = rule.defaultValue
			}
			continue
		}

		out, err := rule.tr.Transform(raw)
		if err != nil {
			rowErrs = append(rowErrs, toRowError(row.Number, rule.target, raw, err))
			continue
		}
		record[rule.target] = out
	}

	return record, rowErrs
}

// Run evaluates the full table and aggregates an error summary. Callers use
// it for both preview (over a capped table) and commit (over the full one).
func (e *Engine) Run(t *tabular.Table, rs *RuleSet) *Result {
	res := &Result{
		Summary: domain.ErrorSummary{
			ErrorsByType:   make(map[string]int),
			DetailedErrors: []domain.RowError{},
		},
	}

	for _, row := range t.Rows {
		record, errs := e.ApplyRow(row, rs)
		outcome := RowOutcome{
			RowNumber: row.Number,
			Record:    record,
			Errors:    errs,
			OK:        len(errs) == 0,
		}
		res.Outcomes = append(res.Outcomes, outcome)

		if outcome.OK {
			res.RowsOK++
		} else {
			res.RowsFailed++
			res.Summary.RowsWithErrors++
		}
		for _, re := range errs {
			res.Summary.TotalErrors++
			res.Summary.ErrorsByType[string(re.ErrorType)]++
			if len(res.Summary.DetailedErrors) < e.errorSampleCap {
				res.Summary.DetailedErrors = append(res.Summary.DetailedErrors, re)
			}
		}
	}

	return res
}

func toRowError(rowNum int, field, original string, err error) domain.RowError {
	re := domain.RowError{
		RowNumber:     rowNum,
		FieldName:     field,
		OriginalValue: original,
		ErrorType:     domain.ErrTypeFormat,
		ErrorMessage:  err.Error(),
	}
	if te, ok := err.(*transformError); ok {
		re.ErrorType = te.Type
	}
	return re
}
