package mapping

import (
	"encoding/json"
	"testing"

	"github.com/ignite/sheet-importer/internal/domain"
	"github.com/ignite/sheet-importer/internal/tabular"
)

func compileOrFail(t *testing.T, rules []domain.FieldRule) *RuleSet {
	t.Helper()
	rs, err := DefaultCatalog().CompileRules(rules)
	if err != nil {
		t.Fatalf("CompileRules failed: %v", err)
	}
	return rs
}

func TestApplyRowBlankCellUsesDefault(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	rs := compileOrFail(t, []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{TargetField: "country", SourceField: "Country", DefaultValue: "US"},
	})

	record, errs := e.ApplyRow(tabular.Row{
		Number: 2,
		Cells:  map[string]string{"Email": "a@example.com", "Country": "  "},
	}, rs)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record["country"] != "US" {
		t.Errorf("expected default applied, got %q", record["country"])
	}
}

func TestApplyRowBlankCellWithoutDefaultOmitsField(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	rs := compileOrFail(t, []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{TargetField: "company", SourceField: "Company"},
	})

	record, errs := e.ApplyRow(tabular.Row{
		Number: 2,
		Cells:  map[string]string{"Email": "a@example.com", "Company": ""},
	}, rs)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if _, ok := record["company"]; ok {
		t.Error("expected blank field omitted from record")
	}
}

func TestApplyRowDefaultSkipsTransformation(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	// SUBSTRING would fail on a 2-character default; the default must be
	// taken verbatim, not transformed.
	rs := compileOrFail(t, []domain.FieldRule{
		{
			TargetField:  "country",
			SourceField:  "Country",
			DefaultValue: "US",
			Processing: domain.Processing{
				Function: domain.FuncSubstring,
				Params:   json.RawMessage(`{"start":5,"length":10}`),
			},
		},
	})

	record, errs := e.ApplyRow(tabular.Row{Number: 2, Cells: map[string]string{"Country": ""}}, rs)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if record["country"] != "US" {
		t.Errorf("expected verbatim default, got %q", record["country"])
	}
}

func TestApplyRowResolvesRestOfRowOnFailure(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	rs := compileOrFail(t, []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{
			TargetField: "telephone",
			SourceField: "Phone",
			Processing: domain.Processing{
				Function: domain.FuncRegexp,
				Params:   json.RawMessage(`{"pattern":"\\d{10}","group":0}`),
			},
		},
		{TargetField: "city", SourceField: "City"},
	})

	record, errs := e.ApplyRow(tabular.Row{
		Number: 4,
		Cells: map[string]string{
			"Email": "ivan@example.com",
			"Phone": "+7 916 123-45-67",
			"City":  "Москва",
		},
	}, rs)

	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 row error, got %v", errs)
	}
	re := errs[0]
	if re.ErrorType != domain.ErrTypeNoMatch {
		t.Errorf("expected no_match, got %s", re.ErrorType)
	}
	if re.RowNumber != 4 || re.FieldName != "telephone" || re.OriginalValue != "+7 916 123-45-67" {
		t.Errorf("row error not traceable: %+v", re)
	}
	// The failing rule must not stop the others.
	if record["email"] != "ivan@example.com" || record["city"] != "Москва" {
		t.Errorf("other fields not resolved: %v", record)
	}
	if _, ok := record["telephone"]; ok {
		t.Error("failed field must be absent from record")
	}
}

func TestRunAggregatesSummary(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	rs := compileOrFail(t, []domain.FieldRule{
		{TargetField: "email", SourceField: "Email"},
		{
			TargetField: "birthdate",
			SourceField: "DOB",
			Processing: domain.Processing{
				Function: domain.FuncExtractDate,
				Params:   json.RawMessage(`{"format":"DD.MM.YYYY"}`),
			},
		},
	})

	table, err := tabular.Parse([]byte(
		"Email,DOB\n"+
			"a@example.com,31.12.1990\n"+
			"b@example.com,not-a-date\n"+
			"c@example.com,01.01.1985\n"), 0)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	res := e.Run(table, rs)
	if res.RowsOK != 2 || res.RowsFailed != 1 {
		t.Errorf("expected 2 ok / 1 failed, got %d/%d", res.RowsOK, res.RowsFailed)
	}
	if res.Summary.TotalErrors != 1 || res.Summary.RowsWithErrors != 1 {
		t.Errorf("unexpected summary: %+v", res.Summary)
	}
	if res.Summary.ErrorsByType[string(domain.ErrTypeFormat)] != 1 {
		t.Errorf("expected one format_error, got %v", res.Summary.ErrorsByType)
	}
	if len(res.Summary.DetailedErrors) != 1 {
		t.Fatalf("expected 1 detailed error, got %d", len(res.Summary.DetailedErrors))
	}
	if res.Summary.DetailedErrors[0].RowNumber != 3 {
		t.Errorf("expected failure at file row 3, got %d", res.Summary.DetailedErrors[0].RowNumber)
	}
}

func TestRunCapsDetailedErrors(t *testing.T) {
	e := NewEngine(DefaultCatalog())
	e.errorSampleCap = 5
	rs := compileOrFail(t, []domain.FieldRule{
		{
			TargetField: "birthdate",
			SourceField: "DOB",
			Processing: domain.Processing{
				Function: domain.FuncExtractDate,
				Params:   json.RawMessage(`{"format":"YYYY-MM-DD"}`),
			},
		},
	})

	csv := "DOB\n"
	for i := 0; i < 20; i++ {
		csv += "garbage\n"
	}
	table, err := tabular.Parse([]byte(csv), 0)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	res := e.Run(table, rs)
	if res.Summary.TotalErrors != 20 {
		t.Errorf("expected all 20 errors counted, got %d", res.Summary.TotalErrors)
	}
	if len(res.Summary.DetailedErrors) != 5 {
		t.Errorf("expected detail sample capped at 5, got %d", len(res.Summary.DetailedErrors))
	}
}
