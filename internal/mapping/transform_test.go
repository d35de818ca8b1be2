package mapping

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ignite/sheet-importer/internal/domain"
)

func mustCompile(t *testing.T, fn domain.FunctionKind, params string) transformer {
	t.Helper()
	p := domain.Processing{Function: fn}
	if params != "" {
		p.Params = json.RawMessage(params)
	}
	tr, err := compileTransform(p)
	if err != nil {
		t.Fatalf("compileTransform(%s) failed: %v", fn, err)
	}
	return tr
}

func transformOK(t *testing.T, tr transformer, in string) string {
	t.Helper()
	out, err := tr.Transform(in)
	if err != nil {
		t.Fatalf("Transform(%q) failed: %v", in, err)
	}
	return out
}

func TestNoneTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncNone, "")
	if got := transformOK(t, tr, "hello"); got != "hello" {
		t.Errorf("NONE changed value: %q", got)
	}

	// An empty function tag means NONE.
	tr2, err := compileTransform(domain.Processing{})
	if err != nil {
		t.Fatalf("empty function: %v", err)
	}
	if got := transformOK(t, tr2, "x"); got != "x" {
		t.Errorf("empty function changed value: %q", got)
	}
}

func TestLeftRightTransform(t *testing.T) {
	left := mustCompile(t, domain.FuncLeft, `{"length":3}`)
	if got := transformOK(t, left, "abcdef"); got != "abc" {
		t.Errorf("LEFT: got %q", got)
	}
	if got := transformOK(t, left, "ab"); got != "ab" {
		t.Errorf("LEFT on short value: got %q", got)
	}

	right := mustCompile(t, domain.FuncRight, `{"length":4}`)
	if got := transformOK(t, right, "abcdef"); got != "cdef" {
		t.Errorf("RIGHT: got %q", got)
	}
	if got := transformOK(t, right, "ab"); got != "ab" {
		t.Errorf("RIGHT on short value: got %q", got)
	}
}

func TestTransformsAreRuneSafe(t *testing.T) {
	left := mustCompile(t, domain.FuncLeft, `{"length":2}`)
	if got := transformOK(t, left, "Москва"); got != "Мо" {
		t.Errorf("LEFT on Cyrillic: got %q", got)
	}
	sub := mustCompile(t, domain.FuncSubstring, `{"start":1,"length":3}`)
	if got := transformOK(t, sub, "Пример"); got != "рим" {
		t.Errorf("SUBSTRING on Cyrillic: got %q", got)
	}
}

func TestSubstringTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncSubstring, `{"start":2,"length":3}`)
	if got := transformOK(t, tr, "abcdefgh"); got != "cde" {
		t.Errorf("SUBSTRING: got %q", got)
	}

	// End past the value is clamped.
	if got := transformOK(t, tr, "abcd"); got != "cd" {
		t.Errorf("SUBSTRING clamp: got %q", got)
	}

	// Start past the value is out of range.
	_, err := tr.Transform("ab")
	var te *transformError
	if !errors.As(err, &te) || te.Type != domain.ErrTypeOutOfRange {
		t.Errorf("expected out_of_range, got %v", err)
	}
}

func TestSplitTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncSplit, `{"delimiter":"-","part":2}`)
	if got := transformOK(t, tr, "a-b-c"); got != "b" {
		t.Errorf("SPLIT: got %q", got)
	}

	_, err := tr.Transform("nodelimiter")
	var te *transformError
	if !errors.As(err, &te) || te.Type != domain.ErrTypeOutOfRange {
		t.Errorf("expected out_of_range for missing part, got %v", err)
	}
}

func TestReplaceTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncReplace, `{"search":" ","replace":""}`)
	if got := transformOK(t, tr, "+7 916 123"); got != "+7916123" {
		t.Errorf("REPLACE: got %q", got)
	}
}

func TestRegexpTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncRegexp, `{"pattern":"(\\w+)@(\\w+)","group":2}`)
	if got := transformOK(t, tr, "alice@example"); got != "example" {
		t.Errorf("REGEXP group: got %q", got)
	}

	// No match is a typed row error, not a format error.
	noDigits := mustCompile(t, domain.FuncRegexp, `{"pattern":"\\d{10}","group":0}`)
	_, err := noDigits.Transform("+7 916 123-45-67")
	var te *transformError
	if !errors.As(err, &te) || te.Type != domain.ErrTypeNoMatch {
		t.Errorf("expected no_match, got %v", err)
	}

	// A group past the pattern's capture count is out of range.
	tooHigh := mustCompile(t, domain.FuncRegexp, `{"pattern":"(a)","group":5}`)
	_, err = tooHigh.Transform("a")
	if !errors.As(err, &te) || te.Type != domain.ErrTypeOutOfRange {
		t.Errorf("expected out_of_range for bad group, got %v", err)
	}
}

func TestExtractDateTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncExtractDate, `{"format":"DD.MM.YYYY"}`)
	if got := transformOK(t, tr, "31.12.1990"); got != "1990-12-31" {
		t.Errorf("EXTRACT_DATE: got %q", got)
	}

	_, err := tr.Transform("1990-12-31")
	var te *transformError
	if !errors.As(err, &te) || te.Type != domain.ErrTypeFormat {
		t.Errorf("expected format_error for layout mismatch, got %v", err)
	}
}

func TestExtractDateTimeTransform(t *testing.T) {
	tr := mustCompile(t, domain.FuncExtractDateTime, `{"format":"YYYY-MM-DD HH:mm:SS"}`)
	got := transformOK(t, tr, "2024-06-01 15:30:45")
	if got != "2024-06-01T15:30:45Z" {
		t.Errorf("EXTRACT_DATETIME: got %q", got)
	}
}

func TestTranslateDateLayout(t *testing.T) {
	cases := map[string]string{
		"DD.MM.YYYY":          "02.01.2006",
		"YYYY-MM-DD":          "2006-01-02",
		"MM/DD/YY":            "01/02/06",
		"YYYY-MM-DD HH:mm:ss": "2006-01-02 15:04:05",
	}
	for format, want := range cases {
		got, err := translateDateLayout(format)
		if err != nil {
			t.Fatalf("translateDateLayout(%q) failed: %v", format, err)
		}
		if got != want {
			t.Errorf("translateDateLayout(%q) = %q, want %q", format, got, want)
		}
	}

	if _, err := translateDateLayout("  "); err == nil {
		t.Error("expected error for blank format")
	}
}

func TestCompileTransformRejectsBadParams(t *testing.T) {
	cases := []domain.Processing{
		{Function: domain.FuncLeft},
		{Function: domain.FuncLeft, Params: json.RawMessage(`{"length":-1}`)},
		{Function: domain.FuncSplit, Params: json.RawMessage(`{"delimiter":"","part":1}`)},
		{Function: domain.FuncSplit, Params: json.RawMessage(`{"delimiter":",","part":0}`)},
		{Function: domain.FuncReplace, Params: json.RawMessage(`{"search":""}`)},
		{Function: domain.FuncRegexp, Params: json.RawMessage(`{"pattern":"(","group":0}`)},
		{Function: domain.FuncExtractDate, Params: json.RawMessage(`{"format":""}`)},
		{Function: "UPPERCASE"},
	}
	for _, p := range cases {
		if _, err := compileTransform(p); err == nil {
			t.Errorf("expected compile error for %s %s", p.Function, p.Params)
		}
	}
}
