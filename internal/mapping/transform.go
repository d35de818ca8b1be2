package mapping

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ignite/sheet-importer/internal/domain"
)

// transformer applies one compiled processing function to a cell value.
// A failed transform returns a *transformError so the engine can classify
// the failure without string matching.
type transformer interface {
	Transform(value string) (string, error)
}

// transformError is a per-cell transformation failure. It is absorbed by
// the engine into a RowError and never escapes past it.
type transformError struct {
	Type domain.RowErrorType
	Msg  string
}

func (e *transformError) Error() string { return e.Msg }

func formatErr(format string, args ...interface{}) *transformError {
	return &transformError{Type: domain.ErrTypeFormat, Msg: fmt.Sprintf(format, args...)}
}

// Typed parameter sets, one per processing function. These are the variants
// of the Processing union; compileTransform decodes exactly one of them
// based on the function tag.
type (
	leftParams      struct{ Length int `json:"length"` }
	rightParams     struct{ Length int `json:"length"` }
	substringParams struct {
		Start  int `json:"start"`
		Length int `json:"length"`
	}
	splitParams struct {
		Delimiter string `json:"delimiter"`
		Part      int    `json:"part"`
	}
	replaceParams struct {
		Search  string `json:"search"`
		Replace string `json:"replace"`
	}
	regexpParams struct {
		Pattern string `json:"pattern"`
		Group   int    `json:"group"`
	}
	dateParams struct{ Format string `json:"format"` }
)

type noneTransform struct{}

func (noneTransform) Transform(value string) (string, error) { return value, nil }

type leftTransform struct{ length int }

func (t leftTransform) Transform(value string) (string, error) {
	r := []rune(value)
	if len(r) <= t.length {
		return value, nil
	}
	return string(r[:t.length]), nil
}

type rightTransform struct{ length int }

func (t rightTransform) Transform(value string) (string, error) {
	r := []rune(value)
	if len(r) <= t.length {
		return value, nil
	}
	return string(r[len(r)-t.length:]), nil
}

type substringTransform struct{ start, length int }

func (t substringTransform) Transform(value string) (string, error) {
	r := []rune(value)
	if t.start >= len(r) {
		return "", &transformError{
			Type: domain.ErrTypeOutOfRange,
			Msg:  fmt.Sprintf("substring start %d is past the end of a %d-character value", t.start, len(r)),
		}
	}
	end := t.start + t.length
	if end > len(r) {
		end = len(r)
	}
	return string(r[t.start:end]), nil
}

type splitTransform struct {
	delimiter string
	part      int // 1-indexed
}

func (t splitTransform) Transform(value string) (string, error) {
	parts := strings.Split(value, t.delimiter)
	if t.part < 1 || t.part > len(parts) {
		return "", &transformError{
			Type: domain.ErrTypeOutOfRange,
			Msg:  fmt.Sprintf("split produced %d parts, part %d requested", len(parts), t.part),
		}
	}
	return parts[t.part-1], nil
}

type replaceTransform struct{ search, replace string }

func (t replaceTransform) Transform(value string) (string, error) {
	return strings.ReplaceAll(value, t.search, t.replace), nil
}

type regexpTransform struct {
	re    *regexp.Regexp
	group int
}

func (t regexpTransform) Transform(value string) (string, error) {
	m := t.re.FindStringSubmatch(value)
	if m == nil {
		return "", &transformError{
			Type: domain.ErrTypeNoMatch,
			Msg:  fmt.Sprintf("value does not match pattern %q", t.re.String()),
		}
	}
	if t.group < 0 || t.group >= len(m) {
		return "", &transformError{
			Type: domain.ErrTypeOutOfRange,
			Msg:  fmt.Sprintf("pattern has %d capture groups, group %d requested", len(m)-1, t.group),
		}
	}
	return m[t.group], nil
}

type dateTransform struct {
	layout   string
	declared string
	dateOnly bool
}

func (t dateTransform) Transform(value string) (string, error) {
	parsed, err := time.Parse(t.layout, strings.TrimSpace(value))
	if err != nil {
		return "", formatErr("value does not parse as %q", t.declared)
	}
	if t.dateOnly {
		return parsed.Format(domain.CanonicalDateLayout), nil
	}
	return parsed.Format(domain.CanonicalDateTimeLayout), nil
}

// compileTransform resolves a Processing union into its transformer. Unknown
// functions and malformed parameter sets are rule-set build errors, not row
// errors. The switch is exhaustive over FunctionKind.
func compileTransform(p domain.Processing) (transformer, error) {
	switch p.Function {
	case domain.FuncNone, "":
		return noneTransform{}, nil

	case domain.FuncLeft:
		var params leftParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		if params.Length < 0 {
			return nil, fmt.Errorf("LEFT length must be non-negative")
		}
		return leftTransform{length: params.Length}, nil

	case domain.FuncRight:
		var params rightParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		if params.Length < 0 {
			return nil, fmt.Errorf("RIGHT length must be non-negative")
		}
		return rightTransform{length: params.Length}, nil

	case domain.FuncSubstring:
		var params substringParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		if params.Start < 0 || params.Length < 0 {
			return nil, fmt.Errorf("SUBSTRING start and length must be non-negative")
		}
		return substringTransform{start: params.Start, length: params.Length}, nil

	case domain.FuncSplit:
		var params splitParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		if params.Delimiter == "" {
			return nil, fmt.Errorf("SPLIT delimiter is required")
		}
		if params.Part < 1 {
			return nil, fmt.Errorf("SPLIT part is 1-indexed, got %d", params.Part)
		}
		return splitTransform{delimiter: params.Delimiter, part: params.Part}, nil

	case domain.FuncReplace:
		var params replaceParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		if params.Search == "" {
			return nil, fmt.Errorf("REPLACE search string is required")
		}
		return replaceTransform{search: params.Search, replace: params.Replace}, nil

	case domain.FuncRegexp:
		var params regexpParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		re, err := regexp.Compile(params.Pattern)
		if err != nil {
			return nil, fmt.Errorf("REGEXP pattern: %w", err)
		}
		if params.Group < 0 {
			return nil, fmt.Errorf("REGEXP group must be non-negative")
		}
		return regexpTransform{re: re, group: params.Group}, nil

	case domain.FuncExtractDate:
		var params dateParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		layout, err := translateDateLayout(params.Format)
		if err != nil {
			return nil, err
		}
		return dateTransform{layout: layout, declared: params.Format, dateOnly: true}, nil

	case domain.FuncExtractDateTime:
		var params dateParams
		if err := decodeParams(p.Params, &params); err != nil {
			return nil, err
		}
		layout, err := translateDateLayout(params.Format)
		if err != nil {
			return nil, err
		}
		return dateTransform{layout: layout, declared: params.Format}, nil
	}

	return nil, fmt.Errorf("unknown processing function %q", p.Function)
}

func decodeParams(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("missing function parameters")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid function parameters: %w", err)
	}
	return nil
}

// dateTokens maps template-style format tokens to Go reference layout
// fragments. Longer tokens are listed first so "YYYY" wins over "YY".
var dateTokens = []struct{ token, layout string }{
	{"YYYY", "2006"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"mm", "04"},
	{"SS", "05"},
	{"ss", "05"},
}

// translateDateLayout converts a declared format like "DD.MM.YYYY HH:mm"
// into a Go time layout.
func translateDateLayout(format string) (string, error) {
	if strings.TrimSpace(format) == "" {
		return "", fmt.Errorf("date format is required")
	}
	layout := format
	for _, t := range dateTokens {
		layout = strings.ReplaceAll(layout, t.token, t.layout)
	}
	return layout, nil
}
