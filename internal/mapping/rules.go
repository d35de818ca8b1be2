package mapping

import (
	"fmt"

	"github.com/ignite/sheet-importer/internal/domain"
)

// compiledRule is a FieldRule with its processing function resolved to a
// ready-to-run transformer.
type compiledRule struct {
	target       string
	source       string
	defaultValue string
	tr           transformer
}

// RuleSet is a compiled, validated rule list ready for row evaluation.
// Rule order is preserved from the template.
type RuleSet struct {
	rules []compiledRule
}

// SourceFields returns the distinct source columns the rule set reads,
// in rule order.
func (rs *RuleSet) SourceFields() []string {
	seen := make(map[string]bool, len(rs.rules))
	var out []string
	for _, r := range rs.rules {
		if !seen[r.source] {
			seen[r.source] = true
			out = append(out, r.source)
		}
	}
	return out
}

// Len returns the number of active rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// CompileRules validates field rules against the catalog and compiles their
// processing functions. Rules missing either a target or a source field are
// inert and silently skipped. Compilation fails on an unknown target field,
// a duplicate target binding (ambiguous mappings are rejected rather than
// resolved last-write-wins), a function the target does not accept, or
// malformed function parameters.
func (c *Catalog) CompileRules(rules []domain.FieldRule) (*RuleSet, error) {
	rs := &RuleSet{}
	bound := make(map[string]bool, len(rules))

	for i, rule := range rules {
		if rule.TargetField == "" || rule.SourceField == "" {
			continue
		}

		field, ok := c.Field(rule.TargetField)
		if !ok {
			return nil, fmt.Errorf("rule %d: unknown target field %q", i+1, rule.TargetField)
		}
		if bound[rule.TargetField] {
			return nil, fmt.Errorf("rule %d: target field %q is bound more than once", i+1, rule.TargetField)
		}
		bound[rule.TargetField] = true

		kind := rule.Processing.Function
		if kind == "" {
			kind = domain.FuncNone
		}
		if !field.Accepts(kind) {
			return nil, fmt.Errorf("rule %d: target field %q does not accept function %s", i+1, rule.TargetField, kind)
		}

		tr, err := compileTransform(rule.Processing)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, rule.TargetField, err)
		}

		rs.rules = append(rs.rules, compiledRule{
			target:       rule.TargetField,
			source:       rule.SourceField,
			defaultValue: rule.DefaultValue,
			tr:           tr,
		})
	}

	return rs, nil
}
