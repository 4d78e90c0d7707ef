package fieldrules

import (
	"context"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
)

// RequirementFilter may adjust a resolved requirement before it is returned to callers.
// Filters run in registration order and never run for the member-type field itself.
type RequirementFilter func(ctx context.Context, field domain.FieldID, t domain.MemberType, r domain.Requirement) domain.Requirement

// Engine answers whether a field is required for a member type.
type Engine struct {
	rules   *RuleStore
	filters []RequirementFilter
}

func NewEngine(rules *RuleStore, filters ...RequirementFilter) *Engine {
	return &Engine{rules: rules, filters: filters}
}

// IsRequired resolves field against t.
//
//   - no member-type field designated, or field is the member-type field: unconfigured
//   - blank t is treated as domain.TypeNone
//   - no rule stored for field: unconfigured
//   - otherwise required iff t is in the field's rule set
func (e *Engine) IsRequired(ctx context.Context, field domain.FieldID, t domain.MemberType) (domain.Requirement, error) {
	p, err := e.NewPass(ctx)
	if err != nil {
		return domain.RequirementUnconfigured, err
	}
	return p.IsRequired(ctx, field, t)
}

// Pass is a single resolution pass. The member-type field designation is read once and rule
// lookups are memoized per field, so a pass sees one consistent view of the rules.
// A Pass is not safe for concurrent use.
type Pass struct {
	e            *Engine
	typeField    domain.FieldID
	hasTypeField bool
	rules        map[domain.FieldID]cachedRule
}

// NewPass starts a pass against the current stored rules, dropping a mirror that other
// instances have written past.
func (e *Engine) NewPass(ctx context.Context) (*Pass, error) {
	if err := e.rules.Refresh(ctx); err != nil {
		return nil, err
	}
	tf, ok, err := e.rules.TypeField(ctx)
	if err != nil {
		return nil, err
	}
	return &Pass{
		e:            e,
		typeField:    tf,
		hasTypeField: ok,
		rules:        make(map[domain.FieldID]cachedRule),
	}, nil
}

// TypeField returns the member-type field seen by this pass.
func (p *Pass) TypeField() (domain.FieldID, bool) { return p.typeField, p.hasTypeField }

func (p *Pass) IsRequired(ctx context.Context, field domain.FieldID, t domain.MemberType) (domain.Requirement, error) {
	if !p.hasTypeField || field == p.typeField {
		return domain.RequirementUnconfigured, nil
	}
	t = domain.NormalizeMemberType(t)

	rule, ok := p.rules[field]
	if !ok {
		types, configured, err := p.e.rules.GetRequiredTypes(ctx, field)
		if err != nil {
			return domain.RequirementUnconfigured, err
		}
		rule = cachedRule{types: types, configured: configured}
		p.rules[field] = rule
	}

	r := domain.RequirementUnconfigured
	if rule.configured {
		r = domain.RequirementOf(rule.types.Contains(t))
	}
	for _, f := range p.e.filters {
		r = f(ctx, field, t, r)
	}
	return r, nil
}
