package fieldrules

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/membertypes"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/translator"
)

// Dependencies wires the service to its collaborators. MemberTypes, Fields, Values and
// Translator may be nil; the service then behaves as if they returned nothing.
type Dependencies struct {
	Settings settings.Store
	Prefix   string

	MemberTypes membertypes.Catalog
	Fields      profilefields.Catalog
	Values      profilefields.ValueReader
	Translator  translator.Translator
	Sanitizer   Sanitizer

	Filters []RequirementFilter
	Logger  *log.Logger
}

type Service struct {
	rules    *RuleStore
	engine   *Engine
	resolver *TypeResolver

	memberTypes membertypes.Catalog
	fields      profilefields.Catalog
	tr          translator.Translator
	logger      *log.Logger
}

func NewService(d Dependencies) *Service {
	rules := NewRuleStore(d.Settings, d.Prefix)
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		rules:       rules,
		engine:      NewEngine(rules, d.Filters...),
		resolver:    NewTypeResolver(rules, d.Values, d.Sanitizer),
		memberTypes: d.MemberTypes,
		fields:      d.Fields,
		tr:          d.Translator,
		logger:      logger,
	}
}

func (s *Service) Rules() *RuleStore       { return s.rules }
func (s *Service) Engine() *Engine         { return s.engine }
func (s *Service) Resolver() *TypeResolver { return s.resolver }

// Choices returns the catalog's member types followed by the synthetic domain.TypeNone choice.
// A failing catalog degrades to the domain.TypeNone choice alone.
func (s *Service) Choices(ctx context.Context, lang string) []Choice {
	noneLabel := s.translate(lang, translator.KeyTypeNoneLabel)

	var entries []membertypes.MemberType
	if s.memberTypes != nil {
		var err error
		entries, err = s.memberTypes.ListMemberTypes(ctx)
		if err != nil {
			s.logger.Printf("fieldrules: list member types: %v", err)
			entries = nil
		}
	}

	out := make([]Choice, 0, len(entries)+1)
	seen := make(map[domain.MemberType]int, len(entries)+1)
	for _, e := range entries {
		id := domain.MemberType(strings.TrimSpace(string(e.ID)))
		if id == "" {
			continue
		}
		if i, dup := seen[id]; dup {
			out[i].Label = e.Label
			continue
		}
		seen[id] = len(out)
		out = append(out, Choice{ID: id, Label: e.Label})
	}
	if i, ok := seen[domain.TypeNone]; ok {
		out[i].Label = noneLabel
	} else {
		out = append(out, Choice{ID: domain.TypeNone, Label: noneLabel})
	}
	return out
}

// FieldConfig returns the admin view of field's configuration.
func (s *Service) FieldConfig(ctx context.Context, field domain.FieldID, lang string) (FieldConfig, error) {
	if field <= 0 {
		return FieldConfig{}, invalidFieldError()
	}
	if err := s.rules.Refresh(ctx); err != nil {
		return FieldConfig{}, err
	}
	tf, hasTF, err := s.rules.TypeField(ctx)
	if err != nil {
		return FieldConfig{}, err
	}
	cfg := FieldConfig{FieldID: field}
	if hasTF && tf == field {
		cfg.IsTypeField = true
		return cfg, nil
	}

	types, configured, err := s.rules.GetRequiredTypes(ctx, field)
	if err != nil {
		return FieldConfig{}, err
	}
	cfg.Configured = configured

	choices := s.Choices(ctx, lang)
	if len(choices) <= 1 {
		cfg.NoTypes = true
		cfg.Notice = s.translate(lang, translator.KeyNoTypes)
	}
	cfg.Choices = make([]FieldChoice, 0, len(choices))
	for _, c := range choices {
		cfg.Choices = append(cfg.Choices, FieldChoice{Choice: c, Checked: configured && types.Contains(c.ID)})
	}
	return cfg, nil
}

// SaveFieldConfig applies an admin edit of field's configuration and returns the result.
//
// The member-type designation is applied first; if field is (still) the member-type field no
// rule is touched. Requested types must be known choices. An empty selection clears the rule
// unless KeepEmpty is set.
func (s *Service) SaveFieldConfig(ctx context.Context, field domain.FieldID, in SaveFieldConfigInput) (FieldConfig, error) {
	if field <= 0 {
		return FieldConfig{}, invalidFieldError()
	}
	if err := s.rules.Refresh(ctx); err != nil {
		return FieldConfig{}, err
	}

	if in.IsTypeField.IsSpecified() && !in.IsTypeField.IsNull() {
		if in.IsTypeField.Value() {
			if err := s.rules.SetTypeField(ctx, &field); err != nil {
				return FieldConfig{}, err
			}
		} else {
			tf, ok, err := s.rules.TypeField(ctx)
			if err != nil {
				return FieldConfig{}, err
			}
			if ok && tf == field {
				if err := s.rules.SetTypeField(ctx, nil); err != nil {
					return FieldConfig{}, err
				}
			}
		}
	}

	tf, hasTF, err := s.rules.TypeField(ctx)
	if err != nil {
		return FieldConfig{}, err
	}
	if hasTF && tf == field {
		return s.FieldConfig(ctx, field, in.Lang)
	}

	if in.RequiredTypes.IsSpecified() {
		if in.RequiredTypes.IsNull() {
			if err := s.rules.ClearRule(ctx, field); err != nil {
				return FieldConfig{}, err
			}
			return s.FieldConfig(ctx, field, in.Lang)
		}

		known := make(map[domain.MemberType]struct{})
		for _, c := range s.Choices(ctx, in.Lang) {
			known[c.ID] = struct{}{}
		}
		selected := domain.NewTypeSet()
		var unknown []string
		for _, t := range in.RequiredTypes.Value() {
			t = domain.MemberType(strings.TrimSpace(string(t)))
			if _, ok := known[t]; !ok {
				unknown = append(unknown, string(t))
				continue
			}
			selected[t] = struct{}{}
		}
		if len(unknown) > 0 {
			sort.Strings(unknown)
			return FieldConfig{}, &Error{
				Status:  422,
				Code:    "VALIDATION_ERROR",
				Message: "unknown member types",
				Details: map[string]any{"requiredTypes": unknown},
			}
		}

		if selected.Len() == 0 && !in.KeepEmpty {
			err = s.rules.ClearRule(ctx, field)
		} else {
			err = s.rules.SetRequiredTypes(ctx, field, selected)
		}
		if err != nil {
			return FieldConfig{}, err
		}
	}

	return s.FieldConfig(ctx, field, in.Lang)
}

// ClearRule removes field's rule.
func (s *Service) ClearRule(ctx context.Context, field domain.FieldID) error {
	if field <= 0 {
		return invalidFieldError()
	}
	return s.rules.ClearRule(ctx, field)
}

// Snapshot builds the rule table for the client-side toggler. ok is false when no
// member-type field is designated; there is nothing for the client to do then.
func (s *Service) Snapshot(ctx context.Context, user profilefields.UserID, lang string) (snap domain.Snapshot, ok bool, err error) {
	pass, err := s.engine.NewPass(ctx)
	if err != nil {
		return domain.Snapshot{}, false, err
	}
	tf, hasTF := pass.TypeField()
	if !hasTF {
		return domain.Snapshot{}, false, nil
	}

	var (
		fields  []profilefields.Field
		choices []Choice
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.fields == nil {
			return nil
		}
		fs, err := s.fields.ListFields(gctx)
		if err != nil {
			s.logger.Printf("fieldrules: list profile fields: %v", err)
			return nil
		}
		fields = fs
		return nil
	})
	g.Go(func() error {
		choices = s.Choices(gctx, lang)
		return nil
	})
	_ = g.Wait()

	snap = domain.Snapshot{
		Fields:    make(map[string]domain.FieldVisibility, len(fields)),
		TypeField: domain.FieldKey(tf),
	}
	for _, f := range fields {
		if f.ID <= 0 || f.ID == tf {
			continue
		}
		key := domain.FieldKey(f.ID)
		if _, dup := snap.Fields[key]; dup {
			continue
		}
		fv := domain.FieldVisibility{Y: []domain.MemberType{}, N: []domain.MemberType{}}
		for _, c := range choices {
			r, err := pass.IsRequired(ctx, f.ID, c.ID)
			if err != nil {
				s.logger.Printf("fieldrules: resolve field %d: %v", f.ID, err)
				fv = domain.FieldVisibility{Y: []domain.MemberType{}, N: []domain.MemberType{}}
				break
			}
			switch r {
			case domain.RequirementRequired:
				fv.Y = append(fv.Y, c.ID)
			case domain.RequirementNotRequired:
				fv.N = append(fv.N, c.ID)
			}
		}
		snap.Fields[key] = fv
	}

	if user != "" {
		t, found, err := s.resolver.UserType(ctx, user)
		if err != nil {
			s.logger.Printf("fieldrules: stored member type for %s: %v", user, err)
		} else if found {
			snap.CurrentUserType = &t
		}
	}
	return snap, true, nil
}

// ValidateSignup removes the validation errors of submitted fields that are not required for
// the submitted member type. Fields without a rule keep their errors.
func (s *Service) ValidateSignup(ctx context.Context, sub SignupSubmission) (SignupResult, error) {
	res := SignupResult{Errors: make(map[string]string, len(sub.Errors))}
	for k, v := range sub.Errors {
		res.Errors[k] = v
	}

	pass, err := s.engine.NewPass(ctx)
	if err != nil {
		return res, err
	}
	t, _, err := s.resolver.RequestType(ctx, sub.Request, SourceAny)
	if errors.Is(err, ErrNoTypeField) {
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Type = domain.NormalizeMemberType(t)

	for _, id := range sub.FieldIDs {
		r, err := pass.IsRequired(ctx, id, res.Type)
		if err != nil {
			s.logger.Printf("fieldrules: signup resolve field %d: %v", id, err)
			continue
		}
		if r != domain.RequirementNotRequired {
			continue
		}
		key := domain.FieldKey(id)
		if _, ok := res.Errors[key]; ok {
			delete(res.Errors, key)
			res.Cleared = append(res.Cleared, key)
		}
	}
	return res, nil
}

// RenderFilter resolves the member type for one form render and returns the per-field
// requiredness filter. Failures degrade to returning the default unchanged.
func (s *Service) RenderFilter(ctx context.Context, rc RenderContext) func(field domain.FieldID, defaultRequired bool) bool {
	passthrough := func(_ domain.FieldID, defaultRequired bool) bool { return defaultRequired }

	pass, err := s.engine.NewPass(ctx)
	if err != nil {
		s.logger.Printf("fieldrules: render pass: %v", err)
		return passthrough
	}
	t, err := s.resolver.ResolveType(ctx, rc.Request, SourceAny, rc.User)
	if errors.Is(err, ErrNoTypeField) {
		return passthrough
	}
	if err != nil {
		s.logger.Printf("fieldrules: resolve member type: %v", err)
		return passthrough
	}
	return func(field domain.FieldID, defaultRequired bool) bool {
		r, err := pass.IsRequired(ctx, field, t)
		if err != nil {
			s.logger.Printf("fieldrules: render resolve field %d: %v", field, err)
			return defaultRequired
		}
		return r.Apply(defaultRequired)
	}
}

// FilterRequired is the single-field form of RenderFilter.
func (s *Service) FilterRequired(ctx context.Context, rc RenderContext, field domain.FieldID, defaultRequired bool) bool {
	return s.RenderFilter(ctx, rc)(field, defaultRequired)
}

func (s *Service) translate(lang, key string) string {
	if s.tr == nil {
		return key
	}
	return s.tr.Translate(lang, key)
}

func invalidFieldError() error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: "invalid field id",
		Details: map[string]any{"fieldId": "must be a positive integer"},
	}
}
