package fieldrules

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/membertypes"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/translator"
)

var (
	testTypes = staticTypes{types: []membertypes.MemberType{
		{ID: "alumni", Label: "Alumni"},
		{ID: "staff", Label: "Staff"},
	}}
	testFields = staticFields{fields: []profilefields.Field{
		{ID: 1, Name: "Name"},
		{ID: 5, Name: "Member type"},
		{ID: 12, Name: "Graduation year"},
		{ID: 13, Name: "Department"},
	}}
)

type serviceFixture struct {
	svc     *Service
	backing *countingStore
}

func newServiceFixture(t *testing.T, mutate func(*Dependencies)) serviceFixture {
	t.Helper()
	backing := newCountingStore()
	d := Dependencies{
		Settings:    backing,
		MemberTypes: testTypes,
		Fields:      testFields,
		Values:      staticValues{"u1": {5: "Staff"}},
		Translator:  langTranslator{},
		Sanitizer:   stripAngles{},
		Logger:      quietLogger(),
	}
	if mutate != nil {
		mutate(&d)
	}
	return serviceFixture{svc: NewService(d), backing: backing}
}

func choiceIDs(cs []Choice) []domain.MemberType {
	out := make([]domain.MemberType, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestService_ChoicesAppendTypeNone(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, nil)
	got := f.svc.Choices(context.Background(), "es")
	assert.Equal(t, []domain.MemberType{"alumni", "staff", domain.TypeNone}, choiceIDs(got))
	assert.Equal(t, "es:"+translator.KeyTypeNoneLabel, got[2].Label)
}

func TestService_ChoicesDegradeOnCatalogFailure(t *testing.T) {
	t.Parallel()

	for name, cat := range map[string]membertypes.Catalog{
		"error": staticTypes{err: errors.New("catalog down")},
		"nil":   nil,
		"empty": staticTypes{},
	} {
		t.Run(name, func(t *testing.T) {
			f := newServiceFixture(t, func(d *Dependencies) { d.MemberTypes = cat })
			got := f.svc.Choices(context.Background(), "en")
			assert.Equal(t, []domain.MemberType{domain.TypeNone}, choiceIDs(got))
		})
	}
}

func TestService_ChoicesDedupAndRelabelTypeNone(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, func(d *Dependencies) {
		d.MemberTypes = staticTypes{types: []membertypes.MemberType{
			{ID: "alumni", Label: "Alumni"},
			{ID: " ", Label: "blank"},
			{ID: domain.TypeNone, Label: "Nobody"},
			{ID: "alumni", Label: "Former students"},
		}}
	})
	got := f.svc.Choices(context.Background(), "en")
	require.Equal(t, []domain.MemberType{"alumni", domain.TypeNone}, choiceIDs(got))
	assert.Equal(t, "Former students", got[0].Label)
	assert.Equal(t, "en:"+translator.KeyTypeNoneLabel, got[1].Label)
}

func TestService_SaveFieldConfig(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	_, err := f.svc.SaveFieldConfig(ctx, 5, SaveFieldConfigInput{IsTypeField: Some(true)})
	require.NoError(t, err)

	cfg, err := f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{
		RequiredTypes: Some([]domain.MemberType{"alumni", " type_none "}),
	})
	require.NoError(t, err)
	assert.True(t, cfg.Configured)
	assert.False(t, cfg.IsTypeField)
	checked := map[domain.MemberType]bool{}
	for _, c := range cfg.Choices {
		checked[c.ID] = c.Checked
	}
	assert.Equal(t, map[domain.MemberType]bool{"alumni": true, "staff": false, domain.TypeNone: true}, checked)

	// Omitted requiredTypes leaves the rule alone.
	cfg, err = f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{})
	require.NoError(t, err)
	assert.True(t, cfg.Configured)

	cfg, err = f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{RequiredTypes: Null[[]domain.MemberType]()})
	require.NoError(t, err)
	assert.False(t, cfg.Configured)
}

func TestService_SaveFieldConfigEmptySelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	require.NoError(t, f.svc.Rules().SetTypeField(ctx, fieldPtr(5)))

	cfg, err := f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{RequiredTypes: Some([]domain.MemberType{})})
	require.NoError(t, err)
	assert.False(t, cfg.Configured, "empty selection clears by default")

	cfg, err = f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{
		RequiredTypes: Some([]domain.MemberType{}),
		KeepEmpty:     true,
	})
	require.NoError(t, err)
	assert.True(t, cfg.Configured)

	r, err := f.svc.Engine().IsRequired(ctx, 12, "alumni")
	require.NoError(t, err)
	assert.Equal(t, domain.RequirementNotRequired, r)
}

func TestService_SaveFieldConfigRejectsUnknownTypes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	_, err := f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{
		RequiredTypes: Some([]domain.MemberType{"alumni", "wizard", "<b>x</b>"}),
	})
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 422, appErr.Status)
	assert.Equal(t, []string{"<b>x</b>", "wizard"}, appErr.Details["requiredTypes"])

	_, configured, err := f.svc.Rules().GetRequiredTypes(ctx, 12)
	require.NoError(t, err)
	assert.False(t, configured, "nothing written on rejection")
}

func TestService_SaveFieldConfigTypeFieldDesignation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 5, domain.NewTypeSet("alumni")))

	cfg, err := f.svc.SaveFieldConfig(ctx, 5, SaveFieldConfigInput{
		IsTypeField:   Some(true),
		RequiredTypes: Some([]domain.MemberType{"staff"}),
	})
	require.NoError(t, err)
	assert.True(t, cfg.IsTypeField)
	assert.Nil(t, cfg.Choices)
	_, configured, err := f.svc.Rules().GetRequiredTypes(ctx, 5)
	require.NoError(t, err)
	assert.False(t, configured, "type field keeps no rule")

	// Un-designating another field is a no-op for the designation.
	_, err = f.svc.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{IsTypeField: Some(false)})
	require.NoError(t, err)
	tf, ok, err := f.svc.Rules().TypeField(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, domain.FieldID(5), tf)

	cfg, err = f.svc.SaveFieldConfig(ctx, 5, SaveFieldConfigInput{IsTypeField: Some(false)})
	require.NoError(t, err)
	assert.False(t, cfg.IsTypeField)
	_, ok, err = f.svc.Rules().TypeField(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_FieldConfigNoTypesNotice(t *testing.T) {
	t.Parallel()

	f := newServiceFixture(t, func(d *Dependencies) { d.MemberTypes = nil })
	cfg, err := f.svc.FieldConfig(context.Background(), 12, "fr")
	require.NoError(t, err)
	assert.True(t, cfg.NoTypes)
	assert.Equal(t, "fr:"+translator.KeyNoTypes, cfg.Notice)
	assert.Len(t, cfg.Choices, 1)

	_, err = f.svc.FieldConfig(context.Background(), 0, "fr")
	var appErr *Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 422, appErr.Status)
}

func TestService_Snapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	_, ok, err := f.svc.Snapshot(ctx, "u1", "en")
	require.NoError(t, err)
	assert.False(t, ok, "no snapshot without a type field")

	require.NoError(t, f.svc.Rules().SetTypeField(ctx, fieldPtr(5)))
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 12, domain.NewTypeSet("alumni")))

	snap, ok, err := f.svc.Snapshot(ctx, "u1", "en")
	require.NoError(t, err)
	require.True(t, ok)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"field_1":  {"y": [], "n": []},
		"field_12": {"y": ["alumni"], "n": ["staff", "type_none"]},
		"field_13": {"y": [], "n": []},
		"type_field": "field_5",
		"current_user_type": "staff"
	}`, string(raw))

	snap, _, err = f.svc.Snapshot(ctx, "", "en")
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentUserType)
}

func TestService_SnapshotDegradesWithoutFieldCatalog(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, func(d *Dependencies) { d.Fields = staticFields{err: errors.New("down")} })
	require.NoError(t, f.svc.Rules().SetTypeField(ctx, fieldPtr(5)))

	snap, ok, err := f.svc.Snapshot(ctx, "", "en")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, snap.Fields)
	assert.Equal(t, "field_5", snap.TypeField)
}

func TestService_ValidateSignup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	sub := SignupSubmission{
		FieldIDs: []domain.FieldID{1, 5, 12, 13},
		Request:  Request{Post: url.Values{"field_5": {"staff"}}},
		Errors: map[string]string{
			"field_1":  "required",
			"field_12": "required",
			"field_13": "required",
		},
	}

	// No type field: errors pass through untouched.
	res, err := f.svc.ValidateSignup(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, sub.Errors, res.Errors)
	assert.Empty(t, res.Cleared)

	require.NoError(t, f.svc.Rules().SetTypeField(ctx, fieldPtr(5)))
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 12, domain.NewTypeSet("alumni")))
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 13, domain.NewTypeSet("staff")))

	res, err = f.svc.ValidateSignup(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, domain.MemberType("staff"), res.Type)
	assert.Equal(t, map[string]string{"field_1": "required", "field_13": "required"}, res.Errors)
	assert.Equal(t, []string{"field_12"}, res.Cleared)
	assert.Len(t, sub.Errors, 3, "input map is not mutated")

	// No submitted type resolves to type_none, which is in neither rule.
	sub.Request = Request{}
	res, err = f.svc.ValidateSignup(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeNone, res.Type)
	assert.ElementsMatch(t, []string{"field_12", "field_13"}, res.Cleared)
}

func TestService_RenderFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	rc := RenderContext{User: "u1"}

	filter := f.svc.RenderFilter(ctx, rc)
	assert.True(t, filter(12, true), "no type field passes defaults through")
	assert.False(t, filter(12, false))

	require.NoError(t, f.svc.Rules().SetTypeField(ctx, fieldPtr(5)))
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 12, domain.NewTypeSet("alumni")))
	require.NoError(t, f.svc.Rules().SetRequiredTypes(ctx, 13, domain.NewTypeSet("staff")))

	// Stored user value "Staff".
	filter = f.svc.RenderFilter(ctx, rc)
	assert.False(t, filter(12, true))
	assert.True(t, filter(13, false))
	assert.True(t, filter(1, true), "unconfigured keeps default")
	assert.False(t, filter(1, false))
	assert.True(t, filter(5, true), "type field keeps default")

	// Submitted value wins over the stored one.
	rc.Request = Request{Get: url.Values{"field_5": {"alumni"}}}
	assert.True(t, f.svc.FilterRequired(ctx, rc, 12, false))
	assert.False(t, f.svc.FilterRequired(ctx, rc, 13, true))
}

func TestService_RenderFilterDegradesOnStorageFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	f.backing.mu.Lock()
	f.backing.failGet = true
	f.backing.mu.Unlock()

	filter := f.svc.RenderFilter(ctx, RenderContext{User: "u1"})
	assert.True(t, filter(12, true))
	assert.False(t, filter(12, false))
}

func TestService_InvalidFieldIDs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newServiceFixture(t, nil)
	var appErr *Error
	_, err := f.svc.SaveFieldConfig(ctx, -3, SaveFieldConfigInput{})
	assert.ErrorAs(t, err, &appErr)
	assert.ErrorAs(t, f.svc.ClearRule(ctx, 0), &appErr)
}

func TestService_InstancesSharingStorageSeeEachOthersSaves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	backing := newCountingStore()
	newInstance := func() *Service {
		return NewService(Dependencies{
			Settings:    backing,
			MemberTypes: testTypes,
			Fields:      testFields,
			Translator:  langTranslator{},
			Sanitizer:   stripAngles{},
			Logger:      quietLogger(),
		})
	}
	a, b := newInstance(), newInstance()

	staff := RenderContext{Request: Request{Post: url.Values{"field_5": {"staff"}}}}
	require.True(t, b.FilterRequired(ctx, staff, 12, true), "nothing configured yet")
	cfg, err := b.FieldConfig(ctx, 12, "en")
	require.NoError(t, err)
	require.False(t, cfg.Configured)

	_, err = a.SaveFieldConfig(ctx, 5, SaveFieldConfigInput{IsTypeField: Some(true)})
	require.NoError(t, err)
	_, err = a.SaveFieldConfig(ctx, 12, SaveFieldConfigInput{RequiredTypes: Some([]domain.MemberType{"alumni"})})
	require.NoError(t, err)

	assert.False(t, a.FilterRequired(ctx, staff, 12, true))
	assert.False(t, b.FilterRequired(ctx, staff, 12, true), "b resolves against a's save")

	res, err := b.ValidateSignup(ctx, SignupSubmission{
		FieldIDs: []domain.FieldID{12},
		Request:  staff.Request,
		Errors:   map[string]string{"field_12": "required"},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{"field_12"}, res.Cleared)

	cfg, err = b.FieldConfig(ctx, 12, "en")
	require.NoError(t, err)
	assert.True(t, cfg.Configured)
}
