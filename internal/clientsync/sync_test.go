package clientsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
)

type fakeElement struct {
	visible bool
	calls   []string
}

func (e *fakeElement) FadeIn(time.Duration)  { e.visible = true; e.calls = append(e.calls, "in") }
func (e *fakeElement) FadeOut(time.Duration) { e.visible = false; e.calls = append(e.calls, "out") }

type fakePage struct {
	byClass map[string]map[string]*fakeElement
}

func newFakePage() *fakePage {
	return &fakePage{byClass: map[string]map[string]*fakeElement{}}
}

func (p *fakePage) add(class, fieldKey string, visible bool) *fakeElement {
	if p.byClass[class] == nil {
		p.byClass[class] = map[string]*fakeElement{}
	}
	el := &fakeElement{visible: visible}
	p.byClass[class][fieldKey] = el
	return el
}

func (p *fakePage) Container(class, fieldKey string) (Element, bool) {
	el, ok := p.byClass[class][fieldKey]
	if !ok {
		return nil, false
	}
	return el, true
}

const scenario = `{"field_12":{"y":["alumni"],"n":["staff"]},"type_field":"field_5","current_user_type":null}`

func TestSync_Scenario(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", false)

	s, err := Parse([]byte(scenario), page)
	require.NoError(t, err)
	require.True(t, s.Enabled())

	s.OnTypeChange("alumni")
	assert.True(t, el.visible, "alumni reveals field_12")

	s.OnTypeChange("staff")
	assert.False(t, el.visible, "staff hides field_12")

	s.OnTypeChange("guest")
	assert.False(t, el.visible, "guest leaves visibility unchanged")
	assert.Equal(t, []string{"in", "out"}, el.calls)

	s.OnTypeChange("alumni")
	s.OnTypeChange("guest")
	assert.True(t, el.visible, "guest keeps the revealed state too")
}

func TestSync_BlankSelectionIsTypeNone(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerProfileField, "field_12", true)
	snap := domain.Snapshot{
		Fields:    map[string]domain.FieldVisibility{"field_12": {N: []domain.MemberType{domain.TypeNone}}},
		TypeField: "field_5",
	}
	s := New(snap, page)

	s.OnTypeChange("   ")
	assert.Equal(t, domain.TypeNone, s.CurrentType())
	assert.False(t, el.visible)
}

func TestSync_FirstContainerClassWins(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	profile := page.add(ContainerProfileField, "field_12", false)
	edit := page.add(ContainerEditField, "field_12", false)

	s, err := Parse([]byte(scenario), page)
	require.NoError(t, err)
	s.OnTypeChange("alumni")

	assert.True(t, profile.visible)
	assert.Empty(t, edit.calls)
}

func TestSync_IdempotentToggle(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", false)
	s, err := Parse([]byte(scenario), page)
	require.NoError(t, err)

	s.OnTypeChange("alumni")
	s.Toggle()
	s.Toggle()
	assert.True(t, el.visible)
	assert.Equal(t, []string{"in", "in", "in"}, el.calls)
}

func TestSync_InitUsesPreselectedOrSnapshotType(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", true)
	staff := domain.MemberType("staff")
	snap := domain.Snapshot{
		Fields:          map[string]domain.FieldVisibility{"field_12": {Y: []domain.MemberType{"alumni"}, N: []domain.MemberType{"staff"}}},
		TypeField:       "field_5",
		CurrentUserType: &staff,
	}

	s := New(snap, page)
	s.Init("", false)
	assert.False(t, el.visible, "snapshot type staff hides the field")

	s.Init("alumni", true)
	assert.True(t, el.visible, "pre-selected alumni reveals the field")
}

func TestSync_NoCurrentTypeDoesNothing(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", true)
	s, err := Parse([]byte(scenario), page)
	require.NoError(t, err)

	s.Init("", false)
	assert.Empty(t, el.calls)
}

func TestSync_HandleChangeFiltersEvents(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", false)
	s, err := Parse([]byte(scenario), page)
	require.NoError(t, err)

	assert.False(t, s.HandleChange(ContainerEditField, "field_12", "alumni"), "other inputs are ignored")
	assert.False(t, s.HandleChange("sidebar", "field_5", "alumni"), "other containers are ignored")
	assert.Empty(t, el.calls)

	assert.True(t, s.HandleChange(ContainerProfileField, "field_5", "alumni"))
	assert.True(t, el.visible)
}

func TestSync_DisabledWithoutTypeField(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	el := page.add(ContainerEditField, "field_12", false)
	snap := domain.Snapshot{Fields: map[string]domain.FieldVisibility{"field_12": {Y: []domain.MemberType{"alumni"}}}}
	s := New(snap, page)

	s.OnTypeChange("alumni")
	assert.False(t, s.Enabled())
	assert.Empty(t, el.calls)
}

func TestSync_MissingContainerIsSkipped(t *testing.T) {
	t.Parallel()

	page := newFakePage()
	s, err := Parse([]byte(`{"field_12":{"y":["alumni"],"n":[]},"field_13":{"y":["alumni"],"n":[]},"type_field":"field_5","current_user_type":null}`), page)
	require.NoError(t, err)
	el := page.add(ContainerEditField, "field_13", false)

	s.OnTypeChange("alumni")
	assert.True(t, el.visible)
}
