// Package clientsync mirrors the browser-side field toggler: given the rule snapshot
// serialized into the page, it shows or hides profile field containers whenever the
// member-type selector changes.
//
// The DOM is abstracted behind Page so the same decisions can be driven from tests or from
// a server-side renderer; the embedded browser script implements the identical algorithm.
package clientsync

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
)

// Container classes wrapping a profile field, searched in this order.
const (
	ContainerProfileField = "bp-profile-field"
	ContainerEditField    = "editfield"
)

// DefaultFade is the fade animation length.
const DefaultFade = 100 * time.Millisecond

var containerClasses = []string{ContainerProfileField, ContainerEditField}

// Element is a field container on the page.
type Element interface {
	FadeIn(d time.Duration)
	FadeOut(d time.Duration)
}

// Page finds the container of class that wraps the input named fieldKey.
type Page interface {
	Container(class string, fieldKey string) (Element, bool)
}

type Option func(*Sync)

// WithFade overrides the fade duration.
func WithFade(d time.Duration) Option {
	return func(s *Sync) { s.fade = d }
}

// Sync holds the page's rule snapshot and the currently selected member type.
// It is driven by a single event loop and is not safe for concurrent use.
type Sync struct {
	snap    domain.Snapshot
	page    Page
	fade    time.Duration
	keys    []string
	current domain.MemberType
}

func New(snap domain.Snapshot, page Page, opts ...Option) *Sync {
	s := &Sync{snap: snap, page: page, fade: DefaultFade}
	for _, o := range opts {
		o(s)
	}
	s.keys = make([]string, 0, len(snap.Fields))
	for k := range snap.Fields {
		s.keys = append(s.keys, k)
	}
	sort.Strings(s.keys)
	if snap.CurrentUserType != nil {
		s.current = *snap.CurrentUserType
	}
	return s
}

// Parse seeds a Sync from the serialized snapshot object.
func Parse(b []byte, page Page, opts ...Option) (*Sync, error) {
	var snap domain.Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	return New(snap, page, opts...), nil
}

// Enabled reports whether the snapshot names a member-type field. Without one the
// toggler never reacts.
func (s *Sync) Enabled() bool { return s.snap.TypeField != "" }

func (s *Sync) CurrentType() domain.MemberType { return s.current }

// Init runs the eager first pass: when the form pre-selects a value it is treated as a change
// event, otherwise the snapshot's current type is applied.
func (s *Sync) Init(selected string, present bool) {
	if present {
		s.OnTypeChange(selected)
		return
	}
	s.Toggle()
}

// HandleChange is the delegated change listener: it reacts only to the member-type input
// inside one of the known field containers.
func (s *Sync) HandleChange(containerClass, inputName, value string) bool {
	if !s.Enabled() || inputName != s.snap.TypeField {
		return false
	}
	for _, c := range containerClasses {
		if c == containerClass {
			s.OnTypeChange(value)
			return true
		}
	}
	return false
}

// OnTypeChange records the newly selected member type (blank means domain.TypeNone) and
// re-evaluates every field.
func (s *Sync) OnTypeChange(value string) {
	if !s.Enabled() {
		return
	}
	s.current = domain.NormalizeMemberType(domain.MemberType(strings.TrimSpace(value)))
	s.Toggle()
}

// Toggle shows every field required for the current type and hides every field explicitly
// not required for it. Fields listing the type in neither set are left as they are.
func (s *Sync) Toggle() {
	if !s.Enabled() || s.current == "" || s.page == nil {
		return
	}
	for _, key := range s.keys {
		fv := s.snap.Fields[key]
		el, ok := s.container(key)
		if !ok {
			continue
		}
		switch {
		case containsType(fv.Y, s.current):
			el.FadeIn(s.fade)
		case containsType(fv.N, s.current):
			el.FadeOut(s.fade)
		}
	}
}

func (s *Sync) container(fieldKey string) (Element, bool) {
	for _, class := range containerClasses {
		if el, ok := s.page.Container(class, fieldKey); ok && el != nil {
			return el, true
		}
	}
	return nil, false
}

func containsType(ts []domain.MemberType, t domain.MemberType) bool {
	for _, v := range ts {
		if v == t {
			return true
		}
	}
	return false
}
