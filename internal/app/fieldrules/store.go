package fieldrules

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
)

// DefaultPrefix namespaces every settings key written by the rule store.
const DefaultPrefix = "mtcf"

type cachedRule struct {
	types      domain.TypeSet
	configured bool
}

type cachedTypeField struct {
	id domain.FieldID
	ok bool
}

// RuleStore holds, per field, the member types for which the field is required, plus the
// singleton member-type field designation.
//
// Reads are served from an in-process mirror of the settings store. Every write updates or
// drops only the key it touched, so a read that follows a write in the same process always
// observes the new value. Writes also publish a fresh generation token; Refresh compares it
// with the token the mirror was built against and drops the mirror when another instance has
// written since. It is safe for concurrent use.
type RuleStore struct {
	settings settings.Store
	prefix   string

	mu         sync.RWMutex
	rules      map[domain.FieldID]cachedRule
	typeField  *cachedTypeField
	generation string
	synced     bool
}

func NewRuleStore(s settings.Store, prefix string) *RuleStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &RuleStore{
		settings: s,
		prefix:   prefix,
		rules:    make(map[domain.FieldID]cachedRule),
	}
}

func (s *RuleStore) typeFieldKey() string { return s.prefix + "_type_field_id" }

func (s *RuleStore) generationKey() string { return s.prefix + "_generation" }

func (s *RuleStore) ruleKey(id domain.FieldID) string {
	return fmt.Sprintf("%s_%d_types", s.prefix, id)
}

// SetRequiredTypes replaces the rule for id. An empty set records "required for none",
// which is distinct from an unconfigured field.
func (s *RuleStore) SetRequiredTypes(ctx context.Context, id domain.FieldID, types domain.TypeSet) error {
	if id <= 0 {
		return ErrInvalidFieldID
	}
	normalized := make(domain.TypeSet, len(types))
	for t := range types {
		normalized[domain.NormalizeMemberType(t)] = struct{}{}
	}
	raw, err := json.Marshal(normalized.Slice())
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, s.ruleKey(id), raw); err != nil {
		s.Invalidate(id)
		return fmt.Errorf("store rule for field %d: %w", id, err)
	}
	return s.publish(ctx, func() {
		s.rules[id] = cachedRule{types: normalized, configured: true}
	})
}

// ClearRule removes the rule for id; the field becomes unconfigured.
func (s *RuleStore) ClearRule(ctx context.Context, id domain.FieldID) error {
	if id <= 0 {
		return ErrInvalidFieldID
	}
	if err := s.settings.Delete(ctx, s.ruleKey(id)); err != nil {
		s.Invalidate(id)
		return fmt.Errorf("clear rule for field %d: %w", id, err)
	}
	return s.publish(ctx, func() {
		s.rules[id] = cachedRule{configured: false}
	})
}

// GetRequiredTypes returns the rule for id. configured is false when no rule exists.
// The returned set is a copy.
func (s *RuleStore) GetRequiredTypes(ctx context.Context, id domain.FieldID) (types domain.TypeSet, configured bool, err error) {
	if id <= 0 {
		return nil, false, ErrInvalidFieldID
	}

	s.mu.RLock()
	c, ok := s.rules[id]
	s.mu.RUnlock()
	if ok {
		return c.types.Clone(), c.configured, nil
	}

	raw, err := s.settings.Get(ctx, s.ruleKey(id))
	switch {
	case errors.Is(err, settings.ErrNotFound):
		c = cachedRule{configured: false}
	case err != nil:
		return nil, false, fmt.Errorf("load rule for field %d: %w", id, err)
	default:
		var list []domain.MemberType
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, false, fmt.Errorf("decode rule for field %d: %w", id, err)
		}
		c = cachedRule{types: domain.NewTypeSet(list...), configured: true}
	}

	s.mu.Lock()
	s.rules[id] = c
	s.mu.Unlock()
	return c.types.Clone(), c.configured, nil
}

// SetTypeField designates id as the member-type field, or removes the designation when id is nil.
// Designating a field drops any rule stored for it: the type field is never gated.
func (s *RuleStore) SetTypeField(ctx context.Context, id *domain.FieldID) error {
	if id == nil {
		if err := s.settings.Delete(ctx, s.typeFieldKey()); err != nil {
			s.invalidateTypeField()
			return fmt.Errorf("clear type field: %w", err)
		}
		return s.publish(ctx, func() {
			s.typeField = &cachedTypeField{}
		})
	}

	if *id <= 0 {
		return ErrInvalidFieldID
	}
	raw, err := json.Marshal(int(*id))
	if err != nil {
		return err
	}
	if err := s.settings.Set(ctx, s.typeFieldKey(), raw); err != nil {
		s.invalidateTypeField()
		return fmt.Errorf("store type field: %w", err)
	}
	if err := s.publish(ctx, func() {
		s.typeField = &cachedTypeField{id: *id, ok: true}
	}); err != nil {
		return err
	}

	if err := s.ClearRule(ctx, *id); err != nil {
		return fmt.Errorf("field %d designated as type field, dropping its rule failed: %w", *id, err)
	}
	return nil
}

// TypeField returns the designated member-type field.
func (s *RuleStore) TypeField(ctx context.Context) (domain.FieldID, bool, error) {
	s.mu.RLock()
	c := s.typeField
	s.mu.RUnlock()
	if c != nil {
		return c.id, c.ok, nil
	}

	raw, err := s.settings.Get(ctx, s.typeFieldKey())
	next := cachedTypeField{}
	switch {
	case errors.Is(err, settings.ErrNotFound):
	case err != nil:
		return 0, false, fmt.Errorf("load type field: %w", err)
	default:
		var id int
		if err := json.Unmarshal(raw, &id); err != nil {
			return 0, false, fmt.Errorf("decode type field: %w", err)
		}
		if id > 0 {
			next = cachedTypeField{id: domain.FieldID(id), ok: true}
		}
	}

	s.mu.Lock()
	s.typeField = &next
	s.mu.Unlock()
	return next.id, next.ok, nil
}

// Refresh drops the mirror when the stored generation differs from the one it was built
// against, so writes made through other instances become visible.
func (s *RuleStore) Refresh(ctx context.Context) error {
	gen, err := s.loadGeneration(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synced && gen == s.generation {
		return nil
	}
	s.rules = make(map[domain.FieldID]cachedRule)
	s.typeField = nil
	s.generation = gen
	s.synced = true
	return nil
}

// publish runs after a successful write: it catches up with foreign writes, stores a fresh
// generation token and then applies the local mirror update. A write landing between the
// catch-up and the token write is picked up with the next foreign change (last write wins).
func (s *RuleStore) publish(ctx context.Context, apply func()) error {
	if err := s.Refresh(ctx); err != nil {
		s.InvalidateAll()
		return fmt.Errorf("publish rule change: %w", err)
	}
	gen := uuid.NewString()
	if err := s.settings.Set(ctx, s.generationKey(), []byte(gen)); err != nil {
		s.InvalidateAll()
		return fmt.Errorf("publish rule change: %w", err)
	}
	s.mu.Lock()
	apply()
	s.generation = gen
	s.mu.Unlock()
	return nil
}

func (s *RuleStore) loadGeneration(ctx context.Context) (string, error) {
	raw, err := s.settings.Get(ctx, s.generationKey())
	switch {
	case errors.Is(err, settings.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load rule generation: %w", err)
	}
	return string(raw), nil
}

// Invalidate drops the cached rule for id so the next read goes to the settings store.
func (s *RuleStore) Invalidate(id domain.FieldID) {
	s.mu.Lock()
	delete(s.rules, id)
	s.mu.Unlock()
}

// InvalidateAll drops every cached entry, including the type field designation.
func (s *RuleStore) InvalidateAll() {
	s.mu.Lock()
	s.rules = make(map[domain.FieldID]cachedRule)
	s.typeField = nil
	s.synced = false
	s.mu.Unlock()
}

func (s *RuleStore) invalidateTypeField() {
	s.mu.Lock()
	s.typeField = nil
	s.mu.Unlock()
}
