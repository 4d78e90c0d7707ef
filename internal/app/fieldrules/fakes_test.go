package fieldrules

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"
	"strings"
	"sync"

	memsettings "github.com/Overland-East-Bay/member-type-fields/internal/adapters/memory/settings"
	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/membertypes"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

var errBoom = errors.New("boom")

// countingStore wraps the memory store and counts reads so tests can observe the cache.
type countingStore struct {
	*memsettings.Store

	mu      sync.Mutex
	gets    int
	written map[string]struct{}
	failGet bool
	failSet bool
}

func newCountingStore() *countingStore {
	return &countingStore{Store: memsettings.NewStore(), written: make(map[string]struct{})}
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	s.gets++
	fail := s.failGet
	s.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return s.Store.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	fail := s.failSet
	if !fail {
		s.written[key] = struct{}{}
	}
	s.mu.Unlock()
	if fail {
		return errBoom
	}
	return s.Store.Set(ctx, key, value)
}

// writtenKeys lists, sorted, every key with prefix that was successfully Set.
func (s *countingStore) writtenKeys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.written {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (s *countingStore) reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

type failingDeleteStore struct {
	*countingStore
}

func (s *failingDeleteStore) Delete(context.Context, string) error { return errBoom }

type staticTypes struct {
	types []membertypes.MemberType
	err   error
}

func (c staticTypes) ListMemberTypes(context.Context) ([]membertypes.MemberType, error) {
	return c.types, c.err
}

type staticFields struct {
	fields []profilefields.Field
	err    error
}

func (c staticFields) ListFields(context.Context) ([]profilefields.Field, error) {
	return c.fields, c.err
}

type staticValues map[profilefields.UserID]map[domain.FieldID]string

func (v staticValues) FieldValue(_ context.Context, user profilefields.UserID, field domain.FieldID) (string, bool, error) {
	val, ok := v[user][field]
	return val, ok, nil
}

type langTranslator struct{}

func (langTranslator) Translate(lang, key string) string { return lang + ":" + key }

type stripAngles struct{}

func (stripAngles) Sanitize(s string) string {
	out := make([]rune, 0, len(s))
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out = append(out, r)
		}
	}
	return string(out)
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func fieldPtr(id domain.FieldID) *domain.FieldID { return &id }
