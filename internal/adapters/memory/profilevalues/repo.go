package profilevalues

import (
	"context"
	"sync"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

type valueKey struct {
	user  profilefields.UserID
	field domain.FieldID
}

// Repo is an in-memory implementation of profilefields.ValueRepository.
// It is safe for concurrent use.
type Repo struct {
	mu     sync.RWMutex
	values map[valueKey]string
}

func NewRepo() *Repo {
	return &Repo{values: make(map[valueKey]string)}
}

func (r *Repo) FieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID) (string, bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[valueKey{user: user, field: field}]
	return v, ok, nil
}

// SetFieldValue stores value for (user, field). An empty value removes it.
func (r *Repo) SetFieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID, value string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	k := valueKey{user: user, field: field}
	if value == "" {
		delete(r.values, k)
		return nil
	}
	r.values[k] = value
	return nil
}
