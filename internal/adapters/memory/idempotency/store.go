package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/clock"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store with time-bounded retention.
// It is safe for concurrent use.
type Store struct {
	clock clock.Clock
	ttl   time.Duration

	mu sync.RWMutex
	m  map[idempotency.Fingerprint]idempotency.Record
}

// NewStore returns a store that forgets records older than ttl. A zero ttl keeps them forever.
func NewStore(c clock.Clock, ttl time.Duration) *Store {
	return &Store{
		clock: c,
		ttl:   ttl,
		m:     make(map[idempotency.Fingerprint]idempotency.Record),
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	rec, ok := s.m[fp]
	s.mu.RUnlock()
	if !ok || s.expired(rec) {
		return idempotency.Record{}, false, nil
	}
	rec.Body = append([]byte(nil), rec.Body...)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now()
	}
	rec.Body = append([]byte(nil), rec.Body...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[fp] = rec
	return nil
}

// Prune drops expired records and reports how many were removed.
func (s *Store) Prune(ctx context.Context) (int64, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for fp, rec := range s.m {
		if s.expired(rec) {
			delete(s.m, fp)
			n++
		}
	}
	return n, nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	return s.ttl > 0 && s.now().Sub(rec.CreatedAt) > s.ttl
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
