package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/idempotency"
)

// Store is a Redis implementation of idempotency.Store. Retention is delegated to key expiry.
type Store struct {
	client    goredis.UniversalClient
	namespace string
	ttl       time.Duration
}

type record struct {
	StatusCode  int       `json:"status"`
	ContentType string    `json:"contentType"`
	Body        []byte    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewStore returns a store whose records expire after ttl. A zero ttl keeps them forever.
func NewStore(client goredis.UniversalClient, namespace string, ttl time.Duration) *Store {
	return &Store{client: client, namespace: namespace, ttl: ttl}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	if s.client == nil {
		return idempotency.Record{}, false, errors.New("nil redis client")
	}
	b, err := s.client.Get(ctx, s.key(fp)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return idempotency.Record{}, false, nil
		}
		return idempotency.Record{}, false, err
	}
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return idempotency.Record{}, false, err
	}
	return idempotency.Record{
		StatusCode:  r.StatusCode,
		ContentType: r.ContentType,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt.UTC(),
	}, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	b, err := json.Marshal(record{
		StatusCode:  rec.StatusCode,
		ContentType: rec.ContentType,
		Body:        rec.Body,
		CreatedAt:   createdAt,
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(fp), b, s.ttl).Err()
}

// key hashes the fingerprint so caller-supplied idempotency keys never shape the Redis key space.
func (s *Store) key(fp idempotency.Fingerprint) string {
	h := sha256.Sum256([]byte(strings.Join([]string{
		string(fp.Key), fp.Subject, fp.Method, fp.Route, fp.BodyHash,
	}, "\x00")))
	return s.namespace + "idem:" + hex.EncodeToString(h[:])
}
