package settings

import (
	"context"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/settings"
)

// Store is a Redis implementation of settings.Store. Values are stored as plain strings
// under namespace+key with no expiry.
type Store struct {
	client    goredis.UniversalClient
	namespace string
}

func NewStore(client goredis.UniversalClient, namespace string) *Store {
	return &Store{client: client, namespace: namespace}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if s.client == nil {
		return nil, errors.New("nil redis client")
	}
	b, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, settings.ErrNotFound
		}
		return nil, err
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	return s.client.Set(ctx, s.namespace+key, value, 0).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return errors.New("nil redis client")
	}
	return s.client.Del(ctx, s.namespace+key).Err()
}
