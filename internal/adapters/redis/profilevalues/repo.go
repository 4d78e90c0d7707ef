package profilevalues

import (
	"context"
	"errors"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

// Repo is a Redis implementation of profilefields.ValueRepository. Each user's values live in
// one hash at namespace+"profile:"+user, keyed by field id.
type Repo struct {
	client    goredis.UniversalClient
	namespace string
}

func NewRepo(client goredis.UniversalClient, namespace string) *Repo {
	return &Repo{client: client, namespace: namespace}
}

func (r *Repo) userKey(user profilefields.UserID) string {
	return r.namespace + "profile:" + string(user)
}

func (r *Repo) FieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID) (string, bool, error) {
	if r.client == nil {
		return "", false, errors.New("nil redis client")
	}
	v, err := r.client.HGet(ctx, r.userKey(user), strconv.Itoa(int(field))).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (r *Repo) SetFieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID, value string) error {
	if r.client == nil {
		return errors.New("nil redis client")
	}
	f := strconv.Itoa(int(field))
	if value == "" {
		return r.client.HDel(ctx, r.userKey(user), f).Err()
	}
	return r.client.HSet(ctx, r.userKey(user), f, value).Err()
}
