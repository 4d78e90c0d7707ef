package profilevalues

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Overland-East-Bay/member-type-fields/internal/domain"
	"github.com/Overland-East-Bay/member-type-fields/internal/ports/out/profilefields"
)

// Repo is a Postgres implementation of profilefields.ValueRepository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

// Value is one stored (user, field) value, used for bulk seeding.
type Value struct {
	User  profilefields.UserID
	Field domain.FieldID
	Value string
}

func (r *Repo) FieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID) (string, bool, error) {
	if r.pool == nil {
		return "", false, errors.New("nil postgres pool")
	}
	var v string
	err := r.pool.QueryRow(ctx, `
		SELECT value
		FROM profile_values
		WHERE user_id = $1
		  AND field_id = $2
	`, string(user), int(field)).Scan(&v)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (r *Repo) SetFieldValue(ctx context.Context, user profilefields.UserID, field domain.FieldID, value string) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	_, err := r.pool.Exec(ctx, setSQL(value), setArgs(user, field, value)...)
	return err
}

// Seed writes every value in one transaction using a single batch round-trip.
func (r *Repo) Seed(ctx context.Context, values []Value) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	if len(values) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, v := range values {
			b.Queue(setSQL(v.Value), setArgs(v.User, v.Field, v.Value)...)
		}
		return tx.SendBatch(ctx, b).Close()
	})
}

func setSQL(value string) string {
	if value == "" {
		return `DELETE FROM profile_values WHERE user_id = $1 AND field_id = $2`
	}
	return `
		INSERT INTO profile_values (user_id, field_id, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, field_id)
		DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at
	`
}

func setArgs(user profilefields.UserID, field domain.FieldID, value string) []any {
	if value == "" {
		return []any{string(user), int(field)}
	}
	return []any{string(user), int(field), value}
}
