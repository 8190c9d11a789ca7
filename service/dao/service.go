package dao

import (
	"context"
)

// Service abstracts keyed persistence for saga state. Save is a whole-record
// upsert guarded by optimistic concurrency: implementations compare the
// stored revision against the revision carried by the entity and fail with
// ErrConflict when another writer got there first, forcing the caller to
// reload and retry.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
