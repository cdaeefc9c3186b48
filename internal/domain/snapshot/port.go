package snapshot

import (
	"context"
	"errors"
)

// ErrEmpty is returned by Store.Get when nothing is stored under the key.
var ErrEmpty = errors.New("nothing stored")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
