package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/pingboard/internal/domain/snapshot"
)

var _ snapshot.Store = (*KVStore)(nil)

// KVStore keeps snapshot blobs in the kv table.
type KVStore struct {
	db *DB
}

func NewKVStore(db *DB) *KVStore { return &KVStore{db: db} }

const (
	qGet = `SELECT value FROM kv WHERE key = $1;`

	qUpsert = `
INSERT INTO kv (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = NOW();
`

	qDelete = `DELETE FROM kv WHERE key = $1;`
)

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	var value []byte
	if err := s.db.Pool.QueryRow(ctx, qGet, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrEmpty
		}
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Pool.Exec(ctx, qUpsert, key, value); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.db.withTimeout(ctx)
	defer cancel()

	if _, err := s.db.Pool.Exec(ctx, qDelete, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Close() error {
	s.db.Close()
	return nil
}
