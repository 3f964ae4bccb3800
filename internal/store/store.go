package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("store: key not found")

// KV is the document store behind the request repository. Values are opaque bytes.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Del returns the number of removed keys.
	Del(ctx context.Context, key string) (int64, error)
	Keys(ctx context.Context, prefix string) ([]string, error)
	// CompareAndSwap writes next only if the stored value still equals prev.
	// A nil prev means the key must not exist yet.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error)
	// DeleteIf removes key only if the stored value still equals prev.
	DeleteIf(ctx context.Context, key string, prev []byte) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}
