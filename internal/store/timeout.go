package store

import (
	"context"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal"
)

// WithTimeout bounds every call on kv to d.
func WithTimeout(kv KV, d time.Duration) KV {
	return &timeoutKV{next: kv, timeout: d}
}

type timeoutKV struct {
	next    KV
	timeout time.Duration
}

func (t *timeoutKV) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Get(ctx, key)
}

func (t *timeoutKV) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Set(ctx, key, value)
}

func (t *timeoutKV) Del(ctx context.Context, key string) (int64, error) {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Del(ctx, key)
}

func (t *timeoutKV) Keys(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Keys(ctx, prefix)
}

func (t *timeoutKV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.CompareAndSwap(ctx, key, prev, next)
}

func (t *timeoutKV) DeleteIf(ctx context.Context, key string, prev []byte) (bool, error) {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DeleteIf(ctx, key, prev)
}

func (t *timeoutKV) Ping(ctx context.Context) error {
	ctx, cancel := internal.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Ping(ctx)
}

func (t *timeoutKV) Close() error {
	return t.next.Close()
}
