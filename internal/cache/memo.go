// Package cache memoizes pure computations behind a bounded LRU.
package cache

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

type Memo[V any] struct {
	entries *lru.Cache[string, V]
	flight  singleflight.Group
}

func New[V any](size int) (*Memo[V], error) {
	entries, err := lru.New[string, V](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Memo[V]{entries: entries}, nil
}

func (m *Memo[V]) Get(key string) (V, bool) {
	return m.entries.Get(key)
}

func (m *Memo[V]) Len() int {
	return m.entries.Len()
}

// Do returns the cached value for key or computes it with fn. The bool is false only for the
// caller whose fn produced the value. Errors are not cached.
//
// fn runs under the context of the caller that started it. A waiter that joined a computation
// ending in a context error retries once with its own context if that context is still live.
func (m *Memo[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	v, hit, err := m.do(ctx, key, fn)
	if err != nil && hit && isContextErr(err) && ctx.Err() == nil {
		v, hit, err = m.do(ctx, key, fn)
	}
	return v, hit, err
}

// do reports hit=true whenever this caller did not run fn itself, including on error.
func (m *Memo[V]) do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	var zero V
	if v, ok := m.entries.Get(key); ok {
		return v, true, nil
	}

	ran := false
	ch := m.flight.DoChan(key, func() (any, error) {
		if v, ok := m.entries.Get(key); ok {
			return v, nil
		}
		ran = true
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		m.entries.Add(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, !ran, res.Err
		}
		return res.Val.(V), !ran, nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
