// Package cache coordinates reuse of materialized outputs across calls.
//
// A Store keeps values by key; a Coordinator layers single-flight on top so
// concurrent requests for the same key share one materialization.
package cache

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Store is a key/value store for materialized outputs.
type Store[V any] interface {
	// Get returns the value and true on a hit.
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, v V) error
}

// Nop never stores anything.
type Nop[V any] struct{}

func (Nop[V]) Get(context.Context, string) (V, bool, error) {
	var zero V
	return zero, false, nil
}

func (Nop[V]) Set(context.Context, string, V) error { return nil }

// Coordinator wraps a Store with at-most-one in-flight computation per key.
type Coordinator[V any] struct {
	store  Store[V]
	group  singleflight.Group
	admit  func(V) bool
	logger *slog.Logger
}

// Option configures a Coordinator.
type Option[V any] func(*Coordinator[V])

// WithAdmit sets a predicate deciding whether a computed value is stored.
func WithAdmit[V any](admit func(V) bool) Option[V] {
	return func(c *Coordinator[V]) { c.admit = admit }
}

// WithLogger sets the logger used for store failures.
func WithLogger[V any](l *slog.Logger) Option[V] {
	return func(c *Coordinator[V]) { c.logger = l }
}

// NewCoordinator returns a Coordinator over store (Nop when nil).
func NewCoordinator[V any](store Store[V], opts ...Option[V]) *Coordinator[V] {
	if store == nil {
		store = Nop[V]{}
	}
	c := &Coordinator[V]{store: store, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Do returns the cached value for key, or computes it with fn. Concurrent
// callers with the same key wait for a single fn invocation. The boolean
// reports a store hit. Store failures degrade to a miss and are logged.
func (c *Coordinator[V]) Do(ctx context.Context, key string, fn func(context.Context) (V, error)) (V, bool, error) {
	var zero V

	if v, ok := c.lookup(ctx, key); ok {
		return v, true, nil
	}

	// The flight outlives any single waiter, so it does not inherit the
	// first caller's cancellation. Each waiter honours its own ctx below.
	fctx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		// A caller that finished just before we joined may have stored it.
		if v, ok := c.lookup(fctx, key); ok {
			return hit[V]{v}, nil
		}
		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		if c.admit == nil || c.admit(v) {
			if err := c.store.Set(fctx, key, v); err != nil {
				c.logger.Warn("cache store failed", "key", key, "error", err)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		switch v := res.Val.(type) {
		case hit[V]:
			return v.v, true, nil
		case V:
			return v, false, nil
		default:
			return zero, false, fmt.Errorf("cache: unexpected value %T for %s", res.Val, key)
		}
	}
}

type hit[V any] struct{ v V }

func (c *Coordinator[V]) lookup(ctx context.Context, key string) (V, bool) {
	v, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", "key", key, "error", err)
		return v, false
	}
	return v, ok
}
