package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMemoryEntries = 512

// Memory is an in-process LRU store.
type Memory[V any] struct {
	lru *lru.Cache[string, V]
}

// NewMemory returns a Memory store holding at most size entries
// (defaultMemoryEntries when size <= 0).
func NewMemory[V any](size int) (*Memory[V], error) {
	if size <= 0 {
		size = defaultMemoryEntries
	}
	c, err := lru.New[string, V](size)
	if err != nil {
		return nil, err
	}
	return &Memory[V]{lru: c}, nil
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, v V) error {
	m.lru.Add(key, v)
	return nil
}

// Len returns the number of entries.
func (m *Memory[V]) Len() int { return m.lru.Len() }
