package mocks

import (
	"context"

	"slotbook/shared/cache"
)

// noopCache always misses and drops writes. Service tests use it so cache
// invalidation goroutines never touch a gomock controller after the test ends.
type noopCache struct{}

func NewNoopCache() cache.RedisCache {
	return &noopCache{}
}

func (n *noopCache) Save(_ context.Context, _ string, _ any, _ int) error {
	return nil
}

func (n *noopCache) Get(_ context.Context, _ string, _ any) error {
	return cache.Nil
}

func (n *noopCache) Delete(_ context.Context, _ string) error {
	return nil
}

func (n *noopCache) Clear(_ context.Context, _ string) error {
	return nil
}
