package kv

import (
	"context"
	"errors"
)

// Store is the durable key-value location carts are persisted to.
// Implementations must return ErrNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("key not found")
