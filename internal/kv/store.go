// Package kv defines the narrow key-value persistence collaborator the
// participant directory and lifecycle gate are built on, with memory, Redis,
// Badger and Postgres implementations.
//
// Implementations make each Set/Remove durable before returning. No
// multi-key transactional semantics are offered; callers serialize their own
// read-modify-write sequences.
package kv

import "context"

// Store is the key-value persistence contract.
//
// Get returns sentinel.ErrNotFound (possibly wrapped) when key is absent.
// Remove of an absent key is not an error. ListKeys returns every key that
// starts with prefix, sorted ascending.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
