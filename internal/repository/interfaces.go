package repository

import (
	"context"
)

// SnapshotStore persists JSON snapshots of per-user state (cart, orders,
// profile, chat history). Read returns *errors.ErrNotFound for a missing key.
type SnapshotStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// KeyLister is implemented by stores that can enumerate keys (used by tooling)
type KeyLister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
