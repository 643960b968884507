package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/pestofarm/storefront/pkg/errors"
)

// Mirror keys, one snapshot per user
func CartKey(email string) string    { return "cart_" + normalizeEmail(email) }
func OrdersKey(email string) string  { return "orders_" + normalizeEmail(email) }
func ProfileKey(email string) string { return "profile_" + normalizeEmail(email) }

func ChatKey(email string, chatID int64) string {
	return fmt.Sprintf("chat_%s_%d", normalizeEmail(email), chatID)
}

func IdempotencyKey(key string) string { return "idem_" + key }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ReadJSON loads a snapshot into out. found is false when the key is missing.
func ReadJSON(ctx context.Context, store SnapshotStore, key string, out any) (found bool, err error) {
	raw, err := store.Read(ctx, key)
	if err != nil {
		if _, ok := err.(*apperrors.ErrNotFound); ok {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return true, nil
}

// WriteJSON stores v as a snapshot
func WriteJSON(ctx context.Context, store SnapshotStore, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	return store.Write(ctx, key, raw)
}
