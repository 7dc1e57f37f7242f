// Package localstore is a small JSON key-value blob store, the stand-in
// for browser local storage. Consumers treat a missing or unreadable
// value as absence and fall back to defaults; corruption is never an
// error surfaced to the user.
package localstore

import "context"

// Store persists JSON blobs by key.
type Store interface {
	// Get unmarshals the value for key into dest. It returns false when
	// the key is absent or the stored value cannot be decoded.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value any) error
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error
}
