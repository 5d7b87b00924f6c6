// Package cache holds the key-value backends used for short-lived read
// models such as the home feed.
package cache

import (
	"context"
	"time"
)

// Entry is a cached value and the moment it stops being served.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether e is past its expiry at now. A zero ExpiresAt
// never expires.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Cache is a byte cache with per-key TTL. A miss is (Entry{}, false, nil);
// errors are reserved for an unreachable or failing backend.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
