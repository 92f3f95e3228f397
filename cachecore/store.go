package cachecore

import (
	"context"
	"time"
)

// Store is the shared backend contract. One implementation exists per
// driver; the facade selects it once at construction.
type Store interface {
	Driver() Driver
	// Init checks the backend is usable and attaches configured servers.
	// A nil error means operations may be attempted.
	Init(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteMany removes keys one by one. Failures are joined, a missing
	// key is not a failure.
	DeleteMany(ctx context.Context, keys ...string) error
	Flush(ctx context.Context) error
	// Status probes every server and reports its health keyed by Server.ID.
	Status(ctx context.Context) (map[string]ServerStatus, error)
	Close() error
}
