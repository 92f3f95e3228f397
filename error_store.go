package pagecache

import (
	"context"
	"time"
)

// errorStore is used when a driver cannot be constructed; it preserves the
// driver identity while surfacing the construction error on every call.
type errorStore struct {
	driver Driver
	err    error
}

func (e *errorStore) Driver() Driver                                    { return e.driver }
func (e *errorStore) Init(context.Context) error                         { return e.err }
func (e *errorStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, e.err }
func (e *errorStore) Set(context.Context, string, []byte, time.Duration) error {
	return e.err
}
func (e *errorStore) DeleteMany(context.Context, ...string) error { return e.err }
func (e *errorStore) Flush(context.Context) error                 { return e.err }
func (e *errorStore) Status(context.Context) (map[string]ServerStatus, error) {
	return nil, e.err
}
func (e *errorStore) Close() error { return nil }
