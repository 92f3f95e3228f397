package pagecache

import (
	"context"
	"time"
)

// nullStore backs a Backend with caching switched off: writes succeed and
// every read misses.
type nullStore struct{}

func newNullStore() Store { return &nullStore{} }

func (s *nullStore) Driver() Driver { return DriverNull }

func (s *nullStore) Init(context.Context) error { return nil }

func (s *nullStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (s *nullStore) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (s *nullStore) DeleteMany(context.Context, ...string) error { return nil }

func (s *nullStore) Flush(context.Context) error { return nil }

func (s *nullStore) Status(context.Context) (map[string]ServerStatus, error) {
	return map[string]ServerStatus{}, nil
}

func (s *nullStore) Close() error { return nil }
