package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/pagecache"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpInit       Op = "init"
	OpGet        Op = "get"
	OpSet        Op = "set"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
	OpFlush      Op = "flush"
	OpStatus     Op = "status"
)

// Fake exposes a deterministic in-memory store plus assertion helpers for tests.
// It wraps the memory store so no external services are needed.
type Fake struct {
	store  *countingStore
	counts map[Op]map[string]int
	mu     sync.Mutex
}

// New creates a Fake using an in-memory store.
func New() *Fake {
	f := &Fake{counts: make(map[Op]map[string]int)}
	f.store = &countingStore{inner: pagecache.NewMemoryStore(), onCount: f.record}
	return f
}

// Store returns the counting store.
func (f *Fake) Store() pagecache.Store { return f.store }

// Backend builds a Backend over the fake store. cfg.Driver is ignored.
func (f *Fake) Backend(ctx context.Context, cfg pagecache.Config, opts ...pagecache.Option) *pagecache.Backend {
	opts = append(opts, pagecache.WithStore(f.store))
	return pagecache.New(ctx, cfg, opts...)
}

// FailInit makes every following Init return err. A nil err restores success.
func (f *Fake) FailInit(err error) {
	f.store.mu.Lock()
	f.store.initErr = err
	f.store.mu.Unlock()
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t *testing.T, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t *testing.T, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t *testing.T, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		return 0
	}
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner   pagecache.Store
	onCount func(Op, string)

	mu      sync.Mutex
	initErr error
}

func (s *countingStore) Driver() pagecache.Driver { return s.inner.Driver() }

func (s *countingStore) Init(ctx context.Context) error {
	s.bump(OpInit, "")
	s.mu.Lock()
	err := s.initErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.inner.Init(ctx)
}

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.bump(OpGet, key)
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.bump(OpSet, key)
	return s.inner.Set(ctx, key, value, ttl)
}

func (s *countingStore) DeleteMany(ctx context.Context, keys ...string) error {
	s.bump(OpDeleteMany, "")
	for _, key := range keys {
		s.bump(OpDelete, key)
	}
	return s.inner.DeleteMany(ctx, keys...)
}

func (s *countingStore) Flush(ctx context.Context) error {
	s.bump(OpFlush, "")
	return s.inner.Flush(ctx)
}

func (s *countingStore) Status(ctx context.Context) (map[string]pagecache.ServerStatus, error) {
	s.bump(OpStatus, "")
	return s.inner.Status(ctx)
}

func (s *countingStore) Close() error { return s.inner.Close() }

func (s *countingStore) bump(op Op, key string) {
	if s.onCount != nil {
		s.onCount(op, key)
	}
}
