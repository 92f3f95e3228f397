package pagecache

import (
	"bytes"
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	memoryCleanupInterval = 10 * time.Minute
	memorySelfTestKey     = "pagecache:selftest"
	memoryStatusID        = "memory"
)

var memorySelfTestSeq atomic.Uint64

var sharedMemory struct {
	sync.Mutex
	cache *gocache.Cache
}

func sharedMemoryCache() *gocache.Cache {
	sharedMemory.Lock()
	defer sharedMemory.Unlock()
	if sharedMemory.cache == nil {
		sharedMemory.cache = gocache.New(gocache.NoExpiration, memoryCleanupInterval)
	}
	return sharedMemory.cache
}

func resetSharedMemoryCache() {
	sharedMemory.Lock()
	sharedMemory.cache = nil
	sharedMemory.Unlock()
}

// memoryStore keeps entries in process memory. With Persistent every
// Backend of the process shares one store.
type memoryStore struct {
	persistent bool
	cache      *gocache.Cache
}

func newMemoryStore(cfg Config) *memoryStore {
	return &memoryStore{persistent: cfg.Persistent}
}

func (s *memoryStore) Driver() Driver { return DriverMemory }

// Init creates the store and checks a value survives a round trip.
func (s *memoryStore) Init(_ context.Context) error {
	if s.cache == nil {
		if s.persistent {
			s.cache = sharedMemoryCache()
		} else {
			s.cache = gocache.New(gocache.NoExpiration, memoryCleanupInterval)
		}
	}
	// Persistent stores share the keyspace; each init tests its own key.
	key := memorySelfTestKey + ":" + strconv.FormatUint(memorySelfTestSeq.Add(1), 10)
	probe := []byte("ok")
	s.cache.Set(key, probe, time.Second)
	item, ok := s.cache.Get(key)
	s.cache.Delete(key)
	if body, _ := item.([]byte); !ok || !bytes.Equal(body, probe) {
		return ErrStoreUnavailable
	}
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.cache == nil {
		return nil, false, ErrClientUnavailable
	}
	item, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	body, ok := item.([]byte)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(body), true, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.cache == nil {
		return ErrClientUnavailable
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(key, cloneBytes(value), ttl)
	return nil
}

func (s *memoryStore) DeleteMany(_ context.Context, keys ...string) error {
	if s.cache == nil {
		return ErrClientUnavailable
	}
	for _, key := range keys {
		s.cache.Delete(key)
	}
	return nil
}

func (s *memoryStore) Flush(_ context.Context) error {
	if s.cache == nil {
		return ErrClientUnavailable
	}
	s.cache.Flush()
	return nil
}

// Status reports the single in-process store, which is up once initialized.
func (s *memoryStore) Status(_ context.Context) (map[string]ServerStatus, error) {
	if s.cache == nil {
		return map[string]ServerStatus{memoryStatusID: StatusDown}, nil
	}
	return map[string]ServerStatus{memoryStatusID: StatusUp}, nil
}

func (s *memoryStore) Close() error { return nil }

func cloneBytes(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
