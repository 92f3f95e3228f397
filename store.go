package pagecache

import "fmt"

// newStore builds the driver selected by cfg. Unknown drivers yield a store
// whose Init reports ErrUnsupportedDriver.
func newStore(cfg Config, servers []Server, redisFactory RedisClientFactory, logf logFunc) Store {
	switch cfg.Driver {
	case DriverMemory:
		return newMemoryStore(cfg)
	case DriverMemcached:
		return newMemcachedStore(cfg, servers, logf)
	case DriverMemcache:
		return newMemcacheStore(cfg, servers, logf)
	case DriverRedis:
		if redisFactory == nil {
			redisFactory = defaultRedisClientFactory(cfg.DialTimeout)
		}
		return newRedisStore(servers, redisFactory, logf)
	case DriverNull:
		return newNullStore()
	default:
		return &errorStore{driver: cfg.Driver, err: fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)}
	}
}

// NewMemoryStore returns an in-process store for use with WithStore, e.g. to
// wrap it in a test double. It must be initialized before use; Backend does
// that.
func NewMemoryStore() Store {
	return newMemoryStore(Config{})
}

// NewNullStore returns a store that never caches.
func NewNullStore() Store {
	return newNullStore()
}
