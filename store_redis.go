package pagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goforj/pagecache/internal/ring"
	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	FlushDB(ctx context.Context) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisClientFactory builds the client for one configured server.
type RedisClientFactory func(s Server) RedisClient

func defaultRedisClientFactory(dialTimeout time.Duration) RedisClientFactory {
	return func(s Server) RedisClient {
		return redis.NewClient(&redis.Options{Addr: s.Addr(), DialTimeout: dialTimeout})
	}
}

// redisStore spreads keys over one client per server.
type redisStore struct {
	servers []Server
	factory RedisClientFactory
	logf    logFunc

	mu      sync.RWMutex
	clients map[string]RedisClient
	order   []string
	ring    *ring.Ring
}

func newRedisStore(servers []Server, factory RedisClientFactory, logf logFunc) *redisStore {
	return &redisStore{
		servers: servers,
		factory: factory,
		logf:    logf,
		clients: make(map[string]RedisClient),
		ring:    ring.New(0),
	}
}

func (s *redisStore) Driver() Driver { return DriverRedis }

func (s *redisStore) Init(_ context.Context) error {
	if len(s.servers) == 0 {
		return ErrNoServers
	}
	if s.factory == nil {
		return ErrClientUnavailable
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, srv := range s.servers {
		if _, ok := s.clients[srv.ID]; ok {
			continue
		}
		client := s.factory(srv)
		if client == nil {
			return fmt.Errorf("%w: %s", ErrClientUnavailable, srv.ID)
		}
		s.clients[srv.ID] = client
		s.order = append(s.order, srv.ID)
		s.ring.Add(srv.ID)
		s.logf.log(srv.ID+" added", LevelDebug)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	client, err := s.client(key)
	if err != nil {
		return nil, false, err
	}
	value, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	client, err := s.client(key)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	return client.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) DeleteMany(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		client, err := s.client(key)
		if err == nil {
			err = client.Del(ctx, key).Err()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *redisStore) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return ErrClientUnavailable
	}
	var errs []error
	for _, id := range s.order {
		if err := s.clients[id].FlushDB(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Status pings every server.
func (s *redisStore) Status(ctx context.Context) (map[string]ServerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.clients) == 0 {
		return nil, ErrClientUnavailable
	}
	out := make(map[string]ServerStatus, len(s.clients))
	for _, id := range s.order {
		if err := s.clients[id].Ping(ctx).Err(); err != nil {
			s.logf.log(id+" server is down: "+err.Error(), LevelDebug)
			out[id] = StatusDown
			continue
		}
		out[id] = StatusUp
	}
	return out, nil
}

func (s *redisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, id := range s.order {
		if err := s.clients[id].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.clients = make(map[string]RedisClient)
	s.order = nil
	s.ring = ring.New(0)
	return errors.Join(errs...)
}

func (s *redisStore) client(key string) (RedisClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[s.ring.Get(key)]
	if !ok {
		return nil, ErrServerNotAvailable
	}
	return client, nil
}
