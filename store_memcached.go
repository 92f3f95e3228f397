package pagecache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goforj/pagecache/internal/binproto"
)

// logFunc lets drivers report per-server and per-key outcomes through the
// owning Backend.
type logFunc func(message any, level Level)

func (f logFunc) log(message any, level Level) {
	if f != nil {
		f(message, level)
	}
}

// memcachedStore speaks the binary memcached protocol. Values are stored
// uncompressed with zero flags so other readers (e.g. nginx) can serve them.
type memcachedStore struct {
	servers    []Server
	persistent bool
	poolSize   int
	timeout    time.Duration
	logf       logFunc

	mu   sync.RWMutex
	pool *serverPool
}

func newMemcachedStore(cfg Config, servers []Server, logf logFunc) *memcachedStore {
	return &memcachedStore{
		servers:    servers,
		persistent: cfg.Persistent,
		poolSize:   cfg.PoolSize,
		timeout:    cfg.DialTimeout,
		logf:       logf,
	}
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Init(_ context.Context) error {
	if len(s.servers) == 0 {
		return ErrNoServers
	}
	s.mu.Lock()
	if s.pool == nil || s.pool.isClosed() {
		if s.persistent {
			s.pool = sharedPool(persistentID+"-"+string(DriverMemcached), s.poolSize, s.timeout)
		} else {
			s.pool = newServerPool(s.poolSize, s.timeout)
		}
	}
	pool := s.pool
	s.mu.Unlock()
	for _, srv := range s.servers {
		if pool.add(srv) {
			s.logf.log(fmt.Sprintf("%s added, persistent mode: %t", srv.ID, s.persistent), LevelDebug)
		}
	}
	return nil
}

func (s *memcachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	srv, pool, err := s.route(key)
	if err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err = pool.do(ctx, srv, func(pc *poolConn) error {
		resp, err := s.roundTrip(pc, binproto.Request(binproto.OpGet, key, nil, nil))
		if err != nil {
			return err
		}
		switch resp.Status {
		case binproto.StatusOK:
			value, found = resp.Value, true
			if value == nil {
				value = []byte{}
			}
			return nil
		case binproto.StatusKeyNotFound:
			return nil
		default:
			return binaryResultError("get", key, srv.ID, resp)
		}
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *memcachedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	srv, pool, err := s.route(key)
	if err != nil {
		return err
	}
	extras := binproto.SetExtras(0, memcachedExpiry(ttl))
	return pool.do(ctx, srv, func(pc *poolConn) error {
		resp, err := s.roundTrip(pc, binproto.Request(binproto.OpSet, key, extras, value))
		if err != nil {
			return err
		}
		if resp.Status != binproto.StatusOK {
			return binaryResultError("set", key, srv.ID, resp)
		}
		return nil
	})
}

func (s *memcachedStore) DeleteMany(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *memcachedStore) delete(ctx context.Context, key string) error {
	srv, pool, err := s.route(key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return pool.do(ctx, srv, func(pc *poolConn) error {
		resp, err := s.roundTrip(pc, binproto.Request(binproto.OpDelete, key, nil, nil))
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		switch resp.Status {
		case binproto.StatusOK, binproto.StatusKeyNotFound:
			return nil
		default:
			return binaryResultError("delete", key, srv.ID, resp)
		}
	})
}

// Flush empties every server attached to the handle.
func (s *memcachedStore) Flush(ctx context.Context) error {
	pool := s.handle()
	if pool == nil {
		return ErrClientUnavailable
	}
	var errs []error
	for _, srv := range pool.list() {
		err := pool.do(ctx, srv, func(pc *poolConn) error {
			resp, err := s.roundTrip(pc, binproto.Request(binproto.OpFlush, "", nil, nil))
			if err != nil {
				return err
			}
			if resp.Status != binproto.StatusOK {
				return binaryResultError("flush", "", srv.ID, resp)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", srv.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Status asks every server for its stats. A server is up when it reports a
// non-zero uptime; anything else, including unreachable servers, is down.
func (s *memcachedStore) Status(ctx context.Context) (map[string]ServerStatus, error) {
	pool := s.handle()
	if pool == nil {
		return nil, ErrClientUnavailable
	}
	s.logf.log("checking server statuses", LevelDebug)
	out := make(map[string]ServerStatus)
	for _, srv := range pool.list() {
		out[srv.ID] = StatusDown
		stats, err := s.stats(ctx, pool, srv)
		if err != nil {
			s.logf.log(fmt.Sprintf("%s stats failed: %v", srv.ID, err), LevelDebug)
			continue
		}
		if up := stats["uptime"]; up != "" && up != "0" {
			s.logf.log(srv.ID+" server is up & running", LevelDebug)
			out[srv.ID] = StatusUp
		}
	}
	return out, nil
}

func (s *memcachedStore) stats(ctx context.Context, pool *serverPool, srv Server) (map[string]string, error) {
	stats := make(map[string]string)
	err := pool.do(ctx, srv, func(pc *poolConn) error {
		if err := binproto.Write(pc.conn, binproto.Request(binproto.OpStat, "", nil, nil)); err != nil {
			return err
		}
		for {
			resp, err := binproto.Read(pc.reader)
			if err != nil {
				return err
			}
			if resp.Status != binproto.StatusOK {
				return binaryResultError("stat", "", srv.ID, resp)
			}
			if len(resp.Key) == 0 {
				return nil
			}
			stats[string(resp.Key)] = string(resp.Value)
		}
	})
	return stats, err
}

func (s *memcachedStore) Close() error {
	pool := s.handle()
	if pool == nil || s.persistent {
		return nil
	}
	return pool.close()
}

// handle returns the current connection handle. Init may swap it.
func (s *memcachedStore) handle() *serverPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool
}

func (s *memcachedStore) route(key string) (Server, *serverPool, error) {
	if len(key) == 0 || len(key) > binproto.MaxKeyLen {
		return Server{}, nil, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	pool := s.handle()
	if pool == nil {
		return Server{}, nil, ErrClientUnavailable
	}
	srv, err := pool.pick(key)
	return srv, pool, err
}

func (s *memcachedStore) roundTrip(pc *poolConn, req binproto.Packet) (binproto.Packet, error) {
	if err := binproto.Write(pc.conn, req); err != nil {
		return binproto.Packet{}, err
	}
	resp, err := binproto.Read(pc.reader)
	if err != nil {
		return binproto.Packet{}, err
	}
	if resp.Magic != binproto.MagicResponse || resp.Opcode != req.Opcode {
		return binproto.Packet{}, fmt.Errorf("unexpected response opcode 0x%02x", byte(resp.Opcode))
	}
	return resp, nil
}

func binaryResultError(op, key, server string, resp binproto.Packet) error {
	msg := string(resp.Value)
	if msg == "" {
		msg = resp.Status.String()
	}
	return &ResultError{Op: op, Key: key, Server: server, Code: uint16(resp.Status), Message: msg}
}
