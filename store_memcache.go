package pagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// memcacheStore speaks the memcached text protocol. Every configured server
// is connected explicitly at init and its connect result is its status.
type memcacheStore struct {
	servers    []Server
	persistent bool
	poolSize   int
	timeout    time.Duration
	logf       logFunc

	poolMu sync.RWMutex
	pool   *serverPool

	mu     sync.Mutex
	status map[string]ServerStatus
}

func newMemcacheStore(cfg Config, servers []Server, logf logFunc) *memcacheStore {
	return &memcacheStore{
		servers:    servers,
		persistent: cfg.Persistent,
		poolSize:   cfg.PoolSize,
		timeout:    cfg.DialTimeout,
		logf:       logf,
		status:     make(map[string]ServerStatus),
	}
}

func (s *memcacheStore) Driver() Driver { return DriverMemcache }

func (s *memcacheStore) Init(ctx context.Context) error {
	if len(s.servers) == 0 {
		return ErrNoServers
	}
	s.poolMu.Lock()
	if s.pool == nil || s.pool.isClosed() {
		if s.persistent {
			s.pool = sharedPool(persistentID+"-"+string(DriverMemcache), s.poolSize, s.timeout)
		} else {
			s.pool = newServerPool(s.poolSize, s.timeout)
		}
	}
	pool := s.pool
	s.poolMu.Unlock()
	for _, srv := range s.servers {
		pool.add(srv)
		status := s.connect(ctx, pool, srv)
		s.mu.Lock()
		s.status[srv.ID] = status
		s.mu.Unlock()
		s.logf.log(fmt.Sprintf("%s added, persistent mode: %t", srv.ID, s.persistent), LevelDebug)
	}
	return nil
}

// connect opens (or reuses) a connection to srv and checks it answers.
func (s *memcacheStore) connect(ctx context.Context, pool *serverPool, srv Server) ServerStatus {
	err := pool.do(ctx, srv, func(pc *poolConn) error {
		if _, err := io.WriteString(pc.conn, "version\r\n"); err != nil {
			return err
		}
		line, err := pc.reader.ReadString('\n')
		if err != nil {
			return err
		}
		if !strings.HasPrefix(line, "VERSION ") {
			return fmt.Errorf("memcache version failed: %s", strings.TrimSpace(line))
		}
		return nil
	})
	if err != nil {
		s.logf.log(srv.ID+" server is down: "+err.Error(), LevelDebug)
		return StatusDown
	}
	s.logf.log(srv.ID+" server is up & running", LevelDebug)
	return StatusUp
}

func (s *memcacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	srv, pool, err := s.route(key)
	if err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err = pool.do(ctx, srv, func(pc *poolConn) error {
		if _, err := fmt.Fprintf(pc.conn, "get %s\r\n", key); err != nil {
			return err
		}
		line, err := pc.reader.ReadString('\n')
		if err != nil {
			return err
		}
		if line == "END\r\n" {
			return nil
		}
		fields := strings.Fields(strings.TrimSpace(line))
		if len(fields) < 4 || fields[0] != "VALUE" {
			return fmt.Errorf("unexpected response: %s", strings.TrimSpace(line))
		}
		n, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("parse length: %w", err)
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(pc.reader, buf); err != nil {
			return err
		}
		if _, err := pc.reader.ReadString('\n'); err != nil { // trailing CRLF
			return err
		}
		if _, err := pc.reader.ReadString('\n'); err != nil { // END
			return err
		}
		value, found = buf, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

func (s *memcacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	srv, pool, err := s.route(key)
	if err != nil {
		return err
	}
	return pool.do(ctx, srv, func(pc *poolConn) error {
		if _, err := fmt.Fprintf(pc.conn, "set %s 0 %d %d\r\n", key, memcachedExpiry(ttl), len(value)); err != nil {
			return err
		}
		if _, err := pc.conn.Write(value); err != nil {
			return err
		}
		if _, err := io.WriteString(pc.conn, "\r\n"); err != nil {
			return err
		}
		line, err := pc.reader.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "STORED") {
			return nil
		}
		return textResultError("set", key, srv.ID, line)
	})
}

func (s *memcacheStore) DeleteMany(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *memcacheStore) delete(ctx context.Context, key string) error {
	srv, pool, err := s.route(key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return pool.do(ctx, srv, func(pc *poolConn) error {
		if _, err := fmt.Fprintf(pc.conn, "delete %s\r\n", key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		line, err := pc.reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
		if strings.HasPrefix(line, "DELETED") || strings.HasPrefix(line, "NOT_FOUND") {
			return nil
		}
		return textResultError("delete", key, srv.ID, line)
	})
}

func (s *memcacheStore) Flush(ctx context.Context) error {
	pool := s.handle()
	if pool == nil {
		return ErrClientUnavailable
	}
	var errs []error
	for _, srv := range pool.list() {
		err := pool.do(ctx, srv, func(pc *poolConn) error {
			if _, err := io.WriteString(pc.conn, "flush_all\r\n"); err != nil {
				return err
			}
			line, err := pc.reader.ReadString('\n')
			if err != nil {
				return err
			}
			if !strings.HasPrefix(line, "OK") {
				return textResultError("flush", "", srv.ID, line)
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", srv.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Status reconnects to every configured server and records the result.
func (s *memcacheStore) Status(ctx context.Context) (map[string]ServerStatus, error) {
	pool := s.handle()
	if pool == nil {
		return nil, ErrClientUnavailable
	}
	s.logf.log("checking server statuses", LevelDebug)
	for _, srv := range s.servers {
		status := s.connect(ctx, pool, srv)
		s.mu.Lock()
		s.status[srv.ID] = status
		s.mu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]ServerStatus, len(s.status))
	for id, status := range s.status {
		out[id] = status
	}
	return out, nil
}

func (s *memcacheStore) Close() error {
	pool := s.handle()
	if pool == nil || s.persistent {
		return nil
	}
	return pool.close()
}

func (s *memcacheStore) handle() *serverPool {
	s.poolMu.RLock()
	defer s.poolMu.RUnlock()
	return s.pool
}

func (s *memcacheStore) route(key string) (Server, *serverPool, error) {
	if !validTextKey(key) {
		return Server{}, nil, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	pool := s.handle()
	if pool == nil {
		return Server{}, nil, ErrClientUnavailable
	}
	srv, err := pool.pick(key)
	return srv, pool, err
}

// validTextKey rejects keys the text protocol cannot frame.
func validTextKey(key string) bool {
	if len(key) == 0 || len(key) > 250 {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

// textResultError maps a text protocol reply onto the binary status codes so
// both drivers log the same numbers.
func textResultError(op, key, server, line string) error {
	line = strings.TrimSpace(line)
	var code uint16
	switch {
	case strings.HasPrefix(line, "NOT_STORED"):
		code = 0x0005
	case strings.HasPrefix(line, "EXISTS"):
		code = 0x0002
	case strings.HasPrefix(line, "NOT_FOUND"):
		code = 0x0001
	case strings.HasPrefix(line, "SERVER_ERROR object too large"):
		code = 0x0003
	case strings.HasPrefix(line, "SERVER_ERROR out of memory"):
		code = 0x0082
	case strings.HasPrefix(line, "CLIENT_ERROR"):
		code = 0x0004
	case line == "ERROR":
		code = 0x0081
	default:
		code = 0xffff
	}
	return &ResultError{Op: op, Key: key, Server: server, Code: code, Message: line}
}
