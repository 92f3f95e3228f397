package pagecache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/goforj/pagecache/internal/ring"
)

var dialMemcached = func(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}

// serverPool is one connection handle: the servers attached to it, their
// idle connections and the ring spreading keys over them.
type serverPool struct {
	size    int
	timeout time.Duration

	mu      sync.RWMutex
	servers map[string]Server
	order   []string
	idle    map[string]chan *poolConn
	ring    *ring.Ring
	closed  bool
}

type poolConn struct {
	server string
	conn   net.Conn
	reader *bufio.Reader
}

func newServerPool(size int, timeout time.Duration) *serverPool {
	if size <= 0 {
		size = defaultPoolSize
	}
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &serverPool{
		size:    size,
		timeout: timeout,
		servers: make(map[string]Server),
		idle:    make(map[string]chan *poolConn),
		ring:    ring.New(0),
	}
}

var persistentPools = struct {
	sync.Mutex
	m map[string]*serverPool
}{m: make(map[string]*serverPool)}

// sharedPool returns the process-wide handle registered under id, creating
// it on first use.
func sharedPool(id string, size int, timeout time.Duration) *serverPool {
	persistentPools.Lock()
	defer persistentPools.Unlock()
	if p, ok := persistentPools.m[id]; ok && !p.isClosed() {
		return p
	}
	p := newServerPool(size, timeout)
	persistentPools.m[id] = p
	return p
}

// ClosePersistent closes every shared connection handle and drops the
// shared memory store. Backends built afterwards with Persistent start
// from an empty handle.
func ClosePersistent() error {
	resetSharedMemoryCache()

	persistentPools.Lock()
	pools := persistentPools.m
	persistentPools.m = make(map[string]*serverPool)
	persistentPools.Unlock()

	var errs []error
	for _, p := range pools {
		if err := p.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// add attaches s. It reports false when s is already attached.
func (p *serverPool) add(s Server) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.servers[s.ID]; ok {
		return false
	}
	p.servers[s.ID] = s
	p.order = append(p.order, s.ID)
	p.idle[s.ID] = make(chan *poolConn, p.size)
	p.ring.Add(s.ID)
	return true
}

func (p *serverPool) list() []Server {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Server, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.servers[id])
	}
	return out
}

func (p *serverPool) pick(key string) (Server, error) {
	id := p.ring.Get(key)
	p.mu.RLock()
	s, ok := p.servers[id]
	p.mu.RUnlock()
	if !ok {
		return Server{}, ErrServerNotAvailable
	}
	return s, nil
}

func (p *serverPool) acquire(ctx context.Context, s Server) (*poolConn, error) {
	p.mu.RLock()
	idle, closed := p.idle[s.ID], p.closed
	p.mu.RUnlock()
	if closed {
		return nil, net.ErrClosed
	}
	if idle != nil {
		select {
		case pc := <-idle:
			if pc != nil {
				setDeadline(ctx, pc.conn)
				return pc, nil
			}
		default:
		}
	}
	dctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	conn, err := dialMemcached(dctx, "tcp", s.Addr())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.ID, err)
	}
	setDeadline(ctx, conn)
	return &poolConn{server: s.ID, conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (p *serverPool) release(pc *poolConn, bad bool) {
	if pc == nil || pc.conn == nil {
		return
	}
	if bad {
		_ = pc.conn.Close()
		return
	}
	p.mu.RLock()
	idle, closed := p.idle[pc.server], p.closed
	p.mu.RUnlock()
	if closed || idle == nil {
		_ = pc.conn.Close()
		return
	}
	select {
	case idle <- pc:
	default:
		_ = pc.conn.Close()
	}
}

// do runs fn on a connection to s. The connection goes back to the pool
// unless fn failed with something other than a server result code.
func (p *serverPool) do(ctx context.Context, s Server, fn func(pc *poolConn) error) error {
	pc, err := p.acquire(ctx, s)
	if err != nil {
		return err
	}
	err = fn(pc)
	var re *ResultError
	p.release(pc, err != nil && !errors.As(err, &re))
	return err
}

func (p *serverPool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *serverPool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.mu.Unlock()

	var errs []error
	for _, ch := range idle {
	drain:
		for {
			select {
			case pc := <-ch:
				if err := pc.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
					errs = append(errs, err)
				}
			default:
				break drain
			}
		}
	}
	return errors.Join(errs...)
}

func setDeadline(ctx context.Context, conn net.Conn) {
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
		return
	}
	_ = conn.SetDeadline(time.Time{})
}

// memcachedExpiry converts ttl to a memcached exptime. Values beyond 30 days
// are read by the server as unix timestamps.
func memcachedExpiry(ttl time.Duration) uint32 {
	if ttl <= 0 {
		return 0
	}
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if seconds > maxRelativeExpiry {
		return uint32(time.Now().Unix() + seconds)
	}
	return uint32(seconds)
}

const maxRelativeExpiry = 60 * 60 * 24 * 30
