package pagecache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Backend is the page cache facade. It owns one driver, chosen from the
// configuration at construction, and absorbs every driver error into a
// boolean result plus a log line.
type Backend struct {
	cfg     Config
	servers []Server
	store   Store

	logger       Logger
	observer     Observer
	resolver     PathResolver
	redisFactory RedisClientFactory

	mu     sync.RWMutex
	alive  bool
	status map[string]ServerStatus
}

// New builds a Backend for cfg and initializes its driver. A failed
// initialization is logged and leaves the Backend non-alive; it is never
// returned as an error.
//
// Example:
//
//	b := pagecache.New(ctx, pagecache.Config{
//		Driver: pagecache.DriverMemcached,
//		Hosts:  "10.0.0.1:11211,10.0.0.2:11211",
//		Expire: 300,
//	})
//	if !b.Alive() {
//		// serve uncached
//	}
func New(ctx context.Context, cfg Config, opts ...Option) *Backend {
	b := &Backend{
		cfg:    cfg.withDefaults(),
		logger: NopLogger{},
		status: make(map[string]ServerStatus),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	b.servers = ParseServers(b.cfg.Hosts)
	if b.store == nil {
		b.store = newStore(b.cfg, b.servers, b.redisFactory, b.Log)
	}
	b.init(ctx)
	return b
}

func (b *Backend) init(ctx context.Context) bool {
	if err := b.store.Init(ctx); err != nil {
		b.mu.Lock()
		b.alive = false
		b.mu.Unlock()
		b.Log(&InitError{Driver: b.store.Driver(), Err: err}, LevelError)
		return false
	}

	b.mu.Lock()
	b.alive = true
	if b.store.Driver().Networked() {
		for _, srv := range b.servers {
			if _, ok := b.status[srv.ID]; !ok {
				b.status[srv.ID] = StatusUnknown
			}
		}
	}
	b.mu.Unlock()

	_ = b.probe(ctx)
	b.Log("initialized", LevelInfo)
	return true
}

// probe refreshes the status map from the driver.
func (b *Backend) probe(ctx context.Context) error {
	status, err := b.store.Status(ctx)
	if err != nil {
		b.Log("status probe failed: "+err.Error(), LevelWarn)
		return err
	}
	b.mu.Lock()
	for id, st := range status {
		b.status[id] = st
	}
	b.mu.Unlock()
	return nil
}

// Reinit runs driver initialization again. It is the only way to change
// aliveness after New.
func (b *Backend) Reinit(ctx context.Context) bool {
	return b.init(ctx)
}

// Alive reports whether initialization succeeded.
func (b *Backend) Alive() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.alive
}

// Driver returns the configured driver.
func (b *Backend) Driver() Driver {
	return b.store.Driver()
}

// Config returns a copy of the effective configuration.
func (b *Backend) Config() Config {
	return b.cfg
}

// Servers returns the parsed server pool.
func (b *Backend) Servers() []Server {
	out := make([]Server, len(b.servers))
	copy(out, b.servers)
	return out
}

// Key builds the cache key of the page req addresses.
//
// Example:
//
//	b.Key(pagecache.Request{Host: "example.com", URI: "/a/b"}, "meta")
//	// meta-http://example.com/a/b
func (b *Backend) Key(req Request, suffix string) string {
	return suffix + "-" + req.URL()
}

func (b *Backend) checkAlive() bool {
	if b.Alive() {
		return true
	}
	b.Log("backend is not alive", LevelWarn)
	return false
}

// Get returns the entry under key. Misses and errors both report false.
func (b *Backend) Get(key string) ([]byte, bool) {
	return b.GetCtx(context.Background(), key)
}

// GetCtx is the context-aware variant of Get.
func (b *Backend) GetCtx(ctx context.Context, key string) ([]byte, bool) {
	if !b.checkAlive() {
		return nil, false
	}
	start := time.Now()
	value, ok, err := b.store.Get(ctx, key)
	b.observe(ctx, "get", key, ok, err, start)
	if err != nil {
		b.Log("failed to get entry "+key+": "+err.Error(), LevelWarn)
		return nil, false
	}
	if !ok {
		b.Log("failed to get entry "+key, LevelWarn)
		return nil, false
	}
	return value, true
}

// Set stores data under key for the configured Expire.
func (b *Backend) Set(key string, data []byte) bool {
	return b.SetCtx(context.Background(), key, data)
}

// SetCtx is the context-aware variant of Set.
func (b *Backend) SetCtx(ctx context.Context, key string, data []byte) bool {
	if !b.checkAlive() {
		return false
	}
	b.Log("set entry: "+key, LevelInfo)
	start := time.Now()
	err := b.store.Set(ctx, key, data, b.cfg.TTL())
	b.observe(ctx, "set", key, false, err, start)
	if err != nil {
		msg := "unable to set entry " + key
		if code, ok := resultCode(err); ok {
			msg += ", result code: " + strconv.Itoa(int(code))
		}
		b.Log(msg+": "+err.Error(), LevelWarn)
		return false
	}
	return true
}

// Flush empties the whole keyspace the driver serves.
func (b *Backend) Flush() bool {
	return b.FlushCtx(context.Background())
}

// FlushCtx is the context-aware variant of Flush.
func (b *Backend) FlushCtx(ctx context.Context) bool {
	if !b.checkAlive() {
		return false
	}
	return b.flush(ctx)
}

func (b *Backend) flush(ctx context.Context) bool {
	b.Log("flushing cache", LevelInfo)
	start := time.Now()
	err := b.store.Flush(ctx)
	b.observe(ctx, "flush", "", false, err, start)
	if err != nil {
		b.Log("failed to flush cache: "+err.Error(), LevelWarn)
		return false
	}
	return true
}

// Clear invalidates cached pages. With InvalidateFlush, or without an id,
// the whole keyspace is flushed. With InvalidateTargeted the meta and data
// entries of the page id resolves to are deleted; an empty id is refused.
// req supplies the scheme of the deleted keys.
func (b *Backend) Clear(req Request, id string) bool {
	return b.ClearCtx(context.Background(), req, id)
}

// ClearCtx is the context-aware variant of Clear.
func (b *Backend) ClearCtx(ctx context.Context, req Request, id string) bool {
	if !b.checkAlive() {
		return false
	}
	if id == "" && b.cfg.InvalidationMethod != InvalidateFlush {
		b.Log("not clearing unidentified page", LevelWarn)
		return false
	}
	if b.cfg.InvalidationMethod == InvalidateFlush || id == "" {
		return b.flush(ctx)
	}

	path, err := b.resolvePath(ctx, id)
	if err != nil || path == "" {
		msg := "unable to determine path of page " + id
		if err != nil {
			msg += ": " + err.Error()
		}
		b.Log(msg, LevelWarn)
		return false
	}

	url := req.Scheme() + "://" + path
	keys := []string{b.cfg.PrefixMeta + url, b.cfg.PrefixData + url}
	start := time.Now()
	err = b.store.DeleteMany(ctx, keys...)
	b.observe(ctx, "delete", url, false, err, start)
	if err != nil {
		for _, e := range unjoin(err) {
			b.Log("unable to delete entry: "+e.Error(), LevelWarn)
		}
		return false
	}
	for _, key := range keys {
		b.Log("entry deleted: "+key, LevelInfo)
	}
	return true
}

func (b *Backend) resolvePath(ctx context.Context, id string) (string, error) {
	if b.resolver == nil {
		return "", ErrNoResolver
	}
	return b.resolver.ResolvePath(ctx, id)
}

// Status probes the servers and returns the health of each.
func (b *Backend) Status() (map[string]ServerStatus, bool) {
	return b.StatusCtx(context.Background())
}

// StatusCtx is the context-aware variant of Status.
func (b *Backend) StatusCtx(ctx context.Context) (map[string]ServerStatus, bool) {
	if !b.checkAlive() {
		return nil, false
	}
	start := time.Now()
	err := b.probe(ctx)
	b.observe(ctx, "status", "", err == nil, err, start)

	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]ServerStatus, len(b.status))
	for id, st := range b.status {
		out[id] = st
	}
	return out, true
}

// Log writes message to the logger when logging is enabled. Without Debug
// only warnings and errors are written.
func (b *Backend) Log(message any, level Level) {
	if !b.cfg.Log || b.logger == nil {
		return
	}
	if !b.cfg.Debug && level < LevelWarn {
		return
	}
	driver := string(b.cfg.Driver)
	if b.store != nil {
		driver = string(b.store.Driver())
	}
	msg := "pagecache with " + driver + " " + flatten(message)
	fields := Fields{"driver": driver}
	switch level {
	case LevelDebug:
		b.logger.Debug(msg, fields)
	case LevelInfo:
		b.logger.Info(msg, fields)
	case LevelWarn:
		b.logger.Warn(msg, fields)
	default:
		b.logger.Error(msg, fields)
	}
}

// Close releases the driver's connections. Persistent handles stay open
// for other Backends; see ClosePersistent.
func (b *Backend) Close() error {
	if b.cfg.Persistent {
		return nil
	}
	return b.store.Close()
}

func (b *Backend) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if b.observer == nil {
		return
	}
	b.observer.OnCacheOp(ctx, op, key, hit, err, time.Since(start), b.store.Driver())
}

func unjoin(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
