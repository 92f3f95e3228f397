package pagecache

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goforj/pagecache/internal/binproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEntry struct {
	level  Level
	msg    string
	fields Fields
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level Level, msg string, f Fields) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: f})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, f Fields) { l.add(LevelDebug, msg, f) }
func (l *recordingLogger) Info(msg string, f Fields)  { l.add(LevelInfo, msg, f) }
func (l *recordingLogger) Warn(msg string, f Fields)  { l.add(LevelWarn, msg, f) }
func (l *recordingLogger) Error(msg string, f Fields) { l.add(LevelError, msg, f) }

func (l *recordingLogger) find(level Level, substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.Contains(e.msg, substr) {
			return true
		}
	}
	return false
}

// spyStore counts calls into a memory store.
type spyStore struct {
	*memoryStore
	initErr   error
	deleteErr error

	mu      sync.Mutex
	deleted []string
	flushes int
	probes  int
}

func newSpyStore() *spyStore {
	return &spyStore{memoryStore: newMemoryStore(Config{})}
}

func (s *spyStore) Init(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	return s.memoryStore.Init(ctx)
}

func (s *spyStore) DeleteMany(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	s.deleted = append(s.deleted, keys...)
	s.mu.Unlock()
	if s.deleteErr != nil {
		var errs []error
		for _, key := range keys {
			errs = append(errs, errors.New("delete "+key+": "+s.deleteErr.Error()))
		}
		return errors.Join(errs...)
	}
	return s.memoryStore.DeleteMany(ctx, keys...)
}

func (s *spyStore) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return s.memoryStore.Flush(ctx)
}

func (s *spyStore) Status(ctx context.Context) (map[string]ServerStatus, error) {
	s.mu.Lock()
	s.probes++
	s.mu.Unlock()
	return s.memoryStore.Status(ctx)
}

func staticResolver(path string) PathResolver {
	return PathResolverFunc(func(context.Context, string) (string, error) { return path, nil })
}

func TestBackendLocalScenario(t *testing.T) {
	b := New(context.Background(), Config{Driver: DriverMemory, Hosts: "", Expire: 60})
	require.True(t, b.Alive())
	require.True(t, b.Set("meta-http://a/b", []byte("X")))

	got, ok := b.Get("meta-http://a/b")
	require.True(t, ok)
	require.Equal(t, "X", string(got))

	status, ok := b.Status()
	require.True(t, ok)
	require.Equal(t, map[string]ServerStatus{"memory": StatusUp}, status)
}

func TestBackendSetTwiceReturnsLatest(t *testing.T) {
	b := New(context.Background(), Config{Driver: DriverMemory})
	require.True(t, b.Set("k", []byte("one")))
	require.True(t, b.Set("k", []byte("two")))
	got, ok := b.Get("k")
	require.True(t, ok)
	require.Equal(t, "two", string(got))
}

func TestBackendNetworkedWithoutServersIsNotAlive(t *testing.T) {
	fake := newFakeMemcached()
	fake.install(t, false)
	var redisBuilds int
	factory := func(Server) RedisClient { redisBuilds++; return newStubRedisClient("") }

	for _, driver := range []Driver{DriverMemcached, DriverMemcache, DriverRedis} {
		for _, hosts := range []string{"", "bad,:11211,cache:,x:y"} {
			t.Run(string(driver)+"/"+hosts, func(t *testing.T) {
				logger := &recordingLogger{}
				b := New(context.Background(), Config{Driver: driver, Hosts: hosts, Log: true},
					WithLogger(logger), WithRedisClientFactory(factory), WithPathResolver(staticResolver("a/b")))

				require.False(t, b.Alive())
				require.Empty(t, b.Servers())
				require.True(t, logger.find(LevelError, ErrNoServers.Error()))

				_, ok := b.Get("k")
				assert.False(t, ok)
				assert.False(t, b.Set("k", []byte("v")))
				assert.False(t, b.Clear(Request{}, ""))
				assert.False(t, b.Clear(Request{}, "42"))
				assert.False(t, b.Flush())
				status, ok := b.Status()
				assert.False(t, ok)
				assert.Nil(t, status)
			})
		}
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Empty(t, fake.dials)
	require.Zero(t, redisBuilds)
}

func TestBackendBinaryScenarioParsesServers(t *testing.T) {
	fake := newFakeMemcached()
	fake.install(t, false)
	b := New(context.Background(), Config{
		Driver:     DriverMemcached,
		Hosts:      "10.0.0.1:11211,bad,10.0.0.2:11211",
		Persistent: false,
	})
	t.Cleanup(func() { _ = b.Close() })

	require.True(t, b.Alive())
	servers := b.Servers()
	require.Len(t, servers, 2)
	require.Equal(t, "10.0.0.1:11211", servers[0].ID)
	require.Equal(t, "10.0.0.2:11211", servers[1].ID)

	status, ok := b.Status()
	require.True(t, ok)
	require.Equal(t, map[string]ServerStatus{"10.0.0.1:11211": StatusUp, "10.0.0.2:11211": StatusUp}, status)

	require.True(t, b.Set("meta-http://a/b", []byte("X")))
	got, ok := b.Get("meta-http://a/b")
	require.True(t, ok)
	require.Equal(t, "X", string(got))
}

func TestBackendStatusOnNonAliveDoesNotContactServers(t *testing.T) {
	store := newSpyStore()
	store.initErr = ErrNoServers
	b := New(context.Background(), Config{}, WithStore(store))
	require.False(t, b.Alive())
	require.Zero(t, store.probes)

	_, ok := b.Status()
	require.False(t, ok)
	require.Zero(t, store.probes)
}

func TestBackendClearWithoutIDFlushesUnderFullFlush(t *testing.T) {
	store := newSpyStore()
	b := New(context.Background(), Config{InvalidationMethod: InvalidateFlush}, WithStore(store))
	require.True(t, b.Set("k", []byte("v")))

	require.True(t, b.Clear(Request{}, ""))
	require.Equal(t, 1, store.flushes)
	require.Empty(t, store.deleted)
	_, ok := b.Get("k")
	require.False(t, ok)

	require.True(t, b.Clear(Request{}, "42"))
	require.Equal(t, 2, store.flushes)
	require.Empty(t, store.deleted)
}

func TestBackendTargetedClearRefusesMissingID(t *testing.T) {
	store := newSpyStore()
	logger := &recordingLogger{}
	b := New(context.Background(), Config{InvalidationMethod: InvalidateTargeted, Log: true, Debug: true},
		WithStore(store), WithLogger(logger), WithPathResolver(staticResolver("example.com/p/")))

	require.False(t, b.Clear(Request{}, ""))
	require.Zero(t, store.flushes)
	require.Empty(t, store.deleted)
	require.True(t, logger.find(LevelWarn, "not clearing unidentified page"))
}

func TestBackendTargetedClearRefusesEmptyPath(t *testing.T) {
	for name, resolver := range map[string]PathResolver{
		"empty path":  staticResolver(""),
		"error":       PathResolverFunc(func(context.Context, string) (string, error) { return "", errors.New("no such post") }),
		"no resolver": nil,
	} {
		t.Run(name, func(t *testing.T) {
			store := newSpyStore()
			opts := []Option{WithStore(store)}
			if resolver != nil {
				opts = append(opts, WithPathResolver(resolver))
			}
			b := New(context.Background(), Config{InvalidationMethod: InvalidateTargeted}, opts...)
			require.False(t, b.Clear(Request{Host: "example.com"}, "42"))
			require.Empty(t, store.deleted)
			require.Zero(t, store.flushes)
		})
	}
}

func TestBackendTargetedClearDeletesMetaAndData(t *testing.T) {
	store := newSpyStore()
	b := New(context.Background(), Config{InvalidationMethod: InvalidateTargeted},
		WithStore(store),
		WithPathResolver(PermalinkResolver(func(_ context.Context, id string) (string, error) {
			return "http://example.com/?p=" + id, nil
		})))

	req := Request{ForwardedProto: "https", Host: "example.com", URI: "/?p=42"}
	meta := b.Key(req, "meta")
	require.Equal(t, "meta-https://example.com/?p=42", meta)
	require.True(t, b.Set("meta-https://example.com/?p=42", []byte("m")))
	require.True(t, b.Set("data-https://example.com/?p=42", []byte("d")))
	require.True(t, b.Set("meta-https://example.com/?p=7", []byte("other")))

	require.True(t, b.Clear(req, "42"))
	require.Equal(t, []string{"meta-https://example.com/?p=42", "data-https://example.com/?p=42"}, store.deleted)
	require.Zero(t, store.flushes)

	_, ok := b.Get("data-https://example.com/?p=42")
	require.False(t, ok)
	_, ok = b.Get("meta-https://example.com/?p=7")
	require.True(t, ok)
}

func TestBackendTargetedClearUsesConfiguredPrefixes(t *testing.T) {
	store := newSpyStore()
	b := New(context.Background(), Config{InvalidationMethod: InvalidateTargeted, PrefixMeta: "m:", PrefixData: "d:"},
		WithStore(store), WithPathResolver(staticResolver("example.com/p/")))
	require.True(t, b.Clear(Request{}, "1"))
	require.Equal(t, []string{"m:http://example.com/p/", "d:http://example.com/p/"}, store.deleted)
}

func TestBackendTargetedClearDeleteFailures(t *testing.T) {
	store := newSpyStore()
	store.deleteErr = errors.New("connection reset")
	logger := &recordingLogger{}
	b := New(context.Background(), Config{InvalidationMethod: InvalidateTargeted, Log: true, Debug: true},
		WithStore(store), WithLogger(logger), WithPathResolver(staticResolver("example.com/p/")))

	require.False(t, b.Clear(Request{}, "1"))
	require.Equal(t, []string{"meta-http://example.com/p/", "data-http://example.com/p/"}, store.deleted)
	require.True(t, logger.find(LevelWarn, "unable to delete entry: delete meta-http://example.com/p/"))
	require.True(t, logger.find(LevelWarn, "unable to delete entry: delete data-http://example.com/p/"))
	require.False(t, logger.find(LevelInfo, "entry deleted"))
	require.True(t, b.Alive(), "delete failures must not flip aliveness")
}

func TestBackendKey(t *testing.T) {
	b := New(context.Background(), Config{Driver: DriverNull})
	cases := []struct {
		req  Request
		want string
	}{
		{Request{Host: "a", URI: "/b"}, "meta-http://a/b"},
		{Request{HTTPS: "on", Host: "a", URI: "/b"}, "meta-https://a/b"},
		{Request{HTTPS: "ON", Host: "a", URI: "/b"}, "meta-https://a/b"},
		{Request{HTTPS: "1", Host: "a", URI: "/b?x=1"}, "meta-https://a/b?x=1"},
		{Request{HTTPS: "off", ForwardedProto: "https", Host: "a", URI: "/"}, "meta-https://a/"},
		{Request{ForwardedProto: "http", Host: "a", URI: "/"}, "meta-http://a/"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, b.Key(tc.req, "meta"))
	}
}

func TestBackendLogGating(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		logger := &recordingLogger{}
		b := New(context.Background(), Config{Log: false, Debug: true}, WithLogger(logger))
		b.Log("hello", LevelError)
		require.Empty(t, logger.entries)
	})
	t.Run("without debug", func(t *testing.T) {
		logger := &recordingLogger{}
		b := New(context.Background(), Config{Log: true}, WithLogger(logger))
		b.Log("d", LevelDebug)
		b.Log("i", LevelInfo)
		b.Log("w", LevelWarn)
		b.Log("e", LevelError)
		require.Len(t, logger.entries, 2)
		require.Equal(t, LevelWarn, logger.entries[0].level)
		require.Equal(t, LevelError, logger.entries[1].level)
	})
	t.Run("with debug", func(t *testing.T) {
		logger := &recordingLogger{}
		b := New(context.Background(), Config{Log: true, Debug: true}, WithLogger(logger))
		logger.entries = nil
		b.Log(map[string]int{"n": 1}, LevelDebug)
		require.Len(t, logger.entries, 1)
		require.Equal(t, `pagecache with memory {"n":1}`, logger.entries[0].msg)
		require.Equal(t, Fields{"driver": "memory"}, logger.entries[0].fields)
	})
}

func TestBackendGetMissIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	b := New(context.Background(), Config{Log: true}, WithLogger(logger))
	_, ok := b.Get("absent")
	require.False(t, ok)
	require.True(t, logger.find(LevelWarn, "failed to get entry absent"))
}

func TestBackendSetFailureLogsResultCode(t *testing.T) {
	fake := newFakeMemcached()
	fake.setStatus = binproto.StatusValueTooLarge
	fake.install(t, false)
	logger := &recordingLogger{}
	b := New(context.Background(), Config{Driver: DriverMemcached, Hosts: "10.0.0.1:11211", Log: true}, WithLogger(logger))
	t.Cleanup(func() { _ = b.Close() })

	require.True(t, b.Alive())
	require.False(t, b.Set("k", []byte("v")))
	require.True(t, logger.find(LevelWarn, "result code: 3"))
	require.True(t, b.Alive(), "operation errors must not flip aliveness")
}

func TestBackendUnsupportedDriver(t *testing.T) {
	logger := &recordingLogger{}
	b := New(context.Background(), Config{Driver: "apc", Log: true}, WithLogger(logger))
	require.False(t, b.Alive())
	require.Equal(t, Driver("apc"), b.Driver())
	require.True(t, logger.find(LevelError, "unsupported driver"))
}

func TestBackendReinitReusesIdleConnections(t *testing.T) {
	fake := newFakeMemcached()
	fake.install(t, true)
	b := New(context.Background(), Config{Driver: DriverMemcache, Hosts: "10.0.0.1:11211"})
	t.Cleanup(func() { _ = b.Close() })
	require.True(t, b.Alive())

	fake.setDown("10.0.0.1:11211")
	require.True(t, b.Reinit(context.Background()))
	require.True(t, b.Alive())
	status, ok := b.Status()
	require.True(t, ok)
	require.Equal(t, StatusUp, status["10.0.0.1:11211"], "idle connection still answers")
	require.Equal(t, 1, fake.dialCount("10.0.0.1:11211"))
}

func TestBackendObserverSeesOperations(t *testing.T) {
	var (
		mu  sync.Mutex
		ops []string
	)
	obs := ObserverFunc(func(_ context.Context, op, key string, hit bool, err error, _ time.Duration, driver Driver) {
		mu.Lock()
		ops = append(ops, op)
		mu.Unlock()
		require.Equal(t, DriverMemory, driver)
	})
	b := New(context.Background(), Config{}, WithObserver(obs))
	b.Set("k", []byte("v"))
	b.Get("k")
	b.Clear(Request{}, "")
	b.Status()
	require.Equal(t, []string{"set", "get", "flush", "status"}, ops)
}

func TestBackendNullDriverMisses(t *testing.T) {
	b := New(context.Background(), Config{Driver: DriverNull})
	require.True(t, b.Alive())
	require.True(t, b.Set("k", []byte("v")))
	_, ok := b.Get("k")
	require.False(t, ok)
}

func TestBackendContextDeadlineReachesConnections(t *testing.T) {
	orig := dialMemcached
	t.Cleanup(func() { dialMemcached = orig })
	dialMemcached = func(context.Context, string, string) (net.Conn, error) {
		// a server that never answers
		server, client := net.Pipe()
		go func() {
			buf := make([]byte, 1024)
			for {
				if _, err := server.Read(buf); err != nil {
					return
				}
			}
		}()
		return client, nil
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelInit()
	b := New(initCtx, Config{Driver: DriverMemcached, Hosts: "10.0.0.1:11211"})
	t.Cleanup(func() { _ = b.Close() })
	require.True(t, b.Alive())
	b.mu.RLock()
	probed := b.status["10.0.0.1:11211"]
	b.mu.RUnlock()
	require.Equal(t, StatusDown, probed)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, ok := b.GetCtx(ctx, "k")
	require.False(t, ok)
	require.Less(t, time.Since(start), 2*time.Second)
}
