package pagecache

// Option customizes a Backend at construction.
type Option func(*Backend)

// WithLogger sets the diagnostic sink. Without it log lines are dropped.
func WithLogger(l Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithObserver attaches an observer receiving every operation outcome.
func WithObserver(o Observer) Option {
	return func(b *Backend) { b.observer = o }
}

// WithPathResolver sets the resolver used by targeted clears.
func WithPathResolver(r PathResolver) Option {
	return func(b *Backend) { b.resolver = r }
}

// WithRedisClientFactory overrides how redis clients are built per server.
func WithRedisClientFactory(f RedisClientFactory) Option {
	return func(b *Backend) { b.redisFactory = f }
}

// WithStore bypasses driver selection and uses store directly. Intended for
// fakes and custom drivers.
func WithStore(s Store) Option {
	return func(b *Backend) { b.store = s }
}
