package pagecache

import "github.com/goforj/pagecache/cachecore"

// Driver identifies cache backend.
type Driver = cachecore.Driver

const (
	DriverNull      = cachecore.DriverNull
	DriverMemory    = cachecore.DriverMemory
	DriverMemcached = cachecore.DriverMemcached
	DriverMemcache  = cachecore.DriverMemcache
	DriverRedis     = cachecore.DriverRedis
)

// Server is one parsed pool entry.
type Server = cachecore.Server

// ServerStatus is the health of one server.
type ServerStatus = cachecore.ServerStatus

const (
	StatusUnknown = cachecore.StatusUnknown
	StatusDown    = cachecore.StatusDown
	StatusUp      = cachecore.StatusUp
)

// Store is the driver contract.
type Store = cachecore.Store

// InvalidationMethod selects how Clear invalidates entries.
type InvalidationMethod int

const (
	// InvalidateFlush empties the whole keyspace on every clear.
	InvalidateFlush InvalidationMethod = 0
	// InvalidateTargeted deletes only the meta and data entries of one resource.
	InvalidateTargeted InvalidationMethod = 1
)

func (m InvalidationMethod) String() string {
	if m == InvalidateFlush {
		return "flush"
	}
	return "targeted"
}
