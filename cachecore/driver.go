package cachecore

// Driver identifies cache backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverMemcache  Driver = "memcache"
	DriverRedis     Driver = "redis"
)

// Networked reports whether the driver talks to remote servers and therefore
// needs a non-empty server pool.
func (d Driver) Networked() bool {
	switch d {
	case DriverMemcached, DriverMemcache, DriverRedis:
		return true
	default:
		return false
	}
}
