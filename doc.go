// Package pagecache stores rendered pages in a shared cache so a front
// server can answer without running the application.
//
// A Backend wraps one driver (memory, memcached, memcache, redis or null),
// builds page keys from request facts and invalidates pages by flushing or
// by deleting the meta and data entries of a single page. Driver failures
// never surface as errors from the hot path: they are logged and reported
// as false.
package pagecache
