package pagecache

import (
	"errors"
	"fmt"
)

var (
	ErrNoServers          = errors.New("pagecache: server list is empty")
	ErrUnsupportedDriver  = errors.New("pagecache: unsupported driver")
	ErrClientUnavailable  = errors.New("pagecache: client unavailable")
	ErrMalformedKey       = errors.New("pagecache: malformed key")
	ErrStoreUnavailable   = errors.New("pagecache: store self test failed")
	ErrNoResolver         = errors.New("pagecache: no path resolver configured")
	ErrServerNotAvailable = errors.New("pagecache: no server available for key")
)

// InitError reports why a driver could not be initialized.
type InitError struct {
	Driver Driver
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("pagecache: init %s: %v", e.Driver, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// ResultError carries the native result code of a failed memcached command.
type ResultError struct {
	Op      string
	Key     string
	Server  string
	Code    uint16
	Message string
}

func (e *ResultError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("memcached %s on %s failed: code %d (%s)", e.Op, e.Server, e.Code, e.Message)
	}
	return fmt.Sprintf("memcached %s %s on %s failed: code %d (%s)", e.Op, e.Key, e.Server, e.Code, e.Message)
}

// resultCode extracts the native result code from err, if any.
func resultCode(err error) (uint16, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Code, true
	}
	return 0, false
}
