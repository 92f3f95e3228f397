package cachecore

import (
	"net"
	"strconv"
)

// Server is one parsed host:port entry of the configured pool.
type Server struct {
	// ID is the host:port token as configured; status maps are keyed by it.
	ID   string
	Host string
	Port int
}

// Addr returns the dialable address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ServerStatus is the last known health of a server.
type ServerStatus int

const (
	StatusUnknown ServerStatus = -1
	StatusDown    ServerStatus = 0
	StatusUp      ServerStatus = 1
)

func (s ServerStatus) String() string {
	switch s {
	case StatusUp:
		return "up"
	case StatusDown:
		return "down"
	default:
		return "unknown"
	}
}
