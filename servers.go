package pagecache

import (
	"strconv"
	"strings"
)

const (
	hostSeparator = ","
	portSeparator = ":"
)

// ParseServers splits a comma separated host:port list into servers.
// Entries without a host, without a port or with a non-numeric port are
// dropped. Repeated entries collapse into the first one.
//
// Surrounding whitespace is trimmed from each entry before it is parsed, so
// a Server's ID is the trimmed token: " 10.0.0.1:11211" yields the ID
// "10.0.0.1:11211".
func ParseServers(hosts string) []Server {
	var out []Server
	seen := make(map[string]struct{})
	for _, token := range strings.Split(hosts, hostSeparator) {
		token = strings.TrimSpace(token)
		host, port, ok := strings.Cut(token, portSeparator)
		if !ok || host == "" || !isDigits(port) {
			continue
		}
		n, err := strconv.Atoi(port)
		if err != nil {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, Server{ID: token, Host: host, Port: n})
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
