package pagecache

import (
	"net/http"
	"strings"
)

// Request carries the facts of the current HTTP request that cache keys are
// built from.
type Request struct {
	// HTTPS is the server's HTTPS indicator ("on" or "1" when TLS terminated here).
	HTTPS string
	// ForwardedProto is the X-Forwarded-Proto header value.
	ForwardedProto string
	Host           string
	// URI is the request path including the query string.
	URI string
}

// RequestFromHTTP extracts key facts from r.
func RequestFromHTTP(r *http.Request) Request {
	req := Request{
		ForwardedProto: r.Header.Get("X-Forwarded-Proto"),
		Host:           r.Host,
		URI:            r.URL.RequestURI(),
	}
	if r.TLS != nil {
		req.HTTPS = "on"
	}
	return req
}

// Secure reports whether the request arrived over https, directly or
// behind a proxy that forwarded the protocol.
func (r Request) Secure() bool {
	if r.ForwardedProto == "https" {
		return true
	}
	return strings.EqualFold(r.HTTPS, "on") || r.HTTPS == "1"
}

// Scheme returns "https" or "http".
func (r Request) Scheme() string {
	if r.Secure() {
		return "https"
	}
	return "http"
}

// URL returns scheme://host/uri, the part shared by every key of a page.
func (r Request) URL() string {
	return r.Scheme() + "://" + r.Host + r.URI
}
