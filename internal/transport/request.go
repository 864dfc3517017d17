// Package transport provides the HTTP transport abstraction layer
// shared by the injector, the enumerator and the WAF and MFA probers.
package transport

import (
	"maps"
	"net/http"
	"time"
)

// Request is one probe to send. Header names are matched without regard
// to case, the way net/http applies them.
type Request struct {
	Method string
	URL    string

	// Headers are applied with http.Header.Set after ContentType.
	Headers map[string]string

	// Body is sent as-is; ContentType is its Content-Type.
	Body        string
	ContentType string

	Cookies map[string]string

	// FollowRedirects overrides the client redirect policy when non-nil.
	FollowRedirects *bool

	// Timeout overrides the client timeout when positive.
	Timeout time.Duration
}

// HasHeader reports whether the request already sets name, compared in
// canonical form.
func (r *Request) HasHeader(name string) bool {
	want := http.CanonicalHeaderKey(name)
	for k := range r.Headers {
		if http.CanonicalHeaderKey(k) == want {
			return true
		}
	}
	return false
}

// Clone returns a copy of r that shares no maps or pointers with it.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Headers = maps.Clone(r.Headers)
	c.Cookies = maps.Clone(r.Cookies)
	if r.FollowRedirects != nil {
		follow := *r.FollowRedirects
		c.FollowRedirects = &follow
	}
	return &c
}
