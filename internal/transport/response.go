package transport

import "net/http"

// Response is what a probe gets back. Body is capped at
// ClientOptions.MaxBodyBytes.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// BodyString returns the response body as a string.
func (r *Response) BodyString() string {
	return string(r.Body)
}
