package engine

import (
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// Trial is one (parameter, payload, encoding) combination sent to a target.
type Trial struct {
	TargetURL string
	Parameter string
	Payload   string
	Encoding  payload.Scheme
	Method    string
}

// Encoded returns the payload after encoding.
func (t Trial) Encoded() string {
	return payload.Encode(t.Payload, t.Encoding)
}

// Request builds the HTTP request for the trial. GET merges the parameter
// into the existing query string, overwriting any previous value. POST
// sends a form body carrying only the parameter and leaves the URL as is.
func (t Trial) Request(timeout time.Duration) (*transport.Request, error) {
	value := t.Encoded()

	if strings.EqualFold(t.Method, http.MethodPost) {
		form := url.Values{t.Parameter: {value}}
		return &transport.Request{
			Method:      http.MethodPost,
			URL:         t.TargetURL,
			Body:        form.Encode(),
			ContentType: "application/x-www-form-urlencoded",
			Timeout:     timeout,
		}, nil
	}

	u, err := url.Parse(t.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("parsing target %q: %w", t.TargetURL, err)
	}
	q := u.Query()
	q.Set(t.Parameter, value)
	u.RawQuery = q.Encode()
	u.Fragment = ""

	return &transport.Request{
		Method:  http.MethodGet,
		URL:     u.String(),
		Timeout: timeout,
	}, nil
}

// Trials yields the cross product params x payloads x encodings, parameter
// outermost and encoding innermost. Nothing is materialised.
func Trials(target string, params, payloads []string, encodings []payload.Scheme, method string) iter.Seq[Trial] {
	return func(yield func(Trial) bool) {
		for _, param := range params {
			for _, p := range payloads {
				for _, enc := range encodings {
					t := Trial{
						TargetURL: target,
						Parameter: param,
						Payload:   p,
						Encoding:  enc,
						Method:    method,
					}
					if !yield(t) {
						return
					}
				}
			}
		}
	}
}

// ProbeResult is the outcome of one dispatched trial. StatusCode is 0 and
// Err is set when no response was delivered.
type ProbeResult struct {
	Trial
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
	Err        *transport.NetworkError
}

// Delivered reports whether a response came back.
func (r ProbeResult) Delivered() bool { return r.Err == nil }
