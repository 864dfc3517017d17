package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrorKind groups transport failures the way the sweep reports them.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindTimeout
	KindConnection
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	default:
		return "other"
	}
}

// NetworkError is a failed round trip: no response was delivered.
type NetworkError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the request ran out of time.
func (e *NetworkError) Timeout() bool { return e.Kind == KindTimeout }

// Classify wraps err in a *NetworkError. Errors that already are one are
// returned unchanged.
func Classify(rawURL string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne
	}
	return &NetworkError{Kind: kindOf(err), URL: rawURL, Err: err}
}

// AsNetworkError extracts a *NetworkError from err.
func AsNetworkError(err error) (*NetworkError, bool) {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

func kindOf(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return KindConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindOther
}
