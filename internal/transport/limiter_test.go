package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestHostLimiterSpacesSameHost(t *testing.T) {
	l := NewHostLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx, "a.example"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("3 waits took %v, want >= ~100ms", elapsed)
	}
}

func TestHostLimiterIndependentHosts(t *testing.T) {
	l := NewHostLimiter(time.Second)
	ctx := context.Background()

	start := time.Now()
	for _, h := range []string{"a.example", "b.example", "c.example"} {
		if err := l.Wait(ctx, h); err != nil {
			t.Fatalf("Wait(%s): %v", h, err)
		}
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("first request per host should not wait, took %v", elapsed)
	}
}

func TestHostLimiterZeroIntervalDisabled(t *testing.T) {
	l := NewHostLimiter(0)
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background(), "a.example"); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("disabled limiter took %v", elapsed)
	}
}

func TestHostLimiterContextCancelled(t *testing.T) {
	l := NewHostLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	_ = l.Wait(ctx, "a.example")
	cancel()
	if err := l.Wait(ctx, "a.example"); err == nil {
		t.Error("expected error after cancel")
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"http://example.com/path?q=1", "example.com"},
		{"https://example.com:8443/", "example.com:8443"},
		{"not a url", "not a url"},
	}
	for _, tt := range tests {
		if got := HostOf(tt.in); got != tt.want {
			t.Errorf("HostOf(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, KindConnection},
		{"dns", &net.DNSError{Err: "no such host", Name: "nowhere.invalid"}, KindConnection},
		{"other", errors.New("malformed response"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify("http://x", tt.err)
			ne, ok := AsNetworkError(err)
			if !ok {
				t.Fatalf("Classify returned %T", err)
			}
			if ne.Kind != tt.want {
				t.Errorf("Kind = %v, want %v", ne.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("wrapped error not reachable through errors.Is")
			}
		})
	}

	if Classify("http://x", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}
	first := Classify("http://x", errors.New("boom"))
	if again := Classify("http://y", first); again != first {
		t.Error("Classify should not re-wrap a NetworkError")
	}
}
