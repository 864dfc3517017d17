// Package engine runs the probe sweeps against a target: payload
// injection, endpoint enumeration, the WAF and MFA probers and the scanner
// that sequences them.
package engine

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// Request budgets and spacing.
const (
	InjectionTimeout = 5 * time.Second
	ProbeTimeout     = 10 * time.Second
	InjectionDelay   = 100 * time.Millisecond
	WAFDelay         = 300 * time.Millisecond
)

// Recorder receives confirmed findings. *findings.Aggregator implements it.
type Recorder interface {
	AddFinding(ctx context.Context, typ findings.Type, severity string, url string, d findings.Detail) (findings.Finding, error)
}

// Outcome classifies a single probe for observers.
type Outcome string

const (
	OutcomeVulnerable Outcome = "vulnerable"
	OutcomeClean      Outcome = "clean"
	OutcomeTimeout    Outcome = "timeout"
	OutcomeConnection Outcome = "connection_error"
	OutcomeError      Outcome = "error"
)

// Observer is told about every dispatched probe.
type Observer interface {
	ObserveProbe(sweep string, outcome Outcome, elapsed time.Duration)
}

// Progress reports how far a sweep has got.
type Progress struct {
	Sweep string
	Done  int
	Total int
	Label string
}

// Option configures the injector, enumerator and probers.
type Option func(*env)

// WithRateLimiter replaces the per-host spacing limiter that each sweep
// otherwise builds from its own delay.
func WithRateLimiter(l transport.RateLimiter) Option {
	return func(e *env) { e.limiter = l }
}

// WithWorkers sets the number of concurrent probes (default 1).
func WithWorkers(n int) Option {
	return func(e *env) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver registers a probe observer.
func WithObserver(o Observer) Option {
	return func(e *env) { e.observer = o }
}

// WithProgress sets a callback invoked after every probe.
func WithProgress(fn func(Progress)) Option {
	return func(e *env) { e.onProgress = fn }
}

// WithHeaders adds headers to every probe. Headers set by a probe itself,
// such as the WAF bypass headers, take precedence.
func WithHeaders(h map[string]string) Option {
	return func(e *env) { e.headers = h }
}

// WithCookies adds cookies to every probe.
func WithCookies(c map[string]string) Option {
	return func(e *env) { e.cookies = c }
}

// env is the shared plumbing of every prober.
type env struct {
	client     transport.Client
	recorder   Recorder
	limiter    transport.RateLimiter
	workers    int
	logger     *slog.Logger
	observer   Observer
	onProgress func(Progress)
	headers    map[string]string
	cookies    map[string]string
}

func newEnv(client transport.Client, recorder Recorder, opts []Option) env {
	e := env{
		client:   client,
		recorder: recorder,
		workers:  1,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// limiterFor returns the injected limiter or a fresh per-host limiter with
// the given spacing.
func (e *env) limiterFor(delay time.Duration) transport.RateLimiter {
	if e.limiter != nil {
		return e.limiter
	}
	return transport.NewHostLimiter(delay)
}

func (e *env) progress(p Progress) {
	if e.onProgress != nil {
		e.onProgress(p)
	}
}

func (e *env) observe(sweep string, outcome Outcome, elapsed time.Duration) {
	if e.observer != nil {
		e.observer.ObserveProbe(sweep, outcome, elapsed)
	}
}

// record forwards a finding to the recorder. Recorder errors are logged.
func (e *env) record(ctx context.Context, typ findings.Type, sev findings.Severity, url string, d findings.Detail) {
	if e.recorder == nil {
		return
	}
	if _, err := e.recorder.AddFinding(ctx, typ, string(sev), url, d); err != nil {
		e.logger.Error("recording finding", "type", string(typ), "url", url, "error", err)
	}
}

// roundTrip waits for the limiter and sends req. ok is false when ctx ended
// before a result could be obtained; such probes are not counted.
func (e *env) roundTrip(ctx context.Context, limiter transport.RateLimiter, req *transport.Request) (resp *transport.Response, elapsed time.Duration, netErr *transport.NetworkError, ok bool) {
	if err := limiter.Wait(ctx, transport.HostOf(req.URL)); err != nil {
		return nil, 0, nil, false
	}

	req = e.decorate(req)
	start := time.Now()
	resp, err := e.client.Do(ctx, req)
	elapsed = time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return nil, elapsed, nil, false
		}
		ne, isNet := transport.AsNetworkError(err)
		if !isNet {
			ne = &transport.NetworkError{Kind: transport.KindOther, URL: req.URL, Err: err}
		}
		return nil, elapsed, ne, true
	}
	return resp, elapsed, nil, true
}

// decorate returns req with the shared headers and cookies merged in.
func (e *env) decorate(req *transport.Request) *transport.Request {
	if len(e.headers) == 0 && len(e.cookies) == 0 {
		return req
	}
	out := req.Clone()
	if out.Headers == nil {
		out.Headers = make(map[string]string, len(e.headers))
	}
	for k, v := range e.headers {
		if !req.HasHeader(k) {
			out.Headers[k] = v
		}
	}
	if out.Cookies == nil {
		out.Cookies = make(map[string]string, len(e.cookies))
	}
	for k, v := range e.cookies {
		if _, set := out.Cookies[k]; !set {
			out.Cookies[k] = v
		}
	}
	return out
}

// failureOutcome maps a network error to an observer outcome.
func failureOutcome(ne *transport.NetworkError) Outcome {
	switch ne.Kind {
	case transport.KindTimeout:
		return OutcomeTimeout
	case transport.KindConnection:
		return OutcomeConnection
	default:
		return OutcomeError
	}
}

func is2xx(code int) bool { return code >= 200 && code < 300 }
