package findings

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxEvidence bounds the evidence stored with a finding.
	MaxEvidence = 500

	// alertEvidence bounds the evidence quoted in an alert message.
	alertEvidence = 200
)

// NotificationSink delivers alert and summary messages.
type NotificationSink interface {
	Send(ctx context.Context, message string) error
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSink sets the sink that receives alerts and summaries.
func WithSink(s NotificationSink) Option {
	return func(a *Aggregator) { a.sink = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Aggregator) { a.logger = l }
}

// WithListener registers a callback invoked for every recorded finding,
// outside the aggregator lock.
func WithListener(fn func(Finding)) Option {
	return func(a *Aggregator) { a.listeners = append(a.listeners, fn) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// Aggregator is the single owner of the findings of one scan. It is safe
// for concurrent use.
type Aggregator struct {
	id        string
	sink      NotificationSink
	logger    *slog.Logger
	listeners []func(Finding)
	now       func() time.Time

	mu       sync.Mutex
	findings []Finding
	stats    Statistics
}

// NewAggregator creates an empty aggregator with a fresh scan ID.
func NewAggregator(opts ...Option) *Aggregator {
	a := &Aggregator{
		id:     uuid.NewString(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the scan ID.
func (a *Aggregator) ID() string { return a.id }

// AddFinding records a finding. An unknown severity returns
// ErrInvalidSeverity and leaves the aggregator unchanged. CRITICAL and HIGH
// findings are pushed to the sink before AddFinding returns; sink failures
// are logged, never returned.
func (a *Aggregator) AddFinding(ctx context.Context, typ Type, severity string, url string, d Detail) (Finding, error) {
	sev, err := ParseSeverity(severity)
	if err != nil {
		return Finding{}, err
	}

	f := Finding{
		Timestamp:   a.now(),
		Type:        typ,
		Severity:    sev,
		URL:         url,
		Payload:     d.Payload,
		Description: d.Description,
		Evidence:    truncate(d.Evidence, MaxEvidence),
	}

	a.mu.Lock()
	a.findings = append(a.findings, f)
	a.stats.add(sev)
	a.mu.Unlock()

	a.logger.Warn("finding recorded",
		"type", string(typ),
		"severity", string(sev),
		"url", url,
	)

	for _, fn := range a.listeners {
		fn(f)
	}

	if sev.Alerting() && a.sink != nil {
		if err := a.sink.Send(ctx, AlertMessage(f)); err != nil {
			a.logger.Error("alert delivery failed", "type", string(typ), "error", err)
		}
	}

	return f, nil
}

// Clear drops every finding and resets the statistics.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.findings = nil
	a.stats = Statistics{}
}

// Findings returns a copy of the findings in insertion order.
func (a *Aggregator) Findings() []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Finding, len(a.findings))
	copy(out, a.findings)
	return out
}

// Stats returns the current statistics.
func (a *Aggregator) Stats() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// BySeverity returns the findings of the given severity, matched
// case-insensitively. An unknown severity yields nil.
func (a *Aggregator) BySeverity(severity string) []Finding {
	sev, err := ParseSeverity(severity)
	if err != nil {
		return nil
	}
	return a.filter(func(f Finding) bool { return f.Severity == sev })
}

// ByType returns the findings of the given type.
func (a *Aggregator) ByType(typ Type) []Finding {
	return a.filter(func(f Finding) bool { return f.Type == typ })
}

func (a *Aggregator) filter(keep func(Finding) bool) []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Finding
	for _, f := range a.findings {
		if keep(f) {
			out = append(out, f)
		}
	}
	return out
}

// Report snapshots the aggregator for target.
func (a *Aggregator) Report(target string) *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	fs := make([]Finding, len(a.findings))
	copy(fs, a.findings)
	return &Report{
		ScanInfo: ScanInfo{
			ID:            a.id,
			Timestamp:     a.now(),
			Target:        target,
			TotalFindings: a.stats.Total,
		},
		Statistics: a.stats,
		Findings:   fs,
	}
}

// SummaryMessage formats the end-of-scan summary for target.
func (a *Aggregator) SummaryMessage(target string) string {
	return SummaryMessage(target, a.Stats(), a.now())
}

// SendSummary pushes the summary message to the sink, if one is set.
func (a *Aggregator) SendSummary(ctx context.Context, target string) error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Send(ctx, a.SummaryMessage(target))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
