package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/0x6d61/vulnprobe/internal/detector"
	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// ErrTargetUnreachable is returned when a sweep dispatched trials but not a
// single response came back and nothing was found.
var ErrTargetUnreachable = errors.New("target unreachable")

// Sweep describes one injection class: what to send and how to judge it.
type Sweep struct {
	Name      string
	Type      findings.Type
	Severity  findings.Severity
	Rule      detector.Rule
	Payloads  []string
	Encodings []payload.Scheme
	Timeout   time.Duration
	Delay     time.Duration

	// TimeBased turns a timed-out trial whose payload carries a stall
	// marker into a finding.
	TimeBased bool

	// Describe renders the finding description.
	Describe func(param string, enc payload.Scheme) string

	// Hint optionally annotates a positive response.
	Hint func(body []byte) string
}

// SQLSweep returns the SQL injection sweep.
func SQLSweep() Sweep {
	return Sweep{
		Name:      "sqli",
		Type:      findings.SQLInjection,
		Severity:  findings.Critical,
		Rule:      detector.ClassifySQL,
		Payloads:  payload.SQLInjection(),
		Encodings: []payload.Scheme{payload.None, payload.URL, payload.DoubleURL},
		Timeout:   InjectionTimeout,
		Delay:     InjectionDelay,
		TimeBased: true,
		Describe: func(param string, enc payload.Scheme) string {
			return fmt.Sprintf("Vulnerable parameter: %s, Encoding: %s", param, enc)
		},
		Hint: func(body []byte) string {
			if names := detector.IdentifyDBMS(body); len(names) > 0 {
				return "DBMS: " + strings.Join(names, ", ")
			}
			return ""
		},
	}
}

// XSSSweep returns the reflected XSS sweep.
func XSSSweep() Sweep {
	return Sweep{
		Name:      "xss",
		Type:      findings.ReflectedXSS,
		Severity:  findings.High,
		Rule:      detector.ClassifyXSS,
		Payloads:  payload.XSS(),
		Encodings: []payload.Scheme{payload.None, payload.URL, payload.HTMLEntities},
		Timeout:   InjectionTimeout,
		Delay:     InjectionDelay,
		Describe: func(param string, _ payload.Scheme) string {
			return "Reflected XSS in parameter: " + param
		},
	}
}

// CommandSweep returns the OS command injection sweep. Payloads are sent
// unencoded.
func CommandSweep() Sweep {
	return Sweep{
		Name:      "cmd",
		Type:      findings.CommandInjection,
		Severity:  findings.Critical,
		Rule:      detector.ClassifyCommand,
		Payloads:  payload.Command(),
		Encodings: []payload.Scheme{payload.Identity},
		Timeout:   InjectionTimeout,
		Delay:     InjectionDelay,
		Describe: func(param string, _ payload.Scheme) string {
			return "Command injection in parameter: " + param
		},
	}
}

// SuccessfulTrial identifies a trial that produced a finding.
type SuccessfulTrial struct {
	Param     string
	Payload   string
	Encoding  payload.Scheme
	Method    string
	TimeBased bool
}

// InjectionSummary is the outcome of one sweep.
type InjectionSummary struct {
	Sweep string

	// Attempts counts dispatched trials, delivered or not.
	Attempts int

	// Delivered counts trials that got a response.
	Delivered int

	// VulnerableParams is sorted and free of duplicates.
	VulnerableParams []string

	Successful []SuccessfulTrial
}

// Found returns the number of successful trials.
func (s *InjectionSummary) Found() int { return len(s.Successful) }

// Injector fires sweeps at a target and forwards positives to a Recorder.
type Injector struct {
	env
}

// NewInjector creates an injector. recorder may be nil.
func NewInjector(client transport.Client, recorder Recorder, opts ...Option) *Injector {
	return &Injector{env: newEnv(client, recorder, opts)}
}

// Run sends every trial of sweep against target. When params is empty the
// parameters are discovered from target. Per-trial network failures never
// abort the sweep; cancellation of ctx does, at a trial boundary.
func (in *Injector) Run(ctx context.Context, target string, params []string, sweep Sweep, method string) (*InjectionSummary, error) {
	if len(params) == 0 {
		params = detector.DiscoverParameters(target)
	}
	encodings := sweep.Encodings
	if len(encodings) == 0 {
		encodings = []payload.Scheme{payload.Identity}
	}
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)
	for _, enc := range encodings {
		if _, ok := payload.Lookup(enc); !ok {
			in.logger.Warn("unknown encoding scheme, sending payload unencoded", "sweep", sweep.Name, "scheme", string(enc))
		}
	}

	total := len(params) * len(sweep.Payloads) * len(encodings)
	in.logger.Info("starting sweep",
		"sweep", sweep.Name,
		"target", target,
		"method", method,
		"parameters", len(params),
		"trials", total,
	)

	limiter := in.limiterFor(sweep.Delay)
	trials := Trials(target, params, sweep.Payloads, encodings, method)
	results := runPool(ctx, in.workers, in.logger, trials, func(ctx context.Context, t Trial) (ProbeResult, bool) {
		return in.probe(ctx, limiter, t, sweep.Timeout)
	})

	summary := &InjectionSummary{Sweep: sweep.Name}
	vulnerable := make(map[string]struct{})

	for r := range results {
		summary.Attempts++
		in.progress(Progress{
			Sweep: sweep.Name,
			Done:  summary.Attempts,
			Total: total,
			Label: fmt.Sprintf("testing %s with %s encoding", r.Parameter, r.Encoding),
		})

		if !r.Delivered() {
			if sweep.TimeBased && r.Err.Timeout() {
				if v := detector.ClassifyTimeout(r.Payload); v.Vulnerable {
					in.observe(sweep.Name, OutcomeVulnerable, r.Elapsed)
					in.report(ctx, sweep, r, v, true)
					summary.Successful = append(summary.Successful, successOf(r, true))
					vulnerable[r.Parameter] = struct{}{}
					continue
				}
			}
			in.observe(sweep.Name, failureOutcome(r.Err), r.Elapsed)
			in.logger.Debug("trial not delivered",
				"sweep", sweep.Name,
				"parameter", r.Parameter,
				"kind", r.Err.Kind.String(),
				"error", r.Err.Err,
			)
			continue
		}

		summary.Delivered++
		v := sweep.Rule(string(r.Body), r.Payload)
		if !v.Vulnerable {
			in.observe(sweep.Name, OutcomeClean, r.Elapsed)
			continue
		}

		in.observe(sweep.Name, OutcomeVulnerable, r.Elapsed)
		in.report(ctx, sweep, r, v, false)
		summary.Successful = append(summary.Successful, successOf(r, false))
		vulnerable[r.Parameter] = struct{}{}
	}

	for p := range vulnerable {
		summary.VulnerableParams = append(summary.VulnerableParams, p)
	}
	sort.Strings(summary.VulnerableParams)

	in.logger.Info("sweep finished",
		"sweep", sweep.Name,
		"attempts", summary.Attempts,
		"delivered", summary.Delivered,
		"found", summary.Found(),
	)

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("%s sweep interrupted: %w", sweep.Name, err)
	}
	if summary.Attempts > 0 && summary.Delivered == 0 && summary.Found() == 0 {
		return summary, fmt.Errorf("%w: %s: %d attempts, no response", ErrTargetUnreachable, target, summary.Attempts)
	}
	return summary, nil
}

// probe dispatches one trial.
func (in *Injector) probe(ctx context.Context, limiter transport.RateLimiter, t Trial, timeout time.Duration) (ProbeResult, bool) {
	req, err := t.Request(timeout)
	if err != nil {
		return ProbeResult{
			Trial: t,
			Err:   &transport.NetworkError{Kind: transport.KindOther, URL: t.TargetURL, Err: err},
		}, true
	}

	resp, elapsed, netErr, ok := in.roundTrip(ctx, limiter, req)
	if !ok {
		return ProbeResult{}, false
	}
	r := ProbeResult{Trial: t, Elapsed: elapsed, Err: netErr}
	if resp != nil {
		r.StatusCode = resp.StatusCode
		r.Body = resp.Body
	}
	return r, true
}

// report records the finding for a positive trial.
func (in *Injector) report(ctx context.Context, sweep Sweep, r ProbeResult, v detector.Verdict, timeBased bool) {
	desc := ""
	if sweep.Describe != nil {
		desc = sweep.Describe(r.Parameter, r.Encoding)
	}
	if timeBased {
		desc = fmt.Sprintf("Time-based blind injection in parameter: %s (no response within %s, marker %s)",
			r.Parameter, sweep.Timeout, v.Marker)
	} else if sweep.Hint != nil {
		if hint := sweep.Hint(r.Body); hint != "" {
			desc += ", " + hint
		}
	}

	in.logger.Warn("injection confirmed",
		"sweep", sweep.Name,
		"parameter", r.Parameter,
		"encoding", string(r.Encoding),
		"marker", v.Marker,
		"time_based", timeBased,
	)

	in.record(ctx, sweep.Type, sweep.Severity, r.TargetURL, findings.Detail{
		Payload:     r.Parameter + "=" + r.Encoded(),
		Description: desc,
		Evidence:    string(r.Body),
	})
}

func successOf(r ProbeResult, timeBased bool) SuccessfulTrial {
	return SuccessfulTrial{
		Param:     r.Parameter,
		Payload:   r.Payload,
		Encoding:  r.Encoding,
		Method:    r.Method,
		TimeBased: timeBased,
	}
}
