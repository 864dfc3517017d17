package engine

import (
	"context"
	"fmt"
	"net/http"

	"github.com/0x6d61/vulnprobe/internal/detector"
	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// maxWAFPayloads bounds how many WAF payloads one sweep tries.
const maxWAFPayloads = 10

// HeaderTechnique is a named set of request headers that may convince a
// filter the request comes from a trusted origin.
type HeaderTechnique struct {
	Name    string
	Headers func(target string) map[string]string
}

// HeaderTechniques returns the header sets tried for every WAF payload, in
// order.
func HeaderTechniques() []HeaderTechnique {
	return []HeaderTechnique{
		{Name: "X-Forwarded Headers", Headers: func(string) map[string]string {
			return map[string]string{
				"X-Forwarded-For":  "127.0.0.1",
				"X-Forwarded-Host": "localhost",
				"X-Original-URL":   "/admin",
				"X-Rewrite-URL":    "/admin",
			}
		}},
		{Name: "X-Originating-IP", Headers: func(string) map[string]string {
			return map[string]string{
				"X-Originating-IP": "127.0.0.1",
				"X-Remote-IP":      "127.0.0.1",
				"X-Remote-Addr":    "127.0.0.1",
			}
		}},
		{Name: "X-Client-IP", Headers: func(string) map[string]string {
			return map[string]string{
				"X-Client-IP":    "127.0.0.1",
				"True-Client-IP": "127.0.0.1",
				"Client-IP":      "127.0.0.1",
			}
		}},
		{Name: "Custom User-Agent", Headers: func(string) map[string]string {
			return map[string]string{
				"User-Agent": "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			}
		}},
		{Name: "Referer Bypass", Headers: func(target string) map[string]string {
			return map[string]string{
				"Referer":   target,
				"X-Referer": target,
			}
		}},
	}
}

// WAFBypass is one successful payload and the technique that got through.
type WAFBypass struct {
	Payload   string
	Technique string
}

// WAFResult is the outcome of a WAF sweep.
type WAFResult struct {
	Attempts int
	Bypasses []WAFBypass
}

// Bypassed reports whether any payload got through.
func (r *WAFResult) Bypassed() bool { return len(r.Bypasses) > 0 }

// WAFProber tries header-based filter bypasses against a protected URL.
type WAFProber struct {
	env
	techniques []HeaderTechnique
}

// NewWAFProber creates a prober. recorder may be nil.
func NewWAFProber(client transport.Client, recorder Recorder, opts ...Option) *WAFProber {
	return &WAFProber{
		env:        newEnv(client, recorder, opts),
		techniques: HeaderTechniques(),
	}
}

// Probe runs the sweep against adminURL with up to the first ten payloads
// (the catalog when payloads is empty). The payload only labels the attempt;
// the bypass is carried by the headers. For each payload the techniques
// are tried in order until one returns a 2xx page with a bypass indicator.
func (w *WAFProber) Probe(ctx context.Context, adminURL string, payloads []string) (*WAFResult, error) {
	if len(payloads) == 0 {
		payloads = payload.WAFBypass()
	}
	if len(payloads) > maxWAFPayloads {
		payloads = payloads[:maxWAFPayloads]
	}

	limiter := w.limiterFor(WAFDelay)
	result := &WAFResult{}

	for i, p := range payloads {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("waf sweep interrupted: %w", err)
		}
		w.progress(Progress{
			Sweep: "waf",
			Done:  i + 1,
			Total: len(payloads),
			Label: fmt.Sprintf("testing payload %d/%d", i+1, len(payloads)),
		})

		technique, tried := w.tryPayload(ctx, limiter, adminURL, p)
		result.Attempts += tried
		if technique == "" {
			continue
		}

		result.Bypasses = append(result.Bypasses, WAFBypass{Payload: p, Technique: technique})
		w.logger.Warn("waf bypass confirmed", "url", adminURL, "technique", technique, "payload", p)
		w.record(ctx, findings.WAFBypass, findings.High, adminURL, findings.Detail{
			Payload:     p,
			Description: "WAF bypass successful using " + technique,
			Evidence:    "Access granted to protected resource",
		})
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("waf sweep interrupted: %w", err)
	}
	return result, nil
}

// tryPayload returns the first technique that bypassed the filter and the
// number of requests sent.
func (w *WAFProber) tryPayload(ctx context.Context, limiter transport.RateLimiter, target, p string) (string, int) {
	tried := 0
	for _, tech := range w.techniques {
		req := &transport.Request{
			Method:  http.MethodGet,
			URL:     target,
			Headers: tech.Headers(target),
			Timeout: ProbeTimeout,
		}
		resp, elapsed, netErr, ok := w.roundTrip(ctx, limiter, req)
		if !ok {
			return "", tried
		}
		tried++

		if netErr != nil {
			w.observe("waf", failureOutcome(netErr), elapsed)
			w.logger.Debug("waf attempt failed", "technique", tech.Name, "kind", netErr.Kind.String(), "error", netErr.Err)
			continue
		}
		if !is2xx(resp.StatusCode) {
			w.observe("waf", OutcomeClean, elapsed)
			w.logger.Debug("waf attempt blocked", "technique", tech.Name, "status", resp.StatusCode)
			continue
		}
		if v := detector.ClassifyWAFBypass(resp.BodyString(), p); v.Vulnerable {
			w.observe("waf", OutcomeVulnerable, elapsed)
			return tech.Name, tried
		}
		w.observe("waf", OutcomeClean, elapsed)
	}
	w.logger.Debug("all waf techniques failed", "url", target, "payload", p)
	return "", tried
}
