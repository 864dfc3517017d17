package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/0x6d61/vulnprobe/internal/detector"
	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// MFAResult is the outcome of an MFA token sweep.
type MFAResult struct {
	Attempts int
	Token    string
}

// Bypassed reports whether a token was accepted.
func (r *MFAResult) Bypassed() bool { return r.Token != "" }

// MFAProber submits candidate one-time tokens to an MFA verification form.
type MFAProber struct {
	env
}

// NewMFAProber creates a prober. recorder may be nil.
func NewMFAProber(client transport.Client, recorder Recorder, opts ...Option) *MFAProber {
	return &MFAProber{env: newEnv(client, recorder, opts)}
}

// Probe posts token=<candidate> to mfaURL for each token (the catalog when
// tokens is empty) and stops at the first 2xx response whose body reports
// success.
func (m *MFAProber) Probe(ctx context.Context, mfaURL string, tokens []string) (*MFAResult, error) {
	if len(tokens) == 0 {
		tokens = payload.MFATokens()
	}

	limiter := m.limiterFor(InjectionDelay)
	result := &MFAResult{}

	for i, token := range tokens {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("mfa sweep interrupted: %w", err)
		}
		m.progress(Progress{Sweep: "mfa", Done: i + 1, Total: len(tokens), Label: "token " + token})

		req := &transport.Request{
			Method:      http.MethodPost,
			URL:         mfaURL,
			Body:        url.Values{"token": {token}}.Encode(),
			ContentType: "application/x-www-form-urlencoded",
			Timeout:     ProbeTimeout,
		}
		resp, elapsed, netErr, ok := m.roundTrip(ctx, limiter, req)
		if !ok {
			break
		}
		result.Attempts++

		if netErr != nil {
			m.observe("mfa", failureOutcome(netErr), elapsed)
			m.logger.Warn("mfa attempt failed", "url", mfaURL, "kind", netErr.Kind.String(), "error", netErr.Err)
			continue
		}
		if !is2xx(resp.StatusCode) || !detector.ClassifyMFABypass(resp.BodyString(), token).Vulnerable {
			m.observe("mfa", OutcomeClean, elapsed)
			continue
		}

		m.observe("mfa", OutcomeVulnerable, elapsed)
		result.Token = token
		m.logger.Warn("mfa bypass confirmed", "url", mfaURL, "token", token)
		m.record(ctx, findings.MFABypass, findings.Critical, mfaURL, findings.Detail{
			Payload:     "token=" + token,
			Description: "MFA token accepted: " + token,
			Evidence:    resp.BodyString(),
		})
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("mfa sweep interrupted: %w", err)
	}
	return result, nil
}
