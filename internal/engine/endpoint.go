package engine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/transport"
)

// EndpointRecord describes an interesting response to a candidate path.
type EndpointRecord struct {
	URL           string `json:"url"`
	StatusCode    int    `json:"status"`
	Location      string `json:"location,omitempty"`
	ContentLength int    `json:"content_length"`
	Server        string `json:"server,omitempty"`
	Title         string `json:"title,omitempty"`
	Details       string `json:"details"`
}

// interestingStatus lists the status codes that make a path worth keeping.
var interestingStatus = map[int]string{
	http.StatusOK:               "OK",
	http.StatusMovedPermanently: "",
	http.StatusFound:            "",
	http.StatusUnauthorized:     "Requires Authentication",
	http.StatusForbidden:        "Forbidden (exists but no access)",
}

// Enumerator probes a fixed list of well-known paths under a base URL.
type Enumerator struct {
	env
}

// NewEnumerator creates an enumerator. recorder may be nil.
func NewEnumerator(client transport.Client, recorder Recorder, opts ...Option) *Enumerator {
	return &Enumerator{env: newEnv(client, recorder, opts)}
}

type enumJob struct {
	index int
	url   string
}

type enumResult struct {
	index  int
	record EndpointRecord
	keep   bool
}

// Enumerate requests every path under baseURL (the built-in candidate list
// when paths is empty) with redirects disabled and returns the interesting
// responses in candidate order. Findings are recorded as responses arrive:
// status 200 records become MEDIUM findings, 401 and 403 records LOW
// findings. Unreachable paths are logged and skipped.
func (e *Enumerator) Enumerate(ctx context.Context, baseURL string, paths []string) ([]EndpointRecord, error) {
	if len(paths) == 0 {
		paths = payload.Endpoints()
	}

	jobs := func(yield func(enumJob) bool) {
		for i, p := range paths {
			if !yield(enumJob{index: i, url: JoinPath(baseURL, p)}) {
				return
			}
		}
	}

	e.logger.Info("starting endpoint enumeration", "base", baseURL, "candidates", len(paths))

	limiter := e.limiterFor(0)
	results := runPool(ctx, e.workers, e.logger, jobs, func(ctx context.Context, j enumJob) (enumResult, bool) {
		return e.probe(ctx, limiter, j)
	})

	var kept []enumResult
	done := 0
	for r := range results {
		done++
		e.progress(Progress{Sweep: "enum", Done: done, Total: len(paths), Label: r.record.URL})
		if r.keep {
			e.recordEndpoint(ctx, r.record)
			kept = append(kept, r)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].index < kept[j].index })

	records := make([]EndpointRecord, 0, len(kept))
	for _, r := range kept {
		records = append(records, r.record)
	}

	e.logger.Info("endpoint enumeration finished", "checked", done, "interesting", len(records))

	if err := ctx.Err(); err != nil {
		return records, fmt.Errorf("enumeration interrupted: %w", err)
	}
	return records, nil
}

func (e *Enumerator) probe(ctx context.Context, limiter transport.RateLimiter, j enumJob) (enumResult, bool) {
	follow := false
	req := &transport.Request{
		Method:          http.MethodGet,
		URL:             j.url,
		Timeout:         ProbeTimeout,
		FollowRedirects: &follow,
	}

	resp, elapsed, netErr, ok := e.roundTrip(ctx, limiter, req)
	if !ok {
		return enumResult{}, false
	}
	res := enumResult{index: j.index, record: EndpointRecord{URL: j.url}}
	if netErr != nil {
		e.observe("enum", failureOutcome(netErr), elapsed)
		e.logger.Warn("endpoint probe failed", "url", j.url, "kind", netErr.Kind.String(), "error", netErr.Err)
		return res, true
	}

	phrase, interesting := interestingStatus[resp.StatusCode]
	if !interesting {
		e.observe("enum", OutcomeClean, elapsed)
		return res, true
	}
	e.observe("enum", OutcomeVulnerable, elapsed)

	rec := EndpointRecord{
		URL:           j.url,
		StatusCode:    resp.StatusCode,
		ContentLength: len(resp.Body),
		Server:        resp.Headers.Get("Server"),
		Title:         pageTitle(resp.Body),
	}

	var details []string
	if phrase != "" {
		details = append(details, phrase)
	} else {
		rec.Location = resp.Headers.Get("Location")
		loc := rec.Location
		if loc == "" {
			loc = "Unknown"
		}
		details = append(details, "Redirect to "+loc)
	}
	if rec.ContentLength > 0 {
		details = append(details, fmt.Sprintf("%d bytes", rec.ContentLength))
	}
	if rec.Server != "" {
		details = append(details, "Server: "+rec.Server)
	}
	if rec.Title != "" {
		details = append(details, "Title: "+rec.Title)
	}
	rec.Details = strings.Join(details, " | ")

	e.logger.Info("endpoint found", "url", rec.URL, "status", rec.StatusCode, "details", rec.Details)

	res.record = rec
	res.keep = true
	return res, true
}

// recordEndpoint turns reachable and protected endpoints into findings.
func (e *Enumerator) recordEndpoint(ctx context.Context, rec EndpointRecord) {
	var sev findings.Severity
	switch rec.StatusCode {
	case http.StatusOK:
		sev = findings.Medium
	case http.StatusUnauthorized, http.StatusForbidden:
		sev = findings.Low
	default:
		return
	}
	e.record(ctx, findings.EndpointDiscovery, sev, rec.URL, findings.Detail{
		Description: fmt.Sprintf("Status: %d", rec.StatusCode),
		Evidence:    rec.Details,
	})
}

// JoinPath joins base and path with exactly one slash between them.
func JoinPath(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// pageTitle returns the trimmed text of the first <title> element.
func pageTitle(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	z := html.NewTokenizer(bytes.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			name, _ := z.TagName()
			if !bytes.Equal(name, []byte("title")) {
				continue
			}
			if z.Next() != html.TextToken {
				return ""
			}
			return strings.Join(strings.Fields(string(z.Text())), " ")
		}
	}
}
