package engine

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/0x6d61/vulnprobe/internal/payload"
)

func TestTrialsOrder(t *testing.T) {
	var got []Trial
	for tr := range Trials("http://t/s", []string{"id", "q"}, []string{"A", "B"}, []payload.Scheme{payload.None, payload.URL}, "GET") {
		got = append(got, tr)
	}
	if len(got) != 8 {
		t.Fatalf("len = %d, want 8", len(got))
	}

	want := []struct {
		param, p string
		enc      payload.Scheme
	}{
		{"id", "A", payload.None}, {"id", "A", payload.URL},
		{"id", "B", payload.None}, {"id", "B", payload.URL},
		{"q", "A", payload.None}, {"q", "A", payload.URL},
		{"q", "B", payload.None}, {"q", "B", payload.URL},
	}
	for i, w := range want {
		if got[i].Parameter != w.param || got[i].Payload != w.p || got[i].Encoding != w.enc {
			t.Errorf("trial %d = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestTrialsStopEarly(t *testing.T) {
	n := 0
	for range Trials("http://t", []string{"a", "b"}, []string{"1", "2", "3"}, []payload.Scheme{payload.None}, "GET") {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterated %d trials after break, want 2", n)
	}
}

func TestTrialRequestGETMergesQuery(t *testing.T) {
	tr := Trial{
		TargetURL: "http://t/search.php?id=1&page=2#frag",
		Parameter: "id",
		Payload:   "' OR 1=1--",
		Encoding:  payload.None,
		Method:    "GET",
	}
	req, err := tr.Request(InjectionTimeout)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	u, _ := url.Parse(req.URL)
	q := u.Query()
	if q.Get("id") != "' OR 1=1--" || q.Get("page") != "2" || len(q["id"]) != 1 {
		t.Errorf("query = %v", q)
	}
	if u.Fragment != "" {
		t.Errorf("fragment kept: %q", u.Fragment)
	}
	if req.Method != "GET" || req.Timeout != InjectionTimeout || req.Body != "" {
		t.Errorf("request = %+v", req)
	}
}

func TestTrialRequestGETEncodedValueIsQuotedAgain(t *testing.T) {
	tr := Trial{TargetURL: "http://t/s", Parameter: "q", Payload: "'", Encoding: payload.URL, Method: "GET"}
	req, _ := tr.Request(0)
	u, _ := url.Parse(req.URL)
	if got := u.Query().Get("q"); got != "%27" {
		t.Errorf("server-side value = %q, want %%27", got)
	}
}

func TestTrialRequestPOST(t *testing.T) {
	tr := Trial{TargetURL: "http://t/contact.php?x=1", Parameter: "name", Payload: "<b>", Encoding: payload.None, Method: "post"}
	req, err := tr.Request(InjectionTimeout)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if req.Method != "POST" || req.URL != "http://t/contact.php?x=1" {
		t.Errorf("method/url = %s %s", req.Method, req.URL)
	}
	form, _ := url.ParseQuery(req.Body)
	if len(form) != 1 || form.Get("name") != "<b>" {
		t.Errorf("form = %v", form)
	}
	if req.ContentType != "application/x-www-form-urlencoded" {
		t.Errorf("ContentType = %q", req.ContentType)
	}
}

func TestTrialRequestBadURL(t *testing.T) {
	tr := Trial{TargetURL: "http://[::1", Parameter: "id", Method: "GET"}
	if _, err := tr.Request(0); err == nil {
		t.Error("expected error for malformed URL")
	}
}

func TestWorkerPoolPreservesOrderWithOneWorker(t *testing.T) {
	seq := func(yield func(int) bool) {
		for i := 0; i < 50; i++ {
			if !yield(i) {
				return
			}
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := runPool(context.Background(), 1, logger, seq, func(_ context.Context, i int) (int, bool) {
		return i * 2, true
	})
	var got []int
	for r := range results {
		got = append(got, r)
	}
	for i, v := range got {
		if v != i*2 {
			t.Fatalf("result %d = %d, want %d", i, v, i*2)
		}
	}
	if len(got) != 50 {
		t.Errorf("got %d results, want 50", len(got))
	}
}

func TestWorkerPoolRecoversPanicsAndDrops(t *testing.T) {
	seq := slices.Values([]int{1, 2, 3, 4, 5, 6})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := runPool(context.Background(), 3, logger, seq, func(_ context.Context, i int) (int, bool) {
		if i == 3 {
			panic("boom")
		}
		return i, i%2 == 0
	})
	var got []int
	for r := range results {
		got = append(got, r)
	}
	slices.Sort(got)
	if !slices.Equal(got, []int{2, 4, 6}) {
		t.Errorf("results = %v, want [2 4 6]", got)
	}
}

func TestWorkerPoolStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int64
	seq := func(yield func(int) bool) {
		for i := 0; ; i++ {
			if !yield(i) {
				return
			}
		}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	results := runPool(ctx, 2, logger, seq, func(_ context.Context, i int) (int, bool) {
		if ran.Add(1) == 10 {
			cancel()
		}
		return i, true
	})
	for range results {
	}
	if n := ran.Load(); n > 20 {
		t.Errorf("ran %d jobs after cancel, want about 10", n)
	}
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{"<html><head><title>Admin</title></head></html>", "Admin"},
		{"<TITLE>\n  Sign\n  in </TITLE>", "Sign in"},
		{"<html><body>no title</body></html>", ""},
		{"<title></title>", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := pageTitle([]byte(tt.body)); got != tt.want {
			t.Errorf("pageTitle(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestJoinPath(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"http://t", "/admin", "http://t/admin"},
		{"http://t/", "/admin", "http://t/admin"},
		{"http://t/app/", "login.php", "http://t/app/login.php"},
		{"http://t//", "//x", "http://t/x"},
	}
	for _, tt := range tests {
		if got := JoinPath(tt.base, tt.path); got != tt.want {
			t.Errorf("JoinPath(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}

func TestBuiltInSweeps(t *testing.T) {
	tests := []struct {
		sweep     Sweep
		encodings []payload.Scheme
		sev       string
		timeBased bool
	}{
		{SQLSweep(), []payload.Scheme{payload.None, payload.URL, payload.DoubleURL}, "CRITICAL", true},
		{XSSSweep(), []payload.Scheme{payload.None, payload.URL, payload.HTMLEntities}, "HIGH", false},
		{CommandSweep(), []payload.Scheme{payload.Identity}, "CRITICAL", false},
	}
	for _, tt := range tests {
		t.Run(tt.sweep.Name, func(t *testing.T) {
			if !slices.Equal(tt.sweep.Encodings, tt.encodings) {
				t.Errorf("Encodings = %v, want %v", tt.sweep.Encodings, tt.encodings)
			}
			if string(tt.sweep.Severity) != tt.sev {
				t.Errorf("Severity = %s, want %s", tt.sweep.Severity, tt.sev)
			}
			if tt.sweep.TimeBased != tt.timeBased {
				t.Errorf("TimeBased = %v", tt.sweep.TimeBased)
			}
			if tt.sweep.Timeout != InjectionTimeout || tt.sweep.Delay != InjectionDelay {
				t.Errorf("budget = %v/%v", tt.sweep.Timeout, tt.sweep.Delay)
			}
			if len(tt.sweep.Payloads) == 0 || tt.sweep.Rule == nil || tt.sweep.Describe == nil {
				t.Error("sweep incomplete")
			}
		})
	}
}

func TestSQLSweepHint(t *testing.T) {
	hint := SQLSweep().Hint([]byte("ORA-00933: SQL command not properly ended"))
	if hint != "DBMS: Oracle" {
		t.Errorf("hint = %q", hint)
	}
	if SQLSweep().Hint([]byte("nothing")) != "" {
		t.Error("hint for clean body should be empty")
	}
}

func TestDefaultTargets(t *testing.T) {
	got := DefaultTargets("http://t/")
	want := Targets{
		Base:    "http://t",
		Search:  "http://t/search.php",
		Contact: "http://t/contact.php",
		Admin:   "http://t/admin",
		MFA:     "http://t/mfa",
	}
	if got != want {
		t.Errorf("DefaultTargets = %+v, want %+v", got, want)
	}
}
