package findings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink captures every message and can be told to fail.
type recordingSink struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *recordingSink) Send(_ context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestAddFindingCountsAndAlerts(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(WithSink(sink), WithClock(fixedClock()))
	ctx := context.Background()

	if _, err := a.AddFinding(ctx, SQLInjection, "CRITICAL", "http://t/search", Detail{}); err != nil {
		t.Fatalf("AddFinding: %v", err)
	}
	if _, err := a.AddFinding(ctx, ReflectedXSS, "HIGH", "http://t/search", Detail{}); err != nil {
		t.Fatalf("AddFinding: %v", err)
	}

	st := a.Stats()
	if st.Critical != 1 || st.High != 1 || st.Total != 2 {
		t.Errorf("Stats = %+v, want critical=1 high=1 total=2", st)
	}
	if sink.count() != 2 {
		t.Errorf("sink got %d messages, want 2", sink.count())
	}

	a.Clear()
	if got := a.Stats(); got != (Statistics{}) {
		t.Errorf("Stats after Clear = %+v, want zero", got)
	}
	if len(a.Findings()) != 0 {
		t.Error("Findings after Clear should be empty")
	}
}

func TestAddFindingSeverityNormalised(t *testing.T) {
	a := NewAggregator()
	f, err := a.AddFinding(context.Background(), EndpointDiscovery, "medium", "http://t/admin", Detail{})
	if err != nil {
		t.Fatalf("AddFinding: %v", err)
	}
	if f.Severity != Medium {
		t.Errorf("Severity = %q, want MEDIUM", f.Severity)
	}
	if a.Stats().Medium != 1 {
		t.Errorf("Medium = %d, want 1", a.Stats().Medium)
	}
}

func TestAddFindingInvalidSeverity(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(WithSink(sink))

	_, err := a.AddFinding(context.Background(), SQLInjection, "urgent", "http://t/", Detail{})
	if !errors.Is(err, ErrInvalidSeverity) {
		t.Fatalf("err = %v, want ErrInvalidSeverity", err)
	}
	if a.Stats().Total != 0 || len(a.Findings()) != 0 || sink.count() != 0 {
		t.Error("invalid severity must not change state or notify")
	}
}

func TestLowSeveritiesDoNotAlert(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(WithSink(sink))
	for _, sev := range []string{"MEDIUM", "LOW", "INFO"} {
		if _, err := a.AddFinding(context.Background(), EndpointDiscovery, sev, "http://t/", Detail{}); err != nil {
			t.Fatalf("AddFinding(%s): %v", sev, err)
		}
	}
	if sink.count() != 0 {
		t.Errorf("sink got %d messages, want 0", sink.count())
	}
	if a.Stats().Total != 3 {
		t.Errorf("Total = %d, want 3", a.Stats().Total)
	}
}

func TestSinkFailureIsSwallowed(t *testing.T) {
	sink := &recordingSink{err: errors.New("telegram down")}
	a := NewAggregator(WithSink(sink))

	_, err := a.AddFinding(context.Background(), CommandInjection, "CRITICAL", "http://t/", Detail{})
	if err != nil {
		t.Fatalf("sink error leaked: %v", err)
	}
	if a.Stats().Critical != 1 {
		t.Error("finding should be recorded despite sink failure")
	}
}

func TestEvidenceTruncation(t *testing.T) {
	sink := &recordingSink{}
	a := NewAggregator(WithSink(sink))

	long := strings.Repeat("x", 800)
	f, _ := a.AddFinding(context.Background(), SQLInjection, "CRITICAL", "http://t/", Detail{Evidence: long})
	if len(f.Evidence) != MaxEvidence {
		t.Errorf("stored evidence = %d chars, want %d", len(f.Evidence), MaxEvidence)
	}

	msg := sink.messages[0]
	want := "Evidence: " + strings.Repeat("x", 200) + "...\n"
	if !strings.Contains(msg, want) {
		t.Errorf("alert evidence not cut to 200 chars:\n%s", msg)
	}
	if strings.Contains(msg, strings.Repeat("x", 201)) {
		t.Error("alert quotes more than 200 evidence chars")
	}
}

func TestAlertMessageFields(t *testing.T) {
	f := Finding{
		Timestamp:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Type:        SQLInjection,
		Severity:    Critical,
		URL:         "http://t/search",
		Payload:     "id=%27",
		Description: "Vulnerable parameter: id, Encoding: url",
	}
	msg := AlertMessage(f)
	for _, want := range []string{
		"Type: SQL Injection",
		"Severity: CRITICAL",
		"URL: http://t/search",
		"Time: 2024-05-01T12:00:00Z",
		"Payload: id=%27",
		"Description: Vulnerable parameter: id",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("alert missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "Evidence:") {
		t.Error("empty evidence should be omitted")
	}
}

func TestFilters(t *testing.T) {
	a := NewAggregator()
	ctx := context.Background()
	a.AddFinding(ctx, SQLInjection, "CRITICAL", "http://t/1", Detail{})
	a.AddFinding(ctx, EndpointDiscovery, "LOW", "http://t/2", Detail{})
	a.AddFinding(ctx, EndpointDiscovery, "MEDIUM", "http://t/3", Detail{})

	if got := a.BySeverity("low"); len(got) != 1 || got[0].URL != "http://t/2" {
		t.Errorf("BySeverity(low) = %+v", got)
	}
	if got := a.ByType(EndpointDiscovery); len(got) != 2 {
		t.Errorf("ByType(EndpointDiscovery) = %d findings, want 2", len(got))
	}
	if got := a.BySeverity("bogus"); got != nil {
		t.Errorf("BySeverity(bogus) = %+v, want nil", got)
	}
}

func TestReportSnapshot(t *testing.T) {
	a := NewAggregator(WithClock(fixedClock()))
	a.AddFinding(context.Background(), WAFBypass, "HIGH", "http://t/admin", Detail{Payload: "/*!50000admin*/"})

	r := a.Report("http://t")
	if r.ScanInfo.ID != a.ID() || r.ScanInfo.ID == "" {
		t.Errorf("ScanInfo.ID = %q, want %q", r.ScanInfo.ID, a.ID())
	}
	if r.ScanInfo.Target != "http://t" || r.ScanInfo.TotalFindings != 1 {
		t.Errorf("ScanInfo = %+v", r.ScanInfo)
	}
	if r.Statistics.High != 1 || len(r.Findings) != 1 {
		t.Errorf("report = %+v", r)
	}

	// The snapshot is detached from later mutations.
	a.Clear()
	if len(r.Findings) != 1 {
		t.Error("Clear mutated an existing report")
	}
}

func TestSummaryMessage(t *testing.T) {
	a := NewAggregator(WithClock(fixedClock()))
	if got := a.SummaryMessage("http://t"); !strings.Contains(got, "No vulnerabilities found") {
		t.Errorf("empty summary = %q", got)
	}

	a.AddFinding(context.Background(), SQLInjection, "CRITICAL", "http://t/", Detail{})
	a.AddFinding(context.Background(), EndpointDiscovery, "LOW", "http://t/", Detail{})
	got := a.SummaryMessage("http://t")
	for _, want := range []string{"Total Findings: 2", "Critical: 1", "Low: 1", "High: 0", "2024-05-01 12:00:00"} {
		if !strings.Contains(got, want) {
			t.Errorf("summary missing %q:\n%s", want, got)
		}
	}
}

func TestSendSummary(t *testing.T) {
	if err := NewAggregator().SendSummary(context.Background(), "http://t"); err != nil {
		t.Errorf("SendSummary without sink: %v", err)
	}

	sink := &recordingSink{}
	a := NewAggregator(WithSink(sink))
	if err := a.SendSummary(context.Background(), "http://t"); err != nil {
		t.Fatalf("SendSummary: %v", err)
	}
	if sink.count() != 1 {
		t.Errorf("sink got %d messages, want 1", sink.count())
	}
}

func TestListenerAndConcurrency(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	a := NewAggregator(WithListener(func(Finding) {
		mu.Lock()
		seen++
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sev := "LOW"
			if i%2 == 0 {
				sev = "INFO"
			}
			a.AddFinding(context.Background(), EndpointDiscovery, sev, "http://t/", Detail{})
		}(i)
	}
	wg.Wait()

	st := a.Stats()
	if st.Total != 50 || st.Low+st.Info != st.Total {
		t.Errorf("Stats = %+v, want total 50 split over low/info", st)
	}
	if seen != 50 {
		t.Errorf("listener saw %d findings, want 50", seen)
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in      string
		want    Severity
		wantErr bool
	}{
		{"critical", Critical, false},
		{" High ", High, false},
		{"INFO", Info, false},
		{"", "", true},
		{"severe", "", true},
	}
	for _, tt := range tests {
		got, err := ParseSeverity(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSeverity(%q) = %q, %v", tt.in, got, err)
		}
	}
}
