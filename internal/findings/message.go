package findings

import (
	"fmt"
	"strings"
	"time"
)

// AlertMessage formats the immediate notification for f. Evidence is cut to
// 200 characters and always followed by "...".
func AlertMessage(f Finding) string {
	var b strings.Builder
	b.WriteString("VULNERABILITY ALERT\n\n")
	fmt.Fprintf(&b, "Type: %s\n", f.Type)
	fmt.Fprintf(&b, "Severity: %s\n", f.Severity)
	fmt.Fprintf(&b, "URL: %s\n", f.URL)
	fmt.Fprintf(&b, "Time: %s\n\n", f.Timestamp.Format(time.RFC3339))

	if f.Payload != "" {
		fmt.Fprintf(&b, "Payload: %s\n", f.Payload)
	}
	if f.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Description)
	}
	if f.Evidence != "" {
		fmt.Fprintf(&b, "Evidence: %s...\n", truncate(f.Evidence, alertEvidence))
	}
	return b.String()
}

// SummaryMessage formats an end-of-scan summary.
func SummaryMessage(target string, s Statistics, at time.Time) string {
	if s.Total == 0 {
		return fmt.Sprintf("Scan completed for %s\nNo vulnerabilities found.", target)
	}

	var b strings.Builder
	b.WriteString("SCAN SUMMARY\n\n")
	fmt.Fprintf(&b, "Target: %s\n", target)
	fmt.Fprintf(&b, "Total Findings: %d\n\n", s.Total)
	b.WriteString("Breakdown:\n")
	fmt.Fprintf(&b, "Critical: %d\n", s.Critical)
	fmt.Fprintf(&b, "High: %d\n", s.High)
	fmt.Fprintf(&b, "Medium: %d\n", s.Medium)
	fmt.Fprintf(&b, "Low: %d\n", s.Low)
	fmt.Fprintf(&b, "Info: %d\n\n", s.Info)
	fmt.Fprintf(&b, "Report generated at: %s\n", at.Format("2006-01-02 15:04:05"))
	return b.String()
}
