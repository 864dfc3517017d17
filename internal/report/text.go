package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/vulnprobe/internal/findings"
)

const (
	doubleLine = "\u2550" // ═
	singleLine = "\u2500" // ─
	lineWidth  = 50

	textEvidence = 200
)

// TextReporter outputs plain terminal text.
type TextReporter struct {
	// Verbose controls detail level: 0=findings only, 1=+evidence excerpt,
	// 2=+full evidence.
	Verbose int
}

// Format returns "text".
func (r *TextReporter) Format() string {
	return "text"
}

// Generate writes the formatted document to w.
func (r *TextReporter) Generate(ctx context.Context, doc *Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.Report == nil {
		return fmt.Errorf("%w: empty document", ErrWrite)
	}
	rep := doc.Report

	b := &strings.Builder{}

	// Header
	doubleBar := strings.Repeat(doubleLine, lineWidth)
	singleBar := strings.Repeat(singleLine, lineWidth)

	fmt.Fprintln(b, doubleBar)
	fmt.Fprintln(b, "vulnprobe - Web Vulnerability Probe Results")
	fmt.Fprintln(b, doubleBar)

	fmt.Fprintf(b, "Scan ID:  %s\n", rep.ScanInfo.ID)
	fmt.Fprintf(b, "Target:   %s\n", rep.ScanInfo.Target)

	if s := doc.Scan; s != nil {
		fmt.Fprintf(b, "Duration: %.1fs\n", s.EndTime.Sub(s.StartTime).Seconds())
		fmt.Fprintf(b, "Requests: %d\n", s.RequestCount)

		if len(s.Modules) > 0 {
			fmt.Fprintln(b, singleBar)
			fmt.Fprintln(b, "Modules:")
			for _, m := range s.Modules {
				fmt.Fprintf(b, "  %-22s %s (%d)\n", m.Name, m.Status, m.Count)
				if m.Err != nil {
					fmt.Fprintf(b, "  %-22s error: %s\n", "", m.Err)
				}
			}
		}
	}

	if len(rep.Findings) == 0 {
		fmt.Fprintln(b, singleBar)
		fmt.Fprintln(b, "No vulnerabilities found.")
	}
	for _, f := range rep.Findings {
		fmt.Fprintln(b, singleBar)
		r.writeFinding(b, f)
	}

	// Summary
	st := rep.Statistics
	fmt.Fprintln(b, doubleBar)
	fmt.Fprintf(b, "Summary: %d finding(s): %d critical, %d high, %d medium, %d low, %d info\n",
		st.Total, st.Critical, st.High, st.Medium, st.Low, st.Info)
	fmt.Fprintln(b, doubleBar)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func (r *TextReporter) writeFinding(b *strings.Builder, f findings.Finding) {
	fmt.Fprintf(b, "[%s] %s\n", f.Severity, f.Type)
	fmt.Fprintf(b, "  URL:         %s\n", f.URL)
	if f.Payload != "" {
		fmt.Fprintf(b, "  Payload:     %s\n", f.Payload)
	}
	if f.Description != "" {
		fmt.Fprintf(b, "  Description: %s\n", f.Description)
	}
	if f.Evidence == "" || r.Verbose < 1 {
		return
	}
	ev := f.Evidence
	if r.Verbose < 2 {
		ev = excerpt(ev, textEvidence)
	}
	fmt.Fprintf(b, "  Evidence:    %s\n", ev)
}

// excerpt flattens s onto one line and cuts it to n runes.
func excerpt(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
