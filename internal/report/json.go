package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/0x6d61/vulnprobe/internal/findings"
)

// JSONReporter outputs structured JSON.
type JSONReporter struct {
	// Compact outputs single-line JSON when true (no indentation).
	Compact bool
}

// Format returns "json".
func (r *JSONReporter) Format() string {
	return "json"
}

// jsonOutput is the top-level JSON structure. The first three fields are
// the findings snapshot; scan is present only for full scans.
type jsonOutput struct {
	ScanInfo   findings.ScanInfo   `json:"scan_info"`
	Statistics findings.Statistics `json:"statistics"`
	Findings   []findings.Finding  `json:"findings"`
	Scan       *jsonScan           `json:"scan,omitempty"`
}

// jsonScan represents scan metadata in JSON.
type jsonScan struct {
	StartTime       time.Time    `json:"start_time"`
	EndTime         time.Time    `json:"end_time"`
	DurationSeconds float64      `json:"duration_seconds"`
	TotalRequests   int64        `json:"total_requests"`
	Modules         []jsonModule `json:"modules"`
}

// jsonModule represents one module outcome in JSON.
type jsonModule struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// Generate writes the document as JSON to w. Serialization failures wrap
// ErrWrite.
func (r *JSONReporter) Generate(ctx context.Context, doc *Document, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc == nil || doc.Report == nil {
		return fmt.Errorf("%w: empty document", ErrWrite)
	}

	output := jsonOutput{
		ScanInfo:   doc.Report.ScanInfo,
		Statistics: doc.Report.Statistics,
		Findings:   doc.Report.Findings,
	}
	if output.Findings == nil {
		output.Findings = []findings.Finding{}
	}

	if s := doc.Scan; s != nil {
		scan := &jsonScan{
			StartTime:       s.StartTime,
			EndTime:         s.EndTime,
			DurationSeconds: s.EndTime.Sub(s.StartTime).Seconds(),
			TotalRequests:   s.RequestCount,
			Modules:         make([]jsonModule, 0, len(s.Modules)),
		}
		for _, m := range s.Modules {
			jm := jsonModule{Name: m.Name, Status: string(m.Status), Count: m.Count}
			if m.Err != nil {
				jm.Error = m.Err.Error()
			}
			scan.Modules = append(scan.Modules, jm)
		}
		output.Scan = scan
	}

	enc := json.NewEncoder(w)
	if !r.Compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}
