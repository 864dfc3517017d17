// Package report provides formatters for scan result output.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/findings"
)

// ErrWrite is returned when a report cannot be serialized or persisted.
// The findings it was built from are unaffected.
var ErrWrite = errors.New("report write failed")

// Document is what a reporter renders: the findings snapshot and, when a
// full scan ran, the per-module results.
type Document struct {
	Report *findings.Report
	Scan   *engine.ScanResult
}

// Reporter generates output in a specific format.
type Reporter interface {
	// Format returns the format name (e.g., "text", "json").
	Format() string

	// Generate writes the formatted document to w.
	Generate(ctx context.Context, doc *Document, w io.Writer) error
}

// New creates a reporter by format name ("text" or "json").
// The format name is case-insensitive.
func New(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "text":
		return &TextReporter{}, nil
	case "json":
		return &JSONReporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %q", format)
	}
}
