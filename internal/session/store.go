// Package session persists finished scans so their reports can be listed
// and reviewed after the process exits.
package session

import (
	"context"
	"time"

	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/findings"
)

// ModuleSummary is the stored outcome of one scan module.
type ModuleSummary struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

// ScanRecord captures a finished (or interrupted) scan.
type ScanRecord struct {
	ID           string           `json:"id"`
	TargetURL    string           `json:"target_url"`
	Report       *findings.Report `json:"report"`
	Modules      []ModuleSummary  `json:"modules,omitempty"`
	RequestCount int64            `json:"request_count"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// NewScanRecord builds a record from a findings snapshot and, when a full
// scan ran, its module results. The record ID is the report's scan ID.
func NewScanRecord(rep *findings.Report, scan *engine.ScanResult) *ScanRecord {
	rec := &ScanRecord{Report: rep}
	if rep != nil {
		rec.ID = rep.ScanInfo.ID
		rec.TargetURL = rep.ScanInfo.Target
	}
	if scan != nil {
		rec.RequestCount = scan.RequestCount
		for _, m := range scan.Modules {
			ms := ModuleSummary{Name: m.Name, Status: string(m.Status), Count: m.Count}
			if m.Err != nil {
				ms.Error = m.Err.Error()
			}
			rec.Modules = append(rec.Modules, ms)
		}
	}
	return rec
}

// ScanSummary is a lightweight session overview.
type ScanSummary struct {
	ID            string    `json:"id"`
	TargetURL     string    `json:"target_url"`
	TotalFindings int       `json:"total_findings"`
	Critical      int       `json:"critical"`
	High          int       `json:"high"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Store persists and retrieves scan records.
type Store interface {
	Save(ctx context.Context, rec *ScanRecord) error
	Load(ctx context.Context, targetURL string) (*ScanRecord, error)
	LoadByID(ctx context.Context, id string) (*ScanRecord, error)
	List(ctx context.Context) ([]*ScanSummary, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
