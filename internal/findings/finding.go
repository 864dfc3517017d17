// Package findings collects confirmed vulnerabilities, keeps per-severity
// statistics and pushes high-impact alerts to a notification sink.
package findings

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidSeverity is returned when a finding names an unknown severity.
var ErrInvalidSeverity = errors.New("invalid severity")

// Type is the vulnerability class of a finding.
type Type string

const (
	SQLInjection      Type = "SQL Injection"
	ReflectedXSS      Type = "Cross-Site Scripting (XSS)"
	CommandInjection  Type = "OS Command Injection"
	WAFBypass         Type = "WAF Bypass"
	EndpointDiscovery Type = "Endpoint Discovery"
	MFABypass         Type = "MFA Bypass"
)

// Severity ranks a finding. Values are upper-case.
type Severity string

const (
	Critical Severity = "CRITICAL"
	High     Severity = "HIGH"
	Medium   Severity = "MEDIUM"
	Low      Severity = "LOW"
	Info     Severity = "INFO"
)

// Severities lists every severity from most to least severe.
func Severities() []Severity {
	return []Severity{Critical, High, Medium, Low, Info}
}

// ParseSeverity normalises s case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	switch sev {
	case Critical, High, Medium, Low, Info:
		return sev, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// Alerting reports whether findings of this severity trigger an immediate
// notification.
func (s Severity) Alerting() bool {
	return s == Critical || s == High
}

// Detail carries the optional parts of a finding.
type Detail struct {
	Payload     string
	Description string
	Evidence    string
}

// Finding is one confirmed vulnerability. Findings are created only by an
// Aggregator and never modified afterwards.
type Finding struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        Type      `json:"type"`
	Severity    Severity  `json:"severity"`
	URL         string    `json:"url"`
	Payload     string    `json:"payload,omitempty"`
	Description string    `json:"description,omitempty"`
	Evidence    string    `json:"evidence,omitempty"`
}

// Statistics counts findings per severity. Total is always the sum of the
// five severity counters.
type Statistics struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

func (s *Statistics) add(sev Severity) {
	switch sev {
	case Critical:
		s.Critical++
	case High:
		s.High++
	case Medium:
		s.Medium++
	case Low:
		s.Low++
	case Info:
		s.Info++
	}
	s.Total++
}

// Count returns the counter for sev.
func (s Statistics) Count(sev Severity) int {
	switch sev {
	case Critical:
		return s.Critical
	case High:
		return s.High
	case Medium:
		return s.Medium
	case Low:
		return s.Low
	case Info:
		return s.Info
	}
	return 0
}

// ScanInfo identifies the scan a report belongs to.
type ScanInfo struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Target        string    `json:"target"`
	TotalFindings int       `json:"total_findings"`
}

// Report is a point-in-time snapshot of an aggregator.
type Report struct {
	ScanInfo   ScanInfo   `json:"scan_info"`
	Statistics Statistics `json:"statistics"`
	Findings   []Finding  `json:"findings"`
}
