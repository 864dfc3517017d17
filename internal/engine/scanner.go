package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/0x6d61/vulnprobe/internal/transport"
)

// Targets holds the URLs each module is aimed at.
type Targets struct {
	Base    string
	Search  string
	Contact string
	Admin   string
	MFA     string
}

// DefaultTargets derives the module URLs from base the usual way.
func DefaultTargets(base string) Targets {
	base = strings.TrimRight(base, "/")
	return Targets{
		Base:    base,
		Search:  base + "/search.php",
		Contact: base + "/contact.php",
		Admin:   base + "/admin",
		MFA:     base + "/mfa",
	}
}

// Modules toggles the scan modules.
type Modules struct {
	Enumeration      bool
	SQLInjection     bool
	XSS              bool
	CommandInjection bool
	WAFBypass        bool
	MFABypass        bool
}

// ScanConfig holds configuration for a scan.
type ScanConfig struct {
	Targets Targets
	Modules Modules
	Method  string   // GET or POST for the injection sweeps
	Params  []string // explicit parameters; empty = discover per target

	EnumPaths   []string // empty = built-in candidate list
	WAFPayloads []string // empty = catalog
	MFATokens   []string // empty = catalog
}

// DefaultScanConfig returns the default modules against base.
func DefaultScanConfig(base string) *ScanConfig {
	return &ScanConfig{
		Targets: DefaultTargets(base),
		Modules: Modules{
			Enumeration:  true,
			SQLInjection: true,
			XSS:          true,
			WAFBypass:    true,
		},
		Method: "GET",
	}
}

// ModuleStatus is the verdict of one module.
type ModuleStatus string

const (
	StatusCompleted  ModuleStatus = "Completed"
	StatusVulnerable ModuleStatus = "Vulnerable"
	StatusSecure     ModuleStatus = "Secure"
	StatusBypassed   ModuleStatus = "Bypassed"
	StatusProtected  ModuleStatus = "Protected"
	StatusError      ModuleStatus = "Error"
)

// Module names, in execution order.
const (
	ModuleEnumeration = "Endpoint Enumeration"
	ModuleSQL         = "SQL Injection"
	ModuleXSS         = "XSS"
	ModuleCommand     = "Command Injection"
	ModuleWAF         = "WAF Bypass"
	ModuleMFA         = "MFA Bypass"
)

// ModuleResult is the outcome of one module. Exactly one of the detail
// fields is set, matching the module.
type ModuleResult struct {
	Name   string
	Status ModuleStatus
	Count  int
	Err    error

	Endpoints []EndpointRecord
	Injection *InjectionSummary
	WAF       *WAFResult
	MFA       *MFAResult
}

// ScanResult holds the complete result of a scan.
type ScanResult struct {
	Targets      Targets
	Modules      []ModuleResult
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int64
}

// Module returns the result of the named module.
func (r *ScanResult) Module(name string) (ModuleResult, bool) {
	for _, m := range r.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleResult{}, false
}

// Scanner runs the enabled modules in a fixed order.
type Scanner struct {
	env
	config *ScanConfig
	opts   []Option

	onStatus func(msg string)
}

// NewScanner creates a scanner. The options are handed to every module.
func NewScanner(client transport.Client, recorder Recorder, config *ScanConfig, opts ...Option) *Scanner {
	if config == nil {
		config = DefaultScanConfig("")
	}
	return &Scanner{
		env:    newEnv(client, recorder, opts),
		config: config,
		opts:   opts,
	}
}

// SetProgressCallback sets a function called with status messages.
func (s *Scanner) SetProgressCallback(fn func(string)) {
	s.onStatus = fn
}

func (s *Scanner) status(format string, args ...any) {
	if s.onStatus != nil {
		s.onStatus(fmt.Sprintf(format, args...))
	}
}

type moduleStep struct {
	name    string
	enabled bool
	run     func(context.Context) ModuleResult
}

// Scan runs enumeration, SQL injection, XSS, command injection, WAF bypass
// and MFA bypass, each only when enabled. A failing module is reported in
// its result and the next module still runs; only cancellation of ctx
// stops the scan early.
func (s *Scanner) Scan(ctx context.Context) (*ScanResult, error) {
	cfg := s.config
	result := &ScanResult{
		Targets:   cfg.Targets,
		StartTime: time.Now(),
	}
	defer func() {
		result.EndTime = time.Now()
		if stats := s.client.Stats(); stats != nil {
			result.RequestCount = stats.TotalRequests
		}
	}()

	steps := []moduleStep{
		{ModuleEnumeration, cfg.Modules.Enumeration, s.runEnumeration},
		{ModuleSQL, cfg.Modules.SQLInjection, func(ctx context.Context) ModuleResult {
			return s.runInjection(ctx, ModuleSQL, cfg.Targets.Search, SQLSweep())
		}},
		{ModuleXSS, cfg.Modules.XSS, func(ctx context.Context) ModuleResult {
			return s.runInjection(ctx, ModuleXSS, cfg.Targets.Contact, XSSSweep())
		}},
		{ModuleCommand, cfg.Modules.CommandInjection, func(ctx context.Context) ModuleResult {
			return s.runInjection(ctx, ModuleCommand, cfg.Targets.Search, CommandSweep())
		}},
		{ModuleWAF, cfg.Modules.WAFBypass, s.runWAF},
		{ModuleMFA, cfg.Modules.MFABypass, s.runMFA},
	}

	enabled := 0
	for _, st := range steps {
		if st.enabled {
			enabled++
		}
	}

	n := 0
	for _, st := range steps {
		if !st.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("scan cancelled: %w", err)
		}
		n++
		s.status("module %d/%d: %s", n, enabled, st.name)

		mr := st.run(ctx)
		result.Modules = append(result.Modules, mr)

		if mr.Err != nil {
			s.logger.Error("module failed", "module", mr.Name, "error", mr.Err)
		}
		s.status("%s: %s (%d)", mr.Name, mr.Status, mr.Count)
	}

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("scan cancelled: %w", err)
	}
	return result, nil
}

func (s *Scanner) runEnumeration(ctx context.Context) ModuleResult {
	mr := ModuleResult{Name: ModuleEnumeration, Status: StatusCompleted}
	records, err := NewEnumerator(s.client, s.recorder, s.opts...).Enumerate(ctx, s.config.Targets.Base, s.config.EnumPaths)
	mr.Endpoints = records
	mr.Count = len(records)
	if err != nil {
		mr.Status, mr.Err = StatusError, err
	}
	return mr
}

func (s *Scanner) runInjection(ctx context.Context, name, target string, sweep Sweep) ModuleResult {
	mr := ModuleResult{Name: name}
	summary, err := NewInjector(s.client, s.recorder, s.opts...).Run(ctx, target, s.config.Params, sweep, s.config.Method)
	mr.Injection = summary
	if summary != nil {
		mr.Count = summary.Found()
	}
	switch {
	case err != nil:
		mr.Status, mr.Err = StatusError, err
	case mr.Count > 0:
		mr.Status = StatusVulnerable
	default:
		mr.Status = StatusSecure
	}
	return mr
}

func (s *Scanner) runWAF(ctx context.Context) ModuleResult {
	mr := ModuleResult{Name: ModuleWAF}
	res, err := NewWAFProber(s.client, s.recorder, s.opts...).Probe(ctx, s.config.Targets.Admin, s.config.WAFPayloads)
	mr.WAF = res
	mr.Count = len(res.Bypasses)
	switch {
	case err != nil:
		mr.Status, mr.Err = StatusError, err
	case res.Bypassed():
		mr.Status = StatusBypassed
	default:
		mr.Status = StatusProtected
	}
	return mr
}

func (s *Scanner) runMFA(ctx context.Context) ModuleResult {
	mr := ModuleResult{Name: ModuleMFA}
	res, err := NewMFAProber(s.client, s.recorder, s.opts...).Probe(ctx, s.config.Targets.MFA, s.config.MFATokens)
	mr.MFA = res
	if res.Bypassed() {
		mr.Count = 1
	}
	switch {
	case err != nil:
		mr.Status, mr.Err = StatusError, err
	case res.Bypassed():
		mr.Status = StatusBypassed
	default:
		mr.Status = StatusProtected
	}
	return mr
}
