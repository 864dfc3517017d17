package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/0x6d61/vulnprobe/internal/config"
	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/wordlist"
)

// withEnv replaces the environment seen by the commands for one test.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

// execute runs a fresh command tree and returns its stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()
	if root.Use != "vulnprobe" {
		t.Errorf("Use = %q", root.Use)
	}
	want := map[string]bool{"scan": false, "inject": false, "enum": false, "sessions": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "vulnprobe dev (commit: none") {
		t.Errorf("output = %q", out)
	}
}

func TestGlobalFlags_Defaults(t *testing.T) {
	pf := newRootCmd().PersistentFlags()
	tests := []struct {
		flag string
		get  func(string) (any, error)
		want any
	}{
		{"url", func(n string) (any, error) { return pf.GetString(n) }, ""},
		{"method", func(n string) (any, error) { return pf.GetString(n) }, "GET"},
		{"threads", func(n string) (any, error) { return pf.GetInt(n) }, 1},
		{"timeout", func(n string) (any, error) { return pf.GetDuration(n) }, 30 * time.Second},
		{"verbose", func(n string) (any, error) { return pf.GetInt(n) }, 0},
		{"format", func(n string) (any, error) { return pf.GetString(n) }, "text"},
		{"random-agent", func(n string) (any, error) { return pf.GetBool(n) }, false},
		{"max-rps", func(n string) (any, error) { return pf.GetFloat64(n) }, float64(0)},
	}
	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			got, err := tt.get(tt.flag)
			if err != nil {
				t.Fatalf("flag %q: %v", tt.flag, err)
			}
			if got != tt.want {
				t.Errorf("flag %q = %v (%T), want %v (%T)", tt.flag, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestScan_MissingURL(t *testing.T) {
	withEnv(t, nil)
	_, _, err := execute(t, "scan")
	if !errors.Is(err, config.ErrMissingRequired) {
		t.Fatalf("err = %v, want ErrMissingRequired", err)
	}
	if !strings.Contains(err.Error(), "target url") {
		t.Errorf("err = %v", err)
	}
}

func TestScan_InvalidSettings(t *testing.T) {
	withEnv(t, nil)
	tests := map[string][]string{
		"bad method":    {"scan", "-u", "http://t.example", "--method", "PUT"},
		"zero threads":  {"scan", "-u", "http://t.example", "--threads", "0"},
		"bad format":    {"scan", "-u", "http://t.example", "-f", "xml"},
		"bad class":     {"inject", "-u", "http://t.example", "--class", "ldap"},
		"missing paths": {"enum", "-u", "http://t.example", "--paths", filepath.Join(t.TempDir(), "none.txt")},
		"no wordlist":   {"scan", "-u", "http://t.example", "--bruteforce"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, stderr, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if strings.Contains(stderr, "Legal disclaimer") {
				t.Error("scan started despite invalid settings")
			}
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vulnprobe.yaml")
	data := "target:\n  url: http://file.example\nthreads: 3\nmethod: POST\nreport_path: from-file.json\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	withEnv(t, map[string]string{
		"TARGET_URL":  "http://env.example",
		"REPORT_PATH": "from-env.json",
		"ENABLE_XSS":  "false",
	})

	root := newRootCmd()
	scan, _, err := root.Find([]string{"scan"})
	if err != nil {
		t.Fatal(err)
	}
	if err := scan.ParseFlags([]string{"--config", path, "--report", "from-flag.json", "--xss", "--threads", "2"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg, err := loadConfig(scan)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Target.URL != "http://env.example" {
		t.Errorf("URL = %q, environment should beat the file", cfg.Target.URL)
	}
	if cfg.ReportPath != "from-flag.json" || cfg.Threads != 2 {
		t.Errorf("flags should beat everything: %+v", cfg)
	}
	if !cfg.Features.XSS {
		t.Error("--xss should override ENABLE_XSS=false")
	}
	if cfg.Method != "POST" {
		t.Errorf("Method = %q, file value should survive unset flags", cfg.Method)
	}
}

func TestLoadConfig_UnchangedFlagsKeepConfig(t *testing.T) {
	withEnv(t, nil)
	root := newRootCmd()
	scan, _, _ := root.Find([]string{"scan"})
	if err := scan.ParseFlags([]string{"-u", "http://t.example"}); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(scan)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Features.CommandInjection || cfg.Features.MFABypass || cfg.Threads != 1 {
		t.Errorf("flag defaults leaked into config: %+v", cfg)
	}
	if cfg.ReportPath != "vulnerability_report.json" {
		t.Errorf("ReportPath = %q", cfg.ReportPath)
	}
}

func TestSelectInjection(t *testing.T) {
	tests := []struct {
		class  string
		target string
		check  func(*engine.ScanConfig) bool
	}{
		{"sqli", "", func(sc *engine.ScanConfig) bool {
			return sc.Modules == engine.Modules{SQLInjection: true} && sc.Targets.Search == "http://t/search.php"
		}},
		{"XSS", "http://t/feedback", func(sc *engine.ScanConfig) bool {
			return sc.Modules == engine.Modules{XSS: true} && sc.Targets.Contact == "http://t/feedback"
		}},
		{"cmd", "http://t/ping.php", func(sc *engine.ScanConfig) bool {
			return sc.Modules == engine.Modules{CommandInjection: true} && sc.Targets.Search == "http://t/ping.php"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			sc := engine.DefaultScanConfig("http://t")
			if err := selectInjection(sc, tt.class, tt.target); err != nil {
				t.Fatalf("selectInjection: %v", err)
			}
			if !tt.check(sc) {
				t.Errorf("scan config = %+v", sc)
			}
		})
	}

	if err := selectInjection(engine.DefaultScanConfig("http://t"), "ldap", ""); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("unknown class err = %v", err)
	}
}

func TestLoadWordlists(t *testing.T) {
	src := wordlist.File{FS: fstest.MapFS{
		"paths.txt":  {Data: []byte("/secret\n# comment\nadmin\n/login\n")},
		"tokens.txt": {Data: []byte("123456\n000000\n")},
	}}
	cfg := config.Default()
	cfg.Features.Bruteforce = true
	cfg.WordlistPath = "paths.txt"
	cfg.MFATokenFile = "tokens.txt"

	sc := cfg.ScanConfig()
	if err := loadWordlists(cfg, sc, src); err != nil {
		t.Fatalf("loadWordlists: %v", err)
	}
	builtIn := payload.Endpoints()
	if len(sc.EnumPaths) != len(builtIn)+1 || sc.EnumPaths[len(builtIn)] != "/secret" {
		t.Errorf("EnumPaths tail = %v", sc.EnumPaths[len(builtIn):])
	}
	if len(sc.MFATokens) != 2 || sc.MFATokens[1] != "000000" {
		t.Errorf("MFATokens = %v", sc.MFATokens)
	}

	cfg.WordlistPath = "missing.txt"
	if err := loadWordlists(cfg, cfg.ScanConfig(), src); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("missing wordlist err = %v", err)
	}
}

func TestMergePaths(t *testing.T) {
	got := mergePaths([]string{"/admin", "/login"}, []string{"admin", "/backup", "/login", "backup"})
	want := []string{"/admin", "/login", "/backup"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mergePaths = %v, want %v", got, want)
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		verbose int
		enabled slog.Level
		muted   slog.Level
	}{
		{0, slog.LevelError, slog.LevelWarn},
		{1, slog.LevelWarn, slog.LevelInfo},
		{2, slog.LevelInfo, slog.LevelDebug},
		{3, slog.LevelDebug, slog.LevelDebug - 4},
	}
	ctx := context.Background()
	for _, tt := range tests {
		l := newLogger(&bytes.Buffer{}, tt.verbose)
		if !l.Enabled(ctx, tt.enabled) || l.Enabled(ctx, tt.muted) {
			t.Errorf("-v %d: level %v enabled=%v, level %v enabled=%v",
				tt.verbose, tt.enabled, l.Enabled(ctx, tt.enabled), tt.muted, l.Enabled(ctx, tt.muted))
		}
	}
}

func TestParseCookieString(t *testing.T) {
	got := parseCookieString("PHPSESSID=abc123; theme = dark ;broken; token=a=b")
	want := map[string]string{"PHPSESSID": "abc123", "theme": "dark", "token": "a=b"}
	if len(got) != len(want) {
		t.Fatalf("cookies = %v", got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("cookie %q = %q, want %q", k, got[k], v)
		}
	}
	if len(parseCookieString("")) != 0 {
		t.Error("empty cookie string should yield no cookies")
	}
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders([]string{"X-Custom: value", "Authorization: Bearer a:b", "no-colon"})
	if len(got) != 2 || got["X-Custom"] != "value" || got["Authorization"] != "Bearer a:b" {
		t.Errorf("headers = %v", got)
	}
}

func TestProgressLine(t *testing.T) {
	var buf bytes.Buffer
	quiet := newProgressLine(&buf, 0)
	quiet.Update(engine.Progress{Sweep: "sqli", Done: 1, Total: 2})
	quiet.Status("module 1/1: SQL Injection")
	quiet.Done()
	if buf.Len() != 0 {
		t.Errorf("non-terminal quiet output = %q", buf.String())
	}

	verbose := newProgressLine(&buf, 1)
	verbose.Update(engine.Progress{Sweep: "sqli", Done: 1, Total: 2})
	verbose.Status("module 1/1: SQL Injection")
	if got := buf.String(); got != "[*] module 1/1: SQL Injection\n" {
		t.Errorf("verbose output = %q", got)
	}

	buf.Reset()
	tty := &progressLine{w: &buf, tty: true}
	tty.Update(engine.Progress{Sweep: "xss", Done: 1, Total: 4, Label: strings.Repeat("a", 50)})
	tty.Status("done")
	tty.Done()
	want := "\r\033[K[xss] 1/4 (25%) " + strings.Repeat("a", 37) + "..." + "\r\033[K" + "[*] done\n"
	if got := buf.String(); got != want {
		t.Errorf("terminal output = %q, want %q", got, want)
	}
}
