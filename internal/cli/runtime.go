package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/0x6d61/vulnprobe/internal/config"
	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/findings"
	"github.com/0x6d61/vulnprobe/internal/metrics"
	"github.com/0x6d61/vulnprobe/internal/notify"
	"github.com/0x6d61/vulnprobe/internal/payload"
	"github.com/0x6d61/vulnprobe/internal/report"
	"github.com/0x6d61/vulnprobe/internal/session"
	"github.com/0x6d61/vulnprobe/internal/transport"
	"github.com/0x6d61/vulnprobe/internal/wordlist"
)

// Replaced in tests.
var (
	lookupEnv          config.LookupFunc = os.LookupEnv
	telegramAPI                          = notify.DefaultTelegramAPI
	extraEngineOptions []engine.Option
)

// loadConfig resolves defaults, the --config file, the environment and the
// flags set on the command line, in that order. The result is not
// validated.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()

	cfg := config.Default()
	if path, _ := flags.GetString("config"); path != "" {
		c, err := config.LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	cfg.ApplyEnv(lookupEnv)
	applyFlags(flags, cfg)
	return cfg, nil
}

// applyFlags copies every flag the user set onto cfg. Flags a command does
// not define are never reported as changed.
func applyFlags(fs *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	boolean := func(name string, dst *bool) {
		if fs.Changed(name) {
			*dst, _ = fs.GetBool(name)
		}
	}

	str("url", &cfg.Target.URL)
	str("method", &cfg.Method)
	str("proxy", &cfg.Proxy)
	str("user-agent", &cfg.UserAgent)
	str("report", &cfg.ReportPath)
	str("session", &cfg.SessionPath)
	str("metrics-addr", &cfg.MetricsAddr)
	str("wordlist", &cfg.WordlistPath)
	str("mfa-tokens", &cfg.MFATokenFile)
	str("telegram-token", &cfg.Telegram.BotToken)
	str("telegram-chat", &cfg.Telegram.ChatID)

	boolean("random-agent", &cfg.RandomAgent)
	boolean("insecure", &cfg.Insecure)
	boolean("enum", &cfg.Features.Enumeration)
	boolean("sqli", &cfg.Features.SQLInjection)
	boolean("xss", &cfg.Features.XSS)
	boolean("cmd", &cfg.Features.CommandInjection)
	boolean("waf", &cfg.Features.WAFBypass)
	boolean("mfa", &cfg.Features.MFABypass)
	boolean("telegram", &cfg.Features.Telegram)
	boolean("bruteforce", &cfg.Features.Bruteforce)

	if fs.Changed("param") {
		cfg.Params, _ = fs.GetStringSlice("param")
	}
	if fs.Changed("threads") {
		cfg.Threads, _ = fs.GetInt("threads")
	}
	if fs.Changed("timeout") {
		cfg.Timeout, _ = fs.GetDuration("timeout")
	}
	if fs.Changed("max-rps") {
		cfg.MaxRPS, _ = fs.GetFloat64("max-rps")
	}
}

// loadWordlists fills the enumeration and MFA candidate lists from the
// configured files.
func loadWordlists(cfg *config.Config, sc *engine.ScanConfig, src wordlist.Source) error {
	if cfg.Features.Bruteforce {
		extra, err := src.Read(cfg.WordlistPath)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		sc.EnumPaths = mergePaths(payload.Endpoints(), extra)
	}
	if cfg.MFATokenFile != "" {
		tokens, err := src.Read(cfg.MFATokenFile)
		if err != nil {
			return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
		}
		sc.MFATokens = tokens
	}
	return nil
}

func mergePaths(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, p := range append(base, extra...) {
		key := "/" + strings.TrimLeft(p, "/")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// newLogger returns a text logger whose level follows -v: 0 error, 1 warn,
// 2 info, 3 debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelError
	switch {
	case verbose >= 3:
		level = slog.LevelDebug
	case verbose == 2:
		level = slog.LevelInfo
	case verbose == 1:
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runtime holds everything a scan command wires together.
type runtime struct {
	cfg      *config.Config
	verbose  int
	logger   *slog.Logger
	client   *transport.DefaultClient
	agg      *findings.Aggregator
	metrics  *metrics.Metrics
	server   *metrics.Server
	store    *session.SQLiteStore
	progress *progressLine
	opts     []engine.Option
}

func newRuntime(cmd *cobra.Command, cfg *config.Config) (*runtime, error) {
	flags := cmd.Flags()
	verbose, _ := flags.GetInt("verbose")
	rawHeaders, _ := flags.GetStringArray("header")
	cookieStr, _ := flags.GetString("cookie")

	rt := &runtime{
		cfg:      cfg,
		verbose:  verbose,
		logger:   newLogger(cmd.ErrOrStderr(), verbose),
		metrics:  metrics.New(),
		progress: newProgressLine(cmd.ErrOrStderr(), verbose),
	}

	client, err := transport.NewClient(cfg.ClientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	rt.client = client

	sinks := notify.Multi{&notify.Log{Logger: rt.logger}}
	if cfg.Features.Telegram {
		sinks = append(sinks, notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			notify.TelegramOptions{BaseURL: telegramAPI}))
	}
	rt.agg = findings.NewAggregator(
		findings.WithSink(sinks),
		findings.WithLogger(rt.logger),
		findings.WithListener(rt.metrics.ObserveFinding),
	)

	rt.opts = []engine.Option{
		engine.WithWorkers(cfg.Threads),
		engine.WithLogger(rt.logger),
		engine.WithObserver(rt.metrics),
		engine.WithProgress(rt.progress.Update),
		engine.WithHeaders(parseHeaders(rawHeaders)),
		engine.WithCookies(parseCookieString(cookieStr)),
	}
	rt.opts = append(rt.opts, extraEngineOptions...)

	if cfg.SessionPath != "" {
		store, err := session.NewSQLiteStore(cfg.SessionPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open session file %q: %w", cfg.SessionPath, err)
		}
		rt.store = store
	}

	if cfg.MetricsAddr != "" {
		srv, err := rt.metrics.Serve(cfg.MetricsAddr)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.server = srv
		rt.logger.Info("serving metrics", "addr", srv.Addr())
	}
	return rt, nil
}

// Close stops the metrics endpoint and closes the session store.
func (rt *runtime) Close() {
	if rt.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.server.Close(ctx); err != nil {
			rt.logger.Warn("stopping metrics server", "error", err)
		}
	}
	if rt.store != nil {
		_ = rt.store.Close()
	}
}

// previous announces the last stored scan of target, if any.
func (rt *runtime) previous(ctx context.Context, target string) {
	if rt.store == nil {
		return
	}
	rec, err := rt.store.Load(ctx, target)
	if err != nil {
		rt.logger.Warn("reading session", "error", err)
		return
	}
	if rec != nil && rec.Report != nil {
		rt.progress.Status(fmt.Sprintf("Previous scan %s of this target found %d finding(s)",
			rec.ID, rec.Report.Statistics.Total))
	}
}

// finish persists and prints doc. The JSON report and the requested output
// are both attempted; their failures are returned joined. Session and
// notification failures are only logged.
func (rt *runtime) finish(ctx context.Context, cmd *cobra.Command, reporter report.Reporter, doc *report.Document) error {
	var errs []error

	if path := rt.cfg.ReportPath; path != "" {
		if err := report.WriteFile(ctx, path, &report.JSONReporter{}, doc); err != nil {
			rt.logger.Error("saving report", "path", path, "error", err)
			errs = append(errs, err)
		} else {
			rt.progress.Status("Report saved to " + path)
		}
	}

	if tr, ok := reporter.(*report.TextReporter); ok {
		tr.Verbose = rt.verbose
	}
	output, _ := cmd.Flags().GetString("output")
	if output != "" {
		if err := report.WriteFile(ctx, output, reporter, doc); err != nil {
			errs = append(errs, err)
		}
	} else if err := reporter.Generate(ctx, doc, cmd.OutOrStdout()); err != nil {
		errs = append(errs, fmt.Errorf("failed to generate report: %w", err))
	}

	if rt.store != nil {
		if err := rt.store.Save(ctx, session.NewScanRecord(doc.Report, doc.Scan)); err != nil {
			rt.logger.Error("saving session", "error", err)
		}
	}

	if err := rt.agg.SendSummary(ctx, doc.Report.ScanInfo.Target); err != nil {
		rt.logger.Error("summary delivery failed", "error", err)
	}

	return errors.Join(errs...)
}

// parseCookieString parses a cookie header string (e.g., "name1=val1; name2=val2")
// into a map of name->value pairs.
func parseCookieString(raw string) map[string]string {
	cookies := make(map[string]string)
	if raw == "" {
		return cookies
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, "=")
		if ok {
			cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return cookies
}

// parseHeaders parses header strings (e.g., "X-Custom: value") into a map.
func parseHeaders(rawHeaders []string) map[string]string {
	headers := make(map[string]string)
	for _, h := range rawHeaders {
		name, value, ok := strings.Cut(h, ":")
		if ok {
			headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}
	return headers
}
