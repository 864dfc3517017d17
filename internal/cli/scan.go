package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0x6d61/vulnprobe/internal/config"
	"github.com/0x6d61/vulnprobe/internal/engine"
	"github.com/0x6d61/vulnprobe/internal/report"
	"github.com/0x6d61/vulnprobe/internal/wordlist"
)

const disclaimer = "[!] Legal disclaimer: Usage of vulnprobe for attacking targets without prior mutual consent is illegal."

func newScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run every enabled module against a target",
		Long: `Scan runs endpoint enumeration, SQL injection, XSS, OS command injection,
WAF bypass and MFA bypass in that order, each only when enabled. A module that
fails is reported and the scan moves on to the next one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModules(cmd, nil)
		},
	}

	f := cmd.Flags()
	f.Bool("enum", true, "Enable endpoint enumeration")
	f.Bool("sqli", true, "Enable SQL injection")
	f.Bool("xss", true, "Enable XSS")
	f.Bool("cmd", false, "Enable OS command injection")
	f.Bool("waf", true, "Enable WAF bypass")
	f.Bool("mfa", false, "Enable MFA bypass")
	f.Bool("bruteforce", false, "Append --wordlist to the enumeration paths")
	f.String("wordlist", "", "Extra enumeration paths, one per line")
	f.String("mfa-tokens", "", "MFA token guesses, one per line (default: built-in list)")
	f.Bool("telegram", false, "Send alerts and the summary to Telegram")
	f.String("telegram-token", "", "Telegram bot token")
	f.String("telegram-chat", "", "Telegram chat ID")
	return cmd
}

func newInjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inject",
		Short: "Run a single injection sweep",
		Long: `Inject fires one payload class at the parameters of a target page.
Classes: sqli (search page), xss (contact page), cmd (search page).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			class, _ := cmd.Flags().GetString("class")
			target, _ := cmd.Flags().GetString("target")
			return runModules(cmd, func(sc *engine.ScanConfig) error {
				return selectInjection(sc, class, target)
			})
		},
	}
	cmd.Flags().String("class", "sqli", "Payload class (sqli, xss, cmd)")
	cmd.Flags().String("target", "", "Page to inject (default: derived from --url)")
	return cmd
}

func newEnumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enum",
		Short: "Enumerate common endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, _ := cmd.Flags().GetString("paths")
			return runModules(cmd, func(sc *engine.ScanConfig) error {
				sc.Modules = engine.Modules{Enumeration: true}
				if paths == "" {
					return nil
				}
				entries, err := wordlist.File{}.Read(paths)
				if err != nil {
					return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
				}
				sc.EnumPaths = entries
				return nil
			})
		},
	}
	cmd.Flags().String("paths", "", "Candidate paths, one per line (default: built-in list)")
	return cmd
}

// selectInjection limits sc to the sweep named by class, aimed at target
// when one is given.
func selectInjection(sc *engine.ScanConfig, class, target string) error {
	var m engine.Modules
	var dst *string
	switch strings.ToLower(class) {
	case "sqli", "sql":
		m.SQLInjection = true
		dst = &sc.Targets.Search
	case "xss":
		m.XSS = true
		dst = &sc.Targets.Contact
	case "cmd", "command":
		m.CommandInjection = true
		dst = &sc.Targets.Search
	default:
		return fmt.Errorf("%w: unknown payload class %q (want sqli, xss or cmd)", config.ErrInvalidConfig, class)
	}
	sc.Modules = m
	if target != "" {
		*dst = target
	}
	return nil
}

// runModules resolves the configuration, lets tune narrow the scan, runs
// it and reports the findings. Reports are written even when the scan is
// interrupted.
func runModules(cmd *cobra.Command, tune func(*engine.ScanConfig) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format, _ := cmd.Flags().GetString("format")
	reporter, err := report.New(format)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	sc := cfg.ScanConfig()
	if err := loadWordlists(cfg, sc, wordlist.File{}); err != nil {
		return err
	}
	if tune != nil {
		if err := tune(sc); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.ErrOrStderr(), disclaimer)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	rt, err := newRuntime(cmd, cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.progress.Status("Target: " + sc.Targets.Base)
	rt.previous(ctx, sc.Targets.Base)

	scanner := engine.NewScanner(rt.client, rt.agg, sc, rt.opts...)
	scanner.SetProgressCallback(rt.progress.Status)

	result, scanErr := scanner.Scan(ctx)
	rt.progress.Done()
	if scanErr != nil {
		rt.logger.Warn("scan interrupted", "error", scanErr)
	}

	doc := &report.Document{
		Report: rt.agg.Report(sc.Targets.Base),
		Scan:   result,
	}
	finishErr := rt.finish(context.WithoutCancel(ctx), cmd, reporter, doc)
	return errors.Join(scanErr, finishErr)
}
