package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Execute runs the command tree against os.Args.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vulnprobe",
		Short: "Web vulnerability probe",
		Long: `vulnprobe - Web vulnerability probe

Enumerates endpoints and fires SQL injection, XSS and OS command injection
payloads at a web application, then tries WAF and MFA bypasses. Findings are
aggregated into a JSON report and optionally pushed to Telegram.

WARNING: Use this tool only against systems you have explicit permission to test.
Unauthorized access to computer systems is illegal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()

	// Target flags
	pf.String("config", "", "YAML configuration file")
	pf.StringP("url", "u", "", "Target base URL (e.g., http://target.com)")
	pf.String("method", "GET", "HTTP method for injection sweeps (GET or POST)")
	pf.StringSlice("param", nil, "Parameter to inject (repeatable; default: discover)")
	pf.String("cookie", "", "Cookie string (e.g., PHPSESSID=abc123)")
	pf.StringArrayP("header", "H", nil, "Extra header (repeatable, e.g., -H 'X-Custom: value')")

	// Connection flags
	pf.String("proxy", "", "Proxy URL (http://host:port or socks5://host:port)")
	pf.Int("threads", 1, "Number of concurrent probes per sweep")
	pf.Duration("timeout", 30*time.Second, "Request timeout")
	pf.String("user-agent", "", "User-Agent header")
	pf.Bool("random-agent", false, "Use random User-Agent")
	pf.Bool("insecure", false, "Skip TLS certificate verification")
	pf.Float64("max-rps", 0, "Global request rate cap (0 = unlimited)")

	// Output flags
	pf.IntP("verbose", "v", 0, "Verbosity level (0-3)")
	pf.StringP("output", "o", "", "Output file path (default: stdout)")
	pf.StringP("format", "f", "text", "Output format (text, json)")
	pf.String("report", "", "JSON report path (default: vulnerability_report.json)")
	pf.String("session", "", "SQLite session file for storing scan results")
	pf.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g., :9090)")

	root.AddCommand(
		newScanCmd(),
		newInjectCmd(),
		newEnumCmd(),
		newSessionsCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vulnprobe %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
