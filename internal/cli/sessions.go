package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x6d61/vulnprobe/internal/config"
	"github.com/0x6d61/vulnprobe/internal/report"
	"github.com/0x6d61/vulnprobe/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect scans stored with --session",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored scans, newest first",
		Args:  cobra.NoArgs,
		RunE:  runSessionsList,
	}
	show := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Print the report of a stored scan",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionsShow,
	}
	del := &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Remove a stored scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *session.SQLiteStore) error {
				if err := store.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove scans not updated within --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			age, _ := cmd.Flags().GetDuration("older-than")
			return withStore(cmd, func(store *session.SQLiteStore) error {
				n, err := store.Cleanup(cmd.Context(), age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d scan(s)\n", n)
				return nil
			})
		},
	}
	prune.Flags().Duration("older-than", 30*24*time.Hour, "Maximum age of kept scans")

	cmd.AddCommand(list, show, del, prune)
	return cmd
}

func withStore(cmd *cobra.Command, fn func(*session.SQLiteStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.SessionPath == "" {
		return fmt.Errorf("%w: session file (use --session or SESSION_PATH)", config.ErrMissingRequired)
	}
	store, err := session.NewSQLiteStore(cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("failed to open session file %q: %w", cfg.SessionPath, err)
	}
	defer store.Close()
	return fn(store)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(store *session.SQLiteStore) error {
		scans, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No stored scans.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTARGET\tFINDINGS\tCRITICAL\tHIGH\tUPDATED")
		for _, s := range scans {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
				s.ID, s.TargetURL, s.TotalFindings, s.Critical, s.High,
				s.UpdatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	})
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	reporter, err := report.New(format)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}
	if tr, ok := reporter.(*report.TextReporter); ok {
		tr.Verbose, _ = cmd.Flags().GetInt("verbose")
	}

	return withStore(cmd, func(store *session.SQLiteStore) error {
		rec, err := store.LoadByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rec == nil || rec.Report == nil {
			return fmt.Errorf("scan %s not found", args[0])
		}
		if err := reporter.Generate(cmd.Context(), &report.Document{Report: rec.Report}, cmd.OutOrStdout()); err != nil {
			return err
		}
		if _, text := reporter.(*report.TextReporter); text && len(rec.Modules) > 0 {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nModules (%d requests):\n", rec.RequestCount)
			for _, m := range rec.Modules {
				line := fmt.Sprintf("  %-22s %-10s %d", m.Name, m.Status, m.Count)
				if m.Error != "" {
					line += "  " + m.Error
				}
				fmt.Fprintln(out, line)
			}
		}
		return nil
	})
}
