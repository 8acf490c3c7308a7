package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"reaper-go/internal/app"
	"reaper-go/internal/config"
	"reaper-go/internal/reaper"
	"reaper-go/internal/ux"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newPrinter() *ux.Printer {
	return ux.NewPrinter(os.Stdout, !isTerminal(os.Stdout))
}

// newApp reads the config and creates a ReaperApp. The caller must defer a.Close().
func newApp(opts app.Options) (*app.ReaperApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opts.ConfigPath = defaults["config_path"]
	if verbose {
		opts.StderrLevel = slog.LevelInfo
	} else {
		opts.StderrLevel = slog.LevelWarn
	}
	a, err := app.NewReaperApp(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withApp runs fn against a fresh app, marking the session failed when fn
// returns an error.
func withApp(opts app.Options, fn func(a *app.ReaperApp) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(a); err != nil {
		a.Session().Fail()
		return err
	}
	return nil
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:          "reaper",
	Short:        "Find and banish forgotten, oversized and duplicate files",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Graveyard: %s\n", cfg.GraveyardDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Graveyard:  %s\n", cfg.GraveyardDir)
		fmt.Printf("Scan Root:  %s\n", cfg.ScanRoot)
		fmt.Printf("Storage:    %s %s\n", cfg.Storage.Type, cfg.Storage.DataDir)
		fmt.Printf("Policy:     %s (hashing: %t)\n", cfg.Classify.Policy, cfg.Classify.Hashing)
		fmt.Printf("Undo:       %s\n", cfg.Undo.Window.Std())
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan [ROOT]",
	Short: "Scan a directory tree and list classified files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bulk, _ := cmd.Flags().GetBool("bulk")
		noHash, _ := cmd.Flags().GetBool("no-hash")
		policy, _ := cmd.Flags().GetString("policy")

		return withApp(app.Options{Command: "scan", Bulk: bulk, NoHash: noHash, Policy: policy}, func(a *app.ReaperApp) error {
			root := ""
			if len(args) > 0 {
				root = args[0]
			}

			var events chan reaper.ScanEvent
			done := make(chan struct{})
			if isTerminal(os.Stderr) {
				events = make(chan reaper.ScanEvent, 16)
				go showProgress(os.Stderr, events, done)
			} else {
				close(done)
			}

			report, err := a.Scan(cmd.Context(), root, events)
			if events != nil {
				close(events)
			}
			<-done
			if err != nil {
				return err
			}

			p := newPrinter()
			if report.Scan.Cancelled {
				p.Warning("scan cancelled")
				return nil
			}
			for i, f := range report.Files {
				p.File(i+1, f)
			}
			p.Muted(fmt.Sprintf("%d files scanned, %d classified (%s policy)",
				len(report.Scan.Records), len(report.Files), a.Policy()))
			if report.Scan.Truncated {
				p.Warning(fmt.Sprintf("stopped after %d files", len(report.Scan.Records)))
			}
			if n := len(report.Scan.Errors) + len(report.HashErrors); n > 0 {
				p.Warning(fmt.Sprintf("%d entries could not be read; see the log", n))
			}
			return nil
		})
	},
}

// showProgress overwrites one stderr line with the running file count.
func showProgress(w io.Writer, events <-chan reaper.ScanEvent, done chan<- struct{}) {
	defer close(done)
	shown := false
	for ev := range events {
		if p, ok := ev.(reaper.ScanProgress); ok {
			fmt.Fprintf(w, "\rscanned %d files", p.Count)
			shown = true
		}
	}
	if shown {
		fmt.Fprint(w, "\r\033[K")
	}
}

// banish command
var banishCmd = &cobra.Command{
	Use:   "banish PATH",
	Short: "Move a file to the graveyard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, _ := cmd.Flags().GetString("root")

		return withApp(app.Options{Command: "banish"}, func(a *app.ReaperApp) error {
			res, err := a.Banish(cmd.Context(), args[0], root)
			if err != nil {
				return err
			}
			newPrinter().Moved(args[0], res.GraveyardPath)
			return nil
		})
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore GRAVEYARD_PATH ORIGINAL_PATH",
	Short: "Move a file from the graveyard back to its original location",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{Command: "restore"}, func(a *app.ReaperApp) error {
			restored, err := a.Restore(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			newPrinter().Success("restored " + restored)
			return nil
		})
	},
}

// resurrect command
var resurrectCmd = &cobra.Command{
	Use:   "resurrect PATH",
	Short: "Whitelist a file so it is never classified again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{Command: "resurrect"}, func(a *app.ReaperApp) error {
			p, err := a.Resurrect(args[0], 0)
			if err != nil {
				return err
			}
			newPrinter().Success("resurrected " + p)
			return nil
		})
	},
}

// whitelist command
var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "List resurrected paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{Command: "whitelist"}, func(a *app.ReaperApp) error {
			paths, err := a.Whitelisted()
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Println(p)
			}
			return nil
		})
	},
}

// graveyard command
var graveyardCmd = &cobra.Command{
	Use:   "graveyard",
	Short: "List the graveyard's contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{Command: "graveyard"}, func(a *app.ReaperApp) error {
			root, files, err := a.Graveyard(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter()
			p.Title(root)
			for _, f := range files {
				p.Info("  " + f)
			}
			return nil
		})
	},
}

// log command
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View the operation log, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		action, _ := cmd.Flags().GetString("action")
		since, _ := cmd.Flags().GetString("since")
		until, _ := cmd.Flags().GetString("until")
		format, _ := cmd.Flags().GetString("format")

		filter, err := parseLogFilter(action, since, until, time.Now())
		if err != nil {
			return err
		}

		return withApp(app.Options{Command: "log"}, func(a *app.ReaperApp) error {
			entries, err := a.QueryLog(filter)
			if err != nil {
				return err
			}
			return writeLog(os.Stdout, newPrinter(), entries, format)
		})
	},
}

// parseLogFilter accepts RFC 3339 timestamps, dates, or durations such as
// "24h" meaning that long before now.
func parseLogFilter(action, since, until string, now time.Time) (reaper.LogFilter, error) {
	var f reaper.LogFilter
	if action != "" {
		a, err := reaper.ParseAction(action)
		if err != nil {
			return f, err
		}
		f.Action = &a
	}
	if since != "" {
		t, err := parseTimeBound(since, now, false)
		if err != nil {
			return f, fmt.Errorf("--since: %w", err)
		}
		f.Since = &t
	}
	if until != "" {
		t, err := parseTimeBound(until, now, true)
		if err != nil {
			return f, fmt.Errorf("--until: %w", err)
		}
		f.Until = &t
	}
	return f, nil
}

// parseTimeBound accepts RFC3339, a local date or a duration back from now.
// A date used as an upper bound covers the whole day.
func parseTimeBound(s string, now time.Time, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, time.Local); err == nil {
		if endOfDay {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		return t, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func writeLog(w io.Writer, p *ux.Printer, entries []reaper.LogEntry, format string) error {
	switch format {
	case "text", "":
		if len(entries) == 0 {
			p.Muted("No operations recorded.")
		}
		for _, e := range entries {
			p.LogEntry(e)
		}
		return nil
	case "json":
		if entries == nil {
			entries = []reaper.LogEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

// shell command
var shellCmd = &cobra.Command{
	Use:   "shell [ROOT]",
	Short: "Interactive session with undo",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(app.Options{Command: "shell", Undo: true}, func(a *app.ReaperApp) error {
			interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)
			sh := app.NewShell(a, os.Stdin, os.Stdout, !isTerminal(os.Stdout), interactive)
			if len(args) > 0 {
				sh.Root = args[0]
			}
			return sh.Run(cmd.Context())
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Bool("bulk", false, "Stop after the configured bulk limit and use the priority policy")
	scanCmd.Flags().Bool("no-hash", false, "Skip duplicate detection")
	scanCmd.Flags().String("policy", "", "Classification policy: accumulating or priority")
	rootCmd.AddCommand(banishCmd)
	banishCmd.Flags().String("root", "", "Scan root the graveyard layout mirrors (default: scan_root, then home)")
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(resurrectCmd)
	rootCmd.AddCommand(whitelistCmd)
	rootCmd.AddCommand(graveyardCmd)
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().StringP("action", "a", "", "Only show banish, resurrect or restore")
	logCmd.Flags().String("since", "", "Earliest time: RFC 3339, YYYY-MM-DD, or a duration like 24h")
	logCmd.Flags().String("until", "", "Latest time, same forms as --since; a date includes that whole day")
	logCmd.Flags().StringP("format", "f", "text", "Output format: text, json or yaml")
	rootCmd.AddCommand(shellCmd)
}
