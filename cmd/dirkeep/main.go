package main

import (
	"bufio"
	"cmp"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dirkeep/internal/app"
	"dirkeep/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configPath returns args[0] when given, else the default config location.
func configPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	return defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must defer app.Close().
func newApp(path string, verbose bool) (*app.App, error) {
	cfg, err := config.ReadFromFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.LogDir == "" {
		defaults, err := app.GetDefaults()
		if err != nil {
			return nil, fmt.Errorf("getting defaults: %w", err)
		}
		cfg.LogDir = defaults["log_dir"]
	}

	a, err := app.NewApp(cfg, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// confirm asks a yes/no question on an interactive terminal. Non-interactive
// input is treated as consent.
func confirm(in *os.File, out io.Writer, question string) (bool, error) {
	if !term.IsTerminal(int(in.Fd())) {
		return true, nil
	}
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading answer: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

var rootCmd = &cobra.Command{
	Use:          "dirkeep",
	Short:        "Configuration-driven directory maintenance",
	SilenceUsage: true,
}

// run command
var runCmd = &cobra.Command{
	Use:   "run [CONFIG]",
	Short: "Archive, purge, measure and list the configured directories",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keepGoing, _ := cmd.Flags().GetBool("keep-going")
		verbose, _ := cmd.Flags().GetBool("verbose")
		yes, _ := cmd.Flags().GetBool("yes")

		path, err := configPath(args)
		if err != nil {
			return err
		}

		a, err := newApp(path, verbose)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.HasPurge() && !yes {
			ok, err := confirm(os.Stdin, cmd.OutOrStdout(), "This run deletes files. Continue?")
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("aborted")
			}
		}

		report, err := a.Run(path, keepGoing)
		if report != nil {
			app.PrintReport(cmd.OutOrStdout(), report)
		}
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}
		return nil
	},
}

// plan command
var planCmd = &cobra.Command{
	Use:   "plan [CONFIG]",
	Short: "Show the order in which entries would run",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(args)
		if err != nil {
			return err
		}

		a, err := newApp(path, false)
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.Plan()
		if err != nil {
			return err
		}
		if len(plan) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No directories configured.")
			return nil
		}
		for _, s := range plan {
			fmt.Fprintf(cmd.OutOrStdout(), "%3d  %-9s  subdirs=%-5t  %s\n",
				s.Sequence, s.Entry.Action, s.Entry.IncludeSubdirectories, s.Entry.Path)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [CONFIG]",
	Short: "View past runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		details, _ := cmd.Flags().GetBool("details")

		path, err := configPath(args)
		if err != nil {
			return err
		}

		a, err := newApp(path, false)
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.HistoryEnabled() {
			fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled (database.type = none).")
			return nil
		}

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		w := cmd.OutOrStdout()
		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Fprintf(w, "%s  %s  %-7s  entries=%d failed=%d  %s\n",
				r.TimestampTag,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.EntryCount,
				r.FailedCount,
				duration,
			)
			if !details {
				continue
			}
			outcomes, err := a.Outcomes(r.ID)
			if err != nil {
				return err
			}
			for _, o := range outcomes {
				status := "ok"
				if o.Error != "" {
					status = o.Error
				}
				fmt.Fprintf(w, "    %3d  %-9s  %s  files=%d bytes=%d  %s\n",
					o.Sequence, o.Action, o.Path, o.FilesTouched, o.BytesTouched, status)
			}
		}
		return nil
	},
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

		fmt.Fprintf(cmd.OutOrStdout(), "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(cmd.OutOrStdout(), "Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list [CONFIG]",
	Short: "View configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(args)
		if err != nil {
			return err
		}

		cfg, err := config.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Configuration from %s:\n\n", path)
		fmt.Fprintf(w, "Backup Root: %s\n", cfg.BackupRootPath)
		fmt.Fprintf(w, "Log Dir:     %s\n", cfg.LogDir)
		fmt.Fprintf(w, "Database:    %s\n", cmp.Or(cfg.Database.Type, "none"))
		fmt.Fprintf(w, "Directories:\n")
		for _, d := range cfg.Directories {
			fmt.Fprintf(w, "  %-9s  subdirs=%-5t  %s\n", d.Action, d.IncludeDirectories, d.Path)
		}
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// root commands
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("keep-going", "k", false, "Continue with the next entry after a failure")
	runCmd.Flags().BoolP("verbose", "v", false, "Mirror log records to stderr")
	runCmd.Flags().BoolP("yes", "y", false, "Do not ask before deleting files")
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
	historyCmd.Flags().BoolP("details", "d", false, "Show per-entry outcomes")
	rootCmd.AddCommand(configCmd)
}
