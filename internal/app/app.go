package app

import (
	"fmt"
	"io"
	"os"

	"dirkeep/internal/config"
	"dirkeep/internal/database"
	"dirkeep/internal/dk"
	"dirkeep/internal/fs"
)

// Options tunes how an App reports.
type Options struct {
	// Verbose mirrors log records to stderr.
	Verbose bool

	// Out receives console output. Defaults to os.Stdout.
	Out io.Writer
}

// App is the application layer between the CLI and the dk.Executor.
// It constructs all dependencies from config and closes them on Close.
type App struct {
	cfg     *config.Config
	run     dk.RunConfig
	store   dk.RunStore
	exec    *dk.Executor
	logger  dk.Logger
	logFile *os.File
}

// NewApp creates a fully wired App from the given config. Configuration
// problems are reported as dk.ConfigError before anything else is opened.
// The caller must call Close when done.
func NewApp(cfg *config.Config, opts Options) (*App, error) {
	run, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}

	archiveOpts, err := archiveOptions(cfg.Archive)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	tag := &runTag{}
	slogger, logFile, err := newLogger(cfg.LogDir, tag, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger, tag: tag}

	store, err := database.NewRunStoreFromConfig(cfg.Database)
	if err != nil {
		closeFile(logFile)
		return nil, fmt.Errorf("creating database: %w", err)
	}

	fsys := fs.NewOSFilesystem()
	events := NewConsole(out)
	archiver := dk.NewArchiver(fsys, events, logger, archiveOpts)
	exec := dk.NewExecutor(fsys, archiver, logger, events, dk.RealClock{}, dk.UUIDGenerator{}, store)

	return &App{
		cfg:     cfg,
		run:     run,
		store:   store,
		exec:    exec,
		logger:  logger,
		logFile: logFile,
	}, nil
}

// archiveOptions translates the [archive] section, merging exclude_from patterns
// into the inline ones.
func archiveOptions(c config.ArchiveConfig) (dk.ArchiveOptions, error) {
	mode, err := c.Mode()
	if err != nil {
		return dk.ArchiveOptions{}, dk.NewConfigError("archive.file_mode", "invalid file mode", err)
	}
	opts := dk.ArchiveOptions{
		Compression: dk.Compression(c.Compression),
		FileMode:    mode,
	}

	patterns := append([]string{}, c.Exclude...)
	if c.ExcludeFrom != "" {
		extra, err := fs.ParseExcludeFile(c.ExcludeFrom)
		if err != nil {
			return dk.ArchiveOptions{}, dk.NewConfigError("archive.exclude_from", "reading exclude file", err)
		}
		patterns = append(patterns, extra...)
	}
	if m := fs.NewExcludeMatcher(patterns); !m.Empty() {
		opts.Exclude = m
	}
	return opts, nil
}

// Plan returns the dispatch order of the configured entries.
func (a *App) Plan() ([]dk.ScheduledEntry, error) {
	return a.exec.Plan(a.run)
}

// HasPurge reports whether the configuration deletes anything.
func (a *App) HasPurge() bool {
	for _, e := range a.run.Entries {
		if e.Action == dk.ActionPurge {
			return true
		}
	}
	return false
}

// Run executes every configured entry. source labels the run in the history.
func (a *App) Run(source string, keepGoing bool) (*dk.Report, error) {
	return a.exec.Run(a.run, dk.RunOptions{ContinueOnError: keepGoing, Source: source})
}

// History returns the most recent runs, newest first. It returns nothing when
// run history is disabled.
func (a *App) History(limit int) ([]dk.RunRecord, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.ListRuns(limit)
}

// Outcomes returns the recorded outcomes of one run.
func (a *App) Outcomes(runID string) ([]dk.OutcomeRecord, error) {
	if a.store == nil {
		return nil, nil
	}
	return a.store.ListOutcomes(runID)
}

// HistoryEnabled reports whether a run store is configured.
func (a *App) HistoryEnabled() bool {
	return a.store != nil
}

// Close closes the run store and the log file.
func (a *App) Close() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}
	closeFile(a.logFile)
	return firstErr
}

func closeFile(f *os.File) {
	if f != nil {
		f.Close()
	}
}
