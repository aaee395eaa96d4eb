package dk

import (
	"fmt"
	"path/filepath"
)

// RunOptions tunes a run.
type RunOptions struct {
	// ContinueOnError records a failed entry and proceeds with the next one
	// instead of halting the run. The run still reports failure.
	ContinueOnError bool

	// Source labels the run in the history store, usually the config path.
	Source string
}

// Executor is the orchestration layer: it validates a RunConfig, orders its
// entries and dispatches them one at a time to the matching operation.
type Executor struct {
	fsys     Filesystem
	archiver *Archiver
	logger   Logger
	events   Events
	clock    Clock
	idgen    IDGenerator
	store    RunStore
}

// NewExecutor creates an Executor. store may be nil to disable run history.
func NewExecutor(fsys Filesystem, archiver *Archiver, logger Logger, events Events, clock Clock, idgen IDGenerator, store RunStore) *Executor {
	return &Executor{
		fsys:     fsys,
		archiver: archiver,
		logger:   logger,
		events:   events,
		clock:    clock,
		idgen:    idgen,
		store:    store,
	}
}

// Plan validates cfg and returns the dispatch order without touching the filesystem.
func (e *Executor) Plan(cfg RunConfig) ([]ScheduledEntry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Schedule(cfg.Entries), nil
}

// Run validates cfg, then dispatches every entry in scheduled order, strictly
// sequentially. A ConfigError is returned before anything is dispatched. By
// default the first failing entry halts the run; see RunOptions.ContinueOnError.
// The returned report is non-nil whenever validation passed.
func (e *Executor) Run(cfg RunConfig, opts RunOptions) (*Report, error) {
	schedule, err := e.Plan(cfg)
	if err != nil {
		return nil, err
	}

	startedAt := e.clock.Now()
	report := &Report{
		RunID:        e.idgen.New(),
		TimestampTag: TimestampTag(startedAt),
		StartedAt:    startedAt,
	}

	if e.store != nil {
		err := e.store.CreateRun(RunRecord{
			ID:           report.RunID,
			TimestampTag: report.TimestampTag,
			Source:       opts.Source,
			StartedAt:    startedAt,
			Status:       RunStatusRunning,
		})
		if err != nil {
			return nil, fmt.Errorf("recording run start: %w", err)
		}
	}

	if t, ok := e.logger.(RunTagger); ok {
		t.SetRunTag(report.TimestampTag)
	}
	e.logger.Info("run started", "run", report.RunID, "tag", report.TimestampTag, "entries", len(schedule))

	var (
		runErr         error
		failedArchives []string
	)
	for _, s := range schedule {
		outcome := e.dispatch(cfg, report.TimestampTag, s, failedArchives)
		report.Add(outcome)
		e.record(report.RunID, outcome)

		if s.Entry.Action == ActionArchive && outcome.Err != nil {
			failedArchives = append(failedArchives, s.Entry.Path)
		}

		if outcome.Err != nil {
			e.logger.Error("entry failed", "path", s.Entry.Path, "action", s.Entry.Action.String(), "error", outcome.Err)
			if !opts.ContinueOnError {
				runErr = fmt.Errorf("%s %s: %w", s.Entry.Action, s.Entry.Path, outcome.Err)
				break
			}
		}
	}
	if runErr == nil && report.Failed() {
		runErr = report.Err()
	}

	report.FinishedAt = e.clock.Now()
	if e.store != nil {
		if err := e.store.FinishRun(report.RunID, report.FinishedAt, report.Status()); err != nil {
			e.logger.Warn("recording run finish failed", "run", report.RunID, "error", err)
		}
	}

	totals := report.Totals()
	e.logger.Info("run finished", "run", report.RunID, "status", report.Status(),
		"entries", totals.Entries, "failed", totals.Failed)
	return report, runErr
}

// dispatch runs one entry to completion and returns its finalized outcome.
// A purge that would delete files covered by one of failedArchives is not run.
func (e *Executor) dispatch(cfg RunConfig, tag string, s ScheduledEntry, failedArchives []string) OperationOutcome {
	e.events.Send(EntryStarted{Sequence: s.Sequence, Entry: s.Entry})
	e.logger.Debug("dispatching entry", "sequence", s.Sequence, "path", s.Entry.Path, "action", s.Entry.Action.String())

	startedAt := e.clock.Now()
	var (
		outcome OperationOutcome
		err     error
	)
	switch s.Entry.Action {
	case ActionEnumerate:
		outcome, err = Enumerate(e.fsys, e.events, s.Entry)
	case ActionMeasure:
		outcome, err = Measure(e.fsys, e.events, s.Entry)
	case ActionPurge:
		if archived, blocked := purgeBlocked(s.Entry, failedArchives); blocked {
			err = deleteError("purge", s.Entry.Path, fmt.Errorf("%w: %s", ErrArchiveFailed, archived))
			break
		}
		outcome, err = Purge(e.fsys, e.events, s.Entry)
	case ActionArchive:
		job := NewArchiveJob(cfg.ArchiveDestinationRoot, s.Entry.Path, tag)
		outcome, err = e.archiver.Archive(job)
	default:
		err = configErrorf("action", "invalid action %v", s.Entry.Action)
	}

	outcome.Sequence = s.Sequence
	outcome.Entry = s.Entry
	outcome.StartedAt = startedAt
	outcome.FinishedAt = e.clock.Now()
	outcome.Err = err

	e.events.Send(EntryFinished{Outcome: outcome})
	return outcome
}

// purgeBlocked returns the failed archive root whose files entry would delete:
// the purge root itself, any ancestor of it, or (for a recursive purge) any
// directory beneath it.
func purgeBlocked(entry DirectoryEntry, failedArchives []string) (string, bool) {
	for _, archived := range failedArchives {
		if filepath.Clean(archived) == filepath.Clean(entry.Path) || isWithin(archived, entry.Path) {
			return archived, true
		}
		if entry.IncludeSubdirectories && isWithin(entry.Path, archived) {
			return archived, true
		}
	}
	return "", false
}

func (e *Executor) record(runID string, outcome OperationOutcome) {
	if e.store == nil {
		return
	}
	if err := e.store.RecordOutcome(runID, outcome); err != nil {
		e.logger.Warn("recording outcome failed", "run", runID, "path", outcome.Entry.Path, "error", err)
	}
}
