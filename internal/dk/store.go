package dk

import "time"

// Run status values recorded in the run store.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// RunRecord is the persisted summary of one run.
type RunRecord struct {
	ID           string
	TimestampTag string
	Source       string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	EntryCount   int
	FailedCount  int
}

// OutcomeRecord is the persisted form of an OperationOutcome.
type OutcomeRecord struct {
	RunID              string
	Sequence           int
	Path               string
	Action             string
	IncludeSubdirs     bool
	FilesTouched       int64
	BytesTouched       int64
	DirectoriesTouched int64
	Skipped            int64
	ArchiveFile        string
	Error              string
}

// RunStore persists run history. A nil RunStore disables history.
type RunStore interface {
	// CreateRun records the start of a run.
	CreateRun(run RunRecord) error

	// RecordOutcome appends the outcome of one dispatched entry.
	RecordOutcome(runID string, outcome OperationOutcome) error

	// FinishRun marks the run as finished with the given status.
	FinishRun(runID string, finishedAt time.Time, status string) error

	// ListRuns returns the most recent runs, newest first.
	ListRuns(limit int) ([]RunRecord, error)

	// ListOutcomes returns the outcomes of a run in dispatch order.
	ListOutcomes(runID string) ([]OutcomeRecord, error)

	Close() error
}
