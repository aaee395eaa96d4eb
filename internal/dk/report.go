package dk

import (
	"errors"
	"fmt"
	"time"
)

// Report accumulates the outcomes of a run in dispatch order.
type Report struct {
	RunID        string
	TimestampTag string
	StartedAt    time.Time
	FinishedAt   time.Time
	Outcomes     []OperationOutcome
}

// Totals aggregates a report.
type Totals struct {
	Entries     int
	Failed      int
	Files       int64
	Bytes       int64
	Directories int64
	Skipped     int64
}

// Add appends an outcome.
func (r *Report) Add(o OperationOutcome) {
	r.Outcomes = append(r.Outcomes, o)
}

// Failed reports whether any outcome carries an error.
func (r *Report) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Err joins the errors of all failed outcomes, each prefixed with its entry.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", o.Entry.Action, o.Entry.Path, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Status returns the run status recorded in the run store.
func (r *Report) Status() string {
	if r.Failed() {
		return RunStatusError
	}
	return RunStatusSuccess
}

func (r *Report) Totals() Totals {
	t := Totals{Entries: len(r.Outcomes)}
	for _, o := range r.Outcomes {
		if o.Err != nil {
			t.Failed++
		}
		t.Files += o.FilesTouched
		t.Bytes += o.BytesTouched
		t.Directories += o.DirectoriesTouched
		t.Skipped += o.Skipped
	}
	return t
}
