package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"dirkeep/internal/dk"
)

// LogFileName is the log file written inside log_dir.
const LogFileName = "dirkeep.log"

// runTag holds the timestamp tag of the current run. It is shared by a handler
// and every handler derived from it, and reads "-" until a run starts.
type runTag struct {
	mu  sync.Mutex
	tag string
}

func (t *runTag) set(tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tag = tag
}

func (t *runTag) String() string {
	if t == nil {
		return "-"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tag == "" {
		return "-"
	}
	return t.tag
}

// runHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<runTag>\t<message>\t<key=value ...>
type runHandler struct {
	w      io.Writer
	runTag *runTag
	attrs  []slog.Attr
}

func (h *runHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *runHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.runTag.String(), r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *runHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &runHandler{
		w:      h.w,
		runTag: h.runTag,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *runHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger writing to logDir/dirkeep.log, and to
// stderr as well when verbose is set. An empty logDir disables the file.
// Records are labelled with tag. It returns the slog.Logger, the open log file
// (nil without logDir), and any error.
func newLogger(logDir string, tag *runTag, verbose bool) (*slog.Logger, *os.File, error) {
	var (
		writers []io.Writer
		f       *os.File
	)

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(filepath.Join(logDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		writers = append(writers, f)
	}
	if verbose {
		writers = append(writers, os.Stderr)
	}

	w := io.Discard
	if len(writers) > 0 {
		w = io.MultiWriter(writers...)
	}
	return slog.New(&runHandler{w: w, runTag: tag}), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the dk.Logger interface.
type slogAdapter struct {
	l   *slog.Logger
	tag *runTag
}

// SetRunTag relabels every subsequent record with the run's timestamp tag.
func (a *slogAdapter) SetRunTag(tag string) {
	if a.tag != nil {
		a.tag.set(tag)
	}
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }

var (
	_ dk.Logger    = (*slogAdapter)(nil)
	_ dk.RunTagger = (*slogAdapter)(nil)
)
