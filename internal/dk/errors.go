package dk

import (
	"errors"
	"fmt"
)

var (
	ErrConfig  = errors.New("configuration error")
	ErrRead    = errors.New("read error")
	ErrDelete  = errors.New("delete error")
	ErrArchive = errors.New("archive error")

	// ErrArchiveFailed marks a purge that was not run because an archive of
	// the same files failed earlier in the run.
	ErrArchiveFailed = errors.New("archive failed earlier in this run")
)

// ConfigError reports a malformed or incomplete configuration.
// It is always raised before any entry is dispatched.
type ConfigError struct {
	Field string
	Msg   string
	Err   error // optional cause, e.g. a decoder error
}

func (e *ConfigError) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfig, msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Field, msg)
}

func (e *ConfigError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConfig}
	}
	return []error{ErrConfig, e.Err}
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NewConfigError builds a ConfigError for collaborators that load configuration.
// cause may be nil.
func NewConfigError(field, msg string, cause error) error {
	return &ConfigError{Field: field, Msg: msg, Err: cause}
}

// OpError records a failed filesystem operation. Kind is one of ErrRead, ErrDelete
// or ErrArchive; errors.Is matches both the kind and the underlying cause.
type OpError struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() []error { return []error{e.Kind, e.Err} }

func readError(op, path string, err error) error {
	return &OpError{Kind: ErrRead, Op: op, Path: path, Err: err}
}

func deleteError(op, path string, err error) error {
	return &OpError{Kind: ErrDelete, Op: op, Path: path, Err: err}
}

func archiveError(op, path string, err error) error {
	return &OpError{Kind: ErrArchive, Op: op, Path: path, Err: err}
}
