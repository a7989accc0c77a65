// Package errors provides structured error types for dovetail operations.
package errors

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// ErrorKind represents the category of an error.
type ErrorKind int

const (
	// KindIO represents I/O errors.
	KindIO ErrorKind = iota
	// KindPath represents path-related errors.
	KindPath
	// KindCommand represents external command execution errors.
	KindCommand
	// KindFFprobeParse represents FFprobe output parsing errors.
	KindFFprobeParse
	// KindConfig represents configuration validation errors.
	KindConfig
	// KindNoFilesFound represents no suitable video files found.
	KindNoFilesFound
	// KindOperationFailed represents general operation failures.
	KindOperationFailed
	// KindProcessLaunch means an external tool could not be started.
	KindProcessLaunch
	// KindStageExit means a pipeline stage exited non-zero.
	KindStageExit
	// KindTransfer means the piped copy between two stages failed.
	KindTransfer
	// KindCommit means the final replace of the original file failed.
	KindCommit
	// KindDiagnosticIO means a diagnostic log line could not be written.
	KindDiagnosticIO
	// KindCancelled represents user-cancelled operations.
	KindCancelled
)

// String returns a string representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "I/O error"
	case KindPath:
		return "Path error"
	case KindCommand:
		return "Command error"
	case KindFFprobeParse:
		return "FFprobe parse error"
	case KindConfig:
		return "Configuration error"
	case KindNoFilesFound:
		return "No files found"
	case KindOperationFailed:
		return "Operation failed"
	case KindProcessLaunch:
		return "Process launch error"
	case KindStageExit:
		return "Stage exit error"
	case KindTransfer:
		return "Transfer error"
	case KindCommit:
		return "Commit error"
	case KindDiagnosticIO:
		return "Diagnostic I/O fault"
	case KindCancelled:
		return "Operation cancelled"
	default:
		return "Unknown error"
	}
}

// CommandErrorKind represents the type of command error.
type CommandErrorKind int

const (
	// CommandStart means the command failed to start.
	CommandStart CommandErrorKind = iota
	// CommandWait means waiting for the command failed.
	CommandWait
	// CommandFailed means the command returned non-zero exit status.
	CommandFailed
)

// CommandError represents an error from executing an external command.
type CommandError struct {
	Command    string
	Kind       CommandErrorKind
	ExitCode   int
	Stderr     string
	Underlying error
}

func (e *CommandError) Error() string {
	switch e.Kind {
	case CommandStart:
		return fmt.Sprintf("failed to execute %s: %v", e.Command, e.Underlying)
	case CommandWait:
		return fmt.Sprintf("failed to wait for %s: %v", e.Command, e.Underlying)
	case CommandFailed:
		if e.Stderr != "" {
			return fmt.Sprintf("command %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
		}
		return fmt.Sprintf("command %s failed with exit code %d", e.Command, e.ExitCode)
	default:
		return fmt.Sprintf("command %s error: %v", e.Command, e.Underlying)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Underlying
}

// CoreError is the main error type for dovetail operations.
type CoreError struct {
	Kind       ErrorKind
	Message    string
	Underlying error
}

func (e *CoreError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// Is reports whether target matches this error's kind.
func (e *CoreError) Is(target error) bool {
	t, ok := target.(*CoreError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewIOError creates a new I/O error.
func NewIOError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindIO, Message: message, Underlying: underlying}
}

// NewPathError creates a new path-related error.
func NewPathError(message string) *CoreError {
	return &CoreError{Kind: KindPath, Message: message}
}

// NewFFprobeParseError creates a new FFprobe parsing error.
func NewFFprobeParseError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindFFprobeParse, Message: message, Underlying: underlying}
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindConfig, Message: message, Underlying: underlying}
}

// NewNoFilesFoundError creates an error for when no video files are found.
func NewNoFilesFoundError(dir string) *CoreError {
	return &CoreError{Kind: KindNoFilesFound, Message: fmt.Sprintf("no suitable video files found in %s", dir)}
}

// NewOperationFailedError creates a new general operation failure error.
func NewOperationFailedError(message string, underlying error) *CoreError {
	return &CoreError{Kind: KindOperationFailed, Message: message, Underlying: underlying}
}

// NewProcessLaunchError creates an error for a tool that could not be started.
func NewProcessLaunchError(cmd string, err error) *CoreError {
	cmdErr := &CommandError{Command: cmd, Kind: CommandStart, Underlying: err}
	return &CoreError{Kind: KindProcessLaunch, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewStageExitError creates an error for a stage that returned non-zero exit status.
// excerpt is the tail of the stage's diagnostic output.
func NewStageExitError(cmd string, exitCode int, excerpt string) *CoreError {
	cmdErr := &CommandError{
		Command:  cmd,
		Kind:     CommandFailed,
		ExitCode: exitCode,
		Stderr:   excerpt,
	}
	return &CoreError{Kind: KindStageExit, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewStageWaitError creates an error for a stage whose exit status could not be collected.
func NewStageWaitError(cmd string, err error) *CoreError {
	cmdErr := &CommandError{Command: cmd, Kind: CommandWait, Underlying: err}
	return &CoreError{Kind: KindCommand, Message: cmdErr.Error(), Underlying: cmdErr}
}

// NewTransferError creates an error for a failed copy between two stages.
func NewTransferError(from, to string, underlying error) *CoreError {
	return &CoreError{
		Kind:       KindTransfer,
		Message:    fmt.Sprintf("piping %s into %s", from, to),
		Underlying: underlying,
	}
}

// NewCommitError creates an error for a failed replace of the original file.
func NewCommitError(path string, underlying error) *CoreError {
	return &CoreError{
		Kind:       KindCommit,
		Message:    fmt.Sprintf("replacing %s (original left untouched)", path),
		Underlying: underlying,
	}
}

// NewDiagnosticIOError creates an error for a diagnostic log write failure.
func NewDiagnosticIOError(path string, underlying error) *CoreError {
	return &CoreError{
		Kind:       KindDiagnosticIO,
		Message:    fmt.Sprintf("writing diagnostics to %s", path),
		Underlying: underlying,
	}
}

// NewCancelledError creates an error for user-cancelled operations.
func NewCancelledError() *CoreError {
	return &CoreError{Kind: KindCancelled, Message: "operation was cancelled by the user", Underlying: context.Canceled}
}

// IsKind checks if the error has the specified kind.
func IsKind(err error, kind ErrorKind) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Kind == kind
	}
	return false
}

// IsCancelled checks if the error is a cancellation error, either a
// KindCancelled CoreError or a bare context cancellation.
func IsCancelled(err error) bool {
	if IsKind(err, KindCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsNoFilesFound checks if the error is a no-files-found error.
func IsNoFilesFound(err error) bool {
	return IsKind(err, KindNoFilesFound)
}

// IsPerItem reports whether err is scoped to a single item and should not
// stop a batch.
func IsPerItem(err error) bool {
	if err == nil || IsCancelled(err) {
		return false
	}
	return !IsKind(err, KindConfig)
}

// ExitCode extracts the exit code from a stage exit error, or -1.
func ExitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Kind == CommandFailed {
		return cmdErr.ExitCode
	}
	return -1
}

// WrapExecError wraps an exec.ExitError into a CoreError.
func WrapExecError(cmd string, err error, stderr string) *CoreError {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return NewStageExitError(cmd, exitErr.ExitCode(), stderr)
	}
	return NewProcessLaunchError(cmd, err)
}
