// Package pipeline runs a chain of external tools as one unit of work.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	dterrors "github.com/five82/dovetail/internal/errors"
)

// StdinSource selects where a stage reads its input.
type StdinSource int

const (
	// StdinNone leaves the stage without an input pipe.
	StdinNone StdinSource = iota
	// StdinPrevious connects the stage to the previous stage's stdout.
	StdinPrevious
)

// StdoutSink selects where a stage's output goes.
type StdoutSink int

const (
	// StdoutNone means the tool writes its own named file.
	StdoutNone StdoutSink = iota
	// StdoutNext pipes output into the next stage.
	StdoutNext
	// StdoutFile redirects output into StageSpec.StdoutPath.
	StdoutFile
)

// StageSpec describes one external tool invocation.
type StageSpec struct {
	Name       string
	Executable string
	Args       []string
	Stdin      StdinSource
	Stdout     StdoutSink
	StdoutPath string
	// OnLine, if set, sees every diagnostic line the stage emits.
	OnLine func(line string)
}

// Command renders the stage argv for logs.
func (s StageSpec) Command() string {
	return strings.TrimSpace(s.Executable + " " + strings.Join(s.Args, " "))
}

// Spec is an ordered list of stages run concurrently with piped transfers.
type Spec struct {
	Name   string
	Stages []StageSpec
	// OutputPath is the artifact the pipeline is expected to leave behind.
	OutputPath string
}

// Validate checks that the pipe wiring between stages is consistent.
func (s Spec) Validate() error {
	if len(s.Stages) == 0 {
		return dterrors.NewConfigError(fmt.Sprintf("pipeline %q has no stages", s.Name), nil)
	}
	seen := make(map[string]bool, len(s.Stages))
	for i, st := range s.Stages {
		if st.Name == "" || st.Executable == "" {
			return dterrors.NewConfigError(fmt.Sprintf("pipeline %q stage %d needs a name and executable", s.Name, i), nil)
		}
		if seen[st.Name] {
			return dterrors.NewConfigError(fmt.Sprintf("pipeline %q has duplicate stage %q", s.Name, st.Name), nil)
		}
		seen[st.Name] = true

		if st.Stdout == StdoutFile && st.StdoutPath == "" {
			return dterrors.NewConfigError(fmt.Sprintf("stage %q redirects stdout without a path", st.Name), nil)
		}
		next := i+1 < len(s.Stages) && s.Stages[i+1].Stdin == StdinPrevious
		if (st.Stdout == StdoutNext) != next {
			return dterrors.NewConfigError(fmt.Sprintf("stage %q stdout and next stage stdin disagree", st.Name), nil)
		}
		if i == 0 && st.Stdin == StdinPrevious {
			return dterrors.NewConfigError(fmt.Sprintf("first stage %q cannot read a previous stage", st.Name), nil)
		}
	}
	return nil
}

// StageResult records how one stage ended.
type StageResult struct {
	Name     string
	ExitCode int
	LogPath  string
	Success  bool
	Excerpt  string
	Duration time.Duration
}

// Failure identifies the stage that decided a failed Outcome.
// StageIndex is -1 when no single stage is to blame (cancellation, bad spec).
type Failure struct {
	StageIndex int
	StageName  string
	ExitCode   int
	Excerpt    string
	Err        error
}

// Outcome is the result of running a Spec.
type Outcome struct {
	Name       string
	Success    bool
	Cancelled  bool
	OutputPath string
	Stages     []StageResult
	Failure    *Failure
	// Transferred counts bytes moved across each piped edge, indexed by
	// the upstream stage.
	Transferred []int64
}

// Err returns the failure cause, or nil on success.
func (o Outcome) Err() error {
	if o.Success || o.Failure == nil {
		return nil
	}
	return o.Failure.Err
}

// LogPaths lists every stage log written.
func (o Outcome) LogPaths() []string {
	var paths []string
	for _, st := range o.Stages {
		if st.LogPath != "" {
			paths = append(paths, st.LogPath)
		}
	}
	return paths
}
