package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/five82/dovetail/internal/drain"
	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/logging"
	"github.com/five82/dovetail/internal/proc"
	"github.com/five82/dovetail/internal/util"
)

// LogOpener opens the diagnostic sink for a stage log path.
type LogOpener func(path string) (io.WriteCloser, error)

// Executor runs pipeline specs. It holds no per-run state and may be shared.
type Executor struct {
	logDir       string
	logger       *logging.Logger
	grace        time.Duration
	excerptLines int
	openLog      LogOpener
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the run logger. The default discards.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTerminateGrace sets the SIGTERM to SIGKILL delay on cancellation.
func WithTerminateGrace(d time.Duration) Option {
	return func(e *Executor) { e.grace = d }
}

// WithExcerptLines sets how many trailing diagnostic lines a failure carries.
func WithExcerptLines(n int) Option {
	return func(e *Executor) { e.excerptLines = n }
}

// WithLogOpener replaces the stage log file opener.
func WithLogOpener(open LogOpener) Option {
	return func(e *Executor) { e.openLog = open }
}

// NewExecutor creates an executor writing stage logs under logDir.
func NewExecutor(logDir string, opts ...Option) *Executor {
	e := &Executor{
		logDir:       logDir,
		grace:        proc.DefaultTerminateGrace,
		excerptLines: drain.DefaultExcerptLines,
		openLog:      createLog,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func createLog(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
}

type transfer struct {
	bytes int64
	err   error
}

type waitResult struct {
	code int
	err  error
	end  time.Time
}

// Run executes spec and blocks until every stage has exited and every
// goroutine it started has finished. It never returns with a child still
// running.
func (e *Executor) Run(ctx context.Context, spec Spec, naming util.Naming) Outcome {
	out := Outcome{Name: spec.Name, OutputPath: spec.OutputPath}
	if err := spec.Validate(); err != nil {
		out.Failure = &Failure{StageIndex: -1, ExitCode: -1, Err: err}
		return out
	}
	if ctx.Err() != nil {
		return cancelled(out)
	}

	log := e.logger.Named(spec.Name)
	n := len(spec.Stages)
	handles := make([]*proc.Handle, 0, n)
	var launchErr error
	for _, st := range spec.Stages {
		log.Debug("spawning %s: %s", st.Name, st.Command())
		opts := proc.Options{
			Name:           st.Name,
			Path:           st.Executable,
			Args:           st.Args,
			StdinPipe:      st.Stdin == StdinPrevious,
			StdoutPipe:     st.Stdout == StdoutNext,
			TerminateGrace: e.grace,
		}
		if st.Stdout == StdoutFile {
			opts.StdoutFile = st.StdoutPath
		}
		h, err := proc.Spawn(ctx, opts)
		if err != nil {
			launchErr = err
			break
		}
		handles = append(handles, h)
	}

	started := time.Now()
	var wg sync.WaitGroup

	drains := make([]drain.Result, len(handles))
	logPaths := make([]string, len(handles))
	for i, h := range handles {
		logPaths[i] = naming.Log(e.logDir, spec.Stages[i].Name)
		wg.Add(1)
		go func(i int, h *proc.Handle) {
			defer wg.Done()
			drains[i] = e.drainStage(h, spec.Stages[i], logPaths[i], log)
		}(i, h)
	}

	waits := make([]waitResult, len(handles))
	for i, h := range handles {
		wg.Add(1)
		go func(i int, h *proc.Handle) {
			defer wg.Done()
			code, err := h.Wait()
			waits[i] = waitResult{code: code, err: err, end: time.Now()}
			log.Info("stage %s exited with code %d", spec.Stages[i].Name, code)
		}(i, h)
	}

	if launchErr != nil {
		// Nothing downstream will ever read or write; unblock the
		// spawned stages and collect them.
		for _, h := range handles {
			h.Terminate()
			closeIfSet(h.Stdin())
			closeIfSet(h.Stdout())
		}
		wg.Wait()
		for _, h := range handles {
			h.Close()
		}
		idx := len(handles)
		log.Error("failed to launch %s: %v", spec.Stages[idx].Name, launchErr)
		out.Stages = e.stageResults(spec, waits, drains, logPaths, started)
		out.Failure = &Failure{
			StageIndex: idx,
			StageName:  spec.Stages[idx].Name,
			ExitCode:   -1,
			Err:        launchErr,
		}
		return out
	}

	transfers := make([]transfer, n)
	for i := 0; i+1 < n; i++ {
		if spec.Stages[i].Stdout != StdoutNext {
			continue
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src, dst := handles[i].Stdout(), handles[i+1].Stdin()
			copied, err := io.Copy(dst, src)
			// EOF for the downstream stage, then release upstream so a
			// blocked writer sees EPIPE if downstream quit early.
			if cerr := dst.Close(); err == nil && cerr != nil && !errors.Is(cerr, os.ErrClosed) {
				err = cerr
			}
			_ = src.Close()
			transfers[i] = transfer{bytes: copied, err: err}
			log.Debug("transferred %d bytes %s -> %s", copied, spec.Stages[i].Name, spec.Stages[i+1].Name)
		}(i)
	}

	finished := make(chan struct{})
	watcherDone := make(chan struct{})
	go func() {
		defer close(watcherDone)
		select {
		case <-ctx.Done():
			log.Info("cancel requested, terminating %d stages", len(handles))
			for _, h := range handles {
				h.Terminate()
			}
			for _, h := range handles {
				h.Close()
			}
		case <-finished:
		}
	}()

	wg.Wait()
	close(finished)
	<-watcherDone
	for _, h := range handles {
		h.Close()
	}

	out.Stages = e.stageResults(spec, waits, drains, logPaths, started)
	out.Transferred = make([]int64, n)
	for i, t := range transfers {
		out.Transferred[i] = t.bytes
	}

	if ctx.Err() != nil {
		return cancelled(out)
	}

	for i, st := range out.Stages {
		if waits[i].err != nil {
			out.Failure = &Failure{
				StageIndex: i,
				StageName:  st.Name,
				ExitCode:   st.ExitCode,
				Excerpt:    st.Excerpt,
				Err:        dterrors.NewStageWaitError(st.Name, waits[i].err),
			}
			return out
		}
		if st.ExitCode != 0 {
			log.Warn("stage %s failed with exit code %d", st.Name, st.ExitCode)
			out.Failure = &Failure{
				StageIndex: i,
				StageName:  st.Name,
				ExitCode:   st.ExitCode,
				Excerpt:    st.Excerpt,
				Err:        dterrors.NewStageExitError(st.Name, st.ExitCode, st.Excerpt),
			}
			return out
		}
	}

	for i, t := range transfers {
		if t.err == nil {
			continue
		}
		from, to := spec.Stages[i].Name, spec.Stages[i+1].Name
		log.Warn("transfer %s -> %s failed after %d bytes: %v", from, to, t.bytes, t.err)
		out.Failure = &Failure{
			StageIndex: i,
			StageName:  from,
			ExitCode:   0,
			Err:        dterrors.NewTransferError(from, to, t.err),
		}
		return out
	}

	out.Success = true
	return out
}

func (e *Executor) drainStage(h *proc.Handle, st StageSpec, path string, log *logging.Logger) drain.Result {
	opts := drain.Options{
		ExcerptLines: e.excerptLines,
		OnLine:       st.OnLine,
		Logger:       log,
		Name:         path,
	}
	w, err := e.openLog(path)
	if err != nil {
		log.Debug("%v", dterrors.NewDiagnosticIOError(path, err))
		return drain.Drain(h.Stderr(), nil, opts)
	}
	res := drain.Drain(h.Stderr(), w, opts)
	if err := w.Close(); err != nil {
		log.Debug("%v", dterrors.NewDiagnosticIOError(path, err))
	}
	return res
}

func (e *Executor) stageResults(spec Spec, waits []waitResult, drains []drain.Result, logPaths []string, started time.Time) []StageResult {
	results := make([]StageResult, len(waits))
	for i := range waits {
		results[i] = StageResult{
			Name:     spec.Stages[i].Name,
			ExitCode: waits[i].code,
			LogPath:  logPaths[i],
			Success:  waits[i].err == nil && waits[i].code == 0,
			Excerpt:  drains[i].ExcerptText(),
			Duration: waits[i].end.Sub(started),
		}
	}
	return results
}

func cancelled(out Outcome) Outcome {
	out.Success = false
	out.Cancelled = true
	out.Failure = &Failure{StageIndex: -1, ExitCode: -1, Err: dterrors.NewCancelledError()}
	return out
}

func closeIfSet(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}
