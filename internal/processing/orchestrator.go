// Package processing runs a batch of catalog items through classification,
// conversion and replacement.
package processing

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/five82/dovetail/internal/catalog"
	"github.com/five82/dovetail/internal/config"
	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/ffmpeg"
	"github.com/five82/dovetail/internal/ffprobe"
	"github.com/five82/dovetail/internal/logging"
	"github.com/five82/dovetail/internal/media"
	"github.com/five82/dovetail/internal/pipeline"
	"github.com/five82/dovetail/internal/replace"
	"github.com/five82/dovetail/internal/reporter"
	"github.com/five82/dovetail/internal/toolchain"
	"github.com/five82/dovetail/internal/util"
)

const stageVerify = "verify"

// rescanTimeout bounds the rescan request sent after a cancelled batch.
const rescanTimeout = 30 * time.Second

// Runner executes one pipeline. *pipeline.Executor implements it.
type Runner interface {
	Run(ctx context.Context, spec pipeline.Spec, naming util.Naming) pipeline.Outcome
}

// Verifier checks a converted output before it replaces the original.
// *validation.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, output string, source media.MediaSource, c media.Classification) error
}

// Deps are the collaborators of a batch run. Nil fields get no-op defaults,
// except Runner which defaults to an executor logging under cfg.GetLogDir().
// A nil Verifier commits outputs unchecked.
type Deps struct {
	Runner    Runner
	Reporter  reporter.Reporter
	Rescanner catalog.Rescanner
	Verifier  Verifier
	Logger    *logging.Logger
}

// ItemResult is the outcome of one item.
type ItemResult struct {
	ItemID string
	Path   string
	Status reporter.ItemStatus
	// Classification of the last source acted on.
	Classification media.Classification
	Attempted      bool
	Err            error
	FailedStage    string
	ExitCode       int
	LogPaths       []string
	OriginalSize   uint64
	OutputSize     uint64
	Duration       time.Duration
}

// Summary describes a complete or cancelled batch.
type Summary struct {
	Total           int
	Attempted       int
	Converted       int
	Skipped         int
	Failed          int
	Items           []ItemResult
	RescanRequested bool
	Duration        time.Duration
}

func (s *Summary) record(r ItemResult) {
	s.Items = append(s.Items, r)
	if r.Attempted {
		s.Attempted++
	}
	switch r.Status {
	case reporter.StatusConverted:
		s.Converted++
	case reporter.StatusFailed:
		s.Failed++
	case reporter.StatusSkipped, reporter.StatusDryRun:
		s.Skipped++
	}
}

func (s Summary) report() reporter.BatchSummary {
	out := reporter.BatchSummary{
		TotalItems:      s.Total,
		Converted:       s.Converted,
		Skipped:         s.Skipped,
		Failed:          s.Failed,
		TotalDuration:   s.Duration,
		RescanRequested: s.RescanRequested,
	}
	for _, r := range s.Items {
		if r.Status != reporter.StatusFailed {
			continue
		}
		msg := ""
		if r.Err != nil {
			msg = r.Err.Error()
		}
		out.Failures = append(out.Failures, reporter.FailedItem{ItemID: r.ItemID, Stage: r.FailedStage, Message: msg})
	}
	return out
}

// ProcessItems handles items one at a time. A failing item is recorded and
// the batch moves on. The returned error is nil, a KindConfig error raised
// before any item is touched, or a KindCancelled error; the summary is
// valid in every case.
func ProcessItems(ctx context.Context, cfg config.Config, items []media.MediaItem, deps Deps) (Summary, error) {
	start := time.Now()
	summary := Summary{Total: len(items)}

	if err := cfg.Validate(); err != nil {
		return summary, err
	}

	b := newBatch(cfg, deps)
	if !cfg.DryRun {
		if err := util.EnsureDirectory(cfg.GetLogDir()); err != nil {
			b.log.Warn("Cannot create log directory %s: %v", cfg.GetLogDir(), err)
		}
	}
	b.announce(items)

	for i, item := range items {
		if ctx.Err() != nil {
			return b.cancelled(ctx, &summary, start)
		}

		b.rep.ItemStarted(reporter.ItemStartInfo{Index: i, Total: len(items), ItemID: item.ID, Path: firstPath(item)})

		res := b.processItem(ctx, item)
		if dterrors.IsCancelled(res.Err) {
			// Interrupted items are neither converted nor failed.
			if res.Attempted {
				summary.Attempted++
			}
			return b.cancelled(ctx, &summary, start)
		}

		summary.record(res)
		b.rep.ItemComplete(outcomeFor(res))
		b.rep.BatchProgress(util.ProgressPercent(i+1, len(items)))
	}

	if summary.Attempted > 0 {
		summary.RescanRequested = b.requestRescan(ctx)
	}
	summary.Duration = time.Since(start)
	b.rep.BatchComplete(summary.report())
	b.log.Info("Batch finished: %d converted, %d skipped, %d failed of %d",
		summary.Converted, summary.Skipped, summary.Failed, summary.Total)
	return summary, nil
}

type batch struct {
	cfg       config.Config
	runner    Runner
	rep       reporter.Reporter
	rescanner catalog.Rescanner
	verifier  Verifier
	log       *logging.Logger
}

func newBatch(cfg config.Config, deps Deps) *batch {
	b := &batch{
		cfg:       cfg,
		runner:    deps.Runner,
		rep:       deps.Reporter,
		rescanner: deps.Rescanner,
		verifier:  deps.Verifier,
		log:       deps.Logger,
	}
	if b.rep == nil {
		b.rep = reporter.NullReporter{}
	}
	if b.rescanner == nil {
		b.rescanner = catalog.LogRescanner{Log: b.log}
	}
	if b.runner == nil {
		b.runner = pipeline.NewExecutor(cfg.GetLogDir(),
			pipeline.WithLogger(b.log),
			pipeline.WithTerminateGrace(cfg.TerminateGrace),
			pipeline.WithExcerptLines(cfg.ExcerptLines),
		)
	}
	return b
}

func (b *batch) announce(items []media.MediaItem) {
	sys := util.GetSystemInfo()
	b.rep.Hardware(reporter.HardwareSummary{
		Hostname:    sys.Hostname,
		NumCPU:      sys.NumCPU,
		TotalMemory: sys.TotalMemory,
	})

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	b.rep.BatchStarted(reporter.BatchStartInfo{TotalItems: len(items), Items: ids, DryRun: b.cfg.DryRun})
	b.log.Info("Starting batch of %d items (dry run: %t)", len(items), b.cfg.DryRun)
}

// cancelled finishes a batch interrupted by ctx. Items already committed
// still changed the library, so the rescan is sent on a detached context.
func (b *batch) cancelled(ctx context.Context, summary *Summary, start time.Time) (Summary, error) {
	b.log.Warn("Batch cancelled after %d of %d items", len(summary.Items), summary.Total)
	b.rep.Warning("Batch cancelled")

	if summary.Attempted > 0 {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rescanTimeout)
		summary.RescanRequested = b.requestRescan(rctx)
		cancel()
	}
	summary.Duration = time.Since(start)
	b.rep.BatchComplete(summary.report())
	return *summary, dterrors.NewCancelledError()
}

func (b *batch) requestRescan(ctx context.Context) bool {
	if err := b.rescanner.RequestRescan(ctx); err != nil {
		b.log.Warn("Library rescan request failed: %v", err)
		b.rep.Warning(fmt.Sprintf("Library rescan request failed: %v", err))
		return false
	}
	return true
}

// processItem handles every source of an item. The first failing source
// ends the item.
func (b *batch) processItem(ctx context.Context, item media.MediaItem) ItemResult {
	start := time.Now()
	res := ItemResult{ItemID: item.ID, Path: firstPath(item), Status: reporter.StatusSkipped}

	decisions := media.ClassifyItem(item)
	for i, d := range decisions {
		identity := item.ID
		if len(decisions) > 1 {
			identity += "_" + strconv.Itoa(i)
		}

		sr := b.processSource(ctx, item.ID, identity, d)
		res.Attempted = res.Attempted || sr.Attempted
		res.LogPaths = append(res.LogPaths, sr.LogPaths...)
		res.OriginalSize += sr.OriginalSize
		res.OutputSize += sr.OutputSize
		if sr.Status != reporter.StatusSkipped {
			res.Path = sr.Path
			res.Classification = sr.Classification
		}

		switch sr.Status {
		case reporter.StatusFailed:
			res.Status = reporter.StatusFailed
			res.Err = sr.Err
			res.FailedStage = sr.FailedStage
			res.ExitCode = sr.ExitCode
			res.Duration = time.Since(start)
			if !dterrors.IsCancelled(sr.Err) {
				b.log.Error("Item %s failed: %v", item.ID, sr.Err)
			}
			return res
		case reporter.StatusConverted:
			res.Status = reporter.StatusConverted
		case reporter.StatusDryRun:
			if res.Status == reporter.StatusSkipped {
				res.Status = reporter.StatusDryRun
			}
		}
	}

	res.Duration = time.Since(start)
	return res
}

// processSource converts one source. Scratch artifacts are removed on
// every path; stage logs are kept when the source failed.
func (b *batch) processSource(ctx context.Context, itemID, identity string, d media.SourceDecision) ItemResult {
	src := d.Source
	res := ItemResult{ItemID: itemID, Path: src.Path, Classification: d.Classification, Status: reporter.StatusSkipped}

	summary := reporter.ClassificationSummary{
		ItemID:         itemID,
		Path:           src.Path,
		Classification: d.Classification.String(),
	}
	if dovi := src.DoVi(); dovi != nil {
		summary.DoVi = ffprobe.DescribeDoVi(dovi)
	}

	if d.Classification == media.Skip {
		b.log.Debug("Skipping %s", src.Path)
		b.rep.ItemClassified(summary)
		return res
	}

	fail := func(err error) ItemResult {
		res.Status = reporter.StatusFailed
		res.Err = err
		return res
	}

	naming, err := util.NewNaming(identity)
	if err != nil {
		return fail(dterrors.NewIOError("creating scratch names", err))
	}

	plan, err := toolchain.Build(b.cfg, src, d.Classification, naming, toolchain.Options{OnProgress: b.onProgress})
	if err != nil {
		return fail(err)
	}
	summary.Commands = plan.Describe()
	b.rep.ItemClassified(summary)
	b.log.Info("%s: %s", src.Path, d.Classification)

	if b.cfg.DryRun {
		for _, line := range summary.Commands {
			b.log.Info("[dry run] %s", line)
		}
		res.Status = reporter.StatusDryRun
		return res
	}

	if err := b.preflight(src, plan); err != nil {
		return fail(err)
	}

	res.Attempted = true
	res.OriginalSize = uint64(src.Size)
	defer replace.Cleanup(b.log, plan.Artifacts...)

	for _, spec := range plan.Pipelines {
		if ctx.Err() != nil {
			return fail(dterrors.NewCancelledError())
		}

		b.rep.StageProgress(reporter.StageProgress{Stage: spec.Name, Message: fmt.Sprintf("%s: %s", spec.Name, util.GetFilename(src.Path))})
		if spec.Name == toolchain.StageReencode {
			b.rep.EncodingStarted()
		}

		outcome := b.runner.Run(ctx, spec, naming)
		res.LogPaths = append(res.LogPaths, outcome.LogPaths()...)
		if !outcome.Success {
			if outcome.Failure != nil {
				res.FailedStage = outcome.Failure.StageName
				res.ExitCode = outcome.Failure.ExitCode
			}
			if outcome.Cancelled {
				return fail(dterrors.NewCancelledError())
			}
			return fail(outcome.Err())
		}
	}

	if b.verifier != nil {
		b.rep.StageProgress(reporter.StageProgress{Stage: stageVerify, Message: fmt.Sprintf("%s: %s", stageVerify, util.GetFilename(src.Path))})
		if err := b.verifier.Verify(ctx, plan.Output, src, d.Classification); err != nil {
			res.FailedStage = stageVerify
			return fail(err)
		}
	}

	if ctx.Err() != nil {
		return fail(dterrors.NewCancelledError())
	}

	if err := replace.Commit(b.log, plan.Output, src.Path); err != nil {
		res.FailedStage = "commit"
		return fail(err)
	}

	if size, err := util.GetFileSize(src.Path); err == nil {
		res.OutputSize = size
	}
	replace.Cleanup(b.log, res.LogPaths...)
	res.LogPaths = nil
	res.Status = reporter.StatusConverted
	b.log.Info("Replaced %s (%s)", src.Path, d.Classification)
	return res
}

// preflight refuses work whose commit could not be atomic and warns when
// scratch space looks short.
func (b *batch) preflight(src media.MediaSource, plan toolchain.Plan) error {
	dir := filepath.Dir(plan.Output)
	if err := util.EnsureDirectory(dir); err != nil {
		return dterrors.NewIOError(fmt.Sprintf("creating scratch directory %s", dir), err)
	}
	if err := util.EnsureDirectoryWritable(dir); err != nil {
		return dterrors.NewIOError("checking scratch directory", err)
	}
	if n, err := util.CleanupStaleScratch(dir, util.StaleScratchAge); err != nil {
		b.log.Warn("Failed to sweep stale scratch files in %s: %v", dir, err)
	} else if n > 0 {
		b.log.Info("Removed %d stale scratch file(s) from %s", n, dir)
	}
	if !util.SameFilesystem(dir, filepath.Dir(src.Path)) {
		return dterrors.NewCommitError(src.Path, replace.ErrCrossDevice)
	}
	if src.Size > 0 {
		need := uint64(src.Size) * util.MinFreeSpaceFactor
		if !util.CheckDiskSpace(dir, need, b.log.Warn) {
			b.rep.Warning(fmt.Sprintf("Low disk space in %s for %s", dir, util.GetFilename(src.Path)))
		}
	}
	return nil
}

func (b *batch) onProgress(p ffmpeg.Progress) {
	b.rep.EncodingProgress(reporter.ProgressSnapshot{
		CurrentFrame: p.CurrentFrame,
		Percent:      p.Percent,
		Speed:        p.Speed,
		FPS:          p.FPS,
		ETA:          p.ETA,
		Bitrate:      p.Bitrate,
	})
}

func outcomeFor(r ItemResult) reporter.ItemOutcome {
	out := reporter.ItemOutcome{
		ItemID:         r.ItemID,
		Path:           r.Path,
		Status:         r.Status,
		Classification: r.Classification.String(),
		OriginalSize:   r.OriginalSize,
		OutputSize:     r.OutputSize,
		Duration:       r.Duration,
		FailedStage:    r.FailedStage,
		ExitCode:       r.ExitCode,
		LogPaths:       r.LogPaths,
	}
	if r.Err != nil {
		out.Message = r.Err.Error()
	}
	return out
}

func firstPath(item media.MediaItem) string {
	if len(item.Sources) == 0 {
		return ""
	}
	return item.Sources[0].Path
}
