package reporter

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/five82/dovetail/internal/util"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	out        io.Writer
	errOut     io.Writer
	progress   *progressbar.ProgressBar
	maxPercent float32
	lastStage  string
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	magenta    *color.Color
	bold       *color.Color
	faint      *color.Color
	check      *color.Color
}

// NewTerminalReporter creates a terminal reporter on stdout and stderr.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterWithWriters(os.Stdout, os.Stderr)
}

// NewTerminalReporterWithWriters creates a terminal reporter writing events
// to out and errors and the progress bar to errOut.
func NewTerminalReporterWithWriters(out, errOut io.Writer) *TerminalReporter {
	return &TerminalReporter{
		out:     out,
		errOut:  errOut,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		faint:   color.New(color.Faint),
		check:   color.New(color.FgGreen, color.Bold),
	}
}

func (r *TerminalReporter) finishProgress() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.maxPercent = 0
}

func (r *TerminalReporter) section(title string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.cyan.Fprintln(r.out, title)
}

// printLabel prints a bold label with fixed width padding followed by a value.
// Width is applied to the plain text before styling to ensure proper alignment.
func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	r.section("HARDWARE")
	r.printLabel(9, "Hostname:", summary.Hostname)
	r.printLabel(9, "CPUs:", fmt.Sprint(summary.NumCPU))
	if summary.TotalMemory > 0 {
		r.printLabel(9, "Memory:", util.FormatBytes(summary.TotalMemory))
	}
}

func (r *TerminalReporter) BatchStarted(info BatchStartInfo) {
	title := "BATCH"
	if info.DryRun {
		title = "BATCH (dry run)"
	}
	r.section(title)
	_, _ = fmt.Fprintf(r.out, "  Processing %d items\n", info.TotalItems)
	for i, name := range info.Items {
		_, _ = fmt.Fprintf(r.out, "  %d. %s\n", i+1, name)
	}
}

func (r *TerminalReporter) ItemStarted(info ItemStartInfo) {
	r.mu.Lock()
	r.lastStage = ""
	r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "\nItem %s of %d: %s\n",
		r.bold.Sprint(info.Index+1), info.Total, info.ItemID)
}

func (r *TerminalReporter) ItemClassified(summary ClassificationSummary) {
	r.printLabel(9, "File:", summary.Path)
	dovi := summary.DoVi
	if dovi == "" {
		dovi = r.faint.Sprint("none")
	}
	r.printLabel(9, "DoVi:", dovi)
	r.printLabel(9, "Action:", summary.Classification)
	for _, cmd := range summary.Commands {
		_, _ = fmt.Fprintf(r.out, "    %s %s\n", r.magenta.Sprint("$"), cmd)
	}
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	if r.lastStage != update.Stage {
		r.lastStage = update.Stage
		r.mu.Unlock()
		r.section(strings.ToUpper(update.Stage))
	} else {
		r.mu.Unlock()
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) EncodingStarted() {
	r.finishProgress()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(r.errOut),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Re-encoding [",
			BarEnd:        "]",
		}),
	)
}

func (r *TerminalReporter) EncodingProgress(progress ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	clamped := progress.Percent
	if clamped > 100 {
		clamped = 100
	}
	if clamped < 0 {
		clamped = 0
	}

	if clamped >= r.maxPercent {
		r.maxPercent = clamped
		_ = r.progress.Set64(int64(clamped))
	}

	desc := fmt.Sprintf("speed %.1fx, fps %.1f, eta %s",
		progress.Speed, progress.FPS, util.FormatElapsed(progress.ETA))
	r.progress.Describe(desc)
}

func (r *TerminalReporter) ItemComplete(outcome ItemOutcome) {
	r.finishProgress()

	switch outcome.Status {
	case StatusConverted:
		change := util.CalculateSizeChange(outcome.OriginalSize, outcome.OutputSize)
		_, _ = fmt.Fprintf(r.out, "  %s %s (%s -> %s, %+.1f%%, %s)\n",
			r.check.Sprint("✓"),
			r.bold.Sprint(outcome.Classification),
			util.FormatBytes(outcome.OriginalSize),
			util.FormatBytes(outcome.OutputSize),
			change,
			util.FormatElapsed(outcome.Duration))
	case StatusSkipped:
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprint("skipped"))
	case StatusDryRun:
		_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprint("dry run, nothing changed"))
	case StatusFailed:
		_, _ = fmt.Fprintf(r.out, "  %s %s\n", r.red.Sprint("✗"), outcome.Message)
		if outcome.FailedStage != "" {
			r.printLabel(9, "Stage:", fmt.Sprintf("%s (exit %d)", outcome.FailedStage, outcome.ExitCode))
		}
		for _, p := range outcome.LogPaths {
			r.printLabel(9, "Log:", p)
		}
	}
}

func (r *TerminalReporter) BatchProgress(percent float64) {
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprintf("batch %.0f%% complete", percent))
}

func (r *TerminalReporter) BatchComplete(summary BatchSummary) {
	r.section("BATCH SUMMARY")
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.bold.Sprintf("%d converted, %d skipped, %d failed of %d",
		summary.Converted, summary.Skipped, summary.Failed, summary.TotalItems))
	_, _ = fmt.Fprintf(r.out, "  Time: %s\n", util.FormatElapsed(summary.TotalDuration))
	if summary.RescanRequested {
		_, _ = fmt.Fprintln(r.out, "  Library rescan requested")
	}
	for _, f := range summary.Failures {
		_, _ = fmt.Fprintf(r.out, "  - %s %s: %s\n", r.red.Sprint(f.ItemID), f.Stage, f.Message)
	}
}

func (r *TerminalReporter) Warning(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = r.yellow.Fprintf(r.out, "WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(r.errOut)
	_, _ = r.red.Fprintf(r.errOut, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(r.errOut, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(r.errOut, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) OperationComplete(message string) {
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.check.Sprint("✓"), r.bold.Sprint(message))
}

func (r *TerminalReporter) Verbose(message string) {
	_, _ = fmt.Fprintf(r.out, "  %s\n", r.faint.Sprint(message))
}
