package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONReporter outputs one JSON event per line.
type JSONReporter struct {
	writer             io.Writer
	mu                 sync.Mutex
	lastProgressBucket int
	lastProgressTime   time.Time
	now                func() time.Time
}

// NewJSONReporter creates a new JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return NewJSONReporterWithWriter(os.Stdout)
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{
		writer:             w,
		lastProgressBucket: -1,
		now:                time.Now,
	}
}

func (r *JSONReporter) timestamp() int64 {
	return r.now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]interface{}{
		"type":         "hardware",
		"hostname":     summary.Hostname,
		"num_cpu":      summary.NumCPU,
		"total_memory": summary.TotalMemory,
		"timestamp":    r.timestamp(),
	})
}

func (r *JSONReporter) BatchStarted(info BatchStartInfo) {
	items := info.Items
	if items == nil {
		items = []string{}
	}
	r.write(map[string]interface{}{
		"type":        "batch_started",
		"total_items": info.TotalItems,
		"items":       items,
		"dry_run":     info.DryRun,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) ItemStarted(info ItemStartInfo) {
	r.write(map[string]interface{}{
		"type":        "item_started",
		"index":       info.Index,
		"total_items": info.Total,
		"item_id":     info.ItemID,
		"path":        info.Path,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) ItemClassified(summary ClassificationSummary) {
	commands := summary.Commands
	if commands == nil {
		commands = []string{}
	}
	r.write(map[string]interface{}{
		"type":           "item_classified",
		"item_id":        summary.ItemID,
		"path":           summary.Path,
		"classification": summary.Classification,
		"dovi":           summary.DoVi,
		"commands":       commands,
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) StageProgress(update StageProgress) {
	event := map[string]interface{}{
		"type":      "stage_progress",
		"stage":     update.Stage,
		"percent":   update.Percent,
		"message":   update.Message,
		"timestamp": r.timestamp(),
	}
	if update.ETA != nil {
		event["eta_seconds"] = int64(update.ETA.Seconds())
	}
	r.write(event)
}

func (r *JSONReporter) EncodingStarted() {
	r.mu.Lock()
	r.lastProgressBucket = -1
	r.lastProgressTime = time.Time{}
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":      "encoding_started",
		"timestamp": r.timestamp(),
	})
}

// EncodingProgress emits at most one event per percent bucket, plus one every
// few seconds while the percentage stalls.
func (r *JSONReporter) EncodingProgress(progress ProgressSnapshot) {
	const progressBucketSize = 1
	const minInterval = 5 * time.Second

	bucket := int(progress.Percent) / progressBucketSize
	now := r.now()

	r.mu.Lock()
	intervalElapsed := r.lastProgressTime.IsZero() || now.Sub(r.lastProgressTime) >= minInterval
	shouldEmit := bucket > r.lastProgressBucket || intervalElapsed || progress.Percent >= 99.0

	if !shouldEmit {
		r.mu.Unlock()
		return
	}

	if bucket > r.lastProgressBucket {
		r.lastProgressBucket = bucket
	}
	r.lastProgressTime = now
	r.mu.Unlock()

	r.write(map[string]interface{}{
		"type":          "encoding_progress",
		"stage":         "reencode",
		"current_frame": progress.CurrentFrame,
		"percent":       progress.Percent,
		"speed":         progress.Speed,
		"fps":           progress.FPS,
		"eta_seconds":   int64(progress.ETA.Seconds()),
		"bitrate":       progress.Bitrate,
		"timestamp":     r.timestamp(),
	})
}

func (r *JSONReporter) ItemComplete(outcome ItemOutcome) {
	event := map[string]interface{}{
		"type":             "item_complete",
		"item_id":          outcome.ItemID,
		"path":             outcome.Path,
		"status":           string(outcome.Status),
		"classification":   outcome.Classification,
		"original_size":    outcome.OriginalSize,
		"output_size":      outcome.OutputSize,
		"duration_seconds": int64(outcome.Duration.Seconds()),
		"timestamp":        r.timestamp(),
	}
	if outcome.Status == StatusFailed {
		event["failed_stage"] = outcome.FailedStage
		event["exit_code"] = outcome.ExitCode
		event["message"] = outcome.Message
		event["log_paths"] = outcome.LogPaths
	}
	r.write(event)
}

func (r *JSONReporter) BatchProgress(percent float64) {
	r.write(map[string]interface{}{
		"type":      "batch_progress",
		"percent":   percent,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) BatchComplete(summary BatchSummary) {
	failures := make([]map[string]string, len(summary.Failures))
	for i, f := range summary.Failures {
		failures[i] = map[string]string{"item_id": f.ItemID, "stage": f.Stage, "message": f.Message}
	}

	r.write(map[string]interface{}{
		"type":                   "batch_complete",
		"total_items":            summary.TotalItems,
		"converted":              summary.Converted,
		"skipped":                summary.Skipped,
		"failed":                 summary.Failed,
		"rescan_requested":       summary.RescanRequested,
		"failures":               failures,
		"total_duration_seconds": int64(summary.TotalDuration.Seconds()),
		"timestamp":              r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) OperationComplete(message string) {
	r.write(map[string]interface{}{
		"type":      "operation_complete",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
