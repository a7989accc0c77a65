// Package reporter provides progress reporting interfaces and implementations.
package reporter

import "time"

// HardwareSummary contains host information.
type HardwareSummary struct {
	Hostname    string
	NumCPU      int
	TotalMemory uint64
}

// BatchStartInfo contains batch start metadata.
type BatchStartInfo struct {
	TotalItems int
	Items      []string
	DryRun     bool
}

// ItemStartInfo identifies the item about to be processed.
type ItemStartInfo struct {
	Index  int // zero-based
	Total  int
	ItemID string
	Path   string
}

// ClassificationSummary describes the decision taken for one source.
type ClassificationSummary struct {
	ItemID         string
	Path           string
	Classification string
	DoVi           string
	// Commands are the planned stage command lines, empty for skip.
	Commands []string
}

// StageProgress represents a generic stage update.
type StageProgress struct {
	Stage   string
	Percent float32
	Message string
	ETA     *time.Duration
}

// ProgressSnapshot contains re-encode progress information.
type ProgressSnapshot struct {
	CurrentFrame uint64
	Percent      float32
	Speed        float32
	FPS          float32
	ETA          time.Duration
	Bitrate      string
}

// ItemStatus is the terminal state of one item.
type ItemStatus string

const (
	StatusConverted ItemStatus = "converted"
	StatusSkipped   ItemStatus = "skipped"
	StatusFailed    ItemStatus = "failed"
	StatusDryRun    ItemStatus = "dry-run"
)

// ItemOutcome contains the result of one item.
type ItemOutcome struct {
	ItemID         string
	Path           string
	Status         ItemStatus
	Classification string
	OriginalSize   uint64
	OutputSize     uint64
	Duration       time.Duration
	// Failure details, set when Status is StatusFailed.
	FailedStage string
	ExitCode    int
	Message     string
	LogPaths    []string
}

// ReporterError contains error information.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}

// FailedItem is a short failure record for the batch summary.
type FailedItem struct {
	ItemID  string
	Stage   string
	Message string
}

// BatchSummary contains batch completion information.
type BatchSummary struct {
	TotalItems      int
	Converted       int
	Skipped         int
	Failed          int
	TotalDuration   time.Duration
	RescanRequested bool
	Failures        []FailedItem
}
