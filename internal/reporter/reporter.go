package reporter

// Reporter defines the interface for progress reporting.
type Reporter interface {
	Hardware(summary HardwareSummary)
	BatchStarted(info BatchStartInfo)
	ItemStarted(info ItemStartInfo)
	ItemClassified(summary ClassificationSummary)
	StageProgress(update StageProgress)
	EncodingStarted()
	EncodingProgress(progress ProgressSnapshot)
	ItemComplete(outcome ItemOutcome)
	// BatchProgress reports batch completion in [0,100].
	BatchProgress(percent float64)
	BatchComplete(summary BatchSummary)
	Warning(message string)
	Error(err ReporterError)
	OperationComplete(message string)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) BatchStarted(BatchStartInfo)          {}
func (NullReporter) ItemStarted(ItemStartInfo)            {}
func (NullReporter) ItemClassified(ClassificationSummary) {}
func (NullReporter) StageProgress(StageProgress)          {}
func (NullReporter) EncodingStarted()                     {}
func (NullReporter) EncodingProgress(ProgressSnapshot)    {}
func (NullReporter) ItemComplete(ItemOutcome)             {}
func (NullReporter) BatchProgress(float64)                {}
func (NullReporter) BatchComplete(BatchSummary)           {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) OperationComplete(string)             {}
func (NullReporter) Verbose(string)                       {}
