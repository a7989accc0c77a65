package reporter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvents(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var ev map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &ev), "line %q", sc.Text())
		events = append(events, ev)
	}
	return events
}

func TestJSONReporterEvents(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.BatchStarted(BatchStartInfo{TotalItems: 2, Items: []string{"a", "b"}})
	r.BatchProgress(50)
	r.ItemComplete(ItemOutcome{ItemID: "b", Status: StatusFailed, FailedStage: "convert", ExitCode: 3, Message: "boom"})
	r.BatchComplete(BatchSummary{TotalItems: 2, Converted: 1, Failed: 1, Failures: []FailedItem{{ItemID: "b", Stage: "convert", Message: "boom"}}})

	events := decodeEvents(t, &buf)
	require.Len(t, events, 4)

	assert.Equal(t, "batch_started", events[0]["type"])
	assert.Equal(t, float64(2), events[0]["total_items"])

	assert.Equal(t, "batch_progress", events[1]["type"])
	assert.Equal(t, float64(50), events[1]["percent"])

	assert.Equal(t, "item_complete", events[2]["type"])
	assert.Equal(t, "failed", events[2]["status"])
	assert.Equal(t, "convert", events[2]["failed_stage"])
	assert.Equal(t, float64(3), events[2]["exit_code"])

	assert.Equal(t, "batch_complete", events[3]["type"])
	assert.Len(t, events[3]["failures"], 1)
}

func TestJSONReporterSuccessOmitsFailureFields(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	r.ItemComplete(ItemOutcome{ItemID: "a", Status: StatusConverted})

	events := decodeEvents(t, &buf)
	require.Len(t, events, 1)
	assert.NotContains(t, events[0], "failed_stage")
}

func TestJSONReporterThrottlesEncodingProgress(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)
	clock := time.Unix(1000, 0)
	r.now = func() time.Time { return clock }

	r.EncodingStarted()
	r.EncodingProgress(ProgressSnapshot{Percent: 10.1})
	r.EncodingProgress(ProgressSnapshot{Percent: 10.4}) // same bucket, no time passed
	r.EncodingProgress(ProgressSnapshot{Percent: 11.0}) // new bucket
	clock = clock.Add(6 * time.Second)
	r.EncodingProgress(ProgressSnapshot{Percent: 11.2}) // interval elapsed
	r.EncodingProgress(ProgressSnapshot{Percent: 99.5}) // near the end always emits

	events := decodeEvents(t, &buf)
	var progress int
	for _, ev := range events {
		if ev["type"] == "encoding_progress" {
			progress++
		}
	}
	assert.Equal(t, 4, progress)
}

type recordingReporter struct {
	NullReporter
	percents []float64
	warnings []string
}

func (r *recordingReporter) BatchProgress(p float64) { r.percents = append(r.percents, p) }
func (r *recordingReporter) Warning(m string)        { r.warnings = append(r.warnings, m) }

func TestCompositeReporterFansOut(t *testing.T) {
	a, b := &recordingReporter{}, &recordingReporter{}
	c := NewCompositeReporter(a, b, NullReporter{})

	c.BatchProgress(20)
	c.BatchProgress(40)
	c.Warning("low disk")

	for _, r := range []*recordingReporter{a, b} {
		assert.Equal(t, []float64{20, 40}, r.percents)
		assert.Equal(t, []string{"low disk"}, r.warnings)
	}
}

func TestTerminalReporterOutput(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	var out, errOut bytes.Buffer
	r := NewTerminalReporterWithWriters(&out, &errOut)

	r.BatchStarted(BatchStartInfo{TotalItems: 1, Items: []string{"Movies/a.mkv"}})
	r.ItemStarted(ItemStartInfo{Index: 0, Total: 1, ItemID: "Movies/a.mkv"})
	r.ItemClassified(ClassificationSummary{Path: "/lib/Movies/a.mkv", Classification: "remux", Commands: []string{"ffmpeg -i a.mkv"}})
	r.ItemComplete(ItemOutcome{Status: StatusFailed, Message: "dovi_tool failed", FailedStage: "convert", ExitCode: 3, LogPaths: []string{"/logs/a_convert.log"}})
	r.BatchProgress(100)
	r.BatchComplete(BatchSummary{TotalItems: 1, Failed: 1})
	r.Error(ReporterError{Title: "Batch failed", Message: "config"})

	text := out.String()
	assert.Contains(t, text, "Processing 1 items")
	assert.Contains(t, text, "Item 1 of 1: Movies/a.mkv")
	assert.Contains(t, text, "$ ffmpeg -i a.mkv")
	assert.Contains(t, text, "convert (exit 3)")
	assert.Contains(t, text, "/logs/a_convert.log")
	assert.Contains(t, text, "batch 100% complete")
	assert.Contains(t, text, "0 converted, 0 skipped, 1 failed of 1")
	assert.True(t, strings.Contains(errOut.String(), "ERROR Batch failed"))
}
