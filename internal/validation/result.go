package validation

import (
	"fmt"
	"strings"
)

// Result contains the overall validation result.
type Result struct {
	IsHEVC                bool
	IsDoViCorrect         bool
	IsStreamLayoutCorrect bool
	IsDurationCorrect     bool

	// Details
	CodecName       string
	DoViMessage     string
	StreamMessage   string
	ActualDuration  float64
	DurationMessage string
}

// ValidationStep represents a single validation check.
type ValidationStep struct {
	Name    string
	Passed  bool
	Details string
}

// IsValid returns true if all validation checks passed.
func (r *Result) IsValid() bool {
	return r.IsHEVC &&
		r.IsDoViCorrect &&
		r.IsStreamLayoutCorrect &&
		r.IsDurationCorrect
}

// GetValidationSteps returns all validation steps with results.
func (r *Result) GetValidationSteps() []ValidationStep {
	return []ValidationStep{
		{
			Name:    "Video codec",
			Passed:  r.IsHEVC,
			Details: formatCodecDetails(r.CodecName, r.IsHEVC),
		},
		{
			Name:    "Dolby Vision",
			Passed:  r.IsDoViCorrect,
			Details: r.DoViMessage,
		},
		{
			Name:    "Stream layout",
			Passed:  r.IsStreamLayoutCorrect,
			Details: r.StreamMessage,
		},
		{
			Name:    "Duration",
			Passed:  r.IsDurationCorrect,
			Details: r.DurationMessage,
		},
	}
}

// GetFailures returns descriptions of failed validation checks.
func (r *Result) GetFailures() []string {
	var failures []string
	for _, step := range r.GetValidationSteps() {
		if !step.Passed {
			failures = append(failures, step.Name+": "+step.Details)
		}
	}
	return failures
}

// String joins the failures, or reports success.
func (r *Result) String() string {
	if r.IsValid() {
		return "all checks passed"
	}
	return strings.Join(r.GetFailures(), "; ")
}

func formatCodecDetails(codecName string, passed bool) string {
	if passed {
		return "HEVC (" + codecName + ")"
	}
	if codecName != "" {
		return fmt.Sprintf("Expected HEVC, got %s", codecName)
	}
	return "No video stream"
}
