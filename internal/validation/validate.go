package validation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/ffprobe"
	"github.com/five82/dovetail/internal/media"
)

// durationToleranceSecs is the maximum allowed difference in duration between input and output.
const durationToleranceSecs = 1.0

// ValidateConversion probes outputPath and compares it with the source it
// was made from. A probe failure is returned as an error; failed checks are
// reported in the Result.
func ValidateConversion(ctx context.Context, analyzer MediaAnalyzer, outputPath string, source media.MediaSource, c media.Classification) (*Result, error) {
	out, err := analyzer.Probe(ctx, outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe converted output: %w", err)
	}

	result := &Result{ActualDuration: out.Duration}

	videos := out.VideoStreams()
	if len(videos) > 0 {
		result.CodecName = videos[0].Codec
		result.IsHEVC = strings.EqualFold(videos[0].Codec, "hevc") || strings.EqualFold(videos[0].Codec, "h265")
	}

	result.IsDoViCorrect, result.DoViMessage = validateDoVi(out.DoVi(), c)
	result.IsStreamLayoutCorrect, result.StreamMessage = validateStreamLayout(source, out)

	if source.Duration > 0 {
		result.IsDurationCorrect, result.DurationMessage = validateDuration(out.Duration, source.Duration)
	} else {
		result.IsDurationCorrect = true
		result.DurationMessage = "Duration validation skipped"
	}

	return result, nil
}

// validateDoVi checks the output's Dolby Vision record against the path taken.
func validateDoVi(md *media.DoViMetadata, c media.Classification) (bool, string) {
	switch c {
	case media.Remux:
		if md == nil {
			return false, "Dolby Vision metadata missing after conversion"
		}
		if md.Profile != media.TargetProfile {
			return false, fmt.Sprintf("Expected profile %d, got %s", media.TargetProfile, ffprobe.DescribeDoVi(md))
		}
		return true, ffprobe.DescribeDoVi(md)
	default:
		if md != nil {
			return false, fmt.Sprintf("Dolby Vision still present: %s", ffprobe.DescribeDoVi(md))
		}
		return true, "Dolby Vision removed, HDR10 base layer kept"
	}
}

// streamCoverArt counts attached pictures apart from video tracks.
const streamCoverArt media.StreamType = "cover art"

// validateStreamLayout expects exactly one video track and the source's
// other streams, attached pictures included.
func validateStreamLayout(source, out media.MediaSource) (bool, string) {
	want := countStreams(source)
	want[media.StreamVideo] = 1
	got := countStreams(out)

	if equalCounts(want, got) {
		return true, "Streams preserved: " + formatCounts(got)
	}
	return false, fmt.Sprintf("Stream mismatch: got %s, expected %s", formatCounts(got), formatCounts(want))
}

// validateDuration checks that duration is within acceptable tolerance.
func validateDuration(actual, expected float64) (bool, string) {
	diff := math.Abs(actual - expected)

	if diff <= durationToleranceSecs {
		return true, fmt.Sprintf("Duration matches input (%.1fs)", actual)
	}
	return false, fmt.Sprintf("Duration mismatch: got %.1fs, expected %.1fs (diff: %.1fs)",
		actual, expected, diff)
}

func countStreams(src media.MediaSource) map[media.StreamType]int {
	counts := make(map[media.StreamType]int)
	for _, st := range src.Streams {
		if st.Type == media.StreamVideo && st.AttachedPic {
			counts[streamCoverArt]++
			continue
		}
		counts[st.Type]++
	}
	return counts
}

func equalCounts(a, b map[media.StreamType]int) bool {
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	for k, v := range b {
		if a[k] != v {
			return false
		}
	}
	return true
}

func formatCounts(counts map[media.StreamType]int) string {
	var parts []string
	for t, n := range counts {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, t))
		}
	}
	sort.Strings(parts)
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Verifier rejects converted outputs that fail validation.
type Verifier struct {
	analyzer MediaAnalyzer
}

// NewVerifier creates a Verifier probing with analyzer.
func NewVerifier(analyzer MediaAnalyzer) *Verifier {
	return &Verifier{analyzer: analyzer}
}

// Verify returns nil when output is a faithful conversion of source.
// Otherwise the error is a KindOperationFailed CoreError naming every
// failed check.
func (v *Verifier) Verify(ctx context.Context, output string, source media.MediaSource, c media.Classification) error {
	res, err := ValidateConversion(ctx, v.analyzer, output, source, c)
	if err != nil {
		if dterrors.IsCancelled(err) {
			return dterrors.NewCancelledError()
		}
		return dterrors.NewOperationFailedError("verifying "+output, err)
	}
	if !res.IsValid() {
		return dterrors.NewOperationFailedError("converted output failed validation: "+res.String(), nil)
	}
	return nil
}
