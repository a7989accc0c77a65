// Package toolchain turns a classified source into the pipelines that
// convert it.
package toolchain

import (
	"fmt"
	"strconv"

	"github.com/five82/dovetail/internal/config"
	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/ffmpeg"
	"github.com/five82/dovetail/internal/media"
	"github.com/five82/dovetail/internal/pipeline"
	"github.com/five82/dovetail/internal/util"
)

// Stage names, also used in log file names.
const (
	StageExtract  = "extract"
	StageConvert  = "convert"
	StageStrip    = "strip"
	StageMux      = "mux"
	StageReencode = "reencode"
)

// Scratch artifact labels.
const (
	labelHEVC = util.ScratchLabelPrefix + "hevc"
	labelMux  = util.ScratchLabelPrefix + "mux"
)

// Plan is the ordered work for one source.
type Plan struct {
	Source         media.MediaSource
	Classification media.Classification
	// Pipelines run in order; each must succeed before the next starts.
	Pipelines []pipeline.Spec
	// Output is the artifact committed over the source.
	Output string
	// Artifacts lists every scratch file the plan may create.
	Artifacts []string
}

// Describe renders the plan's commands, one per stage.
func (p Plan) Describe() []string {
	var lines []string
	for _, spec := range p.Pipelines {
		for _, st := range spec.Stages {
			lines = append(lines, st.Command())
		}
	}
	return lines
}

// Options tune plan construction.
type Options struct {
	// OnProgress receives re-encode progress. Unused by the other paths.
	OnProgress ffmpeg.ProgressCallback
}

// Build returns the plan for src. Skip has no plan and is an error here so
// a caller can never spawn for it by accident.
func Build(cfg config.Config, src media.MediaSource, c media.Classification, naming util.Naming, opts Options) (Plan, error) {
	dir := cfg.GetTempDir(src.Path)
	hevc := naming.Artifact(dir, labelHEVC, "hevc")
	muxed := naming.Artifact(dir, labelMux, "mkv")

	plan := Plan{Source: src, Classification: c, Output: muxed}

	switch c {
	case media.Remux:
		plan.Pipelines = []pipeline.Spec{
			ExtractAndTransform(cfg, src.Path, RemuxStage(cfg.DoviToolPath, cfg.DoviMode, hevc), hevc),
			Mux(cfg.MkvmergePath, hevc, src.Path, muxed),
		}
		plan.Artifacts = []string{hevc, muxed}
	case media.FallbackConvert:
		if cfg.FallbackMode == config.FallbackReencode {
			plan.Pipelines = []pipeline.Spec{Reencode(cfg, src, muxed, opts.OnProgress)}
			plan.Artifacts = []string{muxed}
			break
		}
		plan.Pipelines = []pipeline.Spec{
			ExtractAndTransform(cfg, src.Path, StripStage(cfg.DoviToolPath, hevc), hevc),
			Mux(cfg.MkvmergePath, hevc, src.Path, muxed),
		}
		plan.Artifacts = []string{hevc, muxed}
	default:
		return Plan{}, dterrors.NewOperationFailedError(fmt.Sprintf("no conversion for %s classified %s", src.Path, c), nil)
	}
	return plan, nil
}

// ExtractStage pipes the source's HEVC elementary stream to the next stage.
func ExtractStage(ffmpegPath, src string) pipeline.StageSpec {
	return pipeline.StageSpec{
		Name:       StageExtract,
		Executable: ffmpegPath,
		Args:       ffmpeg.ExtractArgs(src),
		Stdout:     pipeline.StdoutNext,
	}
}

// RemuxStage converts the RPU in place with dovi_tool and writes out.
// Mode 2 yields profile 8.1.
func RemuxStage(doviTool string, mode int, out string) pipeline.StageSpec {
	return pipeline.StageSpec{
		Name:       StageConvert,
		Executable: doviTool,
		Args:       []string{"-m", strconv.Itoa(mode), "convert", "--discard", "-", "-o", out},
		Stdin:      pipeline.StdinPrevious,
	}
}

// StripStage removes the Dolby Vision RPU, leaving the base layer.
func StripStage(doviTool, out string) pipeline.StageSpec {
	return pipeline.StageSpec{
		Name:       StageStrip,
		Executable: doviTool,
		Args:       []string{"remove", "-", "-o", out},
		Stdin:      pipeline.StdinPrevious,
	}
}

// ExtractAndTransform chains the extractor into a dovi_tool stage.
func ExtractAndTransform(cfg config.Config, src string, transform pipeline.StageSpec, out string) pipeline.Spec {
	return pipeline.Spec{
		Name:       transform.Name,
		Stages:     []pipeline.StageSpec{ExtractStage(cfg.FFmpegPath, src), transform},
		OutputPath: out,
	}
}

// Mux combines the new video with every non-video stream of the original.
func Mux(mkvmerge, hevc, original, out string) pipeline.Spec {
	return pipeline.Spec{
		Name: StageMux,
		Stages: []pipeline.StageSpec{{
			Name:       StageMux,
			Executable: mkvmerge,
			Args:       []string{"-q", "-o", out, hevc, "-D", original},
		}},
		OutputPath: out,
	}
}

// Reencode is the single-stage HDR10 re-encode fallback.
func Reencode(cfg config.Config, src media.MediaSource, out string, onProgress ffmpeg.ProgressCallback) pipeline.Spec {
	st := pipeline.StageSpec{
		Name:       StageReencode,
		Executable: cfg.FFmpegPath,
		Args:       ffmpeg.ReencodeArgs(src.Path, out, cfg.ReencodePreset, cfg.ReencodeCRF),
	}
	if onProgress != nil {
		st.OnLine = ffmpeg.ProgressLineHandler(src.Duration, onProgress)
	}
	return pipeline.Spec{Name: StageReencode, Stages: []pipeline.StageSpec{st}, OutputPath: out}
}
