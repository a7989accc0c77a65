// Package ffprobe builds media source descriptions by running ffprobe.
package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	dterrors "github.com/five82/dovetail/internal/errors"
	"github.com/five82/dovetail/internal/media"
	"github.com/five82/dovetail/internal/util"
)

// doviSideDataType is the side data entry ffprobe emits for a Dolby Vision
// configuration record.
const doviSideDataType = "DOVI configuration record"

// Prober runs ffprobe from a fixed path.
type Prober struct {
	path string
}

// New returns a Prober using the ffprobe executable at path.
func New(path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{path: path}
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	Index        int               `json:"index"`
	CodecType    string            `json:"codec_type"`
	CodecName    string            `json:"codec_name"`
	Width        int64             `json:"width"`
	Height       int64             `json:"height"`
	Disposition  ffprobeDisposition `json:"disposition"`
	SideDataList []ffprobeSideData   `json:"side_data_list"`
}

type ffprobeDisposition struct {
	AttachedPic int `json:"attached_pic"`
}

type ffprobeSideData struct {
	SideDataType            string `json:"side_data_type"`
	DVProfile               *int   `json:"dv_profile"`
	DVLevel                 *int   `json:"dv_level"`
	RPUPresentFlag          *int   `json:"rpu_present_flag"`
	ELPresentFlag           *int   `json:"el_present_flag"`
	BLPresentFlag           *int   `json:"bl_present_flag"`
	BLSignalCompatibilityID *int   `json:"dv_bl_signal_compatibility_id"`
}

// runFFprobe executes ffprobe and returns the parsed output.
func (p *Prober) runFFprobe(ctx context.Context, inputPath string) (*ffprobeOutput, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, dterrors.NewCancelledError()
		}
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return nil, dterrors.WrapExecError("ffprobe", err, stderr)
	}

	return parseFFprobeOutput(output)
}

// parseFFprobeOutput decodes ffprobe's JSON document.
func parseFFprobeOutput(data []byte) (*ffprobeOutput, error) {
	var result ffprobeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, dterrors.NewFFprobeParseError("failed to parse ffprobe output", err)
	}
	return &result, nil
}

// Probe describes the file at path.
func (p *Prober) Probe(ctx context.Context, path string) (media.MediaSource, error) {
	probe, err := p.runFFprobe(ctx, path)
	if err != nil {
		return media.MediaSource{}, err
	}
	return toSource(path, probe), nil
}

// toSource converts probe output into a MediaSource.
func toSource(path string, probe *ffprobeOutput) media.MediaSource {
	src := media.MediaSource{
		Path:      path,
		Container: containerTag(probe.Format.FormatName, path),
	}
	if probe.Format.Size != "" {
		if n, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
			src.Size = n
		}
	}
	if probe.Format.Duration != "" {
		if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
			src.Duration = d
		}
	}

	for _, s := range probe.Streams {
		desc := media.StreamDescriptor{
			Index:       s.Index,
			Type:        media.StreamType(s.CodecType),
			Codec:       s.CodecName,
			AttachedPic: s.Disposition.AttachedPic == 1,
		}
		if desc.IsVideoTrack() {
			desc.DoVi = extractDoVi(s.SideDataList)
		}
		src.Streams = append(src.Streams, desc)
	}
	return src
}

// extractDoVi returns the Dolby Vision record from a stream's side data, or
// nil. A record without a profile is treated as absent.
func extractDoVi(sideData []ffprobeSideData) *media.DoViMetadata {
	for _, sd := range sideData {
		if sd.SideDataType != doviSideDataType || sd.DVProfile == nil {
			continue
		}
		md := &media.DoViMetadata{
			Profile:           *sd.DVProfile,
			BLCompatibilityID: sd.BLSignalCompatibilityID,
			BLPresentFlag:     sd.BLPresentFlag,
			ELPresentFlag:     sd.ELPresentFlag,
			RPUPresentFlag:    sd.RPUPresentFlag,
		}
		if sd.DVLevel != nil {
			md.Level = *sd.DVLevel
		}
		return md
	}
	return nil
}

// containerTag maps ffprobe's format_name to a short container tag.
// Demuxers that cover several containers are disambiguated by extension.
func containerTag(formatName, path string) string {
	first, _, _ := strings.Cut(formatName, ",")
	switch first {
	case "matroska":
		if strings.EqualFold(filepath.Ext(path), ".webm") {
			return "webm"
		}
		return media.ContainerMatroska
	case "mov":
		if tag := util.ContainerForPath(path); tag == "mov" {
			return tag
		}
		return "mp4"
	case "mpegts":
		return "mpegts"
	case "avi":
		return "avi"
	case "":
		return util.ContainerForPath(path)
	default:
		return first
	}
}

// DescribeDoVi renders a record for logs, e.g. "profile 8 level 6 compat 1 BL+RPU".
func DescribeDoVi(md *media.DoViMetadata) string {
	if md == nil {
		return "no Dolby Vision"
	}
	var layers []string
	if flag(md.BLPresentFlag) {
		layers = append(layers, "BL")
	}
	if flag(md.ELPresentFlag) {
		layers = append(layers, "EL")
	}
	if flag(md.RPUPresentFlag) {
		layers = append(layers, "RPU")
	}
	compat := "?"
	if md.BLCompatibilityID != nil {
		compat = strconv.Itoa(*md.BLCompatibilityID)
	}
	s := fmt.Sprintf("profile %d level %d compat %s", md.Profile, md.Level, compat)
	if len(layers) > 0 {
		s += " " + strings.Join(layers, "+")
	}
	return s
}

func flag(p *int) bool {
	return p != nil && *p == 1
}
